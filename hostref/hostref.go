// Package hostref holds the non-accelerated reference computation for every
// device kernel in runner. The accelerated path is required to match these
// results within a relative tolerance of 1e-12; tests and the bench CLI use
// this package as the equivalence oracle.
package hostref

import (
	"github.com/flowaccel/bsrkernel/types"
)

// VMul computes out[i] += alpha * in1[i] * in2[i] for every element.
func VMul(alpha float64, in1, in2, out []float64) {
	for i := range out {
		out[i] += alpha * in1[i] * in2[i]
	}
}

// SpMV computes y = A*x with a sequential block-row traversal. Accumulation
// is in block-column order, which fixes the reference rounding; the device
// kernels are compared against this within tolerance, not bitwise.
func SpMV(a *types.BSRMatrix, x, y []float64) {
	bs := a.BlockSize
	for br := 0; br < a.BlockRows; br++ {
		for r := 0; r < bs; r++ {
			y[br*bs+r] = 0
		}
		for k := a.RowPtrs[br]; k < a.RowPtrs[br+1]; k++ {
			blk := a.Block(int(k))
			xoff := int(a.Cols[k]) * bs
			for r := 0; r < bs; r++ {
				sum := 0.0
				for c := 0; c < bs; c++ {
					sum += blk[r*bs+c] * x[xoff+c]
				}
				y[br*bs+r] += sum
			}
		}
	}
}

// Residual computes out = rhs - A*x.
func Residual(a *types.BSRMatrix, x, rhs, out []float64) {
	SpMV(a, x, out)
	for i := range out {
		out[i] = rhs[i] - out[i]
	}
}

// RestrictToPressure aggregates each fine block into one coarse scalar using
// the per-dof pressure weights: coarse[br] = sum_i fine[br*bs+i]*weights[br*bs+i].
func RestrictToPressure(fine, weights, coarse []float64, blockSize int) {
	for br := range coarse {
		sum := 0.0
		idx := br * blockSize
		for i := 0; i < blockSize; i++ {
			sum += fine[idx+i] * weights[idx+i]
		}
		coarse[br] = sum
	}
}

// AddCoarsePressureCorrection accumulates the coarse solution into the
// pressure slot of each fine block: fine[br*bs+pressureIdx] += coarse[br].
func AddCoarsePressureCorrection(coarse, fine []float64, pressureIdx, blockSize int) {
	for br := range coarse {
		fine[br*blockSize+pressureIdx] += coarse[br]
	}
}

// ProlongateVector accumulates coarse values into fine rows through the
// gather map: fine[i] += coarse[cols[i]].
func ProlongateVector(coarse, fine []float64, cols []int32) {
	for i := range fine {
		fine[i] += coarse[cols[i]]
	}
}
