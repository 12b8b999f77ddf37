package runner

import (
	"fmt"

	"github.com/flowaccel/bsrkernel/utils"
)

// ngroups sizes the grid-stride launch: one cooperating group per work item
// up to the group size, never zero.
func (c *Context) ngroups(items int) int {
	g := utils.CeilDiv(items, c.wgSize)
	if g < 1 {
		g = 1
	}
	return g
}

// VMul computes out[i] += alpha * in1[i] * in2[i] over the full vector
// length. The update is elementwise independent, so out may alias in1 or in2
// at matching indices.
func (c *Context) VMul(alpha float64, in1, in2, out *Vector) error {
	const op = "VMul"
	if in1.n != out.n || in2.n != out.n {
		return fmt.Errorf("%s: length mismatch: in1=%d in2=%d out=%d", op, in1.n, in2.n, out.n)
	}
	return c.launch(op, "vmul",
		alpha, in1.mem, in2.mem, out.mem, out.n, c.ngroups(out.n))
}

// SpMV computes y = A*x, choosing the scalar or blocked kernel from the
// matrix block size.
func (c *Context) SpMV(a *Matrix, x, y *Vector) error {
	const op = "SpMV"
	if err := checkSystem(op, a, x, y); err != nil {
		return err
	}
	if a.blockSize > 1 {
		return c.launch(op, "spmvBlocked",
			a.vals, a.cols, a.rows, a.blockRows, x.mem, y.mem,
			a.blockSize, c.ngroups(a.blockRows))
	}
	return c.launch(op, "spmvScalar",
		a.vals, a.cols, a.rows, a.blockRows, x.mem, y.mem,
		c.ngroups(a.blockRows))
}

// Residual computes out = rhs - A*x with the same traversal and reduction as
// SpMV; only the final write differs.
func (c *Context) Residual(a *Matrix, x, rhs, out *Vector) error {
	const op = "Residual"
	if err := checkSystem(op, a, x, out); err != nil {
		return err
	}
	if rhs.n != a.Rows() {
		return fmt.Errorf("%s: rhs length %d does not match %d matrix rows", op, rhs.n, a.Rows())
	}
	if a.blockSize > 1 {
		return c.launch(op, "residualBlocked",
			a.vals, a.cols, a.rows, a.blockRows, x.mem, rhs.mem, out.mem,
			a.blockSize, c.ngroups(a.blockRows))
	}
	return c.launch(op, "residualScalar",
		a.vals, a.cols, a.rows, a.blockRows, x.mem, rhs.mem, out.mem,
		c.ngroups(a.blockRows))
}

// RestrictToPressure reduces each fine block to one coarse scalar using the
// pressure weights: coarse[row] = sum_i fine[row*bs+i] * weights[row*bs+i].
// A zero weight excludes that fine dof from the aggregate; no normalization
// is applied.
func (c *Context) RestrictToPressure(fine, weights, coarse *Vector, blockSize int) error {
	const op = "RestrictToPressure"
	if blockSize < 1 {
		return fmt.Errorf("%s: blockSize must be >= 1, got %d", op, blockSize)
	}
	if fine.n != coarse.n*blockSize {
		return fmt.Errorf("%s: fine length %d is not coarse length %d * blockSize %d",
			op, fine.n, coarse.n, blockSize)
	}
	if weights.n != fine.n {
		return fmt.Errorf("%s: weights length %d does not match fine length %d", op, weights.n, fine.n)
	}
	return c.launch(op, "restrictPressure",
		fine.mem, weights.mem, coarse.mem, coarse.n, blockSize, c.ngroups(coarse.n))
}

// AddCoarsePressureCorrection accumulates the coarse solution into the
// pressure slot of every fine block: fine[row*bs+pressureIdx] += coarse[row].
// This composes a correction onto the existing fine solution; it does not
// overwrite.
func (c *Context) AddCoarsePressureCorrection(coarse, fine *Vector, pressureIdx, blockSize int) error {
	const op = "AddCoarsePressureCorrection"
	if blockSize < 1 {
		return fmt.Errorf("%s: blockSize must be >= 1, got %d", op, blockSize)
	}
	if pressureIdx < 0 || pressureIdx >= blockSize {
		return fmt.Errorf("%s: pressureIdx %d out of range [0,%d)", op, pressureIdx, blockSize)
	}
	if fine.n != coarse.n*blockSize {
		return fmt.Errorf("%s: fine length %d is not coarse length %d * blockSize %d",
			op, fine.n, coarse.n, blockSize)
	}
	return c.launch(op, "addCoarseCorrection",
		coarse.mem, fine.mem, pressureIdx, coarse.n, blockSize, c.ngroups(coarse.n))
}

// ProlongateVector accumulates coarse values into fine rows through an
// arbitrary gather map: fine[i] += coarse[cols[i]]. This generalizes the
// pressure injection to coarsening topologies that are not one fixed offset
// per block.
func (c *Context) ProlongateVector(coarse, fine *Vector, cols *IndexMap) error {
	const op = "ProlongateVector"
	if cols.n != fine.n {
		return fmt.Errorf("%s: column map length %d does not match fine length %d", op, cols.n, fine.n)
	}
	if int(cols.max) >= coarse.n {
		return fmt.Errorf("%s: column map reaches index %d, coarse length is %d", op, cols.max, coarse.n)
	}
	return c.launch(op, "prolongate",
		coarse.mem, fine.mem, cols.mem, fine.n, c.ngroups(fine.n))
}

func checkSystem(op string, a *Matrix, x, y *Vector) error {
	n := a.Rows()
	if x.n != n {
		return fmt.Errorf("%s: x length %d does not match %d matrix rows", op, x.n, n)
	}
	if y.n != n {
		return fmt.Errorf("%s: output length %d does not match %d matrix rows", op, y.n, n)
	}
	return nil
}
