package types

import (
	"fmt"
	"math/rand"
)

// BSRMatrix is a block-compressed-row sparse matrix on the host. Each stored
// nonzero is a dense BlockSize x BlockSize block laid out row-major inside
// Values. RowPtrs has BlockRows+1 entries indexing into Cols/blocks, with
// RowPtrs[BlockRows] == number of nonzero blocks.
//
// The matrix is assembled elsewhere; this package only carries it to and from
// the device and validates its structure.
type BSRMatrix struct {
	BlockRows int
	BlockSize int
	Values    []float64
	Cols      []int32
	RowPtrs   []int32
}

// NewBSRMatrix validates the block-compressed-row structure and returns the
// assembled matrix. It rejects non-monotone row pointers, column indices out
// of range, and a Values slice whose length disagrees with the block count.
func NewBSRMatrix(blockRows, blockSize int, values []float64, cols []int32, rowPtrs []int32) (*BSRMatrix, error) {
	if blockRows < 1 {
		return nil, fmt.Errorf("bsr: blockRows must be >= 1, got %d", blockRows)
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("bsr: blockSize must be >= 1, got %d", blockSize)
	}
	if len(rowPtrs) != blockRows+1 {
		return nil, fmt.Errorf("bsr: len(rowPtrs)=%d, want blockRows+1=%d", len(rowPtrs), blockRows+1)
	}
	if rowPtrs[0] != 0 {
		return nil, fmt.Errorf("bsr: rowPtrs[0]=%d, want 0", rowPtrs[0])
	}
	for i := 0; i < blockRows; i++ {
		if rowPtrs[i+1] < rowPtrs[i] {
			return nil, fmt.Errorf("bsr: rowPtrs not non-decreasing at row %d (%d -> %d)", i, rowPtrs[i], rowPtrs[i+1])
		}
	}
	nnzb := int(rowPtrs[blockRows])
	if len(cols) != nnzb {
		return nil, fmt.Errorf("bsr: len(cols)=%d, want rowPtrs[blockRows]=%d", len(cols), nnzb)
	}
	if len(values) != nnzb*blockSize*blockSize {
		return nil, fmt.Errorf("bsr: len(values)=%d, want nnzBlocks*blockSize^2=%d", len(values), nnzb*blockSize*blockSize)
	}
	for i, c := range cols {
		if c < 0 || int(c) >= blockRows {
			return nil, fmt.Errorf("bsr: cols[%d]=%d out of range [0,%d)", i, c, blockRows)
		}
	}
	return &BSRMatrix{
		BlockRows: blockRows,
		BlockSize: blockSize,
		Values:    values,
		Cols:      cols,
		RowPtrs:   rowPtrs,
	}, nil
}

// NNZBlocks returns the number of stored nonzero blocks.
func (m *BSRMatrix) NNZBlocks() int { return int(m.RowPtrs[m.BlockRows]) }

// Rows returns the number of scalar rows, BlockRows*BlockSize.
func (m *BSRMatrix) Rows() int { return m.BlockRows * m.BlockSize }

// Block returns the values of the k-th stored block as a row-major slice view.
func (m *BSRMatrix) Block(k int) []float64 {
	bs2 := m.BlockSize * m.BlockSize
	return m.Values[k*bs2 : (k+1)*bs2]
}

// At returns the scalar entry at global row i, column j, searching the block
// row linearly. Intended for reference computations and tests, not kernels.
func (m *BSRMatrix) At(i, j int) float64 {
	bs := m.BlockSize
	br := i / bs
	bc := j / bs
	for k := m.RowPtrs[br]; k < m.RowPtrs[br+1]; k++ {
		if int(m.Cols[k]) == bc {
			return m.Block(int(k))[(i%bs)*bs+(j%bs)]
		}
	}
	return 0
}

// RandomBSR builds a deterministic random block-sparse matrix with a diagonal
// block in every block row plus up to extraPerRow off-diagonal blocks. The
// diagonal blocks are made dominant so the matrix is usable as a solver test
// system as well as a kernel input.
func RandomBSR(blockRows, blockSize, extraPerRow int, seed int64) *BSRMatrix {
	rng := rand.New(rand.NewSource(seed))
	bs2 := blockSize * blockSize

	rowPtrs := make([]int32, blockRows+1)
	var cols []int32
	for br := 0; br < blockRows; br++ {
		seen := map[int32]bool{int32(br): true}
		rowCols := []int32{int32(br)}
		for e := 0; e < extraPerRow; e++ {
			c := int32(rng.Intn(blockRows))
			if !seen[c] {
				seen[c] = true
				rowCols = append(rowCols, c)
			}
		}
		// keep block columns ascending within the row
		for i := 1; i < len(rowCols); i++ {
			for j := i; j > 0 && rowCols[j] < rowCols[j-1]; j-- {
				rowCols[j], rowCols[j-1] = rowCols[j-1], rowCols[j]
			}
		}
		cols = append(cols, rowCols...)
		rowPtrs[br+1] = rowPtrs[br] + int32(len(rowCols))
	}

	values := make([]float64, len(cols)*bs2)
	for br := 0; br < blockRows; br++ {
		for k := rowPtrs[br]; k < rowPtrs[br+1]; k++ {
			blk := values[int(k)*bs2 : (int(k)+1)*bs2]
			for i := range blk {
				blk[i] = rng.Float64()*2 - 1
			}
			if int(cols[k]) == br {
				for d := 0; d < blockSize; d++ {
					blk[d*blockSize+d] += float64(blockSize * (extraPerRow + 2))
				}
			}
		}
	}

	m, err := NewBSRMatrix(blockRows, blockSize, values, cols, rowPtrs)
	if err != nil {
		panic(fmt.Sprintf("RandomBSR produced invalid matrix: %v", err))
	}
	return m
}
