package runner

import (
	"fmt"
	"unsafe"

	"github.com/flowaccel/bsrkernel/types"
)

// Matrix is a device-resident block-compressed-row matrix: the three BSR
// arrays uploaded to device memory plus the host-side shape. The kernels
// only read it; assembly and ownership stay with the caller's host matrix.
type Matrix struct {
	ctx       *Context
	blockRows int
	blockSize int
	nnzb      int
	vals      deviceMemory
	cols      deviceMemory
	rows      deviceMemory
}

// UploadMatrix copies a validated host BSR matrix to the device.
func (c *Context) UploadMatrix(m *types.BSRMatrix) (*Matrix, error) {
	const op = "UploadMatrix"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if c.warpWidth < m.BlockSize*m.BlockSize {
		return nil, fmt.Errorf("%s: block size %d needs %d lanes per block, warp width is only %d",
			op, m.BlockSize, m.BlockSize*m.BlockSize, c.warpWidth)
	}

	vals, err := c.backend.malloc(int64(len(m.Values)*8), unsafe.Pointer(&m.Values[0]))
	if err != nil {
		return nil, fmt.Errorf("%s: values: %w", op, err)
	}
	cols, err := c.backend.malloc(int64(len(m.Cols)*4), unsafe.Pointer(&m.Cols[0]))
	if err != nil {
		vals.free()
		return nil, fmt.Errorf("%s: cols: %w", op, err)
	}
	rows, err := c.backend.malloc(int64(len(m.RowPtrs)*4), unsafe.Pointer(&m.RowPtrs[0]))
	if err != nil {
		vals.free()
		cols.free()
		return nil, fmt.Errorf("%s: rowPtrs: %w", op, err)
	}

	return &Matrix{
		ctx:       c,
		blockRows: m.BlockRows,
		blockSize: m.BlockSize,
		nnzb:      m.NNZBlocks(),
		vals:      vals,
		cols:      cols,
		rows:      rows,
	}, nil
}

// BlockRows returns the number of block rows.
func (m *Matrix) BlockRows() int { return m.blockRows }

// BlockSize returns the dense block dimension.
func (m *Matrix) BlockSize() int { return m.blockSize }

// Rows returns the number of scalar rows.
func (m *Matrix) Rows() int { return m.blockRows * m.blockSize }

// Free releases the three device arrays.
func (m *Matrix) Free() {
	for _, mem := range []deviceMemory{m.vals, m.cols, m.rows} {
		if mem != nil {
			mem.free()
		}
	}
	m.vals, m.cols, m.rows = nil, nil, nil
}
