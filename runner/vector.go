package runner

import (
	"fmt"
	"unsafe"
)

// Vector is a device-resident flat vector of float64 scalars. For a blocked
// system its length is blockRows*blockSize; a coarse-level vector has block
// size 1.
type Vector struct {
	ctx *Context
	n   int
	mem deviceMemory
}

// NewVector allocates a zeroed device vector of length n.
func (c *Context) NewVector(n int) (*Vector, error) {
	return c.NewVectorFrom(make([]float64, n))
}

// NewVectorFrom allocates a device vector seeded with data.
func (c *Context) NewVectorFrom(data []float64) (*Vector, error) {
	const op = "NewVector"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: length must be positive", op)
	}
	mem, err := c.backend.malloc(int64(len(data)*8), unsafe.Pointer(&data[0]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Vector{ctx: c, n: len(data), mem: mem}, nil
}

// Len returns the scalar length.
func (v *Vector) Len() int { return v.n }

// Upload replaces the device contents with data, which must match the length.
func (v *Vector) Upload(data []float64) error {
	if len(data) != v.n {
		return fmt.Errorf("Upload: length %d does not match vector length %d", len(data), v.n)
	}
	v.mem.copyFrom(unsafe.Pointer(&data[0]), int64(v.n*8))
	return nil
}

// Download copies the device contents into dst, which must match the length.
func (v *Vector) Download(dst []float64) error {
	if len(dst) != v.n {
		return fmt.Errorf("Download: length %d does not match vector length %d", len(dst), v.n)
	}
	v.mem.copyTo(unsafe.Pointer(&dst[0]), int64(v.n*8))
	return nil
}

// Free releases the device memory.
func (v *Vector) Free() {
	if v.mem != nil {
		v.mem.free()
		v.mem = nil
	}
}

// IndexMap is a device-resident gather map for ProlongateVector: entry i
// names the coarse index contributing to fine row i. The maximum index is
// captured at upload so launches can validate it against the coarse vector
// without a device read-back.
type IndexMap struct {
	ctx *Context
	n   int
	max int32
	mem deviceMemory
}

// NewIndexMap uploads a column gather map to the device. Negative entries
// are rejected.
func (c *Context) NewIndexMap(cols []int32) (*IndexMap, error) {
	const op = "NewIndexMap"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: length must be positive", op)
	}
	var max int32
	for i, v := range cols {
		if v < 0 {
			return nil, fmt.Errorf("%s: cols[%d]=%d is negative", op, i, v)
		}
		if v > max {
			max = v
		}
	}
	mem, err := c.backend.malloc(int64(len(cols)*4), unsafe.Pointer(&cols[0]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &IndexMap{ctx: c, n: len(cols), max: max, mem: mem}, nil
}

// Len returns the number of fine rows the map covers.
func (m *IndexMap) Len() int { return m.n }

// Free releases the device memory.
func (m *IndexMap) Free() {
	if m.mem != nil {
		m.mem.free()
		m.mem = nil
	}
}
