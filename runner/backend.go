package runner

import (
	"errors"
	"unsafe"
)

// ErrNoDevice is returned by every operation when the library was built
// without the occa tag, or when no device backend could be created.
var ErrNoDevice = errors.New("device backend not available")

// ErrNotInitialized is returned by operations invoked before Init.
var ErrNotInitialized = errors.New("context not initialized")

// deviceBackend abstracts the small slice of the device runtime the kernels
// need. The real implementation wraps gocca behind the occa build tag; the
// default build carries a stub so callers get a typed failure instead of a
// link error.
type deviceBackend interface {
	// mode reports the backend name, e.g. "CUDA", "HIP", "OpenMP", "Serial".
	mode() string
	// malloc allocates device memory, optionally seeded from host memory.
	malloc(bytes int64, src unsafe.Pointer) (deviceMemory, error)
	// buildKernel compiles OKL source and returns the named kernel.
	buildKernel(source, name string) (deviceKernel, error)
	// finish blocks until all queued work has completed.
	finish() error
	free()
}

type deviceMemory interface {
	// copyFrom transfers host -> device.
	copyFrom(src unsafe.Pointer, bytes int64)
	// copyTo transfers device -> host.
	copyTo(dst unsafe.Pointer, bytes int64)
	free()
}

type deviceKernel interface {
	run(args ...interface{}) error
	free()
}
