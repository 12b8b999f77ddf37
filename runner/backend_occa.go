//go:build occa

package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// defaultDeviceProps is the backend preference order tried when Config leaves
// DeviceProps empty: discrete devices first, then threaded CPU, then serial.
var defaultDeviceProps = []string{
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "HIP", "device_id": 0}`,
	`{"mode": "OpenMP"}`,
	`{"mode": "Serial"}`,
}

type occaBackend struct {
	device *gocca.OCCADevice
}

func newBackend(deviceProps string) (deviceBackend, error) {
	if deviceProps != "" {
		device, err := gocca.NewDevice(deviceProps)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return &occaBackend{device: device}, nil
	}
	for _, props := range defaultDeviceProps {
		if device, err := gocca.NewDevice(props); err == nil {
			return &occaBackend{device: device}, nil
		}
	}
	return nil, fmt.Errorf("%w: no OCCA backend could be created", ErrNoDevice)
}

func (b *occaBackend) mode() string { return b.device.Mode() }

func (b *occaBackend) malloc(bytes int64, src unsafe.Pointer) (deviceMemory, error) {
	mem := b.device.Malloc(bytes, src, nil)
	if mem == nil {
		return nil, fmt.Errorf("device malloc of %d bytes failed", bytes)
	}
	return &occaMemory{mem: mem}, nil
}

func (b *occaBackend) buildKernel(source, name string) (deviceKernel, error) {
	var (
		kernel *gocca.OCCAKernel
		err    error
	)
	if b.device.Mode() == "OpenMP" {
		// OCCA does not pass a default optimization flag to OpenMP
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = b.device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = b.device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", name)
	}
	return &occaKernel{kernel: kernel}, nil
}

func (b *occaBackend) finish() error {
	b.device.Finish()
	return nil
}

func (b *occaBackend) free() { b.device.Free() }

type occaMemory struct {
	mem *gocca.OCCAMemory
}

func (m *occaMemory) copyFrom(src unsafe.Pointer, bytes int64) { m.mem.CopyFrom(src, bytes) }
func (m *occaMemory) copyTo(dst unsafe.Pointer, bytes int64)   { m.mem.CopyTo(dst, bytes) }
func (m *occaMemory) free()                                    { m.mem.Free() }

type occaKernel struct {
	kernel *gocca.OCCAKernel
}

func (k *occaKernel) run(args ...interface{}) error {
	// unwrap device memory handles into their gocca form
	unwrapped := make([]interface{}, len(args))
	for i, a := range args {
		if m, ok := a.(*occaMemory); ok {
			unwrapped[i] = m.mem
		} else {
			unwrapped[i] = a
		}
	}
	return k.kernel.RunWithArgs(unwrapped...)
}

func (k *occaKernel) free() { k.kernel.Free() }
