// Package runner owns the device execution context and the accelerated
// kernels for the block-sparse linear solve: sparse matrix-vector product,
// residual, the pressure two-level transfer operations, and an elementwise
// fused multiply-accumulate.
//
// Every operation is synchronous: the device queue is drained before the call
// returns, so each call's side effects are fully visible to the next. Device
// failures are not retried; they surface as errors carrying the backend's own
// diagnostic text.
package runner

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// VerbosityTiming is the verbosity level at and above which every kernel
// invocation logs its elapsed wall time.
const VerbosityTiming = 4

// defaultWorkGroupSize matches the reference launch geometry.
const defaultWorkGroupSize = 64

// Config configures a Context.
type Config struct {
	// DeviceProps is an OCCA device properties JSON string, e.g.
	// `{"mode": "CUDA", "device_id": 0}`. Empty selects the first backend
	// that can be created, in preference order CUDA, HIP, OpenMP, Serial.
	DeviceProps string

	// WorkGroupSize is the thread count per cooperating group. The shared
	// memory reductions fold the group by repeated halving, so the size must
	// be a power of two; other values are rounded up to the next power of
	// two. Zero selects the default of 64.
	WorkGroupSize int

	// WarpWidth overrides the cooperative-execution width resolved from the
	// device mode. Zero resolves it automatically: 64 on HIP, 32 elsewhere.
	WarpWidth int

	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Context is the execution context shared by all kernels: the device, the
// compiled kernels, the resolved launch geometry, and the verbosity level.
// A Context is created once, initialized once, and never reset; independent
// contexts may coexist in-process.
//
// Calling operations before Init, or after Free, returns an error rather
// than undefined behavior.
type Context struct {
	backend     deviceBackend
	backendErr  error
	kernels     map[string]deviceKernel
	log         *zap.Logger
	wgSize      int
	warpWidth   int
	verbosity   int
	initialized bool
}

// NewContext creates the device for cfg. When the library was built without
// device support, or no backend can be created, the returned Context is still
// usable as a handle: every operation on it fails fast with an error naming
// the operation and wrapping ErrNoDevice.
func NewContext(cfg Config) *Context {
	c := &Context{
		log:    cfg.Logger,
		wgSize: cfg.WorkGroupSize,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.wgSize <= 0 {
		c.wgSize = defaultWorkGroupSize
	}
	c.wgSize = nextPowTwo(c.wgSize)
	c.warpWidth = cfg.WarpWidth

	c.backend, c.backendErr = newBackend(cfg.DeviceProps)
	if c.backendErr != nil {
		c.log.Warn("no device backend", zap.Error(c.backendErr))
		return c
	}

	if c.warpWidth <= 0 {
		c.warpWidth = resolveWarpWidth(c.backend.mode())
	}
	return c
}

// nextPowTwo rounds v up to the nearest power of two. A non-power-of-two
// group would drop partial sums in the halving reductions.
func nextPowTwo(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// resolveWarpWidth maps the device mode to its native cooperative-execution
// width. CPU backends have no hardware warp; they get the CUDA width so the
// blocked reduction geometry is exercised identically in tests.
func resolveWarpWidth(mode string) int {
	if mode == "HIP" {
		return 64
	}
	return 32
}

// Available reports whether a device backend is attached.
func (c *Context) Available() bool { return c.backend != nil }

// Mode returns the device backend name, or "" when unavailable.
func (c *Context) Mode() string {
	if c.backend == nil {
		return ""
	}
	return c.backend.mode()
}

// WarpWidth returns the resolved cooperative-execution width.
func (c *Context) WarpWidth() int { return c.warpWidth }

// Init compiles all kernels and records the verbosity level. It is
// idempotent: a second call logs a diagnostic and leaves the context
// unchanged.
func (c *Context) Init(verbosity int) error {
	if c.initialized {
		c.log.Debug("context already initialized")
		return nil
	}
	c.verbosity = verbosity

	if c.backend != nil {
		kernels, err := c.compileKernels()
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		c.kernels = kernels
	}

	c.initialized = true
	return nil
}

func (c *Context) compileKernels() (map[string]deviceKernel, error) {
	source := renderKernelSource(c.wgSize, c.warpWidth)
	kernels := make(map[string]deviceKernel, len(kernelNames))
	for _, name := range kernelNames {
		k, err := c.backend.buildKernel(source, name)
		if err != nil {
			for _, built := range kernels {
				built.free()
			}
			return nil, err
		}
		kernels[name] = k
	}
	return kernels, nil
}

// ready gates every operation entry point.
func (c *Context) ready(op string) error {
	if c.backend == nil {
		return fmt.Errorf("%s: %w", op, c.backendErr)
	}
	if !c.initialized {
		return fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	return nil
}

// launch runs a compiled kernel, drains the queue, and emits the per-call
// timing line when verbosity allows. Timing never affects results.
func (c *Context) launch(op, kernelName string, args ...interface{}) error {
	if err := c.ready(op); err != nil {
		return err
	}
	start := time.Now()

	if err := c.kernels[kernelName].run(args...); err != nil {
		return fmt.Errorf("%s: kernel launch failed: %w", op, err)
	}
	if err := c.backend.finish(); err != nil {
		return fmt.Errorf("%s: device synchronization failed: %w", op, err)
	}

	if c.verbosity >= VerbosityTiming {
		c.log.Info("kernel time",
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Free releases all kernels and the device. The context is unusable after.
func (c *Context) Free() {
	for _, k := range c.kernels {
		k.free()
	}
	c.kernels = nil
	if c.backend != nil {
		c.backend.free()
		c.backend = nil
		c.backendErr = fmt.Errorf("%w: context freed", ErrNoDevice)
	}
}
