package runner

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRenderKernelSource_SubstitutesGeometry(t *testing.T) {
	src := renderKernelSource(64, 32)
	assert.False(t, strings.Contains(src, "WGSIZE"), "WGSIZE left unsubstituted")
	assert.False(t, strings.Contains(src, "WARPWIDTH"), "WARPWIDTH left unsubstituted")
	assert.True(t, strings.Contains(src, "tmp[64]"))
	assert.True(t, strings.Contains(src, "tmp[32]"))

	for _, name := range kernelNames {
		assert.True(t, strings.Contains(src, "@kernel void "+name+"("), "missing kernel %s", name)
	}
}

func TestResolveWarpWidth(t *testing.T) {
	assert.Equal(t, 64, resolveWarpWidth("HIP"))
	assert.Equal(t, 32, resolveWarpWidth("CUDA"))
	assert.Equal(t, 32, resolveWarpWidth("OpenMP"))
	assert.Equal(t, 32, resolveWarpWidth("Serial"))
}

func TestNewContext_WorkGroupSizePowerOfTwo(t *testing.T) {
	testCases := []struct {
		requested, want int
	}{
		{0, 64},
		{64, 64},
		{96, 128}, // three warps is not a reducible group
		{100, 128},
		{1, 1},
		{33, 64},
	}
	for _, tc := range testCases {
		ctx := NewContext(Config{WorkGroupSize: tc.requested})
		assert.Equal(t, tc.want, ctx.wgSize, "WorkGroupSize=%d", tc.requested)
		ctx.Free()
	}
}

func TestWarpWidthOverride_SurvivesMissingBackend(t *testing.T) {
	ctx := NewContext(Config{
		DeviceProps: `{"mode": "NoSuchBackend"}`,
		WarpWidth:   64,
	})
	defer ctx.Free()

	require.False(t, ctx.Available())
	assert.Equal(t, 64, ctx.WarpWidth())
}

func TestLaunch_TimingLineAtVerbosity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := NewContext(Config{Logger: zap.New(core)})
	defer ctx.Free()
	if !ctx.Available() {
		t.Skipf("no device backend: %v", ctx.backendErr)
	}
	require.NoError(t, ctx.Init(VerbosityTiming))

	in1, err := ctx.NewVectorFrom([]float64{1, 2, 3})
	require.NoError(t, err)
	defer in1.Free()
	in2, err := ctx.NewVectorFrom([]float64{4, 5, 6})
	require.NoError(t, err)
	defer in2.Free()
	out, err := ctx.NewVectorFrom(make([]float64, 3))
	require.NoError(t, err)
	defer out.Free()

	require.NoError(t, ctx.VMul(2, in1, in2, out))

	timed := logs.FilterMessage("kernel time")
	require.Equal(t, 1, timed.Len(), "each call must log exactly one timing line")
	assert.Equal(t, "VMul", timed.All()[0].ContextMap()["op"])
}

func TestLaunch_NoTimingLineBelowVerbosity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := NewContext(Config{Logger: zap.New(core)})
	defer ctx.Free()
	if !ctx.Available() {
		t.Skipf("no device backend: %v", ctx.backendErr)
	}
	require.NoError(t, ctx.Init(VerbosityTiming-1))

	in, err := ctx.NewVectorFrom([]float64{1, 2})
	require.NoError(t, err)
	defer in.Free()
	out, err := ctx.NewVectorFrom(make([]float64, 2))
	require.NoError(t, err)
	defer out.Free()

	require.NoError(t, ctx.VMul(1, in, in, out))
	assert.Equal(t, 0, logs.FilterMessage("kernel time").Len())
}

func TestInit_Idempotent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := NewContext(Config{Logger: zap.New(core)})
	defer ctx.Free()

	require.NoError(t, ctx.Init(4))
	require.NoError(t, ctx.Init(0), "second Init must be a diagnosed no-op")

	assert.Equal(t, 4, ctx.verbosity, "second Init must not alter verbosity")
	assert.Equal(t, 1,
		logs.FilterMessage("context already initialized").Len(),
		"second Init must log a diagnostic")
}

func TestNoDevice_NamedOperationError(t *testing.T) {
	// An impossible mode yields an unavailable context on every build.
	ctx := NewContext(Config{DeviceProps: `{"mode": "NoSuchBackend"}`})
	defer ctx.Free()

	require.False(t, ctx.Available())
	require.NoError(t, ctx.Init(0))

	_, err := ctx.NewVector(8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDevice))
	assert.Contains(t, err.Error(), "NewVector", "error must name the operation")

	_, err = ctx.NewIndexMap([]int32{0, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDevice))
	assert.Contains(t, err.Error(), "NewIndexMap")
}

// newTestContext returns an initialized context on the first available
// backend, or skips the test when the build carries no device support.
func newTestContext(t *testing.T, cfg Config) *Context {
	t.Helper()
	ctx := NewContext(cfg)
	if !ctx.Available() {
		ctx.Free()
		t.Skipf("no device backend: %v", ctx.backendErr)
	}
	require.NoError(t, ctx.Init(0))
	return ctx
}

func TestNotInitialized(t *testing.T) {
	ctx := NewContext(Config{})
	defer ctx.Free()
	if !ctx.Available() {
		t.Skipf("no device backend: %v", ctx.backendErr)
	}

	_, err := ctx.NewVector(8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInitialized))
}
