package cult

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHarnessConfig_PreciseMode(t *testing.T) {
	cfg := DefaultHarnessConfig(PrecisionPrecise, false)
	assert.Equal(t, 160, cfg.NIter)
	assert.InDelta(t, 0.04, cfg.Significant, 1e-12)
	assert.Equal(t, 50_000, cfg.MaxStable)
}

func TestDefaultHarnessConfig_PreciseModeCpuidLike(t *testing.T) {
	cfg := DefaultHarnessConfig(PrecisionPrecise, true)
	assert.Equal(t, 4, cfg.NIter)
}

func TestDefaultHarnessConfig_EstimateMode(t *testing.T) {
	cfg := DefaultHarnessConfig(PrecisionEstimate, false)
	assert.Equal(t, 160, cfg.NIter)
	assert.InDelta(t, 0.25, cfg.Significant, 1e-12)
	assert.Equal(t, 1_000, cfg.MaxStable)
}

func TestDefaultHarnessConfig_EstimateModeCpuidLike(t *testing.T) {
	cfg := DefaultHarnessConfig(PrecisionEstimate, true)
	assert.Equal(t, 40, cfg.NIter)
}

// TestMeasure_ConvergesToMinimum exercises the convergence loop against a
// deterministic synthetic probe whose returned cycle count decays then
// holds steady, verifying the running-minimum and early-stop-on-stable
// behavior.
func TestMeasure_ConvergesToMinimum(t *testing.T) {
	cfg := HarnessConfig{NIter: 1, Significant: 1.0, MaxStable: 3, MaxIterations: 1000}

	calls := 0
	values := []uint64{100, 90, 80, 80, 80, 80, 80, 80, 80}
	run := func(iter uint32, _ HarnessConfig) uint64 {
		v := values[calls]
		if calls < len(values)-1 {
			calls++
		}
		return v
	}

	got := Measure(run, cfg)
	// best settles at 80; nIter*UnrollFactor divides it.
	want := 80.0 / float64(cfg.NIter*UnrollFactor)
	assert.InDelta(t, want, got, 1e-9)
	// Converges well before exhausting every synthetic value.
	require.Less(t, calls, len(values))
}

func TestMeasure_NeverImprovingStillStops(t *testing.T) {
	cfg := HarnessConfig{NIter: 1, Significant: 0.5, MaxStable: 5, MaxIterations: 1000}
	run := func(iter uint32, _ HarnessConfig) uint64 { return 42 }

	got := Measure(run, cfg)
	want := 42.0 / float64(cfg.NIter*UnrollFactor)
	assert.InDelta(t, want, got, 1e-9)
}

func TestOverhead_ClampsNegativeToZero(t *testing.T) {
	assert.Equal(t, 0.0, Overhead(5.0, 8.0))
	assert.InDelta(t, 3.0, Overhead(8.0, 5.0), 1e-12)
}

func TestCombine_ClampsLatencyUpToThroughput(t *testing.T) {
	lat, rcp := Combine(2.0, 5.0)
	assert.Equal(t, 5.0, lat)
	assert.Equal(t, 5.0, rcp)

	lat2, rcp2 := Combine(5.0, 2.0)
	assert.Equal(t, 5.0, lat2)
	assert.Equal(t, 2.0, rcp2)
}

func TestClamp0(t *testing.T) {
	assert.Equal(t, 0.0, Clamp0(-1.0))
	assert.Equal(t, 0.0, Clamp0(0.0))
	assert.Equal(t, 3.5, Clamp0(3.5))
}
