package cult

import "math"

// Precision selects the tuning constants the measurement harness uses
// for nIter/SIGNIFICANT/MAX_STABLE. Callers can expose these as
// configuration rather than hardcoding one precision tier.
type Precision uint8

const (
	PrecisionPrecise Precision = iota
	PrecisionEstimate
)

// HarnessConfig carries the measurement loop's tunables.
// cultcfg.Config.Precision selects between these precise-mode defaults
// and the looser estimate-mode constants.
type HarnessConfig struct {
	NIter          int
	Significant    float64
	MaxStable      int
	MaxIterations  int
}

// DefaultHarnessConfig returns the nIter/SIGNIFICANT/MAX_STABLE tuning for
// one instruction under one precision mode. cpuidLike marks the
// cpuid/rdrand/rdseed instructions, which use a much smaller iteration
// count.
func DefaultHarnessConfig(precision Precision, cpuidLike bool) HarnessConfig {
	const maxIterations = 5_000_000

	if precision == PrecisionEstimate {
		n := 160
		if cpuidLike {
			n = 40
		}
		return HarnessConfig{
			NIter:         n,
			Significant:   0.25,
			MaxStable:     1_000,
			MaxIterations: maxIterations,
		}
	}
	n := 160
	if cpuidLike {
		n = 4
	}
	return HarnessConfig{
		NIter:         n,
		Significant:   0.04,
		MaxStable:     50_000,
		MaxIterations: maxIterations,
	}
}

// ProbeFunc is the callable shape Measure drives: one call runs the probe
// for iter loop iterations and returns the elapsed cycle count. The driver
// wraps pkg/jitmem.Func.Call in a closure of this type.
type ProbeFunc func(iter uint32, cfg HarnessConfig) uint64

// Measure runs the measurement loop: call repeatedly, track the running
// minimum, stop once no significant improvement has occurred for
// MaxStable tries or MaxIterations is hit. It returns
// cycles_per_inst = best / (nIter * UnrollFactor).
func Measure(run ProbeFunc, cfg HarnessConfig) float64 {
	best := run(uint32(cfg.NIter), cfg)
	checkpoint := best
	tries := 0

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		n := run(uint32(cfg.NIter), cfg)
		if n < best {
			best = n
		}
		if checkpoint > best && float64(checkpoint-best)/float64(cfg.NIter*UnrollFactor) >= cfg.Significant {
			tries = 0
			checkpoint = best
		} else {
			tries++
		}
		if tries >= cfg.MaxStable {
			break
		}
	}

	return float64(best) / float64(cfg.NIter*UnrollFactor)
}

// Overhead computes the net per-instance cycle cost after subtracting an
// overhead-twin measurement: max(0, measured - overhead).
func Overhead(measured, overhead float64) float64 {
	v := measured - overhead
	if v < 0 {
		return 0
	}
	return v
}

// Combine applies the final combination rule: if the parallel
// (throughput) measurement exceeds the serial (latency) one — physically
// impossible — clamp latency up to match, so lat >= rcp always holds
// after combination.
func Combine(lat, rcp float64) (float64, float64) {
	if rcp > lat {
		lat = rcp
	}
	return lat, rcp
}

// Clamp0 zeroes a negative cycle value: negative post-overhead values
// are clamped to 0.
func Clamp0(v float64) float64 { return math.Max(0, v) }
