package cult

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, 0.0, Round(-5.0))
	assert.Equal(t, 0.0, Round(-0.001))
}

func TestRound_LowFractionSnapsDown(t *testing.T) {
	assert.Equal(t, 3.0, Round(3.05))
	assert.Equal(t, 3.0, Round(3.12))
}

func TestRound_OneToTwentyBand(t *testing.T) {
	t.Run("n_greater_than_one_snaps_down", func(t *testing.T) {
		assert.Equal(t, 2.0, Round(2.20))
	})
	t.Run("n_one_or_less_snaps_to_point_two", func(t *testing.T) {
		assert.Equal(t, 1.20, Round(1.20))
		assert.Equal(t, 0.20, Round(0.20))
	})
}

func TestRound_QuarterThirdHalfBands(t *testing.T) {
	assert.Equal(t, 4.25, Round(4.28))
	assert.Equal(t, 4.33, Round(4.38))
	assert.Equal(t, 4.50, Round(4.57))
	assert.Equal(t, 4.66, Round(4.70))
	assert.Equal(t, 5.00, Round(4.71))
}

func TestRound_HighIntegerBand(t *testing.T) {
	t.Run("large_n_small_fraction_floors", func(t *testing.T) {
		assert.Equal(t, 60.0, Round(60.10))
	})
	t.Run("large_n_large_fraction_rounds_up", func(t *testing.T) {
		assert.Equal(t, 61.0, Round(60.13))
	})
	t.Run("boundary_n_exactly_fifty", func(t *testing.T) {
		assert.Equal(t, 50.0, Round(50.10))
		assert.Equal(t, 51.0, Round(50.13))
	})
}

func TestRound_Idempotent(t *testing.T) {
	for _, v := range []float64{0, 1.2, 3.33, 4.5, 4.66, 5.0, 60.0} {
		once := Round(v)
		twice := Round(once)
		assert.Equal(t, once, twice, "Round should be idempotent for %v", v)
	}
}
