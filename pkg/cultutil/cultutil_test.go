package cultutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	haystack := []string{"add", "sub", "vaddps"}
	assert.True(t, Contains(haystack, "sub"))
	assert.False(t, Contains(haystack, "mov"))
	assert.False(t, Contains(nil, "add"))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 0, ClampInt(-5, 0, 10))
	assert.Equal(t, 10, ClampInt(50, 0, 10))
	assert.Equal(t, 5, ClampInt(5, 0, 10))
}

func TestSafeDiv(t *testing.T) {
	assert.InDelta(t, 2.5, SafeDiv(5, 2), 1e-12)
	assert.Equal(t, 0.0, SafeDiv(5, 0))
}

func TestHzToMHz(t *testing.T) {
	assert.InDelta(t, 2400.0, HzToMHz(2.4e9), 1e-6)
}
