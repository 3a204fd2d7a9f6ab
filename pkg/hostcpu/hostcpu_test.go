package hostcpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/cult/pkg/xasm"
)

func TestDetect_NeverErrorsOnLinux(t *testing.T) {
	info, err := Detect()
	require.NoError(t, err)
	assert.NotEmpty(t, info.VendorID)
	assert.NotEmpty(t, info.BrandName)
}

func TestDetect_BaselineFeaturesAlwaysSet(t *testing.T) {
	info, err := Detect()
	require.NoError(t, err)
	// CMOV/MMX/SSE are mandatory amd64 baseline and carry no dedicated
	// golang.org/x/sys/cpu field, so detectFeatures always sets them.
	assert.NotZero(t, info.Features&xasm.FeatCMOV)
	assert.NotZero(t, info.Features&xasm.FeatMMX)
	assert.NotZero(t, info.Features&xasm.FeatSSE)
}

func TestSplitCPUInfoLine(t *testing.T) {
	t.Run("normal_line", func(t *testing.T) {
		key, val, ok := splitCPUInfoLine("vendor_id\t: GenuineIntel")
		assert.True(t, ok)
		assert.Equal(t, "vendor_id", key)
		assert.Equal(t, "GenuineIntel", val)
	})
	t.Run("no_colon", func(t *testing.T) {
		_, _, ok := splitCPUInfoLine("processor")
		assert.False(t, ok)
	})
	t.Run("model_name_spacing", func(t *testing.T) {
		key, val, ok := splitCPUInfoLine("model name\t: Some CPU @ 3.00GHz")
		assert.True(t, ok)
		assert.Equal(t, "model name", key)
		assert.Equal(t, "Some CPU @ 3.00GHz", val)
	})
}
