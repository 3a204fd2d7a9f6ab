//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable(t *testing.T) {
	assert.True(t, Available(0))
	assert.False(t, Available(-1))
	assert.False(t, Available(runtime.NumCPU()))
	assert.True(t, Available(runtime.NumCPU()-1))
}

func TestPin_NegativeCPUOnlyLocksThread(t *testing.T) {
	unpin, err := Pin(-1)
	require.NoError(t, err)
	require.NotNil(t, unpin)
	unpin()
}

func TestPin_ValidCPU(t *testing.T) {
	unpin, err := Pin(0)
	require.NoError(t, err)
	require.NotNil(t, unpin)
	unpin()
}
