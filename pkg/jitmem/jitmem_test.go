//go:build linux

package jitmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeIterCode is "mov [rsi], rdi; ret" (48 89 3E C3): it writes the
// iter argument straight through to the out-pointer, exercising the full
// mmap -> mprotect -> callAsm round trip without any instruction-under-
// test machinery.
var storeIterCode = []byte{0x48, 0x89, 0x3E, 0xC3}

func TestLoad_RoundTripsIterThroughOutPointer(t *testing.T) {
	fn, err := Load(storeIterCode)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, fn.Release())
	}()

	assert.Equal(t, uint64(7), fn.Call(7))
	assert.Equal(t, uint64(0), fn.Call(0))
	assert.Equal(t, uint64(123456), fn.Call(123456))
}

func TestLoad_RejectsEmptyCode(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorIs(t, err, ErrAlloc)
}

func TestRelease_IdempotentAfterNilPage(t *testing.T) {
	fn, err := Load(storeIterCode)
	require.NoError(t, err)
	require.NoError(t, fn.Release())
	// Second release is a no-op, not a double-unmap panic.
	assert.NoError(t, fn.Release())
}

func TestFunc_Size(t *testing.T) {
	fn, err := Load(storeIterCode)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, fn.Release())
	}()
	assert.Equal(t, "4.00 KB", fn.Size().Humanized())
}

func TestPageAlign(t *testing.T) {
	assert.Equal(t, 4096, pageAlign(1))
	assert.Equal(t, 4096, pageAlign(4096))
	assert.Equal(t, 8192, pageAlign(4097))
	assert.Equal(t, 0, pageAlign(0))
}
