package cultcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, -1, cfg.CPU)
	assert.Equal(t, "precise", cfg.Precision)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.NoRound)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cult.yaml")
	body := "instructions:\n  - add\n  - vaddps\ncpu: 2\nprecision: estimate\nquiet: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "vaddps"}, cfg.Instructions)
	assert.Equal(t, 2, cfg.CPU)
	assert.Equal(t, "estimate", cfg.Precision)
	assert.True(t, cfg.Quiet)
	// no_round wasn't set in the file: default carries through.
	assert.False(t, cfg.NoRound)
}

func TestPrecisionValid(t *testing.T) {
	assert.True(t, Config{Precision: "precise"}.PrecisionValid())
	assert.True(t, Config{Precision: "estimate"}.PrecisionValid())
	assert.False(t, Config{Precision: "fast"}.PrecisionValid())
	assert.False(t, Config{}.PrecisionValid())
}
