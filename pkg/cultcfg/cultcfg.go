// Package cultcfg holds the run configuration cmd/cult assembles from an
// optional YAML file layered underneath CLI flags (SPEC_FULL.md §3's
// ambient configuration addition). gopkg.in/yaml.v3 is already part of
// the teacher's dependency graph; this package is what actually imports
// and exercises it for the first time (see DESIGN.md).
package cultcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables cmd/cult exposes, whether they came
// from a --config file, CLI flags, or the package defaults.
type Config struct {
	Instructions []string `yaml:"instructions"`
	Output       string   `yaml:"output"`
	Quiet        bool     `yaml:"quiet"`
	NoRound      bool     `yaml:"no_round"`
	CPU          int      `yaml:"cpu"`
	Precision    string   `yaml:"precision"`
}

// Default returns the package's built-in defaults, applied before a
// config file or CLI flags are layered on top.
func Default() Config {
	return Config{
		Output:    "",
		Quiet:     false,
		NoRound:   false,
		CPU:       -1,
		Precision: "precise",
	}
}

// Load reads a YAML config file and layers it over Default(). An empty
// path is not an error (cmd/cult treats --config as optional) and returns
// the defaults; a path naming a file that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cultcfg: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("cultcfg: parse %s: %w", path, err)
	}
	return cfg, nil
}

// PrecisionValid reports whether cfg.Precision names a recognized
// harness precision mode ("precise" or "estimate").
func (c Config) PrecisionValid() bool {
	return c.Precision == "precise" || c.Precision == "estimate"
}
