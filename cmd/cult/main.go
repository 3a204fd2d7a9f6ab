// Command cult measures the latency and reciprocal throughput of a
// representative set of x86/x86-64 instructions on the host it runs on,
// and reports the results as a single JSON document.
//
// Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ja7ad/cult/pkg/affinity"
	"github.com/ja7ad/cult/pkg/cult"
	"github.com/ja7ad/cult/pkg/cultcfg"
	"github.com/ja7ad/cult/pkg/hostcpu"
	"github.com/ja7ad/cult/pkg/report"
	"github.com/ja7ad/cult/pkg/xasm"
)

type opts struct {
	quiet     bool
	noRound   bool
	inst      string
	output    string
	config    string
	cpu       int
	precision string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "cult",
		Short: "x86/x86-64 instruction latency and throughput measurement tool",
		Long: `cult JIT-compiles short probe kernels for individual x86/x86-64
instructions and times them under the time-stamp counter, reporting each
instruction's latency and reciprocal throughput in CPU cycles.

Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.

* GitHub: https://github.com/ja7ad/cult

Examples:
  cult --output report.json
  cult --inst vaddps --no-round
  cult --config cult.yaml --precision estimate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	root.Flags().BoolVar(&o.quiet, "quiet", false, "suppress progress logging")
	root.Flags().BoolVar(&o.noRound, "no-round", false, "report raw cycle estimates instead of canonical fractional values")
	root.Flags().StringVar(&o.inst, "inst", "", "measure only this instruction mnemonic")
	root.Flags().StringVar(&o.output, "output", "", "write the JSON report to this path instead of stdout")
	root.Flags().StringVar(&o.config, "config", "", "optional YAML config file, layered underneath these flags")
	root.Flags().IntVar(&o.cpu, "cpu", -1, "pin measurement to this logical CPU (-1 = no pinning)")
	root.Flags().StringVar(&o.precision, "precision", "precise", "harness precision mode: precise|estimate")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(o opts) error {
	cfg, err := cultcfg.Load(o.config)
	if err != nil {
		return err
	}
	applyFlags(&cfg, o)
	if !cfg.PrecisionValid() {
		return fmt.Errorf("cult: invalid --precision %q", cfg.Precision)
	}

	level := slog.LevelInfo
	if cfg.Quiet {
		level = slog.LevelWarn
	}
	slog.SetLogLoggerLevel(level)

	if cfg.CPU >= 0 {
		if !affinity.Available(cfg.CPU) {
			return fmt.Errorf("cult: cpu %d is not an online logical CPU", cfg.CPU)
		}
		unpin, err := affinity.Pin(cfg.CPU)
		if err != nil {
			return fmt.Errorf("cult: %w", err)
		}
		defer unpin()
	}

	host, err := hostcpu.Detect()
	if err != nil {
		return fmt.Errorf("cult: detect host cpu: %w", err)
	}
	slog.Info("detected host", "vendor", host.VendorID, "brand", host.BrandName)

	precision := cult.PrecisionPrecise
	if cfg.Precision == "estimate" {
		precision = cult.PrecisionEstimate
	}

	asm := xasm.NewAssembler()
	oracle := cult.NewOracle(asm, xasm.ArchX64, host.Features)
	driver := cult.NewDriver(asm, oracle, xasm.ArchX64, host.HasRdtscp, 16, 0x10000, precision, cfg.NoRound)

	var results []cult.Result
	if len(cfg.Instructions) > 0 {
		for _, name := range cfg.Instructions {
			r, err := measureNamed(driver, name)
			if err != nil {
				return err
			}
			results = append(results, r...)
		}
	} else {
		results = driver.RunAll()
	}

	records := make([]report.Record, 0, len(results))
	for _, r := range results {
		records = append(records, report.Record{Inst: r.Text(), Lat: r.Lat, Rcp: r.Rcp})
	}

	doc := report.NewDocument(report.CPUInfo{
		Vendor:    host.VendorID,
		Brand:     host.BrandName,
		Features:  featureNames(host.Features),
		TSCFreqHz: uint64(host.TSCHz),
	}, records)

	out := os.Stdout
	if cfg.Output != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return fmt.Errorf("cult: %w", err)
		}
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("cult: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	return report.Write(out, doc)
}

func applyFlags(cfg *cultcfg.Config, o opts) {
	if o.quiet {
		cfg.Quiet = true
	}
	if o.noRound {
		cfg.NoRound = true
	}
	if o.output != "" {
		cfg.Output = o.output
	}
	if o.cpu >= 0 {
		cfg.CPU = o.cpu
	}
	if o.precision != "" && o.precision != "precise" {
		cfg.Precision = o.precision
	}
	if o.inst != "" {
		cfg.Instructions = []string{o.inst}
	}
}

// measureNamed resolves name to an instruction id and measures it alone,
// exiting with the CLI-facing ErrInvalidInstruction for an unknown
// mnemonic.
func measureNamed(driver *cult.Driver, name string) ([]cult.Result, error) {
	id, ok := xasm.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", cult.ErrInvalidInstruction, name)
	}
	return driver.RunInst(id), nil
}

func featureNames(f xasm.Feature) []string {
	named := []struct {
		bit  xasm.Feature
		name string
	}{
		{xasm.FeatCMOV, "cmov"}, {xasm.FeatMMX, "mmx"}, {xasm.FeatSSE, "sse"},
		{xasm.FeatSSE2, "sse2"}, {xasm.FeatSSE3, "sse3"}, {xasm.FeatSSSE3, "ssse3"},
		{xasm.FeatSSE41, "sse4.1"}, {xasm.FeatSSE42, "sse4.2"}, {xasm.FeatPOPCNT, "popcnt"},
		{xasm.FeatLZCNT, "lzcnt"}, {xasm.FeatBMI1, "bmi1"}, {xasm.FeatBMI2, "bmi2"},
		{xasm.FeatADX, "adx"}, {xasm.FeatAVX, "avx"}, {xasm.FeatAVX2, "avx2"},
		{xasm.FeatFMA, "fma"}, {xasm.FeatF16C, "f16c"}, {xasm.FeatAVX512F, "avx512f"},
		{xasm.FeatAVX512BW, "avx512bw"}, {xasm.FeatAVX512DQ, "avx512dq"},
		{xasm.FeatAVX512VL, "avx512vl"}, {xasm.FeatRDRAND, "rdrand"},
		{xasm.FeatRDSEED, "rdseed"}, {xasm.FeatRDTSCP, "rdtscp"},
	}
	var out []string
	for _, n := range named {
		if f&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}
