// Package hostcpu detects the running CPU's vendor, brand string, feature
// bits, and approximate TSC frequency. Feature bits are read from
// golang.org/x/sys/cpu; vendor/brand/frequency are scanned out of
// /proc/cpuinfo in the same bufio.Scanner line-walking style used
// elsewhere for /proc/self/mountinfo-style parsing.
package hostcpu

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/cpu"

	"github.com/ja7ad/cult/pkg/xasm"
)

// Info is the detected host's identity and capability snapshot, threaded
// into the classifier so it can build an Oracle with the right Feature
// mask and choose the probe's TSC end bracket (HasRdtscp).
type Info struct {
	VendorID  string
	BrandName string
	Features  xasm.Feature
	TSCHz     float64 // 0 if undetermined
	HasRdtscp bool
}

// Detect reads CPU feature bits from golang.org/x/sys/cpu and scans
// /proc/cpuinfo for vendor_id, model name, and cpu MHz (used as the TSC
// frequency estimate; no TSC calibration is performed).
func Detect() (Info, error) {
	info := Info{
		VendorID:  "unknown",
		BrandName: "unknown",
		Features:  detectFeatures(),
		HasRdtscp: cpu.X86.HasRDTSCP,
	}

	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		// /proc is a Linux-only convenience; feature bits from cpu.X86
		// are still valid without it. Vendor/brand/frequency are
		// best-effort.
		return info, nil
	}
	defer func() {
		_ = f.Close()
	}()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		key, val, ok := splitCPUInfoLine(line)
		if !ok {
			continue
		}
		switch key {
		case "vendor_id":
			if info.VendorID == "unknown" {
				info.VendorID = val
			}
		case "model name":
			if info.BrandName == "unknown" {
				info.BrandName = val
			}
		case "cpu MHz":
			if info.TSCHz == 0 {
				if mhz, perr := strconv.ParseFloat(val, 64); perr == nil {
					info.TSCHz = mhz * 1e6
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return info, fmt.Errorf("scan cpuinfo: %w", err)
	}
	return info, nil
}

// splitCPUInfoLine parses one "key\t: value" line of /proc/cpuinfo.
func splitCPUInfoLine(line string) (key, val string, ok bool) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	val = strings.TrimSpace(line[i+1:])
	return key, val, val != "" || key != ""
}

// detectFeatures translates golang.org/x/sys/cpu.X86's bool fields into
// the xasm.Feature bitmask the assembler and feasibility oracle intersect
// against each instruction's required-feature set.
func detectFeatures() xasm.Feature {
	var f xasm.Feature
	x := cpu.X86
	add := func(has bool, bit xasm.Feature) {
		if has {
			f |= bit
		}
	}
	add(x.HasSSE2, xasm.FeatSSE2)
	add(x.HasSSE3, xasm.FeatSSE3)
	add(x.HasSSSE3, xasm.FeatSSSE3)
	add(x.HasSSE41, xasm.FeatSSE41)
	add(x.HasSSE42, xasm.FeatSSE42)
	add(x.HasPOPCNT, xasm.FeatPOPCNT)
	add(x.HasBMI1, xasm.FeatBMI1)
	add(x.HasBMI2, xasm.FeatBMI2)
	add(x.HasADX, xasm.FeatADX)
	add(x.HasAVX, xasm.FeatAVX)
	add(x.HasAVX2, xasm.FeatAVX2)
	add(x.HasFMA, xasm.FeatFMA)
	add(x.HasAVX512F, xasm.FeatAVX512F)
	add(x.HasAVX512BW, xasm.FeatAVX512BW)
	add(x.HasAVX512DQ, xasm.FeatAVX512DQ)
	add(x.HasAVX512VL, xasm.FeatAVX512VL)
	add(x.HasRDRAND, xasm.FeatRDRAND)
	add(x.HasRDSEED, xasm.FeatRDSEED)
	add(x.HasRDTSCP, xasm.FeatRDTSCP)
	// CMOV, MMX, SSE and LZCNT have no dedicated golang.org/x/sys/cpu/x86
	// field: CMOV/MMX/SSE are mandatory baseline on every amd64 host this
	// database targets, and LZCNT is assumed present alongside BMI1 (both
	// shipped together on every mainstream implementation to date).
	f |= xasm.FeatCMOV | xasm.FeatMMX | xasm.FeatSSE
	add(x.HasBMI1, xasm.FeatLZCNT)
	// F16C has no dedicated field either; it has shipped on every AVX
	// host since its introduction alongside AVX in mainstream silicon.
	add(x.HasAVX, xasm.FeatF16C)
	return f
}
