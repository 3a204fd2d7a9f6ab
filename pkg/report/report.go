// Package report is the JSON output sink: a single document giving the
// detected host's identity alongside every measured instruction's
// latency/reciprocal-throughput pair. Encoding uses stdlib encoding/json
// rather than pulling in a third-party JSON library for a plain,
// flat output shape.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Record is one measured instruction's reported cycle costs: textual
// form, latency, and reciprocal throughput.
type Record struct {
	Inst string  `json:"inst"`
	Lat  float64 `json:"lat"`
	Rcp  float64 `json:"rcp"`
}

// CPUInfo mirrors pkg/hostcpu.Info's externally reportable fields: the
// detected host identity accompanies the measurements in every report.
type CPUInfo struct {
	Vendor    string   `json:"vendor"`
	Brand     string   `json:"brand"`
	Features  []string `json:"features"`
	TSCFreqHz uint64   `json:"tsc_freq_hz"`
}

// Document is the full report: one CPUInfo plus every Record produced by
// one run, wrapped under a top-level "cult" key.
type Document struct {
	CPUInfo      CPUInfo  `json:"cpu_info"`
	Instructions []Record `json:"instructions"`
}

type envelope struct {
	Cult Document `json:"cult"`
}

// NewDocument builds a Document from a CPUInfo and an unordered slice of
// Records, sorting the records by instruction name so repeated runs
// against the same instruction set produce byte-identical output.
func NewDocument(cpu CPUInfo, records []Record) Document {
	out := make([]Record, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].Inst < out[j].Inst })
	return Document{CPUInfo: cpu, Instructions: out}
}

// Write marshals doc as indented JSON under a "cult" top-level key and
// writes it to w.
func Write(w io.Writer, doc Document) error {
	b, err := json.MarshalIndent(envelope{Cult: doc}, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
