package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_SortsRecordsByName(t *testing.T) {
	doc := NewDocument(CPUInfo{}, []Record{
		{Inst: "vaddps", Lat: 4, Rcp: 0.5},
		{Inst: "add", Lat: 1, Rcp: 0.25},
		{Inst: "mov", Lat: 1, Rcp: 0.25},
	})
	require.Len(t, doc.Instructions, 3)
	assert.Equal(t, []string{"add", "mov", "vaddps"}, []string{
		doc.Instructions[0].Inst, doc.Instructions[1].Inst, doc.Instructions[2].Inst,
	})
}

func TestNewDocument_DoesNotMutateInput(t *testing.T) {
	records := []Record{{Inst: "z"}, {Inst: "a"}}
	_ = NewDocument(CPUInfo{}, records)
	assert.Equal(t, "z", records[0].Inst, "input slice order must be untouched")
}

func TestWrite_ProducesCultTopLevelKey(t *testing.T) {
	doc := NewDocument(CPUInfo{Vendor: "GenuineIntel", Brand: "Test CPU", Features: []string{"avx2"}, TSCFreqHz: 3000000000}, []Record{
		{Inst: "add", Lat: 1, Rcp: 0.25},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))

	var parsed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Contains(t, parsed, "cult")

	var inner Document
	require.NoError(t, json.Unmarshal(parsed["cult"], &inner))
	assert.Equal(t, doc, inner)
}

func TestWrite_TrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewDocument(CPUInfo{}, nil)))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}
