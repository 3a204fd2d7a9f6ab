package xasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName_ResolvesKnownMnemonic(t *testing.T) {
	id, ok := ByName("add")
	require.True(t, ok)
	assert.Equal(t, IdAdd, id)
}

func TestByName_UnknownMnemonic(t *testing.T) {
	_, ok := ByName("notareRealInstruction")
	assert.False(t, ok)
}

func TestInfo_RoundTripsRegisteredEntry(t *testing.T) {
	entry, ok := Info(IdAdd)
	require.True(t, ok)
	assert.Equal(t, "add", entry.Name)
	assert.NotEmpty(t, entry.Signatures)
}

func TestInfo_UnknownIdReturnsFalse(t *testing.T) {
	_, ok := Info(InstId(65535))
	assert.False(t, ok)
}

func TestAll_ContainsEveryRegisteredInstructionExactlyOnce(t *testing.T) {
	ids := All()
	require.NotEmpty(t, ids)
	seen := make(map[InstId]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "All() must not repeat an instruction id")
		seen[id] = true
		_, ok := Info(id)
		assert.True(t, ok, "every id returned by All() must resolve via Info")
	}
}

func TestRequiredFeatures_PlainGPInstructionNeedsNoFeatures(t *testing.T) {
	a := NewAssembler()
	assert.Equal(t, Feature(0), a.RequiredFeatures(IdAdd))
}

func TestRequiredFeatures_VectorInstructionNeedsSSE(t *testing.T) {
	a := NewAssembler()
	assert.NotZero(t, a.RequiredFeatures(IdAddps)&FeatSSE)
}
