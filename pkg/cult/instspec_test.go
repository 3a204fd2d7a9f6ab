package cult

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInstSpec_PadsWithOpNone(t *testing.T) {
	s := NewInstSpec(OpGpd, OpGpd)
	assert.Equal(t, OpGpd, s.Get(0))
	assert.Equal(t, OpGpd, s.Get(1))
	assert.Equal(t, OpNone, s.Get(2))
	assert.Equal(t, 2, s.Count())
}

func TestNewInstSpec_TruncatesBeyondCapacity(t *testing.T) {
	s := NewInstSpec(OpGpd, OpGpd, OpGpd, OpGpd, OpGpd, OpGpd, OpGpd)
	assert.Equal(t, 6, s.Count())
}

func TestInstSpec_Get_OutOfRange(t *testing.T) {
	s := NewInstSpec(OpGpd)
	assert.Equal(t, OpNone, s.Get(-1))
	assert.Equal(t, OpNone, s.Get(6))
}

func TestInstSpec_IsEmpty(t *testing.T) {
	assert.True(t, NewInstSpec().IsEmpty())
	assert.False(t, NewInstSpec(OpGpd).IsEmpty())
}

func TestInstSpec_MemOp(t *testing.T) {
	s := NewInstSpec(OpGpd, OpMem32)
	kind, ok := s.MemOp()
	assert.True(t, ok)
	assert.Equal(t, OpMem32, kind)

	_, ok = NewInstSpec(OpGpd, OpGpd).MemOp()
	assert.False(t, ok)
}

func TestInstSpec_EqualityAsMapKey(t *testing.T) {
	a := NewInstSpec(OpGpd, OpGpd)
	b := NewInstSpec(OpGpd, OpGpd)
	c := NewInstSpec(OpGpd, OpGpq)

	seen := map[InstSpec]bool{a: true}
	assert.True(t, seen[b], "structurally identical descriptors must compare equal as map keys")
	assert.False(t, seen[c])
}

func TestInstSpec_WithFlags(t *testing.T) {
	s := NewInstSpec(OpGpd).WithFlags(FlagLeaScale)
	assert.True(t, s.HasFlag(FlagLeaScale))
	assert.Equal(t, FlagLeaScale, s.Flags())
}

func TestIsImplicitOp(t *testing.T) {
	assert.True(t, IsImplicitOp(OpAl))
	assert.True(t, IsImplicitOp(OpXmm0))
	assert.False(t, IsImplicitOp(OpGpb))
}

func TestInstSpec_String(t *testing.T) {
	assert.Equal(t, "", NewInstSpec().String())
	assert.Equal(t, "r32", NewInstSpec(OpGpd).String())
	assert.Equal(t, "r32, m32", NewInstSpec(OpGpd, OpMem32).String())
}
