package xasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_EmitLeaLabel_EncodesRipRelativeForm(t *testing.T) {
	b := NewBuilder(ArchX64)
	l := b.NewLabel()
	b.EmitLeaLabel(GP(64, RAX), l)
	// Target is 10 bytes past the lea (arbitrary filler then bind).
	b.emitBytes(0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90)
	b.Bind(l)

	out, err := b.Finalize()
	require.NoError(t, err)
	// REX.W, 0x8D, ModRM(mod=00,reg=RAX=0,rm=101), then rel32.
	assert.Equal(t, byte(0x48), out[0])
	assert.Equal(t, byte(0x8D), out[1])
	assert.Equal(t, byte(0x05), out[2]) // modrm(0,0,5)
	assert.Equal(t, int32(10), int32(out[3])|int32(out[4])<<8|int32(out[5])<<16|int32(out[6])<<24)
}

func TestBuilder_EmitLeaLabel_NeedsRexWhenDstIsExtended(t *testing.T) {
	b := NewBuilder(ArchX64)
	l := b.NewLabel()
	b.EmitLeaLabel(GP(64, R8), l)
	b.Bind(l)
	out, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, byte(0x4C), out[0]) // REX.W + REX.R (dst id 8 needs REX.R)
}

func TestBuilder_EmitStoreMem64Disp_EncodesSibForm(t *testing.T) {
	b := NewBuilder(ArchX64)
	b.EmitStoreMem64Disp(GP(64, RBP), GP(64, RAX), 16)
	out, err := b.Finalize()
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Equal(t, byte(0x48), out[0]) // REX.W
	assert.Equal(t, byte(0x89), out[1]) // MOV r/m64, r64
	assert.Equal(t, byte(0x84), out[2]) // modrm(2, RAX=0, rm=4/SIB)
	assert.Equal(t, byte(0x25), out[3]) // sib(scale=0, index=4/none, base=RBP=5)
	assert.Equal(t, int32(16), int32(out[4])|int32(out[5])<<8|int32(out[6])<<16|int32(out[7])<<24)
}

func TestBuilder_Finalize_UnresolvedLabelErrors(t *testing.T) {
	b := NewBuilder(ArchX64)
	l := b.NewLabel()
	b.emitRel32(l)
	_, err := b.Finalize()
	assert.Error(t, err)
}

func TestBuilder_Finalize_Rel8OutOfRangeErrors(t *testing.T) {
	b := NewBuilder(ArchX64)
	l := b.NewLabel()
	b.emitRel8(l)
	for i := 0; i < 200; i++ {
		b.emit8(0x90)
	}
	b.Bind(l)
	_, err := b.Finalize()
	assert.Error(t, err)
}

func TestBuilder_Pos_TracksWrittenBytes(t *testing.T) {
	b := NewBuilder(ArchX64)
	assert.Equal(t, 0, b.Pos())
	b.emit32(0)
	assert.Equal(t, 4, b.Pos())
}
