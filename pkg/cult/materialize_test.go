package cult

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/cult/pkg/xasm"
)

func TestMaterialize_GeneratesOneTuplePerUnrollInstance(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpGpd, OpGpd)
	tuples := m.Materialize(spec, Serial, UnrollFactor)
	require.Len(t, tuples, UnrollFactor)
	for _, tuple := range tuples {
		assert.Len(t, tuple, 2)
	}
}

func TestMaterialize_FixedRegisterSlotStaysPinned(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpGpd, OpCl)
	tuples := m.Materialize(spec, Serial, 4)
	for _, tuple := range tuples {
		reg, ok := tuple[1].(xasm.Reg)
		require.True(t, ok)
		assert.Equal(t, uint8(xasm.RCX), reg.ID)
		assert.Equal(t, uint16(8), reg.Size)
	}
}

func TestMaterialize_FixedRegisterExcludedFromOtherSlotsRotation(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpGpd, OpCl)
	tuples := m.Materialize(spec, Parallel, ParallelWidth*2)
	for _, tuple := range tuples {
		dst, ok := tuple[0].(xasm.Reg)
		require.True(t, ok)
		assert.NotEqual(t, uint8(xasm.RCX), dst.ID, "rotation pool must exclude the fixed CL register's id")
	}
}

func TestMaterialize_MemoryOperandStaysInScratchWindow(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpGpd, OpMem32)
	tuples := m.Materialize(spec, Serial, UnrollFactor)
	for _, tuple := range tuples {
		mem, ok := tuple[1].(xasm.Mem)
		require.True(t, ok)
		assert.GreaterOrEqual(t, mem.Disp, int32(0))
		assert.Less(t, mem.Disp, int32(0x200))
	}
}

func TestMaterialize_UnalignedPolicyOffsetsDispByOne(t *testing.T) {
	aligned := NewMaterializer(16, 0x10000)
	unaligned := NewMaterializer(16, 0x10000)
	unaligned.SetMemPolicy(MemUnaligned)

	spec := NewInstSpec(OpGpd, OpMem32)
	a := aligned.Materialize(spec, Serial, 1)[0][1].(xasm.Mem)
	u := unaligned.Materialize(spec, Serial, 1)[0][1].(xasm.Mem)
	assert.Equal(t, a.Disp+1, u.Disp)
}

func TestMaterialize_ImmediateRecurrenceIsDeterministicAndNonzero(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpGpd, OpImm32)
	tuples := m.Materialize(spec, Serial, 8)
	for _, tuple := range tuples {
		imm, ok := tuple[1].(xasm.Imm)
		require.True(t, ok)
		assert.NotZero(t, imm.Value)
		assert.Equal(t, uint8(32), imm.Size)
	}
	// Re-materializing must reproduce the exact same sequence.
	again := m.Materialize(spec, Serial, 8)
	for i := range tuples {
		assert.Equal(t, tuples[i][1], again[i][1])
	}
}

func TestMaterialize_RelOperandIsLabel(t *testing.T) {
	m := NewMaterializer(16, 0x10000)
	spec := NewInstSpec(OpRel)
	tuples := m.Materialize(spec, Serial, 1)
	_, ok := tuples[0][0].(xasm.Label)
	assert.True(t, ok)
}

func TestRotationIndex_SerialArity2SourceReadsPriorDestination(t *testing.T) {
	// Serial 2-operand chains make the source of instance i+1 reuse the
	// destination index of instance i (true dependency chain), while the
	// two slots of one instance never share an index.
	for i := 0; i < ParallelWidth; i++ {
		dst := rotationIndex(0, 2, i, Serial)
		src := rotationIndex(1, 2, i, Serial)
		assert.NotEqual(t, dst, src, "destination and source rotation indices must differ within one instance")
		assert.Equal(t, dst, rotationIndex(1, 2, i+1, Serial), "instance i+1 must read instance i's destination")
	}
}

func TestRotationIndex_ParallelArity1CyclesThroughWidth(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < ParallelWidth; i++ {
		seen[rotationIndex(0, 1, i, Parallel)] = true
	}
	assert.Len(t, seen, ParallelWidth)
}

func TestVecRegFor(t *testing.T) {
	assert.Equal(t, xasm.ClassXMM, vecRegFor(OpXmm, 3).Class)
	assert.Equal(t, xasm.ClassYMM, vecRegFor(OpYmm, 3).Class)
	assert.Equal(t, xasm.ClassZMM, vecRegFor(OpZmm, 3).Class)
	assert.Equal(t, xasm.ClassMM, vecRegFor(OpMm, 3).Class)
	assert.Equal(t, xasm.ClassK, vecRegFor(OpKReg, 3).Class)
}
