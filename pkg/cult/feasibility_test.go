package cult

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ja7ad/cult/pkg/xasm"
)

func TestOracle_Check_RejectsNoneInst(t *testing.T) {
	o := NewOracle(xasm.NewAssembler(), xasm.ArchX64, ^xasm.Feature(0))
	err := o.Check(xasm.IdNone, nil)
	assert.ErrorIs(t, err, ErrUnsupportedByHost)
}

func TestOracle_Check_RejectsMissingFeature(t *testing.T) {
	// addps requires FeatSSE; an empty feature set must fail.
	o := NewOracle(xasm.NewAssembler(), xasm.ArchX64, xasm.Feature(0))
	ops := []xasm.Operand{xasm.XMM(0), xasm.XMM(1)}
	err := o.Check(xasm.IdAddps, ops)
	assert.ErrorIs(t, err, ErrUnsupportedByHost)
}

func TestOracle_Check_AcceptsValidEncodingWithFeatures(t *testing.T) {
	o := NewOracle(xasm.NewAssembler(), xasm.ArchX64, ^xasm.Feature(0))
	ops := []xasm.Operand{xasm.GP(32, xasm.RAX), xasm.GP(32, xasm.RCX)}
	assert.NoError(t, o.Check(xasm.IdAdd, ops))
}

func TestOracle_Runnable_MirrorsCheck(t *testing.T) {
	o := NewOracle(xasm.NewAssembler(), xasm.ArchX64, ^xasm.Feature(0))
	assert.True(t, o.Runnable(xasm.IdAdd, []xasm.Operand{xasm.GP(32, xasm.RAX), xasm.GP(32, xasm.RCX)}))
	assert.False(t, o.Runnable(xasm.IdNone, nil))
}
