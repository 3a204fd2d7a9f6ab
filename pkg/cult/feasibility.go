package cult

import (
	"errors"
	"fmt"

	"github.com/ja7ad/cult/pkg/xasm"
)

// Sentinel error kinds: the feasibility oracle is the sole authority on
// "does this instruction run on this CPU with these operands";
// descriptors that fail either check are dropped silently by the
// caller, never surfaced as a hard failure.
var (
	ErrUnsupportedByHost = errors.New("cult: operand shape unsupported by detected host features")
	ErrAssemblerRefused  = errors.New("cult: assembler rejected encoding")
	ErrCompileFailed     = errors.New("cult: probe failed to assemble")
	ErrConvergenceGaveUp = errors.New("cult: measurement loop gave up without converging")
	ErrInvalidInstruction = errors.New("cult: unknown instruction name")
)

// Oracle is the feasibility oracle: given an (instruction, concrete
// operands) pair, it asks the assembler to validate the encoding and
// checks the required feature set against detected host features.
type Oracle struct {
	asm      *xasm.Assembler
	arch     xasm.Arch
	features xasm.Feature
}

// NewOracle builds an oracle fixed to one host architecture and detected
// feature set; both are immutable once the process has started.
func NewOracle(asm *xasm.Assembler, arch xasm.Arch, hostFeatures xasm.Feature) *Oracle {
	return &Oracle{asm: asm, arch: arch, features: hostFeatures}
}

// Check runs the three-step feasibility test: instId != none, the
// assembler validates the encoding, and the required feature set is a
// subset of the detected host features.
func (o *Oracle) Check(id xasm.InstId, ops []xasm.Operand) error {
	if id == xasm.IdNone {
		return fmt.Errorf("%w: instId is none", ErrUnsupportedByHost)
	}
	required := o.asm.RequiredFeatures(id)
	if required&o.features != required {
		return fmt.Errorf("%w: missing feature bits %#x", ErrUnsupportedByHost, required&^o.features)
	}
	if err := o.asm.Validate(id, o.arch, ops); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemblerRefused, err)
	}
	return nil
}

// Runnable is a convenience boolean wrapper over Check, used both by the
// generic descriptor-rejection path and by the classifier's hand-written
// special cases.
func (o *Oracle) Runnable(id xasm.InstId, ops []xasm.Operand) bool {
	return o.Check(id, ops) == nil
}
