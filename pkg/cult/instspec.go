// Package cult measures the latency and reciprocal throughput of individual
// x86/x86-64 machine instructions by emitting short JIT-compiled probe
// kernels and timing them under the time-stamp counter.
package cult

import "fmt"

// OpKind names the concrete shape of one operand slot. It is a closed
// enumeration: every value the signature iterator (siggen.go) can produce
// and every value the materializer (materialize.go) knows how to bind to a
// concrete register/memory/immediate must appear here.
type OpKind uint8

const (
	OpNone OpKind = iota
	OpRel         // relative displacement (branch/call target)

	// Generic GP registers, by width.
	OpGpb
	OpGpw
	OpGpd
	OpGpq

	// Fixed GP registers (instructions with an implicit operand slot).
	OpAl
	OpCl
	OpDl
	OpBl
	OpAx
	OpCx
	OpDx
	OpBx
	OpEax
	OpEcx
	OpEdx
	OpEbx
	OpRax
	OpRcx
	OpRdx
	OpRbx

	// Vector-class registers.
	OpMm
	OpXmm
	OpXmm0 // fixed, e.g. blendvps/pblendvb implicit mask operand
	OpYmm
	OpZmm
	OpKReg // mask register (AVX-512)

	// Immediates.
	OpImm8
	OpImm16
	OpImm32
	OpImm64

	// Memory of a fixed size.
	OpMem8
	OpMem16
	OpMem32
	OpMem64
	OpMem128
	OpMem256
	OpMem512

	// Vector-index memory (gather/scatter addressing).
	OpVm32x
	OpVm32y
	OpVm32z
	OpVm64x
	OpVm64y
	OpVm64z

	opKindCount
)

// String renders the textual operand-kind name used in report output and
// diagnostics: "r8", "m256", "vm32x", and so on.
func (k OpKind) String() string {
	switch k {
	case OpNone:
		return "none"
	case OpRel:
		return "rel"
	case OpGpb:
		return "r8"
	case OpGpw:
		return "r16"
	case OpGpd:
		return "r32"
	case OpGpq:
		return "r64"
	case OpAl:
		return "al"
	case OpCl:
		return "cl"
	case OpDl:
		return "dl"
	case OpBl:
		return "bl"
	case OpAx:
		return "ax"
	case OpCx:
		return "cx"
	case OpDx:
		return "dx"
	case OpBx:
		return "bx"
	case OpEax:
		return "eax"
	case OpEcx:
		return "ecx"
	case OpEdx:
		return "edx"
	case OpEbx:
		return "ebx"
	case OpRax:
		return "rax"
	case OpRcx:
		return "rcx"
	case OpRdx:
		return "rdx"
	case OpRbx:
		return "rbx"
	case OpMm:
		return "mm"
	case OpXmm:
		return "xmm"
	case OpXmm0:
		return "xmm0"
	case OpYmm:
		return "ymm"
	case OpZmm:
		return "zmm"
	case OpKReg:
		return "k"
	case OpImm8:
		return "i8"
	case OpImm16:
		return "i16"
	case OpImm32:
		return "i32"
	case OpImm64:
		return "i64"
	case OpMem8:
		return "m8"
	case OpMem16:
		return "m16"
	case OpMem32:
		return "m32"
	case OpMem64:
		return "m64"
	case OpMem128:
		return "m128"
	case OpMem256:
		return "m256"
	case OpMem512:
		return "m512"
	case OpVm32x:
		return "vm32x"
	case OpVm32y:
		return "vm32y"
	case OpVm32z:
		return "vm32z"
	case OpVm64x:
		return "vm64x"
	case OpVm64y:
		return "vm64y"
	case OpVm64z:
		return "vm64z"
	default:
		return "(invalid)"
	}
}

// isMem reports whether k denotes a memory-of-size operand.
func (k OpKind) isMem() bool {
	return k >= OpMem8 && k <= OpMem512
}

// isVm reports whether k denotes a vector-index memory operand.
func (k OpKind) isVm() bool {
	return k >= OpVm32x && k <= OpVm64z
}

// isVecReg reports whether k is a vector-class register (mm/xmm/ymm/zmm).
func (k OpKind) isVecReg() bool {
	return k == OpMm || k == OpXmm || k == OpXmm0 || k == OpYmm || k == OpZmm
}

// isGpReg reports whether k is any general-purpose register, generic or fixed.
func (k OpKind) isGpReg() bool {
	return (k >= OpGpb && k <= OpGpq) || (k >= OpAl && k <= OpRbx)
}

// SpecFlags carries the small bit-set of per-descriptor flags that are
// not operand kinds — currently just leaScale.
type SpecFlags uint8

const (
	FlagNone     SpecFlags = 0
	FlagLeaScale SpecFlags = 1 << iota
)

// maxOperands bounds InstSpec at 6 slots, the widest fixed-arity form any
// instruction in this database needs.
const maxOperands = 6

// InstSpec is the fixed-capacity operand descriptor. It is a plain value
// type — no heap allocation, structural equality — so it can be used
// directly as a map/set key during deduplication (driver.go).
type InstSpec struct {
	ops   [maxOperands]OpKind
	flags SpecFlags
}

// NewInstSpec builds a descriptor from up to 6 operand kinds. Remaining
// slots are implicitly OpNone.
func NewInstSpec(ops ...OpKind) InstSpec {
	var s InstSpec
	for i, k := range ops {
		if i >= maxOperands {
			break
		}
		s.ops[i] = k
	}
	return s
}

// WithFlags returns a copy of s with the given flags set.
func (s InstSpec) WithFlags(f SpecFlags) InstSpec {
	s.flags = f
	return s
}

// Flags returns the descriptor's flag bits.
func (s InstSpec) Flags() SpecFlags { return s.flags }

// HasFlag reports whether f is set.
func (s InstSpec) HasFlag(f SpecFlags) bool { return s.flags&f != 0 }

// Get returns the operand kind at slot i, or OpNone if i is out of range.
func (s InstSpec) Get(i int) OpKind {
	if i < 0 || i >= maxOperands {
		return OpNone
	}
	return s.ops[i]
}

// Count returns the index of the first OpNone slot. Per the monotonicity
// invariant, slots after the first OpNone are themselves OpNone.
func (s InstSpec) Count() int {
	for i := 0; i < maxOperands; i++ {
		if s.ops[i] == OpNone {
			return i
		}
	}
	return maxOperands
}

// IsEmpty reports whether this is the zero-operand descriptor: an
// InstSpec with its first slot OpNone is empty.
func (s InstSpec) IsEmpty() bool { return s.ops[0] == OpNone }

// MemOp returns the single memory/vm operand kind present in the
// descriptor, and true if one exists. A well-formed descriptor carries at
// most one memory operand.
func (s InstSpec) MemOp() (OpKind, bool) {
	for i := 0; i < maxOperands; i++ {
		k := s.ops[i]
		if k.isMem() || k.isVm() {
			return k, true
		}
	}
	return OpNone, false
}

// IsImplicitOp reports whether kind denotes a fixed-register operand (a
// slot the encoding pins to one physical register, e.g. AL or XMM0) rather
// than a generic register class.
func IsImplicitOp(kind OpKind) bool {
	switch kind {
	case OpAl, OpCl, OpDl, OpBl,
		OpAx, OpCx, OpDx, OpBx,
		OpEax, OpEcx, OpEdx, OpEbx,
		OpRax, OpRcx, OpRdx, OpRbx,
		OpXmm0:
		return true
	default:
		return false
	}
}

// String renders "mnemonic-agnostic" operand tuple text, e.g. "r32, r32".
// Callers that need the mnemonic too (driver.go) prepend it themselves.
func (s InstSpec) String() string {
	n := s.Count()
	if n == 0 {
		return ""
	}
	out := s.ops[0].String()
	for i := 1; i < n; i++ {
		out += fmt.Sprintf(", %s", s.ops[i])
	}
	return out
}
