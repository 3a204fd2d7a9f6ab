package xasm

// RegClass names a register file: general purpose, MMX, SSE/AVX/AVX-512
// vector, or AVX-512 mask.
type RegClass uint8

const (
	ClassGP RegClass = iota
	ClassMM
	ClassXMM
	ClassYMM
	ClassZMM
	ClassK
)

// Physical GP register ids, x86-64 numbering (REX.B/X/R extend these to 8-15).
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// LoopCounterReg is the physical register the probe emitter reserves for
// the unrolled-loop iteration counter. R15 is chosen specifically so it
// never collides with CL, the implicit shift-count register the
// materializer must also be able to bind.
const LoopCounterReg = R15

// StackPtrReg is the architectural stack pointer, always excluded from
// rotation pools.
const StackPtrReg = RSP

// TSCAccumReg holds the start TSC count across the unrolled body so the
// end bracket can subtract it; it must never be handed out as a
// materialized operand or the elapsed-cycle computation gets clobbered.
const TSCAccumReg = R12

// ArenaBaseReg carries the gather/scatter arena base address across the
// unrolled body, for the same reason TSCAccumReg is reserved.
const ArenaBaseReg = R14

// DepForceParkReg is where emitDependencyForce parks a write-only
// instruction's destination value (and where a call-on-memory probe
// stages its trampoline address); also excluded from rotation pools.
const DepForceParkReg = RBP

// GPRegCount64 is the number of addressable GP registers in 64-bit mode.
const GPRegCount64 = 16

// GPRegCount32 is the number of addressable GP registers in 32-bit mode
// (no REX extension available).
const GPRegCount32 = 8

// VecRegCount is the number of addressable xmm/ymm/zmm registers (AVX-512
// extends this to 32; this representative encoder sticks to the
// SSE/AVX-era 16 register file, which is sufficient to exercise every
// register-rotation pattern).
const VecRegCount = 16

// MaskRegCount is the number of AVX-512 mask registers (k0..k7); k0
// means "no mask" when used as a write mask. The materializer takes mask
// registers from the same rotation as vector registers, so k0 can be
// handed out.
const MaskRegCount = 8

// Reg is a concrete physical register operand.
type Reg struct {
	Class RegClass
	Size  uint16 // bit width: 8,16,32,64 for GP; 64 for MM; 128/256/512 for vector; 0 for K
	ID    uint8
}

func GP(size uint8, id int) Reg  { return Reg{Class: ClassGP, Size: uint16(size), ID: uint8(id)} }
func MM(id int) Reg              { return Reg{Class: ClassMM, Size: 64, ID: uint8(id)} }
func XMM(id int) Reg             { return Reg{Class: ClassXMM, Size: 128, ID: uint8(id)} }
func YMM(id int) Reg             { return Reg{Class: ClassYMM, Size: 256, ID: uint8(id)} }
func ZMM(id int) Reg             { return Reg{Class: ClassZMM, Size: 512, ID: uint8(id)} }
func K(id int) Reg               { return Reg{Class: ClassK, Size: 0, ID: uint8(id)} }
func (r Reg) needsRex() bool { return r.ID >= 8 }
func (r Reg) lowBits() uint8 { return r.ID & 0x7 }
