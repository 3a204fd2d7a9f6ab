package cult

import (
	"fmt"

	"github.com/ja7ad/cult/pkg/xasm"
)

// scratchSize is the size in bytes of the probe's private stack-relative
// scratch region, sized to hold the widest memory operand (m512 = 64
// bytes) at the widest offset the materializer's rotation produces.
const scratchSize = 0x240

// dividerFillWord is the pattern used to pre-fill the stack region
// dividers read from, so a divide probe's memory-resident operands never
// hold garbage that could trap or skew the measured path.
const dividerFillWord = 0x03030303

// ProbeOptions carries the per-probe parameters the classifier resolves
// before invoking the emitter.
type ProbeOptions struct {
	Id          xasm.InstId
	Spec        InstSpec
	Mode        Parallelism
	Overhead    bool // true => emit the instruction-omitting twin
	WriteOnly   bool // destination kind absent from source kinds
	IsDivider   bool
	IsMul       bool
	IsPushPop   bool
	IsCall      bool
	IsBitField  bool
	IsGather    bool
	IsScatter   bool
	Ext         xasm.Extension
	HasRdtscp   bool // host supports RDTSCP: prefer it over LFENCE+RDTSC

	// EmitCall, when IsCall is set, emits one call to trampoline for unroll
	// instance i against tuple's materialized operand. driver.go supplies
	// this so the register/rel-vs-memory distinction (load-address+call+ret
	// for a memory operand, plain call+ret otherwise) is decided where the
	// classifier's special-case knowledge lives, not inside the generic
	// emitter.
	EmitCall func(b *xasm.Builder, trampoline xasm.Label, tuple []xasm.Operand, i int) error
}

// BuildProbe assembles the full outer-frame + body for one (instId,
// descriptor, parallelism) combination. It returns the finalized machine
// code ready for pkg/jitmem.
func BuildProbe(asm *xasm.Assembler, mat *Materializer, opt ProbeOptions) ([]byte, error) {
	b := xasm.NewBuilder(xasm.ArchX64)

	rdi := xasm.GP(32, xasm.RDI)
	rsi64 := xasm.GP(64, xasm.RSI)
	rbx := xasm.GP(64, xasm.RBX)
	rbp := xasm.GP(64, xasm.DepForceParkReg)
	r12 := xasm.GP(64, xasm.TSCAccumReg)
	r13 := xasm.GP(64, xasm.R13)
	r14 := xasm.GP(64, xasm.ArenaBaseReg)
	r15d := xasm.GP(32, xasm.R15)
	rax64 := xasm.GP(64, xasm.RAX)
	rdi64 := xasm.GP(64, xasm.RDI)

	// Prologue: save callee-saved registers, stash the out-pointer on the
	// stack, bind the loop counter, open the scratch region.
	b.EmitPush(rbx)
	b.EmitPush(rbp)
	b.EmitPush(r12)
	b.EmitPush(r13)
	b.EmitPush(r14)
	b.EmitPush(xasm.GP(64, xasm.R15))
	b.EmitPush(rsi64) // save out-pointer
	b.EmitMovRR(r15d, rdi)
	openScratch(b)

	if opt.IsDivider {
		fillDividerScratch(b)
	}
	if opt.IsGather || opt.IsScatter {
		loadArenaBase(b, r14, mat)
	}

	initPredictableState(b, opt)

	// TSC start bracket: mfence; lfence; rdtsc.
	b.EmitMfence()
	b.EmitLfence()
	b.EmitRdtsc()
	mergeEdxEax(b)
	b.EmitMovRR(r12, rax64) // save start count

	// Body: the unrolled instruction sequence under test.
	lEnd := b.NewLabel()
	lBody := b.NewLabel()
	b.EmitTestSelf(r15d)
	b.EmitJz(lEnd)
	b.EmitNopPad(padToAlign(b.Pos()))
	b.Bind(lBody)

	var trampoline xasm.Label
	if opt.IsCall {
		trampoline = b.NewLabel()
		lOverJump := b.NewLabel()
		b.EmitJmpLabel(lOverJump)
		b.Bind(trampoline)
		b.EmitRet()
		b.Bind(lOverJump)
	}

	tuples := mat.Materialize(opt.Spec, opt.Mode, UnrollFactor)
	for i, tuple := range tuples {
		if !opt.Overhead {
			if opt.IsBitField {
				preloadBitFieldOperands(b, tuple)
			}
			if opt.IsDivider {
				preloadDividerOperands(b, xasm.GP(64, xasm.RDX), rax64, opt.Mode, i)
			}
			if opt.IsCall {
				if opt.EmitCall != nil {
					if err := opt.EmitCall(b, trampoline, tuple, i); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
					}
				}
			} else {
				ops := toOperands(tuple)
				if err := asm.Emit(b, opt.Id, ops...); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
				}
				if opt.IsPushPop {
					complement := pushPopComplement(opt.Id)
					if err := asm.Emit(b, complement, ops...); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
					}
				}
			}
			if opt.WriteOnly {
				emitDependencyForce(b, asm, tuple, opt.Ext)
			}
		}
	}

	b.EmitDec(r15d)
	b.EmitJnz(lBody)
	b.Bind(lEnd)

	// Post-body register-file cleanup: MMX needs emms, AVX needs
	// vzeroupper, to avoid the AVX/SSE transition penalty on return.
	switch opt.Ext {
	case xasm.ExtMMX:
		asm.Emit(b, xasm.IdEmms)
	case xasm.ExtAVX, xasm.ExtAVX512:
		asm.Emit(b, xasm.IdVzeroupper)
	}

	// TSC end bracket: RDTSCP+LFENCE if available, else LFENCE+RDTSC. No
	// CPUID serialization here — it would bias short sequences by far more
	// than the instruction under test costs.
	if opt.HasRdtscp {
		b.EmitRdtscp()
		b.EmitLfence()
	} else {
		b.EmitLfence()
		b.EmitRdtsc()
	}
	mergeEdxEax(b)
	b.EmitSubRR(rax64, r12) // elapsed = end - start

	closeScratch(b)
	b.EmitPop(rdi64) // restore out-pointer
	b.EmitStoreMem64(rdi64, rax64)

	b.EmitPop(xasm.GP(64, xasm.R15))
	b.EmitPop(r14)
	b.EmitPop(r13)
	b.EmitPop(r12)
	b.EmitPop(rbp)
	b.EmitPop(rbx)
	b.EmitRet()

	return b.Finalize()
}

func openScratch(b *xasm.Builder) {
	b.EmitAddRSPImm(-int32(scratchSize))
}

func closeScratch(b *xasm.Builder) {
	b.EmitAddRSPImm(int32(scratchSize))
}

// padToAlign returns the number of NOPs that bring pos up to the next
// 16-byte offset of the code buffer (0 when it is already there); the loop
// head is aligned to 16 bytes, not to a 64-byte cache line.
func padToAlign(pos int) int {
	const align = 16
	rem := pos % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

func mergeEdxEax(b *xasm.Builder) {
	rdx64 := xasm.GP(64, xasm.RDX)
	rax64 := xasm.GP(64, xasm.RAX)
	b.EmitShlImm(rdx64, 32)
	b.EmitOrRR(rax64, rdx64)
}

func toOperands(tuple []xasm.Operand) []xasm.Operand { return tuple }

// initPredictableState writes known small values into the scratch GP
// registers so the first unrolled instance never reads
// architecturally-undefined input.
func initPredictableState(b *xasm.Builder, opt ProbeOptions) {
	targets := []int{xasm.RAX, xasm.RCX, xasm.RDX, xasm.RSI, xasm.RDI}
	if opt.IsBitField {
		targets = append(targets, xasm.R8, xasm.R9, xasm.R10, xasm.R11)
	}
	for i, id := range targets {
		b.EmitMovImm32(xasm.GP(32, id), uint32(4+i))
	}
}

func fillDividerScratch(b *xasm.Builder) {
	rsp := xasm.GP(64, xasm.RSP)
	scratch := xasm.GP(32, xasm.RAX)
	b.EmitMovImm32(scratch, dividerFillWord)
	for off := int32(0); off < scratchSize; off += 4 {
		b.EmitStoreMem32Disp(rsp, scratch, off)
	}
}

func preloadBitFieldOperands(b *xasm.Builder, tuple []xasm.Operand) {
	// Bit-index operands are pre-seeded with small positive immediates by
	// initPredictableState; nothing further needed when the bit-index
	// slot is itself an immediate (the common case in this database).
	_ = tuple
}

func preloadDividerOperands(b *xasm.Builder, dx, ax xasm.Reg, mode Parallelism, i int) {
	// Zero DX-family and load a safe dividend into AX before each emit so
	// the division never traps; in parallel mode re-load AX between emits
	// since each chain's AX gets consumed by its own divide.
	b.EmitMovImm32(xasm.GP(32, xasm.RDX), 0)
	if mode == Parallel || i == 0 {
		b.EmitMovImm32(xasm.GP(32, xasm.RAX), 97)
	}
}

func emitDependencyForce(b *xasm.Builder, asm *xasm.Assembler, tuple []xasm.Operand, ext xasm.Extension) {
	// Append a per-unroll dependency-forcing micro-instruction reading
	// the destination, so latency measurements observe the
	// producer->consumer chain for write-only instructions: a GP
	// destination is copied into the parking register, an MMX destination
	// is added into mm7 (which the rotation never hands out). SSE, AVX and
	// AVX-512 destinations get no dependency-forcing instruction.
	if len(tuple) == 0 {
		return
	}
	dst, ok := tuple[0].(xasm.Reg)
	if !ok {
		return
	}
	switch ext {
	case xasm.ExtMMX:
		_ = asm.Emit(b, xasm.IdPaddb, xasm.MM(7), dst) // paddb mm7, dst
	case xasm.ExtAVX, xasm.ExtSSE:
		// no dependency-forcing instruction for SSE/AVX destinations
	default:
		if dst.Class == xasm.ClassGP {
			park := xasm.GP(uint8(dst.Size), xasm.DepForceParkReg)
			b.EmitMovRR(park, dst)
		}
	}
}

// pushPopComplement returns the instruction that undoes one push/pop so each
// unrolled instance leaves SP exactly where it found it: a push emitted
// alone would walk the stack pointer down by 64*8 bytes over one unrolled
// body, trampling whatever the scratch region or the saved registers below
// it hold.
func pushPopComplement(id xasm.InstId) xasm.InstId {
	if id == xasm.IdPush {
		return xasm.IdPop
	}
	return xasm.IdPush
}

func loadArenaBase(b *xasm.Builder, dst xasm.Reg, mat *Materializer) {
	b.EmitMovImm32(xasm.GP(32, int(dst.ID)), uint32(mat.gatherBase))
}
