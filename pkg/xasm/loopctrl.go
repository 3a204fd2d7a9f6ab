package xasm

// Loop-control primitives the probe emitter needs that are not themselves
// instructions-under-test: conditional branches, the decrement-and-test
// idiom, register moves for prologue/epilogue wiring, and simple padding.
// These live on Builder directly, alongside the instruction database's
// Emit, because they are assembler capabilities rather than anything a
// probe measures.

// EmitTestSelf emits "test r, r" (zero-flag set iff r == 0).
func (b *Builder) EmitTestSelf(r Reg) {
	w := r.Size == 64
	if r.Size == 16 {
		b.emit8(0x66)
	}
	opcode := byte(0x85)
	if r.Size == 8 {
		opcode = 0x84
	}
	if w || r.needsRex() {
		b.emit8(rex(w, r.needsRex(), false, r.needsRex()))
	}
	b.emit8(opcode)
	b.emit8(modrm(3, r.lowBits(), r.lowBits()))
}

// EmitDec emits "dec r" (group 5, /1).
func (b *Builder) EmitDec(r Reg) {
	w := r.Size == 64
	opcode := byte(0xFF)
	if r.Size == 8 {
		opcode = 0xFE
	}
	if w || r.needsRex() {
		b.emit8(rex(w, false, false, r.needsRex()))
	}
	b.emit8(opcode)
	b.emit8(modrm(3, 1, r.lowBits()))
}

// EmitJz emits a near conditional jump-if-zero to l (0F 84 rel32).
func (b *Builder) EmitJz(l Label) {
	b.emitBytes(0x0F, 0x84)
	b.emitRel32(l)
}

// EmitJnz emits a near conditional jump-if-not-zero to l (0F 85 rel32).
func (b *Builder) EmitJnz(l Label) {
	b.emitBytes(0x0F, 0x85)
	b.emitRel32(l)
}

// EmitJmpLabel emits an unconditional near jump to l (E9 rel32).
func (b *Builder) EmitJmpLabel(l Label) {
	b.emit8(0xE9)
	b.emitRel32(l)
}

// EmitMovRR emits "mov dst, src" for same-class/width GP registers.
func (b *Builder) EmitMovRR(dst, src Reg) {
	w := dst.Size == 64
	if dst.Size == 16 {
		b.emit8(0x66)
	}
	opcode := byte(0x89)
	if dst.Size == 8 {
		opcode = 0x88
	}
	if w || dst.needsRex() || src.needsRex() {
		b.emit8(rex(w, src.needsRex(), false, dst.needsRex()))
	}
	b.emit8(opcode)
	b.emit8(modrm(3, src.lowBits(), dst.lowBits()))
}

// EmitMovImm32 emits "mov r32/r64, imm32" (sign/zero-extended per dst
// width) — used to seed predictable register state in the pre-body.
func (b *Builder) EmitMovImm32(dst Reg, imm uint32) {
	w := dst.Size == 64
	if w || dst.needsRex() {
		b.emit8(rex(w, false, false, dst.needsRex()))
	}
	b.emit8(0xC7)
	b.emit8(modrm(3, 0, dst.lowBits()))
	b.emit32(imm)
}

// EmitPush/EmitPop emit the 1-byte-opcode push/pop r64 form used by the
// prologue/epilogue to save callee-saved registers.
func (b *Builder) EmitPush(r Reg) {
	if r.needsRex() {
		b.emit8(rex(false, false, false, true))
	}
	b.emit8(0x50 + r.lowBits())
}

func (b *Builder) EmitPop(r Reg) {
	if r.needsRex() {
		b.emit8(rex(false, false, false, true))
	}
	b.emit8(0x58 + r.lowBits())
}

// EmitRet emits a bare "ret".
func (b *Builder) EmitRet() { b.emit8(0xC3) }

// EmitNopPad appends n single-byte NOPs. The probe emitter uses it to pad
// the loop head up to the next 16-byte offset of the code buffer (see
// padToAlign in pkg/cult/probe.go).
func (b *Builder) EmitNopPad(n int) {
	for i := 0; i < n; i++ {
		b.emit8(0x90)
	}
}

// EmitRdtsc/EmitRdtscp/EmitLfence/EmitMfence/EmitCpuid are thin wrappers
// so the probe emitter can sequence the TSC bracket without going through
// the instruction-under-test database (they are part of every probe's
// fixed outer frame, not the measured instruction itself).
func (b *Builder) EmitRdtsc()  { b.emitBytes(0x0F, 0x31) }
func (b *Builder) EmitRdtscp() { b.emitBytes(0x0F, 0x01, 0xF9) }
func (b *Builder) EmitLfence() { b.emitBytes(0x0F, 0xAE, 0xE8) }
func (b *Builder) EmitMfence() { b.emitBytes(0x0F, 0xAE, 0xF0) }

// EmitSubRR emits "sub dst, src" (used for the end-sample hi:lo subtract).
func (b *Builder) EmitSubRR(dst, src Reg) {
	w := dst.Size == 64
	if w || dst.needsRex() || src.needsRex() {
		b.emit8(rex(w, src.needsRex(), false, dst.needsRex()))
	}
	b.emit8(0x29)
	b.emit8(modrm(3, src.lowBits(), dst.lowBits()))
}

// EmitSbbRR emits "sbb dst, src" (borrow-propagating subtract for the
// 64-bit cycle-count difference's high half. RDTSC/RDTSCP's EDX:EAX pair
// is assembled into one 64-bit register before the subtraction, so a
// single 64-bit subtract replaces the classic 32-bit "sub lo; sbb hi"
// pairing; see DESIGN.md).
func (b *Builder) EmitSbbRR(dst, src Reg) {
	w := dst.Size == 64
	if w || dst.needsRex() || src.needsRex() {
		b.emit8(rex(w, src.needsRex(), false, dst.needsRex()))
	}
	b.emit8(0x19)
	b.emit8(modrm(3, src.lowBits(), dst.lowBits()))
}

// EmitShlImm emits "shl r, imm8" (used to assemble EDX:EAX into one
// 64-bit value after RDTSC: rdx << 32 | rax).
func (b *Builder) EmitShlImm(r Reg, imm uint8) {
	w := r.Size == 64
	if w || r.needsRex() {
		b.emit8(rex(w, false, false, r.needsRex()))
	}
	b.emit8(0xC1)
	b.emit8(modrm(3, 4, r.lowBits()))
	b.emit8(imm)
}

// EmitOrRR emits "or dst, src" (used to merge rdx<<32 | rax).
func (b *Builder) EmitOrRR(dst, src Reg) {
	w := dst.Size == 64
	if w || dst.needsRex() || src.needsRex() {
		b.emit8(rex(w, src.needsRex(), false, dst.needsRex()))
	}
	b.emit8(0x09)
	b.emit8(modrm(3, src.lowBits(), dst.lowBits()))
}

// EmitStoreMem64 emits "mov [base], src" storing a 64-bit register
// through a pointer (the probe's final `out_cycles_ptr` write).
func (b *Builder) EmitStoreMem64(base, src Reg) {
	if src.needsRex() || base.needsRex() {
		b.emit8(rex(true, src.needsRex(), false, base.needsRex()))
	} else {
		b.emit8(rex(true, false, false, false))
	}
	b.emit8(0x89)
	b.emit8(modrm(0, src.lowBits(), 4))
	b.emit8(sibByte(0, 4, base.lowBits()))
}

// EmitMovFromMem64 emits "mov dst, [base+disp]".
func (b *Builder) EmitMovFromMem64(dst, base Reg, disp int32) {
	b.emit8(rex(true, dst.needsRex(), false, base.needsRex()))
	b.emit8(0x8B)
	b.emit8(modrm(2, dst.lowBits(), 4))
	b.emit8(sibByte(0, 4, base.lowBits()))
	b.emit32(uint32(disp))
}

// EmitStoreMem32Disp emits "mov [base+disp], src" for a 32-bit GP source,
// used to fill the scratch region with a repeated word pattern (divider
// pre-fill).
func (b *Builder) EmitStoreMem32Disp(base, src Reg, disp int32) {
	if src.needsRex() || base.needsRex() {
		b.emit8(rex(false, src.needsRex(), false, base.needsRex()))
	}
	b.emit8(0x89)
	b.emit8(modrm(2, src.lowBits(), 4))
	b.emit8(sibByte(0, 4, base.lowBits()))
	b.emit32(uint32(disp))
}

// EmitAddRSPImm adjusts RSP by a signed 32-bit immediate ("add rsp,
// imm32" for positive n, encoded directly as ADD rather than via SUB so
// callers can pass a negative n to open a scratch region in one emit).
func (b *Builder) EmitAddRSPImm(n int32) {
	rsp := GP(64, RSP)
	b.emit8(rex(true, false, false, false))
	b.emit8(0x81)
	b.emit8(modrm(3, 0, rsp.lowBits()))
	b.emit32(uint32(n))
}

// EmitLeaLabel emits "lea dst, [rip+disp32]" targeting l — the
// position-independent way to materialize a code address inside a JIT
// page whose final load address isn't known until mmap (the call probe's
// special case: load a pointer to an intra-function trampoline label).
// ModRM mod=00, rm=101 is the RIP-relative form in 64-bit mode;
// the displacement reuses the builder's normal rel32 fixup machinery
// since RIP-relative disp32 and a branch's rel32 resolve identically
// (both are "target - address of the next instruction").
func (b *Builder) EmitLeaLabel(dst Reg, l Label) {
	b.emit8(rex(true, dst.needsRex(), false, false))
	b.emit8(0x8D)
	b.emit8(modrm(0, dst.lowBits(), 5))
	b.emitRel32(l)
}

// EmitStoreMem64Disp emits "mov [base+disp], src" for a 64-bit GP source,
// used to place a trampoline address into a memory-operand call site's
// backing slot before the call reads it: load-address, then call, then
// ret, the resolution chosen for "call on a memory operand".
func (b *Builder) EmitStoreMem64Disp(base, src Reg, disp int32) {
	b.emit8(rex(true, src.needsRex(), false, base.needsRex()))
	b.emit8(0x89)
	b.emit8(modrm(2, src.lowBits(), 4))
	b.emit8(sibByte(0, 4, base.lowBits()))
	b.emit32(uint32(disp))
}
