package xasm

import "fmt"

// Emit assembles one instance of id with the given concrete operands into
// b. Callers are expected to have called Validate first; Emit itself only
// re-checks the operand count/types it actually needs to pick an
// encoding.
func (a *Assembler) Emit(b *Builder, id InstId, ops ...Operand) error {
	if def, ok := aluTable[id]; ok {
		return emitALU(b, def, ops)
	}

	switch id {
	case IdMov:
		return emitMov(b, ops)
	case IdTest:
		return emitTest(b, ops)
	case IdImul:
		return emitImul(b, ops)
	case IdShl:
		return emitShift(b, 4, ops)
	case IdShr:
		return emitShift(b, 5, ops)
	case IdSar:
		return emitShift(b, 7, ops)
	case IdRol:
		return emitShift(b, 0, ops)
	case IdRor:
		return emitShift(b, 1, ops)
	case IdBt:
		return emitBitField(b, 4, ops)
	case IdBts:
		return emitBitField(b, 5, ops)
	case IdBtr:
		return emitBitField(b, 6, ops)
	case IdBtc:
		return emitBitField(b, 7, ops)
	case IdDiv:
		return emitDivMul(b, 6, ops)
	case IdIdiv:
		return emitDivMul(b, 7, ops)
	case IdMul:
		return emitDivMul(b, 4, ops)
	case IdInc:
		return emitIncDec(b, 0, ops)
	case IdDec:
		return emitIncDec(b, 1, ops)
	case IdNeg:
		return emitNotNeg(b, 3, ops)
	case IdNot:
		return emitNotNeg(b, 2, ops)
	case IdBswap:
		return emitBswap(b, ops)
	case IdPopcnt:
		return emitF3Prefixed(b, 0xB8, ops)
	case IdTzcnt:
		return emitF3Prefixed(b, 0xBC, ops)
	case IdBsf:
		return emitTwoByteRR(b, 0xBC, ops)
	case IdBsr:
		return emitTwoByteRR(b, 0xBD, ops)
	case IdLzcnt:
		return emitF3Prefixed(b, 0xBD, ops)
	case IdPush:
		return emitPush(b, ops)
	case IdPop:
		return emitPop(b, ops)
	case IdLea:
		return emitLea(b, ops)
	case IdCall:
		return emitCall(b, ops)
	case IdJmp:
		return emitJmp(b, ops)
	case IdRet:
		b.emit8(0xC3)
		return nil
	case IdLfence:
		b.emitBytes(0x0F, 0xAE, 0xE8)
		return nil
	case IdMfence:
		b.emitBytes(0x0F, 0xAE, 0xF0)
		return nil
	case IdRdtsc:
		b.emitBytes(0x0F, 0x31)
		return nil
	case IdRdtscp:
		b.emitBytes(0x0F, 0x01, 0xF9)
		return nil
	case IdCpuid:
		b.emitBytes(0x0F, 0xA2)
		return nil
	case IdEmms:
		b.emitBytes(0x0F, 0x77)
		return nil
	case IdXgetbv:
		b.emitBytes(0x0F, 0x01, 0xD0)
		return nil
	case IdVzeroupper:
		b.emitBytes(0xC5, 0xF8, 0x77)
		return nil
	case IdVzeroall:
		b.emitBytes(0xC5, 0xFC, 0x77)
		return nil
	case IdRdrand:
		return emitGroup15ish(b, 6, ops)
	case IdRdseed:
		return emitGroup15ish(b, 7, ops)
	case IdCdq:
		b.emit8(0x99)
		return nil
	case IdCwd:
		b.emitBytes(0x66, 0x99)
		return nil
	case IdCqo:
		b.emitBytes(0x48, 0x99)
		return nil
	case IdCbw:
		b.emitBytes(0x66, 0x98)
		return nil
	case IdCwde:
		b.emit8(0x98)
		return nil
	case IdCdqe:
		b.emitBytes(0x48, 0x98)
		return nil
	case IdPaddb:
		return emitMMX(b, 0xFC, ops)
	case IdAddps:
		return emitSSE(b, 0x58, ops)
	case IdMovdqu:
		return emitMovdq(b, 0xF3, ops)
	case IdMovdqa:
		return emitMovdq(b, 0x66, ops)
	case IdVaddps:
		return emitVEX3(b, 0x58, ops)
	case IdVpaddb:
		return emitVEX3(b, 0xFC, ops)
	case IdVpaddd:
		return emitEVEX3(b, 0xFE, ops)
	case IdVgatherdps:
		return emitGather(b, ops)
	case IdVpscatterdd:
		return emitScatter(b, ops)
	default:
		return fmt.Errorf("xasm: instruction id %d has no encoder", id)
	}
}

func asReg(op Operand) (Reg, bool)   { r, ok := op.(Reg); return r, ok }
func asMem(op Operand) (Mem, bool)   { m, ok := op.(Mem); return m, ok }
func asImm(op Operand) (Imm, bool)   { im, ok := op.(Imm); return im, ok }
func asLabel(op Operand) (Label, bool) { l, ok := op.(Label); return l, ok }

func wide(size uint16) bool { return size == 64 }

// emitALU assembles one of add/sub/and/or/xor/cmp across its {r,r}
// {r,imm8} {r,imm} {m,r} {r,m} signature family.
func emitALU(b *Builder, def aluDef, ops []Operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("xasm: alu op needs 2 operands, got %d", len(ops))
	}
	dst, dstIsReg := asReg(ops[0])
	dstMem, dstIsMem := asMem(ops[0])
	size := opSize(ops[0])
	b_ := b
	b_.maybeOpSizePrefix(size)

	if im, ok := asImm(ops[1]); ok {
		op8 := size == 8
		var opcode byte
		switch {
		case op8:
			opcode = 0x80
		case im.Size == 8:
			opcode = 0x83
		default:
			opcode = 0x81
		}
		if dstIsMem {
			b_.emit8(opcode)
			if err := b_.emitModRMReg(wide(size), def.immGroupReg, false, dstMem); err != nil {
				return err
			}
			b_.emitImm(im)
			return nil
		}
		// register destination: opcode must be emitted before ModRM.
		return emitALUImmReg(b_, opcode, def.immGroupReg, dst, im, size)
	}

	src, srcIsReg := asReg(ops[1])
	srcMem, srcIsMem := asMem(ops[1])
	switch {
	case dstIsReg && srcIsReg:
		opcode := def.rmRw
		if size == 8 {
			opcode = def.rmR8
		}
		b_.emit8(opcode)
		return b_.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dst)
	case dstIsMem && srcIsReg:
		opcode := def.rmRw
		if size == 8 {
			opcode = def.rmR8
		}
		b_.emit8(opcode)
		return b_.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dstMem)
	case dstIsReg && srcIsMem:
		opcode := def.rRmw
		if size == 8 {
			opcode = def.rRm8
		}
		b_.emit8(opcode)
		return b_.emitModRMReg(wide(size), dst.lowBits(), dst.needsRex(), srcMem)
	default:
		return fmt.Errorf("xasm: unsupported alu operand combination")
	}
}

func emitALUImmReg(b *Builder, opcode, regDigit byte, dst Reg, im Imm, size uint16) error {
	b.emit8(opcode)
	if err := b.emitModRMReg(wide(size), regDigit, false, dst); err != nil {
		return err
	}
	b.emitImm(im)
	return nil
}

func emitMov(b *Builder, ops []Operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("xasm: mov needs 2 operands")
	}
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	dst, dstIsReg := asReg(ops[0])
	dstMem, dstIsMem := asMem(ops[0])

	if im, ok := asImm(ops[1]); ok {
		opcode := byte(0xC7)
		if size == 8 {
			opcode = 0xB0 + 0 // use C6 form below instead for consistency
			opcode = 0xC6
		}
		if dstIsReg {
			b.emit8(opcode)
			if err := b.emitModRMReg(wide(size), 0, false, dst); err != nil {
				return err
			}
			b.emitImm(im)
			return nil
		}
		b.emit8(opcode)
		if err := b.emitModRMReg(wide(size), 0, false, dstMem); err != nil {
			return err
		}
		b.emitImm(im)
		return nil
	}

	src, srcIsReg := asReg(ops[1])
	srcMem, srcIsMem := asMem(ops[1])
	switch {
	case dstIsReg && srcIsReg:
		opcode := byte(0x89)
		if size == 8 {
			opcode = 0x88
		}
		b.emit8(opcode)
		return b.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dst)
	case dstIsMem && srcIsReg:
		opcode := byte(0x89)
		if size == 8 {
			opcode = 0x88
		}
		b.emit8(opcode)
		return b.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dstMem)
	case dstIsReg && srcIsMem:
		opcode := byte(0x8B)
		if size == 8 {
			opcode = 0x8A
		}
		b.emit8(opcode)
		return b.emitModRMReg(wide(size), dst.lowBits(), dst.needsRex(), srcMem)
	default:
		return fmt.Errorf("xasm: unsupported mov operand combination")
	}
}

func emitTest(b *Builder, ops []Operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("xasm: test needs 2 operands")
	}
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	dst, dstIsReg := asReg(ops[0])
	dstMem, _ := asMem(ops[0])

	if im, ok := asImm(ops[1]); ok {
		opcode := byte(0xF7)
		if size == 8 {
			opcode = 0xF6
		}
		if dstIsReg {
			b.emit8(opcode)
			if err := b.emitModRMReg(wide(size), 0, false, dst); err != nil {
				return err
			}
			b.emitImm(im)
			return nil
		}
		b.emit8(opcode)
		if err := b.emitModRMReg(wide(size), 0, false, dstMem); err != nil {
			return err
		}
		b.emitImm(im)
		return nil
	}

	src, _ := asReg(ops[1])
	opcode := byte(0x85)
	if size == 8 {
		opcode = 0x84
	}
	b.emit8(opcode)
	if dstIsReg {
		return b.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dst)
	}
	return b.emitModRMReg(wide(size), src.lowBits(), src.needsRex(), dstMem)
}

// emitImul assembles the two-operand "imul r, r/m" form (0F AF).
func emitImul(b *Builder, ops []Operand) error {
	dst, _ := asReg(ops[0])
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	if src, ok := asReg(ops[1]); ok {
		if wide(size) || dst.needsRex() || src.needsRex() {
			b.emit8(rex(wide(size), dst.needsRex(), false, src.needsRex()))
		}
		b.emitBytes(0x0F, 0xAF)
		b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
		return nil
	}
	return fmt.Errorf("xasm: unsupported imul operand combination")
}

// emitShift assembles shl/shr/sar/rol/ror (group2, opcode 0xC0/0xC1 for
// imm8 and 0xD2/0xD3 for the CL-implicit form).
func emitShift(b *Builder, regDigit byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)

	if im, ok := asImm(ops[1]); ok {
		opcode := byte(0xC1)
		if size == 8 {
			opcode = 0xC0
		}
		b.emit8(opcode)
		if err := b.emitModRMReg(wide(size), regDigit, false, dst); err != nil {
			return err
		}
		b.emit8(byte(im.Value))
		return nil
	}
	// CL-implicit form.
	opcode := byte(0xD3)
	if size == 8 {
		opcode = 0xD2
	}
	b.emit8(opcode)
	return b.emitModRMReg(wide(size), regDigit, false, dst)
}

// emitBitField assembles bt/bts/btr/btc, both the r,r (0F A3/AB/B3/BB —
// here folded to the 0F BA group-8 imm8 form plus a r,r variant) forms.
func emitBitField(b *Builder, regDigit byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)

	if im, ok := asImm(ops[1]); ok {
		if wide(size) || dst.needsRex() {
			b.emit8(rex(wide(size), false, false, dst.needsRex()))
		}
		b.emitBytes(0x0F, 0xBA)
		b.emit8(modrm(3, regDigit, dst.lowBits()))
		b.emit8(byte(im.Value))
		return nil
	}
	src, _ := asReg(ops[1])
	// r,r form: opcode depends on which bit-field op (A3/AB/B3/BB).
	opcodeByDigit := map[byte]byte{4: 0xA3, 5: 0xAB, 6: 0xB3, 7: 0xBB}
	if wide(size) || src.needsRex() || dst.needsRex() {
		b.emit8(rex(wide(size), src.needsRex(), false, dst.needsRex()))
	}
	b.emitBytes(0x0F, opcodeByDigit[regDigit])
	b.emit8(modrm(3, src.lowBits(), dst.lowBits()))
	return nil
}

// emitDivMul assembles div/idiv/mul (group3, single explicit operand;
// the AX/DX:AX family is implicit and handled by the probe's pre-body).
func emitDivMul(b *Builder, regDigit byte, ops []Operand) error {
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	opcode := byte(0xF7)
	if size == 8 {
		opcode = 0xF6
	}
	if r, ok := asReg(ops[0]); ok {
		b.emit8(opcode)
		return b.emitModRMReg(wide(size), regDigit, false, r)
	}
	m, _ := asMem(ops[0])
	b.emit8(opcode)
	return b.emitModRMReg(wide(size), regDigit, false, m)
}

func emitIncDec(b *Builder, regDigit byte, ops []Operand) error {
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	opcode := byte(0xFF)
	if size == 8 {
		opcode = 0xFE
	}
	if r, ok := asReg(ops[0]); ok {
		b.emit8(opcode)
		return b.emitModRMReg(wide(size), regDigit, false, r)
	}
	m, _ := asMem(ops[0])
	b.emit8(opcode)
	return b.emitModRMReg(wide(size), regDigit, false, m)
}

func emitNotNeg(b *Builder, regDigit byte, ops []Operand) error {
	return emitIncDec(b, regDigit, ops) // same group3 shape, different digit
}

func emitBswap(b *Builder, ops []Operand) error {
	r, _ := asReg(ops[0])
	if r.needsRex() || r.Size == 64 {
		b.emit8(rex(r.Size == 64, false, false, r.needsRex()))
	}
	b.emitBytes(0x0F, 0xC8+r.lowBits())
	return nil
}

func emitF3Prefixed(b *Builder, opcode2 byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	src, _ := asReg(ops[1])
	size := opSize(ops[0])
	b.emit8(0xF3)
	b.maybeOpSizePrefix(size)
	if wide(size) || dst.needsRex() || src.needsRex() {
		b.emit8(rex(wide(size), dst.needsRex(), false, src.needsRex()))
	}
	b.emitBytes(0x0F, opcode2)
	b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
	return nil
}

func emitTwoByteRR(b *Builder, opcode2 byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	src, _ := asReg(ops[1])
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	if wide(size) || dst.needsRex() || src.needsRex() {
		b.emit8(rex(wide(size), dst.needsRex(), false, src.needsRex()))
	}
	b.emitBytes(0x0F, opcode2)
	b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
	return nil
}

func emitPush(b *Builder, ops []Operand) error {
	if r, ok := asReg(ops[0]); ok {
		if r.needsRex() {
			b.emit8(rex(false, false, false, true))
		}
		if r.Size == 16 {
			b.emit8(0x66)
		}
		b.emit8(0x50 + r.lowBits())
		return nil
	}
	m, _ := asMem(ops[0])
	b.emit8(0xFF)
	return b.emitModRMReg(false, 6, false, m)
}

func emitPop(b *Builder, ops []Operand) error {
	if r, ok := asReg(ops[0]); ok {
		if r.needsRex() {
			b.emit8(rex(false, false, false, true))
		}
		if r.Size == 16 {
			b.emit8(0x66)
		}
		b.emit8(0x58 + r.lowBits())
		return nil
	}
	m, _ := asMem(ops[0])
	b.emit8(0x8F)
	return b.emitModRMReg(false, 0, false, m)
}

// emitLea assembles "lea dst, [mem]" via the classifier's dedicated path,
// for whatever Mem it is given; nothing upstream sets Mem.Scale from the
// descriptor's FlagLeaScale.
func emitLea(b *Builder, ops []Operand) error {
	dst, _ := asReg(ops[0])
	mem, _ := asMem(ops[1])
	b.emit8(0x8D)
	return b.emitModRMReg(wide(dst.Size), dst.lowBits(), dst.needsRex(), mem)
}

// emitCall assembles call rel32 / call r/m. It encodes only the call
// itself; for a memory operand the caller (pkg/cult's emitCallFor) first
// emits the lea + store that place the target address in the slot.
func emitCall(b *Builder, ops []Operand) error {
	if l, ok := asLabel(ops[0]); ok {
		b.emit8(0xE8)
		b.emitRel32(l)
		return nil
	}
	if r, ok := asReg(ops[0]); ok {
		if r.needsRex() {
			b.emit8(rex(false, false, false, true))
		}
		b.emit8(0xFF)
		b.emit8(modrm(3, 2, r.lowBits()))
		return nil
	}
	m, _ := asMem(ops[0])
	b.emit8(0xFF)
	return b.emitModRMReg(false, 2, false, m)
}

func emitJmp(b *Builder, ops []Operand) error {
	l, _ := asLabel(ops[0])
	b.emit8(0xE9)
	b.emitRel32(l)
	return nil
}

// emitGroup15ish assembles rdrand/rdseed (0F C7 /6, /7).
func emitGroup15ish(b *Builder, regDigit byte, ops []Operand) error {
	r, _ := asReg(ops[0])
	size := opSize(ops[0])
	b.maybeOpSizePrefix(size)
	if wide(size) || r.needsRex() {
		b.emit8(rex(wide(size), false, false, r.needsRex()))
	}
	b.emitBytes(0x0F, 0xC7)
	b.emit8(modrm(3, regDigit, r.lowBits()))
	return nil
}
