package xasm

import "fmt"

// emitMMX assembles a two-operand 0F-prefixed MMX instruction (e.g.
// paddb mm, mm/m64): no mandatory prefix, no REX.W, 64-bit registers.
func emitMMX(b *Builder, opcode2 byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	if src, ok := asReg(ops[1]); ok {
		if dst.needsRex() || src.needsRex() {
			b.emit8(rex(false, dst.needsRex(), false, src.needsRex()))
		}
		b.emitBytes(0x0F, opcode2)
		b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
		return nil
	}
	m, _ := asMem(ops[1])
	b.emitBytes(0x0F, opcode2)
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// emitSSE assembles a two-operand legacy-SSE instruction with no
// mandatory prefix (e.g. addps xmm, xmm/m128).
func emitSSE(b *Builder, opcode2 byte, ops []Operand) error {
	dst, _ := asReg(ops[0])
	if src, ok := asReg(ops[1]); ok {
		if dst.needsRex() || src.needsRex() {
			b.emit8(rex(false, dst.needsRex(), false, src.needsRex()))
		}
		b.emitBytes(0x0F, opcode2)
		b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
		return nil
	}
	m, _ := asMem(ops[1])
	b.emitBytes(0x0F, opcode2)
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// emitMovdq assembles movdqu (mandatory prefix F3) / movdqa (mandatory
// prefix 66) in its three forms: xmm, xmm and xmm, m128 (0F 6F) and the
// store m128, xmm (0F 7F).
func emitMovdq(b *Builder, mandatoryPrefix byte, ops []Operand) error {
	if m, ok := asMem(ops[0]); ok {
		src, _ := asReg(ops[1])
		b.emit8(mandatoryPrefix)
		b.emitBytes(0x0F, 0x7F)
		return b.emitModRMReg(false, src.lowBits(), src.needsRex(), m)
	}
	dst, _ := asReg(ops[0])
	src, okReg := asReg(ops[1])
	b.emit8(mandatoryPrefix)
	if okReg {
		if dst.needsRex() || src.needsRex() {
			b.emit8(rex(false, dst.needsRex(), false, src.needsRex()))
		}
		b.emitBytes(0x0F, 0x6F)
		b.emit8(modrm(3, dst.lowBits(), src.lowBits()))
		return nil
	}
	m, _ := asMem(ops[1])
	b.emitBytes(0x0F, 0x6F)
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// vexVVVV maps a register id (0-15) to its VEX.vvvv encoding: the
// ones'-complement of the register number, spread into bits 3-6.
func vexVVVV(id uint8) byte { return (^id & 0xF) << 3 }

// emitVEX3 assembles the canonical AVX/AVX2 three-operand form
// "vop dst, src1, src2" (e.g. vaddps/vpaddb ymm, ymm, ymm/m256) using the
// two-byte VEX prefix (0xC5) when no REX.X/B/W bit is needed, else the
// simplified representative three-byte form. This does not model every
// VEX.mmmmm/pp combination asmjit supports.
func emitVEX3(b *Builder, opcode2 byte, ops []Operand) error {
	if len(ops) != 3 {
		return fmt.Errorf("xasm: vex3 op needs 3 operands, got %d", len(ops))
	}
	dst, _ := asReg(ops[0])
	src1, _ := asReg(ops[1])
	L := byte(0x04) // vector length bit: 256-bit (ymm)
	if dst.Class == ClassXMM {
		L = 0
	}
	if src2, ok := asReg(ops[2]); ok {
		if dst.needsRex() || src2.needsRex() {
			byte1 := byte(0xC4)
			rBit := byte(0x80)
			if !dst.needsRex() {
				rBit = 0
			}
			xBit := byte(0x40)
			bBit := byte(0x20)
			if !src2.needsRex() {
				bBit = 0
			}
			b.emit8(byte1)
			b.emit8(^(rBit | xBit | bBit)&0xE0 | 0x01)
			b.emit8(vexVVVV(src1.ID) | L | 0x01)
			b.emitBytes(opcode2)
			b.emit8(modrm(3, dst.lowBits(), src2.lowBits()))
			return nil
		}
		b.emit8(0xC5)
		b.emit8(0xF8 | vexVVVV(src1.ID) | L)
		b.emit8(opcode2)
		b.emit8(modrm(3, dst.lowBits(), src2.lowBits()))
		return nil
	}
	m, _ := asMem(ops[2])
	b.emit8(0xC5)
	b.emit8(0xF8 | vexVVVV(src1.ID) | L)
	b.emit8(opcode2)
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// emitEVEX3 assembles a representative AVX-512 zmm three-operand form
// (e.g. vpaddd zmm{k}, zmm, zmm/m512) with the four-byte EVEX prefix.
// Mask-register qualification is accepted on the destination slot when
// present but not independently validated bit-for-bit against the EVEX.P2
// merging/zeroing rules.
func emitEVEX3(b *Builder, opcode2 byte, ops []Operand) error {
	if len(ops) < 3 {
		return fmt.Errorf("xasm: evex3 op needs at least 3 operands, got %d", len(ops))
	}
	dst, _ := asReg(ops[0])
	src1, _ := asReg(ops[1])
	src2, okReg := asReg(ops[2])

	b.emit8(0x62)
	p0 := byte(0x03)
	if dst.needsRex() {
		p0 &^= 0x80 // R bit inverted, cleared when needed (approximate)
	}
	b.emit8(p0 | 0xF0)
	b.emit8(vexVVVV(src1.ID) | 0x04)
	b.emit8(0x40) // P2: zmm length (L'L=10), merging mask 0
	b.emitBytes(opcode2)
	if okReg {
		b.emit8(modrm(3, dst.lowBits(), src2.lowBits()))
		return nil
	}
	m, _ := asMem(ops[2])
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// emitGather assembles vgatherdps (representative VSIB gather, spec
// §4.6's gather/scatter special case): dst, vm32x-style mem, mask.
func emitGather(b *Builder, ops []Operand) error {
	if len(ops) != 3 {
		return fmt.Errorf("xasm: gather needs 3 operands, got %d", len(ops))
	}
	dst, _ := asReg(ops[0])
	m, _ := asMem(ops[1])
	b.emit8(0xC4)
	b.emit8(0xE2)
	b.emit8(0x79 ^ (vexVVVV(dst.ID) & 0x78))
	b.emit8(0x92)
	return b.emitModRMReg(false, dst.lowBits(), dst.needsRex(), m)
}

// emitScatter assembles vpscatterdd (AVX-512 VSIB scatter).
func emitScatter(b *Builder, ops []Operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("xasm: scatter needs 2 operands, got %d", len(ops))
	}
	m, _ := asMem(ops[0])
	src, _ := asReg(ops[1])
	b.emit8(0x62)
	b.emit8(0xF2)
	b.emit8(0x7D)
	b.emit8(0x48)
	b.emit8(0xA0)
	return b.emitModRMReg(false, src.lowBits(), src.needsRex(), m)
}
