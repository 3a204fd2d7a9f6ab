package xasm

import "fmt"

// rex builds a REX prefix byte. w selects 64-bit operand size; r/x/b are
// the high bits of the ModRM.reg, SIB.index and ModRM.rm/SIB.base fields
// respectively.
func rex(w, r, x, bb bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if bb {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | (rm & 7) }
func sibByte(scale, index, base byte) byte {
	return scale<<6 | (index&7)<<3 | (base & 7)
}

func scaleBits(scale uint8) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

// emitModRMReg emits the ModRM(+SIB+disp) encoding of one r/m operand
// (register or memory) paired with a reg-field value (either another
// register id or a group opcode-extension digit), plus the REX prefix the
// combination requires. w forces REX.W (64-bit operand size).
func (b *Builder) emitModRMReg(w bool, regField uint8, regNeedsRex bool, rm any) error {
	switch v := rm.(type) {
	case Reg:
		if w || regNeedsRex || v.needsRex() {
			b.emit8(rex(w, regNeedsRex, false, v.needsRex()))
		}
		b.emit8(modrm(3, regField, v.lowBits()))
		return nil
	case Mem:
		// Always encode via SIB + disp32 (mod=10): simple, uniformly
		// correct regardless of which base register is chosen, at the
		// cost of a few extra bytes versus the optimal short forms. See
		// DESIGN.md.
		baseNeedsRex := v.Base.needsRex()
		indexNeedsRex := v.HasIndex && v.Index.needsRex()
		if w || regNeedsRex || baseNeedsRex || indexNeedsRex {
			b.emit8(rex(w, regNeedsRex, indexNeedsRex, baseNeedsRex))
		}
		b.emit8(modrm(2, regField, 4)) // rm=100 => SIB follows
		idx := byte(4)                 // 100 = no index
		if v.HasIndex {
			idx = v.Index.lowBits()
		}
		b.emit8(sibByte(scaleBits(v.Scale), idx, v.Base.lowBits()))
		b.emit32(uint32(v.Disp))
		return nil
	default:
		return fmt.Errorf("xasm: unsupported r/m operand %T", rm)
	}
}

func opSize(op Operand) uint16 {
	switch v := op.(type) {
	case Reg:
		return uint16(v.Size)
	case Mem:
		return v.Size
	case Imm:
		return uint16(v.Size)
	default:
		return 0
	}
}

func (b *Builder) maybeOpSizePrefix(size uint16) {
	if size == 16 {
		b.emit8(0x66)
	}
}

func (b *Builder) emitImm(im Imm) {
	switch im.Size {
	case 8:
		b.emit8(byte(im.Value))
	case 16:
		b.emit16(uint16(im.Value))
	case 32:
		b.emit32(uint32(im.Value))
	case 64:
		b.emit64(im.Value)
	}
}

type aluDef struct {
	rmR8, rmRw   byte // r/m, r  (8-bit / 16-32-64-bit opcode)
	rRm8, rRmw   byte // r, r/m
	immGroupReg  byte // ModRM.reg digit for the 0x80/0x81/0x83 group
}

var aluTable = map[InstId]aluDef{
	IdAdd: {0x00, 0x01, 0x02, 0x03, 0},
	IdOr:  {0x08, 0x09, 0x0A, 0x0B, 1},
	IdAnd: {0x20, 0x21, 0x22, 0x23, 4},
	IdSub: {0x28, 0x29, 0x2A, 0x2B, 5},
	IdXor: {0x30, 0x31, 0x32, 0x33, 6},
	IdCmp: {0x38, 0x39, 0x3A, 0x3B, 7},
}

// Assembler emits machine code for one (instId, operands) combination,
// validates that a signature admits the concrete operand shape, and
// reports the CPU features that shape requires.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Validate reports whether id admits the given concrete operand shape
// under arch: some signature in the database must match operand count,
// per-slot kind and execution mode.
func (a *Assembler) Validate(id InstId, arch Arch, ops []Operand) error {
	entry, ok := Info(id)
	if !ok || id == IdNone {
		return fmt.Errorf("xasm: unknown instruction id %d", id)
	}
	if len(entry.Signatures) == 0 {
		// Special-cased instructions (lea/call/jmp) and some zero-operand
		// forms are validated structurally by their emit function instead.
		return nil
	}
	wantMode := Mode32
	if arch == ArchX64 {
		wantMode = Mode64
	}
	kinds := make([]string, len(ops))
	for i, op := range ops {
		kinds[i] = operandKindName(op)
	}
	for _, s := range entry.Signatures {
		if s.Mode&wantMode == 0 && s.Mode != ModeImplicit {
			continue
		}
		if len(s.Ops) != len(ops) {
			continue
		}
		match := true
		for i, flag := range s.Ops {
			if flag.Name() == kinds[i] {
				continue
			}
			// A fixed CL slot matches only the 8-bit RCX register, which
			// operandKindName reports as a generic "r8".
			if r, ok := ops[i].(Reg); ok && flag == OpFlagCl && r.Class == ClassGP && r.Size == 8 && r.ID == RCX {
				continue
			}
			match = false
			break
		}
		if match {
			return nil
		}
	}
	return fmt.Errorf("xasm: %s does not admit operand shape %v", entry.Name, kinds)
}

func operandKindName(op Operand) string {
	switch v := op.(type) {
	case Reg:
		return regKindName(v)
	case Mem:
		return memKindName(v)
	case Imm:
		return immKindName(v)
	case Label:
		return "rel"
	default:
		return "?"
	}
}

func regKindName(r Reg) string {
	switch r.Class {
	case ClassGP:
		switch r.Size {
		case 8:
			return "r8"
		case 16:
			return "r16"
		case 32:
			return "r32"
		case 64:
			return "r64"
		}
	case ClassMM:
		return "mm"
	case ClassXMM:
		return "xmm"
	case ClassYMM:
		return "ymm"
	case ClassZMM:
		return "zmm"
	case ClassK:
		return "k"
	}
	return "?"
}

func memKindName(m Mem) string {
	switch m.Size {
	case 8:
		return "m8"
	case 16:
		return "m16"
	case 32:
		return "m32"
	case 64:
		return "m64"
	case 128:
		return "m128"
	case 256:
		return "m256"
	case 512:
		return "m512"
	}
	return "?"
}

func immKindName(im Imm) string {
	switch im.Size {
	case 8:
		return "i8"
	case 16:
		return "i16"
	case 32:
		return "i32"
	case 64:
		return "i64"
	}
	return "?"
}

// RequiredFeatures returns the CPU-feature bitmask id requires (spec
// §4.2 step 2). This representative database keys features per
// instruction rather than per signature — real per-signature feature
// variance (e.g. a memory-operand-only encoding needing a narrower
// feature set) is not modeled; see DESIGN.md.
func (a *Assembler) RequiredFeatures(id InstId) Feature {
	entry, ok := Info(id)
	if !ok {
		return 0
	}
	return entry.Features
}
