package xasm

// Extension groups instructions by the register file / decoder era they
// belong to, driving pre/post-body care in the probe emitter (MMX needs
// post-body emms, AVX needs post-body vzeroupper) and the
// unaligned-access safety check.
type Extension uint8

const (
	ExtGP Extension = iota
	ExtMMX
	ExtSSE
	ExtAVX
	ExtAVX512
)

// Signature is one admissible operand-shape row for an instruction, as
// stored in the instruction database.
type Signature struct {
	Mode Mode
	Ops  []OpFlag
}

// InstEntry is one instruction's full database row: its signatures, the
// CPU features it requires (intersected against the detected host set by
// the feasibility oracle, C3), and its register-file extension.
type InstEntry struct {
	Id         InstId
	Name       string
	Signatures []Signature
	Features   Feature
	Ext        Extension
}

var db = map[InstId]*InstEntry{}
var byName = map[string]InstId{}

func register(e *InstEntry) {
	db[e.Id] = e
	byName[e.Name] = e.Id
}

// ByName resolves a mnemonic to its InstId.
func ByName(name string) (InstId, bool) {
	id, ok := byName[name]
	return id, ok
}

// Info returns the database row for id.
func Info(id InstId) (*InstEntry, bool) {
	e, ok := db[id]
	return e, ok
}

// All returns every registered instruction id, in registration order, for
// the driver to iterate over.
func All() []InstId {
	out := make([]InstId, 0, len(db))
	for _, id := range idOrder {
		out = append(out, id)
	}
	return out
}

var idOrder []InstId

func sig(mode Mode, ops ...OpFlag) Signature { return Signature{Mode: mode, Ops: ops} }

const bothModes = Mode32 | Mode64

// widthGroup names the register/memory/immediate flags available at one
// GP operand width, used to build the binary-ALU family programmatically
// instead of hand-listing four nearly-identical signature blocks per
// instruction.
type widthGroup struct {
	mode Mode
	reg  OpFlag
	mem  OpFlag
	imm8 OpFlag
	imm  OpFlag
}

var gpWidths = []widthGroup{
	{bothModes, OpFlagGpb, OpFlagMem8, OpFlagImm8, OpFlagImm8},
	{bothModes, OpFlagGpw, OpFlagMem16, OpFlagImm8, OpFlagImm16},
	{bothModes, OpFlagGpd, OpFlagMem32, OpFlagImm8, OpFlagImm32},
	{Mode64, OpFlagGpq, OpFlagMem64, OpFlagImm8, OpFlagImm32}, // imm32 sign-extended into r64
}

// binaryALU builds the {r,r} {r,imm8} {r,imm} {m,r} {r,m} signature family
// shared by add/sub/and/or/xor/cmp/mov-like two-operand instructions.
func binaryALU(includeMem bool) []Signature {
	var out []Signature
	for _, w := range gpWidths {
		out = append(out, sig(w.mode, w.reg, w.reg))
		out = append(out, sig(w.mode, w.reg, w.imm8))
		if w.imm != w.imm8 {
			out = append(out, sig(w.mode, w.reg, w.imm))
		}
		if includeMem {
			out = append(out, sig(w.mode, w.mem, w.reg))
			out = append(out, sig(w.mode, w.reg, w.mem))
		}
	}
	return out
}

// shiftFamily builds the {r,imm8} {r,cl} signature family shared by
// shl/shr/sar/rol/ror: the shift count is either an immediate or the
// fixed CL register.
func shiftFamily() []Signature {
	var out []Signature
	for _, w := range gpWidths {
		out = append(out, sig(w.mode, w.reg, OpFlagImm8))
		out = append(out, sig(w.mode, w.reg, OpFlagCl))
	}
	return out
}

// bitFieldFamily builds the {r,r} {r,imm8} family for bt/bts/btr/btc.
func bitFieldFamily() []Signature {
	var out []Signature
	for _, w := range gpWidths {
		if w.mode == Mode64 && w.reg == OpFlagGpb {
			continue
		}
		if w.reg == OpFlagGpb {
			continue // bt family has no 8-bit form
		}
		out = append(out, sig(w.mode, w.reg, w.reg))
		out = append(out, sig(w.mode, w.reg, OpFlagImm8))
	}
	return out
}

// unaryFamily builds the single-operand {r} (optionally {m}) family shared
// by inc/dec/neg/not/popcnt/lzcnt/tzcnt/bsf/bsr.
func unaryFamily(includeMem, includeByte bool) []Signature {
	var out []Signature
	for _, w := range gpWidths {
		if w.reg == OpFlagGpb && !includeByte {
			continue
		}
		out = append(out, sig(w.mode, w.reg))
		if includeMem {
			out = append(out, sig(w.mode, w.mem))
		}
	}
	return out
}

func init() {
	order := func(id InstId) { idOrder = append(idOrder, id) }

	alu := func(id InstId, name string, mem bool) {
		register(&InstEntry{Id: id, Name: name, Signatures: binaryALU(mem), Ext: ExtGP})
		order(id)
	}
	alu(IdAdd, "add", true)
	alu(IdSub, "sub", true)
	alu(IdAnd, "and", true)
	alu(IdOr, "or", true)
	alu(IdXor, "xor", true)
	alu(IdCmp, "cmp", true)
	alu(IdTest, "test", true)
	alu(IdMov, "mov", true)

	register(&InstEntry{Id: IdImul, Name: "imul", Ext: ExtGP, Signatures: []Signature{
		sig(bothModes, OpFlagGpw, OpFlagGpw),
		sig(bothModes, OpFlagGpd, OpFlagGpd),
		sig(Mode64, OpFlagGpq, OpFlagGpq),
	}})
	order(IdImul)

	shift := func(id InstId, name string) {
		register(&InstEntry{Id: id, Name: name, Signatures: shiftFamily(), Ext: ExtGP})
		order(id)
	}
	shift(IdShl, "shl")
	shift(IdShr, "shr")
	shift(IdSar, "sar")
	shift(IdRol, "rol")
	shift(IdRor, "ror")

	bf := func(id InstId, name string) {
		register(&InstEntry{Id: id, Name: name, Signatures: bitFieldFamily(), Ext: ExtGP})
		order(id)
	}
	bf(IdBt, "bt")
	bf(IdBts, "bts")
	bf(IdBtr, "btr")
	bf(IdBtc, "btc")

	divMul := func(id InstId, name string) {
		register(&InstEntry{Id: id, Name: name, Ext: ExtGP, Signatures: unaryFamily(true, true)})
		order(id)
	}
	divMul(IdDiv, "div")
	divMul(IdIdiv, "idiv")
	divMul(IdMul, "mul")

	implicit := func(id InstId, name string, feat Feature) {
		register(&InstEntry{Id: id, Name: name, Ext: ExtGP, Features: feat,
			Signatures: []Signature{sig(ModeImplicit)}})
		order(id)
	}
	implicit(IdCdq, "cdq", 0)
	implicit(IdCwd, "cwd", 0)
	implicit(IdCqo, "cqo", 0)
	implicit(IdCbw, "cbw", 0)
	implicit(IdCwde, "cwde", 0)
	implicit(IdCdqe, "cdqe", 0)
	implicit(IdRet, "ret", 0)
	implicit(IdLfence, "lfence", FeatSSE2)
	implicit(IdMfence, "mfence", FeatSSE2)
	implicit(IdRdtsc, "rdtsc", 0)
	implicit(IdRdtscp, "rdtscp", FeatRDTSCP)
	implicit(IdCpuid, "cpuid", 0)
	implicit(IdVzeroupper, "vzeroupper", FeatAVX)
	implicit(IdVzeroall, "vzeroall", FeatAVX)
	implicit(IdEmms, "emms", FeatMMX)
	implicit(IdXgetbv, "xgetbv", 0)

	unary := func(id InstId, name string, mem, byteOK bool) {
		register(&InstEntry{Id: id, Name: name, Ext: ExtGP, Signatures: unaryFamily(mem, byteOK)})
		order(id)
	}
	unary(IdInc, "inc", true, true)
	unary(IdDec, "dec", true, true)
	unary(IdNeg, "neg", true, true)
	unary(IdNot, "not", true, true)
	unary(IdBswap, "bswap", false, false)
	register(&InstEntry{Id: IdPopcnt, Name: "popcnt", Ext: ExtGP, Features: FeatPOPCNT,
		Signatures: []Signature{
			sig(bothModes, OpFlagGpw, OpFlagGpw),
			sig(bothModes, OpFlagGpd, OpFlagGpd),
			sig(Mode64, OpFlagGpq, OpFlagGpq),
		}})
	order(IdPopcnt)
	register(&InstEntry{Id: IdLzcnt, Name: "lzcnt", Ext: ExtGP, Features: FeatLZCNT,
		Signatures: []Signature{
			sig(bothModes, OpFlagGpw, OpFlagGpw),
			sig(bothModes, OpFlagGpd, OpFlagGpd),
			sig(Mode64, OpFlagGpq, OpFlagGpq),
		}})
	order(IdLzcnt)
	register(&InstEntry{Id: IdTzcnt, Name: "tzcnt", Ext: ExtGP, Features: FeatBMI1,
		Signatures: []Signature{
			sig(bothModes, OpFlagGpw, OpFlagGpw),
			sig(bothModes, OpFlagGpd, OpFlagGpd),
			sig(Mode64, OpFlagGpq, OpFlagGpq),
		}})
	order(IdTzcnt)
	register(&InstEntry{Id: IdBsf, Name: "bsf", Ext: ExtGP, Signatures: []Signature{
		sig(bothModes, OpFlagGpw, OpFlagGpw),
		sig(bothModes, OpFlagGpd, OpFlagGpd),
		sig(Mode64, OpFlagGpq, OpFlagGpq),
	}})
	order(IdBsf)
	register(&InstEntry{Id: IdBsr, Name: "bsr", Ext: ExtGP, Signatures: []Signature{
		sig(bothModes, OpFlagGpw, OpFlagGpw),
		sig(bothModes, OpFlagGpd, OpFlagGpd),
		sig(Mode64, OpFlagGpq, OpFlagGpq),
	}})
	order(IdBsr)

	register(&InstEntry{Id: IdPush, Name: "push", Ext: ExtGP, Signatures: []Signature{
		sig(bothModes, OpFlagGpw),
		sig(Mode64, OpFlagGpq),
		sig(Mode64, OpFlagMem64),
	}})
	order(IdPush)
	register(&InstEntry{Id: IdPop, Name: "pop", Ext: ExtGP, Signatures: []Signature{
		sig(bothModes, OpFlagGpw),
		sig(Mode64, OpFlagGpq),
		sig(Mode64, OpFlagMem64),
	}})
	order(IdPop)

	// lea/call/jmp are hand-driven by the classifier's special-case table:
	// no generic signature enumeration for them.
	register(&InstEntry{Id: IdLea, Name: "lea", Ext: ExtGP})
	order(IdLea)
	register(&InstEntry{Id: IdCall, Name: "call", Ext: ExtGP})
	order(IdCall)
	register(&InstEntry{Id: IdJmp, Name: "jmp", Ext: ExtGP})
	order(IdJmp)

	register(&InstEntry{Id: IdRdrand, Name: "rdrand", Ext: ExtGP, Features: FeatRDRAND,
		Signatures: []Signature{
			sig(bothModes, OpFlagGpw),
			sig(bothModes, OpFlagGpd),
			sig(Mode64, OpFlagGpq),
		}})
	order(IdRdrand)
	register(&InstEntry{Id: IdRdseed, Name: "rdseed", Ext: ExtGP, Features: FeatRDSEED,
		Signatures: []Signature{
			sig(bothModes, OpFlagGpw),
			sig(bothModes, OpFlagGpd),
			sig(Mode64, OpFlagGpq),
		}})
	order(IdRdseed)

	register(&InstEntry{Id: IdPaddb, Name: "paddb", Ext: ExtMMX, Features: FeatMMX, Signatures: []Signature{
		sig(bothModes, OpFlagMm, OpFlagMm),
		sig(bothModes, OpFlagMm, OpFlagMem64),
	}})
	order(IdPaddb)
	register(&InstEntry{Id: IdAddps, Name: "addps", Ext: ExtSSE, Features: FeatSSE, Signatures: []Signature{
		sig(bothModes, OpFlagXmm, OpFlagXmm),
		sig(bothModes, OpFlagXmm, OpFlagMem128),
	}})
	order(IdAddps)
	register(&InstEntry{Id: IdMovdqu, Name: "movdqu", Ext: ExtSSE, Features: FeatSSE2, Signatures: []Signature{
		sig(bothModes, OpFlagXmm, OpFlagXmm),
		sig(bothModes, OpFlagXmm, OpFlagMem128),
		sig(bothModes, OpFlagMem128, OpFlagXmm),
	}})
	order(IdMovdqu)
	register(&InstEntry{Id: IdMovdqa, Name: "movdqa", Ext: ExtSSE, Features: FeatSSE2, Signatures: []Signature{
		sig(bothModes, OpFlagXmm, OpFlagXmm),
		sig(bothModes, OpFlagXmm, OpFlagMem128),
		sig(bothModes, OpFlagMem128, OpFlagXmm),
	}})
	order(IdMovdqa)
	register(&InstEntry{Id: IdVaddps, Name: "vaddps", Ext: ExtAVX, Features: FeatAVX, Signatures: []Signature{
		sig(bothModes, OpFlagYmm, OpFlagYmm, OpFlagYmm),
		sig(bothModes, OpFlagYmm, OpFlagYmm, OpFlagMem256),
	}})
	order(IdVaddps)
	register(&InstEntry{Id: IdVpaddb, Name: "vpaddb", Ext: ExtAVX, Features: FeatAVX2, Signatures: []Signature{
		sig(bothModes, OpFlagYmm, OpFlagYmm, OpFlagYmm),
		sig(bothModes, OpFlagYmm, OpFlagYmm, OpFlagMem256),
	}})
	order(IdVpaddb)
	register(&InstEntry{Id: IdVpaddd, Name: "vpaddd", Ext: ExtAVX512, Features: FeatAVX512F, Signatures: []Signature{
		sig(bothModes, OpFlagZmm, OpFlagZmm, OpFlagZmm),
		sig(bothModes, OpFlagZmm, OpFlagZmm, OpFlagZmm, OpFlagKReg),
	}})
	order(IdVpaddd)
	register(&InstEntry{Id: IdVgatherdps, Name: "vgatherdps", Ext: ExtAVX, Features: FeatAVX2, Signatures: []Signature{
		sig(bothModes, OpFlagXmm, OpFlagVm32x, OpFlagXmm),
		sig(bothModes, OpFlagZmm, OpFlagVm32z, OpFlagKReg),
	}})
	order(IdVgatherdps)
	register(&InstEntry{Id: IdVpscatterdd, Name: "vpscatterdd", Ext: ExtAVX512, Features: FeatAVX512F, Signatures: []Signature{
		sig(bothModes, OpFlagVm32z, OpFlagZmm, OpFlagKReg),
	}})
	order(IdVpscatterdd)

	register(&InstEntry{Id: IdVp2intersectd, Name: "vp2intersectd", Ext: ExtAVX512, Features: FeatAVX512F})
	order(IdVp2intersectd)
	register(&InstEntry{Id: IdVp2intersectq, Name: "vp2intersectq", Ext: ExtAVX512, Features: FeatAVX512F})
	order(IdVp2intersectq)
}
