package cult

import (
	"fmt"
	"log/slog"

	"github.com/ja7ad/cult/pkg/jitmem"
	"github.com/ja7ad/cult/pkg/xasm"
)

// isSafeGp is a hard allow-list: some instructions are unsafe to
// enumerate outside user mode (I/O port access, ring-0-only forms), so
// the generic GP path only ever emits instructions named here. Every
// GP-extension instruction this database knows about is ring-3 safe; the
// list names those that reach the generic path, except ret, which is not
// listed and so is skipped with a warning (lea, call and jmp take their
// special-case paths first). Vector instructions never need the check,
// since every vector op registered here is always permitted.
var isSafeGp = map[xasm.InstId]bool{
	xasm.IdAdd: true, xasm.IdSub: true, xasm.IdAnd: true, xasm.IdOr: true,
	xasm.IdXor: true, xasm.IdCmp: true, xasm.IdTest: true, xasm.IdMov: true,
	xasm.IdImul: true, xasm.IdShl: true, xasm.IdShr: true, xasm.IdSar: true,
	xasm.IdRol: true, xasm.IdRor: true, xasm.IdBt: true, xasm.IdBts: true,
	xasm.IdBtr: true, xasm.IdBtc: true, xasm.IdDiv: true, xasm.IdIdiv: true,
	xasm.IdMul: true, xasm.IdCdq: true, xasm.IdCwd: true, xasm.IdCqo: true,
	xasm.IdCbw: true, xasm.IdCwde: true, xasm.IdCdqe: true, xasm.IdInc: true,
	xasm.IdDec: true, xasm.IdNeg: true, xasm.IdNot: true, xasm.IdBswap: true,
	xasm.IdPopcnt: true, xasm.IdLzcnt: true, xasm.IdTzcnt: true, xasm.IdBsf: true,
	xasm.IdBsr: true, xasm.IdPush: true, xasm.IdPop: true, xasm.IdRdrand: true,
	xasm.IdRdseed: true,
}

// ignoredInst is the skip-list of instructions that need a register
// pattern (AVX-512 triple-source-register forms) this database doesn't
// currently validate, so the classifier never enumerates them.
var ignoredInst = map[xasm.InstId]bool{
	xasm.IdVp2intersectd: true,
	xasm.IdVp2intersectq: true,
}

// fenceLike are the zero-operand/serializing instructions the classifier
// special-cases directly rather than running through the generic
// descriptor/materializer path.
var fenceLike = map[xasm.InstId]bool{
	xasm.IdCpuid: true, xasm.IdEmms: true, xasm.IdLfence: true,
	xasm.IdMfence: true, xasm.IdRdtsc: true, xasm.IdRdtscp: true,
	xasm.IdVzeroall: true, xasm.IdVzeroupper: true, xasm.IdXgetbv: true,
}

// cpuidLike instructions use the harness's much smaller nIter table,
// since they cost thousands of cycles each and the usual unroll/iteration
// counts would make a full sweep impractically slow.
var cpuidLike = map[xasm.InstId]bool{
	xasm.IdCpuid: true, xasm.IdRdrand: true, xasm.IdRdseed: true,
}

var shiftRotateByImm = map[xasm.InstId]bool{
	xasm.IdShl: true, xasm.IdShr: true, xasm.IdSar: true, xasm.IdRol: true, xasm.IdRor: true,
}

// fullOverwriteFromImm mnemonics replace the destination's entire value from
// an immediate with no dependence on what was there before, so the rotation
// table's normal register-reuse chain (which only forms between two register
// slots) never kicks in for their reg,imm shape.
var fullOverwriteFromImm = map[xasm.InstId]bool{xasm.IdMov: true}

var dividers = map[xasm.InstId]bool{xasm.IdDiv: true, xasm.IdIdiv: true}
var multiplies = map[xasm.InstId]bool{xasm.IdMul: true, xasm.IdImul: true}
var pushPop = map[xasm.InstId]bool{xasm.IdPush: true, xasm.IdPop: true}
var bitField = map[xasm.InstId]bool{
	xasm.IdBt: true, xasm.IdBts: true, xasm.IdBtr: true, xasm.IdBtc: true,
}
var gathers = map[xasm.InstId]bool{xasm.IdVgatherdps: true}
var scatters = map[xasm.InstId]bool{xasm.IdVpscatterdd: true}

// Driver is the classifier/driver: the single entry point that walks
// every instruction id, decides its special-case shape (if any) or
// delegates to the signature iterator, and runs the full
// measure-latency/measure-throughput/combine/round pipeline for every
// descriptor it produces.
type Driver struct {
	asm       *xasm.Assembler
	oracle    *Oracle
	mat       *Materializer
	arch      xasm.Arch
	hasRdtscp bool
	precision Precision
	noRound   bool
}

// NewDriver builds a driver fixed to one host context. gatherBase is the
// arena base address pkg/cult/materialize.go's gather/scatter operands
// bind to; stackBase is the probe's private scratch-region displacement.
func NewDriver(asm *xasm.Assembler, oracle *Oracle, arch xasm.Arch, hasRdtscp bool, stackBase int32, gatherBase uint64, precision Precision, noRound bool) *Driver {
	return &Driver{
		asm:       asm,
		oracle:    oracle,
		mat:       NewMaterializer(stackBase, gatherBase),
		arch:      arch,
		hasRdtscp: hasRdtscp,
		precision: precision,
		noRound:   noRound,
	}
}

// RunAll measures every instruction the database knows about (minus the
// skip-list) and returns one Result per (instId, descriptor) pair,
// matching the CLI's default no-filter run.
func (d *Driver) RunAll() []Result {
	var out []Result
	for _, id := range xasm.All() {
		out = append(out, d.RunInst(id)...)
	}
	return out
}

// RunInst measures a single instruction id, applying a hand-written
// special case where one exists, otherwise delegating to the generic
// signature-iterator path.
func (d *Driver) RunInst(id xasm.InstId) []Result {
	if ignoredInst[id] {
		slog.Debug("cult: skipping ignored instruction", "id", id)
		return nil
	}

	entry, ok := xasm.Info(id)
	if !ok {
		return nil
	}

	switch {
	case fenceLike[id]:
		return d.runDescriptors(id, entry, []InstSpec{NewInstSpec()})
	case id == xasm.IdCall:
		return d.runDescriptors(id, entry, []InstSpec{
			NewInstSpec(OpRel),
			NewInstSpec(gpArchWidth(d.arch)),
			NewInstSpec(memArchWidth(d.arch)),
		})
	case id == xasm.IdJmp:
		return d.runDescriptors(id, entry, []InstSpec{NewInstSpec(OpRel)})
	case id == xasm.IdLea:
		return d.runDescriptors(id, entry, leaDescriptors(d.arch))
	default:
		if entry.Ext == xasm.ExtGP && !isSafeGp[id] {
			slog.Warn("cult: instruction not on the GP safety allow-list, skipping", "id", id, "name", entry.Name)
			return nil
		}
		descs := CollectDescriptors(id, d.arch, NewSigFilter())
		return d.runDescriptors(id, entry, descs)
	}
}

// runDescriptors measures every descriptor for one instruction: latency
// (serial), throughput (parallel), and their overhead twins, combines the
// two per-mode measurements, and emits one Result each.
func (d *Driver) runDescriptors(id xasm.InstId, entry *xasm.InstEntry, descs []InstSpec) []Result {
	var out []Result
	for _, spec := range descs {
		if !d.feasible(id, spec) {
			slog.Debug("cult: descriptor rejected by feasibility oracle", "id", id, "name", entry.Name, "ops", spec.String())
			continue
		}
		lat, rcp, err := d.measureOne(id, entry, spec)
		if err != nil {
			slog.Debug("cult: descriptor not runnable, skipping", "id", id, "name", entry.Name, "ops", spec.String(), "err", err)
			continue
		}
		out = append(out, Result{
			Name: entry.Name,
			Spec: spec,
			Lat:  lat,
			Rcp:  rcp,
		})
	}
	return out
}

// Result is one (instruction, descriptor) measurement, the unit C8 hands
// to pkg/report.
type Result struct {
	Name string
	Spec InstSpec
	Lat  float64
	Rcp  float64
}

// Text renders the report's textual instruction form: "mnemonic op0, op1,
// …", with call always rendered "call+ret" (the measurement includes the
// trampoline's ret) and lea rendered against its addressing-mode template
// rather than its folded single memory-operand descriptor, scaled forms
// ending in " * 8]".
func (r Result) Text() string {
	switch r.Name {
	case "call":
		return "call+ret"
	case "lea":
		addr := "[rB + rI]"
		if r.Spec.HasFlag(FlagLeaScale) {
			addr = "[rB + rI * 8]"
		}
		return fmt.Sprintf("lea %s, %s", r.Spec.Get(0), addr)
	default:
		ops := r.Spec.String()
		if ops == "" {
			return r.Name
		}
		return r.Name + " " + ops
	}
}

// feasible runs the descriptor's first materialized instance through the
// feasibility oracle, the check shared between descriptor rejection in
// the generic signature-iterator path and the hand-written special
// cases here. rel and call descriptors are exempted: their "operand" is
// a probe-construction artifact (a trampoline label/address), not
// something the assembler's generic Validate path understands.
func (d *Driver) feasible(id xasm.InstId, spec InstSpec) bool {
	if spec.Get(0) == OpRel || id == xasm.IdCall {
		return true
	}
	tuples := d.mat.Materialize(spec, Serial, 1)
	if len(tuples) == 0 {
		return true
	}
	return d.oracle.Runnable(id, tuples[0])
}

func (d *Driver) measureOne(id xasm.InstId, entry *xasm.InstEntry, spec InstSpec) (float64, float64, error) {
	opt := d.baseOptions(id, spec, entry.Ext)

	latMeasured, err := d.measure(opt, Serial)
	if err != nil {
		return 0, 0, err
	}
	latOverhead, err := d.measure(withOverhead(opt, Serial), Serial)
	if err != nil {
		return 0, 0, err
	}
	rcpMeasured, err := d.measure(opt, Parallel)
	if err != nil {
		return 0, 0, err
	}
	rcpOverhead, err := d.measure(withOverhead(opt, Parallel), Parallel)
	if err != nil {
		return 0, 0, err
	}

	lat := Overhead(latMeasured, latOverhead)
	rcp := Overhead(rcpMeasured, rcpOverhead)
	lat, rcp = Combine(lat, rcp)

	if !d.noRound {
		lat = Round(lat)
		rcp = Round(rcp)
	}
	return lat, rcp, nil
}

func (d *Driver) baseOptions(id xasm.InstId, spec InstSpec, ext xasm.Extension) ProbeOptions {
	opt := ProbeOptions{
		Id:         id,
		Spec:       spec,
		Overhead:   false,
		WriteOnly:  isWriteOnly(id, spec),
		IsDivider:  dividers[id],
		IsMul:      multiplies[id],
		IsPushPop:  pushPop[id],
		IsCall:     id == xasm.IdCall,
		IsBitField: bitField[id],
		IsGather:   gathers[id],
		IsScatter:  scatters[id],
		Ext:        ext,
		HasRdtscp:  d.hasRdtscp,
	}
	if opt.IsCall {
		opt.EmitCall = d.emitCallFor(spec)
	}
	return opt
}

// emitCallFor builds the call-site emitter for one call descriptor: the
// register/rel forms measure plain call+ret, the memory form measures
// load-address+call+ret (the composite an indirect call through a memory
// operand actually performs) — both are reported under the single
// "call+ret" text form, so the distinction only matters here, not in the
// emitted Result.
func (d *Driver) emitCallFor(spec InstSpec) func(b *xasm.Builder, trampoline xasm.Label, tuple []xasm.Operand, i int) error {
	kind := spec.Get(0)
	return func(b *xasm.Builder, trampoline xasm.Label, tuple []xasm.Operand, i int) error {
		switch {
		case kind == OpRel:
			return d.asm.Emit(b, xasm.IdCall, trampoline)
		case kind.isMem():
			mem, ok := tuple[0].(xasm.Mem)
			if !ok {
				return fmt.Errorf("cult: call memory descriptor materialized a non-memory operand")
			}
			scratch := xasm.GP(64, xasm.DepForceParkReg)
			b.EmitLeaLabel(scratch, trampoline)
			b.EmitStoreMem64Disp(mem.Base, scratch, mem.Disp)
			return d.asm.Emit(b, xasm.IdCall, mem)
		default:
			reg, ok := tuple[0].(xasm.Reg)
			if !ok {
				return fmt.Errorf("cult: call register descriptor materialized a non-register operand")
			}
			b.EmitLeaLabel(reg, trampoline)
			return d.asm.Emit(b, xasm.IdCall, reg)
		}
	}
}

func withOverhead(opt ProbeOptions, mode Parallelism) ProbeOptions {
	opt.Mode = mode
	opt.Overhead = true
	return opt
}

func (d *Driver) measure(opt ProbeOptions, mode Parallelism) (float64, error) {
	opt.Mode = mode
	code, err := BuildProbe(d.asm, d.mat, opt)
	if err != nil {
		return 0, err
	}
	fn, err := jitmem.Load(code)
	if err != nil {
		return 0, err
	}
	slog.Debug("probe mapped", "inst", opt.Id, "size", fn.Size().Humanized())
	defer func() {
		_ = fn.Release()
	}()

	cfg := DefaultHarnessConfig(d.precision, cpuidLike[opt.Id])
	run := func(iter uint32, _ HarnessConfig) uint64 {
		return fn.Call(iter)
	}
	return Measure(run, cfg), nil
}

// isWriteOnly reports whether a descriptor is treated as write-only: the
// zero-operand sign-extension family (cdq, cwd, cqo, cbw, cwde, cdqe),
// every pop form, and the two-operand shift/rotate and mov forms whose
// second operand is an immediate (e.g. shl reg,imm). Other shapes whose
// destination kind is absent from the source kinds, such as add r32,imm8,
// are not reported as write-only.
func isWriteOnly(id xasm.InstId, spec InstSpec) bool {
	n := spec.Count()
	if n == 0 {
		switch id {
		case xasm.IdCdq, xasm.IdCwd, xasm.IdCqo, xasm.IdCbw, xasm.IdCwde, xasm.IdCdqe:
			return true
		default:
			return false
		}
	}
	if id == xasm.IdPop {
		return true
	}
	if n < 2 {
		return false
	}
	dst := spec.Get(0)
	for i := 1; i < n; i++ {
		if spec.Get(i) == dst {
			return false
		}
	}
	// Shift/rotate family with an immediate count (named example:
	// "shl reg, imm"), and mov-family full overwrites from an immediate:
	// the second operand carries none of the destination's prior value, so
	// each unrolled instance's result depends only on its own output, never
	// the previous instance's — the rotation table's normal
	// destination/source register reuse never forms a chain for these, the
	// same write-only shape as pop, just spelled with two operands.
	if n == 2 && (shiftRotateByImm[id] || fullOverwriteFromImm[id]) && immSize(spec.Get(1)) > 0 {
		return true
	}
	return false
}

// gpArchWidth returns the widest generic GP register kind legal for arch.
func gpArchWidth(arch xasm.Arch) OpKind {
	if arch == xasm.ArchX64 {
		return OpGpq
	}
	return OpGpd
}

func memArchWidth(arch xasm.Arch) OpKind {
	if arch == xasm.ArchX64 {
		return OpMem64
	}
	return OpMem32
}

// leaDescriptors builds the two descriptors lea is measured over: the
// widest GP destination for arch against one memory kind, once without
// and once with SpecFlags.FlagLeaScale. Both materialize to the same
// stack-relative [rsp+disp] operand with no index register, and neither
// the materializer nor the probe emitter reads FlagLeaScale, so the two
// probes are identical; the flag only changes Result.Text. r32
// destinations on x64 and the reg+reg and scaled-index addressing forms
// that Result.Text names are not measured.
func leaDescriptors(arch xasm.Arch) []InstSpec {
	dst := gpArchWidth(arch)
	memKind := OpMem64
	if arch == xasm.ArchX86 {
		memKind = OpMem32
	}
	return []InstSpec{
		NewInstSpec(dst, memKind),
		NewInstSpec(dst, memKind).WithFlags(FlagLeaScale),
	}
}
