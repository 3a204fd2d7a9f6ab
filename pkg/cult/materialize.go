package cult

import "github.com/ja7ad/cult/pkg/xasm"

// Parallelism selects which register-rotation pattern the materializer
// uses for one descriptor: a serial chain for latency, or P independent
// chains for throughput.
type Parallelism uint8

const (
	Serial Parallelism = iota
	Parallel
)

// ParallelWidth is the parallel chain width P.
const ParallelWidth = 6

// UnrollFactor is the fixed unroll count N for one probe body.
const UnrollFactor = 64

// gpPool is the full 16-register GP id set minus every register the probe
// emitter reserves for its own bookkeeping: RSP, the loop counter, the
// saved TSC start count, the gather/scatter arena base, and the
// dependency-force/call-memory parking register. A materialized operand
// landing on any of these would silently corrupt the harness itself, not
// just the instruction under test.
var gpPool = buildGPPool()

func buildGPPool() []int {
	var out []int
	for id := 0; id < xasm.GPRegCount64; id++ {
		switch id {
		case xasm.StackPtrReg, xasm.LoopCounterReg, xasm.TSCAccumReg, xasm.ArenaBaseReg, xasm.DepForceParkReg:
			continue
		}
		out = append(out, id)
	}
	return out
}

// vecPool is the full vector register id set (no architectural clobbers
// among vector registers).
var vecPool = func() []int {
	out := make([]int, xasm.VecRegCount)
	for i := range out {
		out[i] = i
	}
	return out
}()

// gpPoolExcluding returns gpPool with fixedID removed, for instructions
// whose descriptor pins one slot to a fixed physical register — the
// rotation pool for every other slot must exclude that register's ID.
func gpPoolExcluding(fixedID int) []int {
	out := make([]int, 0, len(gpPool))
	for _, id := range gpPool {
		if id != fixedID {
			out = append(out, id)
		}
	}
	return out
}

// fixedGPReg reports the physical register id a fixed-register OpKind
// pins to, for exclusion from the rotation pool.
func fixedGPReg(k OpKind) (int, bool) {
	switch k {
	case OpAl, OpAx, OpEax, OpRax:
		return xasm.RAX, true
	case OpCl, OpCx, OpEcx, OpRcx:
		return xasm.RCX, true
	case OpDl, OpDx, OpEdx, OpRdx:
		return xasm.RDX, true
	case OpBl, OpBx, OpEbx, OpRbx:
		return xasm.RBX, true
	default:
		return 0, false
	}
}

func gpSize(k OpKind) uint8 {
	switch k {
	case OpGpb, OpAl, OpCl, OpDl, OpBl:
		return 8
	case OpGpw, OpAx, OpCx, OpDx, OpBx:
		return 16
	case OpGpd, OpEax, OpEcx, OpEdx, OpEbx:
		return 32
	case OpGpq, OpRax, OpRcx, OpRdx, OpRbx:
		return 64
	default:
		return 0
	}
}

// MemPolicy controls whether a materialized memory operand is naturally
// aligned or deliberately offset by one byte to force an unaligned
// access, when a sweep over both alignments is requested.
type MemPolicy uint8

const (
	MemAligned MemPolicy = iota
	MemUnaligned
)

// immSize reports the bit width an immediate OpKind materializes to.
func immSize(k OpKind) uint8 {
	switch k {
	case OpImm8:
		return 8
	case OpImm16:
		return 16
	case OpImm32:
		return 32
	case OpImm64:
		return 64
	default:
		return 0
	}
}

func memSize(k OpKind) uint16 {
	switch k {
	case OpMem8:
		return 8
	case OpMem16:
		return 16
	case OpMem32:
		return 32
	case OpMem64:
		return 64
	case OpMem128:
		return 128
	case OpMem256:
		return 256
	case OpMem512:
		return 512
	default:
		return 0
	}
}

// vecRegFor builds the concrete vector register Reg for a vector OpKind.
func vecRegFor(k OpKind, id int) xasm.Reg {
	switch k {
	case OpMm:
		return xasm.MM(id)
	case OpXmm, OpXmm0:
		return xasm.XMM(id)
	case OpYmm:
		return xasm.YMM(id)
	case OpZmm:
		return xasm.ZMM(id)
	case OpKReg:
		return xasm.K(id)
	default:
		return xasm.Reg{}
	}
}

// Materializer expands a descriptor into N concrete operand tuples.
type Materializer struct {
	memPolicy  MemPolicy
	stackBase  int32 // base displacement of the scratch stack region
	gatherBase uint64
}

// NewMaterializer builds a materializer. stackBase is the displacement of
// the probe's private scratch region, used for stack-relative memory
// addresses; gatherBase is the arena base address used for vector-index
// memory slots (the gather/scatter arena).
func NewMaterializer(stackBase int32, gatherBase uint64) *Materializer {
	return &Materializer{stackBase: stackBase, gatherBase: gatherBase}
}

func (m *Materializer) SetMemPolicy(p MemPolicy) { m.memPolicy = p }

// Materialize expands spec into N tuples of concrete xasm.Operand slots,
// one tuple per unrolled instance, following the per-arity rotation
// table in rotationIndex.
func (m *Materializer) Materialize(spec InstSpec, mode Parallelism, n int) [][]xasm.Operand {
	r := spec.Count()
	out := make([][]xasm.Operand, n)

	// Precompute the fixed-register exclusion, if any slot is an implicit
	// fixed GP register.
	fixedExcl := -1
	for i := 0; i < r; i++ {
		if id, ok := fixedGPReg(spec.Get(i)); ok {
			fixedExcl = id
			break
		}
	}
	pool := gpPool
	if fixedExcl >= 0 {
		pool = gpPoolExcluding(fixedExcl)
	}

	for i := 0; i < n; i++ {
		tuple := make([]xasm.Operand, r)
		for slot := 0; slot < r; slot++ {
			kind := spec.Get(slot)
			tuple[slot] = m.materializeSlot(kind, slot, r, i, mode, pool)
		}
		out[i] = tuple
	}
	return out
}

// rotationIndex is the per-arity register-rotation table, returning the
// pool index a given slot should use at unroll instance i.
func rotationIndex(slot, arity, i int, mode Parallelism) int {
	switch arity {
	case 1:
		if mode == Serial {
			return 0
		}
		return i % ParallelWidth
	case 2:
		// (v_{i+1}, v_i) serial chain; (v_i, v_{i+1}) independent.
		if mode == Serial {
			if slot == 0 {
				return (i + 1) % ParallelWidth
			}
			return i % ParallelWidth
		}
		if slot == 0 {
			return i % ParallelWidth
		}
		return (i + 1) % ParallelWidth
	case 3:
		if mode == Serial {
			if slot == 2 {
				return i % ParallelWidth
			}
			return (i + 1) % ParallelWidth
		}
		if slot == 2 {
			return (i + 1) % ParallelWidth
		}
		return i % ParallelWidth
	default: // 4..6: destination trails/leads with the spec's offsets.
		if mode == Serial {
			if slot == 0 {
				return i % ParallelWidth
			}
			return (i + 1) % ParallelWidth
		}
		switch slot {
		case 0:
			return (i + 2) % ParallelWidth
		case 1:
			return (i + 1) % ParallelWidth
		default:
			return i % ParallelWidth
		}
	}
}

func (m *Materializer) materializeSlot(kind OpKind, slot, arity, i int, mode Parallelism, pool []int) xasm.Operand {
	if kind == OpRel {
		return xasm.Label{}
	}
	if fixedID, ok := fixedGPReg(kind); ok {
		return xasm.GP(gpSize(kind), fixedID)
	}
	switch {
	case kind.isGpReg():
		idx := pool[rotationIndex(slot, arity, i, mode)%len(pool)]
		return xasm.GP(gpSize(kind), idx)
	case kind == OpXmm0:
		return xasm.XMM(0)
	case kind.isVecReg():
		idx := vecPool[rotationIndex(slot, arity, i, mode)%len(vecPool)]
		return vecRegFor(kind, idx)
	case immSize(kind) > 0:
		return m.materializeImm(kind, i)
	case kind.isMem():
		return m.materializeMem(kind, i)
	case kind.isVm():
		return m.materializeVm(kind, i)
	default:
		return xasm.Imm{Value: 0, Size: 32}
	}
}

// materializeImm fills an immediate slot via a simple linear recurrence
// modulo its maximum value, giving varied but deterministic values.
func (m *Materializer) materializeImm(kind OpKind, i int) xasm.Operand {
	size := immSize(kind)
	var mod uint64
	switch size {
	case 8:
		mod = 1 << 7 // keep values small/positive for shift-count safety
	case 16:
		mod = 1 << 15
	case 32:
		mod = 1 << 30
	default:
		mod = 1 << 30
	}
	v := (uint64(i)*2654435761 + 1) % mod
	if v == 0 {
		v = 1
	}
	return xasm.Imm{Value: v, Size: size}
}

// materializeMem builds a stack-relative memory operand, optionally
// offset by one byte to force an unaligned access.
func (m *Materializer) materializeMem(kind OpKind, i int) xasm.Operand {
	size := memSize(kind)
	disp := m.stackBase + int32(i%8)*64
	if m.memPolicy == MemUnaligned {
		disp++
	}
	return xasm.Mem{Base: xasm.GP(64, xasm.RSP), Disp: disp, Size: size}
}

// materializeVm binds a vector-index memory slot to the gather/scatter
// arena. The arena pointer is carried in a fixed base register (R14),
// loaded by the probe's pre-body; here we only describe the addressing
// mode the instruction encodes. The vector index register is not
// preloaded by the pre-body: it holds whatever value it has when the
// probe runs.
func (m *Materializer) materializeVm(kind OpKind, i int) xasm.Operand {
	indexClass := xasm.XMM(i % 8)
	switch kind {
	case OpVm32y, OpVm64y:
		indexClass = xasm.YMM(i % 8)
	case OpVm32z, OpVm64z:
		indexClass = xasm.ZMM(i % 8)
	}
	return xasm.Mem{
		Base:     xasm.GP(64, xasm.R14),
		HasIndex: true,
		Index:    indexClass,
		Scale:    4,
		Disp:     0,
		Size:     memSize(OpMem32),
	}
}
