package cult

import "github.com/ja7ad/cult/pkg/xasm"

// opFlagNames maps every xasm.OpFlag single-bit value to the identically
// named OpKind (siggen.go is the one place that translates between the two,
// so xasm never needs to import pkg/cult — see pkg/xasm/flags.go).
var opFlagNames = map[string]OpKind{
	"rel":   OpRel,
	"r8":    OpGpb,
	"r16":   OpGpw,
	"r32":   OpGpd,
	"r64":   OpGpq,
	"al":    OpAl,
	"cl":    OpCl,
	"dl":    OpDl,
	"bl":    OpBl,
	"ax":    OpAx,
	"cx":    OpCx,
	"dx":    OpDx,
	"bx":    OpBx,
	"eax":   OpEax,
	"ecx":   OpEcx,
	"edx":   OpEdx,
	"ebx":   OpEbx,
	"rax":   OpRax,
	"rcx":   OpRcx,
	"rdx":   OpRdx,
	"rbx":   OpRbx,
	"mm":    OpMm,
	"xmm":   OpXmm,
	"xmm0":  OpXmm0,
	"ymm":   OpYmm,
	"zmm":   OpZmm,
	"k":     OpKReg,
	"i8":    OpImm8,
	"i16":   OpImm16,
	"i32":   OpImm32,
	"i64":   OpImm64,
	"m8":    OpMem8,
	"m16":   OpMem16,
	"m32":   OpMem32,
	"m64":   OpMem64,
	"m128":  OpMem128,
	"m256":  OpMem256,
	"m512":  OpMem512,
	"vm32x": OpVm32x,
	"vm32y": OpVm32y,
	"vm32z": OpVm32z,
	"vm64x": OpVm64x,
	"vm64y": OpVm64y,
	"vm64z": OpVm64z,
}

// kindFromFlag resolves a single-bit xasm.OpFlag to its OpKind, or OpNone
// with ok=false for an unrecognized bit. Callers treat ok=false as a
// signal to skip the whole operand tuple rather than guess a shape.
func kindFromFlag(f xasm.OpFlag) (OpKind, bool) {
	k, ok := opFlagNames[f.Name()]
	return k, ok
}

// SigFilter is the bit-set of operand kinds the core is willing to test.
// The zero value admits every kind.
type SigFilter struct {
	allow map[OpKind]bool // nil => allow everything
}

// NewSigFilter builds a filter admitting exactly the given kinds. Called
// with no arguments, it allows everything.
func NewSigFilter(kinds ...OpKind) SigFilter {
	if len(kinds) == 0 {
		return SigFilter{}
	}
	m := make(map[OpKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return SigFilter{allow: m}
}

func (f SigFilter) admits(k OpKind) bool {
	if f.allow == nil {
		return true
	}
	return f.allow[k]
}

// slotCursor tracks the odometer state for one operand slot: the
// remaining bits of (signature-slot-flags & filter) not yet emitted (spec
// §9: "store it as a struct with next()").
type slotCursor struct {
	remaining uint64
}

func newSlotCursor(flag xasm.OpFlag, filter SigFilter) slotCursor {
	var remaining uint64
	for _, bit := range flag.Bits() {
		if k, ok := kindFromFlag(bit); ok && filter.admits(k) {
			remaining |= uint64(bit)
		}
	}
	return slotCursor{remaining: remaining}
}

func (c *slotCursor) exhausted() bool { return c.remaining == 0 }

// lowestKind isolates and removes the lowest set bit, returning its kind.
func (c *slotCursor) lowestKind() (OpKind, bool) {
	if c.remaining == 0 {
		return OpNone, false
	}
	bit := c.remaining & (-c.remaining)
	c.remaining &^= bit
	return kindFromFlag(xasm.OpFlag(bit))
}

// SigIter is the signature iterator: an explicit finite-state machine
// walking one xasm.Signature's per-slot bit-sets, odometer-style, lowest
// set bit first, with carry from the last slot to the first.
type SigIter struct {
	sig      xasm.Signature
	filter   SigFilter
	cursors  []slotCursor
	current  []OpKind
	started  bool
	done     bool
}

// NewSigIter builds an iterator over sig under filter. Slots whose filtered
// bit-set is empty make the whole signature unproducible (done immediately).
func NewSigIter(sig xasm.Signature, filter SigFilter) *SigIter {
	it := &SigIter{sig: sig, filter: filter}
	it.cursors = make([]slotCursor, len(sig.Ops))
	it.current = make([]OpKind, len(sig.Ops))
	for i, flag := range sig.Ops {
		it.cursors[i] = newSlotCursor(flag, filter)
		if it.cursors[i].exhausted() {
			it.done = true
		}
	}
	return it
}

// Next advances the odometer and reports the next operand kind tuple, or
// false once every combination has been produced.
func (it *SigIter) Next() (InstSpec, bool) {
	if it.done {
		return InstSpec{}, false
	}
	if len(it.cursors) == 0 {
		// Zero-operand signature: produced exactly once.
		it.done = true
		return NewInstSpec(), true
	}
	if !it.started {
		it.started = true
		// Prime every slot's current kind from a fresh cursor snapshot.
		for i := range it.cursors {
			snapshot := newSlotCursor(it.sig.Ops[i], it.filter)
			it.cursors[i] = snapshot
			k, _ := it.cursors[i].lowestKind()
			it.current[i] = k
		}
		return NewInstSpec(it.current...), true
	}

	// Advance like an odometer: try to advance the last slot; on
	// exhaustion, reset it and carry into the slot before it.
	for i := len(it.cursors) - 1; i >= 0; i-- {
		if !it.cursors[i].exhausted() {
			k, _ := it.cursors[i].lowestKind()
			it.current[i] = k
			return NewInstSpec(it.current...), true
		}
		// Slot i exhausted: reset it to its full range and carry.
		it.cursors[i] = newSlotCursor(it.sig.Ops[i], it.filter)
		k, _ := it.cursors[i].lowestKind()
		it.current[i] = k
		if i == 0 {
			it.done = true
			return InstSpec{}, false
		}
	}
	it.done = true
	return InstSpec{}, false
}

// CollectDescriptors walks every signature of id under filter, producing
// the deduplicated descriptor set the classifier needs: the iterator may
// produce the same tuple from more than one signature, so duplicates are
// collapsed here before the classifier ever sees them.
func CollectDescriptors(id xasm.InstId, arch xasm.Arch, filter SigFilter) []InstSpec {
	entry, ok := xasm.Info(id)
	if !ok {
		return nil
	}
	wantMode := xasm.Mode32
	if arch == xasm.ArchX64 {
		wantMode = xasm.Mode64
	}
	seen := make(map[InstSpec]bool)
	var out []InstSpec
	for _, sig := range entry.Signatures {
		if sig.Mode != xasm.ModeImplicit && sig.Mode&wantMode == 0 {
			continue
		}
		it := NewSigIter(sig, filter)
		for {
			d, ok := it.Next()
			if !ok {
				break
			}
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
