package xasm

// InstId identifies one instruction mnemonic. This is a representative
// subset of the x86-64 ISA — one or more entries per operand-kind family —
// not asmjit's full multi-thousand-entry table; see DESIGN.md for the
// scoping rationale.
type InstId uint16

const (
	IdNone InstId = iota

	// General-purpose arithmetic/logic.
	IdAdd
	IdSub
	IdAnd
	IdOr
	IdXor
	IdCmp
	IdTest
	IdMov
	IdImul

	// Shift/rotate.
	IdShl
	IdShr
	IdSar
	IdRol
	IdRor

	// Bit-field.
	IdBt
	IdBts
	IdBtr
	IdBtc

	// Division/multiplication specials and their sign/zero-extend helpers.
	IdDiv
	IdIdiv
	IdMul
	IdCdq
	IdCwd
	IdCqo
	IdCbw
	IdCwde
	IdCdqe

	// Unary.
	IdInc
	IdDec
	IdNeg
	IdNot
	IdBswap
	IdPopcnt
	IdLzcnt
	IdTzcnt
	IdBsf
	IdBsr

	// Stack and control flow.
	IdPush
	IdPop
	IdLea
	IdCall
	IdJmp
	IdRet

	// Zero-operand / serializing / fence instructions.
	IdLfence
	IdMfence
	IdRdtsc
	IdRdtscp
	IdCpuid
	IdVzeroupper
	IdVzeroall
	IdEmms
	IdXgetbv
	IdRdrand
	IdRdseed

	// Representative vector instructions, one per register class.
	IdPaddb    // MMX
	IdAddps    // SSE
	IdMovdqu   // SSE (unaligned load/store probing)
	IdMovdqa   // SSE (aligned load/store probing)
	IdVaddps   // AVX, ymm
	IdVpaddb   // AVX2, ymm
	IdVpaddd   // AVX-512, zmm + mask
	IdVgatherdps
	IdVpscatterdd

	// Known-unsafe-to-enumerate instructions the classifier skip-lists
	// outright: the original asmjit/cult marks these is_ignored_inst
	// because they need a register pattern it never validated.
	IdVp2intersectd
	IdVp2intersectq

	idCount
)
