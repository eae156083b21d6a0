// Package jit implements the register-AST compiler: four virtual
// registers (A, B, C, D) and a tiny instruction language (Add, Neg, Mov,
// ImmMov) that either a native backend (compile_amd64.go) lowers to
// machine code, or Interpret executes directly as a portable reference
// implementation. The two must agree on every AST and initial register
// block — that agreement is the JIT's one correctness property.
package jit

// WordReg names one of the four virtual word registers.
type WordReg int

const (
	A WordReg = iota
	B
	C
	D
)

// RegSet is the ABI-stable register block: four host-word-wide fields
// laid out contiguously in declaration order. A compiled function takes
// a pointer to exactly this struct; Interpret operates on a copy.
type RegSet struct {
	Wa, Wb, Wc, Wd uint64
}

func get(r *RegSet, w WordReg) uint64 {
	switch w {
	case A:
		return r.Wa
	case B:
		return r.Wb
	case C:
		return r.Wc
	case D:
		return r.Wd
	default:
		panic("jit: invalid register")
	}
}

func set(r *RegSet, w WordReg, v uint64) {
	switch w {
	case A:
		r.Wa = v
	case B:
		r.Wb = v
	case C:
		r.Wc = v
	case D:
		r.Wd = v
	default:
		panic("jit: invalid register")
	}
}

// OpKind tags which of the four instructions an Op encodes.
type OpKind int

const (
	OpAdd OpKind = iota
	OpNeg
	OpMov
	OpImmMov
)

// Op is one instruction. Dst/Src are meaningful for Add and Mov; Dst
// alone for Neg; Dst and Imm for ImmMov.
type Op struct {
	Kind OpKind
	Dst  WordReg
	Src  WordReg
	Imm  uint64
}

// Add builds dst ← dst + src (host 64-bit wraparound).
func Add(dst, src WordReg) Op { return Op{Kind: OpAdd, Dst: dst, Src: src} }

// Neg builds dst ← −dst (two's-complement).
func Neg(dst WordReg) Op { return Op{Kind: OpNeg, Dst: dst} }

// Mov builds dst ← src.
func Mov(dst, src WordReg) Op { return Op{Kind: OpMov, Dst: dst, Src: src} }

// ImmMov builds dst ← imm.
func ImmMov(dst WordReg, imm uint64) Op { return Op{Kind: OpImmMov, Dst: dst, Imm: imm} }

// Interpret runs ast against regs and returns the resulting register
// block, without emitting or executing any machine code. It is the
// reference semantics every native backend must match.
func Interpret(ast []Op, regs RegSet) RegSet {
	for _, op := range ast {
		switch op.Kind {
		case OpAdd:
			set(&regs, op.Dst, get(&regs, op.Dst)+get(&regs, op.Src))
		case OpNeg:
			set(&regs, op.Dst, -get(&regs, op.Dst))
		case OpMov:
			set(&regs, op.Dst, get(&regs, op.Src))
		case OpImmMov:
			set(&regs, op.Dst, op.Imm)
		}
	}
	return regs
}
