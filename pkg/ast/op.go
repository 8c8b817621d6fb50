package ast

// Op is a binary, unary or compound-assignment operator
type Op int

const (
	OpNone Op = iota

	// Binary
	OpBoolAnd
	OpBoolOr
	OpLogicalAnd
	OpLogicalOr
	OpLogicalXor
	OpIdentical
	OpNotIdentical
	OpEqual
	OpNotEqual
	OpSmaller
	OpSmallerOrEqual
	OpGreater
	OpGreaterOrEqual
	OpSpaceship
	OpPlus
	OpMinus
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShiftLeft
	OpShiftRight
	OpCoalesce

	// Unary
	OpNot
	OpUnaryMinus
	OpUnaryPlus
	OpBitNot
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
	OpSilence
)

var binaryOps = map[string]Op{
	"&&": OpBoolAnd, "||": OpBoolOr, "and": OpLogicalAnd, "or": OpLogicalOr, "xor": OpLogicalXor,
	"===": OpIdentical, "!==": OpNotIdentical, "==": OpEqual, "!=": OpNotEqual, "<>": OpNotEqual,
	"<": OpSmaller, "<=": OpSmallerOrEqual, ">": OpGreater, ">=": OpGreaterOrEqual, "<=>": OpSpaceship,
	"+": OpPlus, "-": OpMinus, "*": OpMul, "/": OpDiv, "%": OpMod, "**": OpPow, ".": OpConcat,
	"&": OpBitAnd, "|": OpBitOr, "^": OpBitXor, "<<": OpShiftLeft, ">>": OpShiftRight, "??": OpCoalesce,
}

var unaryOps = map[string]Op{
	"!": OpNot, "-": OpUnaryMinus, "+": OpUnaryPlus, "~": OpBitNot, "@": OpSilence,
	"++x": OpPreInc, "--x": OpPreDec, "x++": OpPostInc, "x--": OpPostDec,
}

var opNames = func() map[Op]string {
	m := map[Op]string{OpNone: "="}
	for s, op := range binaryOps {
		if s != "<>" {
			m[op] = s
		}
	}
	for s, op := range unaryOps {
		m[op] = s
	}
	return m
}()

// BinaryOpFromString maps an operator's source spelling to an Op
func BinaryOpFromString(s string) (Op, bool) {
	op, ok := binaryOps[s]
	return op, ok
}

// UnaryOpFromString maps a prefix operator, or one of ++x/--x/x++/x--, to an Op
func UnaryOpFromString(s string) (Op, bool) {
	op, ok := unaryOps[s]
	return op, ok
}

// AssignOpFromString maps "=", "+=", ".=", "??=" and friends to an Op; OpNone is plain assignment
func AssignOpFromString(s string) (Op, bool) {
	if s == "=" {
		return OpNone, true
	}
	if len(s) < 2 || s[len(s)-1] != '=' {
		return OpNone, false
	}
	return BinaryOpFromString(s[:len(s)-1])
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?"
}

// IsComparison reports operators that always yield bool
func (o Op) IsComparison() bool { return o >= OpIdentical && o <= OpGreaterOrEqual }
