package types

import (
	"strconv"
	"strings"
)

// numericLiteral returns the value of a literal int atom or a numeric literal string.
func numericLiteral(t *Type) (int64, bool) {
	switch t.kind {
	case KindLiteralInt:
		return t.intValue, true
	case KindLiteralString:
		v, err := strconv.ParseInt(strings.TrimSpace(t.strValue), 10, 64)
		return v, err == nil
	}
	return 0, false
}

func (u UnionType) foldUnary(op func(int64) int64) (UnionType, bool) {
	t, ok := u.SingleLiteral()
	if !ok {
		return u, false
	}
	v, ok := numericLiteral(t)
	if !ok {
		return u, false
	}
	return Of(LiteralInt(op(v), false)), true
}

// widenNumeric is what an arithmetic unary operator yields for a non-literal operand.
func (u UnionType) widenNumeric() UnionType {
	if u.IsEmpty() {
		return Of(Int(false), Float(false))
	}
	var ts []*Type
	for _, t := range u.types {
		switch {
		case IsIntKind(t.kind):
			ts = append(ts, Int(false))
		case t.kind == KindFloat:
			ts = append(ts, Float(false))
		default:
			ts = append(ts, Int(false), Float(false))
		}
	}
	return Of(ts...)
}

// ApplyUnaryMinus is the type of -x.
func (u UnionType) ApplyUnaryMinus() UnionType {
	if r, ok := u.foldUnary(func(v int64) int64 { return -v }); ok {
		return r
	}
	return u.widenNumeric()
}

// ApplyUnaryPlus is the type of +x.
func (u UnionType) ApplyUnaryPlus() UnionType {
	if r, ok := u.foldUnary(func(v int64) int64 { return v }); ok {
		return r
	}
	return u.widenNumeric()
}

// ApplyUnaryBitwiseNot is the type of ~x. ~ on a string operates bytewise and stays a
// string.
func (u UnionType) ApplyUnaryBitwiseNot() UnionType {
	if t, ok := u.SingleLiteral(); ok && t.kind == KindLiteralInt {
		return Of(LiteralInt(^t.intValue, false))
	}
	if u.IsEmpty() {
		return IntUnion()
	}
	var ts []*Type
	for _, t := range u.types {
		if IsStringKind(t.kind) {
			ts = append(ts, String(false))
		} else {
			ts = append(ts, Int(false))
		}
	}
	return Of(ts...)
}
