package resolve

import (
	"strconv"
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueArray
)

// Value is a compile-time value folded from a constant expression.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Array []ValueEntry
}

// ValueEntry is one key => value pair of a folded array, in source order.
type ValueEntry struct {
	Key   Value
	Value Value
}

func IntValue(v int64) Value     { return Value{Kind: ValueInt, Int: v} }
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// KeyString is v as an array key: ints and strings map to their text; bools, null
// and floats are converted the way the runtime converts them.
func (v Value) KeyString() (string, bool) {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10), true
	case ValueString:
		return v.Str, true
	case ValueBool:
		if v.Bool {
			return "1", true
		}
		return "0", true
	case ValueNull:
		return "", true
	case ValueFloat:
		return strconv.FormatInt(int64(v.Float), 10), true
	}
	return "", false
}

// Type is the literal type of v.
func (v Value) Type() types.UnionType {
	switch v.Kind {
	case ValueNull:
		return types.NullUnion()
	case ValueBool:
		if v.Bool {
			return types.Of(types.True(false))
		}
		return types.Of(types.False(false))
	case ValueInt:
		return types.Of(types.LiteralInt(v.Int, false))
	case ValueFloat:
		return types.FloatUnion()
	case ValueString:
		return types.Of(types.LiteralString(v.Str, false))
	}
	if len(v.Array) == 0 {
		return types.Of(types.EmptyArray(false))
	}
	fields := make([]types.ShapeField, 0, len(v.Array))
	index := map[string]int{}
	for _, e := range v.Array {
		key, _ := e.Key.KeyString()
		f := types.ShapeField{Key: key, Type: e.Value.Type()}
		if i, dup := index[key]; dup {
			fields[i] = f
			continue
		}
		index[key] = len(fields)
		fields = append(fields, f)
	}
	return types.Of(types.ArrayShape(fields, false))
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNull:
		return "null"
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	}
	parts := make([]string, len(v.Array))
	for i, e := range v.Array {
		parts[i] = e.Key.String() + " => " + e.Value.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// EquivalentValue folds a constant expression (literals, constants, class constants,
// arrays, unary minus/plus and concatenation) to a Value. ok is false when any part
// is not foldable; callers must then treat the value as unknown.
func (r *Resolver) EquivalentValue(ctx scope.Context, node *ast.Node) (Value, bool) {
	return r.fold(ctx, node, 0)
}

func (r *Resolver) fold(ctx scope.Context, node *ast.Node, depth int) (Value, bool) {
	if node == nil || depth > types.MaxExpansionDepth {
		return Value{}, false
	}
	switch d := node.Data.(type) {
	case ast.IntLitNode:
		return IntValue(d.Value), true
	case ast.FloatLitNode:
		return Value{Kind: ValueFloat, Float: d.Value}, true
	case ast.StringLitNode:
		return StringValue(d.Value), true
	case ast.ConstFetchNode:
		switch strings.ToLower(strings.TrimPrefix(ast.NameText(d.Name), `\`)) {
		case "true":
			return Value{Kind: ValueBool, Bool: true}, true
		case "false":
			return Value{Kind: ValueBool}, true
		case "null":
			return Value{Kind: ValueNull}, true
		}
		k, err := r.Quiet().GlobalConstant(ctx, node)
		if err != nil || k == nil {
			return Value{}, false
		}
		if k.Value != nil {
			return r.fold(ctx, k.Value, depth+1)
		}
		return valueOfLiteralType(k.Type)
	case ast.ClassConstFetchNode:
		k, err := r.Quiet().ClassConstant(ctx, node)
		if err != nil || k == nil {
			return Value{}, false
		}
		if k.Value != nil {
			return r.fold(ctx.WithClass(k.DefiningClass), k.Value, depth+1)
		}
		return valueOfLiteralType(k.Type)
	case ast.UnaryOpNode:
		v, ok := r.fold(ctx, d.Expr, depth+1)
		if !ok {
			return v, false
		}
		switch {
		case d.Op == ast.OpUnaryMinus && v.Kind == ValueInt:
			return IntValue(-v.Int), true
		case d.Op == ast.OpUnaryMinus && v.Kind == ValueFloat:
			return Value{Kind: ValueFloat, Float: -v.Float}, true
		case d.Op == ast.OpUnaryPlus && (v.Kind == ValueInt || v.Kind == ValueFloat):
			return v, true
		case d.Op == ast.OpNot && v.Kind == ValueBool:
			return Value{Kind: ValueBool, Bool: !v.Bool}, true
		}
	case ast.BinaryOpNode:
		if d.Op != ast.OpConcat {
			return Value{}, false
		}
		left, ok := r.fold(ctx, d.Left, depth+1)
		if !ok {
			return left, false
		}
		right, ok := r.fold(ctx, d.Right, depth+1)
		if !ok {
			return right, false
		}
		ls, lok := left.KeyString()
		rs, rok := right.KeyString()
		if !lok || !rok || left.Kind == ValueFloat || right.Kind == ValueFloat {
			return Value{}, false
		}
		return StringValue(ls + rs), true
	case ast.ArrayLitNode:
		return r.foldArray(ctx, d, depth)
	}
	return Value{}, false
}

func (r *Resolver) foldArray(ctx scope.Context, d ast.ArrayLitNode, depth int) (Value, bool) {
	out := Value{Kind: ValueArray}
	var next int64
	for _, item := range d.Items {
		it, ok := item.Data.(ast.ArrayItemNode)
		if !ok || it.Unpack || it.ByRef {
			return Value{}, false
		}
		val, ok := r.fold(ctx, it.Value, depth+1)
		if !ok {
			return Value{}, false
		}
		key := IntValue(next)
		if it.Key != nil {
			if key, ok = r.fold(ctx, it.Key, depth+1); !ok {
				return Value{}, false
			}
			if key.Kind == ValueString {
				if n, err := strconv.ParseInt(key.Str, 10, 64); err == nil && strconv.FormatInt(n, 10) == key.Str {
					key = IntValue(n)
				}
			}
		}
		if key.Kind == ValueInt && key.Int >= next {
			next = key.Int + 1
		}
		out.Array = append(out.Array, ValueEntry{Key: key, Value: val})
	}
	return out, true
}

// valueOfLiteralType recovers a value from a declared type that is a single literal.
func valueOfLiteralType(t types.UnionType) (Value, bool) {
	if t.IsNull() {
		return Value{Kind: ValueNull}, true
	}
	lit, ok := t.SingleLiteral()
	if !ok {
		return Value{}, false
	}
	switch lit.Kind() {
	case types.KindLiteralInt:
		return IntValue(lit.IntValue()), true
	case types.KindLiteralString:
		return StringValue(lit.StringValue()), true
	case types.KindTrue:
		return Value{Kind: ValueBool, Bool: true}, true
	case types.KindFalse:
		return Value{Kind: ValueBool}, true
	}
	return Value{}, false
}
