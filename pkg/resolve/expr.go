package resolve

import (
	"strconv"
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// maxShapeFields bounds how many keys an array literal may have and still be typed
// as a shape rather than a generic array.
const maxShapeFields = 64

// ExpressionType infers the type of an expression in ctx. Resolution failures met
// on the way are reported to the sink and give the empty type for their part; the
// returned error is set only for failures that must abort the file, such as a
// cyclic class hierarchy.
func (r *Resolver) ExpressionType(ctx scope.Context, node *ast.Node) (types.UnionType, error) {
	ev := &evaluator{r: r}
	t := ev.expr(ctx, node)
	if ev.err != nil {
		return types.Empty(), ev.err
	}
	return t, nil
}

// MethodReturnType is the return type of m called on recv: self and static become
// recv, and recv's template arguments replace the class's template parameters.
func (r *Resolver) MethodReturnType(m *codebase.MethodDecl, recv *types.Type) types.UnionType {
	t := r.policy.MethodReturnType(r.st, m)
	if recv == nil || recv.Kind() != types.KindClass {
		return t
	}
	t = t.ReplaceSelf(recv)
	if !recv.HasTemplateArgs() {
		return t
	}
	c, ok := r.st.Class(recv.ClassName())
	if !ok || len(c.Templates) == 0 {
		return t
	}
	args := recv.TemplateArgs()
	bindings := make(map[string]types.UnionType, len(c.Templates))
	for i, name := range c.Templates {
		if i < len(args) {
			bindings[name] = args[i]
		}
	}
	return t.WithTemplateParameterTypeMap(bindings)
}

// FunctionReturnType is the return type a call of f is checked and typed with.
func (r *Resolver) FunctionReturnType(f *codebase.FunctionDecl) types.UnionType {
	return r.policy.EffectiveReturnType(&f.Signature, false)
}

// receiverAtom picks the class atom that self and templates are bound against.
func receiverAtom(t types.UnionType) *types.Type {
	if cs := t.ClassTypes(); len(cs) > 0 {
		return cs[0].WithIsNullable(false)
	}
	return nil
}

type evaluator struct {
	r   *Resolver
	err error
}

func (ev *evaluator) report(ctx scope.Context, err error) {
	if err = ev.r.Report(ctx, err); err != nil && ev.err == nil {
		ev.err = err
	}
}

func (ev *evaluator) expr(ctx scope.Context, node *ast.Node) types.UnionType {
	if node == nil || ev.err != nil {
		return types.Empty()
	}
	r := ev.r
	switch d := node.Data.(type) {
	case ast.IntLitNode:
		return types.Of(types.LiteralInt(d.Value, false))
	case ast.FloatLitNode:
		return types.FloatUnion()
	case ast.StringLitNode:
		return types.Of(types.LiteralString(d.Value, false))
	case ast.InterpolatedNode:
		ev.exprs(ctx, d.Parts)
		return types.StringUnion()
	case ast.ArrayLitNode:
		return ev.array(ctx, d)
	case ast.VariableNode:
		if d.NameExpr != nil {
			ev.expr(ctx, d.NameExpr)
			return types.Empty()
		}
		v, err := r.Variable(ctx, node)
		ev.report(ctx, err)
		if v == nil {
			return types.Empty()
		}
		return v.Type
	case ast.ConstFetchNode:
		if t, ok := keywordConstant(ast.NameText(d.Name)); ok {
			return t
		}
		k, err := r.GlobalConstant(ctx, node)
		ev.report(ctx, err)
		if k == nil {
			return types.Empty()
		}
		if k.Type.IsEmpty() && k.Value != nil {
			if v, ok := r.fold(ctx, k.Value, 1); ok {
				return v.Type()
			}
		}
		return k.Type
	case ast.ClassConstFetchNode:
		k, err := r.ClassConstant(ctx, node)
		ev.report(ctx, err)
		if k == nil {
			if strings.EqualFold(d.Name, "class") {
				return types.StringUnion()
			}
			return types.Empty()
		}
		if k.Type.IsEmpty() && k.Value != nil {
			if v, ok := r.fold(ctx.WithClass(k.DefiningClass), k.Value, 1); ok {
				return v.Type()
			}
		}
		return k.Type
	case ast.DimNode:
		base := ev.expr(ctx, d.Expr)
		if d.Dim == nil {
			return types.Empty()
		}
		ev.expr(ctx, d.Dim)
		return r.DimType(ctx, base, d.Dim)
	case ast.PropFetchNode:
		recv := ev.expr(ctx, d.Expr)
		if d.NameExpr != nil {
			ev.expr(ctx, d.NameExpr)
			return types.Empty()
		}
		p, err := r.instanceProperty(ctx, node.Line, recv, d.Name, false)
		ev.report(ctx, err)
		if p == nil {
			return types.Empty()
		}
		t := p.Type.ReplaceSelf(receiverAtom(recv))
		if d.NullSafe && !t.IsEmpty() {
			t = t.WithType(types.Null())
		}
		return t
	case ast.StaticPropFetchNode:
		classes := ev.classes(ctx, d.Class)
		if len(classes) == 0 {
			return types.Empty()
		}
		p, err := r.propertyOf(ctx, node.Line, classes, d.Name, true, false)
		ev.report(ctx, err)
		if p == nil {
			return types.Empty()
		}
		return p.Type.ReplaceSelf(classes[0].AsType())
	case ast.CallNode:
		return ev.call(ctx, node, d)
	case ast.MethodCallNode:
		recv := ev.expr(ctx, d.Expr)
		ev.exprs(ctx, d.Args)
		if d.NameExpr != nil {
			ev.expr(ctx, d.NameExpr)
			return types.Empty()
		}
		m, err := r.instanceMethod(ctx, node.Line, recv, d.Name)
		ev.report(ctx, err)
		if m == nil {
			return types.Empty()
		}
		t := r.MethodReturnType(m, receiverAtom(recv))
		if d.NullSafe && !t.IsEmpty() {
			t = t.WithType(types.Null())
		}
		return t
	case ast.StaticCallNode:
		ev.exprs(ctx, d.Args)
		classes := ev.classes(ctx, d.Class)
		m, err := r.staticMethod(ctx, node.Line, classes, d.Name)
		ev.report(ctx, err)
		if m == nil {
			return types.Empty()
		}
		return r.MethodReturnType(m, classes[0].AsType())
	case ast.NewNode:
		ev.exprs(ctx, d.Args)
		if d.Class != nil && d.Class.Type == ast.Class {
			return types.ObjectUnion()
		}
		t, err := r.ClassUnionType(ctx, d.Class)
		ev.report(ctx, err)
		if t.IsEmpty() {
			return types.ObjectUnion()
		}
		return t
	case ast.AssignNode:
		rhs := ev.expr(ctx, d.Expr)
		switch d.Op {
		case ast.OpNone:
			return rhs
		case ast.OpCoalesce:
			lhs := ev.quiet(ctx, d.Var)
			if lhs.IsEmpty() || rhs.IsEmpty() {
				return types.Empty()
			}
			return lhs.NonNullableClone().Union(rhs)
		}
		return binaryResult(d.Op, ev.expr(ctx, d.Var), rhs)
	case ast.BinaryOpNode:
		return ev.binary(ctx, d)
	case ast.UnaryOpNode:
		return ev.unary(ctx, d)
	case ast.InstanceofNode:
		ev.expr(ctx, d.Expr)
		ev.classes(ctx, d.Class)
		return types.BoolUnion()
	case ast.IssetNode, ast.EmptyNode:
		return types.BoolUnion()
	case ast.TernaryNode:
		return ev.ternary(ctx, d)
	case ast.CastNode:
		return ev.cast(ctx, d)
	case ast.ClosureNode:
		return types.Of(types.Closure(false))
	}
	return types.Empty()
}

func (ev *evaluator) exprs(ctx scope.Context, nodes []*ast.Node) {
	for _, n := range nodes {
		ev.expr(ctx, n)
	}
}

// quiet evaluates node without reporting, for operands whose absence is not an
// error, like the left side of ??.
func (ev *evaluator) quiet(ctx scope.Context, node *ast.Node) types.UnionType {
	q := &evaluator{r: ev.r.Quiet()}
	t := q.expr(ctx, node)
	if q.err != nil && ev.err == nil {
		ev.err = q.err
	}
	return t
}

func (ev *evaluator) classes(ctx scope.Context, node *ast.Node) []*codebase.ClassDecl {
	classes, err := ev.r.ClassList(ctx, node)
	ev.report(ctx, err)
	return classes
}

func (ev *evaluator) call(ctx scope.Context, node *ast.Node, d ast.CallNode) types.UnionType {
	ev.exprs(ctx, d.Args)
	if d.Func == nil || d.Func.Type != ast.Name {
		ev.expr(ctx, d.Func)
		return types.Empty()
	}
	f, err := ev.r.Function(ctx, node)
	ev.report(ctx, err)
	if f == nil {
		return types.Empty()
	}
	return ev.r.FunctionReturnType(f)
}

func (ev *evaluator) array(ctx scope.Context, d ast.ArrayLitNode) types.UnionType {
	if len(d.Items) == 0 {
		return types.Of(types.EmptyArray(false))
	}
	var (
		fields   []types.ShapeField
		index    = map[string]int{}
		elems    types.UnionType
		keyKind  types.KeyKind
		keySeen  bool
		shaped   = len(d.Items) <= maxShapeFields
		next     int64
		hasEmpty bool
	)
	mergeKey := func(k types.KeyKind) {
		if !keySeen {
			keyKind, keySeen = k, true
			return
		}
		keyKind = keyKind.Merge(k)
	}
	for _, item := range d.Items {
		it, ok := item.Data.(ast.ArrayItemNode)
		if !ok {
			ev.expr(ctx, item)
			shaped = false
			continue
		}
		vt := ev.expr(ctx, it.Value)
		hasEmpty = hasEmpty || vt.IsEmpty()
		if it.Unpack {
			shaped = false
			elems = elems.Union(vt.GenericArrayElementType())
			mergeKey(types.KeyMixed)
			continue
		}
		elems = elems.Union(vt)

		key := IntValue(next)
		if it.Key != nil {
			ev.expr(ctx, it.Key)
			v, ok := ev.r.Quiet().EquivalentValue(ctx, it.Key)
			if !ok {
				shaped = false
				mergeKey(types.KeyMixed)
				continue
			}
			key = normalizeKey(v)
		}
		if key.Kind == ValueInt {
			if key.Int >= next {
				next = key.Int + 1
			}
			mergeKey(types.KeyInt)
		} else {
			mergeKey(types.KeyString)
		}
		ks, _ := key.KeyString()
		f := types.ShapeField{Key: ks, Type: vt}
		if i, dup := index[ks]; dup {
			fields[i] = f
			continue
		}
		index[ks] = len(fields)
		fields = append(fields, f)
	}
	if shaped {
		return types.Of(types.ArrayShape(fields, false))
	}
	if hasEmpty || elems.IsEmpty() {
		return types.ArrayUnion()
	}
	return elems.ElementsAsGenericArrays(keyKind)
}

// normalizeKey applies the runtime's key coercions: integral strings, bools, null
// and floats become ints or the empty string.
func normalizeKey(v Value) Value {
	switch v.Kind {
	case ValueString:
		if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil && strconv.FormatInt(n, 10) == v.Str {
			return IntValue(n)
		}
		return v
	case ValueBool:
		if v.Bool {
			return IntValue(1)
		}
		return IntValue(0)
	case ValueFloat:
		return IntValue(int64(v.Float))
	case ValueNull:
		return StringValue("")
	}
	return v
}

// DimType is the type of base[dim]. Shape fields are selected when dim folds to a
// constant key; otherwise every possible element type is included.
func (r *Resolver) DimType(ctx scope.Context, base types.UnionType, dim *ast.Node) types.UnionType {
	if base.IsEmpty() {
		return types.Empty()
	}
	key, hasKey := "", false
	if v, ok := r.Quiet().EquivalentValue(ctx, dim); ok {
		key, hasKey = normalizeKey(v).KeyString()
	}
	var out types.UnionType
	for _, t := range base.Types() {
		switch t.Kind() {
		case types.KindArrayShape:
			if hasKey {
				if f, ok := t.ShapeField(key); ok {
					out = out.Union(f.Type)
				}
				continue
			}
			for _, f := range t.ShapeFields() {
				out = out.Union(f.Type)
			}
		case types.KindGenericArray:
			out = out.WithType(t.ElementType())
		case types.KindString, types.KindLiteralString:
			out = out.WithType(types.String(false))
		case types.KindArray, types.KindMixed, types.KindIterable, types.KindClass, types.KindObject, types.KindTemplate:
			return types.Empty()
		}
	}
	return out
}

func (ev *evaluator) binary(ctx scope.Context, d ast.BinaryOpNode) types.UnionType {
	switch d.Op {
	case ast.OpBoolAnd, ast.OpBoolOr, ast.OpLogicalAnd, ast.OpLogicalOr:
		ev.expr(ctx, d.Left)
		rightCtx := ctx
		if n := ev.r.narrower; n != nil {
			positive := d.Op == ast.OpBoolAnd || d.Op == ast.OpLogicalAnd
			narrowed, err := n.Narrow(ctx, d.Left, positive)
			ev.report(ctx, err)
			if err == nil {
				rightCtx = narrowed
			}
		}
		ev.expr(rightCtx, d.Right)
		return types.BoolUnion()
	case ast.OpCoalesce:
		left := ev.quiet(ctx, d.Left)
		right := ev.expr(ctx, d.Right)
		if left.IsEmpty() || right.IsEmpty() {
			return types.Empty()
		}
		return left.NonNullableClone().Union(right)
	}
	return binaryResult(d.Op, ev.expr(ctx, d.Left), ev.expr(ctx, d.Right))
}

// binaryResult types an arithmetic, string, bitwise or comparison operator from its
// operand types.
func binaryResult(op ast.Op, l, r types.UnionType) types.UnionType {
	switch op {
	case ast.OpBoolAnd, ast.OpBoolOr, ast.OpLogicalAnd, ast.OpLogicalOr, ast.OpLogicalXor:
		return types.BoolUnion()
	case ast.OpSpaceship:
		return types.IntUnion()
	case ast.OpConcat:
		return types.StringUnion()
	case ast.OpMod, ast.OpShiftLeft, ast.OpShiftRight:
		return types.IntUnion()
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		if l.IsExclusively(types.IsStringKind) && r.IsExclusively(types.IsStringKind) {
			return types.StringUnion()
		}
		return types.IntUnion()
	case ast.OpPlus:
		if l.IsExclusively(types.IsArrayLikeKind) && r.IsExclusively(types.IsArrayLikeKind) {
			return l.Union(r)
		}
		fallthrough
	case ast.OpMinus, ast.OpMul, ast.OpPow, ast.OpDiv:
		return numericResult(op, l, r)
	}
	if op.IsComparison() {
		return types.BoolUnion()
	}
	return types.Empty()
}

func numericResult(op ast.Op, l, r types.UnionType) types.UnionType {
	if a, ok := l.SingleLiteral(); ok && a.Kind() == types.KindLiteralInt {
		if b, ok := r.SingleLiteral(); ok && b.Kind() == types.KindLiteralInt {
			switch op {
			case ast.OpPlus:
				return types.Of(types.LiteralInt(a.IntValue()+b.IntValue(), false))
			case ast.OpMinus:
				return types.Of(types.LiteralInt(a.IntValue()-b.IntValue(), false))
			case ast.OpMul:
				return types.Of(types.LiteralInt(a.IntValue()*b.IntValue(), false))
			}
		}
	}
	isFloat := func(k types.Kind) bool { return k == types.KindFloat }
	lInt, rInt := l.IsExclusively(types.IsIntKind), r.IsExclusively(types.IsIntKind)
	lNum, rNum := l.IsExclusively(types.IsNumericKind), r.IsExclusively(types.IsNumericKind)
	switch {
	case lInt && rInt && op != ast.OpDiv:
		return types.IntUnion()
	case lNum && rNum && (l.HasKind(types.KindFloat) || r.HasKind(types.KindFloat)):
		return types.FloatUnion()
	case l.IsExclusively(isFloat) || r.IsExclusively(isFloat):
		return types.FloatUnion()
	}
	return types.Of(types.Int(false), types.Float(false))
}

func (ev *evaluator) unary(ctx scope.Context, d ast.UnaryOpNode) types.UnionType {
	t := ev.expr(ctx, d.Expr)
	switch d.Op {
	case ast.OpNot:
		return types.BoolUnion()
	case ast.OpUnaryMinus:
		return t.ApplyUnaryMinus()
	case ast.OpUnaryPlus:
		return t.ApplyUnaryPlus()
	case ast.OpBitNot:
		return t.ApplyUnaryBitwiseNot()
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		if t.IsEmpty() {
			return t
		}
		out := t.NonNullableClone().NonLiteralClone()
		if t.ContainsNullable() {
			out = out.WithType(types.Int(false))
		}
		return out
	}
	return t
}

func (ev *evaluator) ternary(ctx scope.Context, d ast.TernaryNode) types.UnionType {
	cond := ev.expr(ctx, d.Cond)
	thenCtx, elseCtx := ctx, ctx
	if n := ev.r.narrower; n != nil {
		if c, err := n.Narrow(ctx, d.Cond, true); err != nil {
			ev.report(ctx, err)
		} else {
			thenCtx = c
		}
		if c, err := n.Narrow(ctx, d.Cond, false); err != nil {
			ev.report(ctx, err)
		} else {
			elseCtx = c
		}
	}
	thenT := cond.NonFalseyClone()
	if d.Then != nil {
		thenT = ev.expr(thenCtx, d.Then)
	}
	elseT := ev.expr(elseCtx, d.Else)
	if thenT.IsEmpty() || elseT.IsEmpty() {
		return types.Empty()
	}
	return thenT.Union(elseT)
}

func (ev *evaluator) cast(ctx scope.Context, d ast.CastNode) types.UnionType {
	t := ev.expr(ctx, d.Expr)
	switch strings.ToLower(d.To) {
	case "int", "integer":
		return types.IntUnion()
	case "float", "double", "real":
		return types.FloatUnion()
	case "string", "binary":
		return types.StringUnion()
	case "bool", "boolean":
		return types.BoolUnion()
	case "array":
		if t.IsExclusively(types.IsArrayLikeKind) {
			return t.NonNullableClone()
		}
		return types.ArrayUnion()
	case "object":
		if t.IsExclusively(types.IsObjectKind) {
			return t.NonNullableClone()
		}
		return types.ObjectUnion()
	case "unset", "null":
		return types.NullUnion()
	}
	return types.Empty()
}
