package typeChecker

import (
	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// expr reports the issues of evaluating node in ctx and returns ctx with node's
// effects applied.
func (tc *TypeChecker) expr(ctx scope.Context, node *ast.Node) scope.Context {
	ctx, _ = tc.eval(ctx, node)
	return ctx
}

// eval is expr that also returns node's type. The type is that of node evaluated
// before its own assignments take effect.
func (tc *TypeChecker) eval(ctx scope.Context, node *ast.Node) (scope.Context, types.UnionType) {
	if node == nil || tc.err != nil {
		return ctx, types.Empty()
	}
	t := tc.exprType(ctx, node)
	return tc.effects(ctx, node), t
}

func (tc *TypeChecker) effectsList(ctx scope.Context, nodes []*ast.Node) scope.Context {
	for _, n := range nodes {
		ctx = tc.effects(ctx, n)
	}
	return ctx
}

// effects applies what evaluating node does to variables: assignments, by-reference
// arguments, increments and assert(). Calls have their arguments checked here.
func (tc *TypeChecker) effects(ctx scope.Context, node *ast.Node) scope.Context {
	if node == nil || tc.err != nil {
		return ctx
	}
	switch d := node.Data.(type) {
	case ast.AssignNode:
		return tc.assign(ctx, node, d)
	case ast.CallNode:
		return tc.call(ctx, node, d)
	case ast.MethodCallNode:
		return tc.methodCall(ctx, node, tc.effectsList(tc.effects(ctx, d.Expr), d.Args), d.Args)
	case ast.StaticCallNode:
		return tc.methodCall(ctx, node, tc.effectsList(ctx, d.Args), d.Args)
	case ast.NewNode:
		return tc.newExpr(ctx, node, d)
	case ast.ArrayLitNode:
		return tc.effectsList(ctx, d.Items)
	case ast.ArrayItemNode:
		return tc.effects(tc.effects(ctx, d.Key), d.Value)
	case ast.InterpolatedNode:
		return tc.effectsList(ctx, d.Parts)
	case ast.DimNode:
		return tc.effects(tc.effects(ctx, d.Expr), d.Dim)
	case ast.PropFetchNode:
		return tc.effects(ctx, d.Expr)
	case ast.CastNode:
		return tc.effects(ctx, d.Expr)
	case ast.InstanceofNode:
		return tc.effects(ctx, d.Expr)
	case ast.UnaryOpNode:
		ctx = tc.effects(ctx, d.Expr)
		switch d.Op {
		case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
			if name, ok := ast.VariableName(d.Expr); ok {
				if v, ok := ctx.Variable(name); ok {
					ctx = ctx.WithVariable(v.WithType(v.Type.NonLiteralClone()))
				}
			}
		}
		return ctx
	case ast.BinaryOpNode:
		left := tc.effects(ctx, d.Left)
		switch d.Op {
		case ast.OpBoolAnd, ast.OpBoolOr, ast.OpLogicalAnd, ast.OpLogicalOr, ast.OpCoalesce:
			// The right side may not run.
			return scope.Merge(left, left, tc.effects(left, d.Right))
		}
		return tc.effects(left, d.Right)
	case ast.TernaryNode:
		ctx = tc.effects(ctx, d.Cond)
		then, els, ok := tc.narrowed(ctx, d.Cond)
		if !ok {
			return ctx
		}
		if d.Then != nil {
			then = tc.effects(then, d.Then)
		}
		return scope.Merge(ctx, then, tc.effects(els, d.Else))
	}
	return ctx
}

// assign binds the target of an assignment to the type of its value.
func (tc *TypeChecker) assign(ctx scope.Context, node *ast.Node, d ast.AssignNode) scope.Context {
	ctx = tc.effects(ctx, d.Expr)
	if d.ByRef {
		if name, ok := ast.VariableName(d.Expr); ok {
			v, defined := ctx.Variable(name)
			if !defined {
				v = scope.NewVariable(name, types.NullUnion(), 0)
			}
			ctx = ctx.WithVariable(v.WithFlags(v.Flags | scope.IsReference))
		}
	}
	ctx = tc.assignTo(ctx, d.Var, tc.quietType(ctx, node))
	if name, ok := ast.VariableName(d.Var); ok && d.ByRef {
		if v, ok := ctx.Variable(name); ok {
			ctx = ctx.WithVariable(v.WithFlags(v.Flags | scope.IsReference))
		}
	}
	return ctx
}

// assignTo binds target, which may be a variable, an array element, a property or
// a destructuring list, to t.
func (tc *TypeChecker) assignTo(ctx scope.Context, target *ast.Node, t types.UnionType) scope.Context {
	if target == nil || tc.err != nil {
		return ctx
	}
	switch d := target.Data.(type) {
	case ast.VariableNode:
		name, ok := ast.VariableName(target)
		if !ok {
			return tc.effects(ctx, d.NameExpr)
		}
		if name == "this" {
			return ctx
		}
		var flags scope.VariableFlags
		if v, ok := ctx.Variable(name); ok && v.Has(scope.IsReference) {
			flags = scope.IsReference
		}
		return ctx.WithVariable(scope.NewVariable(name, t, flags))
	case ast.DimNode:
		ctx = tc.effects(ctx, d.Dim)
		base := tc.quietType(ctx, d.Expr)
		return tc.assignTo(ctx, d.Expr, tc.withElement(ctx, base, d.Dim, t))
	case ast.PropFetchNode, ast.StaticPropFetchNode:
		if pf, ok := d.(ast.PropFetchNode); ok {
			ctx = tc.effects(ctx, pf.Expr)
		}
		p, err := tc.r.Property(ctx, target, true)
		tc.report(ctx, target.Line, err)
		tc.checkAssignable(ctx, target.Line, t, p)
	case ast.ArrayLitNode:
		next := int64(0)
		for _, item := range d.Items {
			it, ok := item.Data.(ast.ArrayItemNode)
			if !ok {
				next++
				continue
			}
			key := it.Key
			if key == nil {
				key = ast.NewIntLit(item.Line, next)
				next++
			}
			ctx = tc.assignTo(ctx, it.Value, tc.r.DimType(ctx, t, key))
		}
	}
	return ctx
}

// withElement is the type of base after base[dim] = elem. A constant key updates
// shape fields; any other key, or none, adds elem to the generic element type.
// Strings keep their type.
func (tc *TypeChecker) withElement(ctx scope.Context, base types.UnionType, dim *ast.Node, elem types.UnionType) types.UnionType {
	if !base.IsEmpty() && base.NonNullableClone().IsExclusively(types.IsStringKind) {
		return base
	}
	arrays := base.Filter(func(t *types.Type) bool { return types.IsArrayLikeKind(t.Kind()) })
	if key, ok := tc.constantKey(ctx, dim); ok {
		merged := arrays.WithMergedShapeField(key, elem)
		if arrays.HasKind(types.KindGenericArray) || arrays.HasKind(types.KindArray) {
			merged = merged.Union(elem.ElementsAsGenericArrays(keyKindOf(key)))
		}
		return merged
	}
	key := types.KeyInt
	if dim != nil {
		key = types.KeyMixed
		kt := tc.quietType(ctx, dim)
		switch {
		case !kt.IsEmpty() && kt.IsExclusively(types.IsIntKind):
			key = types.KeyInt
		case !kt.IsEmpty() && kt.IsExclusively(types.IsStringKind):
			key = types.KeyString
		}
	}
	return arrays.WithoutType(types.EmptyArray(false)).Union(elem.ElementsAsGenericArrays(key))
}

func keyKindOf(key string) types.KeyKind {
	for i, c := range key {
		if (c < '0' || c > '9') && !(i == 0 && c == '-' && len(key) > 1) {
			return types.KeyString
		}
	}
	if key == "" {
		return types.KeyString
	}
	return types.KeyInt
}

// checkAssignable reports t being written to p when p's type does not accept it.
func (tc *TypeChecker) checkAssignable(ctx scope.Context, line int, t types.UnionType, p *codebase.PropertyDecl) {
	if p == nil || p.Type.IsEmpty() || t.IsEmpty() || tc.err != nil {
		return
	}
	declared := p.Type.ReplaceSelf(types.Class(p.DefiningClass, nil, false))
	if !tc.canCast(t, declared, line) {
		tc.r.Emit(ctx, issue.TypeMismatchProperty, line, t, p.FQSEN(), declared)
	}
}

func (tc *TypeChecker) call(ctx scope.Context, node *ast.Node, d ast.CallNode) scope.Context {
	ctx = tc.effectsList(ctx, d.Args)
	if d.Func == nil || d.Func.Type != ast.Name {
		return tc.effects(ctx, d.Func)
	}
	f, err := tc.r.Quiet().Function(ctx, node)
	tc.ignore(node.Line, err)
	if f == nil {
		return ctx
	}
	ctx = tc.bindReferences(ctx, &f.Signature, d.Args)
	tc.checkArgs(ctx, node, f.FQSEN.String(), &f.Signature, d.Args, nil)
	if f.FQSEN.Key() == `\assert` && len(d.Args) > 0 {
		narrowed, err := tc.n.Positive(ctx, d.Args[0])
		if err != nil {
			tc.fail(node.Line, err)
			return ctx
		}
		return narrowed
	}
	return ctx
}

func (tc *TypeChecker) methodCall(before scope.Context, node *ast.Node, ctx scope.Context, args []*ast.Node) scope.Context {
	m, err := tc.r.Quiet().Method(before, node)
	tc.ignore(node.Line, err)
	if m == nil {
		return ctx
	}
	ctx = tc.bindReferences(ctx, &m.Signature, args)
	tc.checkArgs(ctx, node, m.FQSEN().String(), &m.Signature, args, types.Class(m.DefiningClass, nil, false))
	return ctx
}

func (tc *TypeChecker) newExpr(ctx scope.Context, node *ast.Node, d ast.NewNode) scope.Context {
	before := ctx
	ctx = tc.effectsList(ctx, d.Args)
	if d.Class == nil || d.Class.Type == ast.Class {
		return ctx
	}
	classes, err := tc.r.Quiet().ClassList(before, d.Class)
	tc.ignore(node.Line, err)
	if len(classes) == 0 {
		return ctx
	}
	m, err := tc.r.FindMethod(classes[0], "__construct")
	if err != nil {
		tc.fail(node.Line, err)
		return ctx
	}
	if m == nil {
		return ctx
	}
	ctx = tc.bindReferences(ctx, &m.Signature, d.Args)
	tc.checkArgs(ctx, node, m.FQSEN().String(), &m.Signature, d.Args, classes[0].AsType())
	return ctx
}

// bindReferences defines the undefined variables passed to by-reference parameters.
func (tc *TypeChecker) bindReferences(ctx scope.Context, sig *codebase.Signature, args []*ast.Node) scope.Context {
	for i, arg := range args {
		p, ok := sig.Param(i)
		if !ok || !p.ByRef {
			continue
		}
		name, ok := ast.VariableName(arg)
		if !ok || name == "this" {
			continue
		}
		if _, defined := ctx.Variable(name); !defined {
			ctx = ctx.WithVariable(scope.NewVariable(name, types.Empty(), scope.IsReference))
		}
	}
	return ctx
}

func hasUnpack(args []*ast.Node) bool {
	for _, a := range args {
		if d, ok := a.Data.(ast.ArrayItemNode); ok && d.Unpack {
			return true
		}
	}
	return false
}

// checkArgs reports missing arguments and arguments whose type the parameter does
// not accept. self replaces self and static in parameter types.
func (tc *TypeChecker) checkArgs(ctx scope.Context, node *ast.Node, fn string, sig *codebase.Signature, args []*ast.Node, self *types.Type) {
	if hasUnpack(args) || tc.err != nil {
		return
	}
	if required := sig.RequiredParams(); len(args) < required {
		tc.r.Emit(ctx, issue.TooFewArguments, node.Line, len(args), fn, required)
	}
	for i, arg := range args {
		p, ok := sig.Param(i)
		if !ok || p.ByRef || p.Type.IsEmpty() || p.Type.HasKind(types.KindTemplate) {
			continue
		}
		t := tc.quietType(ctx, arg)
		if t.IsEmpty() {
			continue
		}
		want := p.Type.ReplaceSelf(self)
		if !tc.canCast(t, want, arg.Line) {
			tc.r.Emit(ctx, issue.TypeMismatchArgument, arg.Line, i+1, p.Name, t, fn, want)
		}
	}
}
