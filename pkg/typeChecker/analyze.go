package typeChecker

import (
	"strconv"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/resolve"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// Analyze walks one file. An error that cannot become an issue, such as a cyclic
// class hierarchy, stops the walk; it is reported as AnalysisAborted and returned.
func (tc *TypeChecker) Analyze(file string, root *ast.Node) error {
	tc.err, tc.errLine, tc.fn = nil, 0, nil
	ctx := scope.NewContext(file)
	tc.walkTop(ctx, fileStmts(root), tc.stmt)
	if tc.err != nil {
		tc.r.Emit(ctx, issue.AnalysisAborted, tc.errLine, tc.err)
		return tc.err
	}
	return nil
}

func (tc *TypeChecker) stmts(ctx scope.Context, list []*ast.Node) scope.Context {
	for _, s := range list {
		if tc.err != nil {
			break
		}
		ctx = tc.stmt(ctx, s)
	}
	return ctx
}

func (tc *TypeChecker) stmt(ctx scope.Context, node *ast.Node) scope.Context {
	if node == nil || tc.err != nil {
		return ctx
	}
	ctx = ctx.WithLine(node.Line)
	switch d := node.Data.(type) {
	case ast.ExprStmtNode:
		return tc.docVar(tc.expr(ctx, d.Expr), node, d.Expr)
	case ast.BlockNode:
		return tc.stmts(ctx, d.Stmts)
	case ast.IfNode:
		return tc.ifStmt(ctx, node, d)
	case ast.WhileNode:
		return tc.whileStmt(ctx, node, d)
	case ast.ForNode:
		return tc.forStmt(ctx, node, d)
	case ast.ForeachNode:
		return tc.foreachStmt(ctx, d)
	case ast.SwitchNode:
		return tc.switchStmt(ctx, d)
	case ast.TryNode:
		return tc.tryStmt(ctx, d)
	case ast.ReturnNode:
		tc.returnStmt(ctx, node, d)
	case ast.ThrowNode:
		return tc.expr(ctx, d.Expr)
	case ast.ClassNode:
		tc.analyzeClass(ctx, node, d)
	case ast.FunctionNode:
		tc.analyzeFunction(ctx, node, d)
	case ast.ConstDeclNode:
		tc.exprType(ctx, d.Value)
	case ast.BreakNode, ast.ContinueNode, ast.NamespaceNode, ast.UseNode:
	case ast.EchoNode:
		for _, e := range d.Exprs {
			ctx = tc.expr(ctx, e)
		}
	case ast.UnsetNode:
		for _, v := range d.Vars {
			ctx = tc.unset(ctx, v)
		}
	case ast.GlobalNode:
		for _, v := range d.Vars {
			if name, ok := ast.VariableName(v); ok {
				ctx = ctx.WithVariable(scope.NewVariable(name, types.Empty(), 0))
			}
		}
	case ast.UnknownNode:
		for _, c := range d.Children {
			ctx = tc.stmt(ctx, c)
		}
	default:
		return tc.expr(ctx, node)
	}
	return ctx
}

func (tc *TypeChecker) templates() []string {
	if tc.fn == nil {
		return nil
	}
	return tc.fn.templates
}

// docVar applies an inline @var tag: `/** @var Foo $x */ $x = make();` binds $x to
// Foo. Without a variable name the tag applies to the assigned variable.
func (tc *TypeChecker) docVar(ctx scope.Context, node, expr *ast.Node) scope.Context {
	if node.Doc == "" {
		return ctx
	}
	doc := resolve.ParseDoc(node.Doc)
	if doc.Var == "" {
		return ctx
	}
	name := doc.VarName
	if name == "" {
		if a, ok := expr.Data.(ast.AssignNode); ok {
			name, _ = ast.VariableName(a.Var)
		}
	}
	if name == "" || name == "this" {
		return ctx
	}
	t := tc.r.DocType(ctx, node.Line, doc.Var, tc.templates())
	if t.IsEmpty() {
		return ctx
	}
	return ctx.WithVariable(scope.NewVariable(name, t, scope.FromPHPDoc))
}

// exits reports whether control never falls off the end of node.
func exits(node *ast.Node) bool {
	if node == nil {
		return false
	}
	switch d := node.Data.(type) {
	case ast.ReturnNode, ast.ThrowNode, ast.BreakNode, ast.ContinueNode:
		return true
	case ast.BlockNode:
		return len(d.Stmts) > 0 && exits(d.Stmts[len(d.Stmts)-1])
	case ast.IfNode:
		return d.Else != nil && exits(d.Then) && exits(d.Else)
	}
	return false
}

// narrowed returns the contexts in which cond holds and in which it does not.
func (tc *TypeChecker) narrowed(ctx scope.Context, cond *ast.Node) (scope.Context, scope.Context, bool) {
	pos, err := tc.n.Positive(ctx, cond)
	if err != nil {
		tc.fail(cond.Line, err)
		return ctx, ctx, false
	}
	neg, err := tc.n.Negative(ctx, cond)
	if err != nil {
		tc.fail(cond.Line, err)
		return ctx, ctx, false
	}
	return pos, neg, true
}

// condition reports a type check whose outcome the checked variable's type decides.
func (tc *TypeChecker) condition(ctx scope.Context, cond *ast.Node) {
	value, known, text := tc.n.Evaluate(ctx, cond)
	if !known {
		return
	}
	if value {
		tc.r.Emit(ctx, issue.RedundantCondition, cond.Line, text, "true")
	} else {
		tc.r.Emit(ctx, issue.ImpossibleCondition, cond.Line, text, "true")
	}
}

func (tc *TypeChecker) ifStmt(ctx scope.Context, node *ast.Node, d ast.IfNode) scope.Context {
	ctx = tc.expr(ctx, d.Cond)
	tc.condition(ctx, d.Cond)
	then, els, ok := tc.narrowed(ctx, d.Cond)
	if !ok {
		return ctx
	}
	thenOut := tc.stmt(then, d.Then)
	elseOut := tc.stmt(els, d.Else)

	var branches []scope.Context
	if !exits(d.Then) {
		branches = append(branches, thenOut)
	}
	if !exits(d.Else) {
		branches = append(branches, elseOut)
	}
	if len(branches) == 0 {
		return ctx
	}
	return scope.Merge(ctx, branches...)
}

// Loops are walked once: types assigned late in the body do not flow back to its
// start.
func (tc *TypeChecker) whileStmt(ctx scope.Context, node *ast.Node, d ast.WhileNode) scope.Context {
	if d.DoWhile {
		out := tc.expr(tc.stmt(ctx, d.Body), d.Cond)
		_, after, _ := tc.narrowed(out, d.Cond)
		return after
	}
	ctx = tc.expr(ctx, d.Cond)
	tc.condition(ctx, d.Cond)
	in, _, ok := tc.narrowed(ctx, d.Cond)
	if !ok {
		return ctx
	}
	out := tc.stmt(in, d.Body)
	_, after, _ := tc.narrowed(scope.Merge(ctx, ctx, out), d.Cond)
	return after
}

func (tc *TypeChecker) forStmt(ctx scope.Context, node *ast.Node, d ast.ForNode) scope.Context {
	for _, e := range d.Init {
		ctx = tc.expr(ctx, e)
	}
	var cond *ast.Node
	for _, e := range d.Cond {
		ctx = tc.expr(ctx, e)
		cond = e
	}
	in := ctx
	if cond != nil {
		in, _, _ = tc.narrowed(ctx, cond)
	}
	out := tc.stmt(in, d.Body)
	for _, e := range d.Loop {
		out = tc.expr(out, e)
	}
	merged := scope.Merge(ctx, ctx, out)
	if cond == nil {
		return merged
	}
	_, after, _ := tc.narrowed(merged, cond)
	return after
}

func (tc *TypeChecker) foreachStmt(ctx scope.Context, d ast.ForeachNode) scope.Context {
	ctx, iter := tc.eval(ctx, d.Expr)
	in := ctx
	if d.Key != nil {
		in = tc.assignTo(in, d.Key, keyType(iter))
	}
	if d.Value != nil {
		in = tc.assignTo(in, d.Value, iter.GenericArrayElementType())
	}
	out := tc.stmt(in, d.Body)
	return scope.Merge(ctx, ctx, out)
}

// keyType is the type of the keys iterating u yields, or empty if unknown.
func keyType(u types.UnionType) types.UnionType {
	var out types.UnionType
	for _, t := range u.Types() {
		switch t.Kind() {
		case types.KindGenericArray:
			switch t.KeyKind() {
			case types.KeyInt:
				out = out.WithType(types.Int(false))
			case types.KeyString:
				out = out.WithType(types.String(false))
			default:
				out = out.WithType(types.Int(false)).WithType(types.String(false))
			}
		case types.KindArrayShape:
			for _, f := range t.ShapeFields() {
				if _, err := strconv.ParseInt(f.Key, 10, 64); err == nil {
					out = out.WithType(types.Int(false))
				} else {
					out = out.WithType(types.String(false))
				}
			}
		case types.KindNull:
		default:
			return types.Empty()
		}
	}
	return out
}

func (tc *TypeChecker) switchStmt(ctx scope.Context, d ast.SwitchNode) scope.Context {
	ctx = tc.expr(ctx, d.Cond)
	var (
		branches   []scope.Context
		fall       *scope.Context
		hasDefault bool
	)
	for _, c := range d.Cases {
		cd, ok := c.Data.(ast.CaseNode)
		if !ok {
			continue
		}
		if cd.Cond == nil {
			hasDefault = true
		} else {
			tc.exprType(ctx, cd.Cond)
		}
		entry := ctx
		if fall != nil {
			entry = scope.Merge(ctx, ctx, *fall)
		}
		out := tc.stmts(entry, cd.Stmts)
		fall = nil
		switch {
		case len(cd.Stmts) > 0 && cd.Stmts[len(cd.Stmts)-1].Type == ast.Break:
			branches = append(branches, out)
		case len(cd.Stmts) > 0 && exits(cd.Stmts[len(cd.Stmts)-1]):
		default:
			fall = &out
		}
	}
	if fall != nil {
		branches = append(branches, *fall)
	}
	if !hasDefault {
		branches = append(branches, ctx)
	}
	if len(branches) == 0 {
		return ctx
	}
	return scope.Merge(ctx, branches...)
}

func (tc *TypeChecker) tryStmt(ctx scope.Context, d ast.TryNode) scope.Context {
	body := tc.stmt(ctx, d.Body)
	var branches []scope.Context
	if !exits(d.Body) {
		branches = append(branches, body)
	}
	for _, c := range d.Catches {
		cd, ok := c.Data.(ast.CatchNode)
		if !ok {
			continue
		}
		// The exception may come from anywhere in the body.
		in := scope.Merge(ctx, ctx, body).WithLine(c.Line)
		var caught types.UnionType
		for _, t := range cd.Types {
			ct, err := tc.r.ClassUnionType(in, t)
			tc.report(in, c.Line, err)
			caught = caught.Union(ct)
		}
		if cd.Var != "" {
			in = in.WithVariable(scope.NewVariable(cd.Var, caught, 0))
		}
		out := tc.stmt(in, cd.Body)
		if !exits(cd.Body) {
			branches = append(branches, out)
		}
	}
	result := ctx
	if len(branches) > 0 {
		result = scope.Merge(ctx, branches...)
	}
	return tc.stmt(result, d.Finally)
}

func (tc *TypeChecker) returnStmt(ctx scope.Context, node *ast.Node, d ast.ReturnNode) {
	if d.Expr == nil {
		return
	}
	ctx, t := tc.eval(ctx, d.Expr)
	fn := tc.fn
	if fn == nil || fn.ret.IsEmpty() || t.IsEmpty() {
		return
	}
	if !tc.canCast(t, fn.ret, node.Line) {
		tc.r.Emit(ctx, issue.TypeMismatchReturn, node.Line, t, fn.name, fn.ret)
	}
}

// unset removes a variable, or the field of a shape a constant key names.
func (tc *TypeChecker) unset(ctx scope.Context, node *ast.Node) scope.Context {
	switch d := node.Data.(type) {
	case ast.VariableNode:
		if name, ok := ast.VariableName(node); ok {
			return ctx.WithoutVariable(name)
		}
	case ast.DimNode:
		name, ok := ast.VariableName(d.Expr)
		if !ok || d.Dim == nil {
			return ctx
		}
		v, ok := ctx.Variable(name)
		if !ok {
			return ctx
		}
		if key, ok := tc.constantKey(ctx, d.Dim); ok {
			return ctx.WithVariable(v.WithType(v.Type.WithoutArrayShapeField(key)))
		}
	default:
		tc.exprType(ctx, node)
	}
	return ctx
}

func (tc *TypeChecker) constantKey(ctx scope.Context, dim *ast.Node) (string, bool) {
	if dim == nil {
		return "", false
	}
	v, ok := tc.r.Quiet().EquivalentValue(ctx, dim)
	if !ok {
		return "", false
	}
	return v.KeyString()
}

func (tc *TypeChecker) analyzeClass(ctx scope.Context, node *ast.Node, d ast.ClassNode) {
	if d.Name == "" {
		return
	}
	c, ok := tc.cb.Class(resolve.QualifyClassName(ctx, d.Name))
	if !ok || c.Location.File != ctx.File() || c.Location.Line != node.Line {
		return
	}
	cctx := ctx.WithClass(c.FQSEN).WithScope(scope.New())
	for _, stmt := range d.Stmts {
		if tc.err != nil {
			return
		}
		if stmt == nil {
			continue
		}
		sctx := cctx.WithLine(stmt.Line)
		switch m := stmt.Data.(type) {
		case ast.MethodNode:
			if decl, ok := c.Method(m.Name); ok {
				tc.analyzeMethod(sctx, stmt, c, decl, m)
			}
		case ast.PropertyNode:
			if p, ok := c.Property(m.Name); ok && m.Default != nil {
				tc.checkAssignable(sctx, stmt.Line, tc.exprType(sctx, m.Default), p)
			}
		case ast.ClassConstNode:
			tc.exprType(sctx, m.Value)
		}
	}
}

func (tc *TypeChecker) analyzeMethod(ctx scope.Context, node *ast.Node, c *codebase.ClassDecl, m *codebase.MethodDecl, d ast.MethodNode) {
	if d.Body == nil || !m.DefiningClass.Equal(c.FQSEN) {
		return
	}
	fn := &funcState{
		name:      m.FQSEN().String(),
		ret:       tc.r.Policy().MethodReturnType(tc.cb, m).ReplaceSelf(c.AsType()),
		templates: append(append([]string(nil), c.Templates...), resolve.ParseDoc(node.Doc).Templates...),
	}
	tc.body(ctx.WithFunction(m.FQSEN()), fn, d.Params, &m.Signature, d.Body)
}

func (tc *TypeChecker) analyzeFunction(ctx scope.Context, node *ast.Node, d ast.FunctionNode) {
	name := fqsen.NewFunctionName(ctx.Namespace(), d.Name)
	f, ok := tc.cb.Function(name)
	if !ok || f.Location.File != ctx.File() || f.Location.Line != node.Line {
		return
	}
	fn := &funcState{
		name:      name.String(),
		ret:       tc.r.FunctionReturnType(f),
		templates: resolve.ParseDoc(node.Doc).Templates,
	}
	tc.body(ctx.WithoutClass().WithFunction(name).WithScope(scope.New()), fn, d.Params, &f.Signature, d.Body)
}

// body binds the parameters and walks a function-like body.
func (tc *TypeChecker) body(ctx scope.Context, fn *funcState, params []*ast.Node, sig *codebase.Signature, body *ast.Node) {
	saved := tc.fn
	tc.fn = fn
	defer func() { tc.fn = saved }()

	for i, p := range params {
		d, ok := p.Data.(ast.ParamNode)
		if !ok {
			continue
		}
		var t types.UnionType
		if i < len(sig.Params) {
			t = sig.Params[i].Type
		}
		if d.Default != nil {
			tc.exprType(ctx, d.Default)
		}
		if d.Variadic {
			t = t.ElementsAsGenericArrays(types.KeyInt)
		}
		var flags scope.VariableFlags
		if d.ByRef {
			flags = scope.IsReference
		}
		ctx = ctx.WithVariable(scope.NewVariable(d.Name, t, flags))
	}
	tc.dumpScope(fn.name, tc.stmt(ctx, body))
}
