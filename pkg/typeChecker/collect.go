package typeChecker

import (
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/resolve"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
	"github.com/xplshn/gpan/pkg/util"
)

// Collect registers the classes, functions and constants one file declares. Names
// written in declarations are resolved by Finalize, once every file is collected.
func (tc *TypeChecker) Collect(file string, root *ast.Node) {
	tc.walkTop(scope.NewContext(file), fileStmts(root), tc.collectStmt)
}

func location(ctx scope.Context, node *ast.Node) codebase.Location {
	return codebase.Location{File: ctx.File(), Line: node.Line}
}

func (tc *TypeChecker) collectStmt(ctx scope.Context, stmt *ast.Node) scope.Context {
	switch d := stmt.Data.(type) {
	case ast.ClassNode:
		tc.collectClass(ctx, stmt, d)
	case ast.FunctionNode:
		tc.collectFunction(ctx, stmt, d)
	case ast.ConstDeclNode:
		tc.collectConst(ctx, stmt, fqsen.NewGlobalConstName(ctx.Namespace(), d.Name), d.Value)
	case ast.ExprStmtNode:
		tc.collectDefine(ctx, stmt, d.Expr)
	case ast.BlockNode:
		tc.walkTop(ctx, d.Stmts, tc.collectStmt)
	case ast.IfNode:
		for _, branch := range []*ast.Node{d.Then, d.Else} {
			if branch != nil {
				tc.collectStmt(ctx, branch)
			}
		}
	}
	return ctx
}

func (tc *TypeChecker) collectConst(ctx scope.Context, node *ast.Node, name fqsen.GlobalConstName, value *ast.Node) {
	k := &codebase.GlobalConstDecl{FQSEN: name, Value: value, Location: location(ctx, node)}
	if !tc.cb.AddGlobalConstant(k) {
		util.Warn(ctx.File(), "line %d: constant %s is already declared", node.Line, name)
	}
}

// collectDefine registers define('NAME', value) calls with a literal name.
func (tc *TypeChecker) collectDefine(ctx scope.Context, node, expr *ast.Node) {
	d, ok := expr.Data.(ast.CallNode)
	if !ok || len(d.Args) < 2 || !strings.EqualFold(strings.TrimPrefix(ast.NameText(d.Func), `\`), "define") {
		return
	}
	lit, ok := d.Args[0].Data.(ast.StringLitNode)
	if !ok || lit.Value == "" {
		return
	}
	tc.collectConst(ctx, node, fqsen.ParseGlobalConstName(`\`+strings.TrimPrefix(lit.Value, `\`)), d.Args[1])
}

func (tc *TypeChecker) collectFunction(ctx scope.Context, node *ast.Node, d ast.FunctionNode) {
	if d.Name == "" {
		return
	}
	f := &codebase.FunctionDecl{FQSEN: fqsen.NewFunctionName(ctx.Namespace(), d.Name), Location: location(ctx, node)}
	if !tc.cb.AddFunction(f) {
		util.Warn(ctx.File(), "line %d: function %s is already declared", node.Line, f.FQSEN)
		return
	}
	templates := resolve.ParseDoc(node.Doc).Templates
	fctx := ctx.WithFunction(f.FQSEN)
	tc.deferred = append(tc.deferred, func() {
		tc.fillSignature(fctx, &f.Signature, node, d.Params, d.ReturnType, templates)
	})
}

func (tc *TypeChecker) collectClass(ctx scope.Context, node *ast.Node, d ast.ClassNode) {
	if d.Name == "" {
		return
	}
	c := codebase.NewClassDecl(resolve.QualifyClassName(ctx, d.Name), d.Kind)
	c.Flags = d.Flags
	c.Location = location(ctx, node)
	c.Templates = resolve.ParseDoc(node.Doc).Templates
	if !tc.cb.AddClass(c) {
		util.Warn(ctx.File(), "line %d: class %s is already declared", node.Line, c.FQSEN)
		return
	}

	ctx = ctx.WithClass(c.FQSEN)
	tc.hierarchy = append(tc.hierarchy, func() {
		if d.Extends != nil {
			c.Parent = tc.className(ctx, d.Extends)
		}
		for _, i := range d.Implements {
			c.Interfaces = append(c.Interfaces, tc.className(ctx, i))
		}
	})
	for _, stmt := range d.Stmts {
		if stmt == nil {
			continue
		}
		switch m := stmt.Data.(type) {
		case ast.MethodNode:
			tc.collectMethod(ctx, c, stmt, m)
		case ast.PropertyNode:
			tc.collectProperty(ctx, c, stmt, m)
		case ast.TraitUseNode:
			tc.collectTraitUse(ctx, c, m)
		case ast.ClassConstNode:
			c.AddConstant(&codebase.ConstDecl{Name: m.Name, Flags: m.Flags, Value: m.Value, DefiningClass: c.FQSEN, Location: location(ctx, stmt)})
		}
	}
}

func (tc *TypeChecker) className(ctx scope.Context, node *ast.Node) fqsen.ClassName {
	return tc.r.FullyQualifiedClassName(ctx, ast.NameText(node))
}

func (tc *TypeChecker) collectMethod(ctx scope.Context, c *codebase.ClassDecl, node *ast.Node, d ast.MethodNode) {
	m := &codebase.MethodDecl{Name: d.Name, Flags: d.Flags, DefiningClass: c.FQSEN, Location: location(ctx, node)}
	if c.IsInterface() {
		m.Flags |= ast.ModAbstract
	}
	c.AddMethod(m)

	var promoted []*codebase.PropertyDecl
	if strings.EqualFold(d.Name, "__construct") {
		for _, p := range d.Params {
			if pd, ok := p.Data.(ast.ParamNode); ok && pd.Flags&(ast.VisibilityMask|ast.ModReadonly) != 0 {
				prop := &codebase.PropertyDecl{Name: pd.Name, Flags: pd.Flags, DefiningClass: c.FQSEN, Location: location(ctx, p)}
				c.AddProperty(prop)
				promoted = append(promoted, prop)
			}
		}
	}

	templates := append(append([]string(nil), c.Templates...), resolve.ParseDoc(node.Doc).Templates...)
	mctx := ctx.WithFunction(fqsen.NewMethodName(c.FQSEN, d.Name))
	tc.deferred = append(tc.deferred, func() {
		tc.fillSignature(mctx, &m.Signature, node, d.Params, d.ReturnType, templates)
		for _, prop := range promoted {
			for _, p := range m.Params {
				if p.Name == prop.Name {
					prop.Type = p.Type
				}
			}
		}
	})
}

func (tc *TypeChecker) collectProperty(ctx scope.Context, c *codebase.ClassDecl, node *ast.Node, d ast.PropertyNode) {
	p := &codebase.PropertyDecl{Name: d.Name, Flags: d.Flags, DefiningClass: c.FQSEN, Location: location(ctx, node)}
	c.AddProperty(p)
	tc.deferred = append(tc.deferred, func() {
		t := tc.declaredType(ctx, node.Line, d.Type, c.Templates)
		if doc := resolve.ParseDoc(node.Doc); doc.Var != "" {
			if docType := tc.r.DocType(ctx, node.Line, doc.Var, c.Templates); tc.refines(docType, t) {
				t = docType
			}
		}
		p.Type = t
	})
}

func (tc *TypeChecker) collectTraitUse(ctx scope.Context, c *codebase.ClassDecl, d ast.TraitUseNode) {
	tc.hierarchy = append(tc.hierarchy, func() {
		for _, t := range d.Traits {
			c.Traits = append(c.Traits, tc.className(ctx, t))
		}
		for _, a := range d.Adaptations {
			switch ad := a.Data.(type) {
			case ast.TraitAliasNode:
				rule := codebase.TraitRule{Kind: codebase.TraitAliasRule, Method: ad.Method, Alias: ad.Alias, Flags: ad.Flags, Line: a.Line}
				if ad.Trait != nil {
					rule.Trait = tc.className(ctx, ad.Trait)
				}
				c.TraitRules = append(c.TraitRules, rule)
			case ast.TraitPrecedenceNode:
				rule := codebase.TraitRule{Kind: codebase.TraitPrecedenceRule, Trait: tc.className(ctx, ad.Trait), Method: ad.Method, Line: a.Line}
				for _, x := range ad.InsteadOf {
					rule.InsteadOf = append(rule.InsteadOf, tc.className(ctx, x))
				}
				c.TraitRules = append(c.TraitRules, rule)
			}
		}
	})
}

// fillSignature reads parameter and return types. A @param or @return type replaces
// the written one when it is castable to it, as the more precise of the two.
func (tc *TypeChecker) fillSignature(ctx scope.Context, sig *codebase.Signature, node *ast.Node, params []*ast.Node, ret *ast.Node, templates []string) {
	doc := resolve.ParseDoc(node.Doc)
	sig.Params = make([]codebase.ParamDecl, 0, len(params))
	for _, p := range params {
		d, ok := p.Data.(ast.ParamNode)
		if !ok {
			continue
		}
		t := tc.declaredType(ctx, p.Line, d.Type, templates)
		if text, ok := doc.Params[d.Name]; ok {
			if docType := tc.r.DocType(ctx, node.Line, text, templates); tc.refines(docType, t) {
				t = docType
			}
		}
		if !t.IsEmpty() && isNullLiteral(d.Default) {
			t = t.NullableClone()
		}
		sig.Params = append(sig.Params, codebase.ParamDecl{
			Name: d.Name, Type: t, Optional: d.Default != nil || d.Variadic, Variadic: d.Variadic, ByRef: d.ByRef,
		})
	}
	sig.RealReturnType = tc.declaredType(ctx, node.Line, ret, templates)
	sig.PHPDocReturnType = tc.r.DocType(ctx, node.Line, doc.Return, templates)
}

func (tc *TypeChecker) refines(doc, written types.UnionType) bool {
	if doc.IsEmpty() {
		return false
	}
	if written.IsEmpty() {
		return true
	}
	ok, err := doc.CanCastToUnionTypeExpanded(written, tc.cb, tc.r.CastOptions())
	return err == nil && ok
}

func typeText(node *ast.Node) string {
	if node == nil {
		return ""
	}
	if d, ok := node.Data.(ast.TypeRefNode); ok {
		return d.Text
	}
	return ast.NameText(node)
}

func (tc *TypeChecker) declaredType(ctx scope.Context, line int, node *ast.Node, templates []string) types.UnionType {
	text := typeText(node)
	if text == "" {
		return types.Empty()
	}
	t, err := tc.r.DeclaredType(ctx, text, templates)
	if err != nil {
		util.Warn(ctx.File(), "line %d: %v", line, err)
		return types.Empty()
	}
	return t
}

func isNullLiteral(node *ast.Node) bool {
	if node == nil {
		return false
	}
	d, ok := node.Data.(ast.ConstFetchNode)
	return ok && strings.EqualFold(strings.TrimPrefix(ast.NameText(d.Name), `\`), "null")
}

// Finalize resolves the class hierarchy and every declared type, then reports
// unknown ancestors and trait rules that cannot be applied. Call it once, after the
// last Collect and before the first Analyze.
func (tc *TypeChecker) Finalize() {
	for _, fn := range tc.hierarchy {
		fn()
	}
	for _, fn := range tc.deferred {
		fn()
	}
	tc.hierarchy, tc.deferred = nil, nil

	for _, c := range tc.cb.Classes() {
		if c.Location.File == "" {
			continue
		}
		ctx := scope.NewContext(c.Location.File).WithLine(c.Location.Line)
		if c.HasParent() && !tc.cb.HasClass(c.Parent) {
			tc.r.Emit(ctx, issue.UndeclaredExtendedClass, 0, c.FQSEN, c.Parent)
		}
		for _, i := range c.Interfaces {
			if !tc.cb.HasClass(i) {
				tc.r.Emit(ctx, issue.UndeclaredInterface, 0, c.FQSEN, i)
			}
		}
		for _, t := range c.Traits {
			if !tc.cb.HasClass(t) {
				tc.r.Emit(ctx, issue.UndeclaredTrait, 0, c.FQSEN, t)
			}
		}
		entries, errs := tc.r.TraitAdaptations(c)
		c.SetAdaptations(entries)
		for _, err := range errs {
			err.Emit(tc.r.Sink(), ctx)
		}
	}
}
