package resolve

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
	"github.com/xplshn/gpan/pkg/util"
)

const stdClass = `\stdclass`

// receiverClasses resolves the classes an instance member access may reach. A
// receiver that is definitely not an object fails with nonClass; an unknown one
// (empty, mixed, object) yields no classes and no error.
func (r *Resolver) receiverClasses(ctx scope.Context, line int, recv types.UnionType, member string, nonClass issue.Kind) ([]*codebase.ClassDecl, error) {
	if recv.IsEmpty() {
		return nil, nil
	}
	classes := r.declsOf(classNamesOf(r.classTypesOf(ctx, recv.Filter(func(t *types.Type) bool {
		return t.Kind() != types.KindLiteralString
	}))))
	if len(classes) == 0 && !recv.NonNullableClone().IsExclusively(func(k types.Kind) bool { return !types.IsPossiblyObjectKind(k) }) {
		return nil, nil
	}
	if len(classes) == 0 {
		return nil, newIssueError(nonClass, line, member, recv)
	}
	return classes, nil
}

// Method resolves the method a MethodCall or StaticCall node invokes. Calls through a
// dynamic name, or on a receiver of unknown class, resolve to nil without error.
func (r *Resolver) Method(ctx scope.Context, node *ast.Node) (*codebase.MethodDecl, error) {
	switch d := node.Data.(type) {
	case ast.MethodCallNode:
		if d.NameExpr != nil || d.Name == "" {
			return nil, nil
		}
		recv, err := r.ExpressionType(ctx, d.Expr)
		if err != nil {
			return nil, err
		}
		return r.instanceMethod(ctx, node.Line, recv, d.Name)
	case ast.StaticCallNode:
		classes, err := r.ClassList(ctx, d.Class)
		if err != nil {
			return nil, err
		}
		return r.staticMethod(ctx, node.Line, classes, d.Name)
	}
	return nil, errors.Errorf("%s node is not a method call", node.Type)
}

func (r *Resolver) instanceMethod(ctx scope.Context, line int, recv types.UnionType, name string) (*codebase.MethodDecl, error) {
	classes, err := r.receiverClasses(ctx, line, recv, name, issue.NonClassMethodCall)
	if err != nil || len(classes) == 0 {
		return nil, err
	}
	return r.MethodOf(ctx, line, classes, name, false)
}

func (r *Resolver) staticMethod(ctx scope.Context, line int, classes []*codebase.ClassDecl, name string) (*codebase.MethodDecl, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	m, err := r.MethodOf(ctx, line, classes, name, true)
	if err != nil || m.IsStatic() {
		return m, err
	}
	if err := r.checkStaticCall(ctx, line, m); err != nil {
		return m, err
	}
	return m, nil
}

// MethodOf finds method name on the first of classes that has it, checking
// visibility against ctx.
func (r *Resolver) MethodOf(ctx scope.Context, line int, classes []*codebase.ClassDecl, name string, static bool) (*codebase.MethodDecl, error) {
	for _, c := range classes {
		m, err := r.FindMethod(c, name)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		ok, err := r.canAccess(ctx, m.Visibility(), m.DefiningClass)
		if err != nil {
			return nil, err
		}
		if !ok {
			kind := issue.AccessProtectedMethod
			if m.Visibility() == codebase.Private {
				kind = issue.AccessPrivateMethod
			}
			return m, newIssueError(kind, line, m.FQSEN())
		}
		return m, nil
	}

	if r.cfg.IsFeatureEnabled(config.FeatMagicMethods) {
		magic := "__call"
		if static {
			magic = "__callStatic"
		}
		for _, c := range classes {
			m, err := r.FindMethod(c, magic)
			if err != nil {
				return nil, err
			}
			if m != nil {
				return magicMethod(m, name, static), nil
			}
		}
	}

	kind := issue.UndeclaredMethod
	if static {
		kind = issue.UndeclaredStaticMethod
	}
	var names []string
	for _, c := range classes {
		names = append(names, r.methodNames(c, 0)...)
	}
	s, ok := util.Suggest(name, names)
	return nil, newIssueError(kind, line, fqsen.NewMethodName(classes[0].FQSEN, name)).withSuggestion(s, ok)
}

// magicMethod stands in for a call dispatched through __call or __callStatic.
func magicMethod(m *codebase.MethodDecl, name string, static bool) *codebase.MethodDecl {
	flags := ast.ModPublic
	if static {
		flags |= ast.ModStatic
	}
	c := m.WithName(name, ast.ModPublic)
	c.Flags = flags
	c.Params = []codebase.ParamDecl{{Name: "arguments", Variadic: true}}
	return c
}

func (r *Resolver) checkStaticCall(ctx scope.Context, line int, m *codebase.MethodDecl) error {
	if cur, ok := ctx.Class(); ok {
		inherits, err := r.isDescendant(cur, m.DefiningClass)
		if err != nil || inherits {
			return err
		}
	}
	return newIssueError(issue.StaticCallToNonStatic, line, m.FQSEN())
}

// FindMethod looks name up on c: its own methods, then its traits (honoring aliases
// and hidden methods), then its parent chain, then its interfaces.
func (r *Resolver) FindMethod(c *codebase.ClassDecl, name string) (*codebase.MethodDecl, error) {
	return r.findMethod(c, name, 0)
}

func (r *Resolver) findMethod(c *codebase.ClassDecl, name string, depth int) (*codebase.MethodDecl, error) {
	if depth > types.MaxExpansionDepth {
		return nil, errors.Wrapf(types.ErrRecursionDepthExceeded, "looking up method %s::%s", c.FQSEN, name)
	}
	if m, ok := c.Method(name); ok {
		return m, nil
	}
	if m, err := r.traitMethod(c, name, depth); m != nil || err != nil {
		return m, err
	}
	if c.HasParent() {
		if p, ok := r.st.Class(c.Parent); ok {
			if m, err := r.findMethod(p, name, depth+1); m != nil || err != nil {
				return m, err
			}
		}
	}
	for _, i := range c.Interfaces {
		if decl, ok := r.st.Class(i); ok {
			if m, err := r.findMethod(decl, name, depth+1); m != nil || err != nil {
				return m, err
			}
		}
	}
	return nil, nil
}

func (r *Resolver) traitMethod(c *codebase.ClassDecl, name string, depth int) (*codebase.MethodDecl, error) {
	for _, tn := range c.Traits {
		t, ok := r.st.Class(tn)
		if !ok {
			continue
		}
		if adapt, ok := c.Adaptations(tn); ok {
			if a, ok := adapt.Alias(name); ok {
				m, err := r.findMethod(t, a.Original, depth+1)
				if err != nil {
					return nil, err
				}
				if m != nil {
					return m.ImportedInto(c.FQSEN).WithName(name, a.Flags), nil
				}
			}
			if adapt.IsHidden(name) {
				continue
			}
		}
		m, err := r.findMethod(t, name, depth+1)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m.ImportedInto(c.FQSEN), nil
		}
	}
	return nil, nil
}

// methodNames lists what c answers to, for suggestions.
func (r *Resolver) methodNames(c *codebase.ClassDecl, depth int) []string {
	if depth > types.MaxExpansionDepth {
		return nil
	}
	var out []string
	for _, m := range c.Methods() {
		out = append(out, m.Name)
	}
	for _, a := range c.AncestorFQSENs() {
		if decl, ok := r.st.Class(a); ok {
			out = append(out, r.methodNames(decl, depth+1)...)
		}
		if adapt, ok := c.Adaptations(a); ok {
			out = append(out, adapt.Aliases()...)
		}
	}
	return out
}

// canAccess checks a member's visibility from ctx. Protected members are visible
// from any class related to the defining one by inheritance in either direction.
func (r *Resolver) canAccess(ctx scope.Context, vis codebase.Visibility, defining fqsen.ClassName) (bool, error) {
	if vis == codebase.Public {
		return true, nil
	}
	cur, ok := ctx.Class()
	if !ok {
		return false, nil
	}
	if cur.Equal(defining) {
		return true, nil
	}
	if vis == codebase.Private {
		return false, nil
	}
	if down, err := r.isDescendant(cur, defining); down || err != nil {
		return down, err
	}
	return r.isDescendant(defining, cur)
}

// Property resolves the property a PropFetch or StaticPropFetch node names. isWrite
// selects __set over __get. Undeclared instance properties of \stdClass, or of any
// class when dynamic properties are enabled, resolve to a synthesized declaration.
func (r *Resolver) Property(ctx scope.Context, node *ast.Node, isWrite bool) (*codebase.PropertyDecl, error) {
	switch d := node.Data.(type) {
	case ast.PropFetchNode:
		if d.NameExpr != nil || d.Name == "" {
			return nil, nil
		}
		recv, err := r.ExpressionType(ctx, d.Expr)
		if err != nil {
			return nil, err
		}
		return r.instanceProperty(ctx, node.Line, recv, d.Name, isWrite)
	case ast.StaticPropFetchNode:
		classes, err := r.ClassList(ctx, d.Class)
		if err != nil || len(classes) == 0 {
			return nil, err
		}
		return r.propertyOf(ctx, node.Line, classes, d.Name, true, isWrite)
	}
	return nil, errors.Errorf("%s node is not a property access", node.Type)
}

func (r *Resolver) instanceProperty(ctx scope.Context, line int, recv types.UnionType, name string, isWrite bool) (*codebase.PropertyDecl, error) {
	classes, err := r.receiverClasses(ctx, line, recv, name, issue.NonClassPropertyAccess)
	if err != nil || len(classes) == 0 {
		return nil, err
	}
	return r.propertyOf(ctx, line, classes, name, false, isWrite)
}

func (r *Resolver) propertyOf(ctx scope.Context, line int, classes []*codebase.ClassDecl, name string, static, isWrite bool) (*codebase.PropertyDecl, error) {
	for _, c := range classes {
		p, err := r.findProperty(c, name, 0)
		if err != nil {
			return nil, err
		}
		if p == nil || p.IsStatic() != static {
			continue
		}
		ok, err := r.canAccess(ctx, p.Visibility(), p.DefiningClass)
		if err != nil {
			return nil, err
		}
		if !ok {
			kind := issue.AccessProtectedProperty
			if p.Visibility() == codebase.Private {
				kind = issue.AccessPrivateProperty
			}
			return p, newIssueError(kind, line, p.FQSEN())
		}
		return p, nil
	}

	if !static {
		if p, err := r.magicProperty(classes, name, isWrite); p != nil || err != nil {
			return p, err
		}
		for _, c := range classes {
			if r.cfg.IsFeatureEnabled(config.FeatDynamicProperties) || c.FQSEN.Key() == stdClass {
				return &codebase.PropertyDecl{Name: name, Flags: ast.ModPublic, DefiningClass: c.FQSEN, Dynamic: true,
					Location: codebase.Location{File: ctx.File(), Line: line}}, nil
			}
		}
	}

	kind := issue.UndeclaredProperty
	if static {
		kind = issue.UndeclaredStaticProperty
	}
	var names []string
	for _, c := range classes {
		names = append(names, r.propertyNames(c, 0)...)
	}
	s, ok := util.Suggest(name, names)
	return nil, newIssueError(kind, line, fqsen.NewPropertyName(classes[0].FQSEN, name)).withSuggestion(s, ok)
}

func (r *Resolver) magicProperty(classes []*codebase.ClassDecl, name string, isWrite bool) (*codebase.PropertyDecl, error) {
	if !r.cfg.IsFeatureEnabled(config.FeatMagicMethods) {
		return nil, nil
	}
	magic := "__get"
	if isWrite {
		magic = "__set"
	}
	for _, c := range classes {
		m, err := r.FindMethod(c, magic)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		p := &codebase.PropertyDecl{Name: name, Flags: ast.ModPublic, DefiningClass: c.FQSEN, Dynamic: true, Location: m.Location}
		if !isWrite {
			p.Type = r.policy.MethodReturnType(r.st, m)
		}
		return p, nil
	}
	return nil, nil
}

func (r *Resolver) findProperty(c *codebase.ClassDecl, name string, depth int) (*codebase.PropertyDecl, error) {
	if depth > types.MaxExpansionDepth {
		return nil, errors.Wrapf(types.ErrRecursionDepthExceeded, "looking up property %s::$%s", c.FQSEN, name)
	}
	if p, ok := c.Property(name); ok {
		return p, nil
	}
	for _, tn := range c.Traits {
		if t, ok := r.st.Class(tn); ok {
			p, err := r.findProperty(t, name, depth+1)
			if err != nil {
				return nil, err
			}
			if p != nil {
				imported := *p
				imported.DefiningClass = c.FQSEN
				return &imported, nil
			}
		}
	}
	if c.HasParent() {
		if parent, ok := r.st.Class(c.Parent); ok {
			return r.findProperty(parent, name, depth+1)
		}
	}
	return nil, nil
}

func (r *Resolver) propertyNames(c *codebase.ClassDecl, depth int) []string {
	if depth > types.MaxExpansionDepth {
		return nil
	}
	var out []string
	for _, p := range c.Properties() {
		out = append(out, p.Name)
	}
	for _, a := range c.AncestorFQSENs() {
		if decl, ok := r.st.Class(a); ok {
			out = append(out, r.propertyNames(decl, depth+1)...)
		}
	}
	return out
}

// ClassConstant resolves a ClassConstFetch node. `Foo::class` resolves to a synthetic
// constant whose type is the class name literal.
func (r *Resolver) ClassConstant(ctx scope.Context, node *ast.Node) (*codebase.ConstDecl, error) {
	d, ok := node.Data.(ast.ClassConstFetchNode)
	if !ok {
		return nil, errors.Errorf("%s node is not a class constant", node.Type)
	}
	classes, err := r.ClassList(ctx, d.Class)
	if err != nil {
		if ie, ok := AsIssueError(err); ok && ie.Kind == issue.UndeclaredClass && len(ie.Args) > 0 {
			return nil, newIssueError(issue.UndeclaredClassConstant, node.Line, d.Name, ie.Args[0]).withSuggestion(ie.Suggestion, ie.Suggestion != "")
		}
		return nil, err
	}
	if len(classes) == 0 {
		return nil, nil
	}
	if strings.EqualFold(d.Name, "class") {
		name := strings.TrimPrefix(classes[0].FQSEN.String(), `\`)
		return &codebase.ConstDecl{Name: "class", Flags: ast.ModPublic, DefiningClass: classes[0].FQSEN,
			Type: types.Of(types.LiteralString(name, false))}, nil
	}
	for _, c := range classes {
		k, err := r.findConstant(c, d.Name, 0)
		if err != nil {
			return nil, err
		}
		if k == nil {
			continue
		}
		ok, err := r.canAccess(ctx, k.Visibility(), k.DefiningClass)
		if err != nil {
			return nil, err
		}
		if !ok {
			kind := issue.AccessProtectedClassConstant
			if k.Visibility() == codebase.Private {
				kind = issue.AccessPrivateClassConstant
			}
			return k, newIssueError(kind, node.Line, k.FQSEN())
		}
		return k, nil
	}
	var names []string
	for _, k := range classes[0].Constants() {
		names = append(names, k.Name)
	}
	s, found := util.Suggest(d.Name, names)
	return nil, newIssueError(issue.UndeclaredConstant, node.Line, fqsen.NewClassConstName(classes[0].FQSEN, d.Name)).withSuggestion(s, found)
}

func (r *Resolver) findConstant(c *codebase.ClassDecl, name string, depth int) (*codebase.ConstDecl, error) {
	if depth > types.MaxExpansionDepth {
		return nil, errors.Wrapf(types.ErrRecursionDepthExceeded, "looking up constant %s::%s", c.FQSEN, name)
	}
	if k, ok := c.Constant(name); ok {
		return k, nil
	}
	for _, a := range c.AncestorFQSENs() {
		if decl, ok := r.st.Class(a); ok {
			if k, err := r.findConstant(decl, name, depth+1); k != nil || err != nil {
				return k, err
			}
		}
	}
	return nil, nil
}
