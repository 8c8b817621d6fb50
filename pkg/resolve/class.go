package resolve

import (
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
	"github.com/xplshn/gpan/pkg/util"
)

// ClassUnionType resolves a class reference to class atoms. A Name node is looked up
// by name, with self, static and parent taken from the enclosing class; any other node
// is evaluated and its class atoms (or class-name string literals) are used.
// Results for Name nodes are memoized on ctx.
func (r *Resolver) ClassUnionType(ctx scope.Context, node *ast.Node) (types.UnionType, error) {
	if node == nil {
		return types.Empty(), nil
	}
	if node.Type != ast.Name {
		t, err := r.ExpressionType(ctx, node)
		if err != nil {
			return types.Empty(), err
		}
		return r.classTypesOf(ctx, t), nil
	}
	if e, ok := ctx.CachedClassList(node); ok {
		return e.Type, nil
	}
	t, err := r.classNameType(ctx, node)
	if err != nil {
		return types.Empty(), err
	}
	ctx.CacheClassList(node, scope.ClassListEntry{Type: t, Classes: classNamesOf(t)})
	return t, nil
}

// ClassList resolves a class reference to the declarations of its classes. Class atoms
// with no declaration are skipped.
func (r *Resolver) ClassList(ctx scope.Context, node *ast.Node) ([]*codebase.ClassDecl, error) {
	if e, ok := ctx.CachedClassList(node); ok && node != nil && node.Type == ast.Name {
		return r.declsOf(e.Classes), nil
	}
	t, err := r.ClassUnionType(ctx, node)
	if err != nil {
		return nil, err
	}
	return r.declsOf(classNamesOf(t)), nil
}

func (r *Resolver) classNameType(ctx scope.Context, node *ast.Node) (types.UnionType, error) {
	name := ast.NameText(node)
	switch strings.ToLower(name) {
	case "self", "static":
		c, err := r.contextClass(ctx, node.Line, name)
		if err != nil {
			return types.Empty(), err
		}
		return types.Of(types.Class(c.FQSEN, nil, false)), nil
	case "parent":
		c, err := r.contextClass(ctx, node.Line, name)
		if err != nil {
			return types.Empty(), err
		}
		if !c.HasParent() {
			return types.Empty(), newIssueError(issue.UndeclaredClass, node.Line, name)
		}
		if !r.st.HasClass(c.Parent) {
			return types.Empty(), r.undeclaredClass(node.Line, c.Parent)
		}
		return types.Of(types.Class(c.Parent, nil, false)), nil
	}
	fq := r.FullyQualifiedClassName(ctx, name)
	if !r.st.HasClass(fq) {
		return types.Empty(), r.undeclaredClass(node.Line, fq)
	}
	return types.Of(types.Class(fq, nil, false)), nil
}

// contextClass is the declaration of the enclosing class, for self, static, parent
// and $this.
func (r *Resolver) contextClass(ctx scope.Context, line int, what string) (*codebase.ClassDecl, error) {
	name, ok := ctx.Class()
	if !ok {
		return nil, newIssueError(issue.ContextNotClass, line, what)
	}
	c, ok := r.st.Class(name)
	if !ok {
		return nil, r.undeclaredClass(line, name)
	}
	return c, nil
}

func (r *Resolver) undeclaredClass(line int, name fqsen.ClassName) *IssueError {
	byShort := map[string]string{}
	var shorts []string
	for _, c := range r.st.ClassNames() {
		if _, dup := byShort[c.Name()]; !dup {
			byShort[c.Name()] = c.String()
			shorts = append(shorts, c.Name())
		}
	}
	s, ok := util.Suggest(name.Name(), shorts)
	return newIssueError(issue.UndeclaredClass, line, name).withSuggestion(byShort[s], ok)
}

// classTypesOf keeps what an evaluated expression says about classes: class atoms,
// self and static as the enclosing class, and literal strings naming declared classes.
func (r *Resolver) classTypesOf(ctx scope.Context, t types.UnionType) types.UnionType {
	var out []*types.Type
	for _, a := range t.Types() {
		switch a.Kind() {
		case types.KindClass:
			out = append(out, a.WithIsNullable(false))
		case types.KindSelf, types.KindStatic:
			if c, ok := ctx.Class(); ok {
				out = append(out, types.Class(c, nil, false))
			}
		case types.KindLiteralString:
			if name := fqsen.ParseClassName(a.StringValue()); r.st.HasClass(name) {
				out = append(out, types.Class(name, nil, false))
			}
		}
	}
	return types.Of(out...)
}

func classNamesOf(t types.UnionType) []fqsen.ClassName {
	var out []fqsen.ClassName
	for _, a := range t.ClassTypes() {
		out = append(out, a.ClassName())
	}
	return out
}

func (r *Resolver) declsOf(names []fqsen.ClassName) []*codebase.ClassDecl {
	out := make([]*codebase.ClassDecl, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n.Key()] {
			continue
		}
		seen[n.Key()] = true
		if c, ok := r.st.Class(n); ok {
			out = append(out, c)
		}
	}
	return out
}

// isDescendant reports whether class is ancestor or inherits from it.
func (r *Resolver) isDescendant(class, ancestor fqsen.ClassName) (bool, error) {
	return types.Class(class, nil, false).IsSubclassOf(ancestor, r.st)
}
