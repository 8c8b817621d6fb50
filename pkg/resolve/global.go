package resolve

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
	"github.com/xplshn/gpan/pkg/util"
)

// functionLister is implemented by symbol tables that can enumerate functions.
type functionLister interface {
	FunctionNames() []fqsen.FunctionName
}

// Function resolves the function a Call node (or a bare Name node) names. Calls of
// anything other than a name resolve to nil without error.
func (r *Resolver) Function(ctx scope.Context, node *ast.Node) (*codebase.FunctionDecl, error) {
	nameNode := node
	if d, ok := node.Data.(ast.CallNode); ok {
		nameNode = d.Func
	}
	if nameNode == nil || nameNode.Type != ast.Name {
		return nil, nil
	}
	name := ast.NameText(nameNode)
	candidates := r.functionCandidates(ctx, name)
	for _, fq := range candidates {
		if f, ok := r.st.Function(fq); ok {
			return f, nil
		}
	}
	err := newIssueError(issue.UndeclaredFunction, node.Line, candidates[0])
	if l, ok := r.st.(functionLister); ok {
		var names []string
		for _, f := range l.FunctionNames() {
			names = append(names, f.Name())
		}
		s, found := util.Suggest(candidates[0].Name(), names)
		err.withSuggestion(s, found)
	}
	return nil, err
}

// GlobalConstant resolves a ConstFetch node. true, false and null are not constants
// and resolve to nil.
func (r *Resolver) GlobalConstant(ctx scope.Context, node *ast.Node) (*codebase.GlobalConstDecl, error) {
	d, ok := node.Data.(ast.ConstFetchNode)
	if !ok {
		return nil, errors.Errorf("%s node is not a constant", node.Type)
	}
	name := ast.NameText(d.Name)
	if _, ok := keywordConstant(name); ok {
		return nil, nil
	}
	candidates := r.constantCandidates(ctx, name)
	for _, fq := range candidates {
		if k, ok := r.st.GlobalConstant(fq); ok {
			return k, nil
		}
	}
	return nil, newIssueError(issue.UndeclaredConstant, node.Line, candidates[0])
}

// Variable resolves a Variable node in ctx's scope. $this is the enclosing class
// inside non-static methods; superglobals are always defined. A possibly undefined
// variable is returned together with a PossiblyUndefinedVariable error. Variables
// with a dynamic name resolve to nil without error.
func (r *Resolver) Variable(ctx scope.Context, node *ast.Node) (*scope.Variable, error) {
	name, ok := ast.VariableName(node)
	if !ok {
		return nil, nil
	}
	if name == "this" {
		return r.this(ctx, node.Line)
	}
	if v, ok := ctx.Variable(name); ok {
		if v.Has(scope.PossiblyUndefined) {
			return v, newIssueError(issue.PossiblyUndefinedVariable, node.Line, name)
		}
		return v, nil
	}
	if t, ok := r.superglobals[name]; ok {
		return scope.NewVariable(name, t, 0), nil
	}
	s, found := util.Suggest(name, ctx.Scope().Names())
	return nil, newIssueError(issue.UndeclaredVariable, node.Line, name).withSuggestion("$"+s, found)
}

func (r *Resolver) this(ctx scope.Context, line int) (*scope.Variable, error) {
	if v, ok := ctx.Variable("this"); ok {
		return v, nil
	}
	c, err := r.contextClass(ctx, line, "$this")
	if err != nil {
		if ie, ok := AsIssueError(err); ok && ie.Kind == issue.ContextNotClass {
			return nil, newIssueError(issue.UndeclaredThis, line)
		}
		return nil, err
	}
	if m, ok := ctx.Method(); ok {
		if decl, ok := c.Method(m.Name); ok && decl.IsStatic() {
			return nil, newIssueError(issue.UndeclaredThis, line)
		}
	}
	return scope.NewVariable("this", types.Of(c.AsType()), 0), nil
}

func keywordConstant(name string) (types.UnionType, bool) {
	switch strings.ToLower(name) {
	case "true", `\true`:
		return types.Of(types.True(false)), true
	case "false", `\false`:
		return types.Of(types.False(false)), true
	case "null", `\null`:
		return types.NullUnion(), true
	}
	return types.Empty(), false
}
