// Package typeChecker drives analysis over a set of files. Collect registers the
// declarations of every file in a CodeBase, Finalize resolves what spans files once
// all of them are known, and Analyze walks each file's statements with a Context,
// inferring variable types and reporting what does not check.
package typeChecker

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/narrow"
	"github.com/xplshn/gpan/pkg/resolve"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// funcState is what the body of the function-like being analyzed is checked against.
type funcState struct {
	name      string
	ret       types.UnionType
	templates []string
}

type TypeChecker struct {
	cb  *codebase.CodeBase
	cfg *config.Config
	r   *resolve.Resolver
	n   *narrow.Narrower

	// hierarchy runs before deferred: parents and traits must be known before any
	// declared type mentioning parent is read.
	hierarchy []func()
	deferred  []func()

	fn      *funcState
	dump    io.Writer
	err     error
	errLine int
}

// NewTypeChecker returns a checker over cb. builtins may be nil; a nil cfg means the
// defaults. One TypeChecker must not be used from several goroutines, but any number
// of them may share cb and sink during Analyze.
func NewTypeChecker(cb *codebase.CodeBase, builtins *codebase.Builtins, cfg *config.Config, sink issue.Sink) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	n := narrow.New(resolve.New(cb, cfg, builtins, sink))
	return &TypeChecker{cb: cb, cfg: cfg, r: n.Resolver(), n: n}
}

func (tc *TypeChecker) Resolver() *resolve.Resolver { return tc.r }

// SetDumpTypes makes Analyze write the final variable types of every function-like
// body it walks to w.
func (tc *TypeChecker) SetDumpTypes(w io.Writer) { tc.dump = w }

func fileStmts(root *ast.Node) []*ast.Node {
	if root == nil {
		return nil
	}
	if d, ok := root.Data.(ast.FileNode); ok {
		return d.Stmts
	}
	return []*ast.Node{root}
}

// walkTop visits top-level statements in order, keeping the namespace and imports of
// ctx current. A braced namespace is a block of its own.
func (tc *TypeChecker) walkTop(ctx scope.Context, stmts []*ast.Node, visit func(scope.Context, *ast.Node) scope.Context) scope.Context {
	for _, stmt := range stmts {
		if tc.err != nil {
			break
		}
		if stmt == nil {
			continue
		}
		switch d := stmt.Data.(type) {
		case ast.NamespaceNode:
			ctx = ctx.WithNamespace(d.Name)
			if d.Stmts != nil {
				tc.walkTop(ctx, d.Stmts, visit)
				ctx = ctx.WithNamespace(`\`)
			}
		case ast.UseNode:
			ctx = withUse(ctx, d)
		default:
			ctx = visit(ctx, stmt)
		}
	}
	return ctx
}

func withUse(ctx scope.Context, d ast.UseNode) scope.Context {
	imports := ctx.Imports()
	for _, item := range d.Items {
		fq := `\` + strings.TrimPrefix(item.Name, `\`)
		alias := item.Alias
		if alias == "" {
			alias = fq[strings.LastIndexByte(fq, '\\')+1:]
		}
		switch d.Kind {
		case ast.UseFunction:
			imports = imports.WithFunction(alias, fq)
		case ast.UseConstant:
			imports = imports.WithConstant(alias, fq)
		default:
			imports = imports.WithClass(alias, fq)
		}
	}
	return ctx.WithImports(imports)
}

// fail records the first error that must abort the current file.
func (tc *TypeChecker) fail(line int, err error) {
	if err != nil && tc.err == nil {
		tc.err, tc.errLine = err, line
	}
}

// report emits a recoverable error and aborts the file on any other.
func (tc *TypeChecker) report(ctx scope.Context, line int, err error) {
	tc.fail(line, tc.r.Report(ctx, err))
}

// ignore drops a recoverable error that was already reported elsewhere.
func (tc *TypeChecker) ignore(line int, err error) {
	if resolve.IsHardError(err) {
		tc.fail(line, err)
	}
}

// exprType evaluates node, reporting what fails to resolve.
func (tc *TypeChecker) exprType(ctx scope.Context, node *ast.Node) types.UnionType {
	if node == nil || tc.err != nil {
		return types.Empty()
	}
	t, err := tc.r.ExpressionType(ctx, node)
	tc.fail(node.Line, err)
	return t
}

// quietType evaluates node without reporting, for nodes already reported on.
func (tc *TypeChecker) quietType(ctx scope.Context, node *ast.Node) types.UnionType {
	if node == nil || tc.err != nil {
		return types.Empty()
	}
	t, err := tc.r.Quiet().ExpressionType(ctx, node)
	tc.fail(node.Line, err)
	return t
}

// canCast reports whether from may be used where to is declared. Failing to expand
// the hierarchy aborts the file and counts as castable.
func (tc *TypeChecker) canCast(from, to types.UnionType, line int) bool {
	ok, err := from.CanCastToUnionTypeIgnoringTemplates(to, tc.cb, tc.r.CastOptions())
	if err != nil {
		tc.fail(line, err)
		return true
	}
	return ok
}

// dumpScope writes the variables of a finished body.
func (tc *TypeChecker) dumpScope(name string, ctx scope.Context) {
	if tc.dump == nil {
		return
	}
	fmt.Fprintf(tc.dump, "%s:\n", name)
	for _, v := range ctx.Scope().Variables() {
		t := v.Type.String()
		if v.Type.IsEmpty() {
			t = "(unknown)"
		}
		if v.Has(scope.PossiblyUndefined) {
			t += " (possibly undefined)"
		}
		fmt.Fprintf(tc.dump, "  $%s: %s\n", v.Name, t)
	}
}
