// Package resolve turns AST nodes into the declarations and types they denote. It
// applies namespace and import rules, self/static/parent substitution, member lookup
// through traits and ancestors, visibility, and trait adaptation rules.
//
// A Resolver is read-only: every method is a function of its arguments and the
// symbol table, so one Resolver may serve many goroutines as long as the symbol
// table is not written to meanwhile.
package resolve

import (
	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// Narrower refines a Context by the truth of a condition. Ternaries use it to type
// each branch; package narrow provides the implementation.
type Narrower interface {
	Narrow(ctx scope.Context, cond *ast.Node, positive bool) (scope.Context, error)
}

type Resolver struct {
	st           codebase.SymbolTable
	cfg          *config.Config
	sink         issue.Sink
	superglobals map[string]types.UnionType
	policy       codebase.ReturnTypePolicy
	narrower     Narrower
}

// New builds a Resolver. builtins supplies the superglobal table and may be nil; a nil
// cfg means the defaults and a nil sink discards issues.
func New(st codebase.SymbolTable, cfg *config.Config, builtins *codebase.Builtins, sink issue.Sink) *Resolver {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if sink == nil {
		sink = issue.Discard
	}
	r := &Resolver{st: st, cfg: cfg, sink: sink, superglobals: map[string]types.UnionType{}}
	if builtins != nil {
		r.superglobals = builtins.Superglobals
	}
	r.policy = codebase.ReturnTypePolicy{
		TrustTraitRealReturn: cfg.IsFeatureEnabled(config.FeatTraitRealReturn),
		Hierarchy:            st,
	}
	return r
}

func (r *Resolver) SymbolTable() codebase.SymbolTable { return r.st }
func (r *Resolver) Config() *config.Config            { return r.cfg }
func (r *Resolver) Sink() issue.Sink                  { return r.sink }
func (r *Resolver) Policy() codebase.ReturnTypePolicy { return r.policy }
func (r *Resolver) CastOptions() types.CastOptions    { return r.cfg.CastOptions() }

// WithSink returns a copy of r that reports to sink.
func (r *Resolver) WithSink(sink issue.Sink) *Resolver {
	c := *r
	c.sink = sink
	return &c
}

// Quiet returns a copy of r that drops every issue, for speculative evaluation.
func (r *Resolver) Quiet() *Resolver { return r.WithSink(issue.Discard) }

// WithNarrower returns a copy of r that narrows ternary branches with n.
func (r *Resolver) WithNarrower(n Narrower) *Resolver {
	c := *r
	c.narrower = n
	return &c
}

// Report sends a recoverable resolution failure to the sink and swallows it. Any
// other error is returned unchanged for the caller to propagate.
func (r *Resolver) Report(ctx scope.Context, err error) error {
	if err == nil {
		return nil
	}
	if ie, ok := AsIssueError(err); ok {
		ie.Emit(r.sink, ctx)
		return nil
	}
	return err
}

// Emit reports an issue at ctx's file.
func (r *Resolver) Emit(ctx scope.Context, kind issue.Kind, line int, args ...interface{}) {
	if line == 0 {
		line = ctx.Line()
	}
	r.sink.Emit(kind, ctx.File(), line, args...)
}

// IsHardError reports whether err must abort the file rather than become an issue.
func IsHardError(err error) bool {
	if err == nil {
		return false
	}
	_, soft := AsIssueError(err)
	return !soft
}
