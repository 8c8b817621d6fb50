package resolve

import (
	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
)

// IssueError is a recoverable resolution failure: an unresolved or inaccessible
// symbol, or an ambiguous trait rule. Callers usually Report it and continue with a
// fallback type.
type IssueError struct {
	Kind       issue.Kind
	Line       int
	Args       []interface{}
	Suggestion string
}

func newIssueError(kind issue.Kind, line int, args ...interface{}) *IssueError {
	return &IssueError{Kind: kind, Line: line, Args: args}
}

func (e *IssueError) withSuggestion(s string, ok bool) *IssueError {
	if ok {
		e.Suggestion = s
	}
	return e
}

func (e *IssueError) Error() string { return e.Issue("").Message() }

// Issue converts e to an issue located in file.
func (e *IssueError) Issue(file string) issue.Issue {
	args := e.Args
	if e.Suggestion != "" {
		args = append(append([]interface{}(nil), args...), issue.Suggestion(e.Suggestion))
	}
	return issue.New(e.Kind, file, e.Line, args...)
}

// Emit sends e to sink, defaulting its line to ctx's.
func (e *IssueError) Emit(sink issue.Sink, ctx scope.Context) {
	is := e.Issue(ctx.File())
	if is.Line == 0 {
		is.Line = ctx.Line()
	}
	args := make([]interface{}, 0, len(is.Args)+1)
	for _, a := range is.Args {
		args = append(args, a)
	}
	if is.Suggestion != "" {
		args = append(args, issue.Suggestion(is.Suggestion))
	}
	sink.Emit(is.Kind, is.File, is.Line, args...)
}

// AsIssueError unwraps err to an IssueError if it is one.
func AsIssueError(err error) (*IssueError, bool) {
	ie, ok := errors.Cause(err).(*IssueError)
	return ie, ok
}
