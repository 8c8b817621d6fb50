// Package issue defines the diagnostics the analyzer can report and the sinks that
// collect them. Analysis code only picks a Kind and supplies arguments; message text
// is rendered here.
package issue

import (
	"fmt"
	"sort"
	"sync"
)

type Kind int

const (
	UndeclaredClass Kind = iota
	UndeclaredExtendedClass
	UndeclaredInterface
	UndeclaredTrait
	UndeclaredMethod
	UndeclaredStaticMethod
	UndeclaredProperty
	UndeclaredStaticProperty
	UndeclaredClassConstant
	UndeclaredConstant
	UndeclaredFunction
	UndeclaredVariable
	PossiblyUndefinedVariable
	UndeclaredThis
	ContextNotClass
	NonClassMethodCall
	NonClassPropertyAccess
	AccessPrivateMethod
	AccessProtectedMethod
	AccessPrivateProperty
	AccessProtectedProperty
	AccessPrivateClassConstant
	AccessProtectedClassConstant
	StaticCallToNonStatic
	TypeMismatchReturn
	TypeMismatchArgument
	TypeMismatchProperty
	TooFewArguments
	InvalidPHPDocType
	AmbiguousTraitAlias
	TraitAliasUnknownMethod
	TraitPrecedenceUnknownMethod
	RedundantCondition
	ImpossibleCondition
	AnalysisAborted
	KindCount
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityNormal
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityNormal:
		return "normal"
	}
	return "critical"
}

// ParseSeverity accepts low, normal or critical.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "low":
		return SeverityLow, true
	case "normal", "":
		return SeverityNormal, true
	case "critical":
		return SeverityCritical, true
	}
	return SeverityNormal, false
}

// Info describes one issue kind. Template is a fmt format applied to the issue args.
type Info struct {
	Name     string
	Severity Severity
	Template string
}

var kinds = [KindCount]Info{
	UndeclaredClass:              {"UndeclaredClass", SeverityCritical, "Reference to undeclared class %s"},
	UndeclaredExtendedClass:      {"UndeclaredExtendedClass", SeverityCritical, "Class %s extends undeclared class %s"},
	UndeclaredInterface:          {"UndeclaredInterface", SeverityCritical, "Class %s implements undeclared interface %s"},
	UndeclaredTrait:              {"UndeclaredTrait", SeverityCritical, "Class %s uses undeclared trait %s"},
	UndeclaredMethod:             {"UndeclaredMethod", SeverityCritical, "Call to undeclared method %s"},
	UndeclaredStaticMethod:       {"UndeclaredStaticMethod", SeverityCritical, "Static call to undeclared method %s"},
	UndeclaredProperty:           {"UndeclaredProperty", SeverityNormal, "Reference to undeclared property %s"},
	UndeclaredStaticProperty:     {"UndeclaredStaticProperty", SeverityCritical, "Static property %s is undeclared"},
	UndeclaredClassConstant:      {"UndeclaredClassConstant", SeverityCritical, "Reference to constant %s from undeclared class %s"},
	UndeclaredConstant:           {"UndeclaredConstant", SeverityNormal, "Reference to undeclared constant %s"},
	UndeclaredFunction:           {"UndeclaredFunction", SeverityCritical, "Call to undeclared function %s"},
	UndeclaredVariable:           {"UndeclaredVariable", SeverityNormal, "Variable $%s is undeclared"},
	PossiblyUndefinedVariable:    {"PossiblyUndefinedVariable", SeverityLow, "Variable $%s is possibly undefined"},
	UndeclaredThis:               {"UndeclaredThis", SeverityCritical, "Reference to $this outside of a class method"},
	ContextNotClass:              {"ContextNotClass", SeverityCritical, "Cannot access %s when not in a class scope"},
	NonClassMethodCall:           {"NonClassMethodCall", SeverityCritical, "Call to method %s on non-class type %s"},
	NonClassPropertyAccess:       {"NonClassPropertyAccess", SeverityNormal, "Access to property %s on non-class type %s"},
	AccessPrivateMethod:          {"AccessPrivateMethod", SeverityCritical, "Cannot access private method %s"},
	AccessProtectedMethod:        {"AccessProtectedMethod", SeverityCritical, "Cannot access protected method %s"},
	AccessPrivateProperty:        {"AccessPrivateProperty", SeverityCritical, "Cannot access private property %s"},
	AccessProtectedProperty:      {"AccessProtectedProperty", SeverityCritical, "Cannot access protected property %s"},
	AccessPrivateClassConstant:   {"AccessPrivateClassConstant", SeverityCritical, "Cannot access private class constant %s"},
	AccessProtectedClassConstant: {"AccessProtectedClassConstant", SeverityCritical, "Cannot access protected class constant %s"},
	StaticCallToNonStatic:        {"StaticCallToNonStatic", SeverityNormal, "Static call to non-static method %s"},
	TypeMismatchReturn:           {"TypeMismatchReturn", SeverityNormal, "Returning type %s but %s is declared to return %s"},
	TypeMismatchArgument:         {"TypeMismatchArgument", SeverityNormal, "Argument %s ($%s) is %s but %s takes %s"},
	TypeMismatchProperty:         {"TypeMismatchProperty", SeverityNormal, "Assigning %s to property %s of type %s"},
	TooFewArguments:              {"TooFewArguments", SeverityCritical, "Call with %s arg(s) to %s which requires %s arg(s)"},
	InvalidPHPDocType:            {"InvalidPHPDocType", SeverityLow, "Invalid type %q in doc comment: %s"},
	AmbiguousTraitAlias:          {"AmbiguousTraitAlias", SeverityNormal, "Alias %s of method %s is ambiguous among traits %s"},
	TraitAliasUnknownMethod:      {"TraitAliasUnknownMethod", SeverityNormal, "Alias %s refers to method %s which no used trait declares"},
	TraitPrecedenceUnknownMethod: {"TraitPrecedenceUnknownMethod", SeverityNormal, "Precedence rule refers to unknown method %s of trait %s"},
	RedundantCondition:           {"RedundantCondition", SeverityLow, "Redundant condition: %s is always %s"},
	ImpossibleCondition:          {"ImpossibleCondition", SeverityLow, "Impossible condition: %s can never be %s"},
	AnalysisAborted:              {"AnalysisAborted", SeverityCritical, "Analysis of this file was aborted: %s"},
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, KindCount)
	for k, info := range kinds {
		m[info.Name] = Kind(k)
	}
	return m
}()

func (k Kind) Info() Info {
	if k < 0 || k >= KindCount {
		return Info{Name: "Unknown", Severity: SeverityNormal, Template: "%v"}
	}
	return kinds[k]
}

func (k Kind) String() string { return k.Info().Name }

// KindFromName looks an issue kind up by its name, e.g. "UndeclaredMethod".
func KindFromName(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// Suggestion is passed to Emit along with the template args to attach a "did you mean"
// hint. It is not a template argument.
type Suggestion string

type Issue struct {
	Kind       Kind
	File       string
	Line       int
	Args       []string
	Suggestion string
}

func (i Issue) Severity() Severity { return i.Kind.Info().Severity }

// Message renders the issue's template with its args.
func (i Issue) Message() string {
	args := make([]interface{}, len(i.Args))
	for n, a := range i.Args {
		args[n] = a
	}
	msg := fmt.Sprintf(i.Kind.Info().Template, args...)
	if i.Suggestion != "" {
		msg += " (Did you mean " + i.Suggestion + "?)"
	}
	return msg
}

// New builds an Issue, stringifying args and pulling out a Suggestion if one is given.
func New(kind Kind, file string, line int, args ...interface{}) Issue {
	is := Issue{Kind: kind, File: file, Line: line}
	for _, a := range args {
		if s, ok := a.(Suggestion); ok {
			is.Suggestion = string(s)
			continue
		}
		is.Args = append(is.Args, fmt.Sprint(a))
	}
	return is
}

// Sink receives issues. Args are the template arguments in order.
type Sink interface {
	Emit(kind Kind, file string, line int, args ...interface{})
}

// Collector is a Sink that keeps the issues that pass its filter. It is safe for
// concurrent use.
type Collector struct {
	mu     sync.Mutex
	issues []Issue
	seen   map[string]bool
	filter func(Issue) bool
}

// NewCollector returns a Collector. A nil filter keeps everything.
func NewCollector(filter func(Issue) bool) *Collector {
	return &Collector{filter: filter, seen: map[string]bool{}}
}

func (c *Collector) Emit(kind Kind, file string, line int, args ...interface{}) {
	c.Add(New(kind, file, line, args...))
}

// Add records is unless it is filtered out or an identical issue was already recorded.
func (c *Collector) Add(is Issue) {
	if c.filter != nil && !c.filter(is) {
		return
	}
	key := fmt.Sprintf("%d\x00%s\x00%d\x00%q", is.Kind, is.File, is.Line, is.Args)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.issues = append(c.issues, is)
}

// Issues returns the recorded issues ordered by file, line and kind.
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	out := append([]Issue(nil), c.issues...)
	c.mu.Unlock()
	Sort(out)
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

func Sort(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		if x.Kind != y.Kind {
			return x.Kind < y.Kind
		}
		return x.Message() < y.Message()
	})
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Kind, string, int, ...interface{}) {}
