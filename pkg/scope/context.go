package scope

import (
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/types"
)

// Imports is the `use` table of one namespace block. Aliases are case-folded for
// classes and functions and kept as written for constants.
type Imports struct {
	classes   map[string]string
	functions map[string]string
	constants map[string]string
}

func NewImports() *Imports {
	return &Imports{classes: map[string]string{}, functions: map[string]string{}, constants: map[string]string{}}
}

func (i *Imports) clone() *Imports {
	c := NewImports()
	if i == nil {
		return c
	}
	for k, v := range i.classes {
		c.classes[k] = v
	}
	for k, v := range i.functions {
		c.functions[k] = v
	}
	for k, v := range i.constants {
		c.constants[k] = v
	}
	return c
}

func (i *Imports) WithClass(alias, fq string) *Imports {
	c := i.clone()
	c.classes[strings.ToLower(alias)] = fq
	return c
}

func (i *Imports) WithFunction(alias, fq string) *Imports {
	c := i.clone()
	c.functions[strings.ToLower(alias)] = fq
	return c
}

func (i *Imports) WithConstant(alias, fq string) *Imports {
	c := i.clone()
	c.constants[alias] = fq
	return c
}

func (i *Imports) Class(alias string) (string, bool) {
	if i == nil {
		return "", false
	}
	fq, ok := i.classes[strings.ToLower(alias)]
	return fq, ok
}

func (i *Imports) Function(alias string) (string, bool) {
	if i == nil {
		return "", false
	}
	fq, ok := i.functions[strings.ToLower(alias)]
	return fq, ok
}

func (i *Imports) Constant(alias string) (string, bool) {
	if i == nil {
		return "", false
	}
	fq, ok := i.constants[alias]
	return fq, ok
}

// ClassListEntry is a memoized class-name resolution.
type ClassListEntry struct {
	Type    types.UnionType
	Classes []fqsen.ClassName
}

type classCache map[*ast.Node]ClassListEntry

// Context is where a statement is analyzed: file, line, namespace and imports, the
// enclosing class and function, and the variable scope. It is a value; the With
// methods return modified copies.
type Context struct {
	file      string
	line      int
	namespace string
	imports   *Imports
	class     fqsen.ClassName
	function  fqsen.FunctionLike
	scope     *Scope
	cache     classCache
}

// NewContext starts a file in the global namespace with an empty scope.
func NewContext(file string) Context {
	return Context{file: file, namespace: `\`, imports: NewImports(), scope: New(), cache: classCache{}}
}

func (c Context) File() string                 { return c.file }
func (c Context) Line() int                    { return c.line }
func (c Context) Namespace() string            { return c.namespace }
func (c Context) Imports() *Imports            { return c.imports }
func (c Context) Scope() *Scope                { return c.scope }
func (c Context) Function() fqsen.FunctionLike { return c.function }
func (c Context) IsInFunctionLike() bool       { return c.function != nil }

// Class returns the enclosing class, if any.
func (c Context) Class() (fqsen.ClassName, bool) { return c.class, !c.class.IsZero() }
func (c Context) IsInClass() bool                { return !c.class.IsZero() }

// Method returns the enclosing method, if the function-like is one.
func (c Context) Method() (fqsen.MethodName, bool) {
	m, ok := c.function.(fqsen.MethodName)
	return m, ok
}

func (c Context) WithLine(line int) Context {
	c.line = line
	return c
}

func (c Context) WithFile(file string) Context {
	c.file = file
	c.cache = classCache{}
	return c
}

// WithNamespace enters a namespace block, which starts with no imports.
func (c Context) WithNamespace(ns string) Context {
	c.namespace = fqsen.CanonicalNamespace(ns)
	c.imports = NewImports()
	c.cache = classCache{}
	return c
}

func (c Context) WithImports(imports *Imports) Context {
	c.imports = imports
	c.cache = classCache{}
	return c
}

func (c Context) WithClass(class fqsen.ClassName) Context {
	c.class = class
	c.cache = classCache{}
	return c
}

func (c Context) WithoutClass() Context { return c.WithClass(fqsen.ClassName{}) }

func (c Context) WithFunction(fn fqsen.FunctionLike) Context {
	c.function = fn
	c.cache = classCache{}
	return c
}

func (c Context) WithScope(s *Scope) Context {
	c.scope = s
	return c
}

func (c Context) WithVariable(v *Variable) Context { return c.WithScope(c.scope.WithVariable(v)) }

func (c Context) WithoutVariable(name string) Context {
	return c.WithScope(c.scope.WithoutVariable(name))
}

// Variable looks name up in the current scope.
func (c Context) Variable(name string) (*Variable, bool) { return c.scope.Variable(name) }

// CachedClassList returns a memoized class-name resolution of node.
func (c Context) CachedClassList(node *ast.Node) (ClassListEntry, bool) {
	if c.cache == nil {
		return ClassListEntry{}, false
	}
	e, ok := c.cache[node]
	return e, ok
}

// CacheClassList memoizes the class-name resolution of node for every Context that
// shares this one's namespace, imports and class.
func (c Context) CacheClassList(node *ast.Node, e ClassListEntry) {
	if c.cache != nil {
		c.cache[node] = e
	}
}

// Merge joins branch contexts that all started from base into base's successor.
func Merge(base Context, branches ...Context) Context {
	scopes := make([]*Scope, len(branches))
	for i, b := range branches {
		scopes[i] = b.scope
	}
	return base.WithScope(MergeScopes(base.scope, scopes...))
}
