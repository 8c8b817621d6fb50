// Package codebase is the symbol table: every class, function and global constant
// declared in the analyzed program and in the builtin tables.
package codebase

import (
	"sort"

	"github.com/xplshn/gpan/pkg/fqsen"
)

// SymbolTable is the read-only view of declarations that resolution needs.
type SymbolTable interface {
	HasClass(name fqsen.ClassName) bool
	Class(name fqsen.ClassName) (*ClassDecl, bool)
	HasFunction(name fqsen.FunctionName) bool
	Function(name fqsen.FunctionName) (*FunctionDecl, bool)
	HasGlobalConstant(name fqsen.GlobalConstName) bool
	GlobalConstant(name fqsen.GlobalConstName) (*GlobalConstDecl, bool)
	// AncestorFQSENs lists a class's direct parent, interfaces and traits.
	AncestorFQSENs(name fqsen.ClassName) []fqsen.ClassName
	ClassNames() []fqsen.ClassName
}

// CodeBase is the in-memory SymbolTable. Declarations are added during the collection
// pass; during analysis it is only read, so it needs no locking.
type CodeBase struct {
	classes   map[string]*ClassDecl
	functions map[string]*FunctionDecl
	constants map[string]*GlobalConstDecl
}

func New() *CodeBase {
	return &CodeBase{
		classes:   map[string]*ClassDecl{},
		functions: map[string]*FunctionDecl{},
		constants: map[string]*GlobalConstDecl{},
	}
}

// AddClass registers c and reports false if a class of that name already exists,
// in which case the first declaration is kept.
func (cb *CodeBase) AddClass(c *ClassDecl) bool {
	key := c.FQSEN.Key()
	if _, dup := cb.classes[key]; dup {
		return false
	}
	cb.classes[key] = c
	return true
}

func (cb *CodeBase) AddFunction(f *FunctionDecl) bool {
	key := f.FQSEN.Key()
	if _, dup := cb.functions[key]; dup {
		return false
	}
	cb.functions[key] = f
	return true
}

func (cb *CodeBase) AddGlobalConstant(k *GlobalConstDecl) bool {
	key := k.FQSEN.Key()
	if _, dup := cb.constants[key]; dup {
		return false
	}
	cb.constants[key] = k
	return true
}

func (cb *CodeBase) HasClass(name fqsen.ClassName) bool {
	_, ok := cb.classes[name.Key()]
	return ok
}

func (cb *CodeBase) Class(name fqsen.ClassName) (*ClassDecl, bool) {
	c, ok := cb.classes[name.Key()]
	return c, ok
}

func (cb *CodeBase) HasFunction(name fqsen.FunctionName) bool {
	_, ok := cb.functions[name.Key()]
	return ok
}

func (cb *CodeBase) Function(name fqsen.FunctionName) (*FunctionDecl, bool) {
	f, ok := cb.functions[name.Key()]
	return f, ok
}

func (cb *CodeBase) HasGlobalConstant(name fqsen.GlobalConstName) bool {
	_, ok := cb.constants[name.Key()]
	return ok
}

func (cb *CodeBase) GlobalConstant(name fqsen.GlobalConstName) (*GlobalConstDecl, bool) {
	k, ok := cb.constants[name.Key()]
	return k, ok
}

func (cb *CodeBase) AncestorFQSENs(name fqsen.ClassName) []fqsen.ClassName {
	if c, ok := cb.Class(name); ok {
		return c.AncestorFQSENs()
	}
	return nil
}

// ClassNames returns every declared class name, sorted.
func (cb *CodeBase) ClassNames() []fqsen.ClassName {
	out := make([]fqsen.ClassName, 0, len(cb.classes))
	for _, c := range cb.classes {
		out = append(out, c.FQSEN)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Classes returns every declaration, sorted by name.
func (cb *CodeBase) Classes() []*ClassDecl {
	out := make([]*ClassDecl, 0, len(cb.classes))
	for _, c := range cb.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQSEN.Key() < out[j].FQSEN.Key() })
	return out
}

func (cb *CodeBase) FunctionNames() []fqsen.FunctionName {
	out := make([]fqsen.FunctionName, 0, len(cb.functions))
	for _, f := range cb.functions {
		out = append(out, f.FQSEN)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Stats counts the declarations, builtins included.
func (cb *CodeBase) Stats() (classes, functions, constants int) {
	return len(cb.classes), len(cb.functions), len(cb.constants)
}
