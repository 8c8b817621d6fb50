// Package scope holds the flow-sensitive state of analysis: variables, their inferred
// types, and the lexical Context a statement is analyzed in. Every value here is
// immutable once built; updates return new values that share structure with the old.
package scope

import (
	"sort"

	"github.com/xplshn/gpan/pkg/types"
)

type VariableFlags uint8

const (
	IsReference VariableFlags = 1 << iota
	FromPHPDoc
	PossiblyUndefined
)

// Variable is a named binding. Variables are never mutated once in a Scope; narrowing
// rebinds a clone.
type Variable struct {
	Name  string
	Type  types.UnionType
	Flags VariableFlags
}

func NewVariable(name string, t types.UnionType, flags VariableFlags) *Variable {
	return &Variable{Name: name, Type: t, Flags: flags}
}

func (v *Variable) Has(f VariableFlags) bool { return v.Flags&f != 0 }

// WithType returns a clone of v bound to t.
func (v *Variable) WithType(t types.UnionType) *Variable {
	c := *v
	c.Type = t
	return &c
}

func (v *Variable) WithFlags(f VariableFlags) *Variable {
	c := *v
	c.Flags = f
	return &c
}

// maxLayers is how many single-variable overlays a Scope stacks before flattening.
const maxLayers = 16

// Scope maps variable names to variables. Writes stack an overlay on the previous
// scope instead of copying it; lookups walk the overlays. A nil entry in an overlay
// marks the name as unset.
type Scope struct {
	base  *Scope
	vars  map[string]*Variable
	depth int
}

// New returns a scope holding vars.
func New(vars ...*Variable) *Scope {
	s := &Scope{vars: make(map[string]*Variable, len(vars))}
	for _, v := range vars {
		s.vars[v.Name] = v
	}
	return s
}

func (s *Scope) Variable(name string) (*Variable, bool) {
	for l := s; l != nil; l = l.base {
		if v, ok := l.vars[name]; ok {
			return v, v != nil
		}
	}
	return nil, false
}

func (s *Scope) Has(name string) bool {
	_, ok := s.Variable(name)
	return ok
}

// WithVariable binds v, replacing any variable of the same name.
func (s *Scope) WithVariable(v *Variable) *Scope { return s.overlay(v.Name, v) }

// WithoutVariable unbinds name. Unbinding an absent name returns s.
func (s *Scope) WithoutVariable(name string) *Scope {
	if !s.Has(name) {
		return s
	}
	return s.overlay(name, nil)
}

func (s *Scope) overlay(name string, v *Variable) *Scope {
	if s == nil {
		s = New()
	}
	n := &Scope{base: s, vars: map[string]*Variable{name: v}, depth: s.depth + 1}
	if n.depth > maxLayers {
		return New(n.Variables()...)
	}
	return n
}

// Variables returns every bound variable sorted by name.
func (s *Scope) Variables() []*Variable {
	seen := map[string]*Variable{}
	for l := s; l != nil; l = l.base {
		for name, v := range l.vars {
			if _, ok := seen[name]; !ok {
				seen[name] = v
			}
		}
	}
	out := make([]*Variable, 0, len(seen))
	for _, v := range seen {
		if v != nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the bound variable names, sorted.
func (s *Scope) Names() []string {
	vars := s.Variables()
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return names
}

// MergeScopes joins the scopes of branches that all started from base. A variable
// whose types disagree gets the union of them; one that some branch lacks becomes
// possibly undefined. An unknown (empty) type in any branch keeps the result unknown.
// With no branches, base is returned.
func MergeScopes(base *Scope, branches ...*Scope) *Scope {
	switch len(branches) {
	case 0:
		return base
	case 1:
		return branches[0]
	}
	names := map[string]bool{}
	for _, b := range branches {
		for _, v := range b.Variables() {
			names[v.Name] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	merged := New()
	for _, name := range sorted {
		var (
			typ     types.UnionType
			flags   VariableFlags
			unknown bool
			missing bool
			first   *Variable
		)
		for _, b := range branches {
			v, ok := b.Variable(name)
			if !ok {
				missing = true
				continue
			}
			if first == nil {
				first = v
			}
			if v.Type.IsEmpty() {
				unknown = true
			}
			typ = typ.Union(v.Type)
			flags |= v.Flags
		}
		if unknown {
			typ = types.Empty()
		}
		if missing {
			flags |= PossiblyUndefined
		}
		merged.vars[name] = &Variable{Name: first.Name, Type: typ, Flags: flags}
	}
	return merged
}
