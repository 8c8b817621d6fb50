package codebase

import (
	"sort"
	"strings"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/types"
)

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

// VisibilityOf reads the visibility bits of a modifier set; no bits means public.
func VisibilityOf(flags int) Visibility {
	switch {
	case flags&ast.ModPrivate != 0:
		return Private
	case flags&ast.ModProtected != 0:
		return Protected
	}
	return Public
}

type Location struct {
	File string
	Line int
}

type ParamDecl struct {
	Name     string
	Type     types.UnionType
	Optional bool
	Variadic bool
	ByRef    bool
}

// Signature is what functions and methods share. RealReturnType comes from the
// declaration itself, PHPDocReturnType from a @return tag.
type Signature struct {
	Params           []ParamDecl
	RealReturnType   types.UnionType
	PHPDocReturnType types.UnionType
}

// RequiredParams counts parameters that are neither optional nor variadic.
func (s *Signature) RequiredParams() int {
	n := 0
	for _, p := range s.Params {
		if !p.Optional && !p.Variadic {
			n++
		}
	}
	return n
}

// Param returns the parameter receiving argument i, following a trailing variadic.
func (s *Signature) Param(i int) (ParamDecl, bool) {
	if i < len(s.Params) {
		return s.Params[i], true
	}
	if n := len(s.Params); n > 0 && s.Params[n-1].Variadic {
		return s.Params[n-1], true
	}
	return ParamDecl{}, false
}

type FunctionDecl struct {
	Signature
	FQSEN fqsen.FunctionName
	Location
}

type MethodDecl struct {
	Signature
	Name  string
	Flags int
	// DefiningClass is the class, interface or trait whose body declares the method,
	// or the using class for a method imported from a trait.
	DefiningClass fqsen.ClassName
	// Trait is set on methods imported from a trait.
	Trait fqsen.ClassName
	Location
}

func (m *MethodDecl) FQSEN() fqsen.MethodName { return fqsen.NewMethodName(m.DefiningClass, m.Name) }
func (m *MethodDecl) Visibility() Visibility  { return VisibilityOf(m.Flags) }
func (m *MethodDecl) IsStatic() bool          { return m.Flags&ast.ModStatic != 0 }
func (m *MethodDecl) IsAbstract() bool        { return m.Flags&ast.ModAbstract != 0 }

// ImportedInto returns a copy of m as seen from a class that uses m's trait.
func (m *MethodDecl) ImportedInto(class fqsen.ClassName) *MethodDecl {
	c := *m
	if c.Trait.IsZero() {
		c.Trait = m.DefiningClass
	}
	c.DefiningClass = class
	return &c
}

func (m *MethodDecl) IsFromTrait() bool { return !m.Trait.IsZero() }

// WithName returns a copy of m under an alias, optionally with new visibility bits.
func (m *MethodDecl) WithName(name string, visibility int) *MethodDecl {
	c := *m
	c.Name = name
	if visibility&ast.VisibilityMask != 0 {
		c.Flags = c.Flags&^ast.VisibilityMask | visibility&ast.VisibilityMask
	}
	return &c
}

type PropertyDecl struct {
	Name          string
	Flags         int
	Type          types.UnionType
	DefiningClass fqsen.ClassName
	// Dynamic properties were never declared; they were created by a write.
	Dynamic bool
	Location
}

func (p *PropertyDecl) FQSEN() fqsen.PropertyName {
	return fqsen.NewPropertyName(p.DefiningClass, p.Name)
}
func (p *PropertyDecl) Visibility() Visibility { return VisibilityOf(p.Flags) }
func (p *PropertyDecl) IsStatic() bool         { return p.Flags&ast.ModStatic != 0 }

type ConstDecl struct {
	Name          string
	Flags         int
	Type          types.UnionType
	Value         *ast.Node
	DefiningClass fqsen.ClassName
	Location
}

func (c *ConstDecl) FQSEN() fqsen.ClassConstName {
	return fqsen.NewClassConstName(c.DefiningClass, c.Name)
}
func (c *ConstDecl) Visibility() Visibility { return VisibilityOf(c.Flags) }

type GlobalConstDecl struct {
	FQSEN fqsen.GlobalConstName
	Type  types.UnionType
	Value *ast.Node
	Location
}

// ClassDecl is a class, interface or trait. Method names are case-insensitive;
// property and constant names are not.
type ClassDecl struct {
	FQSEN      fqsen.ClassName
	Kind       ast.ClassKind
	Flags      int
	Parent     fqsen.ClassName
	Interfaces []fqsen.ClassName
	Traits     []fqsen.ClassName
	// TraitRules are the alias and insteadof rules of the class's trait uses, with
	// names already resolved.
	TraitRules []TraitRule
	Templates  []string
	Location

	methods     map[string]*MethodDecl
	properties  map[string]*PropertyDecl
	constants   map[string]*ConstDecl
	adaptations map[string]*TraitAdaptations
}

func NewClassDecl(name fqsen.ClassName, kind ast.ClassKind) *ClassDecl {
	return &ClassDecl{
		FQSEN:      name,
		Kind:       kind,
		methods:    map[string]*MethodDecl{},
		properties: map[string]*PropertyDecl{},
		constants:  map[string]*ConstDecl{},
	}
}

func (c *ClassDecl) IsInterface() bool { return c.Kind == ast.KindInterface }
func (c *ClassDecl) IsTrait() bool     { return c.Kind == ast.KindTrait }
func (c *ClassDecl) IsAbstract() bool  { return c.Flags&ast.ModAbstract != 0 }
func (c *ClassDecl) HasParent() bool   { return !c.Parent.IsZero() }

func (c *ClassDecl) AddMethod(m *MethodDecl) {
	if m.DefiningClass.IsZero() {
		m.DefiningClass = c.FQSEN
	}
	c.methods[strings.ToLower(m.Name)] = m
}

func (c *ClassDecl) HasMethod(name string) bool {
	_, ok := c.methods[strings.ToLower(name)]
	return ok
}

func (c *ClassDecl) Method(name string) (*MethodDecl, bool) {
	m, ok := c.methods[strings.ToLower(name)]
	return m, ok
}

// Methods returns the class's own methods sorted by name.
func (c *ClassDecl) Methods() []*MethodDecl {
	out := make([]*MethodDecl, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (c *ClassDecl) AddProperty(p *PropertyDecl) {
	if p.DefiningClass.IsZero() {
		p.DefiningClass = c.FQSEN
	}
	c.properties[p.Name] = p
}

func (c *ClassDecl) HasProperty(name string) bool {
	_, ok := c.properties[name]
	return ok
}

func (c *ClassDecl) Property(name string) (*PropertyDecl, bool) {
	p, ok := c.properties[name]
	return p, ok
}

func (c *ClassDecl) Properties() []*PropertyDecl {
	out := make([]*PropertyDecl, 0, len(c.properties))
	for _, p := range c.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *ClassDecl) AddConstant(k *ConstDecl) {
	if k.DefiningClass.IsZero() {
		k.DefiningClass = c.FQSEN
	}
	c.constants[k.Name] = k
}

func (c *ClassDecl) HasConstant(name string) bool {
	_, ok := c.constants[name]
	return ok
}

func (c *ClassDecl) Constant(name string) (*ConstDecl, bool) {
	k, ok := c.constants[name]
	return k, ok
}

func (c *ClassDecl) Constants() []*ConstDecl {
	out := make([]*ConstDecl, 0, len(c.constants))
	for _, k := range c.constants {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AncestorFQSENs lists the parent class, then interfaces, then used traits.
func (c *ClassDecl) AncestorFQSENs() []fqsen.ClassName {
	out := make([]fqsen.ClassName, 0, 1+len(c.Interfaces)+len(c.Traits))
	if c.HasParent() {
		out = append(out, c.Parent)
	}
	out = append(out, c.Interfaces...)
	return append(out, c.Traits...)
}

// SetAdaptations records the resolved trait adaptations, keyed by trait.
func (c *ClassDecl) SetAdaptations(entries []*TraitAdaptations) {
	c.adaptations = make(map[string]*TraitAdaptations, len(entries))
	for _, e := range entries {
		c.adaptations[e.Trait.Key()] = e
	}
}

// Adaptations returns the adaptation entry for one of the class's traits.
func (c *ClassDecl) Adaptations(trait fqsen.ClassName) (*TraitAdaptations, bool) {
	e, ok := c.adaptations[trait.Key()]
	return e, ok
}

// AsType is the class atom for the declaration, with its templates as arguments.
func (c *ClassDecl) AsType() *types.Type {
	var args []types.UnionType
	for _, t := range c.Templates {
		args = append(args, types.Of(types.Template(t, false)))
	}
	return types.Class(c.FQSEN, args, false)
}
