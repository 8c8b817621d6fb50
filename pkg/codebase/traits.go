package codebase

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"

	"github.com/xplshn/gpan/pkg/fqsen"
)

type TraitRuleKind int

const (
	TraitAliasRule TraitRuleKind = iota
	TraitPrecedenceRule
)

// TraitRule is one adaptation written in a trait-use block. Trait is zero for an
// alias that does not name its trait. Alias is empty for a visibility-only change.
type TraitRule struct {
	Kind      TraitRuleKind
	Trait     fqsen.ClassName
	Method    string
	Alias     string
	Flags     int
	InsteadOf []fqsen.ClassName
	Line      int
}

// AliasMethod is one `Trait::method as alias` rule.
type AliasMethod struct {
	Original string
	Flags    int
	Line     int
}

// TraitAdaptations is how one trait's methods enter a using class: which are
// renamed and which are hidden.
type TraitAdaptations struct {
	Trait fqsen.ClassName
	// AliasMethods maps the lowercased alias to its source method.
	AliasMethods map[string]AliasMethod
	// HiddenMethods holds lowercased names that the class does not receive.
	HiddenMethods *set.Set[string]
}

func NewTraitAdaptations(trait fqsen.ClassName) *TraitAdaptations {
	return &TraitAdaptations{
		Trait:         trait,
		AliasMethods:  map[string]AliasMethod{},
		HiddenMethods: set.New[string](0),
	}
}

func (t *TraitAdaptations) AddAlias(alias string, m AliasMethod) {
	t.AliasMethods[strings.ToLower(alias)] = m
}

func (t *TraitAdaptations) Hide(method string) { t.HiddenMethods.Insert(strings.ToLower(method)) }

func (t *TraitAdaptations) IsHidden(method string) bool {
	return t.HiddenMethods.Contains(strings.ToLower(method))
}

// Alias looks up an alias by name.
func (t *TraitAdaptations) Alias(name string) (AliasMethod, bool) {
	m, ok := t.AliasMethods[strings.ToLower(name)]
	return m, ok
}

// Aliases returns the lowercased alias names in sorted order.
func (t *TraitAdaptations) Aliases() []string {
	out := make([]string, 0, len(t.AliasMethods))
	for a := range t.AliasMethods {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
