package resolve

import (
	"strings"

	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
)

// TraitAdaptations builds one adaptation entry per trait c uses and folds c's alias
// and insteadof rules into them. A rule that cannot be applied is skipped and
// reported in the returned errors.
func (r *Resolver) TraitAdaptations(c *codebase.ClassDecl) ([]*codebase.TraitAdaptations, []*IssueError) {
	entries := make([]*codebase.TraitAdaptations, 0, len(c.Traits))
	byKey := make(map[string]*codebase.TraitAdaptations, len(c.Traits))
	for _, t := range c.Traits {
		if _, dup := byKey[t.Key()]; dup {
			continue
		}
		e := codebase.NewTraitAdaptations(t)
		entries = append(entries, e)
		byKey[t.Key()] = e
	}

	var errs []*IssueError
	for _, rule := range c.TraitRules {
		var err *IssueError
		switch rule.Kind {
		case codebase.TraitAliasRule:
			err = r.applyAlias(c, entries, byKey, rule)
		case codebase.TraitPrecedenceRule:
			err = r.applyPrecedence(c, byKey, rule)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return entries, errs
}

func (r *Resolver) applyAlias(c *codebase.ClassDecl, entries []*codebase.TraitAdaptations, byKey map[string]*codebase.TraitAdaptations, rule codebase.TraitRule) *IssueError {
	alias := rule.Alias
	if alias == "" {
		alias = rule.Method
	}

	var target *codebase.TraitAdaptations
	switch {
	case !rule.Trait.IsZero():
		target = byKey[rule.Trait.Key()]
		if target == nil {
			return newIssueError(issue.UndeclaredTrait, rule.Line, c.FQSEN, rule.Trait)
		}
		if declares, known := r.traitDeclares(rule.Trait, rule.Method); known && !declares {
			return newIssueError(issue.TraitAliasUnknownMethod, rule.Line, alias, fqsen.NewMethodName(rule.Trait, rule.Method))
		}
	case len(entries) == 1:
		target = entries[0]
	default:
		var candidates []*codebase.TraitAdaptations
		var names []string
		for _, e := range entries {
			if declares, _ := r.traitDeclares(e.Trait, rule.Method); declares {
				candidates = append(candidates, e)
				names = append(names, e.Trait.String())
			}
		}
		switch len(candidates) {
		case 0:
			return newIssueError(issue.TraitAliasUnknownMethod, rule.Line, alias, rule.Method)
		case 1:
			target = candidates[0]
		default:
			return newIssueError(issue.AmbiguousTraitAlias, rule.Line, alias, rule.Method, strings.Join(names, ", "))
		}
	}

	target.AddAlias(alias, codebase.AliasMethod{Original: rule.Method, Flags: rule.Flags, Line: rule.Line})
	if strings.EqualFold(alias, rule.Method) {
		target.Hide(rule.Method)
	}
	return nil
}

func (r *Resolver) applyPrecedence(c *codebase.ClassDecl, byKey map[string]*codebase.TraitAdaptations, rule codebase.TraitRule) *IssueError {
	if byKey[rule.Trait.Key()] == nil {
		return newIssueError(issue.UndeclaredTrait, rule.Line, c.FQSEN, rule.Trait)
	}
	if declares, known := r.traitDeclares(rule.Trait, rule.Method); known && !declares {
		return newIssueError(issue.TraitPrecedenceUnknownMethod, rule.Line, rule.Method, rule.Trait)
	}
	for _, loser := range rule.InsteadOf {
		e := byKey[loser.Key()]
		if e == nil {
			return newIssueError(issue.UndeclaredTrait, rule.Line, c.FQSEN, loser)
		}
		e.Hide(rule.Method)
	}
	return nil
}

// traitDeclares reports whether trait has method; known is false when the trait has
// no declaration to check.
func (r *Resolver) traitDeclares(trait fqsen.ClassName, method string) (declares, known bool) {
	decl, ok := r.st.Class(trait)
	if !ok {
		return false, false
	}
	m, err := r.FindMethod(decl, method)
	return m != nil, err == nil
}
