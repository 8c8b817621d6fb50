package codebase

import "github.com/xplshn/gpan/pkg/types"

// ReturnTypePolicy decides which declared return type a function-like is checked
// against when both a real type and a @return type exist.
type ReturnTypePolicy struct {
	// TrustTraitRealReturn makes trait methods use the real type whenever one is
	// declared, ignoring @return.
	TrustTraitRealReturn bool
	Hierarchy            types.Hierarchy
}

// EffectiveReturnType picks the return type for sig. fromTrait tells whether the
// function-like is a method declared in a trait.
//
// A @return type is used when there is no real type, or when it is castable to the
// real type (it is then the more precise of the two). Otherwise the real type wins.
// With neither, the result is the empty (unknown) type.
func (p ReturnTypePolicy) EffectiveReturnType(sig *Signature, fromTrait bool) types.UnionType {
	declared, doc := sig.RealReturnType, sig.PHPDocReturnType
	switch {
	case declared.IsEmpty():
		return doc
	case doc.IsEmpty():
		return declared
	case fromTrait && p.TrustTraitRealReturn:
		return declared
	}
	if p.Hierarchy != nil {
		if ok, err := doc.CanCastToUnionTypeExpanded(declared, p.Hierarchy, types.CastOptions{}); err == nil && ok {
			return doc
		}
		return declared
	}
	if doc.CanCastToUnionType(declared) {
		return doc
	}
	return declared
}

// MethodReturnType applies the policy to a method. Methods imported from a trait and
// methods read straight off a trait declaration are trait methods.
func (p ReturnTypePolicy) MethodReturnType(st SymbolTable, m *MethodDecl) types.UnionType {
	fromTrait := m.IsFromTrait()
	if c, ok := st.Class(m.DefiningClass); ok && !fromTrait {
		fromTrait = c.IsTrait()
	}
	return p.EffectiveReturnType(&m.Signature, fromTrait)
}
