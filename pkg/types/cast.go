package types

import (
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/fqsen"
)

// MaxExpansionDepth bounds ancestor expansion; deeper graphs are treated as cyclic.
const MaxExpansionDepth = 12

// ErrRecursionDepthExceeded is returned when ancestor expansion passes MaxExpansionDepth.
var ErrRecursionDepthExceeded = errors.New("recursion depth exceeded while expanding class hierarchy")

// CastOptions tunes the permissive corners of cast compatibility.
type CastOptions struct {
	// NullCasting lets null and nullable atoms cast to anything.
	NullCasting bool
	// ScalarImplicitCast lets any scalar cast to any other scalar.
	ScalarImplicitCast bool
}

// Hierarchy is the slice of the symbol table that expansion needs.
type Hierarchy interface {
	// AncestorFQSENs lists direct parent class, interfaces and used traits.
	AncestorFQSENs(class fqsen.ClassName) []fqsen.ClassName
}

var traversableNames = map[string]bool{
	`\traversable`: true, `\iterator`: true, `\iteratoraggregate`: true,
	`\generator`: true, `\arrayiterator`: true, `\arrayobject`: true,
}

func isTraversableClass(c fqsen.ClassName) bool { return traversableNames[c.Key()] }

// CanCastToType reports whether a value of atom t may be used where target is expected.
func (t *Type) CanCastToType(target *Type, opts CastOptions) bool {
	if t == target {
		return true
	}
	if target.kind == KindMixed {
		return target.nullable || !t.nullable || opts.NullCasting
	}
	if t.kind == KindMixed || t.kind == KindTemplate || target.kind == KindTemplate {
		return true
	}
	if t.kind == KindNull {
		return target.nullable || opts.NullCasting
	}
	if target.kind == KindNull {
		return false
	}
	if t.nullable && !target.nullable && !opts.NullCasting {
		return false
	}
	return t.canCastToNonNullable(target, opts)
}

func (t *Type) canCastToNonNullable(target *Type, opts CastOptions) bool {
	if t.kind == target.kind && t.kind != KindLiteralInt && t.kind != KindLiteralString &&
		t.kind != KindGenericArray && t.kind != KindArrayShape && t.kind != KindClass {
		return true
	}
	if opts.ScalarImplicitCast && IsScalarKind(t.kind) && IsScalarKind(target.kind) {
		return true
	}
	switch t.kind {
	case KindVoid:
		return false
	case KindBool:
		return IsBoolKind(target.kind)
	case KindTrue, KindFalse:
		return target.kind == KindBool
	case KindInt:
		return target.kind == KindFloat || target.kind == KindLiteralInt
	case KindLiteralInt:
		switch target.kind {
		case KindInt, KindFloat:
			return true
		case KindLiteralInt:
			return t.intValue == target.intValue
		}
	case KindString:
		return target.kind == KindLiteralString || target.kind == KindCallable
	case KindLiteralString:
		switch target.kind {
		case KindString, KindCallable:
			return true
		case KindLiteralString:
			return t.strValue == target.strValue
		}
	case KindArray:
		return IsArrayLikeKind(target.kind) || target.kind == KindIterable || target.kind == KindCallable
	case KindGenericArray:
		switch target.kind {
		case KindArray, KindIterable, KindCallable:
			return true
		case KindGenericArray:
			if target.keyKind != KeyMixed && t.keyKind != target.keyKind {
				return false
			}
			return t.elem.CanCastToType(target.elem, opts)
		case KindArrayShape:
			for _, f := range target.fields {
				if !Of(t.elem).CanCastToUnionTypeWith(f.Type, opts) {
					return false
				}
			}
			return true
		}
	case KindArrayShape:
		return t.shapeCanCastTo(target, opts)
	case KindObject:
		return target.kind == KindObject
	case KindClass:
		switch target.kind {
		case KindObject, KindSelf, KindStatic:
			return true
		case KindIterable:
			return isTraversableClass(t.class)
		case KindClass:
			if !t.class.Equal(target.class) {
				return false
			}
			if len(target.args) == 0 || len(t.args) == 0 {
				return true
			}
			for i, a := range target.args {
				if i < len(t.args) && !t.args[i].CanCastToUnionTypeWith(a, opts) {
					return false
				}
			}
			return true
		}
	case KindSelf, KindStatic:
		switch target.kind {
		case KindSelf, KindStatic, KindObject, KindClass:
			return true
		}
	case KindCallable:
		return target.kind == KindCallable
	case KindClosure:
		return target.kind == KindCallable || target.kind == KindObject
	case KindIterable:
		return target.kind == KindIterable
	case KindResource:
		return target.kind == KindResource
	}
	return false
}

func (t *Type) shapeCanCastTo(target *Type, opts CastOptions) bool {
	switch target.kind {
	case KindArray, KindIterable:
		return true
	case KindCallable:
		return len(t.fields) == 2
	case KindGenericArray:
		for _, f := range t.fields {
			if target.keyKind == KeyInt && !isIntKey(f.Key) || target.keyKind == KeyString && isIntKey(f.Key) {
				return false
			}
			if !f.Type.CanCastToUnionTypeWith(Of(target.elem), opts) {
				return false
			}
		}
		return true
	case KindArrayShape:
		for _, tf := range target.fields {
			sf, ok := t.ShapeField(tf.Key)
			if !ok {
				if !tf.PossiblyUndefined {
					return false
				}
				continue
			}
			if sf.PossiblyUndefined && !tf.PossiblyUndefined {
				return false
			}
			if !sf.Type.CanCastToUnionTypeWith(tf.Type, opts) {
				return false
			}
		}
		return true
	}
	return false
}

func isIntKey(k string) bool {
	if k == "" {
		return false
	}
	if k[0] == '-' {
		k = k[1:]
	}
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return false
	}
	for _, c := range k {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CanCastToUnionType is CanCastToUnionTypeWith under default options.
func (u UnionType) CanCastToUnionType(target UnionType) bool {
	return u.CanCastToUnionTypeWith(target, CastOptions{})
}

// CanCastToUnionTypeWith is not symmetric. The empty union casts both ways; a shared
// atom, null under null casting, or mixed on either side short-circuit to true; else
// every atom of u must cast to some atom of target.
func (u UnionType) CanCastToUnionTypeWith(target UnionType, opts CastOptions) bool {
	if u.IsEmpty() || target.IsEmpty() {
		return true
	}
	for _, t := range u.types {
		if target.HasType(t) {
			return true
		}
	}
	if opts.NullCasting && (u.IsNull() || target.IsNull()) {
		return true
	}
	if u.HasMixed() || target.HasMixed() {
		return true
	}
	for _, t := range u.types {
		if !t.canCastToUnion(target, opts) {
			return false
		}
	}
	return true
}

func (t *Type) canCastToUnion(target UnionType, opts CastOptions) bool {
	if target.ContainsNullable() {
		if t.kind == KindNull {
			return true
		}
		// null is covered by the union, the rest of t must fit one of its atoms
		t = t.WithIsNullable(false)
	}
	for _, x := range target.types {
		if t.CanCastToType(x, opts) {
			return true
		}
	}
	return false
}

// CanCastToUnionTypeExpanded lets each class atom of u satisfy target through any of
// its ancestors.
func (u UnionType) CanCastToUnionTypeExpanded(target UnionType, h Hierarchy, opts CastOptions) (bool, error) {
	if u.CanCastToUnionTypeWith(target, opts) {
		return true, nil
	}
	for _, t := range u.types {
		if t.canCastToUnion(target, opts) {
			continue
		}
		if t.kind != KindClass {
			return false, nil
		}
		expanded, err := Of(t).AsExpandedTypes(h)
		if err != nil {
			return false, err
		}
		ok := false
		for _, e := range expanded.types {
			if e.canCastToUnion(target, opts) {
				ok = true
				break
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CanCastToUnionTypeIgnoringTemplates also accepts casts that hold once both sides are
// expanded through their ancestors with template arguments erased, so a generic
// `Some<T>` satisfies `Option<T>`.
func (u UnionType) CanCastToUnionTypeIgnoringTemplates(target UnionType, h Hierarchy, opts CastOptions) (bool, error) {
	if ok, err := u.CanCastToUnionTypeExpanded(target, h, opts); ok || err != nil {
		return ok, err
	}
	return u.WithoutTemplateArgs().CanCastToUnionTypeExpanded(target.WithoutTemplateArgs(), h, opts)
}

// AsExpandedTypes adds every ancestor class, interface and trait of each class atom,
// recursively. Expansion deeper than MaxExpansionDepth fails with
// ErrRecursionDepthExceeded.
func (u UnionType) AsExpandedTypes(h Hierarchy) (UnionType, error) {
	return u.asExpandedTypes(h, 0)
}

func (u UnionType) asExpandedTypes(h Hierarchy, depth int) (UnionType, error) {
	if depth > MaxExpansionDepth {
		return u, errors.Wrapf(ErrRecursionDepthExceeded, "expanding %s", u)
	}
	if h == nil {
		return u, nil
	}
	out := append([]*Type{}, u.types...)
	for _, t := range u.types {
		if t.kind != KindClass {
			continue
		}
		ancestors := h.AncestorFQSENs(t.class)
		if len(ancestors) == 0 {
			continue
		}
		parents := make([]*Type, 0, len(ancestors))
		for _, a := range ancestors {
			parents = append(parents, Class(a, nil, t.nullable))
		}
		expanded, err := Of(parents...).asExpandedTypes(h, depth+1)
		if err != nil {
			return u, err
		}
		out = append(out, expanded.types...)
	}
	return Of(out...), nil
}

// ExpandedClassNames returns the case-folded names of every class atom of u and its
// ancestors.
func (u UnionType) ExpandedClassNames(h Hierarchy) (*set.Set[string], error) {
	expanded, err := u.AsExpandedTypes(h)
	if err != nil {
		return nil, err
	}
	names := set.New[string](expanded.TypeCount())
	for _, t := range expanded.types {
		if t.kind == KindClass {
			names.Insert(t.class.Key())
		}
	}
	return names, nil
}

// IsSubclassOf reports whether class atom t is, or descends from, class c.
func (t *Type) IsSubclassOf(c fqsen.ClassName, h Hierarchy) (bool, error) {
	if t.kind != KindClass {
		return false, nil
	}
	if t.class.Equal(c) {
		return true, nil
	}
	names, err := Of(t).ExpandedClassNames(h)
	if err != nil {
		return false, err
	}
	return names.Contains(strings.ToLower(c.String())), nil
}
