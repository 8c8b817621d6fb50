package types

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// UnionType is an immutable set of atoms: "any of these". The zero value is the empty
// union, meaning unknown or unconstrained. Atoms are kept sorted by key so equal sets
// have equal slices.
type UnionType struct {
	types []*Type
}

// Empty returns the distinguished empty union.
func Empty() UnionType { return UnionType{} }

// Of builds a normalized union from atoms in any order.
func Of(ts ...*Type) UnionType {
	if len(ts) == 0 {
		return UnionType{}
	}
	seen := set.New[*Type](len(ts))
	out := make([]*Type, 0, len(ts))
	for _, t := range ts {
		if t == nil || !seen.Insert(t) {
			continue
		}
		out = append(out, t)
	}
	return newUnion(out)
}

// newUnion takes ownership of ts, which must be free of duplicates.
func newUnion(ts []*Type) UnionType {
	ts = normalizeBools(ts)
	sort.Slice(ts, func(i, j int) bool { return ts[i].key < ts[j].key })
	return UnionType{types: ts}
}

// normalizeBools collapses true+false, or either alongside bool, into one bool atom.
func normalizeBools(ts []*Type) []*Type {
	var hasTrue, hasFalse, hasBool, nullable bool
	for _, t := range ts {
		switch t.kind {
		case KindTrue:
			hasTrue = true
		case KindFalse:
			hasFalse = true
		case KindBool:
			hasBool = true
		default:
			continue
		}
		nullable = nullable || t.nullable
	}
	if !(hasTrue && hasFalse) && !(hasBool && (hasTrue || hasFalse)) {
		return ts
	}
	out := ts[:0]
	for _, t := range ts {
		if !IsBoolKind(t.kind) {
			out = append(out, t)
		}
	}
	return append(out, Bool(nullable))
}

func IntUnion() UnionType    { return Of(Int(false)) }
func FloatUnion() UnionType  { return Of(Float(false)) }
func StringUnion() UnionType { return Of(String(false)) }
func BoolUnion() UnionType   { return Of(Bool(false)) }
func NullUnion() UnionType   { return Of(Null()) }
func MixedUnion() UnionType  { return Of(Mixed()) }
func VoidUnion() UnionType   { return Of(Void()) }
func ArrayUnion() UnionType  { return Of(Array(false)) }
func ObjectUnion() UnionType { return Of(Object(false)) }

func (u UnionType) Types() []*Type { return u.types }
func (u UnionType) TypeCount() int { return len(u.types) }
func (u UnionType) IsEmpty() bool  { return len(u.types) == 0 }

// HasType reports membership by atom identity.
func (u UnionType) HasType(t *Type) bool {
	for _, x := range u.types {
		if x == t {
			return true
		}
	}
	return false
}

// Equal is order-independent set equality.
func (u UnionType) Equal(o UnionType) bool {
	if len(u.types) != len(o.types) {
		return false
	}
	for i := range u.types {
		if u.types[i] != o.types[i] {
			return false
		}
	}
	return true
}

// WithType adds an atom. Adding a member returns u unchanged.
func (u UnionType) WithType(t *Type) UnionType {
	if t == nil || u.HasType(t) {
		return u
	}
	ts := make([]*Type, len(u.types), len(u.types)+1)
	copy(ts, u.types)
	return newUnion(append(ts, t))
}

// WithoutType removes an atom. Removing a non-member returns u unchanged.
func (u UnionType) WithoutType(t *Type) UnionType {
	if !u.HasType(t) {
		return u
	}
	ts := make([]*Type, 0, len(u.types)-1)
	for _, x := range u.types {
		if x != t {
			ts = append(ts, x)
		}
	}
	return UnionType{types: ts}
}

// Union returns the set union.
func (u UnionType) Union(o UnionType) UnionType {
	if o.IsEmpty() {
		return u
	}
	if u.IsEmpty() {
		return o
	}
	return Of(append(append([]*Type{}, u.types...), o.types...)...)
}

// UnionAll folds Union over us.
func UnionAll(us ...UnionType) UnionType {
	var out UnionType
	for _, u := range us {
		out = out.Union(u)
	}
	return out
}

// WithoutUnionType removes every atom of o.
func (u UnionType) WithoutUnionType(o UnionType) UnionType {
	return u.Filter(func(t *Type) bool { return !o.HasType(t) })
}

// Filter keeps the atoms for which keep returns true.
func (u UnionType) Filter(keep func(*Type) bool) UnionType {
	ts := make([]*Type, 0, len(u.types))
	for _, t := range u.types {
		if keep(t) {
			ts = append(ts, t)
		}
	}
	if len(ts) == len(u.types) {
		return u
	}
	return UnionType{types: ts}
}

// Map replaces every atom by the atoms returned for it.
func (u UnionType) Map(fn func(*Type) []*Type) UnionType {
	var ts []*Type
	for _, t := range u.types {
		ts = append(ts, fn(t)...)
	}
	return Of(ts...)
}

// Intersect keeps the atoms of u that can cast to o.
func (u UnionType) Intersect(o UnionType) UnionType {
	if o.IsEmpty() {
		return u
	}
	return u.Filter(func(t *Type) bool {
		for _, x := range o.types {
			if t == x || t.CanCastToType(x, CastOptions{}) {
				return true
			}
		}
		return false
	})
}

func (u UnionType) HasKind(k Kind) bool {
	for _, t := range u.types {
		if t.kind == k {
			return true
		}
	}
	return false
}

// IsNull reports a union made only of null.
func (u UnionType) IsNull() bool { return len(u.types) == 1 && u.types[0].kind == KindNull }

func (u UnionType) HasMixed() bool    { return u.HasKind(KindMixed) }
func (u UnionType) HasNullType() bool { return u.HasKind(KindNull) }

// ContainsNullable reports that null is a possible value.
func (u UnionType) ContainsNullable() bool {
	for _, t := range u.types {
		if t.nullable {
			return true
		}
	}
	return false
}

// HasArrayLike reports any array kind.
func (u UnionType) HasArrayLike() bool {
	for _, t := range u.types {
		if IsArrayLikeKind(t.kind) {
			return true
		}
	}
	return false
}

// HasObjectTypes reports any object kind.
func (u UnionType) HasObjectTypes() bool {
	for _, t := range u.types {
		if IsObjectKind(t.kind) {
			return true
		}
	}
	return false
}

// IsExclusivelyKind reports a non-empty union whose atoms all satisfy pred.
func (u UnionType) IsExclusively(pred func(Kind) bool) bool {
	if u.IsEmpty() {
		return false
	}
	for _, t := range u.types {
		if !pred(t.kind) {
			return false
		}
	}
	return true
}

// ClassTypes returns the named-class atoms.
func (u UnionType) ClassTypes() []*Type {
	var out []*Type
	for _, t := range u.types {
		if t.kind == KindClass {
			out = append(out, t)
		}
	}
	return out
}

// SingleLiteral returns the only atom if u is exactly one literal.
func (u UnionType) SingleLiteral() (*Type, bool) {
	if len(u.types) == 1 && IsLiteralKind(u.types[0].kind) && !u.types[0].nullable {
		return u.types[0], true
	}
	return nil, false
}

// NonNullableClone demotes every atom and folds a standalone null atom away.
func (u UnionType) NonNullableClone() UnionType {
	if !u.ContainsNullable() {
		return u
	}
	var ts []*Type
	for _, t := range u.types {
		if t.kind == KindNull {
			continue
		}
		ts = append(ts, t.WithIsNullable(false))
	}
	return Of(ts...)
}

// NullableClone promotes every atom to nullable.
func (u UnionType) NullableClone() UnionType {
	if u.IsEmpty() {
		return u
	}
	var ts []*Type
	for _, t := range u.types {
		ts = append(ts, t.WithIsNullable(true))
	}
	return Of(ts...)
}

// NonLiteralClone projects literal atoms to their base kinds.
func (u UnionType) NonLiteralClone() UnionType {
	return u.Map(func(t *Type) []*Type { return []*Type{t.NonLiteral()} })
}

// WithoutTemplateArgs erases class template arguments.
func (u UnionType) WithoutTemplateArgs() UnionType {
	return u.Map(func(t *Type) []*Type { return []*Type{t.WithoutTemplateArgs()} })
}

// GenericArrayElementType is the union of what iterating u yields, or empty if unknown.
func (u UnionType) GenericArrayElementType() UnionType {
	var ts []*Type
	for _, t := range u.types {
		switch t.kind {
		case KindGenericArray:
			ts = append(ts, t.elem)
		case KindArrayShape:
			for _, f := range t.fields {
				ts = append(ts, f.Type.types...)
			}
		case KindArray, KindIterable, KindMixed:
			return Empty()
		}
	}
	return Of(ts...)
}

// ElementsAsGenericArrays wraps every atom as an array of it.
func (u UnionType) ElementsAsGenericArrays(key KeyKind) UnionType {
	if u.IsEmpty() {
		return ArrayUnion()
	}
	return u.Map(func(t *Type) []*Type { return []*Type{GenericArray(t, key, false)} })
}

// ReplaceSelf substitutes self/static atoms with the given class atom.
func (u UnionType) ReplaceSelf(class *Type) UnionType {
	if class == nil {
		return u
	}
	return u.Map(func(t *Type) []*Type {
		if t.kind == KindSelf || t.kind == KindStatic {
			return []*Type{class.WithIsNullable(t.nullable)}
		}
		return []*Type{t}
	})
}

// WithTemplateParameterTypeMap substitutes template atoms, including inside arrays,
// shapes and class arguments. Unmapped templates are kept.
func (u UnionType) WithTemplateParameterTypeMap(m map[string]UnionType) UnionType {
	if len(m) == 0 {
		return u
	}
	return u.Map(func(t *Type) []*Type { return t.substitute(m).types })
}

func (t *Type) substitute(m map[string]UnionType) UnionType {
	switch t.kind {
	case KindTemplate:
		r, ok := m[t.template]
		if !ok || r.IsEmpty() {
			return Of(t)
		}
		if t.nullable {
			return r.NullableClone()
		}
		return r
	case KindGenericArray:
		return t.elem.substitute(m).Map(func(e *Type) []*Type {
			return []*Type{GenericArray(e, t.keyKind, t.nullable)}
		})
	case KindArrayShape:
		fs := make([]ShapeField, len(t.fields))
		for i, f := range t.fields {
			f.Type = f.Type.WithTemplateParameterTypeMap(m)
			fs[i] = f
		}
		return Of(ArrayShape(fs, t.nullable))
	case KindClass:
		if len(t.args) == 0 {
			return Of(t)
		}
		args := make([]UnionType, len(t.args))
		for i, a := range t.args {
			args[i] = a.WithTemplateParameterTypeMap(m)
		}
		return Of(Class(t.class, args, t.nullable))
	}
	return Of(t)
}

// String renders the union in type syntax with atoms in sorted order.
func (u UnionType) String() string { return u.render(false) }

func (u UnionType) render(asKey bool) string {
	parts := make([]string, len(u.types))
	for i, t := range u.types {
		if asKey {
			parts[i] = t.key
		} else {
			parts[i] = t.display
		}
	}
	return strings.Join(parts, "|")
}
