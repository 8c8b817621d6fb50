package types

// WithoutArrayShapeField removes key from every top-level array shape atom.
func (u UnionType) WithoutArrayShapeField(key string) UnionType {
	return u.Map(func(t *Type) []*Type {
		if t.kind != KindArrayShape {
			return []*Type{t}
		}
		if _, ok := t.ShapeField(key); !ok {
			return []*Type{t}
		}
		fs := make([]ShapeField, 0, len(t.fields)-1)
		for _, f := range t.fields {
			if f.Key != key {
				fs = append(fs, f)
			}
		}
		return []*Type{ArrayShape(fs, t.nullable)}
	})
}

// WithMergedShapeField adds or overwrites key with field type v in every shape atom.
// Non-shape array atoms are left alone; a union without any array becomes a one-field
// shape.
func (u UnionType) WithMergedShapeField(key string, v UnionType) UnionType {
	return u.withShapeField(key, func(ShapeField, bool) ShapeField {
		return ShapeField{Key: key, Type: v}
	})
}

// WithShapeFieldTransform rewrites field key of every shape atom through fn, which also
// sees whether the field existed. Atoms that are not shapes are kept.
func (u UnionType) WithShapeFieldTransform(key string, fn func(f ShapeField, ok bool) ShapeField) UnionType {
	if !u.HasKind(KindArrayShape) {
		return u
	}
	return u.withShapeField(key, fn)
}

func (u UnionType) withShapeField(key string, fn func(ShapeField, bool) ShapeField) UnionType {
	if !u.HasArrayLike() {
		f := fn(ShapeField{Key: key}, false)
		f.Key = key
		return Of(ArrayShape([]ShapeField{f}, false))
	}
	return u.Map(func(t *Type) []*Type {
		if t.kind != KindArrayShape {
			return []*Type{t}
		}
		old, ok := t.ShapeField(key)
		f := fn(old, ok)
		f.Key = key
		fs := make([]ShapeField, 0, len(t.fields)+1)
		fs = append(fs, t.fields...)
		return []*Type{ArrayShape(append(fs, f), t.nullable)}
	})
}

// ShapeFieldType is the union of the field's types across shape atoms, or empty when
// no shape declares key.
func (u UnionType) ShapeFieldType(key string) UnionType {
	var out UnionType
	for _, t := range u.types {
		switch t.kind {
		case KindArrayShape:
			if f, ok := t.ShapeField(key); ok {
				out = out.Union(f.Type)
			}
		case KindGenericArray:
			out = out.WithType(t.elem)
		}
	}
	return out
}

// ShapeFieldMap merges the fields of every shape atom, or nil if u has none.
func (u UnionType) ShapeFieldMap() map[string]ShapeField {
	var m map[string]ShapeField
	for _, t := range u.types {
		if t.kind != KindArrayShape {
			continue
		}
		if m == nil {
			m = map[string]ShapeField{}
		}
		for _, f := range t.fields {
			if prev, ok := m[f.Key]; ok {
				f.Type = prev.Type.Union(f.Type)
				f.PossiblyUndefined = f.PossiblyUndefined || prev.PossiblyUndefined
			}
			m[f.Key] = f
		}
	}
	return m
}
