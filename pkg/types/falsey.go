package types

// ContainsFalsey reports whether some value of u is falsey.
func (u UnionType) ContainsFalsey() bool {
	for _, t := range u.types {
		if t.IsPossiblyFalsey() {
			return true
		}
	}
	return false
}

// ContainsTruthy reports whether some value of u is truthy.
func (u UnionType) ContainsTruthy() bool {
	for _, t := range u.types {
		if t.IsPossiblyTruthy() {
			return true
		}
	}
	return false
}

// NonFalseyClone is the type of u once it is known to be truthy. Always-falsey atoms
// are dropped, bool narrows to true, and nullability is removed.
func (u UnionType) NonFalseyClone() UnionType {
	if u.IsEmpty() {
		return u
	}
	var ts []*Type
	for _, t := range u.types {
		if t.IsAlwaysFalsey() {
			continue
		}
		switch t.kind {
		case KindBool:
			ts = append(ts, True(false))
		case KindMixed:
			ts = append(ts, NonNullMixed())
		default:
			ts = append(ts, t.WithIsNullable(false))
		}
	}
	return Of(ts...)
}

// NonTruthyClone is the type of u once it is known to be falsey. Atoms that cannot be
// falsey are dropped, or replaced by null when they were nullable.
func (u UnionType) NonTruthyClone() UnionType {
	if u.IsEmpty() {
		return u
	}
	var ts []*Type
	for _, t := range u.types {
		if t.IsAlwaysFalsey() {
			ts = append(ts, t)
			continue
		}
		switch t.kind {
		case KindBool:
			ts = append(ts, False(t.nullable))
			continue
		case KindInt, KindFloat, KindString, KindMixed, KindTemplate:
			ts = append(ts, t)
			continue
		case KindArray, KindGenericArray, KindIterable:
			ts = append(ts, EmptyArray(t.nullable))
			continue
		case KindArrayShape:
			if t.IsPossiblyFalsey() {
				ts = append(ts, EmptyArray(t.nullable))
				continue
			}
		}
		if t.nullable {
			ts = append(ts, Null())
		}
	}
	return Of(ts...)
}
