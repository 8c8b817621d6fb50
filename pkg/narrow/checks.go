package narrow

import (
	"strings"

	"github.com/xplshn/gpan/pkg/types"
)

// TypeCheck is one of the is_* builtins seen as a filter over union types.
type TypeCheck struct {
	Name string
	// Match reports kinds whose values always pass the check.
	Match func(types.Kind) bool
	// Maybe reports kinds whose values may or may not pass it. A passing value keeps
	// its atom.
	Maybe func(types.Kind) bool
	// Type is what a passing value is known to be.
	Type types.UnionType
	// Null is set when null passes the check.
	Null bool
}

// Positive is u restricted to values that pass the check.
func (c *TypeCheck) Positive(u types.UnionType) types.UnionType {
	if u.IsEmpty() {
		return c.Type
	}
	var out []*types.Type
	for _, t := range u.Types() {
		switch {
		case t.Kind() == types.KindNull:
		case c.Match(t.Kind()):
			out = append(out, t.WithIsNullable(false))
		case c.maybe(t.Kind()):
			if isAbstract(t.Kind()) {
				out = append(out, c.Type.NonNullableClone().Types()...)
			} else {
				out = append(out, t.WithIsNullable(false))
			}
		}
	}
	if c.Null && u.ContainsNullable() {
		out = append(out, types.Null())
	}
	if len(out) == 0 {
		return c.Type
	}
	return types.Of(out...)
}

// Negative is u restricted to values that fail the check. Null survives unless the
// check accepts it.
func (c *TypeCheck) Negative(u types.UnionType) types.UnionType {
	if u.IsEmpty() {
		return u
	}
	var out []*types.Type
	for _, t := range u.Types() {
		switch {
		case t.Kind() == types.KindNull:
			if !c.Null {
				out = append(out, t)
			}
		case c.Match(t.Kind()):
		case c.Null:
			out = append(out, t.WithIsNullable(false))
		default:
			out = append(out, t)
		}
	}
	res := types.Of(out...)
	if !c.Null && u.ContainsNullable() && !res.ContainsNullable() {
		res = res.WithType(types.Null())
	}
	return res
}

// Decide reports whether every value of u passes the check, or none does. An empty
// u decides nothing.
func (c *TypeCheck) Decide(u types.UnionType) (always, never bool) {
	if u.IsEmpty() {
		return false, false
	}
	always, never = true, true
	for _, t := range u.Types() {
		k := t.Kind()
		if c.maybe(k) {
			return false, false
		}
		if c.Match(k) || (c.Null && k == types.KindNull) {
			never = false
		} else {
			always = false
		}
		if t.IsNullable() && k != types.KindNull {
			if c.Null {
				never = false
			} else {
				always = false
			}
		}
	}
	return always, never
}

// isAbstract kinds are wider than any check's Type, so a passing value is better
// described by the Type itself.
func isAbstract(k types.Kind) bool {
	switch k {
	case types.KindMixed, types.KindTemplate, types.KindIterable, types.KindCallable:
		return true
	}
	return false
}

func (c *TypeCheck) maybe(k types.Kind) bool {
	if k == types.KindMixed || k == types.KindTemplate {
		return true
	}
	return c.Maybe != nil && c.Maybe(k)
}

// TypeCheckRegistry maps type-check function names to their filters.
type TypeCheckRegistry struct {
	checks map[string]*TypeCheck
}

func kinds(ks ...types.Kind) func(types.Kind) bool {
	return func(k types.Kind) bool {
		for _, x := range ks {
			if x == k {
				return true
			}
		}
		return false
	}
}

func never(types.Kind) bool { return false }

// NewTypeCheckRegistry builds the table of is_* checks.
func NewTypeCheckRegistry() *TypeCheckRegistry {
	isArray := kinds(types.KindArray, types.KindGenericArray, types.KindArrayShape)
	reg := &TypeCheckRegistry{checks: map[string]*TypeCheck{}}
	add := func(c *TypeCheck, aliases ...string) {
		reg.checks[c.Name] = c
		for _, a := range aliases {
			reg.checks[a] = c
		}
	}
	add(&TypeCheck{Name: "is_string", Match: types.IsStringKind, Type: types.StringUnion(),
		Maybe: kinds(types.KindCallable)})
	add(&TypeCheck{Name: "is_int", Match: types.IsIntKind, Type: types.IntUnion()}, "is_integer", "is_long")
	add(&TypeCheck{Name: "is_float", Match: kinds(types.KindFloat), Type: types.FloatUnion()}, "is_double")
	add(&TypeCheck{Name: "is_bool", Match: types.IsBoolKind, Type: types.BoolUnion()})
	add(&TypeCheck{Name: "is_array", Match: isArray, Type: types.ArrayUnion(),
		Maybe: kinds(types.KindIterable, types.KindCallable)})
	add(&TypeCheck{Name: "is_object", Match: types.IsObjectKind, Type: types.ObjectUnion(),
		Maybe: kinds(types.KindIterable, types.KindCallable)})
	add(&TypeCheck{Name: "is_callable", Match: kinds(types.KindCallable, types.KindClosure), Type: types.Of(types.Callable(false)),
		Maybe: func(k types.Kind) bool { return types.IsStringKind(k) || isArray(k) || types.IsObjectKind(k) }})
	add(&TypeCheck{Name: "is_iterable", Match: func(k types.Kind) bool { return isArray(k) || k == types.KindIterable },
		Type: types.Of(types.Iterable(false)), Maybe: kinds(types.KindClass, types.KindObject, types.KindSelf, types.KindStatic)})
	add(&TypeCheck{Name: "is_numeric", Match: types.IsNumericKind, Type: types.Of(types.Int(false), types.Float(false), types.String(false)),
		Maybe: types.IsStringKind})
	add(&TypeCheck{Name: "is_scalar", Match: types.IsScalarKind, Type: types.Of(types.Bool(false), types.Int(false), types.Float(false), types.String(false))})
	add(&TypeCheck{Name: "is_resource", Match: kinds(types.KindResource), Type: types.Of(types.Resource(false))})
	add(&TypeCheck{Name: "is_null", Match: never, Type: types.NullUnion(), Null: true})
	return reg
}

// Lookup finds the check for a function name, ignoring case and a leading
// separator.
func (r *TypeCheckRegistry) Lookup(name string) (*TypeCheck, bool) {
	c, ok := r.checks[strings.ToLower(strings.TrimPrefix(name, `\`))]
	return c, ok
}

// Names lists the registered function names.
func (r *TypeCheckRegistry) Names() []string {
	out := make([]string, 0, len(r.checks))
	for name := range r.checks {
		out = append(out, name)
	}
	return out
}
