package types

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xplshn/gpan/pkg/fqsen"
)

// Type is one interned structural type atom. Two atoms are the same pointer iff they
// are semantically identical, so atoms compare with ==.
type Type struct {
	kind     Kind
	nullable bool
	class    fqsen.ClassName
	template string
	intValue int64
	strValue string
	keyKind  KeyKind
	elem     *Type
	fields   []ShapeField
	args     []UnionType

	key     string // identity: case-folded class names
	display string
}

// ShapeField is one field of an array shape.
type ShapeField struct {
	Key               string
	Type              UnionType
	PossiblyUndefined bool
}

var internTable sync.Map // key -> *Type

func intern(t *Type) *Type {
	t.key = t.render(true)
	if v, ok := internTable.Load(t.key); ok {
		return v.(*Type)
	}
	t.display = t.render(false)
	v, _ := internTable.LoadOrStore(t.key, t)
	return v.(*Type)
}

func simple(kind Kind, nullable bool) *Type {
	switch kind {
	case KindNull:
		nullable = true
	case KindVoid:
		nullable = false
	}
	return intern(&Type{kind: kind, nullable: nullable})
}

func Void() *Type               { return simple(KindVoid, false) }
func Null() *Type               { return simple(KindNull, true) }
func Bool(nullable bool) *Type  { return simple(KindBool, nullable) }
func False(nullable bool) *Type { return simple(KindFalse, nullable) }
func True(nullable bool) *Type  { return simple(KindTrue, nullable) }
func Int(nullable bool) *Type   { return simple(KindInt, nullable) }
func Float(nullable bool) *Type { return simple(KindFloat, nullable) }
func String(nullable bool) *Type {
	return simple(KindString, nullable)
}
func Array(nullable bool) *Type    { return simple(KindArray, nullable) }
func Object(nullable bool) *Type   { return simple(KindObject, nullable) }
func Self(nullable bool) *Type     { return simple(KindSelf, nullable) }
func Static(nullable bool) *Type   { return simple(KindStatic, nullable) }
func Callable(nullable bool) *Type { return simple(KindCallable, nullable) }
func Closure(nullable bool) *Type  { return simple(KindClosure, nullable) }
func Iterable(nullable bool) *Type { return simple(KindIterable, nullable) }
func Resource(nullable bool) *Type { return simple(KindResource, nullable) }

// Mixed includes null; NonNullMixed is mixed without null.
func Mixed() *Type        { return simple(KindMixed, true) }
func NonNullMixed() *Type { return simple(KindMixed, false) }

func LiteralInt(v int64, nullable bool) *Type {
	return intern(&Type{kind: KindLiteralInt, intValue: v, nullable: nullable})
}

func LiteralString(v string, nullable bool) *Type {
	return intern(&Type{kind: KindLiteralString, strValue: v, nullable: nullable})
}

func Template(name string, nullable bool) *Type {
	return intern(&Type{kind: KindTemplate, template: name, nullable: nullable})
}

// GenericArray is an array whose values are elem and whose keys are of kind key.
func GenericArray(elem *Type, key KeyKind, nullable bool) *Type {
	return intern(&Type{kind: KindGenericArray, elem: elem, keyKind: key, nullable: nullable})
}

// ArrayShape builds a structural array type. Fields are copied and sorted; empty field
// types become mixed.
func ArrayShape(fields []ShapeField, nullable bool) *Type {
	fs := make([]ShapeField, 0, len(fields))
	seen := map[string]int{}
	for _, f := range fields {
		if f.Type.IsEmpty() {
			f.Type = MixedUnion()
		}
		if i, ok := seen[f.Key]; ok {
			fs[i] = f
			continue
		}
		seen[f.Key] = len(fs)
		fs = append(fs, f)
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].Key < fs[j].Key })
	return intern(&Type{kind: KindArrayShape, fields: fs, nullable: nullable})
}

// EmptyArray is the shape with no fields, `array{}`.
func EmptyArray(nullable bool) *Type { return ArrayShape(nil, nullable) }

// Class builds an atom for a named class. `\Closure` maps to the closure kind.
func Class(name fqsen.ClassName, args []UnionType, nullable bool) *Type {
	if len(args) == 0 && strings.EqualFold(name.String(), `\Closure`) {
		return Closure(nullable)
	}
	var a []UnionType
	if len(args) > 0 {
		a = append(a, args...)
	}
	return intern(&Type{kind: KindClass, class: name, args: a, nullable: nullable})
}

func (t *Type) Kind() Kind                  { return t.kind }
func (t *Type) IsNullable() bool            { return t.nullable }
func (t *Type) ClassName() fqsen.ClassName  { return t.class }
func (t *Type) TemplateName() string        { return t.template }
func (t *Type) IntValue() int64             { return t.intValue }
func (t *Type) StringValue() string         { return t.strValue }
func (t *Type) KeyKind() KeyKind            { return t.keyKind }
func (t *Type) ElementType() *Type          { return t.elem }
func (t *Type) TemplateArgs() []UnionType   { return t.args }
func (t *Type) String() string              { return t.display }
func (t *Type) Key() string                 { return t.key }
func (t *Type) ShapeFields() []ShapeField   { return t.fields }
func (t *Type) HasTemplateArgs() bool       { return len(t.args) > 0 }
func (t *Type) IsNull() bool                { return t.kind == KindNull }
func (t *Type) IsMixed() bool               { return t.kind == KindMixed }

// ShapeField looks up a field of an array shape.
func (t *Type) ShapeField(key string) (ShapeField, bool) {
	for _, f := range t.fields {
		if f.Key == key {
			return f, true
		}
	}
	return ShapeField{}, false
}

// WithIsNullable returns the atom with the given nullability. null and void keep theirs.
func (t *Type) WithIsNullable(nullable bool) *Type {
	if t.nullable == nullable || t.kind == KindNull || t.kind == KindVoid {
		return t
	}
	c := t.copyPayload()
	c.nullable = nullable
	return intern(c)
}

func (t *Type) copyPayload() *Type {
	return &Type{
		kind: t.kind, nullable: t.nullable, class: t.class, template: t.template,
		intValue: t.intValue, strValue: t.strValue, keyKind: t.keyKind, elem: t.elem,
		fields: t.fields, args: t.args,
	}
}

// WithoutTemplateArgs erases the template arguments of a class atom.
func (t *Type) WithoutTemplateArgs() *Type {
	if t.kind != KindClass || len(t.args) == 0 {
		return t
	}
	return Class(t.class, nil, t.nullable)
}

// NonLiteral projects a literal atom to its base kind.
func (t *Type) NonLiteral() *Type {
	switch t.kind {
	case KindLiteralInt:
		return Int(t.nullable)
	case KindLiteralString:
		return String(t.nullable)
	case KindTrue, KindFalse:
		return Bool(t.nullable)
	}
	return t
}

// IsAlwaysFalsey reports atoms whose every value is falsey.
func (t *Type) IsAlwaysFalsey() bool {
	switch t.kind {
	case KindNull, KindFalse, KindVoid:
		return true
	case KindLiteralInt:
		return t.intValue == 0
	case KindLiteralString:
		return t.strValue == "" || t.strValue == "0"
	case KindArrayShape:
		return len(t.fields) == 0
	}
	return false
}

// IsPossiblyFalsey reports atoms that admit at least one falsey value.
func (t *Type) IsPossiblyFalsey() bool {
	if t.nullable || t.IsAlwaysFalsey() {
		return true
	}
	switch t.kind {
	case KindBool, KindInt, KindFloat, KindString, KindArray, KindGenericArray, KindMixed, KindTemplate, KindIterable:
		return true
	case KindArrayShape:
		for _, f := range t.fields {
			if !f.PossiblyUndefined {
				return false
			}
		}
		return true
	}
	return false
}

// IsPossiblyTruthy reports atoms that admit at least one truthy value.
func (t *Type) IsPossiblyTruthy() bool {
	switch t.kind {
	case KindNull, KindFalse, KindVoid:
		return false
	}
	if t.IsAlwaysFalsey() {
		return false
	}
	return true
}

func (t *Type) render(asKey bool) string {
	var sb strings.Builder
	if t.nullable && t.kind != KindNull && t.kind != KindMixed {
		sb.WriteByte('?')
	}
	switch t.kind {
	case KindMixed:
		if t.nullable {
			sb.WriteString("mixed")
		} else {
			sb.WriteString("non-null-mixed")
		}
	case KindLiteralInt:
		sb.WriteString(strconv.FormatInt(t.intValue, 10))
	case KindLiteralString:
		sb.WriteString(quoteLiteral(t.strValue))
	case KindTemplate:
		if asKey {
			sb.WriteByte('%')
		}
		sb.WriteString(t.template)
	case KindClass:
		if asKey {
			sb.WriteString(t.class.Key())
		} else {
			sb.WriteString(t.class.String())
		}
		if len(t.args) > 0 {
			sb.WriteByte('<')
			for i, a := range t.args {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(a.render(asKey))
			}
			sb.WriteByte('>')
		}
	case KindGenericArray:
		elem := t.elem.display
		if asKey {
			elem = t.elem.key
		}
		if t.keyKind != KeyMixed {
			sb.WriteString("array<" + t.keyKind.String() + "," + elem + ">")
			break
		}
		if t.elem.nullable && t.elem.kind != KindNull && t.elem.kind != KindMixed {
			elem = "(" + elem + ")"
		}
		sb.WriteString(elem + "[]")
	case KindArrayShape:
		sb.WriteString("array{")
		for i, f := range t.fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(renderShapeKey(f.Key))
			if f.PossiblyUndefined {
				sb.WriteByte('?')
			}
			sb.WriteByte(':')
			sb.WriteString(f.Type.render(asKey))
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(t.kind.String())
	}
	return sb.String()
}

func quoteLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

func renderShapeKey(k string) string {
	if k == "" {
		return "''"
	}
	for _, c := range k {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return quoteLiteral(k)
		}
	}
	return k
}
