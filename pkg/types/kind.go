package types

// Kind is the closed set of structural type kinds an atom can have.
type Kind uint8

const (
	KindVoid Kind = iota
	KindNull
	KindBool
	KindFalse
	KindTrue
	KindInt
	KindLiteralInt
	KindFloat
	KindString
	KindLiteralString
	KindArray
	KindGenericArray
	KindArrayShape
	KindObject
	KindClass
	KindSelf
	KindStatic
	KindCallable
	KindClosure
	KindTemplate
	KindMixed
	KindIterable
	KindResource
	kindCount
)

var kindNames = [kindCount]string{
	KindVoid:          "void",
	KindNull:          "null",
	KindBool:          "bool",
	KindFalse:         "false",
	KindTrue:          "true",
	KindInt:           "int",
	KindLiteralInt:    "literal-int",
	KindFloat:         "float",
	KindString:        "string",
	KindLiteralString: "literal-string",
	KindArray:         "array",
	KindGenericArray:  "generic-array",
	KindArrayShape:    "array-shape",
	KindObject:        "object",
	KindClass:         "class",
	KindSelf:          "self",
	KindStatic:        "static",
	KindCallable:      "callable",
	KindClosure:       "Closure",
	KindTemplate:      "template",
	KindMixed:         "mixed",
	KindIterable:      "iterable",
	KindResource:      "resource",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// KeyKind is the key domain of a generic array.
type KeyKind uint8

const (
	KeyMixed KeyKind = iota
	KeyInt
	KeyString
)

func (k KeyKind) String() string {
	switch k {
	case KeyInt:
		return "int"
	case KeyString:
		return "string"
	default:
		return "mixed"
	}
}

// Merge returns the narrowest key kind covering both.
func (k KeyKind) Merge(o KeyKind) KeyKind {
	if k == o {
		return k
	}
	return KeyMixed
}

func IsBoolKind(k Kind) bool   { return k == KindBool || k == KindTrue || k == KindFalse }
func IsIntKind(k Kind) bool    { return k == KindInt || k == KindLiteralInt }
func IsStringKind(k Kind) bool { return k == KindString || k == KindLiteralString }
func IsLiteralKind(k Kind) bool {
	return k == KindLiteralInt || k == KindLiteralString || k == KindTrue || k == KindFalse
}

func IsNumericKind(k Kind) bool { return IsIntKind(k) || k == KindFloat }

func IsScalarKind(k Kind) bool {
	return IsBoolKind(k) || IsNumericKind(k) || IsStringKind(k)
}

func IsArrayLikeKind(k Kind) bool {
	return k == KindArray || k == KindGenericArray || k == KindArrayShape
}

func IsObjectKind(k Kind) bool {
	switch k {
	case KindObject, KindClass, KindSelf, KindStatic, KindClosure:
		return true
	}
	return false
}

// IsPossiblyObjectKind reports kinds whose values may or may not be objects.
func IsPossiblyObjectKind(k Kind) bool {
	switch k {
	case KindMixed, KindTemplate, KindCallable, KindIterable:
		return true
	}
	return IsObjectKind(k)
}
