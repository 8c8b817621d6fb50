package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/fqsen"
)

func TestOf_OrderIndependent(t *testing.T) {
	a := Of(Int(false), String(true), Null(), Class(fqsen.ParseClassName(`\Foo`), nil, false))
	b := Of(Class(fqsen.ParseClassName(`\foo`), nil, false), Null(), String(true), Int(false))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, 1, Of(Int(false), Int(false)).TypeCount())
}

func TestInterning(t *testing.T) {
	assert.Same(t, Int(true), Int(true))
	assert.Same(t, Class(fqsen.ParseClassName(`\A\Foo`), nil, false), Class(fqsen.ParseClassName(`\a\FOO`), nil, false))
	assert.NotSame(t, Int(true), Int(false))
	assert.Same(t, LiteralString("x", false), LiteralString("x", false))
	assert.Same(t, Mixed(), NonNullMixed().WithIsNullable(true))
}

func TestOf_NormalizesBools(t *testing.T) {
	testCases := []struct {
		atoms  []*Type
		expect string
	}{
		{atoms: []*Type{True(false), False(false)}, expect: "bool"},
		{atoms: []*Type{True(true), Bool(false)}, expect: "?bool"},
		{atoms: []*Type{False(false), Int(false)}, expect: "false|int"},
		{atoms: []*Type{True(false), False(false), String(false)}, expect: "bool|string"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Of(testCase.atoms...).String())
	}
}

func TestWithoutType(t *testing.T) {
	u := MustParse("int|string")
	same := u.WithoutType(Float(false))
	assert.True(t, u.Equal(same))
	assert.Equal(t, "string", u.WithoutType(Int(false)).String())
	assert.Equal(t, "float|int|string", u.WithType(Float(false)).String())
	assert.True(t, u.Equal(u.WithType(Int(false))))
}

func TestNullability(t *testing.T) {
	testCases := []struct {
		input       string
		nonNullable string
		nullable    string
	}{
		{input: "?int|string", nonNullable: "int|string", nullable: "?int|?string"},
		{input: "int|null", nonNullable: "int", nullable: "?int|null"},
		{input: "null", nonNullable: "", nullable: "null"},
		{input: "mixed", nonNullable: "non-null-mixed", nullable: "mixed"},
	}
	for _, testCase := range testCases {
		u := MustParse(testCase.input)
		assert.Equal(t, testCase.nonNullable, u.NonNullableClone().String(), testCase.input)
		assert.Equal(t, testCase.nullable, u.NullableClone().String(), testCase.input)
	}
	assert.True(t, MustParse("?int").ContainsNullable())
	assert.False(t, MustParse("int|string").ContainsNullable())
}

var propertyInputs = []string{
	"int", "?int", "null", "int|string|null", "mixed", "?\\Foo", "array{a:int,b?:?string}",
	"bool", "false|int", "0|1|''", "int[]", "?array{}", "\\Foo<int>|\\Bar", "static|self",
	"scalar", "callable|Closure", "'0'|'x'",
}

func TestCast_Reflexive(t *testing.T) {
	for _, input := range propertyInputs {
		u := MustParse(input)
		assert.True(t, u.CanCastToUnionType(u), input)
	}
}

func TestCast_EmptyAbsorbs(t *testing.T) {
	for _, input := range propertyInputs {
		u := MustParse(input)
		assert.True(t, Empty().CanCastToUnionType(u), input)
		assert.True(t, u.CanCastToUnionType(Empty()), input)
	}
}

func TestCast_NullableRoundTrip(t *testing.T) {
	for _, input := range propertyInputs {
		u := MustParse(input)
		assert.True(t, u.NullableClone().NonNullableClone().CanCastToUnionType(u.NonNullableClone()), input)
	}
}

func TestNonFalseyClone_Idempotent(t *testing.T) {
	for _, input := range propertyInputs {
		once := MustParse(input).NonFalseyClone()
		assert.True(t, once.Equal(once.NonFalseyClone()), input)
	}
}

func TestCanCastToUnionType(t *testing.T) {
	testCases := []struct {
		from, to string
		opts     CastOptions
		expect   bool
	}{
		{from: "int", to: "float", expect: true},
		{from: "float", to: "int", expect: false},
		{from: "int", to: "?int", expect: true},
		{from: "?int", to: "float", expect: false},
		{from: "?int", to: "float", opts: CastOptions{NullCasting: true}, expect: true},
		{from: "null", to: "?\\Foo", expect: true},
		{from: "null", to: "\\Foo", expect: false},
		{from: "null", to: "\\Foo", opts: CastOptions{NullCasting: true}, expect: true},
		{from: "5", to: "int", expect: true},
		{from: "5", to: "6", expect: false},
		{from: "string", to: "callable", expect: true},
		{from: "int[]", to: "array", expect: true},
		{from: "int[]", to: "string[]", expect: false},
		{from: "array{a:int}", to: "array{a:int,b?:string}", expect: true},
		{from: "array{a:int}", to: "array{a:int,b:string}", expect: false},
		{from: "array{a:int}", to: "int[]", expect: true},
		{from: "array{a:int}", to: "array<int,int>", expect: false},
		{from: "\\Foo", to: "object", expect: true},
		{from: "\\Foo", to: "\\Bar", expect: false},
		{from: "\\Foo", to: "mixed", expect: true},
		{from: "true", to: "bool", expect: true},
		{from: "int|string", to: "int", expect: true},
		{from: "float|string", to: "int", expect: false},
		{from: "float|string", to: "int", opts: CastOptions{ScalarImplicitCast: true}, expect: true},
		{from: "\\Generator", to: "iterable", expect: true},
		{from: "Closure", to: "callable", expect: true},
		{from: "?int", to: "int|null", expect: true},
		{from: "?\\App\\Foo", to: "\\App\\Foo|null", expect: true},
		{from: "?\\App\\Foo", to: "?\\App\\Bar|int", expect: false},
		{from: "?int", to: "?float|string", expect: true},
		{from: "?string", to: "int|null", expect: false},
	}
	for _, testCase := range testCases {
		from, to := MustParse(testCase.from), MustParse(testCase.to)
		assert.Equal(t, testCase.expect, from.CanCastToUnionTypeWith(to, testCase.opts), testCase.from+" -> "+testCase.to)
	}
}

type hierarchy map[string][]string

func (h hierarchy) AncestorFQSENs(class fqsen.ClassName) []fqsen.ClassName {
	var out []fqsen.ClassName
	for _, a := range h[class.Key()] {
		out = append(out, fqsen.ParseClassName(a))
	}
	return out
}

func TestAsExpandedTypes(t *testing.T) {
	h := hierarchy{`\child`: {`\Base`, `\Countable`}, `\base`: {`\Root`}}
	expanded, err := MustParse(`?\Child|int`).AsExpandedTypes(h)
	require.NoError(t, err)
	assert.Equal(t, `?\Base|?\Child|?\Countable|?\Root|int`, expanded.String())

	ok, err := MustParse(`\Child`).CanCastToUnionTypeExpanded(MustParse(`\Root`), h, CastOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MustParse(`\Root`).CanCastToUnionTypeExpanded(MustParse(`\Child`), h, CastOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAsExpandedTypes_Cycle(t *testing.T) {
	h := hierarchy{`\a`: {`\B`}, `\b`: {`\A`}}
	_, err := MustParse(`\A`).AsExpandedTypes(h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecursionDepthExceeded)
}

func TestCanCastToUnionTypeIgnoringTemplates(t *testing.T) {
	h := hierarchy{`\some`: {`\Option`}}
	from, to := MustParse(`\Option<int>`), MustParse(`\Option<string>`)
	assert.False(t, from.CanCastToUnionType(to))
	ok, err := from.CanCastToUnionTypeIgnoringTemplates(to, h, CastOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MustParse(`\Some<int>`).CanCastToUnionTypeIgnoringTemplates(to, h, CastOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTruthiness(t *testing.T) {
	testCases := []struct {
		input     string
		nonFalsey string
		nonTruthy string
	}{
		{input: "?int|false", nonFalsey: "int", nonTruthy: "?int|false"},
		{input: "bool|null", nonFalsey: "true", nonTruthy: "false|null"},
		{input: "0|1", nonFalsey: "1", nonTruthy: "0"},
		{input: "?\\Foo|int", nonFalsey: "\\Foo|int", nonTruthy: "int|null"},
		{input: "int[]", nonFalsey: "int[]", nonTruthy: "array{}"},
		{input: "array{a:int}", nonFalsey: "array{a:int}", nonTruthy: ""},
	}
	for _, testCase := range testCases {
		u := MustParse(testCase.input)
		assert.Equal(t, testCase.nonFalsey, u.NonFalseyClone().String(), testCase.input)
		assert.Equal(t, testCase.nonTruthy, u.NonTruthyClone().String(), testCase.input)
	}
}

func TestShapeFields(t *testing.T) {
	u := MustParse("array{a:int,b:?string}")
	assert.Equal(t, "array{b:?string}", u.WithoutArrayShapeField("a").String())
	assert.Equal(t, "array{a:int,b:?string,c:int}", u.WithMergedShapeField("c", IntUnion()).String())
	assert.Equal(t, "array{a:string,b:?string}", u.WithMergedShapeField("a", StringUnion()).String())
	assert.Equal(t, "int[]", MustParse("int[]").WithMergedShapeField("c", IntUnion()).String())
	assert.Equal(t, "array{k:int}", NullUnion().WithMergedShapeField("k", IntUnion()).String())
	assert.Equal(t, "?string", u.ShapeFieldType("b").String())
	assert.True(t, u.ShapeFieldType("z").IsEmpty())
}

func TestUnaryOperators(t *testing.T) {
	testCases := []struct {
		input  string
		minus  string
		plus   string
		bitNot string
	}{
		{input: "5", minus: "-5", plus: "5", bitNot: "-6"},
		{input: "'7'", minus: "-7", plus: "7", bitNot: "string"},
		{input: "int", minus: "int", plus: "int", bitNot: "int"},
		{input: "float", minus: "float", plus: "float", bitNot: "int"},
		{input: "string", minus: "float|int", plus: "float|int", bitNot: "string"},
	}
	for _, testCase := range testCases {
		u := MustParse(testCase.input)
		assert.Equal(t, testCase.minus, u.ApplyUnaryMinus().String(), testCase.input)
		assert.Equal(t, testCase.plus, u.ApplyUnaryPlus().String(), testCase.input)
		assert.Equal(t, testCase.bitNot, u.ApplyUnaryBitwiseNot().String(), testCase.input)
	}
}

func TestTemplateSubstitution(t *testing.T) {
	u, err := Parse("T[]|?T|\\Box<T>", ParseOptions{Templates: []string{"T"}})
	require.NoError(t, err)
	got := u.WithTemplateParameterTypeMap(map[string]UnionType{"T": IntUnion()})
	assert.Equal(t, "?int|\\Box<int>|int[]", got.String())
}
