package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/fqsen"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		input  string
		expect string
	}{
		{input: "int", expect: "int"},
		{input: " ?int ", expect: "?int"},
		{input: "string|int|null", expect: "int|null|string"},
		{input: "int[]", expect: "int[]"},
		{input: "?int[]", expect: "?int[]"},
		{input: "(?int)[]", expect: "(?int)[]"},
		{input: "(int|string)[]", expect: "int[]|string[]"},
		{input: "int[][]", expect: "int[][]"},
		{input: "array{b:?string, a:int}", expect: "array{a:int,b:?string}"},
		{input: "array{a?:int}", expect: "array{a?:int}"},
		{input: "array{int,string}", expect: "array{0:int,1:string}"},
		{input: "array{'a b':int}", expect: "array{'a b':int}"},
		{input: "array{}", expect: "array{}"},
		{input: "array<string,int>", expect: "array<string,int>"},
		{input: "array<int>", expect: "int[]"},
		{input: "list<int>", expect: "array<int,int>"},
		{input: "\\Foo<int, string>", expect: "\\Foo<int,string>"},
		{input: "Foo", expect: "\\Foo"},
		{input: "\\A\\B", expect: "\\A\\B"},
		{input: "true|false", expect: "bool"},
		{input: "'a'|5|-3", expect: "'a'|-3|5"},
		{input: "'it\\'s'", expect: "'it\\'s'"},
		{input: "scalar", expect: "bool|float|int|string"},
		{input: "array-key", expect: "int|string"},
		{input: "Closure", expect: "Closure"},
		{input: "$this", expect: "static"},
		{input: "?mixed", expect: "mixed"},
		{input: "non-null-mixed", expect: "non-null-mixed"},
		{input: "iterable<int>", expect: "iterable"},
		{input: "integer|double|boolean", expect: "bool|float|int"},
	}
	for _, testCase := range testCases {
		u, err := FromString(testCase.input)
		if !assert.NoError(t, err, testCase.input) {
			continue
		}
		assert.Equal(t, testCase.expect, u.String(), testCase.input)

		again, err := FromString(u.String())
		require.NoError(t, err, u.String())
		assert.True(t, u.Equal(again), testCase.input)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, input := range []string{"", "int|", "?", "array{a:int", "Foo<int", "int)", "array{a:}", "array<int,int,int>", "|int"} {
		_, err := FromString(input)
		var parseErr *ParseError
		if assert.Error(t, err, input) {
			assert.ErrorAs(t, err, &parseErr, input)
		}
	}
	assert.Panics(t, func() { MustParse("array{") })
}

func TestParse_Options(t *testing.T) {
	opts := ParseOptions{
		ResolveClass: func(name string) fqsen.ClassName {
			if name == "Local" {
				return fqsen.NewClassName(`\App`, name)
			}
			return fqsen.ParseClassName(name)
		},
		Templates: []string{"TValue"},
	}
	u, err := Parse("Local|TValue[]|\\Other", opts)
	require.NoError(t, err)
	assert.Equal(t, "TValue[]|\\App\\Local|\\Other", u.String())
	elem := u.GenericArrayElementType()
	require.Equal(t, 1, elem.TypeCount())
	assert.Equal(t, KindTemplate, elem.Types()[0].Kind())
}
