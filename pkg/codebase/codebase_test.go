package codebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/types"
)

func newTestCodeBase(t *testing.T) *CodeBase {
	t.Helper()
	b, err := LoadBuiltins()
	require.NoError(t, err)
	cb := New()
	b.Install(cb)
	return cb
}

func TestLoadBuiltins(t *testing.T) {
	b, err := LoadBuiltins()
	require.NoError(t, err)
	assert.Equal(t, "array<string,mixed>", b.Superglobals["_GET"].String())

	cb := New()
	b.Install(cb)

	strlen, ok := cb.Function(fqsen.ParseFunctionName("STRLEN"))
	require.True(t, ok)
	assert.Equal(t, "int", strlen.RealReturnType.String())
	require.Len(t, strlen.Params, 1)
	assert.Equal(t, "string", strlen.Params[0].Name)

	impl, ok := cb.Function(fqsen.ParseFunctionName("implode"))
	require.True(t, ok)
	assert.Equal(t, 1, impl.RequiredParams())

	sprintf, _ := cb.Function(fqsen.ParseFunctionName("sprintf"))
	p, ok := sprintf.Param(7)
	require.True(t, ok)
	assert.True(t, p.Variadic)

	exc, ok := cb.Class(fqsen.ParseClassName(`\exception`))
	require.True(t, ok)
	assert.True(t, exc.HasMethod("GETMESSAGE"))
	msg, ok := exc.Property("message")
	require.True(t, ok)
	assert.Equal(t, Protected, msg.Visibility())
	assert.False(t, exc.HasProperty("Message"))

	iter, ok := cb.Class(fqsen.ParseClassName(`\Iterator`))
	require.True(t, ok)
	assert.True(t, iter.IsInterface())

	rt := fqsen.ParseClassName(`\InvalidArgumentException`)
	assert.Equal(t, []fqsen.ClassName{fqsen.ParseClassName(`\LogicException`)}, cb.AncestorFQSENs(rt))

	_, ok = cb.GlobalConstant(fqsen.ParseGlobalConstName("PHP_EOL"))
	assert.True(t, ok)
}

func TestParseBuiltins_Errors(t *testing.T) {
	testCases := []string{
		"functions: [{name: f, return: 'array{'}]",
		"functions: [{name: f, params: ['$x']}]",
		"functions: [{name: f, params: ['int x']}]",
		"classes: [{name: C, kind: enum}]",
		"superglobals: {X: '<>'}",
	}
	for _, tc := range testCases {
		_, err := ParseBuiltins([]byte(tc))
		assert.Error(t, err, tc)
	}
}

func TestCodeBase_Duplicates(t *testing.T) {
	cb := New()
	name := fqsen.ParseClassName(`\App\Foo`)
	assert.True(t, cb.AddClass(NewClassDecl(name, ast.KindClass)))
	assert.False(t, cb.AddClass(NewClassDecl(fqsen.ParseClassName(`\app\foo`), ast.KindTrait)))
	c, _ := cb.Class(name)
	assert.False(t, c.IsTrait())
	assert.Equal(t, []fqsen.ClassName{name}, cb.ClassNames())

	classes, functions, constants := cb.Stats()
	assert.Equal(t, [3]int{1, 0, 0}, [3]int{classes, functions, constants})
}

func TestClassDecl_Members(t *testing.T) {
	c := NewClassDecl(fqsen.ParseClassName(`\A`), ast.KindClass)
	c.Parent = fqsen.ParseClassName(`\Base`)
	c.Interfaces = []fqsen.ClassName{fqsen.ParseClassName(`\I`)}
	c.Traits = []fqsen.ClassName{fqsen.ParseClassName(`\T`)}
	c.AddMethod(&MethodDecl{Name: "run", Flags: ast.ModPrivate | ast.ModStatic})
	c.AddMethod(&MethodDecl{Name: "Alpha"})
	c.AddConstant(&ConstDecl{Name: "MAX"})

	m, ok := c.Method("RUN")
	require.True(t, ok)
	assert.Equal(t, Private, m.Visibility())
	assert.True(t, m.IsStatic())
	assert.Equal(t, `\A::run`, m.FQSEN().String())

	alias := m.WithName("go", ast.ModPublic)
	assert.Equal(t, Public, alias.Visibility())
	assert.True(t, alias.IsStatic())
	assert.Equal(t, "run", m.Name)

	assert.Equal(t, "Alpha", c.Methods()[0].Name)
	assert.True(t, c.HasConstant("MAX"))
	assert.False(t, c.HasConstant("max"))
	assert.Len(t, c.AncestorFQSENs(), 3)
}

func TestEffectiveReturnType(t *testing.T) {
	parse := types.MustParse
	testCases := []struct {
		name      string
		declared  string
		doc       string
		fromTrait bool
		trust     bool
		expect    string
	}{
		{"doc only", "", "int", false, true, "int"},
		{"real only", "string", "", false, true, "string"},
		{"neither", "", "", false, true, ""},
		{"narrower doc wins", "?int", "int", false, true, "int"},
		{"incompatible doc loses", "int", "string", false, true, "int"},
		{"trait trusts real", "?int", "int", true, true, "?int"},
		{"trait without the feature", "?int", "int", true, false, "int"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sig := &Signature{}
			if tc.declared != "" {
				sig.RealReturnType = parse(tc.declared)
			}
			if tc.doc != "" {
				sig.PHPDocReturnType = parse(tc.doc)
			}
			p := ReturnTypePolicy{TrustTraitRealReturn: tc.trust}
			assert.Equal(t, tc.expect, p.EffectiveReturnType(sig, tc.fromTrait).String())
		})
	}
}

func TestMethodReturnType_TraitMethod(t *testing.T) {
	cb := newTestCodeBase(t)
	trait := NewClassDecl(fqsen.ParseClassName(`\T`), ast.KindTrait)
	m := &MethodDecl{Name: "get", Signature: Signature{
		RealReturnType:   types.MustParse("?string"),
		PHPDocReturnType: types.MustParse("string"),
	}}
	trait.AddMethod(m)
	cb.AddClass(trait)

	p := ReturnTypePolicy{TrustTraitRealReturn: true, Hierarchy: cb}
	assert.Equal(t, "?string", p.MethodReturnType(cb, m).String())
}

func TestTraitAdaptations(t *testing.T) {
	a := NewTraitAdaptations(fqsen.ParseClassName(`\T`))
	a.AddAlias("Bar", AliasMethod{Original: "foo", Line: 3})
	a.Hide("FOO")
	assert.True(t, a.IsHidden("foo"))
	got, ok := a.Alias("bar")
	require.True(t, ok)
	assert.Equal(t, "foo", got.Original)
	assert.Equal(t, []string{"bar"}, a.Aliases())

	c := NewClassDecl(fqsen.ParseClassName(`\C`), ast.KindClass)
	c.SetAdaptations([]*TraitAdaptations{a})
	_, ok = c.Adaptations(fqsen.ParseClassName(`\t`))
	assert.True(t, ok)
}
