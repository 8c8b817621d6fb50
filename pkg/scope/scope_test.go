package scope

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/types"
)

func TestScope_CopyOnWrite(t *testing.T) {
	s := New(NewVariable("a", types.IntUnion(), 0))
	s2 := s.WithVariable(NewVariable("b", types.StringUnion(), 0))

	assert.False(t, s.Has("b"))
	assert.True(t, s2.Has("a"))
	assert.True(t, s2.Has("b"))

	s3 := s2.WithoutVariable("a")
	assert.False(t, s3.Has("a"))
	assert.True(t, s2.Has("a"))
	assert.Equal(t, []string{"b"}, s3.Names())

	assert.Same(t, s3, s3.WithoutVariable("missing"))
}

func TestScope_Flattens(t *testing.T) {
	s := New()
	for i := 0; i < 3*maxLayers; i++ {
		s = s.WithVariable(NewVariable(fmt.Sprintf("v%02d", i%20), types.Of(types.LiteralInt(int64(i), false)), 0))
	}
	assert.LessOrEqual(t, s.depth, maxLayers)
	assert.Len(t, s.Names(), 20)

	v, ok := s.Variable("v07")
	require.True(t, ok)
	assert.Equal(t, "47", v.Type.String())
}

func TestVariable_Clones(t *testing.T) {
	v := NewVariable("x", types.IntUnion(), FromPHPDoc)
	w := v.WithType(types.StringUnion())
	assert.Equal(t, "int", v.Type.String())
	assert.Equal(t, "string", w.Type.String())
	assert.True(t, w.Has(FromPHPDoc))
	assert.False(t, w.WithFlags(0).Has(FromPHPDoc))
}

func TestMergeScopes(t *testing.T) {
	base := New(NewVariable("x", types.MixedUnion(), 0))
	left := base.WithVariable(NewVariable("x", types.IntUnion(), 0)).
		WithVariable(NewVariable("onlyLeft", types.StringUnion(), 0))
	right := base.WithVariable(NewVariable("x", types.StringUnion(), IsReference))

	merged := MergeScopes(base, left, right)

	x, ok := merged.Variable("x")
	require.True(t, ok)
	assert.Equal(t, "int|string", x.Type.String())
	assert.True(t, x.Has(IsReference))
	assert.False(t, x.Has(PossiblyUndefined))

	only, ok := merged.Variable("onlyLeft")
	require.True(t, ok)
	assert.True(t, only.Has(PossiblyUndefined))

	assert.Same(t, base, MergeScopes(base))
	assert.Same(t, left, MergeScopes(base, left))
}

func TestMergeScopes_UnknownWins(t *testing.T) {
	a := New(NewVariable("x", types.IntUnion(), 0))
	b := New(NewVariable("x", types.Empty(), 0))
	x, ok := MergeScopes(New(), a, b).Variable("x")
	require.True(t, ok)
	assert.True(t, x.Type.IsEmpty())
}

func TestContext(t *testing.T) {
	ctx := NewContext("a.php")
	assert.Equal(t, `\`, ctx.Namespace())
	assert.False(t, ctx.IsInClass())
	assert.False(t, ctx.IsInFunctionLike())

	class := fqsen.ParseClassName(`\App\Foo`)
	method := fqsen.NewMethodName(class, "run")
	inner := ctx.WithNamespace(`App`).WithClass(class).WithFunction(method).WithLine(12)

	got, ok := inner.Class()
	require.True(t, ok)
	assert.True(t, got.Equal(class))
	m, ok := inner.Method()
	require.True(t, ok)
	assert.Equal(t, `\App\Foo::run`, m.String())
	assert.Equal(t, 12, inner.Line())
	assert.Equal(t, `\App`, inner.Namespace())

	// the original value is untouched
	assert.Equal(t, 0, ctx.Line())
	assert.False(t, ctx.IsInClass())

	withVar := inner.WithVariable(NewVariable("y", types.FloatUnion(), 0))
	_, ok = inner.Variable("y")
	assert.False(t, ok)
	_, ok = withVar.Variable("y")
	assert.True(t, ok)
	_, ok = withVar.WithoutVariable("y").Variable("y")
	assert.False(t, ok)
}

func TestContext_ClassListCache(t *testing.T) {
	node := ast.NewName(1, "Foo")
	entry := ClassListEntry{Type: types.Of(types.Class(fqsen.ParseClassName(`\Foo`), nil, false))}

	ctx := NewContext("a.php")
	ctx.CacheClassList(node, entry)

	testCases := []struct {
		name   string
		ctx    Context
		cached bool
	}{
		{"same context", ctx, true},
		{"new line", ctx.WithLine(4), true},
		{"new scope", ctx.WithVariable(NewVariable("a", types.IntUnion(), 0)), true},
		{"new namespace", ctx.WithNamespace("Other"), false},
		{"new imports", ctx.WithImports(ctx.Imports().WithClass("Foo", `\Bar\Foo`)), false},
		{"new class", ctx.WithClass(fqsen.ParseClassName(`\C`)), false},
		{"new file", ctx.WithFile("b.php"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := tc.ctx.CachedClassList(node)
			assert.Equal(t, tc.cached, ok)
		})
	}
}

func TestImports(t *testing.T) {
	imports := NewImports().WithClass("Helper", `\Lib\Helper`).WithConstant("MAX", `\Lib\MAX`)
	fq, ok := imports.Class("HELPER")
	assert.True(t, ok)
	assert.Equal(t, `\Lib\Helper`, fq)
	_, ok = imports.Constant("max")
	assert.False(t, ok)

	var nilImports *Imports
	_, ok = nilImports.Function("f")
	assert.False(t, ok)
}

func TestMergeContexts(t *testing.T) {
	base := NewContext("a.php")
	a := base.WithVariable(NewVariable("x", types.IntUnion(), 0))
	b := base.WithVariable(NewVariable("x", types.NullUnion(), 0))
	x, ok := Merge(base, a, b).Variable("x")
	require.True(t, ok)
	assert.Equal(t, "int|null", x.Type.String())
}
