package narrow

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/resolve"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

var (
	fooName = fqsen.NewClassName(`\App`, "Foo")
	barName = fqsen.NewClassName(`\App`, "Bar")
	quxName = fqsen.NewClassName(`\App`, "Qux")
)

func newTestNarrower(t *testing.T) (*Narrower, *codebase.CodeBase) {
	t.Helper()
	b, err := codebase.LoadBuiltins()
	require.NoError(t, err)
	cb := codebase.New()
	b.Install(cb)
	require.True(t, cb.AddClass(codebase.NewClassDecl(fooName, ast.KindClass)))
	bar := codebase.NewClassDecl(barName, ast.KindClass)
	bar.Parent = fooName
	require.True(t, cb.AddClass(bar))
	require.True(t, cb.AddClass(codebase.NewClassDecl(quxName, ast.KindClass)))
	return New(resolve.New(cb, nil, b, issue.NewCollector(nil))), cb
}

func v(name string) *ast.Node { return ast.NewVariable(1, name) }

func call(name string, args ...*ast.Node) *ast.Node {
	return ast.NewCall(1, ast.NewName(1, name), args)
}

func bin(op ast.Op, l, r *ast.Node) *ast.Node { return ast.NewBinaryOp(1, op, l, r) }

func not(n *ast.Node) *ast.Node { return ast.NewUnaryOp(1, ast.OpNot, n) }

func constant(name string) *ast.Node { return ast.NewConstFetch(1, ast.NewName(1, name)) }

func dim(name, key string) *ast.Node { return ast.NewDim(1, v(name), ast.NewStringLit(1, key)) }

func ctxWith(typ string) scope.Context {
	return scope.NewContext("n.json").WithNamespace("App").
		WithVariable(scope.NewVariable("x", types.MustParse(typ), 0))
}

func typeOf(t *testing.T, ctx scope.Context, name string) types.UnionType {
	t.Helper()
	va, ok := ctx.Variable(name)
	require.True(t, ok, "$%s missing", name)
	return va.Type
}

func TestNarrow(t *testing.T) {
	testCases := []struct {
		name     string
		typ      string
		cond     *ast.Node
		positive string
		negative string
	}{
		{
			name: "is_string", typ: "string|int|null", cond: call("is_string", v("x")),
			positive: "string", negative: "int|null",
		},
		{
			name: "is_null", typ: `?\App\Foo`, cond: call("is_null", v("x")),
			positive: "null", negative: `\App\Foo`,
		},
		{
			name: "is_int alias", typ: "int|string", cond: call("is_integer", v("x")),
			positive: "int", negative: "string",
		},
		{
			name: "negated check", typ: "int|string", cond: not(call("is_int", v("x"))),
			positive: "string", negative: "int",
		},
		{
			name: "is_array on mixed", typ: "mixed", cond: call("is_array", v("x")),
			positive: "array", negative: "mixed",
		},
		{
			name: "instanceof", typ: `\App\Foo|\App\Qux`, cond: ast.NewInstanceof(1, v("x"), ast.NewName(1, "Foo")),
			positive: `\App\Foo`, negative: `\App\Qux`,
		},
		{
			name: "instanceof keeps subclasses", typ: `\App\Bar|\App\Qux`, cond: ast.NewInstanceof(1, v("x"), ast.NewName(1, "Foo")),
			positive: `\App\Bar`, negative: `\App\Qux`,
		},
		{
			name: "instanceof of nullable", typ: `?\App\Foo`, cond: ast.NewInstanceof(1, v("x"), ast.NewName(1, "Foo")),
			positive: `\App\Foo`, negative: "null",
		},
		{
			name: "instanceof of unrelated", typ: "int", cond: ast.NewInstanceof(1, v("x"), ast.NewName(1, "Foo")),
			positive: `\App\Foo`, negative: "int",
		},
		{
			name: "identical null", typ: "?string", cond: bin(ast.OpIdentical, v("x"), constant("null")),
			positive: "null", negative: "string",
		},
		{
			name: "not identical null reversed", typ: "?string", cond: bin(ast.OpNotIdentical, constant("null"), v("x")),
			positive: "string", negative: "null",
		},
		{
			name: "not identical false", typ: "string|false", cond: bin(ast.OpNotIdentical, v("x"), constant("false")),
			positive: "string", negative: "false",
		},
		{
			name: "identical literal", typ: "int", cond: bin(ast.OpIdentical, v("x"), ast.NewIntLit(1, 3)),
			positive: "3", negative: "int",
		},
		{
			name: "truthiness", typ: "?int|false", cond: v("x"),
			positive: "int", negative: "?int|false",
		},
		{
			name: "and", typ: "int|string", cond: bin(ast.OpBoolAnd, call("is_int", v("x")), bin(ast.OpIdentical, v("x"), ast.NewIntLit(1, 3))),
			positive: "3", negative: "int|string",
		},
		{
			name: "or", typ: "float|int|string", cond: bin(ast.OpBoolOr, call("is_string", v("x")), call("is_int", v("x"))),
			positive: "int|string", negative: "float",
		},
		{
			name: "isset", typ: "?string", cond: ast.NewIsset(1, []*ast.Node{v("x")}),
			positive: "string", negative: "null",
		},
		{
			name: "empty", typ: "string|null", cond: ast.NewEmpty(1, v("x")),
			positive: "string|null", negative: "string",
		},
		{
			name: "assert", typ: "int|string", cond: call("assert", call("is_string", v("x"))),
			positive: "string", negative: "int|string",
		},
		{
			name: "isset field", typ: "array{a:int,b:?string}", cond: ast.NewIsset(1, []*ast.Node{dim("x", "b")}),
			positive: "array{a:int,b:string}", negative: "",
		},
		{
			name: "array_key_exists", typ: "array{a:int,b:?string}", cond: call("array_key_exists", ast.NewStringLit(1, "a"), v("x")),
			positive: "array{a:int,b:?string}", negative: "array{b:?string}",
		},
		{
			name: "unrelated condition", typ: "int", cond: bin(ast.OpSmaller, v("x"), ast.NewIntLit(1, 3)),
			positive: "int", negative: "int",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			n, _ := newTestNarrower(t)
			ctx := ctxWith(testCase.typ)

			pos, err := n.Positive(ctx, testCase.cond)
			require.NoError(t, err)
			assert.Equal(t, types.MustParse(testCase.positive).String(), typeOf(t, pos, "x").String())

			if testCase.negative == "" {
				return
			}
			neg, err := n.Negative(ctx, testCase.cond)
			require.NoError(t, err)
			assert.Equal(t, types.MustParse(testCase.negative).String(), typeOf(t, neg, "x").String())

			// Narrowing never touches the context it started from.
			assert.Equal(t, types.MustParse(testCase.typ).String(), typeOf(t, ctx, "x").String())
		})
	}
}

func TestNarrow_IssetFieldNegative(t *testing.T) {
	n, _ := newTestNarrower(t)
	ctx, err := n.Negative(ctxWith("array{a:int,b:?string}"), ast.NewIsset(1, []*ast.Node{dim("x", "b")}))
	require.NoError(t, err)
	fields := typeOf(t, ctx, "x").ShapeFieldMap()
	require.Contains(t, fields, "b")
	assert.True(t, fields["b"].PossiblyUndefined)
	assert.True(t, fields["b"].Type.IsNull())
	assert.False(t, fields["a"].PossiblyUndefined)
}

func TestNarrow_Undefined(t *testing.T) {
	n, _ := newTestNarrower(t)
	ctx := scope.NewContext("n.json").
		WithVariable(scope.NewVariable("x", types.Of(types.String(true)), scope.PossiblyUndefined))

	pos, err := n.Positive(ctx, ast.NewIsset(1, []*ast.Node{v("x")}))
	require.NoError(t, err)
	got, _ := pos.Variable("x")
	assert.False(t, got.Has(scope.PossiblyUndefined))

	neg, err := n.Negative(ctx, ast.NewIsset(1, []*ast.Node{v("x")}))
	require.NoError(t, err)
	got, _ = neg.Variable("x")
	assert.True(t, got.Has(scope.PossiblyUndefined))
}

func TestNarrow_AssignmentInCondition(t *testing.T) {
	n, _ := newTestNarrower(t)
	ctx := ctxWith("?string")
	cond := ast.NewAssign(1, ast.OpNone, v("y"), v("x"), false)

	pos, err := n.Positive(ctx, cond)
	require.NoError(t, err)
	assert.Equal(t, "string", typeOf(t, pos, "y").String())

	neg, err := n.Negative(ctx, cond)
	require.NoError(t, err)
	assert.Equal(t, "?string", typeOf(t, neg, "y").String())
}

func TestNarrow_OrBindsOnOneSide(t *testing.T) {
	n, _ := newTestNarrower(t)
	cond := bin(ast.OpBoolOr, call("is_int", v("x")), ast.NewAssign(1, ast.OpNone, v("y"), ast.NewIntLit(1, 1), false))

	pos, err := n.Positive(ctxWith("int|string"), cond)
	require.NoError(t, err)
	y, ok := pos.Variable("y")
	require.True(t, ok)
	assert.True(t, y.Has(scope.PossiblyUndefined))
}

func TestNarrow_ShadowedCheck(t *testing.T) {
	n, cb := newTestNarrower(t)
	require.True(t, cb.AddFunction(&codebase.FunctionDecl{
		FQSEN:     fqsen.NewFunctionName(`\App`, "is_string"),
		Signature: codebase.Signature{RealReturnType: types.BoolUnion()},
	}))
	ctx, err := n.Positive(ctxWith("int|string"), call("is_string", v("x")))
	require.NoError(t, err)
	assert.Equal(t, "int|string", typeOf(t, ctx, "x").String())

	ctx, err = n.Positive(ctxWith("int|string"), call(`\is_string`, v("x")))
	require.NoError(t, err)
	assert.Equal(t, "string", typeOf(t, ctx, "x").String())
}

func TestNarrow_TooDeep(t *testing.T) {
	n, _ := newTestNarrower(t)
	cond := v("x")
	for i := 0; i < MaxConditionDepth+2; i++ {
		cond = not(cond)
	}
	_, err := n.Positive(ctxWith("int"), cond)
	require.Error(t, err)
	assert.Equal(t, ErrConditionTooDeep, errors.Cause(err))
	assert.True(t, resolve.IsHardError(err))
}

func TestNarrow_Ternary(t *testing.T) {
	n, _ := newTestNarrower(t)
	ctx := ctxWith("?string")
	cond := bin(ast.OpNotIdentical, v("x"), constant("null"))

	got, err := n.Resolver().ExpressionType(ctx, ast.NewTernary(1, cond, v("x"), ast.NewStringLit(1, "")))
	require.NoError(t, err)
	assert.False(t, got.ContainsNullable(), got.String())
	assert.True(t, got.HasType(types.String(false)), got.String())
}

func TestTypeCheckRegistry(t *testing.T) {
	reg := NewTypeCheckRegistry()
	c, ok := reg.Lookup(`\IS_STRING`)
	require.True(t, ok)
	assert.Equal(t, "is_string", c.Name)
	_, ok = reg.Lookup("is_foo")
	assert.False(t, ok)
	assert.Contains(t, reg.Names(), "is_double")

	testCases := []struct {
		check    string
		typ      string
		positive string
		negative string
	}{
		{check: "is_numeric", typ: "string|int|array", positive: "int|string", negative: "array|string"},
		{check: "is_numeric", typ: "string", positive: "string", negative: "string"},
		{check: "is_callable", typ: `\Closure|int`, positive: `\Closure`, negative: "int"},
		{check: "is_callable", typ: `string|\App\Foo|int`, positive: `\App\Foo|string`, negative: `\App\Foo|int|string`},
		{check: "is_iterable", typ: `\App\Foo|int`, positive: `\App\Foo`, negative: `\App\Foo|int`},
		{check: "is_string", typ: "mixed", positive: "string", negative: "mixed"},
		{check: "is_array", typ: "iterable", positive: "array", negative: "iterable"},
		{check: "is_scalar", typ: "bool|int|array", positive: "bool|int", negative: "array"},
		{check: "is_object", typ: `?\App\Foo|string`, positive: `\App\Foo`, negative: "string|null"},
		{check: "is_bool", typ: "?bool", positive: "bool", negative: "null"},
	}
	for _, testCase := range testCases {
		c, ok := reg.Lookup(testCase.check)
		require.True(t, ok, testCase.check)
		u := types.MustParse(testCase.typ)
		assert.Equal(t, types.MustParse(testCase.positive).String(), c.Positive(u).String(), testCase.check)
		assert.Equal(t, types.MustParse(testCase.negative).String(), c.Negative(u).String(), testCase.check)
	}
}

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		typ   string
		cond  *ast.Node
		known bool
		value bool
		text  string
	}{
		{typ: "string", cond: call("is_string", v("x")), known: true, value: true, text: "is_string($x)"},
		{typ: "int", cond: call("is_string", v("x")), known: true, value: false, text: "is_string($x)"},
		{typ: "int", cond: not(call("is_string", v("x"))), known: true, value: true, text: "!is_string($x)"},
		{typ: "?string", cond: call("is_string", v("x"))},
		{typ: "mixed", cond: call("is_string", v("x"))},
		{typ: "null", cond: call("is_null", v("x")), known: true, value: true, text: "is_null($x)"},
		{typ: "?int", cond: call("is_null", v("x"))},
		{typ: "int", cond: call("strlen", v("x"))},
	}
	for _, testCase := range testCases {
		n, _ := newTestNarrower(t)
		value, known, text := n.Evaluate(ctxWith(testCase.typ), testCase.cond)
		assert.Equal(t, testCase.known, known, testCase.typ)
		assert.Equal(t, testCase.value, value, testCase.typ)
		assert.Equal(t, testCase.text, text, testCase.typ)
	}
}
