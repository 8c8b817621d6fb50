package resolve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

var (
	fooName    = fqsen.NewClassName(`\App`, "Foo")
	barName    = fqsen.NewClassName(`\App`, "Bar")
	boxName    = fqsen.NewClassName(`\App`, "Box")
	greetsName = fqsen.NewClassName(`\App`, "Greets")
	wavesName  = fqsen.NewClassName(`\App`, "Waves")
)

func method(name string, flags int, ret types.UnionType) *codebase.MethodDecl {
	return &codebase.MethodDecl{Name: name, Flags: flags, Signature: codebase.Signature{RealReturnType: ret}}
}

// newTestCodeBase declares:
//
//	class Foo { public string $name; private int $hidden; const VERSION = '1.0';
//	            const LIST = [self::VERSION, 'k' => 2];
//	            getName(): string; private secret(); protected prot(); static make(): static }
//	class Bar extends Foo {}
//	class Box<T> { get(): T }
//	trait Greets { hello(); foo() }
//	trait Waves { hello() }
func newTestCodeBase(t *testing.T) (*codebase.CodeBase, *codebase.Builtins) {
	t.Helper()
	b, err := codebase.LoadBuiltins()
	require.NoError(t, err)
	cb := codebase.New()
	b.Install(cb)

	foo := codebase.NewClassDecl(fooName, ast.KindClass)
	foo.AddMethod(method("getName", ast.ModPublic, types.StringUnion()))
	foo.AddMethod(method("secret", ast.ModPrivate, types.Empty()))
	foo.AddMethod(method("prot", ast.ModProtected, types.Empty()))
	foo.AddMethod(method("make", ast.ModPublic|ast.ModStatic, types.Of(types.Static(false))))
	foo.AddProperty(&codebase.PropertyDecl{Name: "name", Flags: ast.ModPublic, Type: types.StringUnion()})
	foo.AddProperty(&codebase.PropertyDecl{Name: "hidden", Flags: ast.ModPrivate, Type: types.IntUnion()})
	foo.AddConstant(&codebase.ConstDecl{Name: "VERSION", Flags: ast.ModPublic, Value: ast.NewStringLit(1, "1.0")})
	foo.AddConstant(&codebase.ConstDecl{Name: "LIST", Flags: ast.ModPublic, Value: ast.NewArrayLit(1, []*ast.Node{
		ast.NewArrayItem(1, nil, ast.NewClassConstFetch(1, ast.NewName(1, "self"), "VERSION"), false, false),
		ast.NewArrayItem(1, ast.NewStringLit(1, "k"), ast.NewIntLit(1, 2), false, false),
	})})
	require.True(t, cb.AddClass(foo))

	bar := codebase.NewClassDecl(barName, ast.KindClass)
	bar.Parent = fooName
	require.True(t, cb.AddClass(bar))

	box := codebase.NewClassDecl(boxName, ast.KindClass)
	box.Templates = []string{"T"}
	box.AddMethod(method("get", ast.ModPublic, types.Of(types.Template("T", false))))
	require.True(t, cb.AddClass(box))

	greets := codebase.NewClassDecl(greetsName, ast.KindTrait)
	greets.AddMethod(method("hello", ast.ModPublic, types.StringUnion()))
	greets.AddMethod(method("foo", ast.ModPublic, types.IntUnion()))
	require.True(t, cb.AddClass(greets))

	waves := codebase.NewClassDecl(wavesName, ast.KindTrait)
	waves.AddMethod(method("hello", ast.ModPublic, types.StringUnion()))
	require.True(t, cb.AddClass(waves))
	return cb, b
}

func newTestResolver(t *testing.T, cfg *config.Config) (*Resolver, *codebase.CodeBase, *issue.Collector) {
	t.Helper()
	cb, b := newTestCodeBase(t)
	sink := issue.NewCollector(nil)
	return New(cb, cfg, b, sink), cb, sink
}

func appContext() scope.Context {
	return scope.NewContext("app.json").WithNamespace("App").
		WithVariable(scope.NewVariable("foo", types.Of(types.Class(fooName, nil, false)), 0)).
		WithVariable(scope.NewVariable("maybe", types.Of(types.String(true)), 0)).
		WithVariable(scope.NewVariable("n", types.IntUnion(), 0)).
		WithVariable(scope.NewVariable("box", types.Of(types.Class(boxName, []types.UnionType{types.IntUnion()}, false)), 0))
}

func requireIssue(t *testing.T, err error, kind issue.Kind) *IssueError {
	t.Helper()
	require.Error(t, err)
	ie, ok := AsIssueError(err)
	require.True(t, ok, "not an issue: %v", err)
	require.Equal(t, kind, ie.Kind, ie.Error())
	return ie
}

func TestFunction_GlobalFallback(t *testing.T) {
	ctx := scope.NewContext("a.json").WithNamespace("App")
	call := ast.NewCall(3, ast.NewName(3, "strlen"), nil)

	r, _, _ := newTestResolver(t, nil)
	f, err := r.Function(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, `\strlen`, f.FQSEN.String())

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatGlobalFallback, false)
	r, _, _ = newTestResolver(t, cfg)
	_, err = r.Function(ctx, call)
	ie := requireIssue(t, err, issue.UndeclaredFunction)
	assert.Equal(t, `\App\strlen`, fmt.Sprint(ie.Args[0]))

	_, err = r.Function(ctx, ast.NewCall(4, ast.NewName(4, `\strlen`), nil))
	assert.NoError(t, err)
}

func TestFunction_Suggestion(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	_, err := r.Function(scope.NewContext("a.json"), ast.NewCall(1, ast.NewName(1, "strlne"), nil))
	ie := requireIssue(t, err, issue.UndeclaredFunction)
	assert.Equal(t, "strlen", ie.Suggestion)
}

func TestMethod_Visibility(t *testing.T) {
	testCases := []struct {
		name    string
		class   fqsen.ClassName
		method  string
		want    issue.Kind
		wantErr bool
		suggest string
	}{
		{name: "public from outside", method: "getName"},
		{name: "private from outside", method: "secret", want: issue.AccessPrivateMethod, wantErr: true},
		{name: "protected from outside", method: "prot", want: issue.AccessProtectedMethod, wantErr: true},
		{name: "protected from subclass", class: barName, method: "prot"},
		{name: "private from subclass", class: barName, method: "secret", want: issue.AccessPrivateMethod, wantErr: true},
		{name: "private from own class", class: fooName, method: "secret"},
		{name: "case insensitive", method: "GETNAME"},
		{name: "typo", method: "getNmae", want: issue.UndeclaredMethod, wantErr: true, suggest: "getName"},
	}
	r, _, _ := newTestResolver(t, nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := appContext()
			if !tc.class.IsZero() {
				ctx = ctx.WithClass(tc.class)
			}
			m, err := r.Method(ctx, ast.NewMethodCall(5, ast.NewVariable(5, "foo"), tc.method, nil, false))
			if !tc.wantErr {
				require.NoError(t, err)
				require.NotNil(t, m)
				assert.Equal(t, fooName, m.DefiningClass)
				return
			}
			ie := requireIssue(t, err, tc.want)
			assert.Equal(t, 5, ie.Line)
			assert.Equal(t, tc.suggest, ie.Suggestion)
		})
	}
}

func TestMethod_Receivers(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext().WithVariable(scope.NewVariable("m", types.MixedUnion(), 0))

	_, err := r.Method(ctx, ast.NewMethodCall(1, ast.NewVariable(1, "n"), "x", nil, false))
	requireIssue(t, err, issue.NonClassMethodCall)

	m, err := r.Method(ctx, ast.NewMethodCall(1, ast.NewVariable(1, "m"), "x", nil, false))
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = r.Method(ctx, ast.NewMethodCall(1, ast.NewNew(1, ast.NewName(1, "Bar"), nil), "getName", nil, false))
	require.NoError(t, err)
	assert.Equal(t, "getName", m.Name)
}

func TestMethod_Static(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext()

	m, err := r.Method(ctx, ast.NewStaticCall(1, ast.NewName(1, "Foo"), "make", nil))
	require.NoError(t, err)
	assert.True(t, m.IsStatic())

	_, err = r.Method(ctx, ast.NewStaticCall(1, ast.NewName(1, "Foo"), "getName", nil))
	requireIssue(t, err, issue.StaticCallToNonStatic)

	_, err = r.Method(ctx.WithClass(barName), ast.NewStaticCall(1, ast.NewName(1, "parent"), "getName", nil))
	assert.NoError(t, err)

	_, err = r.Method(ctx.WithClass(fooName), ast.NewStaticCall(1, ast.NewName(1, "parent"), "getName", nil))
	requireIssue(t, err, issue.UndeclaredClass)

	_, err = r.Method(ctx, ast.NewStaticCall(1, ast.NewName(1, "self"), "make", nil))
	requireIssue(t, err, issue.ContextNotClass)

	_, err = r.Method(ctx, ast.NewStaticCall(1, ast.NewName(1, "Fo"), "make", nil))
	ie := requireIssue(t, err, issue.UndeclaredClass)
	assert.Equal(t, `\App\Foo`, ie.Suggestion)
}

func TestProperty(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext()

	p, err := r.Property(ctx, ast.NewPropFetch(1, ast.NewVariable(1, "foo"), "name", false), false)
	require.NoError(t, err)
	assert.True(t, p.Type.Equal(types.StringUnion()))

	_, err = r.Property(ctx, ast.NewPropFetch(1, ast.NewVariable(1, "foo"), "hidden", false), false)
	requireIssue(t, err, issue.AccessPrivateProperty)

	_, err = r.Property(ctx, ast.NewPropFetch(1, ast.NewVariable(1, "foo"), "nmae", false), false)
	ie := requireIssue(t, err, issue.UndeclaredProperty)
	assert.Equal(t, "name", ie.Suggestion)

	_, err = r.Property(ctx, ast.NewStaticPropFetch(1, ast.NewName(1, "Foo"), "name"), false)
	requireIssue(t, err, issue.UndeclaredStaticProperty)

	std := ctx.WithVariable(scope.NewVariable("o", types.Of(types.Class(fqsen.ParseClassName(`\stdClass`), nil, false)), 0))
	p, err = r.Property(std, ast.NewPropFetch(1, ast.NewVariable(1, "o"), "anything", false), true)
	require.NoError(t, err)
	assert.True(t, p.Dynamic)

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatDynamicProperties, true)
	r, _, _ = newTestResolver(t, cfg)
	p, err = r.Property(ctx, ast.NewPropFetch(1, ast.NewVariable(1, "foo"), "extra", false), true)
	require.NoError(t, err)
	assert.True(t, p.Dynamic)
}

func TestClassConstant(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext()

	k, err := r.ClassConstant(ctx, ast.NewClassConstFetch(1, ast.NewName(1, "Bar"), "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, fooName, k.DefiningClass)

	k, err = r.ClassConstant(ctx, ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "class"))
	require.NoError(t, err)
	assert.True(t, k.Type.Equal(types.Of(types.LiteralString(`App\Foo`, false))))

	_, err = r.ClassConstant(ctx, ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "VERSON"))
	ie := requireIssue(t, err, issue.UndeclaredConstant)
	assert.Equal(t, "VERSION", ie.Suggestion)

	_, err = r.ClassConstant(ctx, ast.NewClassConstFetch(1, ast.NewName(1, "Nope"), "X"))
	requireIssue(t, err, issue.UndeclaredClassConstant)
}

func TestVariable(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext()

	_, err := r.Variable(ctx, ast.NewVariable(1, "this"))
	requireIssue(t, err, issue.UndeclaredThis)

	inMethod := ctx.WithClass(fooName).WithFunction(fqsen.NewMethodName(fooName, "getName"))
	v, err := r.Variable(inMethod, ast.NewVariable(1, "this"))
	require.NoError(t, err)
	assert.True(t, v.Type.Equal(types.Of(types.Class(fooName, nil, false))))

	inStatic := ctx.WithClass(fooName).WithFunction(fqsen.NewMethodName(fooName, "make"))
	_, err = r.Variable(inStatic, ast.NewVariable(1, "this"))
	requireIssue(t, err, issue.UndeclaredThis)

	v, err = r.Variable(ctx, ast.NewVariable(1, "_GET"))
	require.NoError(t, err)
	assert.Equal(t, "array<string,mixed>", v.Type.String())

	_, err = r.Variable(ctx, ast.NewVariable(1, "mabye"))
	ie := requireIssue(t, err, issue.UndeclaredVariable)
	assert.Equal(t, "$maybe", ie.Suggestion)

	ctx = ctx.WithVariable(scope.NewVariable("late", types.IntUnion(), scope.PossiblyUndefined))
	v, err = r.Variable(ctx, ast.NewVariable(1, "late"))
	requireIssue(t, err, issue.PossiblyUndefinedVariable)
	assert.NotNil(t, v)
}

func TestReport(t *testing.T) {
	r, _, sink := newTestResolver(t, nil)
	ctx := appContext().WithLine(9)

	_, err := r.Variable(ctx, ast.NewVariable(0, "nope"))
	assert.NoError(t, r.Report(ctx, err))
	require.Equal(t, 1, sink.Len())
	is := sink.Issues()[0]
	assert.Equal(t, issue.UndeclaredVariable, is.Kind)
	assert.Equal(t, "app.json", is.File)
	assert.Equal(t, 9, is.Line)

	hard := fmt.Errorf("wrapped: %w", types.ErrRecursionDepthExceeded)
	assert.Equal(t, hard, r.Report(ctx, hard))
	assert.True(t, IsHardError(hard))
	assert.False(t, IsHardError(err))

	r.Quiet().Emit(ctx, issue.UndeclaredClass, 0, "X")
	assert.Equal(t, 1, sink.Len())
}

func TestTraitAdaptations(t *testing.T) {
	testCases := []struct {
		name   string
		traits []fqsen.ClassName
		rule   codebase.TraitRule
		lookup string
		want   fqsen.ClassName
		vis    codebase.Visibility
		errs   []issue.Kind
	}{
		{
			name:   "insteadof picks the winner",
			traits: []fqsen.ClassName{greetsName, wavesName},
			rule:   codebase.TraitRule{Kind: codebase.TraitPrecedenceRule, Trait: wavesName, Method: "hello", InsteadOf: []fqsen.ClassName{greetsName}},
			lookup: "hello",
			want:   wavesName,
		},
		{
			name:   "alias without trait",
			traits: []fqsen.ClassName{greetsName},
			rule:   codebase.TraitRule{Kind: codebase.TraitAliasRule, Method: "hello", Alias: "greet"},
			lookup: "greet",
			want:   greetsName,
		},
		{
			name:   "visibility change hides the original",
			traits: []fqsen.ClassName{greetsName},
			rule:   codebase.TraitRule{Kind: codebase.TraitAliasRule, Method: "foo", Alias: "foo", Flags: ast.ModPrivate},
			lookup: "foo",
			want:   greetsName,
			vis:    codebase.Private,
		},
		{
			name:   "ambiguous alias",
			traits: []fqsen.ClassName{greetsName, wavesName},
			rule:   codebase.TraitRule{Kind: codebase.TraitAliasRule, Method: "hello", Alias: "hi"},
			lookup: "hello",
			want:   greetsName,
			errs:   []issue.Kind{issue.AmbiguousTraitAlias},
		},
		{
			name:   "alias of unknown method",
			traits: []fqsen.ClassName{greetsName},
			rule:   codebase.TraitRule{Kind: codebase.TraitAliasRule, Trait: greetsName, Method: "nope", Alias: "x"},
			lookup: "hello",
			want:   greetsName,
			errs:   []issue.Kind{issue.TraitAliasUnknownMethod},
		},
		{
			name:   "precedence of trait not in use",
			traits: []fqsen.ClassName{greetsName},
			rule:   codebase.TraitRule{Kind: codebase.TraitPrecedenceRule, Trait: wavesName, Method: "hello", InsteadOf: []fqsen.ClassName{greetsName}},
			lookup: "hello",
			want:   greetsName,
			errs:   []issue.Kind{issue.UndeclaredTrait},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, cb, _ := newTestResolver(t, nil)
			c := codebase.NewClassDecl(fqsen.NewClassName(`\App`, "User"), ast.KindClass)
			c.Traits = tc.traits
			c.TraitRules = []codebase.TraitRule{tc.rule}
			require.True(t, cb.AddClass(c))

			entries, errs := r.TraitAdaptations(c)
			var kinds []issue.Kind
			for _, e := range errs {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, tc.errs, kinds)
			c.SetAdaptations(entries)

			m, err := r.FindMethod(c, tc.lookup)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tc.want, m.Trait)
			assert.Equal(t, c.FQSEN, m.DefiningClass)
			assert.Equal(t, tc.vis, m.Visibility())
		})
	}
}

func TestTraitAdaptations_Entries(t *testing.T) {
	r, cb, _ := newTestResolver(t, nil)
	c := codebase.NewClassDecl(fqsen.NewClassName(`\App`, "User"), ast.KindClass)
	c.Traits = []fqsen.ClassName{greetsName, wavesName}
	c.TraitRules = []codebase.TraitRule{
		{Kind: codebase.TraitPrecedenceRule, Trait: wavesName, Method: "hello", InsteadOf: []fqsen.ClassName{greetsName}},
		{Kind: codebase.TraitAliasRule, Trait: greetsName, Method: "foo", Alias: "bar", Line: 4},
	}
	require.True(t, cb.AddClass(c))

	entries, errs := r.TraitAdaptations(c)
	require.Empty(t, errs)
	require.Len(t, entries, 2)
	greets, waves := entries[0], entries[1]
	assert.Equal(t, greetsName, greets.Trait)
	assert.Equal(t, wavesName, waves.Trait)

	// the loser of insteadof no longer contributes hello, the winner keeps it
	assert.True(t, greets.IsHidden("hello"))
	assert.True(t, greets.IsHidden("HELLO"))
	assert.False(t, waves.IsHidden("hello"))

	// a renaming alias adds a name without hiding the original
	assert.False(t, greets.IsHidden("foo"))
	alias, ok := greets.Alias("BAR")
	require.True(t, ok)
	assert.Equal(t, codebase.AliasMethod{Original: "foo", Line: 4}, alias)
	assert.Equal(t, []string{"bar"}, greets.Aliases())
	assert.Empty(t, waves.Aliases())

	c.SetAdaptations(entries)
	for _, name := range []string{"foo", "bar"} {
		m, err := r.FindMethod(c, name)
		require.NoError(t, err)
		require.NotNil(t, m, name)
		assert.Equal(t, greetsName, m.Trait, name)
	}
}

func TestFindMethod_Cycle(t *testing.T) {
	r, cb, _ := newTestResolver(t, nil)
	a := codebase.NewClassDecl(fqsen.ParseClassName(`\A`), ast.KindClass)
	a.Parent = fqsen.ParseClassName(`\B`)
	b := codebase.NewClassDecl(fqsen.ParseClassName(`\B`), ast.KindClass)
	b.Parent = a.FQSEN
	cb.AddClass(a)
	cb.AddClass(b)

	_, err := r.FindMethod(a, "missing")
	require.Error(t, err)
	assert.True(t, IsHardError(err))
}

func TestEquivalentValue(t *testing.T) {
	r, _, _ := newTestResolver(t, nil)
	ctx := appContext()

	testCases := []struct {
		name string
		node *ast.Node
		want string
		ok   bool
	}{
		{"int", ast.NewIntLit(1, 4), "4", true},
		{"negative", ast.NewUnaryOp(1, ast.OpUnaryMinus, ast.NewIntLit(1, 4)), "-4", true},
		{"concat", ast.NewBinaryOp(1, ast.OpConcat, ast.NewStringLit(1, "a"), ast.NewIntLit(1, 1)), `"a1"`, true},
		{"keyword", ast.NewConstFetch(1, ast.NewName(1, "NULL")), "null", true},
		{"class constant", ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "VERSION"), `"1.0"`, true},
		{"self inside constant", ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "LIST"), `[0 => "1.0", "k" => 2]`, true},
		{"numeric string key", ast.NewArrayLit(1, []*ast.Node{
			ast.NewArrayItem(1, ast.NewStringLit(1, "5"), ast.NewIntLit(1, 1), false, false),
			ast.NewArrayItem(1, nil, ast.NewIntLit(1, 2), false, false),
		}), "[5 => 1, 6 => 2]", true},
		{"variable", ast.NewVariable(1, "n"), "", false},
		{"arithmetic", ast.NewBinaryOp(1, ast.OpPlus, ast.NewIntLit(1, 1), ast.NewIntLit(1, 1)), "", false},
		{"undeclared constant", ast.NewConstFetch(1, ast.NewName(1, "NOPE")), "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := r.EquivalentValue(ctx, tc.node)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, v.String())
			}
		})
	}
}

func TestParseDoc(t *testing.T) {
	d := ParseDoc(`/**
	 * Does things.
	 * @template T
	 * @param array<string, int> $map the map
	 * @psalm-param ?Foo ...$rest
	 * @return T|null
	 * @var int $count
	 */`)
	assert.Equal(t, []string{"T"}, d.Templates)
	assert.Equal(t, map[string]string{"map": "array<string, int>", "rest": "?Foo"}, d.Params)
	assert.Equal(t, "T|null", d.Return)
	assert.Equal(t, "int", d.Var)
	assert.Equal(t, "count", d.VarName)

	assert.Equal(t, Doc{}, ParseDoc(""))
}

func TestDocType(t *testing.T) {
	r, _, sink := newTestResolver(t, nil)
	ctx := appContext().WithClass(barName)

	got := r.DocType(ctx, 2, "?Foo", nil)
	assert.True(t, got.Equal(types.Of(types.Class(fooName, nil, true))), got.String())

	got = r.DocType(ctx, 2, "parent[]", nil)
	assert.True(t, got.Equal(types.Of(types.GenericArray(types.Class(fooName, nil, false), types.KeyMixed, false))), got.String())

	got = r.DocType(ctx, 3, "array{", nil)
	assert.True(t, got.IsEmpty())
	require.Equal(t, 1, sink.Len())
	assert.Equal(t, issue.InvalidPHPDocType, sink.Issues()[0].Kind)
	assert.Equal(t, 3, sink.Issues()[0].Line)
}

func TestExpressionType(t *testing.T) {
	lit := func(v int64) *types.Type { return types.LiteralInt(v, false) }
	str := func(s string) *types.Type { return types.LiteralString(s, false) }
	v := func(name string) *ast.Node { return ast.NewVariable(1, name) }
	shapeLit := ast.NewArrayLit(1, []*ast.Node{
		ast.NewArrayItem(1, nil, ast.NewIntLit(1, 1), false, false),
		ast.NewArrayItem(1, ast.NewStringLit(1, "a"), ast.NewStringLit(1, "x"), false, false),
	})

	testCases := []struct {
		name string
		node *ast.Node
		want types.UnionType
	}{
		{"folded addition", ast.NewBinaryOp(1, ast.OpPlus, ast.NewIntLit(1, 1), ast.NewIntLit(1, 2)), types.Of(lit(3))},
		{"int product", ast.NewBinaryOp(1, ast.OpMul, v("n"), ast.NewIntLit(1, 2)), types.IntUnion()},
		{"division", ast.NewBinaryOp(1, ast.OpDiv, v("n"), ast.NewIntLit(1, 2)), types.Of(types.Int(false), types.Float(false))},
		{"float sum", ast.NewBinaryOp(1, ast.OpPlus, v("n"), ast.NewFloatLit(1, 0.5)), types.FloatUnion()},
		{"concat", ast.NewBinaryOp(1, ast.OpConcat, ast.NewStringLit(1, "a"), v("n")), types.StringUnion()},
		{"comparison", ast.NewBinaryOp(1, ast.OpSmaller, v("n"), ast.NewIntLit(1, 2)), types.BoolUnion()},
		{"negation", ast.NewUnaryOp(1, ast.OpNot, v("n")), types.BoolUnion()},
		{"unary minus", ast.NewUnaryOp(1, ast.OpUnaryMinus, ast.NewIntLit(1, 5)), types.Of(lit(-5))},
		{"shape literal", shapeLit, types.Of(types.ArrayShape([]types.ShapeField{
			{Key: "0", Type: types.Of(lit(1))},
			{Key: "a", Type: types.Of(str("x"))},
		}, false))},
		{"empty array", ast.NewArrayLit(1, nil), types.Of(types.EmptyArray(false))},
		{"list of variables", ast.NewArrayLit(1, []*ast.Node{
			ast.NewArrayItem(1, v("n"), v("n"), false, false),
		}), types.Of(types.GenericArray(types.Int(false), types.KeyMixed, false))},
		{"shape field", ast.NewDim(1, shapeLit, ast.NewStringLit(1, "a")), types.Of(str("x"))},
		{"superglobal element", ast.NewDim(1, v("_GET"), ast.NewStringLit(1, "q")), types.MixedUnion()},
		{"method", ast.NewMethodCall(1, v("foo"), "getName", nil, false), types.StringUnion()},
		{"nullsafe method", ast.NewMethodCall(1, v("foo"), "getName", nil, true), types.Of(types.String(false), types.Null())},
		{"template method", ast.NewMethodCall(1, v("box"), "get", nil, false), types.IntUnion()},
		{"property", ast.NewPropFetch(1, v("foo"), "name", false), types.StringUnion()},
		{"static factory", ast.NewStaticCall(1, ast.NewName(1, "Bar"), "make", nil), types.Of(types.Class(barName, nil, false))},
		{"new", ast.NewNew(1, ast.NewName(1, "Foo"), nil), types.Of(types.Class(fooName, nil, false))},
		{"class name", ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "class"), types.Of(str(`App\Foo`))},
		{"class constant", ast.NewClassConstFetch(1, ast.NewName(1, "Foo"), "VERSION"), types.Of(str("1.0"))},
		{"function", ast.NewCall(1, ast.NewName(1, "strlen"), []*ast.Node{v("maybe")}), types.IntUnion()},
		{"coalesce", ast.NewBinaryOp(1, ast.OpCoalesce, v("maybe"), ast.NewIntLit(1, 1)), types.Of(types.String(false), lit(1))},
		{"cast", ast.NewCast(1, "int", v("maybe")), types.IntUnion()},
		{"ternary", ast.NewTernary(1, v("n"), ast.NewStringLit(1, "a"), ast.NewStringLit(1, "b")), types.Of(str("a"), str("b"))},
		{"short ternary", ast.NewTernary(1, v("maybe"), nil, ast.NewIntLit(1, 0)), types.Of(types.String(false), lit(0))},
		{"assignment", ast.NewAssign(1, ast.OpNone, v("x"), ast.NewIntLit(1, 7), false), types.Of(lit(7))},
		{"increment", ast.NewUnaryOp(1, ast.OpPostInc, v("n")), types.IntUnion()},
		{"keyword constant", ast.NewConstFetch(1, ast.NewName(1, "true")), types.Of(types.True(false))},
		{"builtin constant", ast.NewConstFetch(1, ast.NewName(1, "PHP_EOL")), types.StringUnion()},
	}
	r, _, sink := newTestResolver(t, nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.ExpressionType(appContext(), tc.node)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
	assert.Zero(t, sink.Len(), "%v", sink.Issues())
}

func TestExpressionType_ReportsAndContinues(t *testing.T) {
	r, _, sink := newTestResolver(t, nil)
	ctx := appContext()

	node := ast.NewBinaryOp(1, ast.OpConcat,
		ast.NewMethodCall(2, ast.NewVariable(2, "foo"), "nope", nil, false),
		ast.NewVariable(3, "missing"))
	got, err := r.ExpressionType(ctx, node)
	require.NoError(t, err)
	assert.True(t, got.Equal(types.StringUnion()))

	var kinds []issue.Kind
	for _, is := range sink.Issues() {
		kinds = append(kinds, is.Kind)
	}
	assert.Equal(t, []issue.Kind{issue.UndeclaredMethod, issue.UndeclaredVariable}, kinds)

	got, err = r.ExpressionType(ctx, ast.NewBinaryOp(1, ast.OpCoalesce, ast.NewVariable(1, "unset"), ast.NewIntLit(1, 1)))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 2, sink.Len())
}
