package typeChecker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/codebase"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/types"
)

type source struct {
	name  string
	stmts []*ast.Node
}

type result struct {
	issues []issue.Issue
	dump   string
	errs   []error
}

func run(t *testing.T, sources ...source) result {
	t.Helper()
	b, err := codebase.LoadBuiltins()
	require.NoError(t, err)
	cb := codebase.New()
	b.Install(cb)

	sink := issue.NewCollector(nil)
	tc := NewTypeChecker(cb, b, nil, sink)
	var dump strings.Builder
	tc.SetDumpTypes(&dump)

	roots := make([]*ast.Node, len(sources))
	for i, s := range sources {
		roots[i] = ast.NewFile(s.stmts)
		tc.Collect(s.name, roots[i])
	}
	tc.Finalize()

	var res result
	for i, s := range sources {
		if err := tc.Analyze(s.name, roots[i]); err != nil {
			res.errs = append(res.errs, err)
		}
	}
	res.issues = sink.Issues()
	res.dump = dump.String()
	return res
}

func summary(issues []issue.Issue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, fmt.Sprintf("%s:%d %s", is.File, is.Line, is.Kind))
	}
	return out
}

func variable(line int, name string) *ast.Node { return ast.NewVariable(line, name) }
func str(line int, s string) *ast.Node           { return ast.NewStringLit(line, s) }
func num(line int, n int64) *ast.Node            { return ast.NewIntLit(line, n) }

func typeRef(line int, text string) *ast.Node {
	if text == "" {
		return nil
	}
	return ast.NewTypeRef(line, text)
}

func param(line int, name, typ string) *ast.Node {
	return ast.NewParam(line, ast.ParamNode{Name: name, Type: typeRef(line, typ)})
}

func function(line int, name string, params []*ast.Node, ret string, body ...*ast.Node) *ast.Node {
	return ast.NewFunction(line, ast.FunctionNode{Name: name, Params: params, ReturnType: typeRef(line, ret), Body: ast.NewBlock(line, body)})
}

func method(line int, name string, params []*ast.Node, ret string, body ...*ast.Node) *ast.Node {
	return ast.NewMethod(line, ast.MethodNode{Name: name, Flags: ast.ModPublic, Params: params, ReturnType: typeRef(line, ret), Body: ast.NewBlock(line, body)})
}

func call(line int, name string, args ...*ast.Node) *ast.Node {
	return ast.NewCall(line, ast.NewName(line, name), args)
}

func assign(line int, target, value *ast.Node) *ast.Node {
	return ast.NewExprStmt(line, ast.NewAssign(line, ast.OpNone, target, value, false))
}

func ret(line int, expr *ast.Node) *ast.Node { return ast.NewReturn(line, expr) }

func block(line int, stmts ...*ast.Node) *ast.Node { return ast.NewBlock(line, stmts) }

func TestAnalyze(t *testing.T) {
	testCases := []struct {
		name  string
		stmts []*ast.Node
		want  []string
	}{
		{
			name:  "ReturnMismatch",
			stmts: []*ast.Node{function(1, "f", nil, "int", ret(2, str(2, "x")))},
			want:  []string{"a.json:2 TypeMismatchReturn"},
		},
		{
			name:  "NullableToExplicitNull",
			stmts: []*ast.Node{function(1, "f", []*ast.Node{param(1, "x", "?int")}, "int|null", ret(2, variable(2, "x")))},
		},
		{
			name:  "NullableClassToExplicitNull",
			stmts: []*ast.Node{function(1, "f", []*ast.Node{param(1, "x", `?\Countable`)}, `\Countable|null`, ret(2, variable(2, "x")))},
		},
		{
			name: "NullCheckNarrows",
			stmts: []*ast.Node{
				function(1, "g", []*ast.Node{param(1, "s", "?string")}, "string",
					ast.NewIf(2, ast.NewBinaryOp(2, ast.OpIdentical, variable(2, "s"), ast.NewConstFetch(2, ast.NewName(2, "null"))),
						block(2, ret(3, str(3, ""))), nil),
					ret(5, variable(5, "s"))),
			},
		},
		{
			name: "TypeCheckNarrows",
			stmts: []*ast.Node{
				function(1, "h", []*ast.Node{param(1, "v", "int|string")}, "string",
					ast.NewIf(2, call(2, "is_string", variable(2, "v")), block(2, ret(3, variable(3, "v"))), nil),
					ret(5, str(5, "n"))),
			},
		},
		{
			name: "PossiblyUndefinedAfterIf",
			stmts: []*ast.Node{
				function(1, "u", []*ast.Node{param(1, "b", "bool")}, "",
					ast.NewIf(2, variable(2, "b"), block(2, assign(3, variable(3, "x"), num(3, 1))), nil),
					ast.NewEcho(5, []*ast.Node{variable(5, "x")})),
			},
			want: []string{"a.json:5 PossiblyUndefinedVariable"},
		},
		{
			name: "DefinedOnBothBranches",
			stmts: []*ast.Node{
				function(1, "u", []*ast.Node{param(1, "b", "bool")}, "",
					ast.NewIf(2, variable(2, "b"),
						block(2, assign(3, variable(3, "x"), num(3, 1))),
						block(4, assign(5, variable(5, "x"), num(5, 2)))),
					ast.NewEcho(7, []*ast.Node{variable(7, "x")})),
			},
		},
		{
			name: "RedundantCheck",
			stmts: []*ast.Node{
				function(1, "w", []*ast.Node{param(1, "s", "string")}, "",
					ast.NewIf(2, call(2, "is_string", variable(2, "s")), block(2), nil)),
			},
			want: []string{"a.json:2 RedundantCondition"},
		},
		{
			name: "ImpossibleCheck",
			stmts: []*ast.Node{
				function(1, "w", []*ast.Node{param(1, "n", "int")}, "",
					ast.NewIf(2, call(2, "is_string", variable(2, "n")), block(2), nil)),
			},
			want: []string{"a.json:2 ImpossibleCondition"},
		},
		{
			name: "BuiltinArguments",
			stmts: []*ast.Node{
				ast.NewExprStmt(1, call(1, "strlen")),
				ast.NewExprStmt(2, call(2, "strlen", ast.NewArrayLit(2, nil))),
				ast.NewExprStmt(3, call(3, "strlen", str(3, "ok"))),
			},
			want: []string{"a.json:1 TooFewArguments", "a.json:2 TypeMismatchArgument"},
		},
		{
			name:  "UndeclaredParent",
			stmts: []*ast.Node{ast.NewClass(1, ast.ClassNode{Name: "A", Extends: ast.NewName(1, "Missing")})},
			want:  []string{"a.json:1 UndeclaredExtendedClass"},
		},
		{
			name: "PropertyMismatch",
			stmts: []*ast.Node{
				ast.NewClass(1, ast.ClassNode{Name: "P", Stmts: []*ast.Node{
					ast.NewProperty(2, "n", ast.ModPublic, typeRef(2, "int"), nil),
					method(3, "set", nil, "",
						assign(4, ast.NewPropFetch(4, variable(4, "this"), "n", false), str(4, "s")),
						assign(5, ast.NewPropFetch(5, variable(5, "this"), "n", false), num(5, 3))),
				}}),
			},
			want: []string{"a.json:4 TypeMismatchProperty"},
		},
		{
			name: "ConstructorArguments",
			stmts: []*ast.Node{
				ast.NewClass(1, ast.ClassNode{Name: "K", Stmts: []*ast.Node{
					method(2, "__construct", []*ast.Node{param(2, "a", "int")}, ""),
				}}),
				ast.NewExprStmt(4, ast.NewNew(4, ast.NewName(4, "K"), []*ast.Node{str(4, "s")})),
				ast.NewExprStmt(5, ast.NewNew(5, ast.NewName(5, "K"), nil)),
				ast.NewExprStmt(6, ast.NewNew(6, ast.NewName(6, "K"), []*ast.Node{num(6, 1)})),
			},
			want: []string{"a.json:4 TypeMismatchArgument", "a.json:5 TooFewArguments"},
		},
		{
			name: "DefinedConstant",
			stmts: []*ast.Node{
				ast.NewExprStmt(1, call(1, "define", str(1, "LIMIT"), num(1, 10))),
				function(2, "lim", nil, "string", ret(3, ast.NewConstFetch(3, ast.NewName(3, "LIMIT")))),
			},
			want: []string{"a.json:3 TypeMismatchReturn"},
		},
		{
			name: "AmbiguousAlias",
			stmts: []*ast.Node{
				ast.NewClass(1, ast.ClassNode{Name: "T1", Kind: ast.KindTrait, Stmts: []*ast.Node{method(2, "hello", nil, "")}}),
				ast.NewClass(3, ast.ClassNode{Name: "T2", Kind: ast.KindTrait, Stmts: []*ast.Node{method(4, "hello", nil, "")}}),
				ast.NewClass(5, ast.ClassNode{Name: "C", Stmts: []*ast.Node{
					ast.NewTraitUse(6,
						[]*ast.Node{ast.NewName(6, "T1"), ast.NewName(6, "T2")},
						[]*ast.Node{ast.NewTraitAlias(7, nil, "hello", "greet", 0)}),
				}}),
			},
			want: []string{"a.json:7 AmbiguousTraitAlias"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			res := run(t, source{name: "a.json", stmts: testCase.stmts})
			assert.Empty(t, res.errs)
			assert.Equal(t, testCase.want, summary(res.issues))
		})
	}
}

func TestAnalyze_MethodSuggestion(t *testing.T) {
	res := run(t, source{name: "a.json", stmts: []*ast.Node{
		ast.NewClass(1, ast.ClassNode{Name: "U", Stmts: []*ast.Node{
			method(2, "getName", nil, "string", ret(2, str(2, "u"))),
		}}),
		assign(4, variable(4, "u"), ast.NewNew(4, ast.NewName(4, "U"), nil)),
		ast.NewExprStmt(5, ast.NewMethodCall(5, variable(5, "u"), "getNme", nil, false)),
	}})

	require.Len(t, res.issues, 1)
	is := res.issues[0]
	assert.Equal(t, issue.UndeclaredMethod, is.Kind)
	assert.Equal(t, 5, is.Line)
	assert.Equal(t, []string{`\U::getNme`}, is.Args)
	assert.Equal(t, "getName", is.Suggestion)
}

func TestAnalyze_CycleAborts(t *testing.T) {
	res := run(t, source{name: "a.json", stmts: []*ast.Node{
		ast.NewClass(1, ast.ClassNode{Name: "A", Extends: ast.NewName(1, "B")}),
		ast.NewClass(2, ast.ClassNode{Name: "B", Extends: ast.NewName(2, "A")}),
		ast.NewExprStmt(3, ast.NewNew(3, ast.NewName(3, "A"), nil)),
		ast.NewExprStmt(4, call(4, "strlen")),
	}})

	require.Len(t, res.errs, 1)
	assert.ErrorIs(t, res.errs[0], types.ErrRecursionDepthExceeded)
	assert.Contains(t, summary(res.issues), "a.json:3 AnalysisAborted")
	assert.NotContains(t, summary(res.issues), "a.json:4 TooFewArguments")
}

func TestAnalyze_CrossFileImports(t *testing.T) {
	user := source{name: "a.json", stmts: []*ast.Node{
		ast.NewNamespace(1, "App", nil),
		ast.NewClass(2, ast.ClassNode{Name: "User", Stmts: []*ast.Node{
			method(3, "name", nil, "string", ret(3, str(3, "n"))),
		}}),
	}}
	caller := source{name: "b.json", stmts: []*ast.Node{
		ast.NewNamespace(1, "Other", nil),
		ast.NewUse(2, ast.UseClass, []ast.UseItem{{Name: `App\User`}}),
		function(3, "f", []*ast.Node{param(3, "u", "User")}, "int",
			ret(4, ast.NewMethodCall(4, variable(4, "u"), "name", nil, false))),
		function(6, "g", []*ast.Node{param(6, "u", "User")}, "string",
			ret(7, ast.NewMethodCall(7, variable(7, "u"), "name", nil, false))),
	}}

	res := run(t, user, caller)
	assert.Empty(t, res.errs)
	assert.Equal(t, []string{"b.json:4 TypeMismatchReturn"}, summary(res.issues))
	assert.Equal(t, []string{"string", `\Other\f`, "int"}, res.issues[0].Args)
}

func TestAnalyze_DumpTypes(t *testing.T) {
	testCases := []struct {
		name  string
		stmts []*ast.Node
		want  []string
	}{
		{
			name: "UnsetShapeField",
			stmts: []*ast.Node{
				function(1, "shape", nil, "",
					assign(2, variable(2, "a"), ast.NewArrayLit(2, []*ast.Node{
						ast.NewArrayItem(2, str(2, "x"), num(2, 1), false, false),
						ast.NewArrayItem(2, str(2, "y"), str(2, "s"), false, false),
					})),
					ast.NewUnset(3, []*ast.Node{ast.NewDim(3, variable(3, "a"), str(3, "x"))})),
			},
			want: []string{"  $a: " + types.Of(types.ArrayShape([]types.ShapeField{
				{Key: "y", Type: types.Of(types.LiteralString("s", false))},
			}, false)).String()},
		},
		{
			name: "InlineVarDoc",
			stmts: []*ast.Node{
				function(1, "decoded", []*ast.Node{param(1, "s", "string")}, "", func() *ast.Node {
					n := assign(3, variable(3, "n"), call(3, "json_decode", variable(3, "s")))
					n.Doc = "/** @var int $n */"
					return n
				}()),
			},
			want: []string{"  $n: int"},
		},
		{
			name: "ForeachOverList",
			stmts: []*ast.Node{func() *ast.Node {
				n := function(2, "each", []*ast.Node{param(2, "xs", "array")}, "",
					ast.NewForeach(3, variable(3, "xs"), variable(3, "k"), variable(3, "x"), block(3), false))
				n.Doc = "/** @param list<string> $xs */"
				return n
			}()},
			want: []string{"  $x: string", "  $k: int"},
		},
		{
			name: "IncrementDropsLiteral",
			stmts: []*ast.Node{
				function(1, "bump", nil, "",
					assign(2, variable(2, "i"), num(2, 0)),
					ast.NewExprStmt(3, ast.NewUnaryOp(3, ast.OpPostInc, variable(3, "i")))),
			},
			want: []string{"  $i: int\n"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			res := run(t, source{name: "a.json", stmts: testCase.stmts})
			assert.Empty(t, res.errs)
			assert.Empty(t, summary(res.issues))
			for _, want := range testCase.want {
				assert.Contains(t, res.dump, want)
			}
		})
	}
}
