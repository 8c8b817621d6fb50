// Package narrow refines variable types by the truth of a condition: the context an
// if body runs in, or the else body, or the right side of && and ||.
package narrow

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/resolve"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// MaxConditionDepth bounds how deeply conditions may nest before narrowing gives up
// on the file.
const MaxConditionDepth = 64

var ErrConditionTooDeep = errors.New("condition nested too deeply")

type Narrower struct {
	r      *resolve.Resolver
	checks *TypeCheckRegistry
}

// New builds a Narrower over r. The Narrower's own resolver narrows ternary branches
// with it; use Resolver to get that copy.
func New(r *resolve.Resolver) *Narrower {
	n := &Narrower{checks: NewTypeCheckRegistry()}
	n.r = r.WithNarrower(n)
	return n
}

func (n *Narrower) Resolver() *resolve.Resolver { return n.r }
func (n *Narrower) Checks() *TypeCheckRegistry  { return n.checks }

// Positive is the context in which cond is known to be truthy.
func (n *Narrower) Positive(ctx scope.Context, cond *ast.Node) (scope.Context, error) {
	return n.narrow(ctx, cond, true, 0)
}

// Negative is the context in which cond is known to be falsey.
func (n *Narrower) Negative(ctx scope.Context, cond *ast.Node) (scope.Context, error) {
	return n.narrow(ctx, cond, false, 0)
}

func (n *Narrower) Narrow(ctx scope.Context, cond *ast.Node, positive bool) (scope.Context, error) {
	return n.narrow(ctx, cond, positive, 0)
}

func (n *Narrower) narrow(ctx scope.Context, cond *ast.Node, positive bool, depth int) (scope.Context, error) {
	if cond == nil {
		return ctx, nil
	}
	if depth > MaxConditionDepth {
		return ctx, errors.Wrapf(ErrConditionTooDeep, "%s:%d", ctx.File(), cond.Line)
	}
	switch d := cond.Data.(type) {
	case ast.UnaryOpNode:
		switch d.Op {
		case ast.OpNot:
			return n.narrow(ctx, d.Expr, !positive, depth+1)
		case ast.OpSilence:
			return n.narrow(ctx, d.Expr, positive, depth+1)
		}
	case ast.BinaryOpNode:
		return n.binary(ctx, d, positive, depth)
	case ast.VariableNode:
		return n.truthiness(ctx, cond, positive), nil
	case ast.AssignNode:
		return n.assign(ctx, d, positive, depth)
	case ast.InstanceofNode:
		return n.instanceof(ctx, d.Expr, d.Class, positive)
	case ast.IssetNode:
		return n.isset(ctx, d.Vars, positive)
	case ast.EmptyNode:
		return n.empty(ctx, d.Expr, positive), nil
	case ast.CallNode:
		return n.call(ctx, cond, d, positive, depth)
	}
	return ctx, nil
}

func (n *Narrower) binary(ctx scope.Context, d ast.BinaryOpNode, positive bool, depth int) (scope.Context, error) {
	switch d.Op {
	case ast.OpBoolAnd, ast.OpLogicalAnd:
		if positive {
			return n.sequence(ctx, d.Left, d.Right, true, depth)
		}
		return n.either(ctx, d.Left, d.Right, false, depth)
	case ast.OpBoolOr, ast.OpLogicalOr:
		if positive {
			return n.either(ctx, d.Left, d.Right, true, depth)
		}
		return n.sequence(ctx, d.Left, d.Right, false, depth)
	case ast.OpIdentical, ast.OpNotIdentical:
		return n.compare(ctx, d.Left, d.Right, positive == (d.Op == ast.OpIdentical), true), nil
	case ast.OpEqual, ast.OpNotEqual:
		return n.compare(ctx, d.Left, d.Right, positive == (d.Op == ast.OpEqual), false), nil
	}
	return ctx, nil
}

// sequence narrows by left and then, in that context, by right: both held with the
// same polarity.
func (n *Narrower) sequence(ctx scope.Context, left, right *ast.Node, positive bool, depth int) (scope.Context, error) {
	ctx, err := n.narrow(ctx, left, positive, depth+1)
	if err != nil {
		return ctx, err
	}
	return n.narrow(ctx, right, positive, depth+1)
}

// either joins the context where left decided the outcome with the one where right
// did after left went the other way.
func (n *Narrower) either(ctx scope.Context, left, right *ast.Node, positive bool, depth int) (scope.Context, error) {
	byLeft, err := n.narrow(ctx, left, positive, depth+1)
	if err != nil {
		return ctx, err
	}
	pastLeft, err := n.narrow(ctx, left, !positive, depth+1)
	if err != nil {
		return ctx, err
	}
	byRight, err := n.narrow(pastLeft, right, positive, depth+1)
	if err != nil {
		return ctx, err
	}
	return scope.Merge(ctx, byLeft, byRight), nil
}

func (n *Narrower) assign(ctx scope.Context, d ast.AssignNode, positive bool, depth int) (scope.Context, error) {
	name, ok := ast.VariableName(d.Var)
	if !ok || d.Op != ast.OpNone {
		return ctx, nil
	}
	t, err := n.r.Quiet().ExpressionType(ctx, d.Expr)
	if err != nil {
		return ctx, err
	}
	var flags scope.VariableFlags
	if d.ByRef {
		flags |= scope.IsReference
	}
	ctx = ctx.WithVariable(scope.NewVariable(name, t, flags))
	return n.narrow(ctx, d.Var, positive, depth+1)
}

// target is what a condition can narrow: a variable, or one constant key of an array
// held in a variable.
type target struct {
	name   string
	key    string
	hasKey bool
}

func (n *Narrower) targetOf(ctx scope.Context, node *ast.Node) (target, bool) {
	if name, ok := ast.VariableName(node); ok {
		return target{name: name}, name != "this"
	}
	if node == nil {
		return target{}, false
	}
	d, ok := node.Data.(ast.DimNode)
	if !ok || d.Dim == nil {
		return target{}, false
	}
	name, ok := ast.VariableName(d.Expr)
	if !ok {
		return target{}, false
	}
	v, ok := n.r.EquivalentValue(ctx, d.Dim)
	if !ok {
		return target{}, false
	}
	key, ok := v.KeyString()
	if !ok {
		return target{}, false
	}
	return target{name: name, key: key, hasKey: true}, true
}

// retype rebinds a variable through fn. defined clears PossiblyUndefined.
func retype(ctx scope.Context, name string, defined bool, fn func(types.UnionType) types.UnionType) scope.Context {
	v, ok := ctx.Variable(name)
	if !ok {
		return ctx
	}
	flags := v.Flags
	if defined {
		flags &^= scope.PossiblyUndefined
	}
	return ctx.WithVariable(v.WithType(fn(v.Type)).WithFlags(flags))
}

// retypeField rewrites one shape field of a variable.
func retypeField(ctx scope.Context, t target, fn func(f types.ShapeField, ok bool) types.ShapeField) scope.Context {
	return retype(ctx, t.name, false, func(u types.UnionType) types.UnionType {
		return u.WithShapeFieldTransform(t.key, fn)
	})
}

func (n *Narrower) truthiness(ctx scope.Context, node *ast.Node, positive bool) scope.Context {
	t, ok := n.targetOf(ctx, node)
	if !ok || t.hasKey {
		return ctx
	}
	if positive {
		return retype(ctx, t.name, true, types.UnionType.NonFalseyClone)
	}
	return retype(ctx, t.name, false, types.UnionType.NonTruthyClone)
}

// compare narrows `$x === v`, `$x == v` and their mirror images, where v folds to a
// constant. identical selects strict comparison; positive is whether the values
// compare equal.
func (n *Narrower) compare(ctx scope.Context, left, right *ast.Node, positive, identical bool) scope.Context {
	t, ok := n.targetOf(ctx, left)
	other := right
	if !ok {
		if t, ok = n.targetOf(ctx, right); !ok {
			return ctx
		}
		other = left
	}
	if t.hasKey {
		return ctx
	}
	v, ok := n.r.EquivalentValue(ctx, other)
	if !ok {
		return ctx
	}
	if !identical {
		return looseCompare(ctx, t.name, v, positive)
	}
	switch v.Kind {
	case resolve.ValueNull:
		if positive {
			return retype(ctx, t.name, false, func(types.UnionType) types.UnionType { return types.NullUnion() })
		}
		return retype(ctx, t.name, false, types.UnionType.NonNullableClone)
	case resolve.ValueBool, resolve.ValueInt, resolve.ValueString:
		lit := v.Type()
		if positive {
			return retype(ctx, t.name, true, func(types.UnionType) types.UnionType { return lit })
		}
		if v.Kind == resolve.ValueBool {
			return retype(ctx, t.name, false, func(u types.UnionType) types.UnionType { return withoutBool(u, v.Bool) })
		}
		atom := lit.Types()[0]
		return retype(ctx, t.name, false, func(u types.UnionType) types.UnionType {
			return u.WithoutType(atom).WithoutType(atom.WithIsNullable(true))
		})
	}
	return ctx
}

// looseCompare handles == and != against null, true and false, which only say
// something about truthiness.
func looseCompare(ctx scope.Context, name string, v resolve.Value, equal bool) scope.Context {
	var truthy bool
	switch v.Kind {
	case resolve.ValueNull:
		truthy = false
	case resolve.ValueBool:
		truthy = v.Bool
	default:
		return ctx
	}
	if equal == truthy {
		return retype(ctx, name, false, types.UnionType.NonFalseyClone)
	}
	return retype(ctx, name, false, types.UnionType.NonTruthyClone)
}

// withoutBool drops the literal bool val, turning bool into its other literal.
func withoutBool(u types.UnionType, val bool) types.UnionType {
	drop, keep := types.KindFalse, types.KindTrue
	if val {
		drop, keep = types.KindTrue, types.KindFalse
	}
	return u.Map(func(t *types.Type) []*types.Type {
		switch t.Kind() {
		case drop:
			if t.IsNullable() {
				return []*types.Type{types.Null()}
			}
			return nil
		case types.KindBool:
			if keep == types.KindTrue {
				return []*types.Type{types.True(t.IsNullable())}
			}
			return []*types.Type{types.False(t.IsNullable())}
		}
		return []*types.Type{t}
	})
}

func (n *Narrower) instanceof(ctx scope.Context, expr, class *ast.Node, positive bool) (scope.Context, error) {
	t, ok := n.targetOf(ctx, expr)
	if !ok || t.hasKey {
		return ctx, nil
	}
	classes, err := n.r.Quiet().ClassUnionType(ctx, class)
	if resolve.IsHardError(err) {
		return ctx, err
	}
	return n.narrowToClasses(ctx, t.name, classes.ClassTypes(), positive)
}

// narrowToClasses keeps the atoms of a variable that are instances of one of
// targets, or removes them. Without targets only "is an object" is known.
func (n *Narrower) narrowToClasses(ctx scope.Context, name string, targets []*types.Type, positive bool) (scope.Context, error) {
	v, ok := ctx.Variable(name)
	if !ok {
		return ctx, nil
	}
	if len(targets) == 0 {
		if !positive {
			return ctx, nil
		}
		obj := v.Type.Map(func(t *types.Type) []*types.Type {
			switch {
			case types.IsObjectKind(t.Kind()):
				return []*types.Type{t.WithIsNullable(false)}
			case types.IsPossiblyObjectKind(t.Kind()):
				return []*types.Type{types.Object(false)}
			}
			return nil
		})
		if obj.IsEmpty() {
			obj = types.ObjectUnion()
		}
		return ctx.WithVariable(v.WithType(obj).WithFlags(v.Flags &^ scope.PossiblyUndefined)), nil
	}
	st := n.r.SymbolTable()
	var out []*types.Type
	for _, a := range v.Type.Types() {
		if a.Kind() == types.KindNull {
			if !positive {
				out = append(out, a)
			}
			continue
		}
		matched := false
		for _, want := range targets {
			ok, err := a.IsSubclassOf(want.ClassName(), st)
			if err != nil {
				return ctx, err
			}
			if ok {
				matched = true
				break
			}
		}
		switch {
		case positive && matched:
			out = append(out, a.WithIsNullable(false))
		case !positive && !matched:
			out = append(out, a)
		}
	}
	res := types.Of(out...)
	if positive {
		if res.IsEmpty() {
			res = types.Of(targets...)
		}
		return ctx.WithVariable(v.WithType(res).WithFlags(v.Flags &^ scope.PossiblyUndefined)), nil
	}
	if v.Type.ContainsNullable() && !res.ContainsNullable() {
		res = res.WithType(types.Null())
	}
	return ctx.WithVariable(v.WithType(res)), nil
}

func (n *Narrower) isset(ctx scope.Context, vars []*ast.Node, positive bool) (scope.Context, error) {
	if positive {
		for _, node := range vars {
			ctx = n.issetOne(ctx, node, true)
		}
		return ctx, nil
	}
	if len(vars) == 1 {
		return n.issetOne(ctx, vars[0], false), nil
	}
	// Some variable is unset, but not which one.
	branches := make([]scope.Context, 0, len(vars))
	for _, node := range vars {
		branches = append(branches, n.issetOne(ctx, node, false))
	}
	return scope.Merge(ctx, branches...), nil
}

func (n *Narrower) issetOne(ctx scope.Context, node *ast.Node, positive bool) scope.Context {
	t, ok := n.targetOf(ctx, node)
	if !ok {
		return ctx
	}
	if t.hasKey {
		return retypeField(ctx, t, func(f types.ShapeField, ok bool) types.ShapeField {
			if positive {
				if !ok || f.Type.IsEmpty() {
					return types.ShapeField{Type: types.Of(types.NonNullMixed())}
				}
				return types.ShapeField{Type: f.Type.NonNullableClone()}
			}
			return types.ShapeField{Type: types.NullUnion(), PossiblyUndefined: true}
		})
	}
	if positive {
		return retype(ctx, t.name, true, types.UnionType.NonNullableClone)
	}
	v, ok := ctx.Variable(t.name)
	if !ok || !(v.Type.ContainsNullable() || v.Has(scope.PossiblyUndefined)) {
		return ctx
	}
	return ctx.WithVariable(v.WithType(types.NullUnion()).WithFlags(v.Flags | scope.PossiblyUndefined))
}

func (n *Narrower) empty(ctx scope.Context, node *ast.Node, positive bool) scope.Context {
	t, ok := n.targetOf(ctx, node)
	if !ok {
		return ctx
	}
	if t.hasKey {
		return retypeField(ctx, t, func(f types.ShapeField, ok bool) types.ShapeField {
			if positive {
				return types.ShapeField{Type: f.Type.NonTruthyClone(), PossiblyUndefined: true}
			}
			if !ok || f.Type.IsEmpty() {
				return types.ShapeField{Type: types.Of(types.NonNullMixed())}
			}
			return types.ShapeField{Type: f.Type.NonFalseyClone()}
		})
	}
	if positive {
		return retype(ctx, t.name, false, types.UnionType.NonTruthyClone)
	}
	return retype(ctx, t.name, true, types.UnionType.NonFalseyClone)
}

func (n *Narrower) call(ctx scope.Context, node *ast.Node, d ast.CallNode, positive bool, depth int) (scope.Context, error) {
	name, ok := n.globalFunctionName(ctx, node, d)
	if !ok {
		return ctx, nil
	}
	switch name {
	case "assert":
		if !positive || len(d.Args) == 0 {
			return ctx, nil
		}
		return n.narrow(ctx, d.Args[0], true, depth+1)
	case "array_key_exists", "key_exists":
		return n.keyExists(ctx, d.Args, positive), nil
	case "is_a":
		return n.isA(ctx, d.Args, positive)
	}
	check, ok := n.checks.Lookup(name)
	if !ok || len(d.Args) == 0 {
		return ctx, nil
	}
	t, ok := n.targetOf(ctx, d.Args[0])
	if !ok {
		return ctx, nil
	}
	filter := check.Negative
	if positive {
		filter = check.Positive
	}
	if t.hasKey {
		return retypeField(ctx, t, func(f types.ShapeField, ok bool) types.ShapeField {
			if !ok {
				if !positive {
					return types.ShapeField{Type: types.MixedUnion(), PossiblyUndefined: true}
				}
				return types.ShapeField{Type: filter(types.Empty())}
			}
			f.Type = filter(f.Type)
			if positive {
				f.PossiblyUndefined = false
			}
			return f
		}), nil
	}
	return retype(ctx, t.name, positive && !check.Null, filter), nil
}

// Evaluate reports the value a type-check condition such as is_string($x) must have
// when the type of $x decides it, along with the condition as written.
func (n *Narrower) Evaluate(ctx scope.Context, cond *ast.Node) (value, known bool, text string) {
	negated := false
	for cond != nil {
		d, ok := cond.Data.(ast.UnaryOpNode)
		if !ok || d.Op != ast.OpNot {
			break
		}
		negated = !negated
		cond = d.Expr
	}
	d, ok := cond.Data.(ast.CallNode)
	if !ok || len(d.Args) != 1 {
		return false, false, ""
	}
	name, ok := n.globalFunctionName(ctx, cond, d)
	if !ok {
		return false, false, ""
	}
	check, ok := n.checks.Lookup(name)
	if !ok {
		return false, false, ""
	}
	varName, ok := ast.VariableName(d.Args[0])
	if !ok {
		return false, false, ""
	}
	v, ok := ctx.Variable(varName)
	if !ok {
		return false, false, ""
	}
	always, never := check.Decide(v.Type)
	if !always && !never {
		return false, false, ""
	}
	text = name + "($" + varName + ")"
	if negated {
		text = "!" + text
	}
	return always != negated, true, text
}

// globalFunctionName is the lower-case name of the global function a call invokes. A
// call that resolves to a namespaced function is not one of the builtins.
func (n *Narrower) globalFunctionName(ctx scope.Context, node *ast.Node, d ast.CallNode) (string, bool) {
	text := ast.NameText(d.Func)
	if text == "" {
		return "", false
	}
	f, err := n.r.Quiet().Function(ctx, node)
	if err == nil && f != nil {
		if f.FQSEN.Namespace() != `\` {
			return "", false
		}
		return strings.ToLower(f.FQSEN.Name()), true
	}
	text = strings.TrimPrefix(text, `\`)
	if strings.Contains(text, `\`) {
		return "", false
	}
	return strings.ToLower(text), true
}

func (n *Narrower) keyExists(ctx scope.Context, args []*ast.Node, positive bool) scope.Context {
	if len(args) < 2 {
		return ctx
	}
	name, ok := ast.VariableName(args[1])
	if !ok {
		return ctx
	}
	v, ok := n.r.EquivalentValue(ctx, args[0])
	if !ok {
		return ctx
	}
	key, ok := v.KeyString()
	if !ok {
		return ctx
	}
	if !positive {
		return retype(ctx, name, false, func(u types.UnionType) types.UnionType { return u.WithoutArrayShapeField(key) })
	}
	return retypeField(ctx, target{name: name, key: key, hasKey: true}, func(f types.ShapeField, ok bool) types.ShapeField {
		if !ok {
			return types.ShapeField{Type: types.MixedUnion()}
		}
		f.PossiblyUndefined = false
		return f
	})
}

// isA narrows is_a($x, 'Class') like instanceof when the class is a literal.
func (n *Narrower) isA(ctx scope.Context, args []*ast.Node, positive bool) (scope.Context, error) {
	if len(args) < 2 || !positive {
		return ctx, nil
	}
	t, ok := n.targetOf(ctx, args[0])
	if !ok || t.hasKey {
		return ctx, nil
	}
	v, ok := n.r.EquivalentValue(ctx, args[1])
	if !ok || v.Kind != resolve.ValueString {
		return ctx, nil
	}
	name := fqsen.ParseClassName(v.Str)
	if !n.r.SymbolTable().HasClass(name) {
		return ctx, nil
	}
	return n.narrowToClasses(ctx, t.name, []*types.Type{types.Class(name, nil, false)}, true)
}
