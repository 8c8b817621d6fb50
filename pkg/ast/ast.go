// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import "strings"

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Name NodeType = iota
	Variable
	IntLit
	FloatLit
	StringLit
	Interpolated
	ArrayLit
	ArrayItem
	ConstFetch
	Dim
	PropFetch
	StaticPropFetch
	ClassConstFetch
	Call
	MethodCall
	StaticCall
	New
	Assign
	BinaryOp
	UnaryOp
	Instanceof
	Isset
	Empty
	Ternary
	Cast
	Closure
	TypeRef

	// Statements
	File
	Namespace
	Use
	Class
	Method
	Function
	Param
	Property
	ClassConst
	ConstDecl
	TraitUse
	TraitAlias
	TraitPrecedence
	ExprStmt
	Echo
	Block
	If
	While
	For
	Foreach
	Switch
	Case
	Return
	Unset
	Global
	Try
	Catch
	Throw
	Break
	Continue
	Unknown
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Line   int
	Doc    string // Doc comment, for declarations
	Parent *Node
	Data   interface{}
}

// Member modifiers, bit-compatible with the common PHP parser encoding
const (
	ModPublic    = 1
	ModProtected = 2
	ModPrivate   = 4
	ModStatic    = 8
	ModAbstract  = 16
	ModFinal     = 32
	ModReadonly  = 64

	VisibilityMask = ModPublic | ModProtected | ModPrivate
)

// NameKind tells how a name was written
type NameKind int

const (
	Unqualified NameKind = iota
	Qualified
	FullyQualified
	Relative // namespace\Foo
)

// ClassKind distinguishes class-like declarations
type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindTrait
)

// UseKind is the import table a `use` statement adds to
type UseKind int

const (
	UseClass UseKind = iota
	UseFunction
	UseConstant
)

// --- Node Data Structs ---
type NameNode struct{ Name string; Kind NameKind }
type VariableNode struct{ Name string; NameExpr *Node }
type IntLitNode struct{ Value int64 }
type FloatLitNode struct{ Value float64 }
type StringLitNode struct{ Value string }
type InterpolatedNode struct{ Parts []*Node }
type ArrayLitNode struct{ Items []*Node }
type ArrayItemNode struct{ Key, Value *Node; ByRef, Unpack bool }
type ConstFetchNode struct{ Name *Node }
type DimNode struct{ Expr, Dim *Node }
type PropFetchNode struct{ Expr *Node; Name string; NameExpr *Node; NullSafe bool }
type StaticPropFetchNode struct{ Class *Node; Name string }
type ClassConstFetchNode struct{ Class *Node; Name string }
type CallNode struct{ Func *Node; Args []*Node }
type MethodCallNode struct{ Expr *Node; Name string; NameExpr *Node; Args []*Node; NullSafe bool }
type StaticCallNode struct{ Class *Node; Name string; Args []*Node }
type NewNode struct{ Class *Node; Args []*Node }
type AssignNode struct{ Op Op; Var, Expr *Node; ByRef bool }
type BinaryOpNode struct{ Op Op; Left, Right *Node }
type UnaryOpNode struct{ Op Op; Expr *Node }
type InstanceofNode struct{ Expr, Class *Node }
type IssetNode struct{ Vars []*Node }
type EmptyNode struct{ Expr *Node }
type TernaryNode struct{ Cond, Then, Else *Node } // Then is nil for `a ?: b`
type CastNode struct{ To string; Expr *Node }
type ClosureNode struct {
	Params     []*Node
	Uses       []*Node
	ReturnType *Node
	Body       *Node // Block, or the expression of an arrow function
	Static     bool
	Arrow      bool
}
type TypeRefNode struct{ Text string }

type FileNode struct{ Stmts []*Node }
type NamespaceNode struct{ Name string; Stmts []*Node }
type UseItem struct{ Name, Alias string }
type UseNode struct{ Kind UseKind; Items []UseItem }
type ClassNode struct {
	Name       string
	Kind       ClassKind
	Flags      int
	Extends    *Node   // parent class, for classes
	Implements []*Node // interfaces, or parents of an interface
	Stmts      []*Node
}
type MethodNode struct {
	Name       string
	Flags      int
	Params     []*Node
	ReturnType *Node
	Body       *Node // nil when abstract
}
type FunctionNode struct {
	Name       string
	Params     []*Node
	ReturnType *Node
	Body       *Node
}
type ParamNode struct {
	Name     string
	Type     *Node
	Default  *Node
	ByRef    bool
	Variadic bool
	Flags    int // constructor promotion
}
type PropertyNode struct{ Name string; Flags int; Type, Default *Node }
type ClassConstNode struct{ Name string; Flags int; Value *Node }
type ConstDeclNode struct{ Name string; Value *Node }
type TraitUseNode struct{ Traits, Adaptations []*Node }
type TraitAliasNode struct{ Trait *Node; Method, Alias string; Flags int }
type TraitPrecedenceNode struct{ Trait *Node; Method string; InsteadOf []*Node }
type ExprStmtNode struct{ Expr *Node }
type EchoNode struct{ Exprs []*Node }
type BlockNode struct{ Stmts []*Node }
type IfNode struct{ Cond, Then, Else *Node } // Else may be another If
type WhileNode struct{ Cond, Body *Node; DoWhile bool }
type ForNode struct{ Init, Cond, Loop []*Node; Body *Node }
type ForeachNode struct{ Expr, Key, Value, Body *Node; ByRef bool }
type SwitchNode struct{ Cond *Node; Cases []*Node }
type CaseNode struct{ Cond *Node; Stmts []*Node } // Cond is nil for default
type ReturnNode struct{ Expr *Node }
type UnsetNode struct{ Vars []*Node }
type GlobalNode struct{ Vars []*Node }
type TryNode struct{ Body *Node; Catches []*Node; Finally *Node }
type CatchNode struct{ Types []*Node; Var string; Body *Node }
type ThrowNode struct{ Expr *Node }
type BreakNode struct{}
type ContinueNode struct{}
type UnknownNode struct{ Kind string; Children []*Node }

// --- Node Constructors ---

func newNode(line int, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Line: line, Data: data}
	adopt(node, children...)
	return node
}

func adopt(parent *Node, children ...*Node) {
	for _, child := range children {
		if child != nil {
			child.Parent = parent
		}
	}
}

func NewName(line int, name string) *Node {
	kind := Unqualified
	switch {
	case strings.HasPrefix(name, "\\"):
		kind = FullyQualified
	case strings.HasPrefix(strings.ToLower(name), "namespace\\"):
		kind = Relative
	case strings.Contains(name, "\\"):
		kind = Qualified
	}
	return newNode(line, Name, NameNode{Name: name, Kind: kind})
}
func NewVariable(line int, name string) *Node {
	return newNode(line, Variable, VariableNode{Name: name})
}
func NewIntLit(line int, value int64) *Node {
	return newNode(line, IntLit, IntLitNode{Value: value})
}
func NewFloatLit(line int, value float64) *Node {
	return newNode(line, FloatLit, FloatLitNode{Value: value})
}
func NewStringLit(line int, value string) *Node {
	return newNode(line, StringLit, StringLitNode{Value: value})
}
func NewInterpolated(line int, parts []*Node) *Node {
	return newNode(line, Interpolated, InterpolatedNode{Parts: parts}, parts...)
}
func NewArrayLit(line int, items []*Node) *Node {
	return newNode(line, ArrayLit, ArrayLitNode{Items: items}, items...)
}
func NewArrayItem(line int, key, value *Node, byRef, unpack bool) *Node {
	return newNode(line, ArrayItem, ArrayItemNode{Key: key, Value: value, ByRef: byRef, Unpack: unpack}, key, value)
}
func NewConstFetch(line int, name *Node) *Node {
	return newNode(line, ConstFetch, ConstFetchNode{Name: name}, name)
}
func NewDim(line int, expr, dim *Node) *Node {
	return newNode(line, Dim, DimNode{Expr: expr, Dim: dim}, expr, dim)
}
func NewPropFetch(line int, expr *Node, name string, nullSafe bool) *Node {
	return newNode(line, PropFetch, PropFetchNode{Expr: expr, Name: name, NullSafe: nullSafe}, expr)
}
func NewStaticPropFetch(line int, class *Node, name string) *Node {
	return newNode(line, StaticPropFetch, StaticPropFetchNode{Class: class, Name: name}, class)
}
func NewClassConstFetch(line int, class *Node, name string) *Node {
	return newNode(line, ClassConstFetch, ClassConstFetchNode{Class: class, Name: name}, class)
}
func NewCall(line int, fn *Node, args []*Node) *Node {
	node := newNode(line, Call, CallNode{Func: fn, Args: args}, fn)
	adopt(node, args...)
	return node
}
func NewMethodCall(line int, expr *Node, name string, args []*Node, nullSafe bool) *Node {
	node := newNode(line, MethodCall, MethodCallNode{Expr: expr, Name: name, Args: args, NullSafe: nullSafe}, expr)
	adopt(node, args...)
	return node
}
func NewStaticCall(line int, class *Node, name string, args []*Node) *Node {
	node := newNode(line, StaticCall, StaticCallNode{Class: class, Name: name, Args: args}, class)
	adopt(node, args...)
	return node
}
func NewNew(line int, class *Node, args []*Node) *Node {
	node := newNode(line, New, NewNode{Class: class, Args: args}, class)
	adopt(node, args...)
	return node
}
func NewAssign(line int, op Op, v, expr *Node, byRef bool) *Node {
	return newNode(line, Assign, AssignNode{Op: op, Var: v, Expr: expr, ByRef: byRef}, v, expr)
}
func NewBinaryOp(line int, op Op, left, right *Node) *Node {
	return newNode(line, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(line int, op Op, expr *Node) *Node {
	return newNode(line, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewInstanceof(line int, expr, class *Node) *Node {
	return newNode(line, Instanceof, InstanceofNode{Expr: expr, Class: class}, expr, class)
}
func NewIsset(line int, vars []*Node) *Node {
	return newNode(line, Isset, IssetNode{Vars: vars}, vars...)
}
func NewEmpty(line int, expr *Node) *Node {
	return newNode(line, Empty, EmptyNode{Expr: expr}, expr)
}
func NewTernary(line int, cond, then, els *Node) *Node {
	return newNode(line, Ternary, TernaryNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewCast(line int, to string, expr *Node) *Node {
	return newNode(line, Cast, CastNode{To: to, Expr: expr}, expr)
}
func NewClosure(line int, d ClosureNode) *Node {
	node := newNode(line, Closure, d, d.ReturnType, d.Body)
	adopt(node, d.Params...)
	adopt(node, d.Uses...)
	return node
}
func NewTypeRef(line int, text string) *Node {
	return newNode(line, TypeRef, TypeRefNode{Text: text})
}

func NewFile(stmts []*Node) *Node {
	return newNode(1, File, FileNode{Stmts: stmts}, stmts...)
}
func NewNamespace(line int, name string, stmts []*Node) *Node {
	return newNode(line, Namespace, NamespaceNode{Name: name, Stmts: stmts}, stmts...)
}
func NewUse(line int, kind UseKind, items []UseItem) *Node {
	return newNode(line, Use, UseNode{Kind: kind, Items: items})
}
func NewClass(line int, d ClassNode) *Node {
	node := newNode(line, Class, d, d.Extends)
	adopt(node, d.Implements...)
	adopt(node, d.Stmts...)
	return node
}
func NewMethod(line int, d MethodNode) *Node {
	node := newNode(line, Method, d, d.ReturnType, d.Body)
	adopt(node, d.Params...)
	return node
}
func NewFunction(line int, d FunctionNode) *Node {
	node := newNode(line, Function, d, d.ReturnType, d.Body)
	adopt(node, d.Params...)
	return node
}
func NewParam(line int, d ParamNode) *Node {
	return newNode(line, Param, d, d.Type, d.Default)
}
func NewProperty(line int, name string, flags int, typ, def *Node) *Node {
	return newNode(line, Property, PropertyNode{Name: name, Flags: flags, Type: typ, Default: def}, typ, def)
}
func NewClassConst(line int, name string, flags int, value *Node) *Node {
	return newNode(line, ClassConst, ClassConstNode{Name: name, Flags: flags, Value: value}, value)
}
func NewConstDecl(line int, name string, value *Node) *Node {
	return newNode(line, ConstDecl, ConstDeclNode{Name: name, Value: value}, value)
}
func NewTraitUse(line int, traits, adaptations []*Node) *Node {
	node := newNode(line, TraitUse, TraitUseNode{Traits: traits, Adaptations: adaptations}, traits...)
	adopt(node, adaptations...)
	return node
}
func NewTraitAlias(line int, trait *Node, method, alias string, flags int) *Node {
	return newNode(line, TraitAlias, TraitAliasNode{Trait: trait, Method: method, Alias: alias, Flags: flags}, trait)
}
func NewTraitPrecedence(line int, trait *Node, method string, insteadOf []*Node) *Node {
	node := newNode(line, TraitPrecedence, TraitPrecedenceNode{Trait: trait, Method: method, InsteadOf: insteadOf}, trait)
	adopt(node, insteadOf...)
	return node
}
func NewExprStmt(line int, expr *Node) *Node {
	return newNode(line, ExprStmt, ExprStmtNode{Expr: expr}, expr)
}
func NewEcho(line int, exprs []*Node) *Node {
	return newNode(line, Echo, EchoNode{Exprs: exprs}, exprs...)
}
func NewBlock(line int, stmts []*Node) *Node {
	return newNode(line, Block, BlockNode{Stmts: stmts}, stmts...)
}
func NewIf(line int, cond, then, els *Node) *Node {
	return newNode(line, If, IfNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewWhile(line int, cond, body *Node, doWhile bool) *Node {
	return newNode(line, While, WhileNode{Cond: cond, Body: body, DoWhile: doWhile}, cond, body)
}
func NewFor(line int, init, cond, loop []*Node, body *Node) *Node {
	node := newNode(line, For, ForNode{Init: init, Cond: cond, Loop: loop, Body: body}, body)
	adopt(node, init...)
	adopt(node, cond...)
	adopt(node, loop...)
	return node
}
func NewForeach(line int, expr, key, value, body *Node, byRef bool) *Node {
	return newNode(line, Foreach, ForeachNode{Expr: expr, Key: key, Value: value, Body: body, ByRef: byRef}, expr, key, value, body)
}
func NewSwitch(line int, cond *Node, cases []*Node) *Node {
	node := newNode(line, Switch, SwitchNode{Cond: cond, Cases: cases}, cond)
	adopt(node, cases...)
	return node
}
func NewCase(line int, cond *Node, stmts []*Node) *Node {
	node := newNode(line, Case, CaseNode{Cond: cond, Stmts: stmts}, cond)
	adopt(node, stmts...)
	return node
}
func NewReturn(line int, expr *Node) *Node {
	return newNode(line, Return, ReturnNode{Expr: expr}, expr)
}
func NewUnset(line int, vars []*Node) *Node {
	return newNode(line, Unset, UnsetNode{Vars: vars}, vars...)
}
func NewGlobal(line int, vars []*Node) *Node {
	return newNode(line, Global, GlobalNode{Vars: vars}, vars...)
}
func NewTry(line int, body *Node, catches []*Node, finally *Node) *Node {
	node := newNode(line, Try, TryNode{Body: body, Catches: catches, Finally: finally}, body, finally)
	adopt(node, catches...)
	return node
}
func NewCatch(line int, types []*Node, v string, body *Node) *Node {
	node := newNode(line, Catch, CatchNode{Types: types, Var: v, Body: body}, body)
	adopt(node, types...)
	return node
}
func NewThrow(line int, expr *Node) *Node {
	return newNode(line, Throw, ThrowNode{Expr: expr}, expr)
}
func NewBreak(line int) *Node    { return newNode(line, Break, BreakNode{}) }
func NewContinue(line int) *Node { return newNode(line, Continue, ContinueNode{}) }
func NewUnknown(line int, kind string, children []*Node) *Node {
	return newNode(line, Unknown, UnknownNode{Kind: kind, Children: children}, children...)
}

// WithDoc attaches a doc comment and returns the node
func (n *Node) WithDoc(doc string) *Node {
	n.Doc = doc
	return n
}

// NameText returns the written name of a Name node, or "" for anything else
func NameText(n *Node) string {
	if n == nil || n.Type != Name {
		return ""
	}
	return n.Data.(NameNode).Name
}

// VariableName returns the static name of a Variable node without the `$`
func VariableName(n *Node) (string, bool) {
	if n == nil || n.Type != Variable {
		return "", false
	}
	d := n.Data.(VariableNode)
	return d.Name, d.NameExpr == nil && d.Name != ""
}
