package ast

import (
	"bytes"
	"sort"
	"strings"

	"github.com/francoispqt/gojay"
	"github.com/pkg/errors"
)

var nodeTypeNames = [...]string{
	Name: "Name", Variable: "Variable", IntLit: "IntLit", FloatLit: "FloatLit", StringLit: "StringLit",
	Interpolated: "Interpolated", ArrayLit: "ArrayLit", ArrayItem: "ArrayItem", ConstFetch: "ConstFetch",
	Dim: "Dim", PropFetch: "PropFetch", StaticPropFetch: "StaticPropFetch", ClassConstFetch: "ClassConstFetch",
	Call: "Call", MethodCall: "MethodCall", StaticCall: "StaticCall", New: "New", Assign: "Assign",
	BinaryOp: "BinaryOp", UnaryOp: "UnaryOp", Instanceof: "Instanceof", Isset: "Isset", Empty: "Empty",
	Ternary: "Ternary", Cast: "Cast", Closure: "Closure", TypeRef: "TypeRef",
	File: "File", Namespace: "Namespace", Use: "Use", Class: "Class", Method: "Method", Function: "Function",
	Param: "Param", Property: "Property", ClassConst: "ClassConst", ConstDecl: "ConstDecl",
	TraitUse: "TraitUse", TraitAlias: "TraitAlias", TraitPrecedence: "TraitPrecedence",
	ExprStmt: "ExprStmt", Echo: "Echo", Block: "Block", If: "If", While: "While", For: "For",
	Foreach: "Foreach", Switch: "Switch", Case: "Case", Return: "Return", Unset: "Unset",
	Global: "Global", Try: "Try", Catch: "Catch", Throw: "Throw", Break: "Break", Continue: "Continue",
	Unknown: "Unknown",
}

var nodeTypeByName = func() map[string]NodeType {
	m := make(map[string]NodeType, len(nodeTypeNames))
	for t, name := range nodeTypeNames {
		m[name] = NodeType(t)
	}
	return m
}()

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "NodeType(?)"
}

// rawNode is one JSON node before it is given a typed payload:
// {"kind":"Call","line":3,"doc":"","attrs":{...},"children":{"func":{...},"args":[...]}}
type rawNode struct {
	kind     string
	line     int
	doc      string
	attrs    rawAttrs
	children rawChildren
}

func (r *rawNode) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "kind":
		return dec.String(&r.kind)
	case "line":
		return dec.Int(&r.line)
	case "doc":
		return dec.String(&r.doc)
	case "attrs":
		if r.attrs == nil {
			r.attrs = rawAttrs{}
		}
		return dec.Object(r.attrs)
	case "children":
		r.children = rawChildren{}
		return dec.Object(r.children)
	}
	// any other key is an attribute written inline
	if r.attrs == nil {
		r.attrs = rawAttrs{}
	}
	return r.attrs.UnmarshalJSONObject(dec, key)
}

func (r *rawNode) NKeys() int { return 0 }

type rawAttrs map[string]interface{}

func (a rawAttrs) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	v, err := decodeValue(dec)
	if err != nil {
		return errors.Wrapf(err, "attrs.%s", key)
	}
	a[key] = v
	return nil
}

func (a rawAttrs) NKeys() int { return 0 }

type rawValues []interface{}

func (l *rawValues) UnmarshalJSONArray(dec *gojay.Decoder) error {
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*l = append(*l, v)
	return nil
}

// decodeValue reads one attribute value from an owned copy. Decoder.Interface unescapes
// strings in place before handing them to encoding/json, so it cannot be used here.
func decodeValue(dec *gojay.Decoder) (interface{}, error) {
	var raw gojay.EmbeddedJSON
	if err := dec.EmbeddedJSON(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		err := gojay.Unmarshal(raw, &s)
		return s, err
	case 't', 'f':
		var b bool
		err := gojay.Unmarshal(raw, &b)
		return b, err
	case 'n':
		return nil, nil
	case '[':
		var list rawValues
		if err := gojay.UnmarshalJSONArray(raw, &list); err != nil {
			return nil, err
		}
		return []interface{}(list), nil
	case '{':
		m := rawAttrs{}
		if err := gojay.UnmarshalJSONObject(raw, m); err != nil {
			return nil, err
		}
		return map[string]interface{}(m), nil
	}
	var f float64
	err := gojay.Unmarshal(raw, &f)
	return f, err
}

type rawChild struct {
	node   *rawNode
	list   rawList
	isList bool
}

type rawChildren map[string]rawChild

// UnmarshalJSONObject captures each child as an owned copy and decodes it as a node or a
// node list depending on its first byte.
func (c rawChildren) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	var embedded gojay.EmbeddedJSON
	if err := dec.EmbeddedJSON(&embedded); err != nil {
		return err
	}
	raw := bytes.TrimSpace(embedded)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var list rawList
		if err := gojay.UnmarshalJSONArray(raw, &list); err != nil {
			return errors.Wrapf(err, "children.%s", key)
		}
		c[key] = rawChild{list: list, isList: true}
	case '{':
		n := &rawNode{}
		if err := gojay.UnmarshalJSONObject(raw, n); err != nil {
			return errors.Wrapf(err, "children.%s", key)
		}
		c[key] = rawChild{node: n}
	}
	return nil
}

func (c rawChildren) NKeys() int { return 0 }

type rawList []*rawNode

func (l *rawList) UnmarshalJSONArray(dec *gojay.Decoder) error {
	n := &rawNode{}
	if err := dec.Object(n); err != nil {
		return err
	}
	*l = append(*l, n)
	return nil
}

func (r *rawNode) str(key string) string {
	s, _ := r.attrs[key].(string)
	return s
}

func (r *rawNode) int(key string) int64 {
	switch v := r.attrs[key].(type) {
	case float64:
		return int64(v)
	case string:
		var n int64
		for _, c := range v {
			if c < '0' || c > '9' {
				break
			}
			n = n*10 + int64(c-'0')
		}
		return n
	}
	return 0
}

func (r *rawNode) float(key string) float64 {
	v, _ := r.attrs[key].(float64)
	return v
}

func (r *rawNode) bool(key string) bool {
	v, _ := r.attrs[key].(bool)
	return v
}

// Decode reads a JSON syntax tree. The top level is either a File node or an array of
// statements.
func Decode(data []byte) (*Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty syntax tree")
	}
	b := &builder{}
	if data[0] == '[' {
		var list rawList
		if err := gojay.UnmarshalJSONArray(data, &list); err != nil {
			return nil, errors.Wrap(err, "decoding statements")
		}
		file := NewFile(b.nodes(list))
		if b.err != nil {
			return nil, b.err
		}
		return file, nil
	}
	root := &rawNode{}
	if err := gojay.UnmarshalJSONObject(data, root); err != nil {
		return nil, errors.Wrap(err, "decoding syntax tree")
	}
	if root.kind == "" {
		return nil, errors.New("decoding syntax tree: root node has no kind")
	}
	n := b.node(root)
	if b.err != nil {
		return nil, b.err
	}
	if n.Type != File {
		return NewFile([]*Node{n}), nil
	}
	return n, nil
}

type builder struct{ err error }

func (b *builder) fail(r *rawNode, format string, args ...interface{}) {
	if b.err == nil {
		b.err = errors.Errorf("line %d: %s: "+format, append([]interface{}{r.line, r.kind}, args...)...)
	}
}

func (b *builder) child(r *rawNode, key string) *Node {
	c, ok := r.children[key]
	if !ok {
		return nil
	}
	if c.isList {
		return NewBlock(r.line, b.nodes(c.list))
	}
	return b.node(c.node)
}

func (b *builder) list(r *rawNode, key string) []*Node {
	c, ok := r.children[key]
	if !ok {
		return nil
	}
	if !c.isList {
		if n := b.node(c.node); n != nil {
			return []*Node{n}
		}
		return nil
	}
	return b.nodes(c.list)
}

func (b *builder) nodes(list rawList) []*Node {
	out := make([]*Node, 0, len(list))
	for _, r := range list {
		if n := b.node(r); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// name reads a name either from a child Name node or from the "name" attribute
func (b *builder) name(r *rawNode, key string) *Node {
	if n := b.child(r, key); n != nil {
		return n
	}
	if s := r.str(key); s != "" {
		return NewName(r.line, s)
	}
	return nil
}

func (b *builder) node(r *rawNode) *Node {
	if r == nil || r.kind == "" {
		return nil
	}
	typ, ok := nodeTypeByName[r.kind]
	if !ok {
		typ = Unknown
	}
	var n *Node
	switch typ {
	case Name:
		n = NewName(r.line, r.str("name"))
	case Variable:
		if dyn := b.child(r, "name"); dyn != nil {
			n = newNode(r.line, Variable, VariableNode{NameExpr: dyn}, dyn)
		} else {
			n = NewVariable(r.line, strings.TrimPrefix(r.str("name"), "$"))
		}
	case IntLit:
		n = NewIntLit(r.line, r.int("value"))
	case FloatLit:
		n = NewFloatLit(r.line, r.float("value"))
	case StringLit:
		n = NewStringLit(r.line, r.str("value"))
	case Interpolated:
		n = NewInterpolated(r.line, b.list(r, "parts"))
	case ArrayLit:
		n = NewArrayLit(r.line, b.list(r, "items"))
	case ArrayItem:
		n = NewArrayItem(r.line, b.child(r, "key"), b.child(r, "value"), r.bool("byRef"), r.bool("unpack"))
	case ConstFetch:
		n = NewConstFetch(r.line, b.name(r, "name"))
	case Dim:
		n = NewDim(r.line, b.child(r, "expr"), b.child(r, "dim"))
	case PropFetch:
		expr, dyn := b.child(r, "expr"), b.child(r, "name")
		n = newNode(r.line, PropFetch, PropFetchNode{Expr: expr, Name: r.str("name"), NameExpr: dyn, NullSafe: r.bool("nullsafe")}, expr, dyn)
	case StaticPropFetch:
		n = NewStaticPropFetch(r.line, b.name(r, "class"), strings.TrimPrefix(r.str("name"), "$"))
	case ClassConstFetch:
		n = NewClassConstFetch(r.line, b.name(r, "class"), r.str("name"))
	case Call:
		n = NewCall(r.line, b.name(r, "func"), b.list(r, "args"))
	case MethodCall:
		expr, dyn, args := b.child(r, "expr"), b.child(r, "name"), b.list(r, "args")
		n = newNode(r.line, MethodCall, MethodCallNode{Expr: expr, Name: r.str("name"), NameExpr: dyn, Args: args, NullSafe: r.bool("nullsafe")}, expr, dyn)
		adopt(n, args...)
	case StaticCall:
		n = NewStaticCall(r.line, b.name(r, "class"), r.str("name"), b.list(r, "args"))
	case New:
		n = NewNew(r.line, b.name(r, "class"), b.list(r, "args"))
	case Assign:
		op, ok := AssignOpFromString(r.str("op"))
		if !ok && r.str("op") != "" {
			b.fail(r, "unknown assignment operator %q", r.str("op"))
		}
		n = NewAssign(r.line, op, b.child(r, "var"), b.child(r, "expr"), r.bool("byRef"))
	case BinaryOp:
		op, ok := BinaryOpFromString(r.str("op"))
		if !ok {
			b.fail(r, "unknown binary operator %q", r.str("op"))
		}
		n = NewBinaryOp(r.line, op, b.child(r, "left"), b.child(r, "right"))
	case UnaryOp:
		op, ok := UnaryOpFromString(r.str("op"))
		if !ok {
			b.fail(r, "unknown unary operator %q", r.str("op"))
		}
		n = NewUnaryOp(r.line, op, b.child(r, "expr"))
	case Instanceof:
		n = NewInstanceof(r.line, b.child(r, "expr"), b.name(r, "class"))
	case Isset:
		n = NewIsset(r.line, b.list(r, "vars"))
	case Empty:
		n = NewEmpty(r.line, b.child(r, "expr"))
	case Ternary:
		n = NewTernary(r.line, b.child(r, "cond"), b.child(r, "then"), b.child(r, "else"))
	case Cast:
		n = NewCast(r.line, strings.ToLower(r.str("to")), b.child(r, "expr"))
	case Closure:
		n = NewClosure(r.line, ClosureNode{
			Params: b.list(r, "params"), Uses: b.list(r, "uses"), ReturnType: b.typeRef(r, "returnType"),
			Body: b.child(r, "body"), Static: r.bool("static"), Arrow: r.bool("arrow"),
		})
	case TypeRef:
		n = NewTypeRef(r.line, r.str("text"))
	case File:
		n = NewFile(b.list(r, "stmts"))
	case Namespace:
		n = NewNamespace(r.line, r.str("name"), b.list(r, "stmts"))
	case Use:
		n = NewUse(r.line, useKind(r.str("type")), useItems(r.attrs["items"]))
	case Class:
		n = NewClass(r.line, ClassNode{
			Name: r.str("name"), Kind: classKind(r.str("type")), Flags: int(r.int("flags")),
			Extends: b.name(r, "extends"), Implements: b.list(r, "implements"), Stmts: b.list(r, "stmts"),
		})
	case Method:
		n = NewMethod(r.line, MethodNode{
			Name: r.str("name"), Flags: int(r.int("flags")), Params: b.list(r, "params"),
			ReturnType: b.typeRef(r, "returnType"), Body: b.child(r, "body"),
		})
	case Function:
		n = NewFunction(r.line, FunctionNode{
			Name: r.str("name"), Params: b.list(r, "params"), ReturnType: b.typeRef(r, "returnType"), Body: b.child(r, "body"),
		})
	case Param:
		n = NewParam(r.line, ParamNode{
			Name: strings.TrimPrefix(r.str("name"), "$"), Type: b.typeRef(r, "type"), Default: b.child(r, "default"),
			ByRef: r.bool("byRef"), Variadic: r.bool("variadic"), Flags: int(r.int("flags")),
		})
	case Property:
		n = NewProperty(r.line, strings.TrimPrefix(r.str("name"), "$"), int(r.int("flags")), b.typeRef(r, "type"), b.child(r, "default"))
	case ClassConst:
		n = NewClassConst(r.line, r.str("name"), int(r.int("flags")), b.child(r, "value"))
	case ConstDecl:
		n = NewConstDecl(r.line, r.str("name"), b.child(r, "value"))
	case TraitUse:
		n = NewTraitUse(r.line, b.list(r, "traits"), b.list(r, "adaptations"))
	case TraitAlias:
		n = NewTraitAlias(r.line, b.name(r, "trait"), r.str("method"), r.str("alias"), int(r.int("flags")))
	case TraitPrecedence:
		n = NewTraitPrecedence(r.line, b.name(r, "trait"), r.str("method"), b.list(r, "insteadof"))
	case ExprStmt:
		n = NewExprStmt(r.line, b.child(r, "expr"))
	case Echo:
		n = NewEcho(r.line, b.list(r, "exprs"))
	case Block:
		n = NewBlock(r.line, b.list(r, "stmts"))
	case If:
		n = NewIf(r.line, b.child(r, "cond"), b.child(r, "then"), b.child(r, "else"))
	case While:
		n = NewWhile(r.line, b.child(r, "cond"), b.child(r, "body"), r.bool("doWhile"))
	case For:
		n = NewFor(r.line, b.list(r, "init"), b.list(r, "cond"), b.list(r, "loop"), b.child(r, "body"))
	case Foreach:
		n = NewForeach(r.line, b.child(r, "expr"), b.child(r, "key"), b.child(r, "value"), b.child(r, "body"), r.bool("byRef"))
	case Switch:
		n = NewSwitch(r.line, b.child(r, "cond"), b.list(r, "cases"))
	case Case:
		n = NewCase(r.line, b.child(r, "cond"), b.list(r, "stmts"))
	case Return:
		n = NewReturn(r.line, b.child(r, "expr"))
	case Unset:
		n = NewUnset(r.line, b.list(r, "vars"))
	case Global:
		n = NewGlobal(r.line, b.list(r, "vars"))
	case Try:
		n = NewTry(r.line, b.child(r, "body"), b.list(r, "catches"), b.child(r, "finally"))
	case Catch:
		n = NewCatch(r.line, b.list(r, "types"), strings.TrimPrefix(r.str("var"), "$"), b.child(r, "body"))
	case Throw:
		n = NewThrow(r.line, b.child(r, "expr"))
	case Break:
		n = NewBreak(r.line)
	case Continue:
		n = NewContinue(r.line)
	default:
		keys := make([]string, 0, len(r.children))
		for k := range r.children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var children []*Node
		for _, k := range keys {
			children = append(children, b.list(r, k)...)
		}
		n = NewUnknown(r.line, r.kind, children)
	}
	n.Doc = r.doc
	return n
}

// typeRef accepts a TypeRef child or a plain string attribute
func (b *builder) typeRef(r *rawNode, key string) *Node {
	if n := b.child(r, key); n != nil {
		return n
	}
	if s := r.str(key); s != "" {
		return NewTypeRef(r.line, s)
	}
	return nil
}

func useKind(s string) UseKind {
	switch strings.ToLower(s) {
	case "function":
		return UseFunction
	case "const", "constant":
		return UseConstant
	}
	return UseClass
}

func classKind(s string) ClassKind {
	switch strings.ToLower(s) {
	case "interface":
		return KindInterface
	case "trait":
		return KindTrait
	}
	return KindClass
}

func useItems(v interface{}) []UseItem {
	list, _ := v.([]interface{})
	items := make([]UseItem, 0, len(list))
	for _, e := range list {
		switch e := e.(type) {
		case string:
			items = append(items, UseItem{Name: e})
		case map[string]interface{}:
			name, _ := e["name"].(string)
			alias, _ := e["alias"].(string)
			items = append(items, UseItem{Name: name, Alias: alias})
		}
	}
	return items
}
