package codebase

import (
	_ "embed"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xplshn/gpan/pkg/ast"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/types"
)

//go:embed builtins.yaml
var builtinsYAML []byte

type builtinFile struct {
	Superglobals map[string]string `yaml:"superglobals"`
	Constants    map[string]string `yaml:"constants"`
	Functions    []builtinFunction `yaml:"functions"`
	Classes      []builtinClass    `yaml:"classes"`
}

type builtinFunction struct {
	Name   string   `yaml:"name"`
	Return string   `yaml:"return"`
	Params []string `yaml:"params"`
	Static bool     `yaml:"static"`
	Final  bool     `yaml:"final"`
}

type builtinProperty struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Visibility string `yaml:"visibility"`
	Static     bool   `yaml:"static"`
}

type builtinClass struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Extends    string            `yaml:"extends"`
	Implements []string          `yaml:"implements"`
	Final      bool              `yaml:"final"`
	Abstract   bool              `yaml:"abstract"`
	Properties []builtinProperty `yaml:"properties"`
	Methods    []builtinFunction `yaml:"methods"`
}

// Builtins is the runtime's own declarations. It is built once at startup by
// LoadBuiltins and installed into each CodeBase.
type Builtins struct {
	Functions    []*FunctionDecl
	Classes      []*ClassDecl
	Constants    []*GlobalConstDecl
	Superglobals map[string]types.UnionType
}

// LoadBuiltins parses the embedded builtin tables. An error here means the tables
// themselves are broken.
func LoadBuiltins() (*Builtins, error) {
	return ParseBuiltins(builtinsYAML)
}

// ParseBuiltins parses builtin tables in the embedded format.
func ParseBuiltins(data []byte) (*Builtins, error) {
	var f builtinFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing builtin tables")
	}
	b := &Builtins{Superglobals: make(map[string]types.UnionType, len(f.Superglobals))}

	for name, text := range f.Superglobals {
		t, err := types.FromString(text)
		if err != nil {
			return nil, errors.Wrapf(err, "superglobal $%s", name)
		}
		b.Superglobals[name] = t
	}
	for name, text := range f.Constants {
		t, err := types.FromString(text)
		if err != nil {
			return nil, errors.Wrapf(err, "constant %s", name)
		}
		b.Constants = append(b.Constants, &GlobalConstDecl{FQSEN: fqsen.ParseGlobalConstName(name), Type: t})
	}
	for _, fn := range f.Functions {
		sig, err := fn.signature()
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", fn.Name)
		}
		b.Functions = append(b.Functions, &FunctionDecl{FQSEN: fqsen.ParseFunctionName(fn.Name), Signature: sig})
	}
	for _, bc := range f.Classes {
		c, err := bc.decl()
		if err != nil {
			return nil, errors.Wrapf(err, "class %s", bc.Name)
		}
		b.Classes = append(b.Classes, c)
	}
	return b, nil
}

// Install adds the builtins to cb. Builtin declarations are shared, not copied; they
// are never modified after loading.
func (b *Builtins) Install(cb *CodeBase) {
	for _, c := range b.Classes {
		cb.AddClass(c)
	}
	for _, f := range b.Functions {
		cb.AddFunction(f)
	}
	for _, k := range b.Constants {
		cb.AddGlobalConstant(k)
	}
}

func (fn builtinFunction) signature() (Signature, error) {
	var sig Signature
	if fn.Return != "" {
		t, err := types.FromString(fn.Return)
		if err != nil {
			return sig, err
		}
		sig.RealReturnType = t
	}
	for _, p := range fn.Params {
		param, err := parseBuiltinParam(p)
		if err != nil {
			return sig, err
		}
		sig.Params = append(sig.Params, param)
	}
	return sig, nil
}

// parseBuiltinParam reads "type [&][...]$name[=]".
func parseBuiltinParam(s string) (ParamDecl, error) {
	var p ParamDecl
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "=") {
		p.Optional = true
		s = strings.TrimSuffix(s, "=")
	}
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return p, errors.Errorf("parameter %q has no type", s)
	}
	typeText, name := s[:i], s[i+1:]
	if strings.HasPrefix(name, "&") {
		p.ByRef = true
		name = name[1:]
	}
	if strings.HasPrefix(name, "...") {
		p.Variadic = true
		name = name[3:]
	}
	if !strings.HasPrefix(name, "$") {
		return p, errors.Errorf("parameter %q: name must start with $", s)
	}
	p.Name = name[1:]
	t, err := types.FromString(typeText)
	if err != nil {
		return p, err
	}
	p.Type = t
	return p, nil
}

func (bc builtinClass) decl() (*ClassDecl, error) {
	kind := ast.KindClass
	switch bc.Kind {
	case "interface":
		kind = ast.KindInterface
	case "trait":
		kind = ast.KindTrait
	case "", "class":
	default:
		return nil, errors.Errorf("unknown kind %q", bc.Kind)
	}
	c := NewClassDecl(fqsen.ParseClassName(bc.Name), kind)
	if bc.Final {
		c.Flags |= ast.ModFinal
	}
	if bc.Abstract {
		c.Flags |= ast.ModAbstract
	}
	if bc.Extends != "" {
		c.Parent = fqsen.ParseClassName(bc.Extends)
	}
	for _, i := range bc.Implements {
		c.Interfaces = append(c.Interfaces, fqsen.ParseClassName(i))
	}
	for _, bp := range bc.Properties {
		t, err := types.FromString(bp.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "property $%s", bp.Name)
		}
		flags := visibilityFlag(bp.Visibility)
		if bp.Static {
			flags |= ast.ModStatic
		}
		c.AddProperty(&PropertyDecl{Name: bp.Name, Flags: flags, Type: t})
	}
	for _, bm := range bc.Methods {
		sig, err := bm.signature()
		if err != nil {
			return nil, errors.Wrapf(err, "method %s", bm.Name)
		}
		flags := ast.ModPublic
		if bm.Static {
			flags |= ast.ModStatic
		}
		if bm.Final {
			flags |= ast.ModFinal
		}
		if kind == ast.KindInterface {
			flags |= ast.ModAbstract
		}
		c.AddMethod(&MethodDecl{Name: bm.Name, Flags: flags, Signature: sig})
	}
	return c, nil
}

func visibilityFlag(s string) int {
	switch s {
	case "private":
		return ast.ModPrivate
	case "protected":
		return ast.ModProtected
	}
	return ast.ModPublic
}
