package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"

	"github.com/xplshn/gpan/pkg/fqsen"
)

// ParseOptions supplies the lexical context a type string is read in.
type ParseOptions struct {
	// ResolveClass maps a written class name to its FQSEN. When nil, names are taken
	// as fully qualified.
	ResolveClass func(name string) fqsen.ClassName
	// Templates are the template parameter names in scope.
	Templates []string
}

// ParseError reports malformed type syntax.
type ParseError struct {
	Input  string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed type %q at offset %d: %v", e.Input, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func one(t *Type) []*Type { return []*Type{t} }

var keywords = map[string]func() []*Type{
	"void":             func() []*Type { return one(Void()) },
	"never":            func() []*Type { return one(Void()) },
	"null":             func() []*Type { return one(Null()) },
	"bool":             func() []*Type { return one(Bool(false)) },
	"boolean":          func() []*Type { return one(Bool(false)) },
	"true":             func() []*Type { return one(True(false)) },
	"false":            func() []*Type { return one(False(false)) },
	"int":              func() []*Type { return one(Int(false)) },
	"integer":          func() []*Type { return one(Int(false)) },
	"positive-int":     func() []*Type { return one(Int(false)) },
	"negative-int":     func() []*Type { return one(Int(false)) },
	"float":            func() []*Type { return one(Float(false)) },
	"double":           func() []*Type { return one(Float(false)) },
	"string":           func() []*Type { return one(String(false)) },
	"non-empty-string": func() []*Type { return one(String(false)) },
	"class-string":     func() []*Type { return one(String(false)) },
	"callable-string":  func() []*Type { return one(String(false)) },
	"object":           func() []*Type { return one(Object(false)) },
	"self":             func() []*Type { return one(Self(false)) },
	"static":           func() []*Type { return one(Static(false)) },
	"$this":            func() []*Type { return one(Static(false)) },
	"callable":         func() []*Type { return one(Callable(false)) },
	"closure":          func() []*Type { return one(Closure(false)) },
	"resource":         func() []*Type { return one(Resource(false)) },
	"mixed":            func() []*Type { return one(Mixed()) },
	"non-null-mixed":   func() []*Type { return one(NonNullMixed()) },
	"scalar": func() []*Type {
		return []*Type{Bool(false), Int(false), Float(false), String(false)}
	},
	"array-key": func() []*Type { return []*Type{Int(false), String(false)} },
	"numeric":   func() []*Type { return []*Type{Int(false), Float(false)} },
}

type parser struct {
	cursor *parsly.Cursor
	input  string
	opts   ParseOptions
}

// Parse reads a type string such as `?int|array{a:string,b?:Foo[]}|Bar<T>`.
func Parse(text string, opts ParseOptions) (UnionType, error) {
	p := &parser{cursor: parsly.NewCursor("", []byte(text), 0), input: text, opts: opts}
	u, err := p.union()
	if err != nil {
		return Empty(), err
	}
	p.cursor.MatchOne(whitespaceMatcher)
	if p.cursor.Pos < p.cursor.InputSize {
		return Empty(), p.errorf("unexpected %q", text[p.cursor.Pos:])
	}
	return u, nil
}

// FromString parses text with names taken as fully qualified.
func FromString(text string) (UnionType, error) { return Parse(text, ParseOptions{}) }

// MustParse parses a type string generated by the analyzer itself; malformed input is a
// programming error.
func MustParse(text string) UnionType {
	u, err := FromString(text)
	if err != nil {
		panic(err)
	}
	return u
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Input: p.input, Offset: p.cursor.Pos, Err: fmt.Errorf(format, args...)}
}

func (p *parser) expected(tokens ...*parsly.Token) error {
	return &ParseError{Input: p.input, Offset: p.cursor.Pos, Err: p.cursor.NewError(tokens...)}
}

func (p *parser) union() (UnionType, error) {
	var ts []*Type
	for {
		group, err := p.atomGroup()
		if err != nil {
			return Empty(), err
		}
		ts = append(ts, group...)
		if p.cursor.MatchAfterOptional(whitespaceMatcher, pipeMatcher).Code != pipeToken {
			return Of(ts...), nil
		}
	}
}

func (p *parser) atomGroup() ([]*Type, error) {
	nullable := p.cursor.MatchAfterOptional(whitespaceMatcher, questionMatcher).Code == questionToken
	ts, err := p.base()
	if err != nil {
		return nil, err
	}
	for p.cursor.MatchAfterOptional(whitespaceMatcher, arraySuffixMatcher).Code == arraySuffixToken {
		for i, t := range ts {
			ts[i] = GenericArray(t, KeyMixed, false)
		}
	}
	if nullable {
		for i, t := range ts {
			ts[i] = t.WithIsNullable(true)
		}
	}
	return ts, nil
}

func (p *parser) base() ([]*Type, error) {
	tokens := []*parsly.Token{openParenMatcher, integerMatcher, singleQuotedMatcher, doubleQuotedMatcher, identifierMatcher}
	matched := p.cursor.MatchAfterOptional(whitespaceMatcher, tokens...)
	switch matched.Code {
	case openParenToken:
		u, err := p.union()
		if err != nil {
			return nil, err
		}
		if p.cursor.MatchAfterOptional(whitespaceMatcher, closeParenMatcher).Code != closeParenToken {
			return nil, p.expected(closeParenMatcher)
		}
		return append([]*Type{}, u.types...), nil
	case integerToken:
		v, err := strconv.ParseInt(matched.Text(p.cursor), 10, 64)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return []*Type{LiteralInt(v, false)}, nil
	case singleQuotedToken, doubleQuotedToken:
		return []*Type{LiteralString(unquote(matched.Text(p.cursor)), false)}, nil
	case identifierToken:
		return p.named(matched.Text(p.cursor))
	}
	return nil, p.expected(tokens...)
}

func (p *parser) named(name string) ([]*Type, error) {
	lower := strings.ToLower(name)
	switch lower {
	case "array", "list", "non-empty-array", "non-empty-list":
		if p.cursor.MatchAfterOptional(whitespaceMatcher, openBraceMatcher).Code == openBraceToken {
			t, err := p.shape()
			if err != nil {
				return nil, err
			}
			return []*Type{t}, nil
		}
		if p.cursor.MatchAfterOptional(whitespaceMatcher, openAngleMatcher).Code == openAngleToken {
			return p.genericArray(strings.HasSuffix(lower, "list"))
		}
		if strings.HasSuffix(lower, "list") {
			return []*Type{GenericArray(Mixed(), KeyInt, false)}, nil
		}
		return []*Type{Array(false)}, nil
	case "iterable":
		if p.cursor.MatchAfterOptional(whitespaceMatcher, openAngleMatcher).Code == openAngleToken {
			if _, err := p.argumentList(); err != nil {
				return nil, err
			}
		}
		return []*Type{Iterable(false)}, nil
	}
	for _, tmpl := range p.opts.Templates {
		if tmpl == name {
			return []*Type{Template(name, false)}, nil
		}
	}
	if kw, ok := keywords[lower]; ok {
		return kw(), nil
	}
	var args []UnionType
	if p.cursor.MatchAfterOptional(whitespaceMatcher, openAngleMatcher).Code == openAngleToken {
		var err error
		if args, err = p.argumentList(); err != nil {
			return nil, err
		}
	}
	return []*Type{Class(p.resolveClass(name), args, false)}, nil
}

func (p *parser) resolveClass(name string) fqsen.ClassName {
	if p.opts.ResolveClass != nil {
		return p.opts.ResolveClass(name)
	}
	return fqsen.ParseClassName(name)
}

// argumentList reads `A, B>` after an opening angle bracket.
func (p *parser) argumentList() ([]UnionType, error) {
	var args []UnionType
	for {
		u, err := p.union()
		if err != nil {
			return nil, err
		}
		args = append(args, u)
		switch p.cursor.MatchAfterOptional(whitespaceMatcher, commaMatcher, closeAngleMatcher).Code {
		case commaToken:
		case closeAngleToken:
			return args, nil
		default:
			return nil, p.expected(commaMatcher, closeAngleMatcher)
		}
	}
}

func (p *parser) genericArray(isList bool) ([]*Type, error) {
	args, err := p.argumentList()
	if err != nil {
		return nil, err
	}
	key := KeyMixed
	if isList {
		key = KeyInt
	}
	elem := args[len(args)-1]
	if len(args) == 2 {
		switch {
		case args[0].IsExclusively(IsIntKind):
			key = KeyInt
		case args[0].IsExclusively(IsStringKind):
			key = KeyString
		}
	} else if len(args) > 2 {
		return nil, p.errorf("array takes at most two type arguments")
	}
	if elem.IsEmpty() {
		elem = MixedUnion()
	}
	ts := make([]*Type, 0, elem.TypeCount())
	for _, e := range elem.types {
		ts = append(ts, GenericArray(e, key, false))
	}
	return ts, nil
}

// shape reads the fields of `array{...}` after the opening brace. Fields without a key
// are numbered from 0.
func (p *parser) shape() (*Type, error) {
	var fields []ShapeField
	if p.cursor.MatchAfterOptional(whitespaceMatcher, closeBraceMatcher).Code == closeBraceToken {
		return EmptyArray(false), nil
	}
	next := 0
	for {
		f, err := p.shapeField(&next)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		switch p.cursor.MatchAfterOptional(whitespaceMatcher, commaMatcher, closeBraceMatcher).Code {
		case commaToken:
			if p.cursor.MatchAfterOptional(whitespaceMatcher, closeBraceMatcher).Code == closeBraceToken {
				return ArrayShape(fields, false), nil
			}
		case closeBraceToken:
			return ArrayShape(fields, false), nil
		default:
			return nil, p.expected(commaMatcher, closeBraceMatcher)
		}
	}
}

func (p *parser) shapeField(next *int) (ShapeField, error) {
	start := p.cursor.Pos
	matched := p.cursor.MatchAfterOptional(whitespaceMatcher, integerMatcher, singleQuotedMatcher, doubleQuotedMatcher, identifierMatcher)
	var key string
	switch matched.Code {
	case integerToken, identifierToken:
		key = matched.Text(p.cursor)
	case singleQuotedToken, doubleQuotedToken:
		key = unquote(matched.Text(p.cursor))
	}
	if key != "" || matched.Code == singleQuotedToken || matched.Code == doubleQuotedToken {
		optional := p.cursor.MatchAfterOptional(whitespaceMatcher, questionMatcher).Code == questionToken
		if p.cursor.MatchAfterOptional(whitespaceMatcher, colonMatcher).Code == colonToken {
			u, err := p.union()
			if err != nil {
				return ShapeField{}, err
			}
			if n, err := strconv.Atoi(key); err == nil && n >= *next {
				*next = n + 1
			}
			return ShapeField{Key: key, Type: u, PossiblyUndefined: optional}, nil
		}
	}
	p.cursor.Pos = start
	u, err := p.union()
	if err != nil {
		return ShapeField{}, err
	}
	f := ShapeField{Key: strconv.Itoa(*next), Type: u}
	*next++
	return f, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
