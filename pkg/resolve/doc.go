package resolve

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/issue"
	"github.com/xplshn/gpan/pkg/scope"
	"github.com/xplshn/gpan/pkg/types"
)

// Doc is what a doc comment says about types. Type texts are kept unparsed until
// they are read in a context.
type Doc struct {
	Var       string
	VarName   string
	Params    map[string]string
	Return    string
	Templates []string
}

// ParseDoc extracts @var, @param, @return and @template tags from a doc comment.
// Tool-prefixed spellings such as @phan-param or @psalm-return count too.
func ParseDoc(doc string) Doc {
	var d Doc
	if doc == "" {
		return d
	}
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(strings.TrimLeft(line, "*"))
		if !strings.HasPrefix(line, "@") {
			continue
		}
		tag, rest, _ := strings.Cut(line, " ")
		tag = strings.TrimPrefix(tag, "@")
		if i := strings.IndexByte(tag, '-'); i > 0 && (tag[:i] == "phan" || tag[:i] == "psalm" || tag[:i] == "phpstan") {
			tag = tag[i+1:]
		}
		typ, after := splitTypeText(strings.TrimSpace(rest))
		switch tag {
		case "var":
			d.Var = typ
			d.VarName = variableName(after)
		case "param":
			if name := variableName(after); name != "" && typ != "" {
				if d.Params == nil {
					d.Params = map[string]string{}
				}
				d.Params[name] = typ
			}
		case "return":
			d.Return = typ
		case "template":
			if typ != "" {
				d.Templates = append(d.Templates, typ)
			}
		}
	}
	return d
}

// splitTypeText cuts a type expression off the front of s. Spaces inside brackets
// belong to the type.
func splitTypeText(s string) (typ, rest string) {
	depth := 0
	for i, c := range s {
		switch c {
		case '<', '{', '(', '[':
			depth++
		case '>', '}', ')', ']':
			depth--
		case ' ', '\t':
			if depth <= 0 {
				return s[:i], strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s, ""
}

func variableName(s string) string {
	s = strings.TrimPrefix(s, "...")
	s = strings.TrimPrefix(s, "&")
	if !strings.HasPrefix(s, "$") {
		return ""
	}
	name, _, _ := strings.Cut(s[1:], " ")
	return name
}

// DeclaredType reads type syntax written in ctx: class names resolve against ctx's
// namespace and imports, parent against the enclosing class, and templates stay
// template atoms.
func (r *Resolver) DeclaredType(ctx scope.Context, text string, templates []string) (types.UnionType, error) {
	resolveClass := func(name string) fqsen.ClassName {
		if strings.EqualFold(name, "parent") {
			if cur, ok := ctx.Class(); ok {
				if c, ok := r.st.Class(cur); ok && c.HasParent() {
					return c.Parent
				}
			}
		}
		return r.FullyQualifiedClassName(ctx, name)
	}
	t, err := types.Parse(text, types.ParseOptions{ResolveClass: resolveClass, Templates: templates})
	if err != nil {
		return types.Empty(), errors.Wrapf(err, "reading type %q", text)
	}
	return t, nil
}

// DocType is DeclaredType for doc comment text: malformed text is reported as
// InvalidPHPDocType and yields the empty type.
func (r *Resolver) DocType(ctx scope.Context, line int, text string, templates []string) types.UnionType {
	if text == "" {
		return types.Empty()
	}
	t, err := r.DeclaredType(ctx, text, templates)
	if err != nil {
		var reason error = err
		if pe, ok := errors.Cause(err).(*types.ParseError); ok && pe.Err != nil {
			reason = pe.Err
		}
		r.Emit(ctx, issue.InvalidPHPDocType, line, text, reason)
		return types.Empty()
	}
	return t
}
