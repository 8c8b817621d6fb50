package resolve

import (
	"strings"

	"github.com/xplshn/gpan/pkg/config"
	"github.com/xplshn/gpan/pkg/fqsen"
	"github.com/xplshn/gpan/pkg/scope"
)

const relativePrefix = `namespace\`

func qualify(ns, name string) string {
	if ns == `\` {
		return `\` + name
	}
	return ns + `\` + name
}

func hasRelativePrefix(name string) bool {
	return len(name) > len(relativePrefix) && strings.EqualFold(name[:len(relativePrefix)], relativePrefix)
}

// QualifyClassName applies ctx's namespace and class imports to a written name.
// Keywords such as self are not special here.
func QualifyClassName(ctx scope.Context, name string) fqsen.ClassName {
	switch {
	case strings.HasPrefix(name, `\`):
		return fqsen.ParseClassName(name)
	case hasRelativePrefix(name):
		return fqsen.ParseClassName(qualify(ctx.Namespace(), name[len(relativePrefix):]))
	}
	head, rest, qualified := strings.Cut(name, `\`)
	if fq, ok := ctx.Imports().Class(head); ok {
		if qualified {
			return fqsen.ParseClassName(fq + `\` + rest)
		}
		return fqsen.ParseClassName(fq)
	}
	return fqsen.ParseClassName(qualify(ctx.Namespace(), name))
}

// FullyQualifiedClassName resolves a written class name in ctx. An unqualified name
// that is neither imported nor declared in the current namespace falls back to the
// global class of that name when one exists.
func (r *Resolver) FullyQualifiedClassName(ctx scope.Context, name string) fqsen.ClassName {
	fq := QualifyClassName(ctx, name)
	if strings.Contains(name, `\`) || ctx.Namespace() == `\` || r.st.HasClass(fq) {
		return fq
	}
	if _, imported := ctx.Imports().Class(name); imported {
		return fq
	}
	if global := fqsen.NewClassName(`\`, name); r.st.HasClass(global) {
		return global
	}
	return fq
}

func (r *Resolver) globalFallback(ctx scope.Context) bool {
	return ctx.Namespace() != `\` && r.cfg.IsFeatureEnabled(config.FeatGlobalFallback)
}

// functionCandidates lists, in lookup order, the functions a written name may mean.
func (r *Resolver) functionCandidates(ctx scope.Context, name string) []fqsen.FunctionName {
	switch {
	case strings.HasPrefix(name, `\`):
		return []fqsen.FunctionName{fqsen.ParseFunctionName(name)}
	case hasRelativePrefix(name):
		return []fqsen.FunctionName{fqsen.ParseFunctionName(qualify(ctx.Namespace(), name[len(relativePrefix):]))}
	}
	if head, rest, qualified := strings.Cut(name, `\`); qualified {
		if fq, ok := ctx.Imports().Class(head); ok {
			return []fqsen.FunctionName{fqsen.ParseFunctionName(fq + `\` + rest)}
		}
		return []fqsen.FunctionName{fqsen.ParseFunctionName(qualify(ctx.Namespace(), name))}
	}
	if fq, ok := ctx.Imports().Function(name); ok {
		return []fqsen.FunctionName{fqsen.ParseFunctionName(fq)}
	}
	local := fqsen.NewFunctionName(ctx.Namespace(), name)
	if !r.globalFallback(ctx) {
		return []fqsen.FunctionName{local}
	}
	return []fqsen.FunctionName{local, fqsen.NewFunctionName(`\`, name)}
}

// constantCandidates is functionCandidates for global constants.
func (r *Resolver) constantCandidates(ctx scope.Context, name string) []fqsen.GlobalConstName {
	switch {
	case strings.HasPrefix(name, `\`):
		return []fqsen.GlobalConstName{fqsen.ParseGlobalConstName(name)}
	case hasRelativePrefix(name):
		return []fqsen.GlobalConstName{fqsen.ParseGlobalConstName(qualify(ctx.Namespace(), name[len(relativePrefix):]))}
	}
	if head, rest, qualified := strings.Cut(name, `\`); qualified {
		if fq, ok := ctx.Imports().Class(head); ok {
			return []fqsen.GlobalConstName{fqsen.ParseGlobalConstName(fq + `\` + rest)}
		}
		return []fqsen.GlobalConstName{fqsen.ParseGlobalConstName(qualify(ctx.Namespace(), name))}
	}
	if fq, ok := ctx.Imports().Constant(name); ok {
		return []fqsen.GlobalConstName{fqsen.ParseGlobalConstName(fq)}
	}
	local := fqsen.NewGlobalConstName(ctx.Namespace(), name)
	if !r.globalFallback(ctx) {
		return []fqsen.GlobalConstName{local}
	}
	return []fqsen.GlobalConstName{local, fqsen.NewGlobalConstName(`\`, name)}
}
