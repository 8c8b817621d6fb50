// Package fqsen defines fully qualified structural element names: the canonical,
// namespace-qualified identities of classes, functions, constants and class members.
package fqsen

import "strings"

// ClassName identifies a class, interface or trait. Namespace is always rooted
// ("\" for the global namespace, "\A\B" otherwise). Comparisons are case-insensitive.
type ClassName struct {
	namespace string
	name      string
}

// NewClassName builds a class name from a namespace and a short name.
func NewClassName(namespace, name string) ClassName {
	return ClassName{namespace: CanonicalNamespace(namespace), name: name}
}

// ParseClassName splits a fully qualified string such as `\A\B\C`.
func ParseClassName(fq string) ClassName {
	fq = "\\" + strings.TrimLeft(fq, "\\")
	i := strings.LastIndexByte(fq, '\\')
	return NewClassName(fq[:i], fq[i+1:])
}

func (c ClassName) Namespace() string { return c.namespace }
func (c ClassName) Name() string      { return c.name }
func (c ClassName) IsZero() bool      { return c.name == "" }

func (c ClassName) String() string {
	if c.name == "" {
		return ""
	}
	if c.namespace == "\\" {
		return "\\" + c.name
	}
	return c.namespace + "\\" + c.name
}

// Key is the case-folded form used for map keys.
func (c ClassName) Key() string { return strings.ToLower(c.String()) }

func (c ClassName) Equal(o ClassName) bool { return strings.EqualFold(c.String(), o.String()) }

// CanonicalNamespace roots a namespace and strips trailing separators.
func CanonicalNamespace(ns string) string {
	ns = strings.Trim(ns, "\\")
	if ns == "" {
		return "\\"
	}
	return "\\" + ns
}

// FunctionName identifies a global function. Case-insensitive.
type FunctionName struct {
	namespace string
	name      string
}

func NewFunctionName(namespace, name string) FunctionName {
	return FunctionName{namespace: CanonicalNamespace(namespace), name: name}
}

func ParseFunctionName(fq string) FunctionName {
	c := ParseClassName(fq)
	return FunctionName{namespace: c.namespace, name: c.name}
}

func (f FunctionName) Namespace() string { return f.namespace }
func (f FunctionName) Name() string      { return f.name }

func (f FunctionName) String() string {
	return ClassName{namespace: f.namespace, name: f.name}.String()
}

func (f FunctionName) Key() string { return strings.ToLower(f.String()) }

// GlobalConstName identifies a global constant. The namespace part is case-insensitive,
// the short name is not.
type GlobalConstName struct {
	namespace string
	name      string
}

func NewGlobalConstName(namespace, name string) GlobalConstName {
	return GlobalConstName{namespace: CanonicalNamespace(namespace), name: name}
}

func ParseGlobalConstName(fq string) GlobalConstName {
	c := ParseClassName(fq)
	return GlobalConstName{namespace: c.namespace, name: c.name}
}

func (g GlobalConstName) Namespace() string { return g.namespace }
func (g GlobalConstName) Name() string      { return g.name }

func (g GlobalConstName) String() string {
	return ClassName{namespace: g.namespace, name: g.name}.String()
}

func (g GlobalConstName) Key() string { return strings.ToLower(g.namespace) + "\\" + g.name }

// MethodName identifies a method on a class. Method names are case-insensitive.
type MethodName struct {
	Class ClassName
	Name  string
}

func NewMethodName(class ClassName, name string) MethodName {
	return MethodName{Class: class, Name: name}
}

func (m MethodName) String() string { return m.Class.String() + "::" + m.Name }
func (m MethodName) Key() string    { return strings.ToLower(m.String()) }

// PropertyName identifies a property. Property names are case-sensitive.
type PropertyName struct {
	Class ClassName
	Name  string
}

func NewPropertyName(class ClassName, name string) PropertyName {
	return PropertyName{Class: class, Name: name}
}

func (p PropertyName) String() string { return p.Class.String() + "::$" + p.Name }

// ClassConstName identifies a class constant. Case-sensitive.
type ClassConstName struct {
	Class ClassName
	Name  string
}

func NewClassConstName(class ClassName, name string) ClassConstName {
	return ClassConstName{Class: class, Name: name}
}

func (c ClassConstName) String() string { return c.Class.String() + "::" + c.Name }

// FunctionLike is implemented by the names of functions and methods, the two kinds of
// element that can enclose a statement.
type FunctionLike interface {
	String() string
	Key() string
	isFunctionLike()
}

func (FunctionName) isFunctionLike() {}
func (MethodName) isFunctionLike()   {}
