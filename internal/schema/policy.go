package schema

import (
	"strings"

	"schemagen/internal/classfile"
)

// Verdict is the outcome of a member rule.
type Verdict int

const (
	Exclude Verdict = iota
	Include
)

func (v Verdict) String() string {
	if v == Include {
		return "include"
	}
	return "exclude"
}

// Jackson annotation names honoured by the deriver.
const (
	annJsonIgnore           = "com.fasterxml.jackson.annotation.JsonIgnore"
	annJsonIgnoreProperties = "com.fasterxml.jackson.annotation.JsonIgnoreProperties"
	annJsonIgnoreType       = "com.fasterxml.jackson.annotation.JsonIgnoreType"
	annJsonProperty         = "com.fasterxml.jackson.annotation.JsonProperty"
	annJsonPropertyDesc     = "com.fasterxml.jackson.annotation.JsonPropertyDescription"
	annJsonClassDescription = "com.fasterxml.jackson.annotation.JsonClassDescription"
)

// Member is one declared field or method presented to the rule table.
type Member struct {
	Owner  *classfile.Class
	Decl   *classfile.Member
	Method bool
	// IgnoredProperties holds names listed by @JsonIgnoreProperties on the
	// owner or any of its superclasses.
	IgnoredProperties map[string]bool
	// TypeIgnored is set when the field's declared class carries
	// @JsonIgnoreType.
	TypeIgnored bool
}

func (m Member) static() bool { return m.Decl.Is(classfile.AccStatic) }

// Rule is one row of the member table: the first rule whose Match returns
// true decides the member's verdict.
type Rule struct {
	Name    string
	Match   func(Member) bool
	Verdict Verdict
}

// Policy is the fixed derivation policy.
type Policy struct {
	Rules []Rule
	// NullableAnnotations are simple annotation names that mark a field
	// nullable, whatever their package.
	NullableAnnotations []string
}

// DefaultPolicy is the process-wide policy: declared instance fields only.
func DefaultPolicy() Policy {
	return Policy{
		Rules: []Rule{
			{Name: "initializer", Verdict: Exclude, Match: func(m Member) bool {
				return m.Method && (m.Decl.Name == "<init>" || m.Decl.Name == "<clinit>")
			}},
			{Name: "synthetic", Verdict: Exclude, Match: func(m Member) bool {
				return m.Decl.Is(classfile.AccSynthetic) || (m.Method && m.Decl.Is(classfile.AccBridge))
			}},
			{Name: "static-member", Verdict: Exclude, Match: Member.static},
			{Name: "getter-method", Verdict: Exclude, Match: isGetter},
			{Name: "argument-free-derived", Verdict: Exclude, Match: func(m Member) bool {
				mt, ok := methodType(m)
				return ok && len(mt.Params) == 0 && mt.Return != nil
			}},
			{Name: "void-method", Verdict: Exclude, Match: func(m Member) bool {
				mt, ok := methodType(m)
				return ok && mt.Return == nil
			}},
			{Name: "non-getter-method", Verdict: Exclude, Match: func(m Member) bool { return m.Method }},
			{Name: "transient-field", Verdict: Exclude, Match: func(m Member) bool { return m.Decl.Is(classfile.AccTransient) }},
			{Name: "json-ignore", Verdict: Exclude, Match: func(m Member) bool {
				a, ok := m.Decl.Annotation(annJsonIgnore)
				if !ok {
					return false
				}
				if v, set := a.BoolElem("value"); set {
					return v
				}
				return true
			}},
			{Name: "ignored-property", Verdict: Exclude, Match: func(m Member) bool {
				return m.IgnoredProperties[m.Decl.Name] || m.IgnoredProperties[propertyName(m.Decl)]
			}},
			{Name: "ignored-type", Verdict: Exclude, Match: func(m Member) bool { return m.TypeIgnored }},
			{Name: "instance-field", Verdict: Include, Match: func(m Member) bool { return true }},
		},
		NullableAnnotations: []string{"Nullable", "CheckForNull"},
	}
}

// Evaluate returns the first matching rule. A policy without a catch-all
// rule excludes unmatched members.
func (p Policy) Evaluate(m Member) Rule {
	for _, r := range p.Rules {
		if r.Match(m) {
			return r
		}
	}
	return Rule{Name: "unmatched", Verdict: Exclude}
}

func methodType(m Member) (*classfile.MethodType, bool) {
	if !m.Method {
		return nil, false
	}
	mt, err := classfile.ParseMethodType(m.Decl.Descriptor)
	return mt, err == nil
}

func isGetter(m Member) bool {
	mt, ok := methodType(m)
	if !ok || len(mt.Params) != 0 || mt.Return == nil {
		return false
	}
	name := m.Decl.Name
	switch {
	case hasAccessorPrefix(name, "get"):
		return true
	case hasAccessorPrefix(name, "is"):
		return mt.Return.Kind == classfile.KindPrimitive && mt.Return.Name == "boolean" ||
			mt.Return.Kind == classfile.KindClass && mt.Return.Name == "java.lang.Boolean"
	}
	return false
}

func hasAccessorPrefix(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return false
	}
	c := name[len(prefix)]
	return c >= 'A' && c <= 'Z' || c == '_' || c >= '0' && c <= '9'
}

// propertyName is the field's serialized name.
func propertyName(f *classfile.Member) string {
	if a, ok := f.Annotation(annJsonProperty); ok {
		if v, _ := a.StringElem("value"); v != "" {
			return v
		}
	}
	return f.Name
}

func (p Policy) nullableAnnotated(f *classfile.Member) bool {
	for _, list := range [][]classfile.Annotation{f.Annotations, f.TypeAnnotations} {
		for _, a := range list {
			simple := classfile.SimpleName(a.Type)
			for _, n := range p.NullableAnnotations {
				if simple == n {
					return true
				}
			}
		}
	}
	return false
}
