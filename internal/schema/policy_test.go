package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schemagen/internal/classfile"
	"schemagen/internal/schema"
)

func TestDefaultPolicyRules(t *testing.T) {
	owner := &classfile.Class{Name: "com.example.Person"}
	ignoreAnn := func(value *bool) []classfile.Annotation {
		a := classfile.Annotation{Type: "com.fasterxml.jackson.annotation.JsonIgnore", Visible: true}
		if value != nil {
			a.Values = map[string]classfile.ElementValue{"value": {Tag: 'Z', Const: *value}}
		}
		return []classfile.Annotation{a}
	}
	no := false

	cases := []struct {
		name   string
		member schema.Member
		rule   string
		want   schema.Verdict
	}{
		{"constructor", method("<init>", "()V", 0), "initializer", schema.Exclude},
		{"static initializer", method("<clinit>", "()V", classfile.AccStatic), "initializer", schema.Exclude},
		{"bridge", method("compareTo", "(Ljava/lang/Object;)I", classfile.AccBridge), "synthetic", schema.Exclude},
		{"synthetic field", fieldMember("this$0", "Lcom/example/Outer;", classfile.AccSynthetic), "synthetic", schema.Exclude},
		{"static field", fieldMember("COUNT", "I", classfile.AccStatic), "static-member", schema.Exclude},
		{"static method", method("of", "()Lcom/example/Person;", classfile.AccStatic), "static-member", schema.Exclude},
		{"getter", method("getName", "()Ljava/lang/String;", 0), "getter-method", schema.Exclude},
		{"boolean getter", method("isActive", "()Z", 0), "getter-method", schema.Exclude},
		{"is returning int", method("isoCode", "()I", 0), "argument-free-derived", schema.Exclude},
		{"derived", method("fullName", "()Ljava/lang/String;", 0), "argument-free-derived", schema.Exclude},
		{"setter", method("setName", "(Ljava/lang/String;)V", 0), "void-method", schema.Exclude},
		{"with args", method("compare", "(II)I", 0), "non-getter-method", schema.Exclude},
		{"transient", fieldMember("cache", "Ljava/lang/String;", classfile.AccTransient), "transient-field", schema.Exclude},
		{"json ignore", withAnnotations(fieldMember("secret", "Ljava/lang/String;", 0), ignoreAnn(nil)), "json-ignore", schema.Exclude},
		{"json ignore false", withAnnotations(fieldMember("shown", "Ljava/lang/String;", 0), ignoreAnn(&no)), "instance-field", schema.Include},
		{"ignored property", schema.Member{Owner: owner, Decl: &classfile.Member{Name: "internal", Descriptor: "J"}, IgnoredProperties: map[string]bool{"internal": true}}, "ignored-property", schema.Exclude},
		{"ignored type", schema.Member{Owner: owner, Decl: &classfile.Member{Name: "audit", Descriptor: "Lcom/example/Audit;"}, TypeIgnored: true}, "ignored-type", schema.Exclude},
		{"plain field", fieldMember("name", "Ljava/lang/String;", classfile.AccPrivate), "instance-field", schema.Include},
	}

	p := schema.DefaultPolicy()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.member.Owner = owner
			r := p.Evaluate(tc.member)
			assert.Equal(t, tc.rule, r.Name)
			assert.Equal(t, tc.want, r.Verdict)
		})
	}
}

func TestPolicyWithoutCatchAllExcludes(t *testing.T) {
	p := schema.Policy{}
	r := p.Evaluate(fieldMember("name", "I", 0))
	assert.Equal(t, schema.Exclude, r.Verdict)
}

func method(name, desc string, access uint16) schema.Member {
	return schema.Member{Decl: &classfile.Member{Name: name, Descriptor: desc, Access: access}, Method: true}
}

func fieldMember(name, desc string, access uint16) schema.Member {
	return schema.Member{Decl: &classfile.Member{Name: name, Descriptor: desc, Access: access}}
}

func withAnnotations(m schema.Member, anns []classfile.Annotation) schema.Member {
	m.Decl.Annotations = anns
	return m
}
