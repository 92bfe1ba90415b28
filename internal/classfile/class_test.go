package classfile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagen/internal/classfile"
	"schemagen/internal/classfile/classfiletest"
)

func TestParseRoundTrip(t *testing.T) {
	src := classfiletest.Class{
		Name:       "com.example.Person",
		Interfaces: []string{"java.io.Serializable"},
		Signature:  "Ljava/lang/Object;Ljava/io/Serializable;",
		Annotations: []classfiletest.Annotation{{
			Type:  "com.fasterxml.jackson.annotation.JsonClassDescription",
			Elems: []classfiletest.Elem{{Name: "value", Value: "A person"}},
		}},
		Fields: []classfiletest.Field{
			{
				Name:       "name",
				Descriptor: "Ljava/lang/String;",
				Access:     classfile.AccPrivate,
				Annotations: []classfiletest.Annotation{{
					Type: "com.fasterxml.jackson.annotation.JsonProperty",
					Elems: []classfiletest.Elem{
						{Name: "value", Value: "fullName"},
						{Name: "required", Value: true},
					},
				}},
				TypeAnnotations: []classfiletest.Annotation{{Type: "org.jspecify.annotations.Nullable"}},
			},
			{
				Name:       "tags",
				Descriptor: "Ljava/util/List;",
				Signature:  "Ljava/util/List<Ljava/lang/String;>;",
				Access:     classfile.AccPrivate,
				Annotations: []classfiletest.Annotation{{
					Type:      "com.example.Internal",
					Invisible: true,
					Elems:     []classfiletest.Elem{{Name: "value", Value: []string{"a", "b"}}},
				}},
			},
		},
		Methods: []classfiletest.Method{{Name: "getName", Descriptor: "()Ljava/lang/String;", Access: classfile.AccPublic}},
	}

	c, err := classfile.Parse(src.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "com.example.Person", c.Name)
	assert.Equal(t, "java.lang.Object", c.SuperName)
	assert.Equal(t, []string{"java.io.Serializable"}, c.Interfaces)
	assert.Equal(t, uint16(61), c.Major)
	assert.True(t, c.Is(classfile.AccPublic))
	assert.Equal(t, "Person", c.SimpleName())

	desc, ok := c.Annotation("com.fasterxml.jackson.annotation.JsonClassDescription")
	require.True(t, ok)
	v, _ := desc.StringElem("value")
	assert.Equal(t, "A person", v)

	require.Len(t, c.Fields, 2)
	name := c.Fields[0]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, "Ljava/lang/String;", name.GenericType())
	prop, ok := name.Annotation("com.fasterxml.jackson.annotation.JsonProperty")
	require.True(t, ok)
	assert.True(t, prop.Visible)
	renamed, _ := prop.StringElem("value")
	assert.Equal(t, "fullName", renamed)
	required, ok := prop.BoolElem("required")
	assert.True(t, ok)
	assert.True(t, required)
	require.Len(t, name.TypeAnnotations, 1)
	assert.Equal(t, "org.jspecify.annotations.Nullable", name.TypeAnnotations[0].Type)

	tags := c.Fields[1]
	assert.Equal(t, "Ljava/util/List<Ljava/lang/String;>;", tags.GenericType())
	internal, ok := tags.Annotation("com.example.Internal")
	require.True(t, ok)
	assert.False(t, internal.Visible)
	assert.Equal(t, []string{"a", "b"}, internal.StringsElem("value"))

	require.Len(t, c.Methods, 1)
	assert.Equal(t, "getName", c.Methods[0].Name)
}

func TestParseEnum(t *testing.T) {
	c, err := classfile.Parse(classfiletest.Enum("com.example.Color", "RED", "GREEN").Bytes())
	require.NoError(t, err)
	assert.True(t, c.Is(classfile.AccEnum))
	assert.Equal(t, "java.lang.Enum", c.SuperName)

	var constants []string
	for _, f := range c.Fields {
		if f.Is(classfile.AccEnum) {
			constants = append(constants, f.Name)
		}
	}
	assert.Equal(t, []string{"RED", "GREEN"}, constants)
}

func TestParseNestedSimpleName(t *testing.T) {
	c, err := classfile.Parse(classfiletest.Class{Name: "com.example.Outer$Inner"}.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Inner", c.SimpleName())
}

func TestParseRejectsMalformed(t *testing.T) {
	good := classfiletest.Class{Name: "com.example.A"}.Bytes()

	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, good[4:]...),
		"truncated": good[:len(good)-3],
		"trailing":  append(append([]byte{}, good...), 0x00),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := classfile.Parse(b)
			require.Error(t, err)
			var fe *classfile.FormatError
			assert.True(t, errors.As(err, &fe), "want FormatError, got %T", err)
		})
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "café", "nul\x00byte", "emoji \U0001F600"} {
		c := classfiletest.Class{Name: "com.example.A", Fields: []classfiletest.Field{{Name: s, Descriptor: "I"}}}
		parsed, err := classfile.Parse(c.Bytes())
		require.NoError(t, err)
		assert.Equal(t, s, parsed.Fields[0].Name)
	}
}

// nestedAnnotation wraps a string value in depth levels of annotation values.
func nestedAnnotation(depth int) classfiletest.Annotation {
	var v any = "leaf"
	for i := 0; i < depth; i++ {
		v = classfiletest.Annotation{Type: "com.example.Wrap", Elems: []classfiletest.Elem{{Name: "value", Value: v}}}
	}
	return classfiletest.Annotation{Type: "com.example.Outer", Elems: []classfiletest.Elem{{Name: "value", Value: v}}}
}

func TestParseBoundsNestedAnnotationValues(t *testing.T) {
	shallow := classfiletest.Class{Name: "com.example.A", Annotations: []classfiletest.Annotation{nestedAnnotation(8)}}
	c, err := classfile.Parse(shallow.Bytes())
	require.NoError(t, err)
	outer, ok := c.Annotation("com.example.Outer")
	require.True(t, ok)
	require.NotNil(t, outer.Values["value"].Nested)
	assert.Equal(t, "com.example.Wrap", outer.Values["value"].Nested.Type)

	deep := classfiletest.Class{Name: "com.example.A", Annotations: []classfiletest.Annotation{nestedAnnotation(40)}}
	_, err = classfile.Parse(deep.Bytes())
	require.Error(t, err)
	var fe *classfile.FormatError
	require.True(t, errors.As(err, &fe), "want FormatError, got %T", err)
	assert.Contains(t, fe.Msg, "nested too deeply")
}
