package classfile

import (
	"strings"
)

const magic = 0xCAFEBABE

// Class is the structural view of one class file. Bytecode is not retained.
type Class struct {
	Major       uint16
	Minor       uint16
	Access      uint16
	Name        string // binary name, e.g. "com.example.Outer$Inner"
	SuperName   string // empty for java.lang.Object and module descriptors
	Interfaces  []string
	Signature   string
	Fields      []Member
	Methods     []Member
	Annotations []Annotation
}

// Member is a field or method.
type Member struct {
	Access      uint16
	Name        string
	Descriptor  string
	Signature   string
	Annotations []Annotation
	// TypeAnnotations holds type-use annotations on the member's own
	// top-level type (fields only).
	TypeAnnotations []Annotation
}

// GenericType returns the member's Signature when present, else its descriptor.
func (m *Member) GenericType() string {
	if m.Signature != "" {
		return m.Signature
	}
	return m.Descriptor
}

// SimpleName strips the package and any enclosing class names.
func (c *Class) SimpleName() string {
	return SimpleName(c.Name)
}

func SimpleName(binary string) string {
	name := binary
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '$'); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}

// Annotation finds a declaration annotation on the class by binary name.
func (c *Class) Annotation(typeName string) (Annotation, bool) {
	return findAnnotation(c.Annotations, typeName)
}

// Annotation finds a declaration annotation on the member by binary name.
func (m *Member) Annotation(typeName string) (Annotation, bool) {
	return findAnnotation(m.Annotations, typeName)
}

func findAnnotation(list []Annotation, typeName string) (Annotation, bool) {
	for _, a := range list {
		if a.Type == typeName {
			return a, true
		}
	}
	return Annotation{}, false
}

// Parse decodes a class file.
func Parse(b []byte) (*Class, error) {
	r := &reader{b: b}
	if r.u4() != magic {
		if r.err == nil {
			r.err = &FormatError{Offset: 0, Msg: "bad magic"}
		}
		return nil, r.err
	}
	c := &Class{}
	c.Minor = r.u2()
	c.Major = r.u2()
	pool := readConstPool(r)
	if r.err != nil {
		return nil, r.err
	}

	c.Access = r.u2()
	c.Name = pool.className(r, r.u2())
	if super := r.u2(); super != 0 {
		c.SuperName = pool.className(r, super)
	}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		c.Interfaces = append(c.Interfaces, pool.className(r, r.u2()))
	}
	c.Fields = readMembers(r, pool, true)
	c.Methods = readMembers(r, pool, false)
	readAttributes(r, pool, func(name string, ar *reader) {
		switch name {
		case "Signature":
			c.Signature = pool.utf8(ar, ar.u2())
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			c.Annotations = append(c.Annotations, readAnnotations(ar, pool, name == "RuntimeVisibleAnnotations")...)
		}
	})
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.b) {
		return nil, &FormatError{Offset: r.off, Msg: "trailing bytes"}
	}
	return c, nil
}

func readMembers(r *reader, pool constPool, fields bool) []Member {
	n := int(r.u2())
	out := make([]Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := Member{Access: r.u2()}
		m.Name = pool.utf8(r, r.u2())
		m.Descriptor = pool.utf8(r, r.u2())
		readAttributes(r, pool, func(name string, ar *reader) {
			switch name {
			case "Signature":
				m.Signature = pool.utf8(ar, ar.u2())
			case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
				m.Annotations = append(m.Annotations, readAnnotations(ar, pool, name == "RuntimeVisibleAnnotations")...)
			case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
				if fields {
					m.TypeAnnotations = append(m.TypeAnnotations, readFieldTypeAnnotations(ar, pool, name == "RuntimeVisibleTypeAnnotations")...)
				}
			}
		})
		out = append(out, m)
	}
	return out
}

// readAttributes hands each attribute body to fn through a bounded reader
// and folds any error back into r.
func readAttributes(r *reader, pool constPool, fn func(name string, ar *reader)) {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name := pool.utf8(r, r.u2())
		length := int(r.u4())
		start := r.off
		body := r.bytes(length)
		if r.err != nil {
			return
		}
		ar := &reader{b: body}
		fn(name, ar)
		if ar.err != nil {
			if fe, ok := ar.err.(*FormatError); ok {
				r.err = &FormatError{Offset: start + fe.Offset, Msg: name + ": " + fe.Msg}
			} else {
				r.err = ar.err
			}
		}
	}
}
