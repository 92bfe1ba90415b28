// Package classfiletest writes minimal class files and JARs for tests.
package classfiletest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"schemagen/internal/classfile"
)

// Class describes a class file to emit. Methods carry no code; the reader
// never looks at bytecode.
type Class struct {
	Name        string // binary name
	Super       string // defaults to java.lang.Object; "-" emits none
	Interfaces  []string
	Access      uint16 // defaults to public|super
	Major       uint16 // defaults to 61
	Signature   string
	Annotations []Annotation
	Fields      []Field
	Methods     []Method
}

type Field struct {
	Name            string
	Descriptor      string
	Signature       string
	Access          uint16
	Annotations     []Annotation
	TypeAnnotations []Annotation
}

type Method struct {
	Name       string
	Descriptor string
	Access     uint16
}

type Annotation struct {
	Type      string // binary name
	Invisible bool
	Elems     []Elem
}

// Elem is one annotation element. Value may be string, bool, int, []string,
// EnumRef or a nested Annotation.
type Elem struct {
	Name  string
	Value any
}

type EnumRef struct {
	Type  string
	Const string
}

// Enum returns an enum class with the given constants.
func Enum(name string, constants ...string) Class {
	desc := "L" + classfile.BinaryToInternal(name) + ";"
	c := Class{
		Name:      name,
		Super:     "java.lang.Enum",
		Access:    classfile.AccPublic | classfile.AccFinal | classfile.AccSuper | classfile.AccEnum,
		Signature: "Ljava/lang/Enum<" + desc + ">;",
	}
	for _, k := range constants {
		c.Fields = append(c.Fields, Field{
			Name:       k,
			Descriptor: desc,
			Access:     classfile.AccPublic | classfile.AccStatic | classfile.AccFinal | classfile.AccEnum,
		})
	}
	c.Fields = append(c.Fields, Field{
		Name:       "$VALUES",
		Descriptor: "[" + desc,
		Access:     classfile.AccPrivate | classfile.AccStatic | classfile.AccFinal | classfile.AccSynthetic,
	})
	c.Methods = append(c.Methods,
		Method{Name: "values", Descriptor: "()[" + desc, Access: classfile.AccPublic | classfile.AccStatic},
		Method{Name: "valueOf", Descriptor: "(Ljava/lang/String;)" + desc, Access: classfile.AccPublic | classfile.AccStatic},
	)
	return c
}

type pool struct {
	buf   bytes.Buffer
	count uint16
	index map[string]uint16
}

func newPool() *pool {
	return &pool{count: 1, index: map[string]uint16{}}
}

func (p *pool) add(key string, write func(*bytes.Buffer), slots uint16) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := p.count
	write(&p.buf)
	p.count += slots
	p.index[key] = i
	return i
}

func (p *pool) utf8(s string) uint16 {
	return p.add("u:"+s, func(b *bytes.Buffer) {
		raw := classfile.EncodeModifiedUTF8(s)
		b.WriteByte(classfile.TagUtf8)
		writeU2(b, uint16(len(raw)))
		b.Write(raw)
	}, 1)
}

func (p *pool) class(binary string) uint16 {
	name := p.utf8(classfile.BinaryToInternal(binary))
	return p.add("c:"+binary, func(b *bytes.Buffer) {
		b.WriteByte(classfile.TagClass)
		writeU2(b, name)
	}, 1)
}

func (p *pool) integer(v int32) uint16 {
	return p.add(fmt.Sprintf("i:%d", v), func(b *bytes.Buffer) {
		b.WriteByte(classfile.TagInteger)
		writeU4(b, uint32(v))
	}, 1)
}

// Bytes renders the class file.
func (c Class) Bytes() []byte {
	p := newPool()
	var body bytes.Buffer

	access := c.Access
	if access == 0 {
		access = classfile.AccPublic | classfile.AccSuper
	}
	writeU2(&body, access)
	writeU2(&body, p.class(c.Name))
	switch c.Super {
	case "-":
		writeU2(&body, 0)
	case "":
		writeU2(&body, p.class("java.lang.Object"))
	default:
		writeU2(&body, p.class(c.Super))
	}
	writeU2(&body, uint16(len(c.Interfaces)))
	for _, iface := range c.Interfaces {
		writeU2(&body, p.class(iface))
	}

	writeU2(&body, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		writeU2(&body, f.Access)
		writeU2(&body, p.utf8(f.Name))
		writeU2(&body, p.utf8(f.Descriptor))
		var attrs []attr
		if f.Signature != "" {
			attrs = append(attrs, signatureAttr(p, f.Signature))
		}
		attrs = append(attrs, annotationAttrs(p, f.Annotations)...)
		attrs = append(attrs, typeAnnotationAttrs(p, f.TypeAnnotations)...)
		writeAttrs(&body, p, attrs)
	}

	writeU2(&body, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		writeU2(&body, m.Access)
		writeU2(&body, p.utf8(m.Name))
		writeU2(&body, p.utf8(m.Descriptor))
		writeU2(&body, 0)
	}

	var attrs []attr
	if c.Signature != "" {
		attrs = append(attrs, signatureAttr(p, c.Signature))
	}
	attrs = append(attrs, annotationAttrs(p, c.Annotations)...)
	writeAttrs(&body, p, attrs)

	major := c.Major
	if major == 0 {
		major = 61
	}
	var out bytes.Buffer
	writeU4(&out, 0xCAFEBABE)
	writeU2(&out, 0)
	writeU2(&out, major)
	writeU2(&out, p.count)
	out.Write(p.buf.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

type attr struct {
	name string
	body []byte
}

func signatureAttr(p *pool, sig string) attr {
	var b bytes.Buffer
	writeU2(&b, p.utf8(sig))
	return attr{name: "Signature", body: b.Bytes()}
}

func annotationAttrs(p *pool, list []Annotation) []attr {
	var visible, invisible []Annotation
	for _, a := range list {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}
	var out []attr
	for _, group := range []struct {
		name string
		list []Annotation
	}{{"RuntimeVisibleAnnotations", visible}, {"RuntimeInvisibleAnnotations", invisible}} {
		if len(group.list) == 0 {
			continue
		}
		var b bytes.Buffer
		writeU2(&b, uint16(len(group.list)))
		for _, a := range group.list {
			writeAnnotation(&b, p, a)
		}
		out = append(out, attr{name: group.name, body: b.Bytes()})
	}
	return out
}

func typeAnnotationAttrs(p *pool, list []Annotation) []attr {
	if len(list) == 0 {
		return nil
	}
	var b bytes.Buffer
	writeU2(&b, uint16(len(list)))
	for _, a := range list {
		b.WriteByte(0x13) // field target, empty target_info
		b.WriteByte(0)    // empty type path
		writeAnnotation(&b, p, a)
	}
	return []attr{{name: "RuntimeVisibleTypeAnnotations", body: b.Bytes()}}
}

func writeAnnotation(b *bytes.Buffer, p *pool, a Annotation) {
	writeU2(b, p.utf8("L"+classfile.BinaryToInternal(a.Type)+";"))
	writeU2(b, uint16(len(a.Elems)))
	for _, e := range a.Elems {
		writeU2(b, p.utf8(e.Name))
		writeElementValue(b, p, e.Value)
	}
}

func writeElementValue(b *bytes.Buffer, p *pool, v any) {
	switch v := v.(type) {
	case string:
		b.WriteByte('s')
		writeU2(b, p.utf8(v))
	case bool:
		b.WriteByte('Z')
		n := int32(0)
		if v {
			n = 1
		}
		writeU2(b, p.integer(n))
	case int:
		b.WriteByte('I')
		writeU2(b, p.integer(int32(v)))
	case []string:
		b.WriteByte('[')
		writeU2(b, uint16(len(v)))
		for _, s := range v {
			writeElementValue(b, p, s)
		}
	case EnumRef:
		b.WriteByte('e')
		writeU2(b, p.utf8("L"+classfile.BinaryToInternal(v.Type)+";"))
		writeU2(b, p.utf8(v.Const))
	case Annotation:
		b.WriteByte('@')
		writeAnnotation(b, p, v)
	default:
		panic(fmt.Sprintf("classfiletest: unsupported element value %T", v))
	}
}

func writeAttrs(b *bytes.Buffer, p *pool, attrs []attr) {
	writeU2(b, uint16(len(attrs)))
	for _, a := range attrs {
		writeU2(b, p.utf8(a.name))
		writeU4(b, uint32(len(a.body)))
		b.Write(a.body)
	}
}

func writeU2(b *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.Write(tmp[:])
}

func writeU4(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

// EntryName is the JAR entry path of a binary class name.
func EntryName(binary string) string {
	return classfile.BinaryToInternal(binary) + ".class"
}

// WriteJar writes classes into a JAR at path.
func WriteJar(path string, classes ...Class) error {
	entries := make(map[string][]byte, len(classes))
	order := make([]string, 0, len(classes))
	for _, c := range classes {
		name := EntryName(c.Name)
		entries[name] = c.Bytes()
		order = append(order, name)
	}
	return WriteJarEntries(path, order, entries)
}

// WriteJarEntries writes raw entries in the given order.
func WriteJarEntries(path string, order []string, entries map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if w, err := zw.Create("META-INF/MANIFEST.MF"); err != nil {
		return err
	} else if _, err := w.Write([]byte("Manifest-Version: 1.0\r\n")); err != nil {
		return err
	}
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(entries[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
