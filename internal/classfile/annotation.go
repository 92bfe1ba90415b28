package classfile

// Annotation is a parsed annotation with its explicitly present elements.
// Defaults declared on the annotation type are not applied.
type Annotation struct {
	Type    string // binary name, e.g. "com.fasterxml.jackson.annotation.JsonProperty"
	Visible bool
	Values  map[string]ElementValue
}

// ElementValue is one annotation element. Exactly one of the payload fields
// is meaningful, selected by Tag.
type ElementValue struct {
	Tag       byte
	Const     any // string, int64, float64 or bool
	EnumType  string
	EnumConst string
	Class     string // field descriptor of a class literal
	Nested    *Annotation
	Array     []ElementValue
}

// StringElem returns a string element.
func (a Annotation) StringElem(name string) (string, bool) {
	v, ok := a.Values[name]
	if !ok {
		return "", false
	}
	s, ok := v.Const.(string)
	return s, ok
}

// BoolElem returns a boolean element.
func (a Annotation) BoolElem(name string) (bool, bool) {
	v, ok := a.Values[name]
	if !ok {
		return false, false
	}
	b, ok := v.Const.(bool)
	return b, ok
}

// StringsElem returns a String[] element; a single value is accepted as a
// one-element array, mirroring the source language's shorthand.
func (a Annotation) StringsElem(name string) []string {
	v, ok := a.Values[name]
	if !ok {
		return nil
	}
	if v.Tag != '[' {
		if s, ok := v.Const.(string); ok {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.Array))
	for _, e := range v.Array {
		if s, ok := e.Const.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func readAnnotations(r *reader, pool constPool, visible bool) []Annotation {
	n := int(r.u2())
	out := make([]Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, readAnnotation(r, pool, visible, 0))
	}
	return out
}

func readAnnotation(r *reader, pool constPool, visible bool, depth int) Annotation {
	a := Annotation{Visible: visible}
	a.Type = descriptorClassName(pool.utf8(r, r.u2()))
	n := int(r.u2())
	if n > 0 {
		a.Values = make(map[string]ElementValue, n)
	}
	for i := 0; i < n && r.err == nil; i++ {
		name := pool.utf8(r, r.u2())
		a.Values[name] = readElementValue(r, pool, visible, depth)
	}
	return a
}

const maxElementDepth = 32

func readElementValue(r *reader, pool constPool, visible bool, depth int) ElementValue {
	if depth > maxElementDepth {
		r.fail("annotation values nested too deeply")
		return ElementValue{}
	}
	v := ElementValue{Tag: r.u1()}
	switch v.Tag {
	case 'B', 'C', 'I', 'S':
		v.Const = pool.integer(r, r.u2())
	case 'Z':
		v.Const = pool.integer(r, r.u2()) != 0
	case 'J':
		v.Const = pool.long(r, r.u2())
	case 'F':
		v.Const = pool.float(r, r.u2())
	case 'D':
		v.Const = pool.double(r, r.u2())
	case 's':
		v.Const = pool.utf8(r, r.u2())
	case 'e':
		v.EnumType = descriptorClassName(pool.utf8(r, r.u2()))
		v.EnumConst = pool.utf8(r, r.u2())
	case 'c':
		v.Class = pool.utf8(r, r.u2())
	case '@':
		nested := readAnnotation(r, pool, visible, depth+1)
		v.Nested = &nested
	case '[':
		n := int(r.u2())
		v.Array = make([]ElementValue, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			v.Array = append(v.Array, readElementValue(r, pool, visible, depth+1))
		}
	default:
		r.fail("unknown element value tag %q", v.Tag)
	}
	return v
}

// Type annotation target types that can appear on a field.
const targetField = 0x13

// readFieldTypeAnnotations keeps annotations that target the field's type
// itself (empty type path); annotations on nested type arguments are skipped.
func readFieldTypeAnnotations(r *reader, pool constPool, visible bool) []Annotation {
	n := int(r.u2())
	var out []Annotation
	for i := 0; i < n && r.err == nil; i++ {
		target := r.u1()
		skipTargetInfo(r, target)
		pathLen := int(r.u1())
		r.skip(pathLen * 2)
		a := readAnnotation(r, pool, visible, 0)
		if target == targetField && pathLen == 0 {
			out = append(out, a)
		}
	}
	return out
}

func skipTargetInfo(r *reader, target uint8) {
	switch target {
	case 0x00, 0x01, 0x16:
		r.skip(1)
	case 0x10, 0x17, 0x42, 0x43, 0x44, 0x45, 0x46:
		r.skip(2)
	case 0x11, 0x12:
		r.skip(2)
	case 0x13, 0x14, 0x15:
	case 0x40, 0x41:
		n := int(r.u2())
		r.skip(n * 6)
	case 0x47, 0x48, 0x49, 0x4A, 0x4B:
		r.skip(3)
	default:
		r.fail("unknown type annotation target 0x%02x", target)
	}
}

// descriptorClassName turns "Lcom/example/Foo;" into "com.example.Foo".
func descriptorClassName(desc string) string {
	if len(desc) >= 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return InternalToBinary(desc[1 : len(desc)-1])
	}
	return InternalToBinary(desc)
}
