package classfile

import (
	"fmt"
	"strings"
)

type TypeKind int

const (
	KindPrimitive TypeKind = iota
	KindClass
	KindArray
	KindTypeVar
)

// Type is a parsed field descriptor or generic signature.
type Type struct {
	Kind TypeKind
	// Name is the primitive keyword ("int"), the class binary name, or the
	// type variable name.
	Name string
	Args []TypeArg // class type arguments
	Elem *Type     // array component
}

// TypeArg is a type argument. Wildcard is 0 for an exact type, '*' for an
// unbounded wildcard, '+' for extends and '-' for super.
type TypeArg struct {
	Wildcard byte
	Type     *Type
}

type TypeParam struct {
	Name  string
	Bound *Type
}

// ClassSignature is a class's Signature attribute.
type ClassSignature struct {
	TypeParams []TypeParam
	Super      *Type
	Interfaces []*Type
}

// MethodType is a parsed method descriptor. Return is nil for void.
type MethodType struct {
	Params []*Type
	Return *Type
}

var primitives = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
}

// String renders the type in source form, e.g. "java.util.List<java.lang.String>".
func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.String() + "[]"
	case KindClass:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			switch a.Wildcard {
			case '*':
				parts[i] = "?"
			case '+':
				parts[i] = "? extends " + a.Type.String()
			case '-':
				parts[i] = "? super " + a.Type.String()
			default:
				parts[i] = a.Type.String()
			}
		}
		return t.Name + "<" + strings.Join(parts, ",") + ">"
	}
	return t.Name
}

type sigParser struct {
	s   string
	pos int
}

func (p *sigParser) errorf(format string, args ...any) error {
	return fmt.Errorf("signature %q at %d: %s", p.s, p.pos, fmt.Sprintf(format, args...))
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *sigParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

// ParseFieldType parses a field descriptor or field Signature.
func ParseFieldType(sig string) (*Type, error) {
	p := &sigParser{s: sig}
	t, err := p.typeSig()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing characters")
	}
	return t, nil
}

// ParseClassSignature parses a class Signature attribute.
func ParseClassSignature(sig string) (*ClassSignature, error) {
	p := &sigParser{s: sig}
	cs := &ClassSignature{}
	params, err := p.typeParams()
	if err != nil {
		return nil, err
	}
	cs.TypeParams = params
	if cs.Super, err = p.classType(); err != nil {
		return nil, err
	}
	for p.pos < len(p.s) {
		iface, err := p.classType()
		if err != nil {
			return nil, err
		}
		cs.Interfaces = append(cs.Interfaces, iface)
	}
	return cs, nil
}

// ParseMethodType parses a method descriptor or Signature. Method type
// parameters and throws clauses are accepted and dropped.
func ParseMethodType(sig string) (*MethodType, error) {
	p := &sigParser{s: sig}
	if _, err := p.typeParams(); err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	mt := &MethodType{}
	for p.peek() != ')' {
		if p.pos >= len(p.s) {
			return nil, p.errorf("unterminated parameter list")
		}
		t, err := p.typeSig()
		if err != nil {
			return nil, err
		}
		mt.Params = append(mt.Params, t)
	}
	p.pos++
	if p.peek() == 'V' {
		p.pos++
	} else {
		t, err := p.typeSig()
		if err != nil {
			return nil, err
		}
		mt.Return = t
	}
	for p.peek() == '^' {
		p.pos++
		if _, err := p.typeSig(); err != nil {
			return nil, err
		}
	}
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing characters")
	}
	return mt, nil
}

func (p *sigParser) typeParams() ([]TypeParam, error) {
	if p.peek() != '<' {
		return nil, nil
	}
	p.pos++
	var out []TypeParam
	for p.peek() != '>' {
		if p.pos >= len(p.s) {
			return nil, p.errorf("unterminated type parameters")
		}
		name := p.identUntil(":")
		if name == "" {
			return nil, p.errorf("empty type parameter name")
		}
		tp := TypeParam{Name: name}
		// class bound (may be empty) followed by interface bounds
		for p.peek() == ':' {
			p.pos++
			c := p.peek()
			if c == ':' || c == '>' {
				continue
			}
			b, err := p.typeSig()
			if err != nil {
				return nil, err
			}
			if tp.Bound == nil {
				tp.Bound = b
			}
		}
		out = append(out, tp)
	}
	p.pos++
	return out, nil
}

func (p *sigParser) identUntil(stops string) string {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(stops, rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *sigParser) typeSig() (*Type, error) {
	c := p.peek()
	if name, ok := primitives[c]; ok {
		p.pos++
		return &Type{Kind: KindPrimitive, Name: name}, nil
	}
	switch c {
	case 'L':
		return p.classType()
	case 'T':
		p.pos++
		name := p.identUntil(";")
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		if name == "" {
			return nil, p.errorf("empty type variable")
		}
		return &Type{Kind: KindTypeVar, Name: name}, nil
	case '[':
		p.pos++
		elem, err := p.typeSig()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Elem: elem}, nil
	case 0:
		return nil, p.errorf("unexpected end")
	}
	return nil, p.errorf("unexpected %q", c)
}

// classType parses L pkg/Outer<...>.Inner<...>; keeping the arguments of the
// innermost class.
func (p *sigParser) classType() (*Type, error) {
	if err := p.expect('L'); err != nil {
		return nil, err
	}
	t := &Type{Kind: KindClass}
	name := p.identUntil("<.;")
	if name == "" {
		return nil, p.errorf("empty class name")
	}
	var err error
	for {
		t.Args = nil
		if p.peek() == '<' {
			if t.Args, err = p.typeArgs(); err != nil {
				return nil, err
			}
		}
		if p.peek() != '.' {
			break
		}
		p.pos++
		inner := p.identUntil("<.;")
		if inner == "" {
			return nil, p.errorf("empty inner class name")
		}
		name += "$" + inner
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	t.Name = InternalToBinary(name)
	return t, nil
}

func (p *sigParser) typeArgs() ([]TypeArg, error) {
	p.pos++ // '<'
	var out []TypeArg
	for p.peek() != '>' {
		switch c := p.peek(); c {
		case 0:
			return nil, p.errorf("unterminated type arguments")
		case '*':
			p.pos++
			out = append(out, TypeArg{Wildcard: '*'})
		case '+', '-':
			p.pos++
			t, err := p.typeSig()
			if err != nil {
				return nil, err
			}
			out = append(out, TypeArg{Wildcard: c, Type: t})
		default:
			t, err := p.typeSig()
			if err != nil {
				return nil, err
			}
			out = append(out, TypeArg{Type: t})
		}
	}
	p.pos++
	if len(out) == 0 {
		return nil, p.errorf("empty type arguments")
	}
	return out, nil
}
