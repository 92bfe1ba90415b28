// Package schema derives JSON Schema documents from loaded class
// structures. Only declared instance fields contribute; the member rules
// live in Policy.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"schemagen/internal/classfile"
	"schemagen/internal/loadctx"
)

// maxDepth bounds nesting of the reachable type graph. Only generic types
// that grow on every level (Foo<T> holding Foo<List<T>>) can reach it.
const maxDepth = 64

// Loader resolves names inside one request's load context.
type Loader interface {
	LoadType(name string) (*loadctx.LoadedType, error)
}

// DerivationError reports a loaded type whose structure cannot be
// introspected.
type DerivationError struct {
	Type   string
	Reason string
	Err    error
}

func (e *DerivationError) Error() string {
	msg := fmt.Sprintf("derive schema for %s: %s", e.Type, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DerivationError) Unwrap() error { return e.Err }

// Deriver turns loaded types into schema documents. It holds no per-call
// state and may be shared.
type Deriver struct {
	policy Policy
}

func NewDeriver(p Policy) *Deriver {
	if len(p.Rules) == 0 {
		p = DefaultPolicy()
	}
	return &Deriver{policy: p}
}

// Derive builds the schema of t. Nested types are loaded through l; their
// load failures are returned unchanged.
func (d *Deriver) Derive(l Loader, t *loadctx.LoadedType) (*Object, error) {
	if err := checkRoot(t); err != nil {
		return nil, err
	}
	x := &derivation{
		policy:  d.policy,
		loader:  l,
		root:    t.Name,
		shapes:  make(map[string]shapeInfo),
		nodes:   make(map[string]*node),
		state:   make(map[string]int),
		refs:    make(map[string]int),
		defined: make(map[string]bool),
	}
	root := &use{class: t}
	if err := x.walk(root, 0); err != nil {
		return nil, err
	}
	for k, n := range x.refs {
		if n > 1 {
			x.defined[k] = true
		}
	}
	x.assignKeys()

	body, err := x.schemaFor(root)
	if err != nil {
		return nil, err
	}
	doc := NewObject().Set("$schema", Draft)
	for _, k := range body.Keys() {
		v, _ := body.Get(k)
		doc.Set(k, v)
	}
	if len(x.defKeys) > 0 {
		defs, err := x.definitions()
		if err != nil {
			return nil, err
		}
		doc.Set("$defs", defs)
	}
	return doc, nil
}

// DeriveJSON is Derive followed by serialisation.
func (d *Deriver) DeriveJSON(l Loader, t *loadctx.LoadedType) (json.RawMessage, error) {
	doc, err := d.Derive(l, t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func checkRoot(t *loadctx.LoadedType) error {
	if t.IsHost() {
		if t.Host.Shape == loadctx.ShapeOpaque {
			return &DerivationError{Type: t.Name, Reason: "host type has no structural mapping"}
		}
		return nil
	}
	c := t.Class
	switch {
	case c.Is(classfile.AccModule) || c.Name == "module-info":
		return &DerivationError{Type: t.Name, Reason: "module descriptor"}
	case c.SimpleName() == "package-info":
		return &DerivationError{Type: t.Name, Reason: "package descriptor"}
	case c.Is(classfile.AccAnnotation):
		return &DerivationError{Type: t.Name, Reason: "annotation type"}
	}
	return nil
}

// use is one occurrence of a type with its type arguments bound. A nil
// *use stands for an unbound type variable or wildcard.
type use struct {
	prim  string
	array bool
	elem  *use
	class *loadctx.LoadedType
	args  []*use
}

func (u *use) key() string {
	switch {
	case u == nil:
		return "?"
	case u.prim != "":
		return u.prim
	case u.array:
		return u.elem.key() + "[]"
	case len(u.args) == 0:
		return u.class.Name
	}
	parts := make([]string, len(u.args))
	for i, a := range u.args {
		parts[i] = a.key()
	}
	return u.class.Name + "<" + strings.Join(parts, ",") + ">"
}

func (u *use) arg(i int) *use {
	if i < len(u.args) {
		return u.args[i]
	}
	return nil
}

type shapeKind int

const (
	shAny shapeKind = iota
	shScalar
	shArray
	shMap
	shOptional
	shEnum
	shOpaque
	shObject
)

type shapeInfo struct {
	kind     shapeKind
	scalar   string
	inner    *use
	nullable bool
}

var primitiveTypes = map[string]string{
	"boolean": "boolean",
	"byte":    "integer",
	"short":   "integer",
	"int":     "integer",
	"long":    "integer",
	"float":   "number",
	"double":  "number",
	"char":    "string",
}

var hostScalars = map[loadctx.Shape]string{
	loadctx.ShapeString:  "string",
	loadctx.ShapeBoolean: "boolean",
	loadctx.ShapeInteger: "integer",
	loadctx.ShapeNumber:  "number",
}

type property struct {
	name        string
	use         *use
	nullable    bool
	required    bool
	description string
}

// node is an object-shaped type expanded into properties.
type node struct {
	key         string
	use         *use
	props       []property
	description string
}

const (
	white = iota
	grey
	black
)

type derivation struct {
	policy Policy
	loader Loader
	root   string

	// refs counts the places each object type is used from, the root
	// included. defined holds the types emitted once under $defs:
	// recursive types and types used from more than one place.
	shapes  map[string]shapeInfo
	nodes   map[string]*node
	state   map[string]int
	refs    map[string]int
	defined map[string]bool
	defKeys map[string]string
}

func (x *derivation) shape(u *use) (shapeInfo, error) {
	if u == nil {
		return shapeInfo{kind: shAny}, nil
	}
	if u.prim != "" {
		return shapeInfo{kind: shScalar, scalar: primitiveTypes[u.prim]}, nil
	}
	if u.array {
		return shapeInfo{kind: shArray, inner: u.elem}, nil
	}
	k := u.key()
	if s, ok := x.shapes[k]; ok {
		return s, nil
	}
	s, err := x.classShape(u)
	if err != nil {
		return shapeInfo{}, err
	}
	x.shapes[k] = s
	return s, nil
}

func (x *derivation) classShape(u *use) (shapeInfo, error) {
	t := u.class
	if t.IsHost() {
		switch t.Host.Shape {
		case loadctx.ShapeAny:
			return shapeInfo{kind: shAny}, nil
		case loadctx.ShapeArray:
			return shapeInfo{kind: shArray, inner: u.arg(0)}, nil
		case loadctx.ShapeMap:
			return shapeInfo{kind: shMap, inner: u.arg(1)}, nil
		case loadctx.ShapeOptional:
			return shapeInfo{kind: shOptional, inner: u.arg(0)}, nil
		case loadctx.ShapeOpaque:
			return shapeInfo{kind: shOpaque}, nil
		}
		return shapeInfo{kind: shScalar, scalar: hostScalars[t.Host.Shape], nullable: t.Host.Nullable}, nil
	}
	if isEnum(t.Class) {
		return shapeInfo{kind: shEnum}, nil
	}
	kind, inner, ok, err := x.containerOf(u, 0)
	if err != nil {
		return shapeInfo{}, err
	}
	if ok {
		return shapeInfo{kind: kind, inner: inner}, nil
	}
	return shapeInfo{kind: shObject}, nil
}

func isEnum(c *classfile.Class) bool {
	return c.Is(classfile.AccEnum) && c.SuperName == "java.lang.Enum"
}

// containerOf reports whether a private class extends or implements a host
// collection or map, binding the element type through the hierarchy.
func (x *derivation) containerOf(u *use, depth int) (shapeKind, *use, bool, error) {
	if depth > maxDepth {
		return 0, nil, false, nil
	}
	supers, err := x.supertypes(u)
	if err != nil {
		return 0, nil, false, err
	}
	for _, s := range supers {
		if s == nil || s.class == nil {
			continue
		}
		if s.class.IsHost() {
			switch s.class.Host.Shape {
			case loadctx.ShapeArray:
				return shArray, s.arg(0), true, nil
			case loadctx.ShapeMap:
				return shMap, s.arg(1), true, nil
			}
			continue
		}
		if kind, inner, ok, err := x.containerOf(s, depth+1); err != nil || ok {
			return kind, inner, ok, err
		}
	}
	return 0, nil, false, nil
}

// env maps the class's declared type parameters to the bound arguments.
func env(u *use) map[string]*use {
	sig := u.class.Signature
	if sig == nil || len(sig.TypeParams) == 0 {
		return nil
	}
	m := make(map[string]*use, len(sig.TypeParams))
	for i, tp := range sig.TypeParams {
		m[tp.Name] = u.arg(i)
	}
	return m
}

// superclass returns the bound superclass of a private class, or nil.
func (x *derivation) superclass(u *use) (*use, error) {
	t := u.class
	if t.Super == nil {
		return nil, nil
	}
	if t.Signature != nil && t.Signature.Super != nil {
		return x.bind(t.Name, t.Signature.Super, env(u))
	}
	return &use{class: t.Super}, nil
}

func (x *derivation) supertypes(u *use) ([]*use, error) {
	var out []*use
	s, err := x.superclass(u)
	if err != nil {
		return nil, err
	}
	if s != nil {
		out = append(out, s)
	}
	t := u.class
	if t.Signature != nil && len(t.Signature.Interfaces) == len(t.Interfaces) {
		e := env(u)
		for _, it := range t.Signature.Interfaces {
			b, err := x.bind(t.Name, it, e)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}
	for _, it := range t.Interfaces {
		out = append(out, &use{class: it})
	}
	return out, nil
}

// bind converts a parsed signature into a use, loading named classes.
func (x *derivation) bind(owner string, t *classfile.Type, e map[string]*use) (*use, error) {
	switch t.Kind {
	case classfile.KindPrimitive:
		return &use{prim: t.Name}, nil
	case classfile.KindTypeVar:
		return e[t.Name], nil
	case classfile.KindArray:
		elem, err := x.bind(owner, t.Elem, e)
		if err != nil {
			return nil, err
		}
		return &use{array: true, elem: elem}, nil
	case classfile.KindClass:
		lt, err := x.loader.LoadType(t.Name)
		if err != nil {
			return nil, err
		}
		u := &use{class: lt}
		for _, a := range t.Args {
			switch a.Wildcard {
			case '*', '-':
				u.args = append(u.args, nil)
			default:
				b, err := x.bind(owner, a.Type, e)
				if err != nil {
					return nil, err
				}
				u.args = append(u.args, b)
			}
		}
		return u, nil
	}
	return nil, &DerivationError{Type: owner, Reason: fmt.Sprintf("unsupported type %s", t)}
}

// node expands an object-shaped use into its properties.
func (x *derivation) node(u *use) (*node, error) {
	k := u.key()
	if n, ok := x.nodes[k]; ok {
		return n, nil
	}
	n := &node{key: k, use: u}
	if a, ok := u.class.Class.Annotation(annJsonClassDescription); ok {
		n.description, _ = a.StringElem("value")
	}

	// The class and its superclasses, child first, each with its bindings.
	var chain []*use
	ignored := map[string]bool{}
	for cur := u; cur != nil && cur.class != nil && !cur.class.IsHost(); {
		chain = append(chain, cur)
		if a, ok := cur.class.Class.Annotation(annJsonIgnoreProperties); ok {
			for _, name := range a.StringsElem("value") {
				ignored[name] = true
			}
		}
		next, err := x.superclass(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	seen := map[string]bool{}
	for _, cur := range chain {
		cls := cur.class.Class
		e := env(cur)
		for i := range cls.Fields {
			f := &cls.Fields[i]
			m := Member{Owner: cls, Decl: f, IgnoredProperties: ignored}
			if !f.Is(classfile.AccStatic) && !f.Is(classfile.AccTransient) {
				m.TypeIgnored = x.typeIgnored(f)
			}
			if x.policy.Evaluate(m).Verdict != Include {
				continue
			}
			name := propertyName(f)
			if seen[name] {
				continue
			}
			seen[name] = true

			ft, err := classfile.ParseFieldType(f.GenericType())
			if err != nil {
				return nil, &DerivationError{Type: cls.Name, Reason: "field " + f.Name, Err: err}
			}
			fu, err := x.bind(cls.Name, ft, e)
			if err != nil {
				return nil, err
			}
			p := property{name: name, use: fu}
			if fu == nil || fu.prim == "" {
				p.nullable = x.policy.nullableAnnotated(f)
			}
			if a, ok := f.Annotation(annJsonProperty); ok {
				p.required, _ = a.BoolElem("required")
			}
			if a, ok := f.Annotation(annJsonPropertyDesc); ok {
				p.description, _ = a.StringElem("value")
			}
			n.props = append(n.props, p)
		}
	}
	sort.Slice(n.props, func(i, j int) bool { return n.props[i].name < n.props[j].name })
	x.nodes[k] = n
	return n, nil
}

// typeIgnored reports whether the field's raw class carries @JsonIgnoreType.
// Load failures are left for expansion to report.
func (x *derivation) typeIgnored(f *classfile.Member) bool {
	ft, err := classfile.ParseFieldType(f.Descriptor)
	if err != nil || ft.Kind != classfile.KindClass {
		return false
	}
	lt, err := x.loader.LoadType(ft.Name)
	if err != nil || lt.IsHost() {
		return false
	}
	_, ok := lt.Class.Annotation(annJsonIgnoreType)
	return ok
}

// walk marks every object type that re-enters its own expansion path and
// counts how often each object type is used.
func (x *derivation) walk(u *use, depth int) error {
	if depth > maxDepth {
		return &DerivationError{Type: x.root, Reason: fmt.Sprintf("type graph nested deeper than %d levels", maxDepth)}
	}
	s, err := x.shape(u)
	if err != nil {
		return err
	}
	switch s.kind {
	case shArray, shMap, shOptional:
		return x.walk(s.inner, depth+1)
	case shObject:
	default:
		return nil
	}
	n, err := x.node(u)
	if err != nil {
		return err
	}
	x.refs[n.key]++
	switch x.state[n.key] {
	case grey:
		x.defined[n.key] = true
		return nil
	case black:
		return nil
	}
	x.state[n.key] = grey
	for _, p := range n.props {
		if err := x.walk(p.use, depth+1); err != nil {
			return err
		}
	}
	x.state[n.key] = black
	return nil
}

// assignKeys names each defined type by simple name, falling back to the
// binary name and then the full bound form on collision.
func (x *derivation) assignKeys() {
	if len(x.defined) == 0 {
		return
	}
	bySimple := map[string][]string{}
	for k := range x.defined {
		simple := classfile.SimpleName(x.nodes[k].use.class.Name)
		bySimple[simple] = append(bySimple[simple], k)
	}
	x.defKeys = make(map[string]string, len(x.defined))
	for simple, keys := range bySimple {
		if len(keys) == 1 {
			x.defKeys[keys[0]] = simple
			continue
		}
		byName := map[string]int{}
		for _, k := range keys {
			byName[x.nodes[k].use.class.Name]++
		}
		for _, k := range keys {
			name := x.nodes[k].use.class.Name
			if byName[name] == 1 {
				x.defKeys[k] = name
			} else {
				x.defKeys[k] = k
			}
		}
	}
}

func (x *derivation) definitions() (*Object, error) {
	keys := make([]string, 0, len(x.defKeys))
	for k := range x.defKeys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return x.defKeys[keys[i]] < x.defKeys[keys[j]] })
	defs := NewObject()
	for _, k := range keys {
		body, err := x.expand(x.nodes[k])
		if err != nil {
			return nil, err
		}
		defs.Set(x.defKeys[k], body)
	}
	return defs, nil
}

func (x *derivation) schemaFor(u *use) (*Object, error) {
	s, err := x.shape(u)
	if err != nil {
		return nil, err
	}
	var o *Object
	switch s.kind {
	case shAny:
		o = NewObject()
	case shScalar:
		o = NewObject().Set("type", s.scalar)
	case shOpaque:
		o = NewObject().Set("type", "object")
	case shArray:
		items, err := x.schemaFor(s.inner)
		if err != nil {
			return nil, err
		}
		o = NewObject().Set("type", "array").Set("items", items)
	case shMap:
		values, err := x.schemaFor(s.inner)
		if err != nil {
			return nil, err
		}
		o = NewObject().Set("type", "object").Set("additionalProperties", values)
	case shOptional:
		inner, err := x.schemaFor(s.inner)
		if err != nil {
			return nil, err
		}
		return nullable(inner), nil
	case shEnum:
		o = NewObject().Set("type", "string").Set("enum", enumConstants(u.class.Class))
	case shObject:
		n, err := x.node(u)
		if err != nil {
			return nil, err
		}
		if key, ok := x.defKeys[n.key]; ok {
			return NewObject().Set("$ref", "#/$defs/"+key), nil
		}
		return x.expand(n)
	}
	if s.nullable {
		o = nullable(o)
	}
	return o, nil
}

func (x *derivation) expand(n *node) (*Object, error) {
	o := NewObject().Set("type", "object")
	if n.description != "" {
		o.Set("description", n.description)
	}
	if len(n.props) == 0 {
		return o, nil
	}
	props := NewObject()
	var required []string
	for _, p := range n.props {
		ps, err := x.schemaFor(p.use)
		if err != nil {
			return nil, err
		}
		if p.nullable {
			ps = nullable(ps)
		}
		if p.description != "" {
			ps.Set("description", p.description)
		}
		props.Set(p.name, ps)
		if p.required {
			required = append(required, p.name)
		}
	}
	o.Set("properties", props)
	if len(required) > 0 {
		o.Set("required", required)
	}
	return o, nil
}

// enumConstants lists constant names in declaration order, honouring
// @JsonProperty renames.
func enumConstants(c *classfile.Class) []any {
	out := []any{}
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Is(classfile.AccEnum) && f.Is(classfile.AccStatic) {
			out = append(out, propertyName(f))
		}
	}
	return out
}

// nullable widens a schema to admit null.
func nullable(o *Object) *Object {
	if ref, ok := o.Get("$ref"); ok {
		return NewObject().Set("anyOf", []any{
			NewObject().Set("$ref", ref),
			NewObject().Set("type", "null"),
		})
	}
	if _, ok := o.Get("anyOf"); ok {
		return o
	}
	if t, ok := o.Get("type"); ok {
		if name, ok := t.(string); ok {
			o.Set("type", []string{name, "null"})
		}
	}
	if e, ok := o.Get("enum"); ok {
		if list, ok := e.([]any); ok {
			o.Set("enum", append(list, nil))
		}
	}
	return o
}
