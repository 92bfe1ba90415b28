// Package loadctx builds per-request type lookup contexts over a resolved
// set of JAR files. Each context sees only its own archives plus the shared
// host registry, so two requests that resolve different versions of the
// same artifact never observe each other's types.
package loadctx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"schemagen/internal/classfile"
	"schemagen/internal/resolver"
	"schemagen/internal/types"
)

// maxClassSize bounds a single class file read from an archive.
const maxClassSize = 64 << 20

// LoadedType is a type visible through a Context. Exactly one of Host and
// Class is set.
type LoadedType struct {
	Name string

	Host *HostType

	Class      *classfile.Class
	Signature  *classfile.ClassSignature // nil when the class is not generic
	Super      *LoadedType               // nil for module descriptors
	Interfaces []*LoadedType
	Source     string // archive the class was read from
}

// IsHost reports whether the type comes from the shared host.
func (t *LoadedType) IsHost() bool { return t.Host != nil }

type entry struct {
	archive int
	file    *zip.File
}

// Context is a single-request type lookup scope. The search path is fixed at
// Build; loaded types are memoised until Close.
type Context struct {
	host     *Host
	root     types.Coordinate
	paths    []string
	archives []*zip.ReadCloser
	index    map[string]entry

	mu      sync.Mutex
	defined map[string]*LoadedType
	loading map[string]bool
	closed  bool
}

// Build opens every file of set and indexes its classes. The first archive
// in classpath order that contains a name wins. A file that is not a
// readable archive makes the resolved set unusable and fails with a
// *resolver.ResolutionError.
func Build(host *Host, set types.ResolvedArtifactSet) (*Context, error) {
	if host == nil {
		host = NewHost()
	}
	c := &Context{
		host:    host,
		root:    set.Root,
		paths:   append([]string(nil), set.Files...),
		index:   make(map[string]entry),
		defined: make(map[string]*LoadedType),
		loading: make(map[string]bool),
	}
	for i, path := range c.paths {
		zr, err := zip.OpenReader(path)
		if err != nil {
			c.closeArchives()
			return nil, &resolver.ResolutionError{
				Coordinate: set.Root,
				Reason:     "unreadable archive " + path,
				Err:        err,
			}
		}
		c.archives = append(c.archives, zr)
		for _, f := range zr.File {
			name, ok := className(f.Name)
			if !ok {
				continue
			}
			if _, dup := c.index[name]; dup {
				continue
			}
			c.index[name] = entry{archive: i, file: f}
		}
	}
	return c, nil
}

// className maps "com/example/Foo.class" to "com.example.Foo". Entries under
// META-INF (multi-release variants) are ignored.
func className(entryName string) (string, bool) {
	if !strings.HasSuffix(entryName, ".class") || strings.HasPrefix(entryName, "META-INF/") {
		return "", false
	}
	return classfile.InternalToBinary(strings.TrimSuffix(entryName, ".class")), true
}

// Root is the coordinate the context was built for.
func (c *Context) Root() types.Coordinate { return c.root }

// SearchPath returns a copy of the archive paths in lookup order.
func (c *Context) SearchPath() []string {
	return append([]string(nil), c.paths...)
}

// Host returns the shared host registry.
func (c *Context) Host() *Host { return c.host }

// LoadType resolves name, loading and linking its supertypes on first use.
func (c *Context) LoadType(name string) (*LoadedType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.load(name)
}

func (c *Context) load(name string) (*LoadedType, error) {
	if t, ok := c.defined[name]; ok {
		return t, nil
	}
	if name == "" {
		return nil, &TypeNotFoundError{Name: name}
	}
	if ht, ok := c.host.Lookup(name); ok {
		t := &LoadedType{Name: name, Host: &ht}
		c.defined[name] = t
		return t, nil
	}
	e, ok := c.index[name]
	if !ok {
		return nil, &TypeNotFoundError{Name: name}
	}
	if c.loading[name] {
		return nil, &TypeLoadError{Name: name, Reason: "circular type hierarchy"}
	}
	c.loading[name] = true
	defer delete(c.loading, name)

	cls, err := readClass(e.file)
	if err != nil {
		return nil, &TypeLoadError{Name: name, Reason: "corrupt class file", Err: err}
	}
	if cls.Name != name {
		return nil, &TypeLoadError{Name: name, Reason: fmt.Sprintf("class file declares %s", cls.Name)}
	}

	t := &LoadedType{Name: name, Class: cls, Source: c.paths[e.archive]}
	if cls.Signature != "" && !cls.Is(classfile.AccModule) {
		sig, err := classfile.ParseClassSignature(cls.Signature)
		if err != nil {
			return nil, &TypeLoadError{Name: name, Reason: "malformed class signature", Err: err}
		}
		t.Signature = sig
	}

	switch {
	case cls.SuperName != "":
		super, err := c.load(cls.SuperName)
		if err != nil {
			return nil, linkError(name, "superclass "+cls.SuperName, err)
		}
		t.Super = super
	case !cls.Is(classfile.AccModule):
		return nil, &TypeLoadError{Name: name, Reason: "missing superclass"}
	}
	for _, iface := range cls.Interfaces {
		it, err := c.load(iface)
		if err != nil {
			return nil, linkError(name, "interface "+iface, err)
		}
		t.Interfaces = append(t.Interfaces, it)
	}

	c.defined[name] = t
	return t, nil
}

// linkError turns any failure to load a supertype into a load failure of
// the dependent type.
func linkError(name, what string, err error) error {
	var tle *TypeLoadError
	if errors.As(err, &tle) && tle.Name == name {
		return err
	}
	return &TypeLoadError{Name: name, Reason: "cannot load " + what, Err: err}
}

func readClass(f *zip.File) (*classfile.Class, error) {
	if f.UncompressedSize64 > maxClassSize {
		return nil, fmt.Errorf("class file too large (%d bytes)", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxClassSize+1))
	if err != nil {
		return nil, err
	}
	return classfile.Parse(b)
}

// Close releases every archive handle. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.defined = nil
	return c.closeArchives()
}

func (c *Context) closeArchives() error {
	var errs []error
	for _, zr := range c.archives {
		if err := zr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.archives = nil
	return errors.Join(errs...)
}
