package loadctx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagen/internal/classfile/classfiletest"
	"schemagen/internal/loadctx"
	"schemagen/internal/resolver"
	"schemagen/internal/types"
)

var root = types.Coordinate{GroupID: "com.example", ArtifactID: "model", Version: "1.0"}

func writeJar(t *testing.T, name string, classes ...classfiletest.Class) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, classfiletest.WriteJar(path, classes...))
	return path
}

func build(t *testing.T, files ...string) *loadctx.Context {
	t.Helper()
	ctx, err := loadctx.Build(loadctx.NewHost(), types.ResolvedArtifactSet{Root: root, Files: files})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestLoadTypeLinksSupertypes(t *testing.T) {
	jar := writeJar(t, "model.jar",
		classfiletest.Class{Name: "com.example.Base"},
		classfiletest.Class{Name: "com.example.Person", Super: "com.example.Base", Interfaces: []string{"java.io.Serializable"}},
	)
	ctx := build(t, jar)

	p, err := ctx.LoadType("com.example.Person")
	require.NoError(t, err)
	assert.False(t, p.IsHost())
	assert.Equal(t, jar, p.Source)
	require.NotNil(t, p.Super)
	assert.Equal(t, "com.example.Base", p.Super.Name)
	assert.True(t, p.Super.Super.IsHost())
	require.Len(t, p.Interfaces, 1)
	assert.Equal(t, loadctx.ShapeOpaque, p.Interfaces[0].Host.Shape)

	again, err := ctx.LoadType("com.example.Person")
	require.NoError(t, err)
	assert.Same(t, p, again)
}

func TestFirstArchiveWins(t *testing.T) {
	first := writeJar(t, "a.jar", classfiletest.Class{Name: "com.example.Dup", Fields: []classfiletest.Field{{Name: "first", Descriptor: "I"}}})
	second := writeJar(t, "b.jar", classfiletest.Class{Name: "com.example.Dup", Fields: []classfiletest.Field{{Name: "second", Descriptor: "I"}}})
	ctx := build(t, first, second)

	dup, err := ctx.LoadType("com.example.Dup")
	require.NoError(t, err)
	assert.Equal(t, "first", dup.Class.Fields[0].Name)
	assert.Equal(t, []string{first, second}, ctx.SearchPath())
}

func TestHostNamesAreNotLoadedFromArchives(t *testing.T) {
	jar := writeJar(t, "shadow.jar", classfiletest.Class{Name: "java.lang.String"})
	ctx := build(t, jar)

	s, err := ctx.LoadType("java.lang.String")
	require.NoError(t, err)
	require.True(t, s.IsHost())
	assert.Equal(t, loadctx.ShapeString, s.Host.Shape)
}

func TestTypeNotFound(t *testing.T) {
	ctx := build(t, writeJar(t, "model.jar", classfiletest.Class{Name: "com.example.A"}))

	_, err := ctx.LoadType("com.example.Missing")
	var nf *loadctx.TypeNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "com.example.Missing", nf.Name)
}

func TestTypeLoadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, classfiletest.WriteJarEntries(path,
		[]string{"com/example/Corrupt.class", "com/example/Liar.class", "com/example/Orphan.class", "com/example/Loop1.class", "com/example/Loop2.class"},
		map[string][]byte{
			"com/example/Corrupt.class": []byte("not a class"),
			"com/example/Liar.class":    classfiletest.Class{Name: "com.example.Other"}.Bytes(),
			"com/example/Orphan.class":  classfiletest.Class{Name: "com.example.Orphan", Super: "com.example.Gone"}.Bytes(),
			"com/example/Loop1.class":   classfiletest.Class{Name: "com.example.Loop1", Super: "com.example.Loop2"}.Bytes(),
			"com/example/Loop2.class":   classfiletest.Class{Name: "com.example.Loop2", Super: "com.example.Loop1"}.Bytes(),
		}))
	ctx := build(t, path)

	for _, name := range []string{"com.example.Corrupt", "com.example.Liar", "com.example.Orphan", "com.example.Loop1"} {
		t.Run(name, func(t *testing.T) {
			_, err := ctx.LoadType(name)
			var tle *loadctx.TypeLoadError
			require.True(t, errors.As(err, &tle), "got %v", err)
			assert.Equal(t, name, tle.Name)
		})
	}

	_, err := ctx.LoadType("com.example.Orphan")
	var nf *loadctx.TypeNotFoundError
	assert.True(t, errors.As(err, &nf), "missing superclass should be visible through the chain")
}

func TestBuildRejectsUnreadableArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.jar")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	good := writeJar(t, "good.jar", classfiletest.Class{Name: "com.example.A"})

	_, err := loadctx.Build(loadctx.NewHost(), types.ResolvedArtifactSet{Root: root, Files: []string{good, bad}})
	var re *resolver.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, root, re.Coordinate)
}

func TestContextsAreIsolated(t *testing.T) {
	v1 := writeJar(t, "model-1.0.jar", classfiletest.Class{
		Name:   "com.example.Shared",
		Fields: []classfiletest.Field{{Name: "legacy", Descriptor: "Ljava/lang/String;"}},
	})
	v2 := writeJar(t, "model-2.0.jar", classfiletest.Class{
		Name:   "com.example.Shared",
		Fields: []classfiletest.Field{{Name: "modern", Descriptor: "J"}},
	})
	c1 := build(t, v1)
	c2 := build(t, v2)

	t1, err := c1.LoadType("com.example.Shared")
	require.NoError(t, err)
	t2, err := c2.LoadType("com.example.Shared")
	require.NoError(t, err)

	assert.Equal(t, "legacy", t1.Class.Fields[0].Name)
	assert.Equal(t, "modern", t2.Class.Fields[0].Name)
	assert.NotSame(t, t1, t2)
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx, err := loadctx.Build(nil, types.ResolvedArtifactSet{Root: root, Files: []string{writeJar(t, "a.jar", classfiletest.Class{Name: "com.example.A"})}})
	require.NoError(t, err)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())

	_, err = ctx.LoadType("com.example.A")
	assert.ErrorIs(t, err, loadctx.ErrClosed)
}

func TestHostLookup(t *testing.T) {
	h := loadctx.NewHost()

	cases := map[string]loadctx.Shape{
		"java.lang.Integer":          loadctx.ShapeInteger,
		"java.math.BigDecimal":       loadctx.ShapeNumber,
		"java.time.Instant":          loadctx.ShapeString,
		"java.util.List":             loadctx.ShapeArray,
		"java.util.HashMap":          loadctx.ShapeMap,
		"java.util.Optional":         loadctx.ShapeOptional,
		"java.lang.Object":           loadctx.ShapeAny,
		"java.lang.Thread":           loadctx.ShapeOpaque,
		"javax.money.MonetaryAmount": loadctx.ShapeOpaque,
	}
	for name, want := range cases {
		ht, ok := h.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, ht.Shape, name)
	}

	opt, _ := h.Lookup("java.util.OptionalLong")
	assert.Equal(t, loadctx.ShapeInteger, opt.Shape)
	assert.True(t, opt.Nullable)

	_, ok := h.Lookup("com.example.Person")
	assert.False(t, ok)
}
