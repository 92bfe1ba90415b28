package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagen/internal/batch"
	"schemagen/internal/classfile"
	"schemagen/internal/classfile/classfiletest"
	"schemagen/internal/loadctx"
	"schemagen/internal/resolver"
	"schemagen/internal/schema"
	"schemagen/internal/types"
)

// fakeResolver serves pre-built JARs per coordinate.
type fakeResolver struct {
	mu    sync.Mutex
	files map[types.Coordinate][]string
	calls map[types.Coordinate]int
	hook  func(types.Coordinate)
}

func (f *fakeResolver) Resolve(_ context.Context, c types.Coordinate) (types.ResolvedArtifactSet, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[types.Coordinate]int{}
	}
	f.calls[c]++
	files, ok := f.files[c]
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(c)
	}
	if !ok {
		return types.ResolvedArtifactSet{}, &resolver.ResolutionError{Coordinate: c, Reason: "not found in any repository"}
	}
	return types.ResolvedArtifactSet{Root: c, Files: files}, nil
}

func coord(a, v string) types.Coordinate {
	return types.Coordinate{GroupID: "com.example", ArtifactID: a, Version: v}
}

func jar(t *testing.T, classes ...classfiletest.Class) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.jar")
	require.NoError(t, classfiletest.WriteJar(path, classes...))
	return []string{path}
}

func simple(name string, fields ...string) classfiletest.Class {
	c := classfiletest.Class{Name: name}
	for _, f := range fields {
		c.Fields = append(c.Fields, classfiletest.Field{Name: f, Descriptor: "Ljava/lang/String;", Access: classfile.AccPrivate})
	}
	return c
}

func request(c types.Coordinate, names ...string) types.SchemaRequest {
	r := types.SchemaRequest{Coordinate: c}
	for _, n := range names {
		r.Objects = append(r.Objects, types.TypeRequest{FullyQualifiedName: n, Description: "about " + n})
	}
	return r
}

func properties(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	var out []string
	for k := range doc.Properties {
		out = append(out, k)
	}
	return out
}

func TestProcessIsolatesArtifactFailures(t *testing.T) {
	first, missing, third := coord("first", "1.0"), types.Coordinate{GroupID: "does.not.exist", ArtifactID: "nope", Version: "0.0.0"}, coord("third", "1.0")
	r := &fakeResolver{files: map[types.Coordinate][]string{
		first: jar(t, simple("com.example.A", "a")),
		third: jar(t, simple("com.example.C", "c")),
	}}
	svc := batch.New(r, batch.Config{Workers: 2})

	res := svc.Process(context.Background(), []types.SchemaRequest{
		request(first, "com.example.A"),
		request(missing, "com.example.B"),
		request(third, "com.example.C"),
	})

	require.Len(t, res.Responses, 2)
	assert.Equal(t, first, res.Responses[0].Coordinate)
	assert.Equal(t, third, res.Responses[1].Coordinate)
	assert.Equal(t, []int{0, 2}, res.ResponseIndex)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, missing, f.Coordinate)
	assert.Equal(t, types.FailureResolution, f.Kind)
	assert.Contains(t, f.Message, "does.not.exist:nope:0.0.0")
}

func TestProcessReportsMalformedRequestsPerIndex(t *testing.T) {
	ok := coord("model", "1.0")
	r := &fakeResolver{files: map[types.Coordinate][]string{ok: jar(t, simple("com.example.A", "a"))}}
	svc := batch.New(r, batch.Config{})

	noVersion := types.Coordinate{GroupID: "com.example", ArtifactID: "model"}
	res := svc.Process(context.Background(), []types.SchemaRequest{
		request(ok, "com.example.A"),
		request(noVersion, "com.example.A"),
		{Coordinate: ok, Objects: []types.TypeRequest{{Description: "nameless"}}},
	})

	require.Len(t, res.Responses, 1)
	assert.Equal(t, []int{0}, res.ResponseIndex)
	require.Len(t, res.Failures, 2)

	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, types.FailureResolution, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Message, "invalid coordinate")

	assert.Equal(t, 2, res.Failures[1].Index)
	assert.Equal(t, types.FailureTypeNotFound, res.Failures[1].Kind)
	assert.Contains(t, res.Failures[1].Message, "no fullyQualifiedName")

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Zero(t, r.calls[noVersion], "invalid coordinates never reach the resolver")
}

func TestGeneratePreservesObjectOrder(t *testing.T) {
	c := coord("model", "1.0")
	r := &fakeResolver{files: map[types.Coordinate][]string{
		c: jar(t, simple("com.example.Z", "z"), simple("com.example.A", "a"), simple("com.example.M", "m")),
	}}
	svc := batch.New(r, batch.Config{})

	resp, err := svc.Generate(context.Background(), request(c, "com.example.Z", "com.example.A", "com.example.M"))
	require.NoError(t, err)
	require.Len(t, resp.Schemas, 3)
	for i, name := range []string{"com.example.Z", "com.example.A", "com.example.M"} {
		assert.Equal(t, name, resp.Schemas[i].FullyQualifiedName)
		assert.Equal(t, "about "+name, resp.Schemas[i].Description)
	}
	assert.Equal(t, []string{"z"}, properties(t, resp.Schemas[0].Schema))
}

func TestTypeFailurePolicies(t *testing.T) {
	c := coord("model", "1.0")
	files := jar(t, simple("com.example.A", "a"), simple("com.example.C", "c"))
	req := request(c, "com.example.A", "com.example.Missing", "com.example.C")

	t.Run("abort artifact", func(t *testing.T) {
		svc := batch.New(&fakeResolver{files: map[types.Coordinate][]string{c: files}}, batch.Config{})

		_, err := svc.Generate(context.Background(), req)
		var nf *loadctx.TypeNotFoundError
		require.True(t, errors.As(err, &nf))

		res := svc.Process(context.Background(), []types.SchemaRequest{req})
		assert.Empty(t, res.Responses)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, types.FailureTypeNotFound, res.Failures[0].Kind)
		assert.Equal(t, "com.example.Missing", res.Failures[0].TypeName)
	})

	t.Run("skip type", func(t *testing.T) {
		svc := batch.New(&fakeResolver{files: map[types.Coordinate][]string{c: files}}, batch.Config{TypeFailures: batch.SkipType})

		resp, err := svc.Generate(context.Background(), req)
		var pe *batch.PartialError
		require.True(t, errors.As(err, &pe))
		require.Len(t, pe.Skipped, 1)
		require.Len(t, resp.Schemas, 2)
		assert.Equal(t, "com.example.C", resp.Schemas[1].FullyQualifiedName)

		res := svc.Process(context.Background(), []types.SchemaRequest{req})
		require.Len(t, res.Responses, 1)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, 0, res.Failures[0].Index)
		assert.Equal(t, "com.example.Missing", res.Failures[0].TypeName)
	})
}

func TestProcessKeepsVersionsIsolated(t *testing.T) {
	v1, v2 := coord("model", "1.0"), coord("model", "2.0")
	r := &fakeResolver{files: map[types.Coordinate][]string{
		v1: jar(t, simple("com.example.Shared", "legacy")),
		v2: jar(t, simple("com.example.Shared", "modern")),
	}}
	svc := batch.New(r, batch.Config{Workers: 8})

	var reqs []types.SchemaRequest
	for i := 0; i < 32; i++ {
		v := v1
		if i%2 == 1 {
			v = v2
		}
		reqs = append(reqs, request(v, "com.example.Shared"))
	}
	res := svc.Process(context.Background(), reqs)

	require.Empty(t, res.Failures)
	require.Len(t, res.Responses, len(reqs))
	for i, resp := range res.Responses {
		want := "legacy"
		if resp.Version == "2.0" {
			want = "modern"
		}
		assert.Equal(t, []string{want}, properties(t, resp.Schemas[0].Schema), "response %d", i)
	}
}

func TestProcessStopsLaunchingAfterCancel(t *testing.T) {
	c := coord("model", "1.0")
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeResolver{
		files: map[types.Coordinate][]string{c: jar(t, simple("com.example.A", "a"))},
		hook:  func(types.Coordinate) { cancel() },
	}
	svc := batch.New(r, batch.Config{Workers: 1})

	reqs := []types.SchemaRequest{request(c, "com.example.A"), request(c, "com.example.A"), request(c, "com.example.A")}
	res := svc.Process(ctx, reqs)

	require.Len(t, res.Responses, 1, "the launched request completes despite cancellation")
	assert.Equal(t, []int{0}, res.ResponseIndex)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, types.FailureCanceled, f.Kind)
	}
	assert.Equal(t, 1, r.calls[c])
}

func TestProcessObserverSeesEveryOutcome(t *testing.T) {
	ok := coord("model", "1.0")
	r := &fakeResolver{files: map[types.Coordinate][]string{ok: jar(t, simple("com.example.A", "a"))}}
	svc := batch.New(r, batch.Config{Workers: 3})

	var seen []int
	res := svc.ProcessObserved(context.Background(), []types.SchemaRequest{
		request(ok, "com.example.A"),
		request(coord("gone", "1.0"), "com.example.A"),
		request(ok, "com.example.A"),
	}, func(o batch.Outcome) { seen = append(seen, o.Index) })

	assert.ElementsMatch(t, []int{0, 1, 2}, seen)
	assert.Len(t, res.Responses, 2)
	assert.Len(t, res.Failures, 1)
}

func TestProcessRecoversPanics(t *testing.T) {
	c := coord("model", "1.0")
	r := &fakeResolver{hook: func(types.Coordinate) { panic("boom") }}
	svc := batch.New(r, batch.Config{})

	res := svc.Process(context.Background(), []types.SchemaRequest{request(c, "com.example.A")})
	require.Len(t, res.Failures, 1)
	assert.Equal(t, types.FailureInternal, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Message, "boom")
}

func TestClassify(t *testing.T) {
	cases := map[types.FailureKind]error{
		types.FailureResolution:       &resolver.ResolutionError{Reason: "x", Err: context.DeadlineExceeded},
		types.FailureTypeLoad:         &batch.TypeError{TypeName: "A", Err: &loadctx.TypeLoadError{Name: "A", Reason: "super", Err: &loadctx.TypeNotFoundError{Name: "B"}}},
		types.FailureTypeNotFound:     &batch.TypeError{TypeName: "A", Err: &loadctx.TypeNotFoundError{Name: "A"}},
		types.FailureSchemaDerivation: &schema.DerivationError{Type: "A", Reason: "annotation type"},
		types.FailureCanceled:         fmt.Errorf("wrapped: %w", context.Canceled),
		types.FailureInternal:         errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, batch.Classify(err), err.Error())
	}
}

func TestParseTypeFailurePolicy(t *testing.T) {
	p, err := batch.ParseTypeFailurePolicy("skip-type")
	require.NoError(t, err)
	assert.Equal(t, batch.SkipType, p)

	p, err = batch.ParseTypeFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, batch.AbortArtifact, p)

	_, err = batch.ParseTypeFailurePolicy("sometimes")
	assert.Error(t, err)
}
