package localrepo

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFillCachesContent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var calls atomic.Int32
	fill := func(context.Context) (io.ReadCloser, error) {
		calls.Add(1)
		return io.NopCloser(strings.NewReader("jar-bytes")), nil
	}

	p1, err := store.GetOrFill(ctx, "org/example/lib/1.0/lib-1.0.jar", fill)
	require.NoError(t, err)
	p2, err := store.GetOrFill(ctx, "org/example/lib/1.0/lib-1.0.jar", fill)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(1), calls.Load())
	raw, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(raw))
	assert.Equal(t, uint64(1), store.Metrics().Hits)
}

func TestGetOrFillConcurrentSameEntry(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	payload := strings.Repeat("x", 1<<16)

	var wg sync.WaitGroup
	paths := make([]string, 16)
	errs := make([]error, 16)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = store.GetOrFill(ctx, "g/a/1/a-1.jar", func(context.Context) (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(payload)), nil
			})
		}(i)
	}
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		raw, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Len(t, raw, len(payload))
	}
	leftovers, err := filepath.Glob(filepath.Join(store.Root(), "g", "a", "1", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

type brokenBody struct{ n int }

func (b *brokenBody) Read(p []byte) (int, error) {
	if b.n > 0 {
		return 0, errors.New("connection reset")
	}
	b.n++
	return copy(p, "partial"), nil
}

func (b *brokenBody) Close() error { return nil }

func TestGetOrFillAbortedDownloadIsInvisible(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetOrFill(context.Background(), "g/a/1/a-1.jar", func(context.Context) (io.ReadCloser, error) {
		return &brokenBody{}, nil
	})
	require.Error(t, err)

	_, ok, err := store.Lookup("g/a/1/a-1.jar")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), store.Metrics().WriteErr)
}

func TestLookupRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.Lookup("../outside.jar")
	assert.Error(t, err)
}

func TestGetOrFillCallerDeadlineDoesNotFailOthers(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	const rel = "g/a/1/a-1.jar"

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var fillErr atomic.Value
	fill := func(ctx context.Context) (io.ReadCloser, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			fillErr.Store(err)
		}
		return io.NopCloser(strings.NewReader("jar-bytes")), nil
	}

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := store.GetOrFill(short, rel, fill)
		leaderErr <- err
	}()
	<-started

	type result struct {
		path string
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		p, err := store.GetOrFill(context.Background(), rel, fill)
		follower <- result{p, err}
	}()

	require.ErrorIs(t, <-leaderErr, context.DeadlineExceeded)
	close(release)

	got := <-follower
	require.NoError(t, got.err)
	raw, err := os.ReadFile(got.path)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(raw))
	assert.Nil(t, fillErr.Load())

	_, ok, err := store.Lookup(rel)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrFillHonoursFillTimeout(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.SetFillTimeout(20 * time.Millisecond)

	_, err = store.GetOrFill(context.Background(), "g/a/1/a-1.jar", func(ctx context.Context) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
