package localrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"schemagen/internal/safeio"
)

// Filler opens the remote content for a cache miss.
type Filler func(ctx context.Context) (io.ReadCloser, error)

type MetricsSnapshot struct {
	Hits      uint64
	Misses    uint64
	Writes    uint64
	WriteErr  uint64
	Collapsed uint64
}

type metrics struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	writes    atomic.Uint64
	writeErr  atomic.Uint64
	collapsed atomic.Uint64
}

// Store is a Maven-layout file cache shared by every resolution in the
// process. Entries are immutable once visible: each write lands in a temp
// file and is renamed into place, so a reader never observes partial content.
type Store struct {
	fs          *safeio.SafeFS
	group       singleflight.Group
	metrics     metrics
	fillTimeout time.Duration
}

// DefaultFillTimeout bounds one shared download when SetFillTimeout was not
// called.
const DefaultFillTimeout = 5 * time.Minute

func NewStore(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	fs, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("open cache root: %w", err)
	}
	return &Store{fs: fs, fillTimeout: DefaultFillTimeout}, nil
}

// SetFillTimeout bounds every shared fill. A fill is detached from the
// callers waiting on it, so this is the only limit on its duration.
// d <= 0 removes the bound.
func (s *Store) SetFillTimeout(d time.Duration) {
	s.fillTimeout = d
}

func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.fs.Root()
}

// Lookup returns the absolute path of rel when it is already cached.
func (s *Store) Lookup(rel string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("store is nil")
	}
	p, err := s.fs.Join(rel)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, false, nil
		}
		return "", false, err
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("cache entry %s is a directory", rel)
	}
	return p, true, nil
}

// Put stores r under rel atomically and returns the absolute path.
func (s *Store) Put(ctx context.Context, rel string, r io.Reader) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.metrics.writes.Add(1)
	p, err := s.fs.WriteAtomic(rel, r)
	if err != nil {
		s.metrics.writeErr.Add(1)
		return "", fmt.Errorf("cache write %s: %w", rel, err)
	}
	return p, nil
}

// GetOrFill returns the cached path for rel, invoking fill on a miss.
// Concurrent misses for the same rel share one fill.
func (s *Store) GetOrFill(ctx context.Context, rel string, fill Filler) (string, error) {
	if p, ok, err := s.Lookup(rel); err != nil {
		return "", err
	} else if ok {
		s.metrics.hits.Add(1)
		return p, nil
	}
	s.metrics.misses.Add(1)

	ch := s.group.DoChan(rel, func() (any, error) {
		if p, ok, err := s.Lookup(rel); err == nil && ok {
			return p, nil
		}
		fillCtx := context.WithoutCancel(ctx)
		if s.fillTimeout > 0 {
			var cancel context.CancelFunc
			fillCtx, cancel = context.WithTimeout(fillCtx, s.fillTimeout)
			defer cancel()
		}
		body, err := fill(fillCtx)
		if err != nil {
			return "", err
		}
		defer body.Close()
		return s.Put(fillCtx, rel, body)
	})

	// Each caller gives up on its own context; the fill keeps running for
	// the others and still lands in the cache.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.metrics.collapsed.Add(1)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:      s.metrics.hits.Load(),
		Misses:    s.metrics.misses.Load(),
		Writes:    s.metrics.writes.Load(),
		WriteErr:  s.metrics.writeErr.Load(),
		Collapsed: s.metrics.collapsed.Load(),
	}
}
