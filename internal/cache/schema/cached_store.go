package schema

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	schemarepo "schemagen/internal/gateway/repository/schema"
	"schemagen/internal/types"
)

type Store = schemarepo.Store

type CacheConfig struct {
	SchemaTTL        time.Duration
	SchemaMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		SchemaTTL:        10 * time.Minute,
		SchemaMaxEntries: 4096,
		ListTTL:          30 * time.Second,
		ListMaxEntries:   512,
	}
}

type MetricsSnapshot struct {
	SchemaHits     uint64
	SchemaMisses   uint64
	ListHits       uint64
	ListMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	schemaHits     atomic.Uint64
	schemaMisses   atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SchemaHits:     m.schemaHits.Load(),
		SchemaMisses:   m.schemaMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through LRU+TTL cache in front of a schema store.
// Schemas for a fixed coordinate never change, so writes refresh the entry
// in place and only invalidate the coordinate's listing.
type CachedStore struct {
	origin Store

	schemas *expirable.LRU[string, types.TypeSchema]
	lists   *expirable.LRU[types.Coordinate, []string]
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.SchemaTTL <= 0 {
		cfg.SchemaTTL = def.SchemaTTL
	}
	if cfg.SchemaMaxEntries <= 0 {
		cfg.SchemaMaxEntries = def.SchemaMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	return &CachedStore{
		origin:  origin,
		schemas: expirable.NewLRU[string, types.TypeSchema](cfg.SchemaMaxEntries, nil, cfg.SchemaTTL),
		lists:   expirable.NewLRU[types.Coordinate, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, c types.Coordinate, ts types.TypeSchema) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, c, ts); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	ts.Schema = append([]byte(nil), ts.Schema...)
	s.schemas.Add(cacheKey(c, ts.FullyQualifiedName), ts)
	s.lists.Remove(c)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, c types.Coordinate, fqn string) (types.TypeSchema, error) {
	key := cacheKey(c, fqn)
	if ts, ok := s.schemas.Get(key); ok {
		s.metrics.schemaHits.Add(1)
		ts.Schema = append([]byte(nil), ts.Schema...)
		return ts, nil
	}
	s.metrics.schemaMisses.Add(1)
	s.metrics.originReads.Add(1)

	ts, err := s.origin.Get(ctx, c, fqn)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return types.TypeSchema{}, err
	}
	cached := ts
	cached.Schema = append([]byte(nil), ts.Schema...)
	s.schemas.Add(key, cached)
	return ts, nil
}

func (s *CachedStore) List(ctx context.Context, c types.Coordinate) ([]string, error) {
	if list, ok := s.lists.Get(c); ok {
		s.metrics.listHits.Add(1)
		return append([]string(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	list, err := s.origin.List(ctx, c)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.lists.Add(c, append([]string(nil), list...))
	return list, nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}

func cacheKey(c types.Coordinate, fqn string) string {
	return c.String() + "#" + fqn
}
