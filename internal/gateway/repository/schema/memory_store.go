package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"schemagen/internal/types"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]types.TypeSchema
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]types.TypeSchema),
	}
}

func (s *MemoryStore) Put(_ context.Context, c types.Coordinate, ts types.TypeSchema) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	fqn, err := checkKey(c, ts.FullyQualifiedName)
	if err != nil {
		return err
	}
	ts.FullyQualifiedName = fqn
	ts.Schema = append([]byte(nil), ts.Schema...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(c, fqn)] = ts
	return nil
}

func (s *MemoryStore) Get(_ context.Context, c types.Coordinate, fqn string) (types.TypeSchema, error) {
	if s == nil {
		return types.TypeSchema{}, fmt.Errorf("store is nil")
	}
	fqn, err := checkKey(c, fqn)
	if err != nil {
		return types.TypeSchema{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.data[objectKey(c, fqn)]
	if !ok {
		return types.TypeSchema{}, ErrNotFound
	}
	ts.Schema = append([]byte(nil), ts.Schema...)
	return ts, nil
}

func (s *MemoryStore) List(_ context.Context, c types.Coordinate) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	prefix := coordinatePrefix(c)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key, ts := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ts.FullyQualifiedName)
		}
	}
	sort.Strings(out)
	return out, nil
}
