package schema

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"schemagen/internal/batch"
	schemarepo "schemagen/internal/gateway/repository/schema"
	"schemagen/internal/types"
)

// Runner is the part of the batch orchestrator the gateway needs.
type Runner interface {
	ProcessObserved(ctx context.Context, reqs []types.SchemaRequest, observe batch.Observer) types.BatchResult
}

// Service runs batches for the gateway and keeps every produced schema in
// the store so that GetSchema can serve it later.
type Service struct {
	runner Runner
	store  schemarepo.Store
}

// New creates a schema service. store may be nil, in which case results are
// not retained.
func New(runner Runner, store schemarepo.Store) *Service {
	return &Service{runner: runner, store: store}
}

// NewBatchID returns a fresh id for Run.
func NewBatchID() string { return uuid.NewString() }

// Run processes reqs under batchID, generating one when empty, and returns
// the id together with the partitioned result.
func (s *Service) Run(ctx context.Context, batchID string, reqs []types.SchemaRequest, observe batch.Observer) (string, types.BatchResult) {
	if batchID == "" {
		batchID = NewBatchID()
	}
	started := time.Now()
	log.Printf("schema: batch %s started (%d requests)", batchID, len(reqs))

	res := s.runner.ProcessObserved(ctx, reqs, observe)
	s.publish(context.WithoutCancel(ctx), batchID, res.Responses)

	log.Printf("schema: batch %s done in %s (responses=%d failures=%d)",
		batchID, time.Since(started).Round(time.Millisecond), len(res.Responses), len(res.Failures))
	return batchID, res
}

func (s *Service) publish(ctx context.Context, batchID string, responses []types.SchemaResponse) {
	if s.store == nil {
		return
	}
	for _, resp := range responses {
		if err := schemarepo.PutResponse(ctx, s.store, resp); err != nil {
			log.Printf("schema: batch %s: store %s: %v", batchID, resp.Coordinate, err)
		}
	}
}

// Get returns a stored schema.
func (s *Service) Get(ctx context.Context, c types.Coordinate, fqn string) (types.TypeSchema, error) {
	if s.store == nil {
		return types.TypeSchema{}, schemarepo.ErrNotFound
	}
	if err := c.Validate(); err != nil {
		return types.TypeSchema{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.store.Get(ctx, c, fqn)
}

// List returns the stored type names of one artifact.
func (s *Service) List(ctx context.Context, c types.Coordinate) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.store.List(ctx, c)
}
