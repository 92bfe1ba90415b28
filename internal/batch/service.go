// Package batch runs schema requests: resolve, build an isolated load
// context, then load and derive every requested type. Requests in a batch
// are processed concurrently and fail independently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"schemagen/internal/loadctx"
	"schemagen/internal/resolver"
	"schemagen/internal/schema"
	"schemagen/internal/types"
)

// DefaultWorkers bounds concurrent requests when Config.Workers is unset.
const DefaultWorkers = 4

// Resolver makes a coordinate's closure available locally.
type Resolver interface {
	Resolve(ctx context.Context, c types.Coordinate) (types.ResolvedArtifactSet, error)
}

// TypeFailurePolicy decides what a failing object does to its request.
type TypeFailurePolicy int

const (
	// AbortArtifact fails the whole request when any object fails.
	AbortArtifact TypeFailurePolicy = iota
	// SkipType reports the failing object and keeps the others.
	SkipType
)

func (p TypeFailurePolicy) String() string {
	if p == SkipType {
		return "skip-type"
	}
	return "abort-artifact"
}

// ParseTypeFailurePolicy accepts "abort-artifact" (or "") and "skip-type".
func ParseTypeFailurePolicy(s string) (TypeFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort", "abort-artifact":
		return AbortArtifact, nil
	case "skip", "skip-type":
		return SkipType, nil
	}
	return AbortArtifact, fmt.Errorf("unknown type failure policy %q", s)
}

// Outcome is the result of one request of a batch.
type Outcome struct {
	Index    int
	Response *types.SchemaResponse
	Failures []types.Failure
}

// Observer receives each outcome as soon as its request completes. Calls
// are serialised.
type Observer func(Outcome)

type Config struct {
	Workers      int
	TypeFailures TypeFailurePolicy
	Host         *loadctx.Host
	Policy       schema.Policy
}

type Service struct {
	resolver Resolver
	host     *loadctx.Host
	deriver  *schema.Deriver
	workers  int
	policy   TypeFailurePolicy
}

func New(r Resolver, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Host == nil {
		cfg.Host = loadctx.NewHost()
	}
	return &Service{
		resolver: r,
		host:     cfg.Host,
		deriver:  schema.NewDeriver(cfg.Policy),
		workers:  cfg.Workers,
		policy:   cfg.TypeFailures,
	}
}

// Generate processes a single request. Under AbortArtifact any failure
// yields no response. Under SkipType a response with the surviving schemas
// is returned together with a *PartialError.
func (s *Service) Generate(ctx context.Context, req types.SchemaRequest) (types.SchemaResponse, error) {
	resp, skipped, err := s.generate(ctx, req)
	if err != nil {
		return types.SchemaResponse{}, err
	}
	if len(skipped) > 0 {
		return resp, &PartialError{Skipped: skipped}
	}
	return resp, nil
}

func (s *Service) generate(ctx context.Context, req types.SchemaRequest) (types.SchemaResponse, []*TypeError, error) {
	if err := req.Coordinate.Validate(); err != nil {
		return types.SchemaResponse{}, nil, &resolver.ResolutionError{Coordinate: req.Coordinate, Reason: "invalid coordinate", Err: err}
	}
	set, err := s.resolver.Resolve(ctx, req.Coordinate)
	if err != nil {
		return types.SchemaResponse{}, nil, err
	}
	lc, err := loadctx.Build(s.host, set)
	if err != nil {
		return types.SchemaResponse{}, nil, err
	}
	defer lc.Close()

	resp := types.SchemaResponse{
		Coordinate: req.Coordinate,
		Schemas:    make([]types.TypeSchema, 0, len(req.Objects)),
	}
	var skipped []*TypeError
	for _, obj := range req.Objects {
		raw, err := s.derive(lc, obj.FullyQualifiedName)
		if err != nil {
			te := &TypeError{TypeName: obj.FullyQualifiedName, Err: err}
			if s.policy != SkipType {
				return types.SchemaResponse{}, nil, te
			}
			skipped = append(skipped, te)
			continue
		}
		resp.Schemas = append(resp.Schemas, types.TypeSchema{
			FullyQualifiedName: obj.FullyQualifiedName,
			Description:        obj.Description,
			Schema:             raw,
		})
	}
	return resp, skipped, nil
}

func (s *Service) derive(lc *loadctx.Context, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errNoName
	}
	lt, err := lc.LoadType(name)
	if err != nil {
		return nil, err
	}
	return s.deriver.DeriveJSON(lc, lt)
}

// Process runs every request on a bounded worker pool. Each input index
// ends up in exactly one of Responses (through ResponseIndex) and the
// artifact-level Failures. Cancelling ctx stops launching new requests;
// requests already running finish so that no fetch is cut off mid-write.
func (s *Service) Process(ctx context.Context, reqs []types.SchemaRequest) types.BatchResult {
	return s.ProcessObserved(ctx, reqs, nil)
}

// ProcessObserved is Process with a per-outcome callback.
func (s *Service) ProcessObserved(ctx context.Context, reqs []types.SchemaRequest, observe Observer) types.BatchResult {
	outcomes := make([]Outcome, len(reqs))
	var mu sync.Mutex
	report := func(o Outcome) {
		outcomes[o.Index] = o
		if observe == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		observe(o)
	}

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range reqs {
		if ctx.Err() != nil {
			report(canceled(i, reqs[i], ctx.Err()))
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				report(canceled(i, reqs[i], ctx.Err()))
				return nil
			}
			report(s.run(context.WithoutCancel(ctx), i, reqs[i]))
			return nil
		})
	}
	_ = g.Wait()

	var res types.BatchResult
	for _, o := range outcomes {
		if o.Response != nil {
			res.Responses = append(res.Responses, *o.Response)
			res.ResponseIndex = append(res.ResponseIndex, o.Index)
		}
		res.Failures = append(res.Failures, o.Failures...)
	}
	return res
}

func (s *Service) run(ctx context.Context, i int, req types.SchemaRequest) (out Outcome) {
	out.Index = i
	defer func() {
		if r := recover(); r != nil {
			log.Printf("batch: request %d (%s) panicked: %v\n%s", i, req.Coordinate, r, debug.Stack())
			out = Outcome{Index: i, Failures: []types.Failure{
				failure(i, req, fmt.Errorf("panic: %v", r)),
			}}
		}
	}()

	resp, skipped, err := s.generate(ctx, req)
	if err != nil {
		f := failure(i, req, err)
		log.Printf("batch: %s failed (%s): %s", req.Coordinate, f.Kind, f.Message)
		out.Failures = []types.Failure{f}
		return out
	}
	for _, te := range skipped {
		f := failure(i, req, te)
		log.Printf("batch: %s skipped %s (%s): %s", req.Coordinate, te.TypeName, f.Kind, f.Message)
		out.Failures = append(out.Failures, f)
	}
	log.Printf("batch: %s ok (%d schemas)", req.Coordinate, len(resp.Schemas))
	out.Response = &resp
	return out
}

func failure(i int, req types.SchemaRequest, err error) types.Failure {
	msg := err.Error()
	var te *TypeError
	if errors.As(err, &te) {
		msg = te.Err.Error()
	}
	return types.Failure{
		Index:      i,
		Coordinate: req.Coordinate,
		Kind:       Classify(err),
		TypeName:   typeName(err),
		Message:    msg,
	}
}

func canceled(i int, req types.SchemaRequest, cause error) Outcome {
	return Outcome{Index: i, Failures: []types.Failure{{
		Index:      i,
		Coordinate: req.Coordinate,
		Kind:       types.FailureCanceled,
		Message:    "not started: " + cause.Error(),
	}}}
}
