package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"schemagen/internal/types"
)

// Fetcher is the remote package-repository collaborator: it makes a
// coordinate and its transitive dependencies available as local files.
type Fetcher interface {
	Fetch(ctx context.Context, c types.Coordinate) ([]string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, c types.Coordinate) ([]string, error)

func (f FetcherFunc) Fetch(ctx context.Context, c types.Coordinate) ([]string, error) {
	return f(ctx, c)
}

// ResolutionError reports a coordinate whose closure could not be made
// available: not found, network failure, timeout, or an incomplete set.
type ResolutionError struct {
	Coordinate types.Coordinate
	Reason     string
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := "resolve " + e.Coordinate.String() + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type Resolver struct {
	fetcher Fetcher
	timeout time.Duration
}

// New returns a resolver bounding every fetch by timeout (<= 0 disables it).
func New(fetcher Fetcher, timeout time.Duration) *Resolver {
	return &Resolver{fetcher: fetcher, timeout: timeout}
}

// Resolve fetches c and its full closure. Partial results are failures.
func (r *Resolver) Resolve(ctx context.Context, c types.Coordinate) (types.ResolvedArtifactSet, error) {
	if r == nil || r.fetcher == nil {
		return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: "no fetcher configured"}
	}
	if err := c.Validate(); err != nil {
		return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: "invalid coordinate", Err: err}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	files, err := r.fetcher.Fetch(ctx, c)
	if err != nil {
		reason := "fetch failed"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = fmt.Sprintf("fetch timed out after %s", r.timeout)
		case errors.Is(err, context.Canceled):
			reason = "fetch canceled"
		}
		return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: reason, Err: err}
	}
	if len(files) == 0 {
		return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: "resolved set is empty"}
	}

	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, dup := seen[f]; dup {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: "resolved file missing", Err: err}
		}
		if info.IsDir() {
			return types.ResolvedArtifactSet{}, &ResolutionError{Coordinate: c, Reason: "resolved path is a directory: " + f}
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return types.ResolvedArtifactSet{Root: c, Files: out}, nil
}
