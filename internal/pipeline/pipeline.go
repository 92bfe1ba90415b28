// Package pipeline wires the resolver, the Maven fetcher and the batch
// orchestrator into one ready-to-use engine for the CLI and the gateway.
package pipeline

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"schemagen/internal/batch"
	"schemagen/internal/cache/localrepo"
	"schemagen/internal/maven"
	"schemagen/internal/resolver"
)

type Config struct {
	CacheDir        string
	Repositories    []string
	FetchTimeout    time.Duration
	VerifyChecksums bool
	Workers         int
	TypeFailures    batch.TypeFailurePolicy
	// HTTPClient overrides the client used for repository downloads.
	HTTPClient *http.Client
}

// Pipeline holds the long-lived collaborators of a running engine. The local
// cache and the parsed-POM cache are shared by every request.
type Pipeline struct {
	Cache    *localrepo.Store
	Client   *maven.Client
	Resolver *resolver.Resolver
	Batch    *batch.Service
}

func New(cfg Config) (*Pipeline, error) {
	cache, err := localrepo.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	if cfg.FetchTimeout > 0 {
		cache.SetFillTimeout(cfg.FetchTimeout)
	}
	client, err := maven.NewClient(cache, maven.ClientConfig{
		Repositories:    cfg.Repositories,
		HTTPClient:      cfg.HTTPClient,
		VerifyChecksums: cfg.VerifyChecksums,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create maven client: %w", err)
	}
	downloader, err := maven.NewDownloader(client, maven.DownloaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create downloader: %w", err)
	}
	res := resolver.New(downloader, cfg.FetchTimeout)
	svc := batch.New(res, batch.Config{
		Workers:      cfg.Workers,
		TypeFailures: cfg.TypeFailures,
	})
	log.Printf("pipeline: cache=%s repositories=%v workers=%d policy=%s",
		cache.Root(), client.Repositories(), cfg.Workers, cfg.TypeFailures)
	return &Pipeline{Cache: cache, Client: client, Resolver: res, Batch: svc}, nil
}
