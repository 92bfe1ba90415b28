package app

import (
	"context"
	"fmt"

	"schemagen/internal/batch"
	"schemagen/internal/gateway/config"
	"schemagen/internal/gateway/handler/rpc"
	"schemagen/internal/gateway/server"
	gatewayschema "schemagen/internal/gateway/service/schema"
	"schemagen/internal/pipeline"
)

type App struct {
	server *server.Server
	stores *gatewayStores
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	policy, err := batch.ParseTypeFailurePolicy(cfg.Batch.TypeFailurePolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Dependencies
	engine, err := pipeline.New(pipeline.Config{
		CacheDir:        cfg.Resolver.CacheDir,
		Repositories:    cfg.Resolver.Repositories,
		FetchTimeout:    cfg.Resolver.FetchTimeout,
		VerifyChecksums: cfg.Resolver.VerifyChecksums,
		Workers:         cfg.Batch.Workers,
		TypeFailures:    policy,
	})
	if err != nil {
		return nil, err
	}
	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	schemaSvc := gatewayschema.New(engine.Batch, stores.schema)

	schemaHandler := rpc.NewSchemaHandler(schemaSvc)
	batchStream := rpc.NewBatchStreamHandler(schemaSvc)

	// Routing & Server
	mux := server.NewMux(schemaHandler, batchStream)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		stores: stores,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.stores.Close(); err == nil {
		err = cerr
	}
	return err
}
