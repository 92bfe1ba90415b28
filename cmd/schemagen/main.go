package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"schemagen/internal/batch"
	"schemagen/internal/gateway/app"
	"schemagen/internal/gateway/config"
	schemarepo "schemagen/internal/gateway/repository/schema"
	"schemagen/internal/pipeline"
	"schemagen/internal/requestio"
	"schemagen/internal/types"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	in := flag.String("in", "", "request file (.json, .yaml or .yml)")
	inline := flag.String("request", "", "inline JSON request or request list")
	out := flag.String("out", "schemas.json", "output file")
	repos := flag.String("repos", strings.Join(cfg.Resolver.Repositories, ","), "comma separated repository URLs")
	cacheDir := flag.String("cache", cfg.Resolver.CacheDir, "local repository cache directory")
	workers := flag.Int("workers", cfg.Batch.Workers, "concurrent requests")
	timeout := flag.Duration("timeout", cfg.Resolver.FetchTimeout, "per-request fetch timeout")
	partial := flag.Bool("partial", strings.HasPrefix(strings.ToLower(cfg.Batch.TypeFailurePolicy), "skip"), "keep the other types of a request when one type fails")
	publish := flag.Bool("publish", false, "also store the schemas in the configured schema store")
	flag.Parse()

	if (*in == "") == (*inline == "") {
		log.Fatal("exactly one of -in or -request is required")
	}
	reqs, err := readRequests(*in, *inline)
	if err != nil {
		log.Fatalf("failed to read requests: %v", err)
	}

	policy := batch.AbortArtifact
	if *partial {
		policy = batch.SkipType
	}
	engine, err := pipeline.New(pipeline.Config{
		CacheDir:        *cacheDir,
		Repositories:    config.SplitList(*repos),
		FetchTimeout:    *timeout,
		VerifyChecksums: cfg.Resolver.VerifyChecksums,
		Workers:         *workers,
		TypeFailures:    policy,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	res := engine.Batch.Process(ctx, reqs)
	summarize(reqs, res)

	if err := requestio.WriteResponses(*out, res.Responses); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	if len(res.Failures) > 0 {
		report := requestio.FailuresPath(*out)
		if err := requestio.WriteFailures(report, res.Failures); err != nil {
			log.Fatalf("failed to write %s: %v", report, err)
		}
		log.Printf("failures written to %s", report)
	}
	if *publish {
		if err := publishResponses(context.WithoutCancel(ctx), cfg, res.Responses); err != nil {
			log.Printf("publish failed: %v", err)
		}
	}

	log.Printf("done in %s: %d/%d requests produced schemas → %s",
		time.Since(started).Round(time.Millisecond), len(res.Responses), len(reqs), *out)
	if len(res.Responses) == 0 {
		os.Exit(1)
	}
}

func readRequests(path, inline string) ([]types.SchemaRequest, error) {
	if inline != "" {
		return requestio.Decode(strings.NewReader(inline), requestio.FormatJSON)
	}
	return requestio.ReadFile(path)
}

func summarize(reqs []types.SchemaRequest, res types.BatchResult) {
	for i, resp := range res.Responses {
		log.Printf("ok     #%d %s: %d schemas", res.ResponseIndex[i], resp.Coordinate, len(resp.Schemas))
	}
	for _, f := range res.Failures {
		target := reqs[f.Index].Coordinate.String()
		if f.TypeName != "" {
			target += " " + f.TypeName
		}
		log.Printf("failed #%d %s (%s): %s", f.Index, target, f.Kind, f.Message)
	}
}

func publishResponses(ctx context.Context, cfg *config.Config, responses []types.SchemaResponse) error {
	store, closeStore, err := app.OpenSchemaStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	for _, resp := range responses {
		if err := schemarepo.PutResponse(ctx, store, resp); err != nil {
			return err
		}
	}
	log.Printf("published %d responses", len(responses))
	return nil
}
