package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	schemacache "schemagen/internal/cache/schema"
	"schemagen/internal/gateway/config"
	schemarepo "schemagen/internal/gateway/repository/schema"
)

type gatewayStores struct {
	schema *schemacache.CachedStore
	db     *sql.DB
}

func (s *gatewayStores) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initStores picks the schema store origin (S3, then Postgres, then memory)
// and puts the read-through cache in front of it.
func initStores(cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{}

	var origin schemarepo.Store
	switch {
	case cfg.SchemaStore.CanUseS3():
		s3Store, err := newSchemaS3Store(cfg)
		if err != nil {
			return nil, err
		}
		origin = s3Store
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		db, err := sql.Open("pgx", strings.TrimSpace(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		stores.db = db
		origin = schemarepo.NewPostgresStore(db)
		log.Printf("schema store: postgres")
	default:
		if cfg.SchemaStore.Enabled {
			log.Printf("schema store: using in-memory fallback (s3 config incomplete)")
		} else {
			log.Printf("schema store: in-memory")
		}
		origin = schemarepo.NewMemoryStore()
	}

	stores.schema = schemacache.NewCachedStore(origin, schemacache.DefaultCacheConfig())
	return stores, nil
}

func newSchemaS3Store(cfg *config.Config) (schemarepo.Store, error) {
	s3Cfg := schemarepo.S3Config{
		Endpoint:  cfg.SchemaStore.Endpoint,
		Region:    cfg.SchemaStore.Region,
		AccessKey: cfg.SchemaStore.AccessKey,
		SecretKey: cfg.SchemaStore.SecretKey,
		Bucket:    cfg.SchemaStore.Bucket,
		UseSSL:    cfg.SchemaStore.UseSSL,
	}
	s3Store, err := schemarepo.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema s3 store: %w", err)
	}
	log.Printf("schema store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return s3Store, nil
}

// OpenSchemaStore returns the configured schema store for tools running
// outside the server. The returned func releases its resources.
func OpenSchemaStore(cfg *config.Config) (schemarepo.Store, func() error, error) {
	stores, err := initStores(cfg)
	if err != nil {
		return nil, nil, err
	}
	return stores.schema, stores.Close, nil
}
