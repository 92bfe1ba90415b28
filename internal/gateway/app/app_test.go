package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagen/internal/gateway/config"
	schemarepo "schemagen/internal/gateway/repository/schema"
	"schemagen/internal/types"
)

var testCoordinate = types.Coordinate{GroupID: "com.example", ArtifactID: "model", Version: "1.0"}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port: ":0",
		Env:  "test",
		Resolver: config.ResolverConfig{
			Repositories: []string{"http://127.0.0.1:1/maven2"},
			CacheDir:     t.TempDir(),
			FetchTimeout: time.Second,
		},
		Batch: config.BatchConfig{Workers: 2},
	}
}

func TestNewWithConfigUsesMemoryStore(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewWithConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.stores.schema)
	assert.Nil(t, a.stores.db)
	assert.Equal(t, ":0", a.server.Addr())
	assert.NoError(t, a.stores.Close())
}

func TestNewWithConfigRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.TypeFailurePolicy = "sometimes"
	_, err := NewWithConfig(cfg)
	assert.Error(t, err)
}

func TestIncompleteS3ConfigFallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.SchemaStore = config.SchemaStoreConfig{Enabled: true, Endpoint: "minio:9000"}
	stores, err := initStores(cfg)
	require.NoError(t, err)
	_, err = stores.schema.Get(t.Context(), testCoordinate, "com.example.Person")
	assert.ErrorIs(t, err, schemarepo.ErrNotFound)
}
