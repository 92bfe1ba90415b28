package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "DATABASE_URL", "SCHEMAGEN_REPOSITORIES", "SCHEMAGEN_FETCH_TIMEOUT", "SCHEMAGEN_WORKERS", "SCHEMA_S3_ENDPOINT", "SCHEMAGEN_LOCAL_POSTGRES", "SCHEMAGEN_LOCAL_MINIO"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, []string{DefaultRepository}, cfg.Resolver.Repositories)
	assert.Equal(t, 2*time.Minute, cfg.Resolver.FetchTimeout)
	assert.True(t, cfg.Resolver.VerifyChecksums)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.SchemaStore.CanUseS3())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEMAGEN_REPOSITORIES", "https://a.example/maven2, https://b.example/maven2")
	t.Setenv("SCHEMAGEN_FETCH_TIMEOUT", "45")
	t.Setenv("SCHEMAGEN_WORKERS", "12")
	t.Setenv("SCHEMAGEN_VERIFY_CHECKSUMS", "false")
	t.Setenv("SCHEMAGEN_TYPE_FAILURE_POLICY", "skip-type")
	t.Setenv("SCHEMA_S3_ENDPOINT", "s3.example:9000")
	t.Setenv("SCHEMA_S3_ACCESS_KEY", "key")
	t.Setenv("SCHEMA_S3_SECRET_KEY", "secret")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example/maven2", "https://b.example/maven2"}, cfg.Resolver.Repositories)
	assert.Equal(t, 45*time.Second, cfg.Resolver.FetchTimeout)
	assert.Equal(t, 12, cfg.Batch.Workers)
	assert.False(t, cfg.Resolver.VerifyChecksums)
	assert.Equal(t, "skip-type", cfg.Batch.TypeFailurePolicy)
	assert.True(t, cfg.SchemaStore.CanUseS3())
	assert.True(t, cfg.SchemaStore.UseSSL)
}
