package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultRepository = "https://repo.maven.apache.org/maven2"

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	Resolver    ResolverConfig
	Batch       BatchConfig
	SchemaStore SchemaStoreConfig
}

type ResolverConfig struct {
	Repositories    []string
	CacheDir        string
	FetchTimeout    time.Duration
	VerifyChecksums bool
}

type BatchConfig struct {
	Workers           int
	TypeFailurePolicy string
}

type SchemaStoreConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether every field the S3 store needs is present.
func (c SchemaStoreConfig) CanUseS3() bool {
	return c.Enabled &&
		strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Load reads .env, the -port flag and the environment. It is meant for the
// API server; tools that own their flags call FromEnv instead.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	cfg := FromEnv()
	if os.Getenv("PORT") == "" {
		cfg.Port = *port
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}
	port := ":8081"
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			port = envPort
		} else {
			port = ":" + envPort
		}
	}

	cfg := &Config{
		Port:        port,
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Resolver:    loadResolverConfig(),
		Batch: BatchConfig{
			Workers:           envInt("SCHEMAGEN_WORKERS", 4),
			TypeFailurePolicy: strings.TrimSpace(os.Getenv("SCHEMAGEN_TYPE_FAILURE_POLICY")),
		},
		SchemaStore: loadSchemaStoreConfig(env),
	}
	if strings.EqualFold(env, "local") {
		applyLocalDefaults(cfg)
	}
	return cfg
}

func loadResolverConfig() ResolverConfig {
	return ResolverConfig{
		Repositories:    SplitList(firstNonEmpty(os.Getenv("SCHEMAGEN_REPOSITORIES"), DefaultRepository)),
		CacheDir:        firstNonEmpty(strings.TrimSpace(os.Getenv("SCHEMAGEN_CACHE_DIR")), defaultCacheDir()),
		FetchTimeout:    envDuration("SCHEMAGEN_FETCH_TIMEOUT", 2*time.Minute),
		VerifyChecksums: envBool("SCHEMAGEN_VERIFY_CHECKSUMS", true),
	}
}

func loadSchemaStoreConfig(env string) SchemaStoreConfig {
	endpoint := strings.TrimSpace(os.Getenv("SCHEMA_S3_ENDPOINT"))
	return SchemaStoreConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("SCHEMA_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SCHEMA_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SCHEMA_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("SCHEMA_S3_BUCKET")), "schemagen-schemas"),
		UseSSL:    envBool("SCHEMA_S3_USE_SSL", !strings.EqualFold(env, "local")),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return dir + string(os.PathSeparator) + "schemagen" + string(os.PathSeparator) + "repository"
	}
	return ".schemagen/repository"
}

// SplitList splits a comma or whitespace separated list, dropping blanks.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
