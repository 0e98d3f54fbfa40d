package main

import (
	"os"
	"strconv"
	"time"

	"github.com/chroma-core/controlplane/pkg/log/server"
	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
)

// envOr mirrors cmd/flag's environment-default style: a flag's default
// value comes from the environment when set, the literal otherwise, so
// deployment manifests can configure everything without a single flag
// override.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// DBConfig is dbcore.DBConfig plus the embedded-vs-Postgres switch spec.md
// §6's RELATIONAL_DB_URL environment variable implies.
type DBConfig struct {
	Driver string // "sqlite" or "postgres"
	dbcore.DBConfig
}

// ObjectStoreConfig selects and configures the backing Store implementation.
type ObjectStoreConfig struct {
	Provider string // "memory" or "s3"
	objectstore.Config
}

// LogConfig is server.Config with its flag-bindable field names.
type LogConfig struct {
	Mode        string
	EmbeddedDir string
	PostgresDSN string
}

func (c LogConfig) toServerConfig() server.Config {
	return server.Config{
		Mode:        server.Mode(c.Mode),
		EmbeddedDir: c.EmbeddedDir,
		PostgresDSN: c.PostgresDSN,
	}
}

// MembershipConfig configures the two role-scoped worker pools (spec.md
// §4.5). No command reads it: `run` selects cluster mode with its
// --cluster, --cluster-namespace and --cluster-watch-resync flags.
type MembershipConfig struct {
	KubernetesNamespace string
	WatchInterval       time.Duration
}

// CompactorConfig configures the single in-process compaction loop `run`
// starts.
type CompactorConfig struct {
	HolderID           string
	StalenessThreshold int64
	StalenessAge       time.Duration
	LeaseTTL           time.Duration
	PollInterval       time.Duration
	EnumerateBatchSize int
}
