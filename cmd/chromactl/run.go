package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/compactor"
	"github.com/chroma-core/controlplane/pkg/log/server"
	"github.com/chroma-core/controlplane/pkg/sysdb/cleanup"
	"github.com/chroma-core/controlplane/pkg/sysdb/coordinator"
	"github.com/chroma-core/controlplane/shared/otel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	runDB         = DBConfig{Driver: envOr("DB_DRIVER", "sqlite")}
	runObjStore   = ObjectStoreConfig{Provider: envOr("OBJECT_STORE_PROVIDER", "memory")}
	runLog        = LogConfig{Mode: envOr("LOG_BACKEND", "embedded"), EmbeddedDir: envOr("SSD_CACHE_DIR", "./chromactl-data/log")}
	runCompactor  = CompactorConfig{HolderID: envOr("HOSTNAME", "chromactl-embedded")}
	runOtelTarget string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start an embedded single-node control plane (SysDB + Log + compaction loop)",
		RunE:  runExec,
	}
)

func init() {
	runCmd.Flags().StringVar(&runDB.Driver, "db-driver", runDB.Driver, "SysDB driver: sqlite or postgres")
	runCmd.Flags().StringVar(&runDB.Address, "db-address", envOr("DB_ADDRESS", "postgres"), "Postgres host (db-driver=postgres)")
	runCmd.Flags().IntVar(&runDB.Port, "db-port", envOrInt("DB_PORT", 5432), "Postgres port")
	runCmd.Flags().StringVar(&runDB.Username, "db-username", envOr("DB_USERNAME", "chroma"), "Postgres username")
	runCmd.Flags().StringVar(&runDB.Password, "db-password", envOr("DB_PASSWORD", "chroma"), "Postgres password")
	runCmd.Flags().StringVar(&runDB.DBName, "db-name", envOr("DB_NAME", "chroma"), "Postgres database name")
	runCmd.Flags().StringVar(&runDB.SslMode, "db-ssl-mode", envOr("DB_SSL_MODE", "disable"), "Postgres SSL mode")
	runCmd.Flags().IntVar(&runDB.MaxIdleConns, "db-max-idle-conns", envOrInt("DB_MAX_IDLE_CONNS", 10), "Postgres max idle connections")
	runCmd.Flags().IntVar(&runDB.MaxOpenConns, "db-max-open-conns", envOrInt("DB_MAX_OPEN_CONNS", 10), "Postgres max open connections")

	runCmd.Flags().StringVar(&runObjStore.Provider, "object-store-provider", runObjStore.Provider, "Object store provider: memory or s3")
	runCmd.Flags().StringVar(&runObjStore.BucketName, "object-store-bucket", envOr("STORAGE_BUCKET", "chroma"), "Bucket name (object-store-provider=s3)")
	runCmd.Flags().StringVar(&runObjStore.Region, "object-store-region", envOr("STORAGE_REGION", "us-east-1"), "Bucket region")
	runCmd.Flags().StringVar(&runObjStore.Endpoint, "object-store-endpoint", envOr("STORAGE_ENDPOINT", ""), "S3-compatible endpoint override")
	runCmd.Flags().BoolVar(&runObjStore.ForcePathStyle, "object-store-force-path-style", false, "Use path-style S3 addressing")
	runCmd.Flags().BoolVar(&runObjStore.CreateBucketIfNotExists, "object-store-create-bucket", true, "Create the bucket on startup if missing")

	runCmd.Flags().StringVar(&runLog.Mode, "log-backend", runLog.Mode, "Log backend: embedded or distributed")
	runCmd.Flags().StringVar(&runLog.EmbeddedDir, "ssd-cache-dir", runLog.EmbeddedDir, "Local directory for the embedded log (log-backend=embedded)")
	runCmd.Flags().StringVar(&runLog.PostgresDSN, "log-postgres-dsn", envOr("LOG_POSTGRES_DSN", ""), "Postgres DSN for the distributed log (log-backend=distributed)")

	runCmd.Flags().StringVar(&runCompactor.HolderID, "compactor-holder-id", runCompactor.HolderID, "Identity this node's compaction lease requests are tagged with")
	runCmd.Flags().Int64Var(&runCompactor.StalenessThreshold, "compaction-batch-size", int64(envOrInt("COMPACTION_BATCH_SIZE", 1000)), "Pending record count that triggers compaction")
	runCmd.Flags().DurationVar(&runCompactor.StalenessAge, "compaction-staleness-seconds", envOrDuration("COMPACTION_STALENESS_SECONDS", common.DefaultCompactionStalenessSeconds*time.Second), "Max age since last compaction before a sweep forces one")
	runCmd.Flags().DurationVar(&runCompactor.LeaseTTL, "compaction-lease-ttl", 30*time.Second, "Compaction lease TTL")
	runCmd.Flags().DurationVar(&runCompactor.PollInterval, "compaction-poll-interval", 10*time.Second, "Compaction sweep interval")
	runCmd.Flags().IntVar(&runCompactor.EnumerateBatchSize, "compaction-enumerate-batch-size", 10000, "Max records read from the log per compaction")

	runCmd.Flags().DurationVar(&softDeleteGrace, "soft-delete-grace-seconds", envOrDuration("SOFT_DELETE_GRACE_SECONDS", common.DefaultSoftDeleteGraceSeconds*time.Second), "Grace period before a soft-deleted collection is hard-deleted")
	runCmd.Flags().StringVar(&runOtelTarget, "otel-endpoint", envOr("OTEL_ENDPOINT", ""), "OTLP gRPC endpoint for tracing/metrics export (disabled when empty)")
}

var softDeleteGrace = 24 * time.Hour

// singleNodeMembership is the compactor.Membership this embedded node uses
// when it isn't part of a Kubernetes-coordinated pool: every active
// collection is "owned" locally, since there is no one else to share the
// work with. Contrast pkg/compactor.RouterMembership, used in a clustered
// deployment where pkg/membership.Router actually partitions ownership.
type singleNodeMembership struct {
	coordinator *coordinator.Coordinator
}

func (m *singleNodeMembership) OwnedCollections(ctx context.Context) ([]string, error) {
	return m.coordinator.ListActiveCollectionIDs(ctx)
}

func runExec(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	if runOtelTarget != "" {
		if err := otel.InitTracing(ctx, &otel.TracingConfig{Endpoint: runOtelTarget, Service: "chromactl"}); err != nil {
			log.Warn().Err(err).Msg("tracing disabled: failed to connect to OTel endpoint")
		} else if err := otel.InitMetrics(ctx, &otel.TracingConfig{Endpoint: runOtelTarget, Service: "chromactl"}); err != nil {
			log.Warn().Err(err).Msg("metrics disabled: failed to connect to OTel endpoint")
		}
	}

	if err := connectDB(runDB); err != nil {
		return exitWith(exitConfigError, fmt.Errorf("connecting to SysDB: %w", err))
	}

	store, err := buildObjectStore(ctx, runObjStore)
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("building object store: %w", err))
	}

	logSvc, err := server.New(ctx, runLog.toServerConfig())
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("starting log server: %w", err))
	}

	coord, err := coordinator.NewCoordinator(ctx, coordinator.Config{ObjectStore: store})
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("starting coordinator: %w", err))
	}

	var dispatch *clusterDispatch
	var membershipImpl compactor.Membership = &singleNodeMembership{coordinator: coord}
	if runCluster {
		dispatch, err = prepareClusterDispatch(coord, runCompactor.HolderID)
		if err != nil {
			return exitWith(exitConfigError, err)
		}
		membershipImpl = dispatch.membership
	}

	compactorWorker := compactor.NewWorker(coord, logSvc, compactionLeaseAdapter{}, membershipImpl, newRawArtifactBuilder(store), compactor.Config{
		HolderID:           runCompactor.HolderID,
		StalenessThreshold: runCompactor.StalenessThreshold,
		StalenessAge:       runCompactor.StalenessAge,
		LeaseTTL:           runCompactor.LeaseTTL,
		PollInterval:       runCompactor.PollInterval,
		EnumerateBatchSize: runCompactor.EnumerateBatchSize,
	})

	sweeper := cleanup.NewSoftDeleteSweeper(coord, 5*time.Minute, softDeleteGrace, 100)

	dlqCtx, stopDLQMetrics := context.WithCancel(ctx)
	go cleanup.StartDLQMetrics(dlqCtx, coord)

	components := []common.Component{logSvc, coord}
	if runCluster {
		components = append(components, dispatch.guard(runCompactor.HolderID, compactorWorker, sweeper)...)
	} else {
		components = append(components, compactorWorker, sweeper)
	}

	log.Info().
		Str("db_driver", runDB.Driver).
		Str("object_store", runObjStore.Provider).
		Str("log_backend", runLog.Mode).
		Bool("cluster", runCluster).
		Msg("starting chromactl embedded control plane")

	code := runUntilSignal(components)
	stopDLQMetrics()
	if code != exitOK {
		return exitWith(code, fmt.Errorf("component startup failed"))
	}
	return nil
}
