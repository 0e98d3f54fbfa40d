package main

import (
	"context"
	"fmt"

	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/chroma-core/controlplane/pkg/sysdb/coordinator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// copy relocates one collection's segment artifacts from a source object
// store endpoint to a destination one and commits the new paths through
// the normal FlushCollectionCompaction path — the same bucket-migration
// operation spec.md §6 names ("copy: collection migration between
// endpoints"). The SysDB connection and the record log are shared (single
// process, single catalog): dbcore's connection pool is process-global
// (see DESIGN.md), so relocating a collection between two *SysDB*
// endpoints in one process isn't supported here — only its artifacts move.
var (
	copyDB       = DBConfig{Driver: envOr("DB_DRIVER", "sqlite")}
	copySrcStore = ObjectStoreConfig{Provider: "memory"}
	copyDstStore = ObjectStoreConfig{Provider: "memory"}

	copyTenant       string
	copyDatabaseName string
	copyCollection   string

	copyCmd = &cobra.Command{
		Use:   "copy",
		Short: "Relocate a collection's segment artifacts between object store endpoints",
		RunE:  copyExec,
	}
)

func init() {
	copyCmd.Flags().StringVar(&copyDB.Driver, "db-driver", copyDB.Driver, "SysDB driver: sqlite or postgres")
	copyCmd.Flags().StringVar(&copyDB.Address, "db-address", envOr("DB_ADDRESS", "postgres"), "Postgres host (db-driver=postgres)")
	copyCmd.Flags().IntVar(&copyDB.Port, "db-port", envOrInt("DB_PORT", 5432), "Postgres port")
	copyCmd.Flags().StringVar(&copyDB.Username, "db-username", envOr("DB_USERNAME", "chroma"), "Postgres username")
	copyCmd.Flags().StringVar(&copyDB.Password, "db-password", envOr("DB_PASSWORD", "chroma"), "Postgres password")
	copyCmd.Flags().StringVar(&copyDB.DBName, "db-name", envOr("DB_NAME", "chroma"), "Postgres database name")
	copyCmd.Flags().StringVar(&copyDB.SslMode, "db-ssl-mode", envOr("DB_SSL_MODE", "disable"), "Postgres SSL mode")

	copyCmd.Flags().StringVar(&copyTenant, "tenant", "default_tenant", "Tenant owning the collection (not used in the lookup, which matches on --database and --collection only)")
	copyCmd.Flags().StringVar(&copyDatabaseName, "database", "default_database", "Database owning the collection")
	copyCmd.Flags().StringVar(&copyCollection, "collection", "", "Name of the collection to relocate (required)")

	copyCmd.Flags().StringVar(&copySrcStore.Provider, "src-provider", "memory", "Source object store provider: memory or s3")
	copyCmd.Flags().StringVar(&copySrcStore.BucketName, "src-bucket", "", "Source bucket name")
	copyCmd.Flags().StringVar(&copySrcStore.Region, "src-region", "us-east-1", "Source bucket region")
	copyCmd.Flags().StringVar(&copySrcStore.Endpoint, "src-endpoint", "", "Source S3-compatible endpoint override")

	copyCmd.Flags().StringVar(&copyDstStore.Provider, "dst-provider", "memory", "Destination object store provider: memory or s3")
	copyCmd.Flags().StringVar(&copyDstStore.BucketName, "dst-bucket", "", "Destination bucket name")
	copyCmd.Flags().StringVar(&copyDstStore.Region, "dst-region", "us-east-1", "Destination bucket region")
	copyCmd.Flags().StringVar(&copyDstStore.Endpoint, "dst-endpoint", "", "Destination S3-compatible endpoint override")
}

func copyExec(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	if copyCollection == "" {
		return exitWith(exitUserError, fmt.Errorf("--collection is required"))
	}

	if err := connectDB(copyDB); err != nil {
		return exitWith(exitConfigError, fmt.Errorf("connecting to SysDB: %w", err))
	}

	srcStore, err := buildObjectStore(ctx, copySrcStore)
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("building source object store: %w", err))
	}
	dstStore, err := buildObjectStore(ctx, copyDstStore)
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("building destination object store: %w", err))
	}

	coord, err := coordinator.NewCoordinator(ctx, coordinator.Config{ObjectStore: dstStore})
	if err != nil {
		return exitWith(exitConfigError, fmt.Errorf("starting coordinator: %w", err))
	}

	name := copyCollection
	coll, err := coord.GetCollection(ctx, &model.GetCollection{
		Name:         &name,
		DatabaseName: copyDatabaseName,
	})
	if err != nil {
		return exitWith(classifyErr(err), fmt.Errorf("looking up collection %q: %w", copyCollection, err))
	}

	segments, err := coord.GetSegments(ctx, coll.ID.String())
	if err != nil {
		return exitWith(classifyErr(err), fmt.Errorf("listing segments: %w", err))
	}

	flush := &model.FlushCollectionCompaction{
		ID:                         coll.ID,
		TenantID:                   coll.TenantID,
		ExpectedVersion:            coll.Version,
		NewLogCompactionOffset:     coll.LogCompactionOffset,
		TotalRecordsPostCompaction: coll.TotalRecordsPostCompaction,
	}

	for _, seg := range segments {
		relocated, err := relocateSegmentArtifacts(ctx, srcStore, dstStore, seg)
		if err != nil {
			return exitWith(exitTransientErr, fmt.Errorf("relocating segment %s: %w", seg.ID.String(), err))
		}
		flush.FlushSegmentCompactions = append(flush.FlushSegmentCompactions, &model.FlushSegmentCompaction{
			SegmentID: seg.ID,
			Scope:     seg.Scope,
			FilePaths: relocated,
		})
	}

	info, err := coord.FlushCollectionCompaction(ctx, flush)
	if err != nil {
		return exitWith(classifyErr(err), fmt.Errorf("committing relocated artifacts: %w", err))
	}

	log.Info().
		Str("collection", copyCollection).
		Int32("new_version", info.CollectionVersion).
		Int("segments", len(segments)).
		Msg("collection artifacts relocated")
	return nil
}

// relocateSegmentArtifacts copies every file a segment references from src
// to dst, content unchanged — paths are content/generation-addressed
// (objectstore.SegmentArtifactPath), so the same path string is valid in
// either store.
func relocateSegmentArtifacts(ctx context.Context, src, dst objectstore.Store, seg *model.Segment) (map[string][]string, error) {
	out := make(map[string][]string, len(seg.FilePaths))
	for role, paths := range seg.FilePaths {
		newPaths := make([]string, 0, len(paths))
		for _, path := range paths {
			content, err := src.Get(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("reading %s from source store: %w", path, err)
			}
			if err := dst.Put(ctx, path, content); err != nil {
				return nil, fmt.Errorf("writing %s to destination store: %w", path, err)
			}
			newPaths = append(newPaths, path)
		}
		out[role] = newPaths
	}
	return out, nil
}
