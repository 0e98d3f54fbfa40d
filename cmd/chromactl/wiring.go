package main

import (
	"context"
	"fmt"

	"github.com/chroma-core/controlplane/pkg/objectstore"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
)

// connectDB installs the process-wide SysDB connection pool (dbcore's
// connection state is package-global, mirroring the teacher's
// dbcore.globalDB — see DESIGN.md on why `copy` works around this instead
// of requiring two live SysDB connections in one process).
func connectDB(cfg DBConfig) (err error) {
	switch cfg.Driver {
	case "sqlite":
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("opening sqlite database: %v", r)
			}
		}()
		dbcore.ConfigSqliteForTesting()
		return nil
	case "postgres":
		dbCfg := cfg.DBConfig
		if dbCfg.ReadAddress == "" {
			dbCfg.ReadAddress = dbCfg.Address
		}
		return dbcore.ConnectDB(dbCfg)
	default:
		return fmt.Errorf("unknown db driver %q (want sqlite or postgres)", cfg.Driver)
	}
}

func buildObjectStore(ctx context.Context, cfg ObjectStoreConfig) (objectstore.Store, error) {
	switch cfg.Provider {
	case "memory":
		return objectstore.NewMemoryStore(), nil
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.Config)
	default:
		return nil, fmt.Errorf("unknown object store provider %q (want memory or s3)", cfg.Provider)
	}
}
