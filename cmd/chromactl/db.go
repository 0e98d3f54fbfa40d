package main

import (
	"context"
	"fmt"

	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbcore"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	dbCfg = DBConfig{Driver: "postgres"}

	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "SysDB database management (migrate, healthcheck)",
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SysDB schema migration",
		RunE:  dbMigrateExec,
	}

	dbHealthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Verify SysDB connectivity",
		RunE:  dbHealthcheckExec,
	}
)

func init() {
	for _, c := range []*cobra.Command{dbMigrateCmd, dbHealthcheckCmd} {
		c.Flags().StringVar(&dbCfg.Driver, "db-driver", dbCfg.Driver, "SysDB driver: sqlite or postgres")
		c.Flags().StringVar(&dbCfg.Address, "db-address", envOr("DB_ADDRESS", "postgres"), "Postgres host")
		c.Flags().IntVar(&dbCfg.Port, "db-port", envOrInt("DB_PORT", 5432), "Postgres port")
		c.Flags().StringVar(&dbCfg.Username, "db-username", envOr("DB_USERNAME", "chroma"), "Postgres username")
		c.Flags().StringVar(&dbCfg.Password, "db-password", envOr("DB_PASSWORD", "chroma"), "Postgres password")
		c.Flags().StringVar(&dbCfg.DBName, "db-name", envOr("DB_NAME", "chroma"), "Postgres database name")
		c.Flags().StringVar(&dbCfg.SslMode, "db-ssl-mode", envOr("DB_SSL_MODE", "disable"), "Postgres SSL mode")
	}
	dbCmd.AddCommand(dbMigrateCmd, dbHealthcheckCmd)
}

func dbMigrateExec(cmd *cobra.Command, _ []string) error {
	if err := connectDB(dbCfg); err != nil {
		return exitWith(exitConfigError, fmt.Errorf("connecting to SysDB: %w", err))
	}
	if err := dbcore.Migrate(dbcore.GetDB(context.Background())); err != nil {
		return exitWith(exitTransientErr, fmt.Errorf("applying schema migration: %w", err))
	}
	log.Info().Str("db_name", dbCfg.DBName).Msg("SysDB schema migrated")
	return nil
}

func dbHealthcheckExec(cmd *cobra.Command, _ []string) error {
	if err := connectDB(dbCfg); err != nil {
		return exitWith(exitConfigError, fmt.Errorf("connecting to SysDB: %w", err))
	}
	sqlDB, err := dbcore.GetDB(context.Background()).DB()
	if err != nil {
		return exitWith(exitTransientErr, fmt.Errorf("obtaining raw SysDB connection: %w", err))
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		return exitWith(exitTransientErr, fmt.Errorf("SysDB ping failed: %w", err))
	}
	log.Info().Str("db_name", dbCfg.DBName).Msg("SysDB is reachable")
	return nil
}
