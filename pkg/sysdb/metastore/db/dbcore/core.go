// Package dbcore owns the SysDB catalog's connection pool, transaction
// propagation, and test-table bootstrap. Production wiring goes through
// Postgres; package-level tests use an in-memory sqlite connection so they
// run without a running database.
package dbcore

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/chroma-core/controlplane/pkg/types"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var (
	globalDB     *gorm.DB
	globalReadDB *gorm.DB
)

type DBConfig struct {
	Username     string
	Password     string
	Address      string
	ReadAddress  string
	Port         int
	DBName       string
	MaxIdleConns int
	MaxOpenConns int
	SslMode      string
}

// ConnectDB establishes the primary and read-replica Postgres pools used by
// production SysDB nodes.
func ConnectDB(cfg DBConfig) error {
	db, err := ConnectPostgres(cfg.Address, cfg.Username, cfg.Password, cfg.Port, cfg.DBName, cfg.SslMode, cfg.MaxIdleConns, cfg.MaxOpenConns)
	if err != nil {
		return err
	}
	readDB, err := ConnectPostgres(cfg.ReadAddress, cfg.Username, cfg.Password, cfg.Port, cfg.DBName, cfg.SslMode, cfg.MaxIdleConns, cfg.MaxOpenConns)
	if err != nil {
		return err
	}

	globalDB = db
	globalReadDB = readDB
	return nil
}

func ConnectPostgres(address, username, password string, port int, dbName, sslMode string, maxIdleConns, maxOpenConns int) (*gorm.DB, error) {
	log.Info("connecting to postgres", zap.String("host", address), zap.String("database", dbName), zap.Int("port", port))
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		address, username, password, dbName, port, sslMode)

	ormLogger := logger.Default
	ormLogger.LogMode(logger.Info)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:          ormLogger,
		CreateBatchSize: 100,
	})
	if err != nil {
		log.Error("failed to connect db", zap.String("host", address), zap.String("database", dbName), zap.Error(err))
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		log.Error("failed to install tracing plugin", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	log.Info("postgres connected", zap.String("host", address), zap.String("database", dbName))
	return db, nil
}

type ctxTransactionKey struct{}

func CtxWithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTransactionKey{}, tx)
}

type TxImpl struct{}

func NewTxImpl() *TxImpl { return &TxImpl{} }

// Transaction implements dbmodel.ITransaction, running fn inside a single
// gorm transaction and threading the transaction handle through the context
// so DAOs built from txCtx all share it.
func (*TxImpl) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	db := globalDB.WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		return fn(CtxWithTransaction(ctx, tx))
	})
}

func GetDB(ctx context.Context) *gorm.DB {
	if iface := ctx.Value(ctxTransactionKey{}); iface != nil {
		tx, ok := iface.(*gorm.DB)
		if !ok {
			log.Error("unexpected transaction context value type", zap.Any("type", reflect.TypeOf(iface)))
			return nil
		}
		return tx
	}
	return globalDB.WithContext(ctx)
}

func GetReadDB(ctx context.Context) *gorm.DB {
	if iface := ctx.Value(ctxTransactionKey{}); iface != nil {
		tx, ok := iface.(*gorm.DB)
		if !ok {
			log.Error("unexpected transaction context value type", zap.Any("type", reflect.TypeOf(iface)))
			return nil
		}
		return tx
	}
	return globalReadDB.WithContext(ctx)
}

func CreateDefaultTenantAndDatabase(db *gorm.DB) string {
	defaultTenant := &dbmodel.Tenant{ID: common.DefaultTenant, LastCompactionTime: time.Now().Unix()}
	db.Model(&dbmodel.Tenant{}).Where("id = ?", common.DefaultTenant).FirstOrCreate(defaultTenant)

	var databases []dbmodel.Database
	result := db.Model(&dbmodel.Database{}).
		Where("name = ?", common.DefaultDatabase).
		Where("tenant_id = ?", common.DefaultTenant).
		Find(&databases)
	if result.Error != nil {
		return ""
	}
	if len(databases) > 0 {
		return databases[0].ID
	}

	databaseID := types.NewUniqueID().String()
	db.Create(&dbmodel.Database{ID: databaseID, Name: common.DefaultDatabase, TenantID: common.DefaultTenant})
	return databaseID
}

// Migrate applies every SysDB table's schema to db via gorm's AutoMigrate,
// creating missing tables and adding columns AutoMigrate detects as new.
// This is the production counterpart to CreateTestTables: it never seeds a
// default tenant/database, and it alters existing tables rather than only
// creating ones that don't exist yet, so it is safe to run repeatedly
// against a database already serving traffic (cmd/chromactl's `db migrate`
// is the only caller).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&dbmodel.Tenant{},
		&dbmodel.Database{},
		&dbmodel.Collection{},
		&dbmodel.CollectionMetadata{},
		&dbmodel.Segment{},
		&dbmodel.SegmentMetadata{},
		&dbmodel.CollectionVersion{},
		&dbmodel.CompactionLease{},
	)
}

// CreateTestTables migrates every SysDB table and seeds the default
// tenant/database. Used by sqlite-backed package tests and the Postgres
// testcontainers harness alike.
func CreateTestTables(db *gorm.DB) {
	for _, model := range []interface{}{
		&dbmodel.Tenant{},
		&dbmodel.Database{},
		&dbmodel.Collection{},
		&dbmodel.CollectionMetadata{},
		&dbmodel.Segment{},
		&dbmodel.SegmentMetadata{},
		&dbmodel.CollectionVersion{},
		&dbmodel.CompactionLease{},
	} {
		if !db.Migrator().HasTable(model) {
			if err := db.Migrator().CreateTable(model); err != nil {
				log.Error("failed creating test table", zap.Any("model", model), zap.Error(err))
			}
		}
	}
	CreateDefaultTenantAndDatabase(db)
}

// ConfigSqliteForTesting opens an in-memory sqlite database, migrates it,
// and installs it as both the primary and read pool. Package tests call
// this once per test (a fresh in-memory database, not a shared file) so
// tests never interfere with each other.
func ConfigSqliteForTesting() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:sysdb_test_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	if err != nil {
		panic(fmt.Errorf("failed to open sqlite test database: %w", err))
	}
	globalDB = db
	globalReadDB = db
	CreateTestTables(db)
	return db
}
