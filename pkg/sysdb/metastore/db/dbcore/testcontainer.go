package dbcore

import (
	"context"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// GetDBConfigForTesting spins up a throwaway Postgres container and returns
// connection parameters for it, for tests that want real Postgres
// semantics (row locking, unique-constraint error codes) rather than
// sqlite's approximations. No test in this repository calls it; the
// dao/coordinator tests use ConfigSqliteForTesting.
func GetDBConfigForTesting() DBConfig {
	dbName, dbUser, dbPassword := "chroma", "chroma", "chroma"
	container, err := pgcontainer.RunContainer(context.Background(),
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		pgcontainer.WithDatabase(dbName),
		pgcontainer.WithUsername(dbUser),
		pgcontainer.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(15*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	ports, err := container.Ports(context.Background())
	if err != nil {
		panic(err)
	}
	hostPort := ports[nat.Port("5432/tcp")][0].HostPort
	port, err := strconv.Atoi(hostPort)
	if err != nil {
		panic(err)
	}

	return DBConfig{
		Username:     dbUser,
		Password:     dbPassword,
		Address:      "localhost",
		ReadAddress:  "localhost",
		Port:         port,
		DBName:       dbName,
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		SslMode:      "disable",
	}
}

// ConfigDatabaseForTesting connects to a fresh testcontainer Postgres and
// migrates it, returning the write and read pools (the same pool for both,
// since the container has no replica).
func ConfigDatabaseForTesting() (*gorm.DB, *gorm.DB) {
	cfg := GetDBConfigForTesting()
	db, err := ConnectPostgres(cfg.Address, cfg.Username, cfg.Password, cfg.Port, cfg.DBName, cfg.SslMode, cfg.MaxIdleConns, cfg.MaxOpenConns)
	if err != nil {
		panic(err)
	}
	globalDB = db
	globalReadDB = db
	CreateTestTables(db)
	return globalDB, globalReadDB
}
