package core

import (
	"context"
	"falken/internal/infra/persistence/memory"
	"falken/internal/infra/persistence/postgres"
	"falken/internal/infra/persistence/sqlite"
	"falken/pkg/domain"
	"fmt"
	"os"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Storage environment variables.
const (
	EnvStorageDriver = "FALKEN_STORAGE_DRIVER"
	EnvSQLitePath    = "FALKEN_SQLITE_PATH"
	EnvPostgresDSN   = "FALKEN_POSTGRES_DSN"
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	FALKEN_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	FALKEN_SQLITE_PATH: path to sqlite file (default ./falken.db)
//	FALKEN_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context) (domain.PersistentStore, error) {
	driver := os.Getenv(EnvStorageDriver)
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv(EnvSQLitePath))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv(EnvPostgresDSN))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
