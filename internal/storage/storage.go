// Package storage persists whole partitions (one JSON document per entity
// kind) in a pluggable backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/database"
)

// Partition names.
const (
	Users     = "users"
	Questions = "questions"
	Exams     = "exams"
	Results   = "results"
)

// ErrNotExist is returned by Read when the partition has never been written.
var ErrNotExist = errors.New("partition does not exist")

// PartitionStore reads and writes whole partitions. Write replaces the
// previous document in one step.
type PartitionStore interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Close() error
}

// Open connects the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (PartitionStore, error) {
	switch cfg.StorageDriver {
	case config.DriverFile, "":
		return NewFileStore(cfg.DataDir)
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case config.DriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
