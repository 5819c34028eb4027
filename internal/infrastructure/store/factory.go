// Package store opens the counter store selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/domain/repository"
	pgstore "github.com/turtacn/quotagate/internal/infrastructure/persistence/postgres"
	redisconn "github.com/turtacn/quotagate/internal/infrastructure/persistence/redis"
	gormstore "github.com/turtacn/quotagate/internal/infrastructure/postgres"
	"github.com/turtacn/quotagate/internal/infrastructure/ratelimit"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// Open connects to the configured counter store. The caller owns the returned
// store and must Close it at shutdown.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.CounterStore, error) {
	driver := constants.StoreDriver(cfg.Store.Driver)
	log = log.WithFields(logger.String("store_driver", string(driver)))

	switch driver {
	case constants.StoreDriverPostgres:
		return openPgx(ctx, cfg, log)
	case constants.StoreDriverGormPostgres:
		db, err := gormstore.OpenPostgres(ctx, &cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return migrateGorm(ctx, gormstore.NewGormCounterRepository(db), cfg.Store.AutoMigrate)
	case constants.StoreDriverSQLite:
		db, err := gormstore.OpenSQLite(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		// An SQLite file is private to this process, so its schema is always created.
		return migrateGorm(ctx, gormstore.NewGormCounterRepository(db), true)
	case constants.StoreDriverRedis:
		return openRedis(ctx, cfg, log)
	case constants.StoreDriverMemory:
		log.Warn(ctx, "Using the in-memory counter store; counts are not shared between instances")
		return ratelimit.NewMemoryCounterStore(), nil
	default:
		return nil, errors.ErrInvalidConfig(fmt.Sprintf("unknown store driver %q", cfg.Store.Driver))
	}
}

func openPgx(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.CounterStore, error) {
	db, err := pgstore.NewDBConnection(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}
	repo := pgstore.NewCounterRepository(db, log)
	if cfg.Store.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, errors.ErrDatabaseConnection(err)
		}
	}
	return repo, nil
}

func migrateGorm(ctx context.Context, repo *gormstore.GormCounterRepository, migrate bool) (repository.CounterStore, error) {
	if migrate {
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = repo.Close()
			return nil, errors.ErrDatabaseConnection(err)
		}
	}
	return repo, nil
}

func openRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.CounterStore, error) {
	conn := redisconn.NewRedisConnection(redisconn.ConfigFromApp(&cfg.Redis), log)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	storeCfg := ratelimit.DefaultRedisCounterStoreConfig()
	if cfg.Redis.KeyPrefix != "" {
		storeCfg.KeyPrefix = cfg.Redis.KeyPrefix
	}
	if cfg.Store.Retention > 0 {
		storeCfg.Retention = cfg.Store.Retention
	}

	s, err := ratelimit.NewRedisCounterStore(conn.GetClient(), storeCfg, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

//Personal.AI order the ending
