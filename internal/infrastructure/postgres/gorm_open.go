package postgres

import (
	"context"
	"time"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres opens a GORM handle on PostgreSQL using the database section of the config.
func OpenPostgres(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(gormpostgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Second)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.ErrDatabaseConnection(err)
	}

	log.Info(ctx, "GORM PostgreSQL handle opened",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
	)
	return db, nil
}

// OpenSQLite opens a GORM handle on a SQLite database file or DSN.
// SQLite serializes writers, so the pool is limited to one connection.
func OpenSQLite(ctx context.Context, dsn string, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.ErrDatabaseConnection(err)
	}

	log.Info(ctx, "SQLite counter database opened", logger.String("dsn", dsn))
	return db, nil
}

//Personal.AI order the ending
