// Package postgres provides PostgreSQL connection management and the pgx-backed counter store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// DBConnection manages PostgreSQL database connection pool lifecycle.
type DBConnection struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection creates a new PostgreSQL connection manager instance.
// It initializes connection pool with configuration parameters and performs initial health check.
//
// Parameters:
//   - ctx: Context for connection timeout control
//   - cfg: Database configuration including host, port, credentials, and pool settings
//   - log: Logger instance for connection lifecycle events
//
// Returns:
//   - *DBConnection: Initialized connection manager
//   - error: Connection establishment error if any
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidConfig("database config is required")
	}
	log = log.WithComponent("postgres")

	log.Info(ctx, "Initializing PostgreSQL connection pool",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
		logger.Int("min_conns", cfg.MinConns),
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		log.Error(ctx, "Failed to parse database connection string", err)
		return nil, errors.ErrDatabaseConnection(err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Second
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod) * time.Second
	}

	connTimeout := time.Duration(cfg.ConnTimeout) * time.Second
	if connTimeout <= 0 {
		connTimeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		log.Error(ctx, "Failed to create database connection pool", err)
		return nil, errors.ErrDatabaseConnection(err)
	}

	return newDBConnectionFromPool(ctx, pool, cfg, log)
}

// NewDBConnectionFromURL opens a pool from a connection URL. Used by tooling and tests.
func NewDBConnectionFromURL(ctx context.Context, url string, log logger.Logger) (*DBConnection, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}
	return newDBConnectionFromPool(ctx, pool, &config.DatabaseConfig{}, log.WithComponent("postgres"))
}

func newDBConnectionFromPool(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	dbConn := &DBConnection{
		pool:   pool,
		config: cfg,
		logger: log,
	}

	// Perform initial health check
	if err := dbConn.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info(ctx, "PostgreSQL connection pool initialized successfully",
		logger.Int("total_conns", int(pool.Stat().TotalConns())),
		logger.Int("idle_conns", int(pool.Stat().IdleConns())),
	)

	return dbConn, nil
}

// Pool returns the underlying pgxpool.Pool for executing database operations.
func (db *DBConnection) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies database connectivity and responsiveness.
func (db *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	if err := db.pool.Ping(pingCtx); err != nil {
		db.logger.Error(ctx, "Database ping failed", err)
		return errors.ErrDatabaseConnection(err)
	}

	// Warn if latency is high (> 100ms)
	if latency := time.Since(startTime); latency > 100*time.Millisecond {
		db.logger.Warn(ctx, "High database latency detected",
			logger.Int64("latency_ms", latency.Milliseconds()),
			logger.Int("threshold_ms", 100),
		)
	}

	return nil
}

// HealthCheck returns connection pool statistics after a successful ping.
func (db *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	stats := db.pool.Stat()
	healthInfo := map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stats.TotalConns(),
		"idle_connections":     stats.IdleConns(),
		"acquired_connections": stats.AcquiredConns(),
		"max_connections":      stats.MaxConns(),
		"acquire_count":        stats.AcquireCount(),
		"acquire_duration_ms":  stats.AcquireDuration().Milliseconds(),
	}

	if stats.IdleConns() == 0 && stats.TotalConns() >= stats.MaxConns() {
		db.logger.Warn(ctx, "Connection pool exhausted",
			logger.Int("total_conns", int(stats.TotalConns())),
			logger.Int("max_conns", int(stats.MaxConns())),
		)
		healthInfo["warning"] = "connection_pool_near_limit"
	}

	return healthInfo, nil
}

// Close gracefully shuts down the connection pool.
func (db *DBConnection) Close() {
	db.logger.Info(context.Background(), "Closing PostgreSQL connection pool",
		logger.String("stats", fmt.Sprintf("total=%d acquired=%d", db.pool.Stat().TotalConns(), db.pool.Stat().AcquiredConns())),
	)
	db.pool.Close()
}

//Personal.AI order the ending
