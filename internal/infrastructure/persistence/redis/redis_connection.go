// Package redis provides Redis connection management and client initialization.
// It supports standalone, cluster, and sentinel deployment modes with connection pooling.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// ConnectionMode defines Redis deployment mode
type ConnectionMode string

const (
	// ModeStandalone represents single Redis instance
	ModeStandalone ConnectionMode = "standalone"
	// ModeCluster represents Redis cluster mode
	ModeCluster ConnectionMode = "cluster"
	// ModeSentinel represents Redis sentinel mode for high availability
	ModeSentinel ConnectionMode = "sentinel"
)

// Config holds Redis connection configuration parameters.
type Config struct {
	Mode ConnectionMode

	// Standalone configuration
	Host     string
	Port     int
	Password string
	DB       int

	// Cluster configuration
	ClusterAddrs []string

	// Sentinel configuration
	SentinelAddrs  []string
	SentinelMaster string

	// Connection pool settings
	PoolSize     int
	MinIdleConns int

	// Timeout settings
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFromApp maps the redis section of the application config.
func ConfigFromApp(cfg *config.RedisConfig) *Config {
	return &Config{
		Mode:           ConnectionMode(cfg.Mode),
		Host:           cfg.Host,
		Port:           cfg.Port,
		Password:       cfg.Password,
		DB:             cfg.DB,
		ClusterAddrs:   cfg.ClusterAddrs,
		SentinelAddrs:  cfg.SentinelAddrs,
		SentinelMaster: cfg.SentinelMaster,
		PoolSize:       cfg.PoolSize,
		MinIdleConns:   cfg.MinIdleConns,
	}
}

// RedisConnection manages Redis client lifecycle and health monitoring.
type RedisConnection struct {
	config *Config
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection creates a Redis connection manager. Call Connect before use.
//
// Parameters:
//   - config: Redis configuration
//   - log: Logger instance
//
// Returns:
//   - *RedisConnection: Connection manager
func NewRedisConnection(config *Config, log logger.Logger) *RedisConnection {
	return &RedisConnection{
		config: config,
		logger: log.WithComponent("redis"),
	}
}

// NewRedisConnectionFromClient wraps an already constructed client.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	return &RedisConnection{
		config: &Config{Mode: ModeStandalone},
		client: client,
		logger: log.WithComponent("redis"),
	}
}

// Connect establishes Redis connection based on configured mode and validates connectivity.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	if rc.client != nil {
		rc.logger.Warn(ctx, "Redis connection already initialized")
		return nil
	}

	rc.setDefaults()

	var client redis.UniversalClient
	switch rc.config.Mode {
	case ModeStandalone:
		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", rc.config.Host, rc.config.Port),
			Password:     rc.config.Password,
			DB:           rc.config.DB,
			PoolSize:     rc.config.PoolSize,
			MinIdleConns: rc.config.MinIdleConns,
			DialTimeout:  rc.config.DialTimeout,
			ReadTimeout:  rc.config.ReadTimeout,
			WriteTimeout: rc.config.WriteTimeout,
		})
	case ModeCluster:
		if len(rc.config.ClusterAddrs) == 0 {
			return errors.ErrInvalidConfig("redis cluster mode requires cluster_addrs")
		}
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        rc.config.ClusterAddrs,
			Password:     rc.config.Password,
			PoolSize:     rc.config.PoolSize,
			MinIdleConns: rc.config.MinIdleConns,
			DialTimeout:  rc.config.DialTimeout,
			ReadTimeout:  rc.config.ReadTimeout,
			WriteTimeout: rc.config.WriteTimeout,
		})
	case ModeSentinel:
		if len(rc.config.SentinelAddrs) == 0 || rc.config.SentinelMaster == "" {
			return errors.ErrInvalidConfig("redis sentinel mode requires sentinel_addrs and sentinel_master")
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    rc.config.SentinelMaster,
			SentinelAddrs: rc.config.SentinelAddrs,
			Password:      rc.config.Password,
			DB:            rc.config.DB,
			PoolSize:      rc.config.PoolSize,
			MinIdleConns:  rc.config.MinIdleConns,
			DialTimeout:   rc.config.DialTimeout,
			ReadTimeout:   rc.config.ReadTimeout,
			WriteTimeout:  rc.config.WriteTimeout,
		})
	default:
		return errors.ErrInvalidConfig(fmt.Sprintf("unsupported Redis mode: %s", rc.config.Mode))
	}

	pingCtx, cancel := context.WithTimeout(ctx, rc.config.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		rc.logger.Error(ctx, "Failed to connect to Redis", err, logger.String("mode", string(rc.config.Mode)))
		return errors.ErrCacheConnection(err)
	}

	rc.client = client
	rc.logger.Info(ctx, "Redis connection established",
		logger.String("mode", string(rc.config.Mode)),
		logger.Int("pool_size", rc.config.PoolSize),
	)
	return nil
}

func (rc *RedisConnection) setDefaults() {
	if rc.config.Mode == "" {
		rc.config.Mode = ModeStandalone
	}
	if rc.config.Host == "" {
		rc.config.Host = "localhost"
	}
	if rc.config.Port == 0 {
		rc.config.Port = 6379
	}
	if rc.config.PoolSize == 0 {
		rc.config.PoolSize = 10
	}
	if rc.config.DialTimeout == 0 {
		rc.config.DialTimeout = 5 * time.Second
	}
	if rc.config.ReadTimeout == 0 {
		rc.config.ReadTimeout = 3 * time.Second
	}
	if rc.config.WriteTimeout == 0 {
		rc.config.WriteTimeout = 3 * time.Second
	}
}

// GetClient returns the Redis client instance, or nil before Connect.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks Redis server connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	if rc.client == nil {
		return errors.ErrCacheConnection(fmt.Errorf("redis connection not initialized"))
	}
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Error(ctx, "Redis ping failed", err)
		return err
	}
	return nil
}

// Close gracefully closes Redis connection and releases resources.
func (rc *RedisConnection) Close() error {
	if rc.client == nil {
		return nil
	}
	if err := rc.client.Close(); err != nil {
		rc.logger.Error(context.Background(), "Failed to close Redis connection", err)
		return err
	}
	rc.client = nil
	rc.logger.Info(context.Background(), "Redis connection closed successfully")
	return nil
}

//Personal.AI order the ending
