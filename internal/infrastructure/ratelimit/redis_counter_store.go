// Package ratelimit provides the Redis and in-process counter stores.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

var _ repository.CounterStore = (*RedisCounterStore)(nil)

// RedisCounterStoreConfig holds counter store configuration.
type RedisCounterStoreConfig struct {
	// KeyPrefix is the Redis key prefix
	KeyPrefix string
	// Retention is how long a counter hash lives after its window started
	Retention time.Duration
}

// DefaultRedisCounterStoreConfig returns the default configuration.
func DefaultRedisCounterStoreConfig() *RedisCounterStoreConfig {
	return &RedisCounterStoreConfig{
		KeyPrefix: "quotagate:usage:",
		Retention: constants.DefaultCounterRetention,
	}
}

// RedisCounterStore keeps one hash per (key type, key value, action, window start).
type RedisCounterStore struct {
	client redis.UniversalClient
	logger logger.Logger
	config *RedisCounterStoreConfig
	script *redis.Script
}

// Lua script for the atomic upsert-increment. It returns the resulting row.
const incrementLuaScript = `
local key = KEYS[1]
local limit = ARGV[1]
local window_start = ARGV[2]
local updated_at = ARGV[3]
local expire_at = tonumber(ARGV[4])

local count = redis.call('HINCRBY', key, 'count', 1)
redis.call('HSET', key, 'limit', limit, 'window_start', window_start, 'updated_at', updated_at)
if expire_at > 0 then
    redis.call('EXPIREAT', key, expire_at)
end

return {count, tonumber(limit), tonumber(updated_at)}
`

// NewRedisCounterStore creates a Redis-backed counter store.
//
// Parameters:
//   - client: Redis client
//   - config: Store configuration, nil for defaults
//   - log: Logger instance
//
// Returns:
//   - *RedisCounterStore: Initialized store
//   - error: Initialization error if any
func NewRedisCounterStore(
	client redis.UniversalClient,
	config *RedisCounterStoreConfig,
	log logger.Logger,
) (*RedisCounterStore, error) {
	if client == nil {
		return nil, errors.ErrInvalidConfig("redis client is required")
	}
	if config == nil {
		config = DefaultRedisCounterStoreConfig()
	}
	if config.Retention <= 0 {
		config.Retention = constants.DefaultCounterRetention
	}

	return &RedisCounterStore{
		client: client,
		logger: log.WithComponent("redis_counter_store"),
		config: config,
		script: redis.NewScript(incrementLuaScript),
	}, nil
}

// Find reads the counter hash for key. A missing hash returns (nil, nil).
func (s *RedisCounterStore) Find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	counter := &models.UsageCounter{
		KeyType:     key.KeyType,
		KeyValue:    key.KeyValue,
		Action:      key.Action,
		WindowStart: key.WindowStart.UTC(),
	}
	if counter.Count, err = parseInt(fields, "count"); err != nil {
		return nil, err
	}
	if counter.Limit, err = parseInt(fields, "limit"); err != nil {
		return nil, err
	}
	if ts, err := parseInt(fields, "updated_at"); err == nil {
		counter.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return counter, nil
}

// Increment runs the upsert script and returns the resulting row. An empty
// script reply yields (nil, nil).
func (s *RedisCounterStore) Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	now := time.Now().UTC()
	expireAt := key.WindowStart.Add(s.config.Retention).Unix()
	if expireAt <= now.Unix() {
		expireAt = now.Add(s.config.Retention).Unix()
	}

	res, err := s.script.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		limit, key.WindowStart.Unix(), now.Unix(), expireAt,
	).Int64Slice()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	return &models.UsageCounter{
		KeyType:     key.KeyType,
		KeyValue:    key.KeyValue,
		Action:      key.Action,
		WindowStart: key.WindowStart.UTC(),
		Count:       res[0],
		Limit:       res[1],
		UpdatedAt:   now,
	}, nil
}

// DeleteBefore scans the store prefix and removes hashes whose window started before the cutoff.
// In cluster mode every master is scanned.
func (s *RedisCounterStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var (
		deleted atomic.Int64
		err     error
	)
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := s.pruneNode(ctx, node, before.Unix())
			deleted.Add(n)
			return err
		})
	} else {
		var n int64
		n, err = s.pruneNode(ctx, s.client, before.Unix())
		deleted.Add(n)
	}
	if err != nil {
		return deleted.Load(), err
	}

	s.logger.Info(ctx, "Pruned usage counters",
		logger.Time("before", before),
		logger.Int64("deleted", deleted.Load()),
	)
	return deleted.Load(), nil
}

func (s *RedisCounterStore) pruneNode(ctx context.Context, node redis.Cmdable, cutoff int64) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := node.Scan(ctx, cursor, s.config.KeyPrefix+"*", 500).Result()
		if err != nil {
			return deleted, err
		}
		for _, k := range keys {
			ws, err := node.HGet(ctx, k, "window_start").Int64()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return deleted, err
			}
			if ws < cutoff {
				n, err := node.Del(ctx, k).Result()
				if err != nil {
					return deleted, err
				}
				deleted += n
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping checks Redis connectivity.
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

// redisKey encodes the composite key. The key value goes last since it is the
// only component that may contain the separator.
func (s *RedisCounterStore) redisKey(key models.CounterKey) string {
	return fmt.Sprintf("%s%s:%s:%d:%s", s.config.KeyPrefix, key.KeyType, key.Action, key.WindowStart.Unix(), key.KeyValue)
}

func parseInt(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("counter hash missing field %q", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

//Personal.AI order the ending
