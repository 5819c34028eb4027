package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/internal/infrastructure/ratelimit"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

func newRedisStore(t *testing.T) (*ratelimit.RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store, err := ratelimit.NewRedisCounterStore(client, nil, logger.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func testKey() models.CounterKey {
	return models.CounterKey{
		KeyType:     constants.KeyTypeDevice,
		KeyValue:    "dev:with:colons",
		Action:      constants.ActionImageUpload,
		WindowStart: time.Unix(1_699_920_000, 0).UTC(),
	}
}

// exerciseStore runs the contract every counter store driver must satisfy.
func exerciseStore(t *testing.T, store repository.CounterStore) {
	ctx := context.Background()
	key := testKey()

	row, err := store.Find(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, row, "missing row reads as nil")

	row, err = store.Increment(ctx, key, 30)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.Count)
	assert.Equal(t, int64(30), row.Limit)

	row, err = store.Increment(ctx, key, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.Count)

	found, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(2), found.Count)
	assert.Equal(t, int64(30), found.Limit)
	assert.True(t, found.WindowStart.Equal(key.WindowStart))

	other := key
	other.KeyType = constants.KeyTypeNetwork
	row, err = store.Increment(ctx, other, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Count, "key types are independent")

	var wg sync.WaitGroup
	concurrent := key
	concurrent.KeyValue = "concurrent"
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, concurrent, 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	found, err = store.Find(ctx, concurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(50), found.Count)

	old := key
	old.KeyValue = "old"
	old.WindowStart = key.WindowStart.Add(-72 * time.Hour)
	_, err = store.Increment(ctx, old, 30)
	require.NoError(t, err)

	deleted, err := store.DeleteBefore(ctx, key.WindowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	gone, err := store.Find(ctx, old)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.NoError(t, store.Ping(ctx))
}

func TestRedisCounterStore_Contract(t *testing.T) {
	store, _ := newRedisStore(t)
	exerciseStore(t, store)
}

func TestMemoryCounterStore_Contract(t *testing.T) {
	exerciseStore(t, ratelimit.NewMemoryCounterStore())
}

func TestRedisCounterStore_SetsExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	key := testKey()
	key.WindowStart = time.Now().UTC().Truncate(time.Hour)

	_, err := store.Increment(context.Background(), key, 5)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestRedisCounterStore_CounterOutlivesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store, err := ratelimit.NewRedisCounterStore(client, &ratelimit.RedisCounterStoreConfig{
		KeyPrefix: "quotagate:usage:",
		Retention: 24 * time.Hour,
	}, logger.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	key := testKey()
	key.WindowStart = time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < 2; i++ {
		_, err := store.Increment(ctx, key, 2)
		require.NoError(t, err)
	}

	mr.FastForward(time.Until(key.WindowStart.Add(24*time.Hour)) - time.Second)
	row, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, row, "an exhausted counter must survive until its window ends")
	assert.Equal(t, int64(2), row.Count)
}

func TestRedisCounterStore_PrunesAcrossCluster(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClusterClient(&goredis.ClusterOptions{Addrs: []string{mr.Addr()}})
	store, err := ratelimit.NewRedisCounterStore(client, nil, logger.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	old := testKey()
	current := testKey()
	current.KeyValue = "current"
	current.WindowStart = old.WindowStart.Add(48 * time.Hour)
	for _, k := range []models.CounterKey{old, current} {
		_, err := store.Increment(ctx, k, 5)
		require.NoError(t, err)
	}

	deleted, err := store.DeleteBefore(ctx, current.WindowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	row, err := store.Find(ctx, current)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestRedisCounterStore_ReadErrorWhenServerDown(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Find(context.Background(), testKey())
	assert.Error(t, err)
	_, err = store.Increment(context.Background(), testKey(), 5)
	assert.Error(t, err)
}

func TestRedisCounterStore_RequiresClient(t *testing.T) {
	_, err := ratelimit.NewRedisCounterStore(nil, nil, logger.NewNullLogger())
	assert.Error(t, err)
}

func TestMemoryCounterStore_CancelledIncrement(t *testing.T) {
	store := ratelimit.NewMemoryCounterStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Increment(ctx, testKey(), 5)
	assert.ErrorIs(t, err, context.Canceled)
	row, _ := store.Find(context.Background(), testKey())
	assert.Nil(t, row)
}
