package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

func roundTrip(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, cfg, logger.NewNullLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))

	key := models.NewCounterKey(
		models.NewIdentityKey(constants.KeyTypeDevice, "dev-1"),
		constants.ActionAIQuery,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	)
	row, err := s.Increment(ctx, key, 20)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(1), row.Count)

	found, err := s.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(1), found.Count)
}

func TestOpen_Memory(t *testing.T) {
	roundTrip(t, &config.Config{Store: config.StoreConfig{Driver: string(constants.StoreDriverMemory)}})
}

func TestOpen_SQLite(t *testing.T) {
	roundTrip(t, &config.Config{Store: config.StoreConfig{
		Driver:     string(constants.StoreDriverSQLite),
		SQLitePath: filepath.Join(t.TempDir(), "counters.db"),
	}})
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	roundTrip(t, &config.Config{
		Store: config.StoreConfig{Driver: string(constants.StoreDriverRedis), Retention: time.Hour},
		Redis: config.RedisConfig{Mode: "standalone", Host: mr.Host(), Port: port, KeyPrefix: "test:"},
	})
	assert.NotEmpty(t, mr.Keys())
	assert.Contains(t, mr.Keys()[0], "test:")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "cassandra"}}, logger.NewNullLogger())
	assert.True(t, errors.HasCode(err, constants.ErrCodeInvalidConfig))
}

//Personal.AI order the ending
