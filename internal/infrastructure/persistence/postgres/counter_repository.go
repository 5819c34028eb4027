package postgres

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

// Schema creates the usage counter table. The composite primary key is the
// conflict target of the increment upsert.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_counters (
	key_type     TEXT        NOT NULL,
	key_value    TEXT        NOT NULL,
	action_type  TEXT        NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	count        BIGINT      NOT NULL DEFAULT 0 CHECK (count >= 0),
	quota_limit  BIGINT      NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (key_type, key_value, action_type, window_start)
);
CREATE INDEX IF NOT EXISTS idx_usage_counters_window_start ON usage_counters (window_start);
`

const (
	findCounterQuery = `
		SELECT key_type, key_value, action_type, window_start, count, quota_limit, updated_at
		FROM usage_counters
		WHERE key_type = $1 AND key_value = $2 AND action_type = $3 AND window_start = $4
	`

	incrementCounterQuery = `
		INSERT INTO usage_counters (key_type, key_value, action_type, window_start, count, quota_limit, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, NOW())
		ON CONFLICT (key_type, key_value, action_type, window_start) DO UPDATE SET
			count = usage_counters.count + 1,
			quota_limit = EXCLUDED.quota_limit,
			updated_at = NOW()
		RETURNING key_type, key_value, action_type, window_start, count, quota_limit, updated_at
	`

	deleteCountersBeforeQuery = `DELETE FROM usage_counters WHERE window_start < $1`

	slowQueryThreshold = 100 * time.Millisecond
)

var _ repository.CounterStore = (*CounterRepository)(nil)

// CounterRepository implements the counter store on PostgreSQL through pgx.
type CounterRepository struct {
	db     *DBConnection
	logger logger.Logger
}

// NewCounterRepository creates a new PostgreSQL counter repository.
//
// Parameters:
//   - db: Database connection manager
//   - log: Logger instance for repository operations
//
// Returns:
//   - *CounterRepository: Initialized repository implementation
func NewCounterRepository(db *DBConnection, log logger.Logger) *CounterRepository {
	return &CounterRepository{
		db:     db,
		logger: log.WithComponent("pg_counter_repository"),
	}
}

// EnsureSchema creates the usage counter table if it does not exist.
func (r *CounterRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool().Exec(ctx, Schema)
	return err
}

// Find retrieves the counter row for key. It returns (nil, nil) when no row exists.
func (r *CounterRepository) Find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	defer r.warnIfSlow(ctx, "find", time.Now())

	row := r.db.Pool().QueryRow(ctx, findCounterQuery,
		string(key.KeyType), key.KeyValue, string(key.Action), key.WindowStart.UTC())

	counter, err := scanCounter(row)
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return counter, nil
}

// Increment upserts the counter row and returns the resulting row.
// The statement either inserts count=1 or adds one under the row lock taken by
// ON CONFLICT, so concurrent increments never lose updates. A statement that
// completes without returning a row yields (nil, nil).
func (r *CounterRepository) Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	defer r.warnIfSlow(ctx, "increment", time.Now())

	row := r.db.Pool().QueryRow(ctx, incrementCounterQuery,
		string(key.KeyType), key.KeyValue, string(key.Action), key.WindowStart.UTC(), limit)

	counter, err := scanCounter(row)
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return counter, nil
}

// DeleteBefore removes counter rows whose window started before the cutoff.
func (r *CounterRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx, deleteCountersBeforeQuery, before.UTC())
	if err != nil {
		return 0, err
	}
	r.logger.Info(ctx, "Pruned usage counters",
		logger.Time("before", before),
		logger.Int64("deleted", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (r *CounterRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the underlying pool.
func (r *CounterRepository) Close() error {
	r.db.Close()
	return nil
}

func (r *CounterRepository) warnIfSlow(ctx context.Context, op string, start time.Time) {
	if latency := time.Since(start); latency > slowQueryThreshold {
		r.logger.Warn(ctx, "Slow counter query detected",
			logger.String("operation", op),
			logger.Int64("latency_ms", latency.Milliseconds()),
		)
	}
}

func scanCounter(row pgx.Row) (*models.UsageCounter, error) {
	var (
		keyType string
		action  string
		c       models.UsageCounter
	)
	if err := row.Scan(&keyType, &c.KeyValue, &action, &c.WindowStart, &c.Count, &c.Limit, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.KeyType = constants.KeyType(keyType)
	c.Action = constants.ActionCategory(action)
	c.WindowStart = c.WindowStart.UTC()
	return &c, nil
}

//Personal.AI order the ending
