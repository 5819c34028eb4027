package repository

import (
	"context"
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
)

//go:generate mockery --name CounterRepository --output ./mocks --filename counter_repository.go
type CounterRepository interface {
	// Find retrieves the counter row for the given composite key.
	// If the row does not exist, it should return (nil, nil) so the caller
	// can treat the window as unused.
	Find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error)

	// Increment atomically inserts the row with count 1 or adds one to an existing
	// row, records limit, and returns the resulting row. A store that accepts the
	// statement but yields no row returns (nil, nil).
	Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error)
}

//go:generate mockery --name CounterPruner --output ./mocks --filename counter_pruner.go
type CounterPruner interface {
	// DeleteBefore removes rows whose window started before the cutoff and
	// returns how many were removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// HealthChecker is implemented by stores that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CounterStore is the full contract of a counter store driver.
type CounterStore interface {
	CounterRepository
	CounterPruner
	HealthChecker
	Close() error
}

//Personal.AI order the ending
