package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/quotagate/internal/domain/models"
)

// MockCounterRepository is a mock implementation of repository.CounterRepository
type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) Find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageCounter), args.Error(1)
}

func (m *MockCounterRepository) Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	args := m.Called(ctx, key, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageCounter), args.Error(1)
}

// MockCounterStore is a mock implementation of repository.CounterStore
type MockCounterStore struct {
	MockCounterRepository
}

func (m *MockCounterStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCounterStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
