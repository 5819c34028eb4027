// Package postgres provides the GORM implementation of the counter store, usable
// against PostgreSQL and SQLite.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/pkg/constants"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageCounterDBM is the database model for the usage_counters table.
type usageCounterDBM struct {
	KeyType     string    `gorm:"primaryKey;column:key_type;type:varchar(16)"`
	KeyValue    string    `gorm:"primaryKey;column:key_value;type:varchar(255)"`
	ActionType  string    `gorm:"primaryKey;column:action_type;type:varchar(64)"`
	WindowStart time.Time `gorm:"primaryKey;column:window_start;index:idx_usage_counters_window_start"`
	Count       int64     `gorm:"column:count;not null"`
	QuotaLimit  int64     `gorm:"column:quota_limit;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (usageCounterDBM) TableName() string {
	return "usage_counters"
}

// toDomain converts the database model to a domain model.
func (dbm *usageCounterDBM) toDomain() *models.UsageCounter {
	return &models.UsageCounter{
		KeyType:     constants.KeyType(dbm.KeyType),
		KeyValue:    dbm.KeyValue,
		Action:      constants.ActionCategory(dbm.ActionType),
		WindowStart: dbm.WindowStart.UTC(),
		Count:       dbm.Count,
		Limit:       dbm.QuotaLimit,
		UpdatedAt:   dbm.UpdatedAt,
	}
}

var conflictColumns = []clause.Column{
	{Name: "key_type"},
	{Name: "key_value"},
	{Name: "action_type"},
	{Name: "window_start"},
}

var _ repository.CounterStore = (*GormCounterRepository)(nil)

// GormCounterRepository is a GORM implementation of the counter store.
type GormCounterRepository struct {
	db *gorm.DB
}

// NewGormCounterRepository creates a new GormCounterRepository.
func NewGormCounterRepository(db *gorm.DB) *GormCounterRepository {
	return &GormCounterRepository{db: db}
}

// AutoMigrate creates or updates the usage_counters table.
func (r *GormCounterRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&usageCounterDBM{})
}

// Find retrieves the counter row for key.
func (r *GormCounterRepository) Find(ctx context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	var dbm usageCounterDBM
	err := r.db.WithContext(ctx).
		Where("key_type = ? AND key_value = ? AND action_type = ? AND window_start = ?",
			string(key.KeyType), key.KeyValue, string(key.Action), key.WindowStart.UTC()).
		Take(&dbm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Not found means the window is unused
		}
		return nil, err
	}
	return dbm.toDomain(), nil
}

// Increment performs INSERT ... ON CONFLICT DO UPDATE SET count = count + 1 RETURNING *.
// When the statement succeeds but no row comes back, it returns (nil, nil).
func (r *GormCounterRepository) Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	now := time.Now().UTC()
	dbm := &usageCounterDBM{
		KeyType:     string(key.KeyType),
		KeyValue:    key.KeyValue,
		ActionType:  string(key.Action),
		WindowStart: key.WindowStart.UTC(),
		Count:       1,
		QuotaLimit:  limit,
		UpdatedAt:   now,
	}

	result := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: conflictColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":       gorm.Expr("usage_counters.count + 1"),
				"quota_limit": limit,
				"updated_at":  now,
			}),
		},
		clause.Returning{},
	).Create(dbm)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return dbm.toDomain(), nil
}

// DeleteBefore removes rows whose window started before the cutoff.
func (r *GormCounterRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("window_start < ?", before.UTC()).Delete(&usageCounterDBM{})
	return result.RowsAffected, result.Error
}

// Ping checks connectivity of the underlying database.
func (r *GormCounterRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database handle.
func (r *GormCounterRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

//Personal.AI order the ending
