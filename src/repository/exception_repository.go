package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikiguard/src/model"
)

// ExceptionRepository handles persistence of structured error records.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception record.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	logger.WithFields(map[string]interface{}{
		"log_id":  exc.LogID,
		"channel": exc.Channel,
		"type":    exc.Type,
	}).Debug("Persisting exception record")

	return r.db.WithContext(ctx).Create(exc).Error
}

// FindByLogID returns every record sharing logID, oldest first. There is
// usually one; an error logged more than once, for example by a caller and
// again by the top-level handler, stores one record per pass.
func (r *ExceptionRepository) FindByLogID(ctx context.Context, logID string) ([]model.Exception, error) {
	var records []model.Exception
	err := r.db.WithContext(ctx).
		Where("log_id = ?", logID).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindLatest returns the newest records, optionally limited to one channel.
func (r *ExceptionRepository) FindLatest(ctx context.Context, channel string, limit int) ([]model.Exception, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx)
	if channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var records []model.Exception
	if err := query.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
