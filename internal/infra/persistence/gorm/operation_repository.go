package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// GormOperationRepository is the GORM implementation of
// repository.OperationRepository, the durable operation log.
type GormOperationRepository struct {
	db *gorm.DB
}

func NewGormOperationRepository(db *gorm.DB) *GormOperationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormOperationRepository")
	}
	return &GormOperationRepository{db: db}
}

// SaveBatch inserts sequenced operations. Retried worker tasks may replay an
// insert, so conflicts on (document_id, seq) are ignored rather than failed.
func (r *GormOperationRepository) SaveBatch(ctx context.Context, ops []domain.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ops).Error
	if err != nil {
		return fmt.Errorf("gorm: save operation batch (size %d): %w", len(ops), err)
	}
	return nil
}

func (r *GormOperationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&domain.Operation{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete operations older than %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
