package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
)

// GormShareRepository is the GORM implementation of repository.ShareRepository.
type GormShareRepository struct {
	db *gorm.DB
}

func NewGormShareRepository(db *gorm.DB) *GormShareRepository {
	if db == nil {
		panic("database connection cannot be nil for GormShareRepository")
	}
	return &GormShareRepository{db: db}
}

func (r *GormShareRepository) FindGrant(ctx context.Context, documentID, granteeID uint) (*domain.ShareGrant, error) {
	var grant domain.ShareGrant
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND grantee_id = ?", documentID, granteeID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGrantNotFound
		}
		return nil, fmt.Errorf("gorm: find grant (document: %d, grantee: %d): %w", documentID, granteeID, err)
	}
	return &grant, nil
}

// Upsert relies on the (document_id, grantee_id) unique index: re-sharing to
// the same grantee updates the role in place.
func (r *GormShareRepository) Upsert(ctx context.Context, grant *domain.ShareGrant) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "grantee_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
		}).
		Create(grant).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert grant (document: %d, grantee: %d): %w", grant.DocumentID, grant.GranteeID, err)
	}
	return nil
}

func (r *GormShareRepository) ListForDocument(ctx context.Context, documentID uint) ([]domain.ShareGrant, error) {
	var grants []domain.ShareGrant
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list grants for document %d: %w", documentID, err)
	}
	return grants, nil
}

func (r *GormShareRepository) DeleteForDocument(ctx context.Context, documentID uint) error {
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&domain.ShareGrant{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete grants for document %d: %w", documentID, err)
	}
	return nil
}
