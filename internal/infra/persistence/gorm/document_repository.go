package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
)

// GormDocumentRepository is the GORM implementation of
// repository.DocumentRepository, the durable store rooms load from and the
// reconciler flushes into.
type GormDocumentRepository struct {
	db *gorm.DB
}

func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	if db == nil {
		panic("database connection cannot be nil for GormDocumentRepository")
	}
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) FindByID(ctx context.Context, id uint) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("gorm: find document by id %d: %w", id, err)
	}
	return &doc, nil
}

func (r *GormDocumentRepository) ListForUser(ctx context.Context, userID uint) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Or("id IN (?)", r.db.Model(&domain.ShareGrant{}).Select("document_id").Where("grantee_id = ?", userID)).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list documents for user %d: %w", userID, err)
	}
	return docs, nil
}

func (r *GormDocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	if err := r.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("gorm: save document (id: %d): %w", doc.ID, err)
	}
	return nil
}

// SaveContent updates only title and content. A zero-row update means the
// document vanished underneath a live room, which callers treat as not found.
func (r *GormDocumentRepository) SaveContent(ctx context.Context, id uint, title, content string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "content": content})
	if result.Error != nil {
		return fmt.Errorf("gorm: save content for document %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrDocumentNotFound
	}
	return nil
}

func (r *GormDocumentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Document{}, id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete document %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrDocumentNotFound
	}
	return nil
}
