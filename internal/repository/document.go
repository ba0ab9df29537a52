package repository

import (
	"context"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// DocumentRepository is the durable document store. It seeds a room's working
// snapshot at creation and receives the reconciler's dirty flushes.
type DocumentRepository interface {
	// FindByID returns the document or ErrDocumentNotFound.
	FindByID(ctx context.Context, id uint) (*domain.Document, error)

	// ListForUser returns every document the user owns plus every document
	// shared with them, most recently updated first.
	ListForUser(ctx context.Context, userID uint) ([]domain.Document, error)

	// Save creates the document when its ID is zero, updates it otherwise.
	Save(ctx context.Context, doc *domain.Document) error

	// SaveContent writes only title and content for an existing document.
	// This is the reconciler's flush path.
	SaveContent(ctx context.Context, id uint, title, content string) error

	// Delete removes the document and its share grants.
	Delete(ctx context.Context, id uint) error
}
