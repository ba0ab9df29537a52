package repository

import (
	"context"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// ShareRepository is the permission registry: who may open which document and
// at what role. Ownership is recorded on the document itself; grants cover
// everyone else.
type ShareRepository interface {
	// FindGrant returns the grant for (documentID, granteeID) or ErrGrantNotFound.
	FindGrant(ctx context.Context, documentID, granteeID uint) (*domain.ShareGrant, error)

	// Upsert creates the grant, or updates the role of an existing grant for
	// the same (document, grantee) pair.
	Upsert(ctx context.Context, grant *domain.ShareGrant) error

	// ListForDocument returns all grants on a document.
	ListForDocument(ctx context.Context, documentID uint) ([]domain.ShareGrant, error)

	// DeleteForDocument removes every grant on a document.
	DeleteForDocument(ctx context.Context, documentID uint) error
}
