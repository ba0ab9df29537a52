package repository

import (
	"context"
	"time"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// StateRepository holds fast ephemeral per-document state, implemented on
// Redis. Nothing here is a source of truth: the room's in-memory snapshot and
// the MySQL document row are.
type StateRepository interface {
	// PushOperationToHistory appends an operation to the document's recent
	// history list, keeping the list bounded.
	PushOperationToHistory(ctx context.Context, documentID uint, op domain.Operation) error

	// GetRecentOperations returns up to limit most recent operations for a
	// document, oldest first.
	GetRecentOperations(ctx context.Context, documentID uint, limit int) ([]domain.Operation, error)

	// CleanupDocumentState removes every key for a document. Called when a
	// room is destroyed.
	CleanupDocumentState(ctx context.Context, documentID uint) error

	// CheckRateLimit increments the counter behind key and reports whether
	// the caller is still within limit for the window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
