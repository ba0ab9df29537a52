package repository

import (
	"context"
	"time"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// OperationRepository is the durable operation log, written by the background
// worker rather than on the relay's hot path.
type OperationRepository interface {
	// SaveBatch appends sequenced operations to the log.
	SaveBatch(ctx context.Context, ops []domain.Operation) error

	// DeleteOlderThan trims log rows past the retention window and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
