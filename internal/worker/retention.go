package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/tasks"
)

const defaultRetentionDays = 30

// RetentionHandler trims the operation log past the retention window. Runs on
// a schedule; the log is an audit trail, not the document of record, so
// trimming never touches document content.
type RetentionHandler struct {
	opRepo repository.OperationRepository
}

func NewRetentionHandler(opRepo repository.OperationRepository) *RetentionHandler {
	if opRepo == nil {
		panic("OperationRepository cannot be nil for RetentionHandler")
	}
	return &RetentionHandler{opRepo: opRepo}
}

// ProcessTask implements asynq.Handler.
func (h *RetentionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.OperationRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal retention payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	retentionDays := payload.RetentionDays
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := h.opRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to trim operation log")
		return fmt.Errorf("failed to trim operation log: %w", err)
	}

	logCtx.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format(time.RFC3339),
		"removed": removed,
	}).Info("Operation log trimmed")
	return nil
}
