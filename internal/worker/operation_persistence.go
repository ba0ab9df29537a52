package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/tasks"
)

// OperationPersistenceHandler appends sequenced operations to the durable log.
type OperationPersistenceHandler struct {
	opRepo repository.OperationRepository
}

func NewOperationPersistenceHandler(opRepo repository.OperationRepository) *OperationPersistenceHandler {
	if opRepo == nil {
		panic("OperationRepository cannot be nil for OperationPersistenceHandler")
	}
	return &OperationPersistenceHandler{opRepo: opRepo}
}

// ProcessTask implements asynq.Handler.
func (h *OperationPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.OperationPersistencePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	// The log table has a unique (document_id, seq) index and the repository
	// ignores conflicts, so redelivery after a retry stays harmless.
	opsToSave := []domain.Operation{payload.Operation}
	if err := h.opRepo.SaveBatch(ctx, opsToSave); err != nil {
		logCtx.WithError(err).Errorf("Failed to save operation seq %d for document %d",
			payload.Operation.Seq, payload.Operation.DocumentID)
		return fmt.Errorf("failed to save operation seq %d: %w", payload.Operation.Seq, err)
	}

	logCtx.WithFields(logrus.Fields{
		"document_id": payload.Operation.DocumentID,
		"seq":         payload.Operation.Seq,
	}).Debug("Operation persistence task processed")
	return nil
}
