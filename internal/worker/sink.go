package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/tasks"
)

// OperationSink fans a sequenced operation out to the fast path and the slow
// path: the Redis history cache serves reconnect replay for future rooms, the
// asynq queue carries the durable operation log write. Either half failing is
// reported but neither blocks nor reorders the relay.
type OperationSink struct {
	client *asynq.Client
	state  repository.StateRepository
}

func NewOperationSink(client *asynq.Client, state repository.StateRepository) *OperationSink {
	if client == nil {
		panic("asynq client cannot be nil for OperationSink")
	}
	if state == nil {
		panic("StateRepository cannot be nil for OperationSink")
	}
	return &OperationSink{client: client, state: state}
}

// Record implements the room package's operation sink.
func (s *OperationSink) Record(ctx context.Context, op domain.Operation) error {
	var firstErr error

	if err := s.state.PushOperationToHistory(ctx, op.DocumentID, op); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"document_id": op.DocumentID,
			"seq":         op.Seq,
		}).Warn("Failed to push operation to history cache")
		firstErr = fmt.Errorf("push to history cache: %w", err)
	}

	payload, err := tasks.NewOperationPersistenceTask(op)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("build persistence task: %w", err)
		}
		return firstErr
	}
	task := asynq.NewTask(tasks.TypeOperationPersistence, payload)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"document_id": op.DocumentID,
			"seq":         op.Seq,
		}).Warn("Failed to enqueue operation persistence task")
		if firstErr == nil {
			firstErr = fmt.Errorf("enqueue persistence task: %w", err)
		}
	}
	return firstErr
}
