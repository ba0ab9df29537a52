package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository/mocks"
	"github.com/rakib-sikder/shared-doc-editor/internal/tasks"
	"github.com/rakib-sikder/shared-doc-editor/internal/worker"
)

func TestOperationPersistenceHandlerSavesBatch(t *testing.T) {
	opRepo := new(mocks.OperationRepository)
	handler := worker.NewOperationPersistenceHandler(opRepo)

	op := domain.Operation{DocumentID: 1, Seq: 5, UserID: 2, Timestamp: time.Now().UTC()}
	require.NoError(t, op.SetDelta(domain.Delta{Ops: []domain.Component{{Insert: "x"}}}))

	payload, err := tasks.NewOperationPersistenceTask(op)
	require.NoError(t, err)

	opRepo.On("SaveBatch", mock.Anything, mock.MatchedBy(func(ops []domain.Operation) bool {
		return len(ops) == 1 && ops[0].DocumentID == 1 && ops[0].Seq == 5
	})).Return(nil)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeOperationPersistence, payload))
	require.NoError(t, err)
	opRepo.AssertExpectations(t)
}

func TestOperationPersistenceHandlerSkipsRetryOnBadPayload(t *testing.T) {
	opRepo := new(mocks.OperationRepository)
	handler := worker.NewOperationPersistenceHandler(opRepo)

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeOperationPersistence, []byte("{broken")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	opRepo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
}

func TestRetentionHandlerTrimsPastCutoff(t *testing.T) {
	opRepo := new(mocks.OperationRepository)
	handler := worker.NewRetentionHandler(opRepo)

	payload, err := tasks.NewOperationRetentionTask(7)
	require.NoError(t, err)

	opRepo.On("DeleteOlderThan", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		expected := time.Now().AddDate(0, 0, -7)
		return cutoff.Sub(expected) < time.Minute && expected.Sub(cutoff) < time.Minute
	})).Return(int64(12), nil)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeOperationRetention, payload))
	require.NoError(t, err)
	opRepo.AssertExpectations(t)
}
