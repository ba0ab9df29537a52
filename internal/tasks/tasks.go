package tasks

import (
	"encoding/json"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// Task type constants.
const (
	// TypeOperationPersistence appends a sequenced operation to the durable
	// operation log, off the relay hot path.
	TypeOperationPersistence = "operation:persist"
	// TypeOperationRetention trims operation log rows older than the
	// retention window. Enqueued on a schedule.
	TypeOperationRetention = "operation:trim"
)

// OperationPersistencePayload carries one sequenced operation to the worker.
type OperationPersistencePayload struct {
	Operation domain.Operation
}

// NewOperationPersistenceTask serializes the payload for an
// operation-persistence task.
func NewOperationPersistenceTask(op domain.Operation) ([]byte, error) {
	payload := OperationPersistencePayload{Operation: op}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}

// OperationRetentionPayload tells the worker how much history to keep.
type OperationRetentionPayload struct {
	RetentionDays int
}

// NewOperationRetentionTask serializes the payload for a retention-trim task.
func NewOperationRetentionTask(retentionDays int) ([]byte, error) {
	payload := OperationRetentionPayload{RetentionDays: retentionDays}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}
