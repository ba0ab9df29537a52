package room

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// Connection-level event names. One JSON envelope per websocket message.
const (
	EventTextChange        = "text-change"
	EventReceiveTextChange = "receive-text-change"
	EventPresenceUpdate    = "presence-update"
	EventSync              = "sync"
	EventError             = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TextChangePayload is what a client sends with a text-change event.
type TextChangePayload struct {
	Ops []domain.Component `json:"ops"`
}

// OperationPayload carries a sequenced operation to receivers.
type OperationPayload struct {
	DocumentID uint               `json:"documentId"`
	Seq        uint64             `json:"seq"`
	UserID     uint               `json:"userId"`
	Ops        []domain.Component `json:"ops"`
	Timestamp  time.Time          `json:"timestamp"`
}

// PresencePayload carries the live participant list.
type PresencePayload struct {
	Participants []domain.Participant `json:"participants"`
}

// SyncPayload seeds a joining client with the full working snapshot.
type SyncPayload struct {
	Seq     uint64 `json:"seq"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ErrorPayload reports a rejected request back to its sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("room: failed to marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("room: failed to marshal %s envelope: %w", event, err)
	}
	return msg, nil
}
