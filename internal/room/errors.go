package room

import "errors"

var (
	// ErrRoomClosed means the room was destroyed between lookup and use.
	// Callers should re-resolve through the registry.
	ErrRoomClosed = errors.New("room: closed")
	// ErrViewerCannotEdit rejects edit operations from viewer sessions.
	// The operation is never sequenced.
	ErrViewerCannotEdit = errors.New("room: viewer sessions cannot submit edits")
	// ErrInvalidDelta rejects structurally broken or empty deltas.
	ErrInvalidDelta = errors.New("room: invalid delta")
)
