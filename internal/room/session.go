package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. A connection
	// silent beyond this is treated as a leave.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Session is one connected client's state within a room: principal identity,
// role, last-acknowledged sequence number and a bounded outbound queue. A
// session whose queue overflows is disconnected rather than allowed to
// backpressure the room.
type Session struct {
	room *Room
	conn *websocket.Conn

	userID uint
	name   string
	role   domain.Role

	// lastAck is guarded by the room's mutex.
	lastAck uint64

	send      chan []byte
	closeOnce sync.Once
}

func newSession(r *Room, conn *websocket.Conn, userID uint, name string, role domain.Role, lastAck uint64) *Session {
	return &Session{
		room:    r,
		conn:    conn,
		userID:  userID,
		name:    name,
		role:    role,
		lastAck: lastAck,
		send:    make(chan []byte, r.sendBuffer),
	}
}

func (s *Session) UserID() uint      { return s.userID }
func (s *Session) Name() string      { return s.name }
func (s *Session) Role() domain.Role { return s.role }

// Out exposes the outbound queue. The websocket write pump drains it; tests
// drain it directly.
func (s *Session) Out() <-chan []byte { return s.send }

// closeSend is idempotent; closing the queue makes the write pump exit.
func (s *Session) closeSend() {
	s.closeOnce.Do(func() { close(s.send) })
}

// enqueue is non-blocking. It reports false on overflow so the caller can
// apply the disconnect-on-overflow policy.
func (s *Session) enqueue(msg []byte) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Run starts the read and write pumps. Only meaningful for sessions backed by
// a real websocket connection.
func (s *Session) Run() {
	go s.writePump()
	go s.readPump()
}

// readPump relays inbound envelopes into the room until the connection dies,
// then triggers leave handling. Runs in its own goroutine.
func (s *Session) readPump() {
	logCtx := logrus.WithFields(logrus.Fields{
		"document_id": s.room.DocumentID(),
		"user_id":     s.userID,
	})
	defer func() {
		s.room.Leave(s)
		s.conn.Close()
		logCtx.Debug("Session read pump exited")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleMessage(message, logCtx)
	}
}

func (s *Session) handleMessage(message []byte, logCtx *logrus.Entry) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		logCtx.WithError(err).Warn("Dropping malformed client message")
		s.sendError("bad_request", "malformed message")
		return
	}
	switch env.Event {
	case EventTextChange:
		var payload TextChangePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			logCtx.WithError(err).Warn("Dropping malformed text-change payload")
			s.sendError("bad_request", "malformed text-change payload")
			return
		}
		if _, err := s.room.Submit(s, domain.Delta{Ops: payload.Ops}); err != nil {
			switch {
			case err == ErrViewerCannotEdit:
				s.sendError("permission_denied", "viewer sessions cannot edit")
			case err == ErrRoomClosed:
				s.sendError("room_closed", "document room is closing")
			default:
				logCtx.WithError(err).Warn("Rejected text-change")
				s.sendError("invalid_operation", err.Error())
			}
		}
	default:
		logCtx.Warnf("Received unknown event type: %s", env.Event)
	}
}

// sendError delivers an error envelope to this session only. Best effort.
func (s *Session) sendError(code, message string) {
	msg, err := marshalEnvelope(EventError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	s.enqueue(msg)
}

// writePump drains the outbound queue onto the connection and keeps the peer
// alive with pings. Runs in its own goroutine.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Queue closed by the room during leave or overflow.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"document_id": s.room.DocumentID(),
					"user_id":     s.userID,
				}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
