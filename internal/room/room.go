package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// Store is the durable document store: the registry seeds new rooms from it
// and the reconciler flushes dirty snapshots into it. Satisfied by the GORM
// document repository.
type Store interface {
	FindByID(ctx context.Context, id uint) (*domain.Document, error)
	SaveContent(ctx context.Context, id uint, title, content string) error
}

// OpSink receives every sequenced operation after broadcast, off the room's
// serialization point. Implementations feed the Redis history cache and the
// asynchronous operation log; failures are logged, never fatal.
type OpSink interface {
	Record(ctx context.Context, op domain.Operation) error
}

// StateCleaner drops a document's ephemeral state when its room is destroyed.
type StateCleaner interface {
	CleanupDocumentState(ctx context.Context, documentID uint) error
}

type historyEntry struct {
	op      domain.Operation
	payload []byte
}

// Room is the live coordination unit for one document's concurrent editors.
// All state mutation happens under mu, the room's serialization point:
// sequence assignment, content application and broadcast enqueueing are
// strictly ordered, and different rooms share nothing.
type Room struct {
	documentID uint
	store      Store
	sink       OpSink
	cleaner    StateCleaner
	log        *logrus.Entry

	sendBuffer    int
	historyLimit  int
	flushInterval time.Duration
	flushTimeout  time.Duration

	mu        sync.Mutex
	title     string
	content   string
	seq       uint64
	dirty     bool
	lastFlush time.Time
	sessions  map[*Session]struct{}
	history   []historyEntry
	closed    bool

	stopFlush chan struct{}
	flushDone chan struct{}

	onEmpty func(*Room)
}

func (r *Room) DocumentID() uint { return r.documentID }

// Snapshot returns the working copy and the last assigned sequence number.
func (r *Room) Snapshot() (title, content string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title, r.content, r.seq
}

// Dirty reports whether the working copy has unflushed changes.
func (r *Room) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Participants returns the live participant list.
func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked()
}

func (r *Room) participantsLocked() []domain.Participant {
	participants := make([]domain.Participant, 0, len(r.sessions))
	for s := range r.sessions {
		participants = append(participants, domain.Participant{
			UserID: s.userID,
			Name:   s.name,
			Role:   s.role,
		})
	}
	return participants
}

// Join attaches a new session. A reconnecting client may pass the last
// sequence number it acknowledged; when the in-memory history still covers
// the gap the room replays only the missed operations, otherwise it sends a
// full sync. Every session (including the joiner) receives the updated
// presence list.
func (r *Room) Join(conn *websocket.Conn, userID uint, name string, role domain.Role, lastAck uint64) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomClosed
	}
	s := newSession(r, conn, userID, name, role, lastAck)
	r.sessions[s] = struct{}{}

	if r.canReplayLocked(lastAck) {
		for _, e := range r.history {
			if e.op.Seq > lastAck {
				s.enqueue(e.payload)
			}
		}
	} else {
		msg, err := marshalEnvelope(EventSync, SyncPayload{Seq: r.seq, Title: r.title, Content: r.content})
		if err != nil {
			r.log.WithError(err).Error("Failed to build sync message")
		} else {
			s.enqueue(msg)
		}
	}
	s.lastAck = r.seq

	r.presenceAndReapLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("Session joined room")
	return s, nil
}

// canReplayLocked reports whether the history buffer contiguously covers
// (lastAck, seq]. A lastAck ahead of the room's counter means the client
// talked to a previous incarnation of the room and needs a full sync.
func (r *Room) canReplayLocked(lastAck uint64) bool {
	if lastAck == 0 || lastAck > r.seq {
		return false
	}
	if lastAck == r.seq {
		return true
	}
	if len(r.history) == 0 {
		return false
	}
	return r.history[0].op.Seq <= lastAck+1
}

// Leave detaches a session and broadcasts updated presence. When the last
// session is gone the room performs a final flush attempt and removes itself
// from the registry.
func (r *Room) Leave(s *Session) {
	r.mu.Lock()
	if _, ok := r.sessions[s]; ok {
		delete(r.sessions, s)
		s.closeSend()
		r.log.WithField("user_id", s.userID).Info("Session left room")
		r.presenceAndReapLocked()
	}
	empty := len(r.sessions) == 0 && !r.closed
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if empty {
		r.destroy()
	}
}

// Submit is the delta relay: it assigns the next sequence number, applies the
// delta to the working snapshot, marks the room dirty and fans the sequenced
// operation out to every other session in order. Ties between concurrent
// submissions are broken by arrival at the mutex. Viewer operations are
// rejected before any sequence number is assigned.
func (r *Room) Submit(s *Session, d domain.Delta) (domain.Operation, error) {
	if !s.role.CanEdit() {
		return domain.Operation{}, ErrViewerCannotEdit
	}
	if err := d.Validate(); err != nil {
		return domain.Operation{}, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	if d.IsNoop() {
		return domain.Operation{}, fmt.Errorf("%w: delta changes nothing", ErrInvalidDelta)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.Operation{}, ErrRoomClosed
	}
	if _, ok := r.sessions[s]; !ok {
		r.mu.Unlock()
		return domain.Operation{}, ErrRoomClosed
	}

	newContent, err := d.Apply(r.content)
	if err != nil {
		r.mu.Unlock()
		return domain.Operation{}, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}

	r.seq++
	r.content = newContent
	r.dirty = true

	op := domain.Operation{
		DocumentID: r.documentID,
		Seq:        r.seq,
		UserID:     s.userID,
		Timestamp:  time.Now().UTC(),
	}
	if err := op.SetDelta(d); err != nil {
		// The delta already survived Validate and Apply; keep relaying.
		r.log.WithError(err).Error("Failed to encode sequenced delta")
	}

	payload, err := marshalEnvelope(EventReceiveTextChange, OperationPayload{
		DocumentID: op.DocumentID,
		Seq:        op.Seq,
		UserID:     op.UserID,
		Ops:        d.Ops,
		Timestamp:  op.Timestamp,
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to build broadcast message")
	} else {
		r.history = append(r.history, historyEntry{op: op, payload: payload})
		if len(r.history) > r.historyLimit {
			r.history = r.history[len(r.history)-r.historyLimit:]
		}
		overflowed := r.broadcastLocked(payload, s)
		if len(overflowed) > 0 {
			for _, v := range overflowed {
				r.removeLocked(v, "outbound queue overflow")
			}
			r.presenceAndReapLocked()
		}
	}
	// Everything up to seq is now queued to every surviving session.
	for sess := range r.sessions {
		sess.lastAck = r.seq
	}
	empty := len(r.sessions) == 0 && !r.closed
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if empty {
		r.destroy()
	}
	if r.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Record(ctx, op); err != nil {
			r.log.WithError(err).WithField("seq", op.Seq).Warn("Operation sink failed")
		}
		cancel()
	}
	return op, nil
}

// broadcastLocked enqueues msg to every session except the sender, in
// sequence order (callers hold mu, so enqueue order is relay order). Returns
// the sessions whose bounded queue overflowed; the caller disconnects them
// rather than letting a slow client backpressure the room.
func (r *Room) broadcastLocked(msg []byte, except *Session) []*Session {
	var overflowed []*Session
	for s := range r.sessions {
		if s == except {
			continue
		}
		if !s.enqueue(msg) {
			overflowed = append(overflowed, s)
		}
	}
	return overflowed
}

func (r *Room) removeLocked(s *Session, reason string) {
	if _, ok := r.sessions[s]; !ok {
		return
	}
	delete(r.sessions, s)
	s.closeSend()
	r.log.WithFields(logrus.Fields{"user_id": s.userID, "reason": reason}).Warn("Session disconnected by room")
}

// presenceAndReapLocked broadcasts the participant list and repeats after
// disconnecting any session that overflowed, until the broadcast sticks.
func (r *Room) presenceAndReapLocked() {
	for {
		msg, err := marshalEnvelope(EventPresenceUpdate, PresencePayload{Participants: r.participantsLocked()})
		if err != nil {
			r.log.WithError(err).Error("Failed to build presence message")
			return
		}
		overflowed := r.broadcastLocked(msg, nil)
		if len(overflowed) == 0 {
			return
		}
		for _, s := range overflowed {
			r.removeLocked(s, "outbound queue overflow")
		}
	}
}

// destroy stops the reconciler, makes one final flush attempt and hands the
// room back to the registry. A failed final flush is surfaced in the log but
// never blocks destruction.
func (r *Room) destroy() {
	close(r.stopFlush)
	<-r.flushDone

	ctx, cancel := context.WithTimeout(context.Background(), r.flushTimeout)
	defer cancel()
	if err := r.flush(ctx); err != nil {
		r.log.WithError(err).Error("Final flush failed; destroying room anyway")
	}
	if r.cleaner != nil {
		if err := r.cleaner.CleanupDocumentState(ctx, r.documentID); err != nil {
			r.log.WithError(err).Warn("Failed to cleanup ephemeral document state")
		}
	}
	r.log.Info("Room destroyed")
	if r.onEmpty != nil {
		r.onEmpty(r)
	}
}

// Close force-disconnects every session and destroys the room. Used on
// graceful shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for s := range r.sessions {
		delete(r.sessions, s)
		s.closeSend()
	}
	r.mu.Unlock()
	r.destroy()
}
