package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config tunes room behavior. Zero values fall back to defaults.
type Config struct {
	// FlushInterval is the reconciler tick. The product contract is a flush
	// every 2 seconds of wall-clock time while dirty.
	FlushInterval time.Duration
	// FlushTimeout bounds a single durable write.
	FlushTimeout time.Duration
	// LoadTimeout bounds the initial content load at room creation.
	LoadTimeout time.Duration
	// HistoryLimit bounds the in-memory replay buffer per room.
	HistoryLimit int
	// SendBuffer is the per-session outbound queue capacity; a session that
	// overflows it is disconnected.
	SendBuffer int
	// Sink, when set, receives every sequenced operation.
	Sink OpSink
	// Cleaner, when set, is invoked on room destruction.
	Cleaner StateCleaner
}

func (c *Config) applyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 10 * time.Second
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 256
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
}

type inflightLoad struct {
	done chan struct{}
	room *Room
	err  error
}

// Registry maps each document id to at most one live room and owns room
// lifecycle: rooms are created on first join (seeded from the durable store)
// and remove themselves after their last session leaves and the final flush
// has been attempted.
type Registry struct {
	store Store
	cfg   Config
	log   *logrus.Entry

	mu    sync.Mutex
	rooms map[uint]*Room
	loads map[uint]*inflightLoad
}

func NewRegistry(store Store, cfg Config) *Registry {
	if store == nil {
		panic("store cannot be nil for Registry")
	}
	cfg.applyDefaults()
	return &Registry{
		store: store,
		cfg:   cfg,
		log:   logrus.WithField("component", "room_registry"),
		rooms: make(map[uint]*Room),
		loads: make(map[uint]*inflightLoad),
	}
}

// GetOrCreate returns the live room for a document, creating it on first
// use. Concurrent calls for the same id always yield the same instance; the
// initial load runs once and every pending joiner shares its outcome. When
// the load fails nothing is registered and all pending joiners get the
// error.
func (r *Registry) GetOrCreate(ctx context.Context, documentID uint) (*Room, error) {
	r.mu.Lock()
	if room, ok := r.rooms[documentID]; ok {
		r.mu.Unlock()
		return room, nil
	}
	if load, ok := r.loads[documentID]; ok {
		r.mu.Unlock()
		select {
		case <-load.done:
			return load.room, load.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	load := &inflightLoad{done: make(chan struct{})}
	r.loads[documentID] = load
	r.mu.Unlock()

	room, err := r.createRoom(documentID)

	r.mu.Lock()
	delete(r.loads, documentID)
	if err == nil {
		r.rooms[documentID] = room
	}
	r.mu.Unlock()

	load.room, load.err = room, err
	close(load.done)
	return room, err
}

func (r *Registry) createRoom(documentID uint) (*Room, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LoadTimeout)
	defer cancel()

	doc, err := r.store.FindByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("room: initial load for document %d: %w", documentID, err)
	}

	room := &Room{
		documentID:    documentID,
		store:         r.store,
		sink:          r.cfg.Sink,
		cleaner:       r.cfg.Cleaner,
		log:           logrus.WithFields(logrus.Fields{"component": "room", "document_id": documentID}),
		sendBuffer:    r.cfg.SendBuffer,
		historyLimit:  r.cfg.HistoryLimit,
		flushInterval: r.cfg.FlushInterval,
		flushTimeout:  r.cfg.FlushTimeout,
		title:         doc.Title,
		content:       doc.Content,
		sessions:      make(map[*Session]struct{}),
		stopFlush:     make(chan struct{}),
		flushDone:     make(chan struct{}),
		onEmpty:       r.release,
	}
	go room.runReconciler()
	room.log.Info("Room created")
	return room, nil
}

// release drops the mapping, but only for the exact instance that died: a
// replacement room created in the meantime keeps its slot.
func (r *Registry) release(room *Room) {
	r.mu.Lock()
	if current, ok := r.rooms[room.documentID]; ok && current == room {
		delete(r.rooms, room.documentID)
	}
	r.mu.Unlock()
}

// Lookup returns the live room for a document without creating one.
func (r *Registry) Lookup(documentID uint) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[documentID]
	return room, ok
}

// ActiveDocumentIDs lists the documents with a live room.
func (r *Registry) ActiveDocumentIDs() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown force-closes every room, flushing dirty snapshots on the way out.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
	r.log.Infof("Registry shut down (%d rooms closed)", len(rooms))
}
