package room_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/room"
)

type savedContent struct {
	title   string
	content string
}

// fakeStore is an in-memory document store.
type fakeStore struct {
	mu        sync.Mutex
	docs      map[uint]domain.Document
	saves     []savedContent
	findErr   error
	saveErr   error
	findCalls int
}

func newFakeStore(docs ...domain.Document) *fakeStore {
	s := &fakeStore{docs: make(map[uint]domain.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeStore) FindByID(ctx context.Context, id uint) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d not found", id)
	}
	copied := doc
	return &copied, nil
}

func (s *fakeStore) SaveContent(ctx context.Context, id uint, title, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	doc := s.docs[id]
	doc.Title = title
	doc.Content = content
	s.docs[id] = doc
	s.saves = append(s.saves, savedContent{title: title, content: content})
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *fakeStore) lastSave() (savedContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return savedContent{}, false
	}
	return s.saves[len(s.saves)-1], true
}

// fakeSink records every operation handed off after broadcast.
type fakeSink struct {
	mu  sync.Mutex
	ops []domain.Operation
}

func (f *fakeSink) Record(ctx context.Context, op domain.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeSink) recorded() []domain.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Operation(nil), f.ops...)
}

// drain reads every message currently queued on the session.
func drain(s *room.Session) []room.Envelope {
	var envs []room.Envelope
	for {
		select {
		case msg, ok := <-s.Out():
			if !ok {
				return envs
			}
			var env room.Envelope
			if err := json.Unmarshal(msg, &env); err == nil {
				envs = append(envs, env)
			}
		default:
			return envs
		}
	}
}

func eventsOf(envs []room.Envelope) []string {
	names := make([]string, 0, len(envs))
	for _, e := range envs {
		names = append(names, e.Event)
	}
	return names
}

func opsOf(t *testing.T, envs []room.Envelope) []room.OperationPayload {
	t.Helper()
	var ops []room.OperationPayload
	for _, e := range envs {
		if e.Event != room.EventReceiveTextChange {
			continue
		}
		var p room.OperationPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		ops = append(ops, p)
	}
	return ops
}

func insertDelta(text string, at int) domain.Delta {
	ops := []domain.Component{}
	if at > 0 {
		ops = append(ops, domain.Component{Retain: at})
	}
	ops = append(ops, domain.Component{Insert: text})
	return domain.Delta{Ops: ops}
}

func testRegistry(store room.Store, cfg room.Config) *room.Registry {
	if cfg.FlushInterval == 0 {
		// Keep the reconciler quiet during most tests.
		cfg.FlushInterval = time.Hour
	}
	return room.NewRegistry(store, cfg)
}

func TestJoinSendsFullSyncAndPresence(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Title: "Notes", Content: "Hello"})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	s, err := rm.Join(nil, 10, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	envs := drain(s)
	require.Equal(t, []string{room.EventSync, room.EventPresenceUpdate}, eventsOf(envs))

	var sync room.SyncPayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &sync))
	assert.Equal(t, uint64(0), sync.Seq)
	assert.Equal(t, "Notes", sync.Title)
	assert.Equal(t, "Hello", sync.Content)

	var presence room.PresencePayload
	require.NoError(t, json.Unmarshal(envs[1].Payload, &presence))
	require.Len(t, presence.Participants, 1)
	assert.Equal(t, uint(10), presence.Participants[0].UserID)
	assert.Equal(t, "alice", presence.Participants[0].Name)
	assert.Equal(t, domain.RoleOwner, presence.Participants[0].Role)

	rm.Leave(s)
}

func TestSubmitSequencesAndBroadcasts(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Title: "Doc", Content: "Hello"})
	sink := &fakeSink{}
	reg := testRegistry(store, room.Config{Sink: sink})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 0)
	require.NoError(t, err)
	drain(alice)
	drain(bob)

	op, err := rm.Submit(alice, insertDelta(" world", 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), op.Seq)
	assert.Equal(t, uint(1), op.UserID)

	_, content, seq := rm.Snapshot()
	assert.Equal(t, "Hello world", content)
	assert.Equal(t, uint64(1), seq)
	assert.True(t, rm.Dirty())

	// The sender does not get its own operation echoed back.
	assert.Empty(t, opsOf(t, drain(alice)))

	bobOps := opsOf(t, drain(bob))
	require.Len(t, bobOps, 1)
	assert.Equal(t, uint64(1), bobOps[0].Seq)
	assert.Equal(t, uint(1), bobOps[0].UserID)

	recorded := sink.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, uint64(1), recorded[0].Seq)

	rm.Leave(alice)
	rm.Leave(bob)
}

func TestSubmitSeqStrictlyIncreasingAcrossChurn(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: ""})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 0)
	require.NoError(t, err)

	op1, err := rm.Submit(alice, insertDelta("a", 0))
	require.NoError(t, err)
	op2, err := rm.Submit(bob, insertDelta("b", 1))
	require.NoError(t, err)

	// Alice leaving must not reset or reuse sequence numbers.
	rm.Leave(alice)

	op3, err := rm.Submit(bob, insertDelta("c", 2))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), op1.Seq)
	assert.Equal(t, uint64(2), op2.Seq)
	assert.Equal(t, uint64(3), op3.Seq)

	rm.Leave(bob)
}

func TestSubmitRejectsViewerBeforeSequencing(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: "text"})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	owner, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	viewer, err := rm.Join(nil, 2, "eve", domain.RoleViewer, 0)
	require.NoError(t, err)
	drain(owner)
	drain(viewer)

	_, err = rm.Submit(viewer, insertDelta("x", 0))
	require.ErrorIs(t, err, room.ErrViewerCannotEdit)

	// The rejected operation consumed no sequence number and reached nobody.
	_, content, seq := rm.Snapshot()
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, "text", content)
	assert.Empty(t, opsOf(t, drain(owner)))

	op, err := rm.Submit(owner, insertDelta("y", 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), op.Seq)

	rm.Leave(owner)
	rm.Leave(viewer)
}

func TestSubmitRejectsInvalidAndNoopDeltas(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: "abc"})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	s, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	_, err = rm.Submit(s, domain.Delta{Ops: []domain.Component{{Retain: -2}}})
	assert.ErrorIs(t, err, room.ErrInvalidDelta)

	_, err = rm.Submit(s, domain.Delta{Ops: []domain.Component{{Retain: 3}}})
	assert.ErrorIs(t, err, room.ErrInvalidDelta)

	_, _, seq := rm.Snapshot()
	assert.Equal(t, uint64(0), seq)

	rm.Leave(s)
}

func TestLeaveBroadcastsPresenceToRemaining(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 0)
	require.NoError(t, err)
	drain(alice)
	drain(bob)

	rm.Leave(bob)

	envs := drain(alice)
	require.Equal(t, []string{room.EventPresenceUpdate}, eventsOf(envs))
	var presence room.PresencePayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &presence))
	require.Len(t, presence.Participants, 1)
	assert.Equal(t, uint(1), presence.Participants[0].UserID)

	rm.Leave(alice)
}

func TestReconnectReplaysMissedOperations(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: ""})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := rm.Submit(alice, insertDelta("x", i))
		require.NoError(t, err)
	}

	// Bob saw up to seq 1 before dropping; he should get 2 and 3 back, not a
	// full snapshot.
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 1)
	require.NoError(t, err)

	envs := drain(bob)
	assert.NotContains(t, eventsOf(envs), room.EventSync)
	replayed := opsOf(t, envs)
	require.Len(t, replayed, 2)
	assert.Equal(t, uint64(2), replayed[0].Seq)
	assert.Equal(t, uint64(3), replayed[1].Seq)

	rm.Leave(alice)
	rm.Leave(bob)
}

func TestReconnectFallsBackToFullSync(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: ""})
	reg := testRegistry(store, room.Config{HistoryLimit: 2})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := rm.Submit(alice, insertDelta("x", i))
		require.NoError(t, err)
	}

	// Seq 1 fell out of the bounded history, so the gap cannot be replayed.
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 1)
	require.NoError(t, err)
	envs := drain(bob)
	require.NotEmpty(t, envs)
	assert.Equal(t, room.EventSync, envs[0].Event)

	// A last_seq ahead of the room means a previous incarnation: full sync.
	carol, err := rm.Join(nil, 3, "carol", domain.RoleEditor, 99)
	require.NoError(t, err)
	envs = drain(carol)
	require.NotEmpty(t, envs)
	assert.Equal(t, room.EventSync, envs[0].Event)

	rm.Leave(alice)
	rm.Leave(bob)
	rm.Leave(carol)
}

func TestReconcilerFlushesDirtyOnceUntilNextEdit(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Title: "Doc", Content: ""})
	reg := testRegistry(store, room.Config{FlushInterval: 20 * time.Millisecond})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	s, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	_, err = rm.Submit(s, insertDelta("hello", 0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.saveCount() >= 1 && !rm.Dirty()
	}, time.Second, 5*time.Millisecond)

	countAfterFlush := store.saveCount()
	last, ok := store.lastSave()
	require.True(t, ok)
	assert.Equal(t, "hello", last.content)

	// With no further edits the following ticks must not write again.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, countAfterFlush, store.saveCount())

	rm.Leave(s)
}

func TestLastLeaveFlushesAndDestroysRoom(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Title: "Doc", Content: ""})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	s, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)

	_, err = rm.Submit(s, insertDelta("final state", 0))
	require.NoError(t, err)

	rm.Leave(s)

	// Leave of the last session runs the final flush synchronously.
	last, ok := store.lastSave()
	require.True(t, ok)
	assert.Equal(t, "final state", last.content)

	_, alive := reg.Lookup(1)
	assert.False(t, alive)

	_, err = rm.Join(nil, 2, "bob", domain.RoleEditor, 0)
	assert.ErrorIs(t, err, room.ErrRoomClosed)

	// A fresh join goes through a new room seeded from the flushed content.
	rm2, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	assert.NotSame(t, rm, rm2)
	_, content, _ := rm2.Snapshot()
	assert.Equal(t, "final state", content)
}

func TestSlowSessionDisconnectedOnOverflow(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: ""})
	reg := testRegistry(store, room.Config{SendBuffer: 4})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	slow, err := rm.Join(nil, 1, "slow", domain.RoleViewer, 0)
	require.NoError(t, err)
	editor, err := rm.Join(nil, 2, "editor", domain.RoleEditor, 0)
	require.NoError(t, err)

	// Never drain slow's queue; enough edits must overflow it and the room
	// must drop the session instead of blocking the relay.
	for i := 0; i < 10; i++ {
		_, err := rm.Submit(editor, insertDelta("x", i))
		require.NoError(t, err)
	}

	participants := rm.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, uint(2), participants[0].UserID)

	// The dropped session's queue is closed once the backlog is drained.
	for range slow.Out() {
	}

	rm.Leave(editor)
}

func TestSubmitAfterRoomClosed(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: ""})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	s, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	rm.Leave(s)

	_, err = rm.Submit(s, insertDelta("x", 0))
	assert.ErrorIs(t, err, room.ErrRoomClosed)
}

func TestRegistryGetOrCreateSingleflight(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: "seed"})
	reg := testRegistry(store, room.Config{})

	const goroutines = 16
	rooms := make([]*room.Room, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rm, err := reg.GetOrCreate(context.Background(), 1)
			assert.NoError(t, err)
			rooms[i] = rm
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}

	store.mu.Lock()
	calls := store.findCalls
	store.mu.Unlock()
	assert.Equal(t, 1, calls, "initial load must run exactly once")
}

func TestRegistryLoadFailureRegistersNothing(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("db down")
	reg := testRegistry(store, room.Config{})

	_, err := reg.GetOrCreate(context.Background(), 1)
	require.Error(t, err)
	_, alive := reg.Lookup(1)
	assert.False(t, alive)

	// Recovery: once the store works again a join succeeds.
	store.mu.Lock()
	store.findErr = nil
	store.docs[1] = domain.Document{ID: 1, Content: "back"}
	store.mu.Unlock()

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	_, content, _ := rm.Snapshot()
	assert.Equal(t, "back", content)
}

func TestRegistryShutdownFlushesRooms(t *testing.T) {
	store := newFakeStore(
		domain.Document{ID: 1, Content: ""},
		domain.Document{ID: 2, Content: ""},
	)
	reg := testRegistry(store, room.Config{})

	rm1, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	rm2, err := reg.GetOrCreate(context.Background(), 2)
	require.NoError(t, err)

	s1, err := rm1.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	_, err = rm1.Submit(s1, insertDelta("one", 0))
	require.NoError(t, err)

	s2, err := rm2.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	_, err = rm2.Submit(s2, insertDelta("two", 0))
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{1, 2}, reg.ActiveDocumentIDs())

	reg.Shutdown()

	assert.Empty(t, reg.ActiveDocumentIDs())
	assert.GreaterOrEqual(t, store.saveCount(), 2)

	store.mu.Lock()
	assert.Equal(t, "one", store.docs[1].Content)
	assert.Equal(t, "two", store.docs[2].Content)
	store.mu.Unlock()
}

func TestLastArrivedWinsOnConcurrentInsert(t *testing.T) {
	store := newFakeStore(domain.Document{ID: 1, Content: "Hello"})
	reg := testRegistry(store, room.Config{})

	rm, err := reg.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)

	alice, err := rm.Join(nil, 1, "alice", domain.RoleOwner, 0)
	require.NoError(t, err)
	bob, err := rm.Join(nil, 2, "bob", domain.RoleEditor, 0)
	require.NoError(t, err)

	// Both clients built their delta against "Hello"; the room applies them
	// in arrival order without rebasing the second one.
	_, err = rm.Submit(alice, insertDelta(" world", 5))
	require.NoError(t, err)
	_, err = rm.Submit(bob, insertDelta("!", 5))
	require.NoError(t, err)

	_, content, seq := rm.Snapshot()
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, "Hello! world", content)

	rm.Leave(alice)
	rm.Leave(bob)
}
