package room

import (
	"context"
	"fmt"
	"time"
)

// runReconciler is the room's persistence reconciler: a fixed-interval tick
// (wall clock, not debounce-on-last-edit) that flushes the working snapshot
// whenever the dirty flag is set. A failed write leaves the flag set so the
// next tick retries; edits are never blocked or dropped by a slow store.
// Runs in its own goroutine for the life of the room.
func (r *Room) runReconciler() {
	defer close(r.flushDone)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.flushTimeout)
			if err := r.flush(ctx); err != nil {
				r.log.WithError(err).Warn("Periodic flush failed; will retry next tick")
			}
			cancel()
		case <-r.stopFlush:
			return
		}
	}
}

// flush writes (title, content) to the durable store when dirty. The store
// call happens outside the room's serialization point so the relay keeps
// flowing; the dirty flag is only cleared when no edit landed during the
// write.
func (r *Room) flush(ctx context.Context) error {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	title, content, seqAt := r.title, r.content, r.seq
	r.mu.Unlock()

	if err := r.store.SaveContent(ctx, r.documentID, title, content); err != nil {
		return fmt.Errorf("flush document %d: %w", r.documentID, err)
	}

	r.mu.Lock()
	if r.seq == seqAt {
		r.dirty = false
	}
	r.lastFlush = time.Now()
	r.mu.Unlock()
	return nil
}
