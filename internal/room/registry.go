package room

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry is the actor directory: it maps a room id to exactly one live
// Actor, creating it lazily on first access. It also drives the periodic
// batch-persistence pass across all rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Actor
	opts  ActorOptions
}

func NewRegistry(opts ActorOptions) *Registry {
	return &Registry{rooms: make(map[string]*Actor), opts: opts}
}

// Get returns the actor for roomID, creating it on first access.
func (r *Registry) Get(roomID string) *Actor {
	r.mu.RLock()
	a := r.rooms[roomID]
	r.mu.RUnlock()
	if a != nil {
		return a
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a = r.rooms[roomID]; a != nil {
		return a
	}
	a = NewActor(roomID, r.opts)
	r.rooms[roomID] = a
	return a
}

// Lookup returns the actor for roomID without creating one.
func (r *Registry) Lookup(roomID string) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.rooms[roomID]
	return a, ok
}

// Run flushes buffered messages on a ticker until ctx is done. A final
// flush happens on the way out so shutdown loses as little as possible.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.flushAll(context.Background())
			slog.Debug("room registry: maintenance stopped")
			return
		case <-ticker.C:
			r.flushAll(ctx)
		}
	}
}

func (r *Registry) flushAll(ctx context.Context) {
	r.mu.RLock()
	actors := make([]*Actor, 0, len(r.rooms))
	for _, a := range r.rooms {
		actors = append(actors, a)
	}
	r.mu.RUnlock()

	for _, a := range actors {
		a.Flush(ctx)
	}
}
