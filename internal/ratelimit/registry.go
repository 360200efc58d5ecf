package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry maps a key-space partition name to exactly one Limiter,
// creating it lazily on first access.
type Registry struct {
	mu         sync.RWMutex
	partitions map[string]*Limiter
}

func NewRegistry() *Registry {
	return &Registry{partitions: make(map[string]*Limiter)}
}

func (r *Registry) Get(partition string) *Limiter {
	r.mu.RLock()
	l := r.partitions[partition]
	r.mu.RUnlock()
	if l != nil {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l = r.partitions[partition]; l != nil {
		return l
	}
	l = NewLimiter()
	r.partitions[partition] = l
	return l
}

// Run sweeps expired counters across all partitions on a ticker until ctx
// is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("ratelimit registry: maintenance stopped")
			return
		case <-ticker.C:
			r.sweepAll()
		}
	}
}

func (r *Registry) sweepAll() {
	r.mu.RLock()
	limiters := make([]*Limiter, 0, len(r.partitions))
	for _, l := range r.partitions {
		limiters = append(limiters, l)
	}
	r.mu.RUnlock()

	removed := 0
	for _, l := range limiters {
		removed += l.Sweep()
	}
	if removed > 0 {
		slog.Debug("ratelimit registry: swept expired counters", "removed", removed)
	}
}
