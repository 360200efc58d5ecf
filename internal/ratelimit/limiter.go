package ratelimit

import (
	"sync"
	"time"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
	"github.com/slichti/studio-platform-dev-sub010/internal/metrics"
)

// counter is one fixed-window bucket. The window resets wholesale at
// expiry, it does not slide.
type counter struct {
	count     int
	expiresAt time.Time
}

// Limiter owns the counters of one key-space partition. Decisions for a
// given key are serialized by the mutex; counters for keys that stop being
// queried are reclaimed lazily on access and by Sweep.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]counter

	now func() time.Time
}

// Decision is the admission verdict for one Check call.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

func NewLimiter() *Limiter {
	return &Limiter{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

// Check decides whether a unit of work of the given cost may proceed for
// key within {limit, window}. A rejected attempt never mutates the counter.
func (l *Limiter) Check(key string, limit int, window time.Duration, cost int) (Decision, error) {
	if key == "" {
		return Decision{}, domain.ErrMissingKey
	}
	if limit <= 0 {
		return Decision{}, domain.ErrInvalidLimit
	}
	if window <= 0 {
		return Decision{}, domain.ErrInvalidWindow
	}
	if cost <= 0 {
		return Decision{}, domain.ErrInvalidCost
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	c, ok := l.counters[key]
	if ok && now.After(c.expiresAt) {
		// expired counters are treated as absent
		delete(l.counters, key)
		ok = false
	}

	if !ok {
		l.counters[key] = counter{count: cost, expiresAt: now.Add(window)}
		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		return Decision{Allowed: true, Remaining: limit - cost}, nil
	}

	if c.count+cost > limit {
		metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
		return Decision{Allowed: false, Remaining: limit - c.count}, nil
	}

	c.count += cost
	l.counters[key] = c
	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return Decision{Allowed: true, Remaining: limit - c.count}, nil
}

// Sweep discards every counter whose window already ended, bounding memory
// growth from keys that are never queried again.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, c := range l.counters {
		if now.After(c.expiresAt) {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Size reports the number of live counters.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
