package room

import "github.com/slichti/studio-platform-dev-sub010/internal/domain"

// ring is a fixed-capacity FIFO message buffer. Appending past capacity
// evicts the oldest entry.
type ring struct {
	buf   []domain.ChatMessage
	start int
	n     int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{buf: make([]domain.ChatMessage, capacity)}
}

func (r *ring) Append(m domain.ChatMessage) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = m
		r.n++
		return
	}
	// full: overwrite the oldest slot and advance
	r.buf[r.start] = m
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) Len() int { return r.n }

// Last returns up to n newest messages in insertion order (oldest first).
func (r *ring) Last(n int) []domain.ChatMessage {
	if n > r.n {
		n = r.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]domain.ChatMessage, 0, n)
	first := r.n - n
	for i := first; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
