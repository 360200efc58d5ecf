package room

import (
	"context"
	"sync"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
)

// MessageStore is the durable side of the room: writes must be idempotent
// by message id so retried or duplicate persistence attempts are safe.
type MessageStore interface {
	Put(ctx context.Context, msg domain.ChatMessage) error
	PutBatch(ctx context.Context, msgs []domain.ChatMessage) error
	Get(ctx context.Context, id string) (domain.ChatMessage, error)
}

// MemoryStore keeps messages in-process. Used by the memory backend and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs map[string]domain.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: make(map[string]domain.ChatMessage)}
}

func (s *MemoryStore) Put(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ID] = msg
	return nil
}

func (s *MemoryStore) PutBatch(ctx context.Context, msgs []domain.ChatMessage) error {
	for _, m := range msgs {
		if err := s.Put(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[id]
	if !ok {
		return domain.ChatMessage{}, domain.ErrMessageNotFound
	}
	return m, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
