package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
)

const keyPrefix = "msg:"

// Store persists chat messages as redis values under msg:<id>. SET is
// naturally idempotent by key, so duplicate persistence attempts are safe.
type Store struct {
	rdb *redis.Client
	ttl time.Duration // zero keeps messages forever
}

// New parses a redis URL, verifies connectivity and returns the store.
func New(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Put(ctx context.Context, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyPrefix+msg.ID, data, s.ttl).Err()
}

func (s *Store) PutBatch(ctx context.Context, msgs []domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		pipe.Set(ctx, keyPrefix+m.ID, data, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (domain.ChatMessage, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ChatMessage{}, domain.ErrMessageNotFound
		}
		return domain.ChatMessage{}, err
	}
	var m domain.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
