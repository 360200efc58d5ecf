package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
)

// MessageRepository persists chat messages keyed by id. Writes are
// idempotent: a duplicate id is a no-op, which makes overlapping
// per-message and batch persistence safe.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const insertMessage = `
	INSERT INTO chat_messages (id, user_id, user_name, content, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING
`

func (r *MessageRepository) Put(ctx context.Context, msg domain.ChatMessage) error {
	_, err := r.db.Exec(ctx, insertMessage,
		msg.ID, msg.UserID, msg.UserName, msg.Content, msg.Timestamp)
	return err
}

func (r *MessageRepository) PutBatch(ctx context.Context, msgs []domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(insertMessage, m.ID, m.UserID, m.UserName, m.Content, m.Timestamp)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// Get fetches one message by id, for recovery and audit. History replay is
// served from the in-memory buffer, not from here.
func (r *MessageRepository) Get(ctx context.Context, id string) (domain.ChatMessage, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, user_name, content, created_at
		FROM chat_messages
		WHERE id = $1
	`, id)

	var m domain.ChatMessage
	if err := row.Scan(&m.ID, &m.UserID, &m.UserName, &m.Content, &m.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatMessage{}, domain.ErrMessageNotFound
		}
		return domain.ChatMessage{}, err
	}
	return m, nil
}
