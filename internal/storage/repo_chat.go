package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one persisted chat message.
type Message struct {
	ID        uuid.UUID
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// EnsureChatJob creates the chat row if it does not exist, so that a
// first message to a fresh chat id never fails on the foreign key.
func EnsureChatJob(chatID, title string) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO chats (id, title) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`,
			chatID, title,
		)
		return err
	})
}

// InsertMessageJob persists one message of a turn. The assistant message
// content is the assembler's finalized clean transcript, stored verbatim.
func InsertMessageJob(m Message) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO messages (id, chat_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt,
		)
		return err
	})
}

// ChatHistory loads a chat's messages in chronological order.
func ChatHistory(ctx context.Context, pool *pgxpool.Pool, chatID string) ([]Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, chat_id, role, content, created_at
		FROM messages WHERE chat_id = $1 ORDER BY created_at`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
