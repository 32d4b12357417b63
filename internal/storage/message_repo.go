package storage

import (
	"context"
	"fmt"

	"intellidoc/internal/models"
)

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) InsertMessage(ctx context.Context, m models.Message) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO messages (message_id, chat_id, role, content)
VALUES ($1, $2, $3, $4)`, m.MessageID, m.ChatID, m.Role, m.Content)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT message_id, chat_id, role, content, created_at
FROM messages
WHERE chat_id=$1
ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	out := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// ListRecentMessages returns up to limit latest messages, oldest first,
// for building the chat-history window of a generation call.
func (r *MessageRepo) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT message_id, chat_id, role, content, created_at
FROM (
  SELECT message_id, chat_id, role, content, created_at
  FROM messages
  WHERE chat_id=$1
  ORDER BY created_at DESC
  LIMIT $2
) recent
ORDER BY created_at ASC`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()
	out := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}
	return out, nil
}

func (r *MessageRepo) InsertCitations(ctx context.Context, citations []models.Citation) error {
	if len(citations) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx insert citations: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	for _, c := range citations {
		_, err := tx.Exec(ctx, `
INSERT INTO citations (citation_id, message_id, chunk_id, document_id, score)
VALUES ($1, $2, $3, $4, $5)`, c.CitationID, c.MessageID, c.ChunkID, c.DocumentID, c.Score)
		if err != nil {
			return fmt.Errorf("insert citation %s: %w", c.CitationID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit citations tx: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListCitations(ctx context.Context, messageID string) ([]models.Citation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT citation_id, message_id, chunk_id, document_id, score
FROM citations
WHERE message_id=$1
ORDER BY score DESC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()
	out := make([]models.Citation, 0)
	for rows.Next() {
		var c models.Citation
		if err := rows.Scan(&c.CitationID, &c.MessageID, &c.ChunkID, &c.DocumentID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return out, nil
}
