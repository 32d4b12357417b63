package storage

import (
	"context"
	"errors"
	"fmt"

	"intellidoc/internal/models"
	"intellidoc/internal/util"

	"github.com/jackc/pgx/v5"
)

type ChatRepo struct {
	db *DB
}

func NewChatRepo(db *DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) CreateChat(ctx context.Context, c models.Chat) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO chats (chat_id, document_id, title)
VALUES ($1, $2, $3)`, c.ChatID, c.DocumentID, c.Title)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var c models.Chat
	err := r.db.Pool.QueryRow(ctx, `
SELECT chat_id, document_id, title, created_at, updated_at
FROM chats
WHERE chat_id=$1`, chatID).
		Scan(&c.ChatID, &c.DocumentID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chat{}, fmt.Errorf("chat %s: %w", chatID, util.ErrNotFound)
	}
	if err != nil {
		return models.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

func (r *ChatRepo) ListChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chat_id, document_id, title, created_at, updated_at
FROM chats
ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chat, 0)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ChatID, &c.DocumentID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return out, nil
}

func (r *ChatRepo) TouchChat(ctx context.Context, chatID string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE chats SET updated_at=NOW() WHERE chat_id=$1`, chatID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chats WHERE chat_id=$1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, util.ErrNotFound)
	}
	return nil
}
