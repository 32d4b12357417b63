package storage

import (
	"context"
	"errors"
	"fmt"

	"intellidoc/internal/models"
	"intellidoc/internal/util"

	"github.com/jackc/pgx/v5"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks persists the full chunk set of one ingestion run in a
// single transaction, replacing whatever an earlier run left behind so a
// re-ingest can shrink the chunk count without stranding stale rows.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", documentID, err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, document_id, chunk_index, page_number, content, vector_id)
VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ChunkID, c.DocumentID, c.ChunkIndex, c.PageNumber, util.SanitizeText(c.Content), c.VectorID,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) GetChunk(ctx context.Context, chunkID string) (models.Chunk, error) {
	var c models.Chunk
	err := r.db.Pool.QueryRow(ctx, `
SELECT chunk_id, document_id, chunk_index, page_number, content, vector_id, created_at
FROM chunks
WHERE chunk_id=$1`, chunkID).
		Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.PageNumber, &c.Content, &c.VectorID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chunk{}, fmt.Errorf("chunk %s: %w", chunkID, util.ErrNotFound)
	}
	if err != nil {
		return models.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	return c, nil
}

// GetChunkByPosition resolves a chunk by its reconciliation key. Used as
// the citation fallback when a search hit payload predates the enriched
// upsert and carries no chunk id.
func (r *ChunkRepo) GetChunkByPosition(ctx context.Context, documentID string, chunkIndex int) (models.Chunk, error) {
	var c models.Chunk
	err := r.db.Pool.QueryRow(ctx, `
SELECT chunk_id, document_id, chunk_index, page_number, content, vector_id, created_at
FROM chunks
WHERE document_id=$1 AND chunk_index=$2`, documentID, chunkIndex).
		Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.PageNumber, &c.Content, &c.VectorID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: %w", documentID, chunkIndex, util.ErrNotFound)
	}
	if err != nil {
		return models.Chunk{}, fmt.Errorf("get chunk by position: %w", err)
	}
	return c, nil
}

func (r *ChunkRepo) ListChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, document_id, chunk_index, page_number, content, vector_id, created_at
FROM chunks
WHERE document_id=$1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.PageNumber, &c.Content, &c.VectorID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}
