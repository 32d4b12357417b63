package vectorindex

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Payload is the metadata stored next to each vector. ChunkID is filled
// in by the second upsert of the two-phase ingestion write, once the
// durable chunk row exists; DocumentID and ChunkIndex are always present
// and are the reconciliation key back to the chunk store.
type Payload struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber *int   `json:"page_number,omitempty"`
	Content    string `json:"content,omitempty"`
}

type Entry struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

type Hit struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Index is a cosine-similarity store of (id, vector, payload) triples.
// Upserts are idempotent per id, which is what makes re-running ingestion
// for a document safe.
type Index interface {
	// EnsureCollection creates the collection when absent and errors on
	// dimension drift of an existing one.
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns up to limit hits with score >= scoreThreshold, in
	// strictly descending score order. Ties break by insertion recency,
	// most recent first.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]Hit, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	// DeleteByDocument removes every entry whose payload carries the
	// document id, as one logical operation.
	DeleteByDocument(ctx context.Context, documentID string) error
}

var vectorIDSpace = uuid.MustParse("9e336ba3-6bd7-4fcc-9d9e-1f4a87c53f5a")

// VectorID derives the deterministic vector id for a chunk. Re-ingesting
// a document therefore overwrites its old entries instead of duplicating
// them.
func VectorID(documentID string, chunkIndex int) string {
	name := documentID + ":" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(vectorIDSpace, []byte(name)).String()
}
