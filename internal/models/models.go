package models

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"-"`
	FileSize   int64     `json:"file_size"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Content    string    `json:"content"`
	VectorID   string    `json:"vector_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type Chat struct {
	ChatID     string    `json:"chat_id"`
	DocumentID *string   `json:"document_id,omitempty"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Message struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Citation struct {
	CitationID string  `json:"citation_id"`
	MessageID  string  `json:"message_id"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// CitationView is the display form of a citation: the chunk content is
// truncated to a short preview while the score and chunk reference stay
// authoritative.
type CitationView struct {
	CitationID       string  `json:"citation_id"`
	ChunkID          string  `json:"chunk_id"`
	DocumentID       string  `json:"document_id"`
	DocumentFilename string  `json:"document_filename,omitempty"`
	Preview          string  `json:"preview"`
	PageNumber       *int    `json:"page_number,omitempty"`
	Score            float64 `json:"score"`
}
