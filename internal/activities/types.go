package activities

// PassageItem is the serializable chunk passage carried between the
// ingestion activities before durable chunk rows exist.
type PassageItem struct {
	Index      int    `json:"index"`
	PageNumber *int   `json:"page_number,omitempty"`
	Content    string `json:"content"`
}

type StatFileInput struct {
	FilePath string `json:"file_path"`
}

type StatFileOutput struct {
	Size int64 `json:"size"`
}

type UpdateDocumentStatusInput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type ExtractPagesInput struct {
	FilePath string `json:"file_path"`
}

type ExtractPagesOutput struct {
	Pages []PageItem `json:"pages"`
}

type PageItem struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type ChunkPagesInput struct {
	DocumentID   string     `json:"document_id"`
	Pages        []PageItem `json:"pages"`
	ChunkSize    int        `json:"chunk_size"`
	ChunkOverlap int        `json:"chunk_overlap"`
}

type ChunkPagesOutput struct {
	Passages []PassageItem `json:"passages"`
}

type EmbedChunksInput struct {
	Operation  string   `json:"operation"`
	DocumentID string   `json:"document_id"`
	Inputs     []string `json:"inputs"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertVectorsInput struct {
	DocumentID string        `json:"document_id"`
	Passages   []PassageItem `json:"passages"`
	Vectors    [][]float32   `json:"vectors"`
}

type UpsertVectorsOutput struct {
	VectorIDs []string `json:"vector_ids"`
}

type PersistChunksInput struct {
	DocumentID string        `json:"document_id"`
	Passages   []PassageItem `json:"passages"`
}

type PersistChunksOutput struct {
	ChunkIDs []string `json:"chunk_ids"`
}

type EnrichVectorPayloadsInput struct {
	DocumentID string        `json:"document_id"`
	Passages   []PassageItem `json:"passages"`
	Vectors    [][]float32   `json:"vectors"`
	ChunkIDs   []string      `json:"chunk_ids"`
}

type PurgeDocumentVectorsInput struct {
	DocumentID string `json:"document_id"`
}
