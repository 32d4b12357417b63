package activities

import (
	"context"
	"fmt"
	"os"

	"intellidoc/internal/chunker"
	"intellidoc/internal/config"
	"intellidoc/internal/extract"
	"intellidoc/internal/models"
	"intellidoc/internal/providers"
	"intellidoc/internal/storage"
	"intellidoc/internal/util"
	"intellidoc/internal/vectorindex"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Activities struct {
	cfg       config.Config
	documents *storage.DocumentRepo
	chunks    *storage.ChunkRepo
	index     vectorindex.Index
	embedder  providers.EmbeddingProvider
	log       *zap.Logger
}

func New(cfg config.Config, db *storage.DB, index vectorindex.Index, log *zap.Logger) (*Activities, error) {
	embedder, err := providers.NewEmbedding(cfg.EmbedProvider, cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Activities{
		cfg:       cfg,
		documents: storage.NewDocumentRepo(db),
		chunks:    storage.NewChunkRepo(db),
		index:     index,
		embedder:  embedder,
		log:       log,
	}, nil
}

// StatFileActivity verifies the uploaded file is still on disk before
// the expensive steps run.
func (a *Activities) StatFileActivity(ctx context.Context, in StatFileInput) (StatFileOutput, error) {
	_ = ctx
	info, err := os.Stat(in.FilePath)
	if err != nil {
		return StatFileOutput{}, fmt.Errorf("stat uploaded file: %w", err)
	}
	if info.IsDir() {
		return StatFileOutput{}, fmt.Errorf("%w: %s is a directory", util.ErrValidation, in.FilePath)
	}
	return StatFileOutput{Size: info.Size()}, nil
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	return a.documents.UpdateStatus(ctx, in.DocumentID, in.Status, in.FailReason)
}

func (a *Activities) ExtractPagesActivity(ctx context.Context, in ExtractPagesInput) (ExtractPagesOutput, error) {
	_ = ctx
	pages, err := extract.Pages(in.FilePath)
	if err != nil {
		return ExtractPagesOutput{}, err
	}
	out := ExtractPagesOutput{Pages: make([]PageItem, 0, len(pages))}
	for _, p := range pages {
		out.Pages = append(out.Pages, PageItem{Number: p.Number, Text: p.Text})
	}
	return out, nil
}

func (a *Activities) ChunkPagesActivity(ctx context.Context, in ChunkPagesInput) (ChunkPagesOutput, error) {
	_ = ctx
	pages := make([]chunker.Page, 0, len(in.Pages))
	for _, p := range in.Pages {
		pages = append(pages, chunker.Page{Number: p.Number, Text: p.Text})
	}
	passages := chunker.SplitPages(pages, in.ChunkSize, in.ChunkOverlap)
	out := ChunkPagesOutput{Passages: make([]PassageItem, 0, len(passages))}
	for _, p := range passages {
		out.Passages = append(out.Passages, PassageItem{Index: p.Index, PageNumber: p.PageNumber, Content: p.Content})
	}
	return out, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	vectors, info, err := a.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    in.Inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, fmt.Errorf("%w: embed chunks for %s: %v", util.ErrDependencyUnavailable, in.DocumentID, err)
	}
	return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// UpsertVectorsActivity writes the first-phase vector entries. Payloads
// carry no chunk id yet; the enriched upsert fills that in once durable
// chunk rows exist.
func (a *Activities) UpsertVectorsActivity(ctx context.Context, in UpsertVectorsInput) (UpsertVectorsOutput, error) {
	if len(in.Passages) != len(in.Vectors) {
		return UpsertVectorsOutput{}, fmt.Errorf("%w: %d passages but %d vectors for %s",
			util.ErrIntegrity, len(in.Passages), len(in.Vectors), in.DocumentID)
	}
	entries := make([]vectorindex.Entry, 0, len(in.Passages))
	ids := make([]string, 0, len(in.Passages))
	for i, p := range in.Passages {
		id := vectorindex.VectorID(in.DocumentID, p.Index)
		ids = append(ids, id)
		entries = append(entries, vectorindex.Entry{
			ID:     id,
			Vector: in.Vectors[i],
			Payload: vectorindex.Payload{
				DocumentID: in.DocumentID,
				ChunkIndex: p.Index,
				PageNumber: p.PageNumber,
				Content:    p.Content,
			},
		})
	}
	if err := a.index.Upsert(ctx, entries); err != nil {
		return UpsertVectorsOutput{}, err
	}
	return UpsertVectorsOutput{VectorIDs: ids}, nil
}

// PersistChunksActivity replaces the document's chunk rows with the
// current run's passages. Chunk ids are allocated here so the enriched
// vector payloads can reference them.
func (a *Activities) PersistChunksActivity(ctx context.Context, in PersistChunksInput) (PersistChunksOutput, error) {
	chunks := make([]models.Chunk, 0, len(in.Passages))
	ids := make([]string, 0, len(in.Passages))
	for _, p := range in.Passages {
		chunkID := uuid.NewString()
		ids = append(ids, chunkID)
		chunks = append(chunks, models.Chunk{
			ChunkID:    chunkID,
			DocumentID: in.DocumentID,
			ChunkIndex: p.Index,
			PageNumber: p.PageNumber,
			Content:    p.Content,
			VectorID:   vectorindex.VectorID(in.DocumentID, p.Index),
		})
	}
	if err := a.chunks.ReplaceChunks(ctx, in.DocumentID, chunks); err != nil {
		return PersistChunksOutput{}, err
	}
	a.log.Info("persisted chunks", zap.String("document_id", in.DocumentID), zap.Int("count", len(chunks)))
	return PersistChunksOutput{ChunkIDs: ids}, nil
}

// EnrichVectorPayloadsActivity re-upserts every vector with the durable
// chunk id in its payload. Deterministic vector ids make this an
// overwrite of the first-phase entries, never a duplicate.
func (a *Activities) EnrichVectorPayloadsActivity(ctx context.Context, in EnrichVectorPayloadsInput) error {
	if len(in.Passages) != len(in.Vectors) || len(in.Passages) != len(in.ChunkIDs) {
		return fmt.Errorf("%w: passages/vectors/chunk ids misaligned for %s (%d/%d/%d)",
			util.ErrIntegrity, in.DocumentID, len(in.Passages), len(in.Vectors), len(in.ChunkIDs))
	}
	entries := make([]vectorindex.Entry, 0, len(in.Passages))
	for i, p := range in.Passages {
		entries = append(entries, vectorindex.Entry{
			ID:     vectorindex.VectorID(in.DocumentID, p.Index),
			Vector: in.Vectors[i],
			Payload: vectorindex.Payload{
				DocumentID: in.DocumentID,
				ChunkID:    in.ChunkIDs[i],
				ChunkIndex: p.Index,
				PageNumber: p.PageNumber,
				Content:    p.Content,
			},
		})
	}
	return a.index.Upsert(ctx, entries)
}

// PurgeDocumentVectorsActivity drops every vector a document owns. Run
// before re-ingesting so a shrinking chunk set leaves no stale entries.
func (a *Activities) PurgeDocumentVectorsActivity(ctx context.Context, in PurgeDocumentVectorsInput) error {
	return a.index.DeleteByDocument(ctx, in.DocumentID)
}
