package retrieval

import (
	"context"
	"fmt"
	"strings"

	"intellidoc/internal/models"
	"intellidoc/internal/providers"
	"intellidoc/internal/util"
	"intellidoc/internal/vectorindex"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoContextMarker is handed to the generative model when no search hit
// clears the score threshold, so the model never sees an ambiguous empty
// context.
const NoContextMarker = "No relevant context found in documents."

type ChunkResolver interface {
	GetChunk(ctx context.Context, chunkID string) (models.Chunk, error)
	GetChunkByPosition(ctx context.Context, documentID string, chunkIndex int) (models.Chunk, error)
}

type DocumentResolver interface {
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
}

type ChatStore interface {
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	TouchChat(ctx context.Context, chatID string) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m models.Message) error
	ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
	InsertCitations(ctx context.Context, citations []models.Citation) error
}

type Options struct {
	EmbedDim       int
	SearchLimit    int
	ScoreThreshold float64
	HistoryTurns   int
}

// Answerer embeds a query, searches the vector index, asks the
// generative model for a grounded answer and reconciles the search hits
// back to durable chunks to produce citations.
type Answerer struct {
	embedder providers.EmbeddingProvider
	llm      providers.LLMProvider
	index    vectorindex.Index
	chunks   ChunkResolver
	docs     DocumentResolver
	chats    ChatStore
	messages MessageStore
	opts     Options
	log      *zap.Logger
}

func NewAnswerer(
	embedder providers.EmbeddingProvider,
	llm providers.LLMProvider,
	index vectorindex.Index,
	chunks ChunkResolver,
	docs DocumentResolver,
	chats ChatStore,
	messages MessageStore,
	opts Options,
	log *zap.Logger,
) *Answerer {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Answerer{
		embedder: embedder,
		llm:      llm,
		index:    index,
		chunks:   chunks,
		docs:     docs,
		chats:    chats,
		messages: messages,
		opts:     opts,
		log:      log,
	}
}

// Ask answers query within chat chatID and returns the persisted
// assistant message plus its citations. A generation failure after a
// successful retrieval degrades to an explanatory answer with no
// citations; earlier failures surface as errors.
func (a *Answerer) Ask(ctx context.Context, chatID, query string) (models.Message, []models.CitationView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Message{}, nil, fmt.Errorf("%w: empty query", util.ErrValidation)
	}
	if _, err := a.chats.GetChat(ctx, chatID); err != nil {
		return models.Message{}, nil, err
	}

	// History window is captured before the user turn is stored, so it
	// never contains the query itself.
	history, err := a.messages.ListRecentMessages(ctx, chatID, a.opts.HistoryTurns)
	if err != nil {
		return models.Message{}, nil, err
	}

	userMsg := models.Message{
		MessageID: uuid.NewString(),
		ChatID:    chatID,
		Role:      "user",
		Content:   query,
	}
	if err := a.messages.InsertMessage(ctx, userMsg); err != nil {
		return models.Message{}, nil, err
	}
	if err := a.chats.TouchChat(ctx, chatID); err != nil {
		return models.Message{}, nil, err
	}

	vectors, _, err := a.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "ask_query_embed",
		Inputs:    []string{query},
		Dimension: a.opts.EmbedDim,
	})
	if err != nil || len(vectors) != 1 {
		return models.Message{}, nil, fmt.Errorf("%w: query embedding failed: %v", util.ErrDependencyUnavailable, err)
	}

	hits, err := a.index.Search(ctx, vectors[0], a.opts.SearchLimit, a.opts.ScoreThreshold)
	if err != nil {
		return models.Message{}, nil, fmt.Errorf("search index: %w", err)
	}
	a.log.Debug("retrieved context", zap.String("chat_id", chatID), zap.Int("hits", len(hits)))

	contextParts := buildContext(hits)

	turns := make([]providers.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, providers.Turn{Role: m.Role, Content: m.Content})
	}

	answer := ""
	degraded := false
	resp, _, genErr := a.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "rag_answer",
		Prompt:    query,
		Context:   contextParts,
		History:   turns,
	})
	if genErr != nil {
		a.log.Warn("generation failed, returning degraded answer", zap.Error(genErr))
		answer = "I apologize, but I encountered an error while generating a response: " + genErr.Error()
		degraded = true
	} else {
		answer = strings.TrimSpace(resp.Text)
	}

	assistantMsg := models.Message{
		MessageID: uuid.NewString(),
		ChatID:    chatID,
		Role:      "assistant",
		Content:   answer,
	}
	if err := a.messages.InsertMessage(ctx, assistantMsg); err != nil {
		return models.Message{}, nil, err
	}

	if degraded {
		return assistantMsg, []models.CitationView{}, nil
	}

	citations, views := a.resolveCitations(ctx, assistantMsg.MessageID, hits)
	if err := a.messages.InsertCitations(ctx, citations); err != nil {
		return models.Message{}, nil, err
	}
	return assistantMsg, views, nil
}

func buildContext(hits []vectorindex.Hit) []string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Payload.Content == "" {
			continue
		}
		if h.Payload.PageNumber != nil {
			parts = append(parts, fmt.Sprintf("[Page %d] %s", *h.Payload.PageNumber, h.Payload.Content))
		} else {
			parts = append(parts, h.Payload.Content)
		}
	}
	if len(parts) == 0 {
		return []string{NoContextMarker}
	}
	return parts
}

// resolveCitations maps search hits to durable chunks. The payload's
// chunk id wins; a payload written before the enriched upsert falls back
// to the (document_id, chunk_index) key. Hits that resolve to no chunk
// are dropped, and at most one citation is created per chunk.
func (a *Answerer) resolveCitations(ctx context.Context, messageID string, hits []vectorindex.Hit) ([]models.Citation, []models.CitationView) {
	citations := make([]models.Citation, 0, len(hits))
	views := make([]models.CitationView, 0, len(hits))
	seen := map[string]struct{}{}

	for _, h := range hits {
		var chunk models.Chunk
		var err error
		if h.Payload.ChunkID != "" {
			chunk, err = a.chunks.GetChunk(ctx, h.Payload.ChunkID)
		} else {
			chunk, err = a.chunks.GetChunkByPosition(ctx, h.Payload.DocumentID, h.Payload.ChunkIndex)
		}
		if err != nil {
			a.log.Debug("dropping unresolvable search hit", zap.String("vector_id", h.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[chunk.ChunkID]; dup {
			continue
		}
		seen[chunk.ChunkID] = struct{}{}

		c := models.Citation{
			CitationID: uuid.NewString(),
			MessageID:  messageID,
			ChunkID:    chunk.ChunkID,
			DocumentID: chunk.DocumentID,
			Score:      h.Score,
		}
		citations = append(citations, c)

		view := models.CitationView{
			CitationID: c.CitationID,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Preview:    util.Preview(chunk.Content, 200),
			PageNumber: chunk.PageNumber,
			Score:      h.Score,
		}
		if doc, derr := a.docs.GetDocument(ctx, chunk.DocumentID); derr == nil {
			view.DocumentFilename = doc.Filename
		}
		views = append(views, view)
	}
	return citations, views
}
