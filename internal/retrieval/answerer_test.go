package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"intellidoc/internal/models"
	"intellidoc/internal/providers"
	"intellidoc/internal/util"
	"intellidoc/internal/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunks struct {
	byID  map[string]models.Chunk
	byPos map[string]models.Chunk
}

func posKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s/%d", documentID, chunkIndex)
}

func (f *fakeChunks) GetChunk(_ context.Context, chunkID string) (models.Chunk, error) {
	c, ok := f.byID[chunkID]
	if !ok {
		return models.Chunk{}, fmt.Errorf("chunk %s: %w", chunkID, util.ErrNotFound)
	}
	return c, nil
}

func (f *fakeChunks) GetChunkByPosition(_ context.Context, documentID string, chunkIndex int) (models.Chunk, error) {
	c, ok := f.byPos[posKey(documentID, chunkIndex)]
	if !ok {
		return models.Chunk{}, fmt.Errorf("chunk %s/%d: %w", documentID, chunkIndex, util.ErrNotFound)
	}
	return c, nil
}

type fakeDocs struct {
	docs map[string]models.Document
}

func (f *fakeDocs) GetDocument(_ context.Context, documentID string) (models.Document, error) {
	d, ok := f.docs[documentID]
	if !ok {
		return models.Document{}, fmt.Errorf("document %s: %w", documentID, util.ErrNotFound)
	}
	return d, nil
}

type fakeChats struct {
	chats   map[string]models.Chat
	touched []string
}

func (f *fakeChats) GetChat(_ context.Context, chatID string) (models.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return models.Chat{}, fmt.Errorf("chat %s: %w", chatID, util.ErrNotFound)
	}
	return c, nil
}

func (f *fakeChats) TouchChat(_ context.Context, chatID string) error {
	f.touched = append(f.touched, chatID)
	return nil
}

type fakeMessages struct {
	history   []models.Message
	inserted  []models.Message
	citations []models.Citation
}

func (f *fakeMessages) InsertMessage(_ context.Context, m models.Message) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeMessages) ListRecentMessages(_ context.Context, _ string, limit int) ([]models.Message, error) {
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:], nil
	}
	return f.history, nil
}

func (f *fakeMessages) InsertCitations(_ context.Context, citations []models.Citation) error {
	f.citations = append(f.citations, citations...)
	return nil
}

type recordingLLM struct {
	lastReq providers.GenerateRequest
	text    string
	err     error
}

func (r *recordingLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	r.lastReq = req
	if r.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, r.err
	}
	return providers.GenerateResponse{Text: r.text}, providers.ProviderInfo{Name: "fake"}, nil
}

const testDim = 16

func newFixture(t *testing.T) (*Answerer, *vectorindex.Memory, *fakeChunks, *fakeMessages, *recordingLLM, *providers.MockProvider) {
	t.Helper()
	index := vectorindex.NewMemory()
	require.NoError(t, index.EnsureCollection(context.Background(), testDim))

	embedder := providers.NewMockProvider(testDim)
	llm := &recordingLLM{text: "Grounded answer."}
	chunks := &fakeChunks{byID: map[string]models.Chunk{}, byPos: map[string]models.Chunk{}}
	docs := &fakeDocs{docs: map[string]models.Document{
		"doc-1": {DocumentID: "doc-1", Filename: "paper.pdf"},
	}}
	chats := &fakeChats{chats: map[string]models.Chat{
		"chat-1": {ChatID: "chat-1", Title: "test chat"},
	}}
	messages := &fakeMessages{}

	a := NewAnswerer(embedder, llm, index, chunks, docs, chats, messages, Options{
		EmbedDim:       testDim,
		SearchLimit:    5,
		ScoreThreshold: 0.3,
		HistoryTurns:   10,
	}, nil)
	return a, index, chunks, messages, llm, embedder
}

func queryVector(t *testing.T, embedder *providers.MockProvider, query string) []float32 {
	t.Helper()
	vecs, _, err := embedder.Embed(context.Background(), providers.EmbedRequest{
		Inputs:    []string{query},
		Dimension: testDim,
	})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	return vecs[0]
}

func TestAskEmptyQuery(t *testing.T) {
	a, _, _, _, _, _ := newFixture(t)
	_, _, err := a.Ask(context.Background(), "chat-1", "   ")
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestAskUnknownChat(t *testing.T) {
	a, _, _, _, _, _ := newFixture(t)
	_, _, err := a.Ask(context.Background(), "missing", "what is this about?")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestAskNoRelevantContext(t *testing.T) {
	a, _, _, messages, llm, _ := newFixture(t)

	msg, views, err := a.Ask(context.Background(), "chat-1", "what is this about?")
	require.NoError(t, err)

	assert.Equal(t, []string{NoContextMarker}, llm.lastReq.Context)
	assert.Empty(t, views)
	assert.Empty(t, messages.citations)

	require.Len(t, messages.inserted, 2)
	assert.Equal(t, "user", messages.inserted[0].Role)
	assert.Equal(t, "what is this about?", messages.inserted[0].Content)
	assert.Equal(t, "assistant", messages.inserted[1].Role)
	assert.Equal(t, "Grounded answer.", msg.Content)
}

func TestAskResolvesCitations(t *testing.T) {
	a, index, chunks, messages, llm, embedder := newFixture(t)
	query := "find the methods section"
	vec := queryVector(t, embedder, query)

	page2 := 2
	chunks.byID["chunk-a"] = models.Chunk{
		ChunkID:    "chunk-a",
		DocumentID: "doc-1",
		ChunkIndex: 0,
		PageNumber: &page2,
		Content:    "Methods were applied to the corpus.",
	}
	chunks.byPos[posKey("doc-1", 3)] = models.Chunk{
		ChunkID:    "chunk-b",
		DocumentID: "doc-1",
		ChunkIndex: 3,
		Content:    "Additional evaluation details.",
	}

	require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{
		{
			ID:     "vec-a",
			Vector: vec,
			Payload: vectorindex.Payload{
				DocumentID: "doc-1",
				ChunkID:    "chunk-a",
				ChunkIndex: 0,
				PageNumber: &page2,
				Content:    "Methods were applied to the corpus.",
			},
		},
		{
			// Legacy payload with no chunk id, resolved by position.
			ID:     "vec-b",
			Vector: vec,
			Payload: vectorindex.Payload{
				DocumentID: "doc-1",
				ChunkIndex: 3,
				Content:    "Additional evaluation details.",
			},
		},
	}))

	msg, views, err := a.Ask(context.Background(), "chat-1", query)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byChunk := map[string]models.CitationView{}
	for _, v := range views {
		byChunk[v.ChunkID] = v
	}
	require.Contains(t, byChunk, "chunk-a")
	require.Contains(t, byChunk, "chunk-b")
	assert.Equal(t, "paper.pdf", byChunk["chunk-a"].DocumentFilename)
	assert.Equal(t, "Methods were applied to the corpus.", byChunk["chunk-a"].Preview)
	require.NotNil(t, byChunk["chunk-a"].PageNumber)
	assert.Equal(t, 2, *byChunk["chunk-a"].PageNumber)

	require.Len(t, messages.citations, 2)
	for _, c := range messages.citations {
		assert.Equal(t, msg.MessageID, c.MessageID)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Greater(t, c.Score, 0.3)
	}

	// The model saw the page-tagged context, not the marker.
	require.Len(t, llm.lastReq.Context, 2)
	joined := llm.lastReq.Context[0] + "\n" + llm.lastReq.Context[1]
	assert.Contains(t, joined, "[Page 2] Methods were applied")
	assert.NotContains(t, joined, NoContextMarker)
}

func TestAskDropsUnresolvableHits(t *testing.T) {
	a, index, _, messages, _, embedder := newFixture(t)
	query := "dangling vector"
	vec := queryVector(t, embedder, query)

	require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{
		{
			ID:     "vec-orphan",
			Vector: vec,
			Payload: vectorindex.Payload{
				DocumentID: "doc-gone",
				ChunkID:    "chunk-gone",
				ChunkIndex: 0,
				Content:    "Stale content from a deleted document.",
			},
		},
	}))

	_, views, err := a.Ask(context.Background(), "chat-1", query)
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Empty(t, messages.citations)
}

func TestAskDeduplicatesChunkCitations(t *testing.T) {
	a, index, chunks, messages, _, embedder := newFixture(t)
	query := "duplicate hit"
	vec := queryVector(t, embedder, query)

	chunks.byID["chunk-a"] = models.Chunk{
		ChunkID:    "chunk-a",
		DocumentID: "doc-1",
		ChunkIndex: 0,
		Content:    "Repeated passage.",
	}
	chunks.byPos[posKey("doc-1", 0)] = chunks.byID["chunk-a"]

	require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{
		{
			ID:     "vec-1",
			Vector: vec,
			Payload: vectorindex.Payload{
				DocumentID: "doc-1", ChunkID: "chunk-a", ChunkIndex: 0, Content: "Repeated passage.",
			},
		},
		{
			ID:     "vec-2",
			Vector: vec,
			Payload: vectorindex.Payload{
				DocumentID: "doc-1", ChunkIndex: 0, Content: "Repeated passage.",
			},
		},
	}))

	_, views, err := a.Ask(context.Background(), "chat-1", query)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Len(t, messages.citations, 1)
}

func TestAskGenerationFailureDegrades(t *testing.T) {
	a, index, chunks, messages, llm, embedder := newFixture(t)
	llm.err = errors.New("model endpoint down")

	query := "will this degrade?"
	vec := queryVector(t, embedder, query)
	chunks.byID["chunk-a"] = models.Chunk{ChunkID: "chunk-a", DocumentID: "doc-1", Content: "Some context."}
	require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{
		{ID: "vec-1", Vector: vec, Payload: vectorindex.Payload{DocumentID: "doc-1", ChunkID: "chunk-a", Content: "Some context."}},
	}))

	msg, views, err := a.Ask(context.Background(), "chat-1", query)
	require.NoError(t, err)

	assert.Contains(t, msg.Content, "I apologize")
	assert.Contains(t, msg.Content, "model endpoint down")
	assert.Empty(t, views)
	assert.Empty(t, messages.citations)

	require.Len(t, messages.inserted, 2)
	assert.Equal(t, "assistant", messages.inserted[1].Role)
}

func TestAskHistoryExcludesCurrentQuery(t *testing.T) {
	a, _, _, messages, llm, _ := newFixture(t)
	messages.history = []models.Message{
		{MessageID: "m1", ChatID: "chat-1", Role: "user", Content: "earlier question"},
		{MessageID: "m2", ChatID: "chat-1", Role: "assistant", Content: "earlier answer"},
	}

	_, _, err := a.Ask(context.Background(), "chat-1", "follow-up question")
	require.NoError(t, err)

	require.Len(t, llm.lastReq.History, 2)
	assert.Equal(t, "earlier question", llm.lastReq.History[0].Content)
	assert.Equal(t, "earlier answer", llm.lastReq.History[1].Content)
	for _, turn := range llm.lastReq.History {
		assert.NotEqual(t, "follow-up question", turn.Content)
	}
	assert.Equal(t, "follow-up question", llm.lastReq.Prompt)
}
