package workflows

import (
	"context"
	"errors"
	"testing"

	"intellidoc/internal/activities"
	"intellidoc/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

type ingestEnv struct {
	env           *testsuite.TestWorkflowEnvironment
	statusUpdates []activities.UpdateDocumentStatusInput
	persisted     int
	enriched      bool
}

func newIngestEnv(t *testing.T) *ingestEnv {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	ie := &ingestEnv{env: ts.NewTestWorkflowEnvironment()}
	env := ie.env
	env.RegisterWorkflow(DocumentIngestWorkflow)

	registerActivityName(env, "UpdateDocumentStatusActivity", func(_ context.Context, in activities.UpdateDocumentStatusInput) error {
		ie.statusUpdates = append(ie.statusUpdates, in)
		return nil
	})
	registerActivityName(env, "StatFileActivity", func(context.Context, activities.StatFileInput) (activities.StatFileOutput, error) {
		return activities.StatFileOutput{Size: 1024}, nil
	})
	registerActivityName(env, "ExtractPagesActivity", func(context.Context, activities.ExtractPagesInput) (activities.ExtractPagesOutput, error) {
		return activities.ExtractPagesOutput{Pages: []activities.PageItem{{Number: 1, Text: "alpha beta gamma"}}}, nil
	})
	registerActivityName(env, "ChunkPagesActivity", func(context.Context, activities.ChunkPagesInput) (activities.ChunkPagesOutput, error) {
		one := 1
		return activities.ChunkPagesOutput{Passages: []activities.PassageItem{
			{Index: 0, PageNumber: &one, Content: "alpha beta"},
			{Index: 1, PageNumber: &one, Content: "beta gamma"},
		}}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(_ context.Context, in activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		vectors := make([][]float32, len(in.Inputs))
		for i := range vectors {
			vectors[i] = []float32{0.1, 0.2}
		}
		return activities.EmbedChunksOutput{Vectors: vectors, ProviderName: "mock", Model: "mock"}, nil
	})
	registerActivityName(env, "PurgeDocumentVectorsActivity", func(context.Context, activities.PurgeDocumentVectorsInput) error {
		return nil
	})
	registerActivityName(env, "UpsertVectorsActivity", func(_ context.Context, in activities.UpsertVectorsInput) (activities.UpsertVectorsOutput, error) {
		ids := make([]string, len(in.Passages))
		for i := range ids {
			ids[i] = "vec-" + in.DocumentID
		}
		return activities.UpsertVectorsOutput{VectorIDs: ids}, nil
	})
	registerActivityName(env, "PersistChunksActivity", func(_ context.Context, in activities.PersistChunksInput) (activities.PersistChunksOutput, error) {
		ie.persisted += len(in.Passages)
		ids := make([]string, len(in.Passages))
		for i := range ids {
			ids[i] = "chunk-id"
		}
		return activities.PersistChunksOutput{ChunkIDs: ids}, nil
	})
	registerActivityName(env, "EnrichVectorPayloadsActivity", func(context.Context, activities.EnrichVectorPayloadsInput) error {
		ie.enriched = true
		return nil
	})
	return ie
}

func ingestInput() DocumentIngestInput {
	return DocumentIngestInput{
		DocumentID:   "doc-1",
		FilePath:     "/tmp/doc.pdf",
		Filename:     "doc.pdf",
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

func lastStatus(t *testing.T, ie *ingestEnv) activities.UpdateDocumentStatusInput {
	t.Helper()
	require.NotEmpty(t, ie.statusUpdates)
	return ie.statusUpdates[len(ie.statusUpdates)-1]
}

func TestDocumentIngestWorkflowSuccess(t *testing.T) {
	ie := newIngestEnv(t)

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusCompleted, out)

	require.Equal(t, models.StatusProcessing, ie.statusUpdates[0].Status)
	final := lastStatus(t, ie)
	require.Equal(t, models.StatusCompleted, final.Status)
	require.Empty(t, final.FailReason)
	require.Equal(t, 2, ie.persisted)
	require.True(t, ie.enriched)
}

func TestDocumentIngestWorkflowMissingFileFailsGracefully(t *testing.T) {
	ie := newIngestEnv(t)
	ie.env.OnActivity("StatFileActivity", mock.Anything, mock.Anything).
		Return(activities.StatFileOutput{}, errors.New("stat uploaded file: no such file or directory"))

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)

	final := lastStatus(t, ie)
	require.Equal(t, models.StatusFailed, final.Status)
	require.Contains(t, final.FailReason, "missing or unreadable")
	require.Zero(t, ie.persisted)
}

func TestDocumentIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	ie := newIngestEnv(t)
	ie.env.OnActivity("ExtractPagesActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractPagesOutput{}, errors.New("no extractable text found in PDF"))

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)

	final := lastStatus(t, ie)
	require.Equal(t, "no extractable text found in document", final.FailReason)
	require.Zero(t, ie.persisted)
}

func TestDocumentIngestWorkflowZeroPassagesFailsGracefully(t *testing.T) {
	ie := newIngestEnv(t)
	ie.env.OnActivity("ChunkPagesActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkPagesOutput{Passages: []activities.PassageItem{}}, nil)

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)
	require.Zero(t, ie.persisted)
}

func TestDocumentIngestWorkflowEmbeddingMismatchPersistsNothing(t *testing.T) {
	ie := newIngestEnv(t)
	ie.env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock"}, nil)

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)

	final := lastStatus(t, ie)
	require.Contains(t, final.FailReason, "embedding count mismatch")
	require.Zero(t, ie.persisted)
	require.False(t, ie.enriched)
}

func TestDocumentIngestWorkflowEnrichFailureStillCompletes(t *testing.T) {
	ie := newIngestEnv(t)
	ie.env.OnActivity("EnrichVectorPayloadsActivity", mock.Anything, mock.Anything).
		Return(errors.New("index briefly unavailable"))

	ie.env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput())
	require.True(t, ie.env.IsWorkflowCompleted())
	require.NoError(t, ie.env.GetWorkflowError())

	var out string
	require.NoError(t, ie.env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusCompleted, out)
	require.Equal(t, 2, ie.persisted)
}
