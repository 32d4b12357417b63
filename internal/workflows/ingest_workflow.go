package workflows

import (
	"fmt"
	"strings"
	"time"

	"intellidoc/internal/activities"
	"intellidoc/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetIngestStatus = "GetIngestStatus"

// DocumentIngestWorkflow drives one document from uploaded file to
// searchable chunks: extract pages, split into passages, embed, write
// first-phase vectors, persist chunk rows, then enrich the vector
// payloads with the durable chunk ids. Every step failure lands the
// document in status failed with a reason instead of failing the
// workflow run itself.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	status := IngestStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      models.StatusProcessing,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	markFailed := func(reason string) {
		status.Status = models.StatusFailed
		status.FailReason = reason
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
			DocumentID: input.DocumentID,
			Status:     models.StatusFailed,
			FailReason: reason,
		}).Get(ctx, nil)
	}

	status.CurrentStep = "stat_file"
	status.Steps[status.CurrentStep] = "processing"
	var statOut activities.StatFileOutput
	if err := workflow.ExecuteActivity(ctx, "StatFileActivity", activities.StatFileInput{FilePath: input.FilePath}).Get(ctx, &statOut); err != nil {
		markFailed("uploaded file missing or unreadable: " + err.Error())
		return status.Status, nil
	}
	status.Steps[status.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Status:     models.StatusProcessing,
	}).Get(ctx, nil)

	status.CurrentStep = "extract_pages"
	status.Steps[status.CurrentStep] = "processing"
	var pagesOut activities.ExtractPagesOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractPagesActivity", activities.ExtractPagesInput{FilePath: input.FilePath}).Get(ctx, &pagesOut); err != nil {
		if isNoTextError(err) {
			markFailed("no extractable text found in document")
		} else {
			markFailed("text extraction failed: " + err.Error())
		}
		return status.Status, nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "chunk_pages"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkPagesOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkPagesActivity", activities.ChunkPagesInput{
		DocumentID:   input.DocumentID,
		Pages:        pagesOut.Pages,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		markFailed("chunking failed: " + err.Error())
		return status.Status, nil
	}
	if len(chunkOut.Passages) == 0 {
		markFailed("no extractable text found in document")
		return status.Status, nil
	}
	status.ChunkCount = len(chunkOut.Passages)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed_chunks"
	status.Steps[status.CurrentStep] = "processing"
	inputs := make([]string, 0, len(chunkOut.Passages))
	for _, p := range chunkOut.Passages {
		inputs = append(inputs, p.Content)
	}
	var embedOut activities.EmbedChunksOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", activities.EmbedChunksInput{
		Operation:  "ingest_chunk_embed",
		DocumentID: input.DocumentID,
		Inputs:     inputs,
	}).Get(ctx, &embedOut); err != nil {
		markFailed("embedding failed: " + err.Error())
		return status.Status, nil
	}
	// A count mismatch means the provider response cannot be trusted to
	// line up with the passages. Nothing is persisted.
	if len(embedOut.Vectors) != len(chunkOut.Passages) {
		markFailed(fmt.Sprintf("embedding count mismatch: got %d vectors for %d passages", len(embedOut.Vectors), len(chunkOut.Passages)))
		return status.Status, nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "upsert_vectors"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "PurgeDocumentVectorsActivity", activities.PurgeDocumentVectorsInput{DocumentID: input.DocumentID}).Get(ctx, nil); err != nil {
		markFailed("vector index unavailable: " + err.Error())
		return status.Status, nil
	}
	var upsertOut activities.UpsertVectorsOutput
	if err := workflow.ExecuteActivity(ctx, "UpsertVectorsActivity", activities.UpsertVectorsInput{
		DocumentID: input.DocumentID,
		Passages:   chunkOut.Passages,
		Vectors:    embedOut.Vectors,
	}).Get(ctx, &upsertOut); err != nil {
		markFailed("vector upsert failed: " + err.Error())
		return status.Status, nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "persist_chunks"
	status.Steps[status.CurrentStep] = "processing"
	var persistOut activities.PersistChunksOutput
	if err := workflow.ExecuteActivity(ctx, "PersistChunksActivity", activities.PersistChunksInput{
		DocumentID: input.DocumentID,
		Passages:   chunkOut.Passages,
	}).Get(ctx, &persistOut); err != nil {
		markFailed("persisting chunks failed: " + err.Error())
		return status.Status, nil
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "enrich_vectors"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "EnrichVectorPayloadsActivity", activities.EnrichVectorPayloadsInput{
		DocumentID: input.DocumentID,
		Passages:   chunkOut.Passages,
		Vectors:    embedOut.Vectors,
		ChunkIDs:   persistOut.ChunkIDs,
	}).Get(ctx, nil); err != nil {
		// Chunks and first-phase vectors are durable; only the payload
		// enrichment is missing. Retrieval still works through the
		// position fallback, so this is not a failed document.
		workflow.GetLogger(ctx).Warn("vector payload enrichment failed", "document_id", input.DocumentID, "error", err)
	} else {
		status.Steps[status.CurrentStep] = "done"
	}

	status.CurrentStep = "complete"
	status.Status = models.StatusCompleted
	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Status:     models.StatusCompleted,
	}).Get(ctx, nil)
	return status.Status, nil
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}
