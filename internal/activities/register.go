package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.StatFileActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
	w.RegisterActivity(a.ExtractPagesActivity)
	w.RegisterActivity(a.ChunkPagesActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertVectorsActivity)
	w.RegisterActivity(a.PersistChunksActivity)
	w.RegisterActivity(a.EnrichVectorPayloadsActivity)
	w.RegisterActivity(a.PurgeDocumentVectorsActivity)
}
