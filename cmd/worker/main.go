package main

import (
	"context"
	"time"

	"intellidoc/internal/activities"
	"intellidoc/internal/config"
	"intellidoc/internal/storage"
	"intellidoc/internal/vectorindex"
	"intellidoc/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal("temporal dial failed", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()

	index := vectorindex.NewQdrant(vectorindex.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	})
	if err := index.EnsureCollection(ctx, cfg.EmbedDim); err != nil {
		log.Fatal("vector collection setup failed", zap.Error(err))
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	a, err := activities.New(cfg, db, index, log)
	if err != nil {
		log.Fatal("activities init failed", zap.Error(err))
	}
	activities.Register(w, a)

	log.Info("intellidoc worker started",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("task_queue", cfg.TemporalTaskQueue),
		zap.String("collection", cfg.QdrantCollection),
		zap.Int("embed_dim", cfg.EmbedDim),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker exited", zap.Error(err))
	}
}
