package main

import (
	"net/http"

	"intellidoc/internal/api"
	"intellidoc/internal/config"

	"github.com/joho/godotenv"
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

	h := api.NewServer(cfg, log)
	log.Info("intellidoc api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("embed_provider", cfg.EmbedProvider),
		zap.String("llm_provider", cfg.LLMProvider),
	)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal("api server exited", zap.Error(err))
	}
}
