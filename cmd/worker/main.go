package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"bucket-rag/internal/chunker"
	"bucket-rag/internal/config"
	"bucket-rag/internal/embedding"
	"bucket-rag/internal/logger"
	"bucket-rag/internal/objectstore"
	"bucket-rag/internal/pipeline"
	"bucket-rag/internal/queue"
	"bucket-rag/internal/store"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	logger.Setup(cfg.Environment)

	st, err := store.FromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing store")
	}

	bucket, err := objectstore.New(cfg.Minio)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing object store")
	}

	chk, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chunker")
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	ingester := pipeline.New(bucket, chk, embedder, st)
	worker := queue.NewWorker(cfg.Redis, cfg.Queue, ingester)

	log.Info().Int("concurrency", cfg.Queue.Concurrency).Msg("worker starting")
	if err := worker.Run(); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
