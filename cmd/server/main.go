package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynqmon"
	"github.com/rs/zerolog/log"

	"bucket-rag/internal/config"
	"bucket-rag/internal/embedding"
	"bucket-rag/internal/logger"
	"bucket-rag/internal/queue"
	"bucket-rag/internal/rag"
	"bucket-rag/internal/server"
	"bucket-rag/internal/store"
)

const adminPath = "/admin/queues"

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	logger.Setup(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing store")
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	llm, err := rag.NewLLM(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing llm client")
	}
	answerer := rag.NewAnswerer(embedder, st, llm, cfg.RAG.TopK)

	// Queue monitoring UI, the operator's view of job state.
	monitor := asynqmon.New(asynqmon.Options{
		RootPath:     adminPath,
		RedisConnOpt: queue.RedisOpt(cfg.Redis),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(answerer, adminPath, monitor),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("admin", adminPath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
