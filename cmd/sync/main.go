package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"bucket-rag/internal/config"
	"bucket-rag/internal/logger"
	"bucket-rag/internal/objectstore"
	"bucket-rag/internal/queue"
	"bucket-rag/internal/reconciler"
	"bucket-rag/internal/store"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	showFailed := flag.Bool("failed", false, "List permanently failed jobs and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	logger.Setup(cfg.Environment)

	ctx := context.Background()
	q := queue.New(cfg.Redis, cfg.Queue)
	defer q.Close()

	if *showFailed {
		listFailed(ctx, q)
		return
	}

	st, err := store.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing store")
	}

	bucket, err := objectstore.New(cfg.Minio)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing object store")
	}

	report, err := reconciler.New(bucket, st, q).Reconcile(ctx)
	if err != nil {
		if errors.Is(err, reconciler.ErrQueueBusy) {
			log.Error().Msg("Cannot start sync: there are pending jobs in the queue")
		} else {
			log.Error().Err(err).Msg("Sync failed")
		}
		os.Exit(1)
	}

	fmt.Printf("Enqueued: %d file(s)\n", report.Enqueued)
	fmt.Printf("Skipped:  %d file(s)\n", report.Skipped)
	fmt.Printf("Deleted:  %d file(s)\n", report.Deleted)
}

func listFailed(ctx context.Context, q *queue.Queue) {
	failed, err := q.ListFailed(ctx, 50)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing failed jobs")
	}
	if len(failed) == 0 {
		fmt.Println("No failed jobs")
		return
	}
	for _, job := range failed {
		fmt.Printf("%s  %s  attempts=%d  %s\n", job.ID, job.FileKey, job.Attempts, job.LastError)
	}
}
