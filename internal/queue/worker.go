package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"bucket-rag/internal/config"
	"bucket-rag/internal/pipeline"
)

// Ingester runs the full ingestion pipeline for one file.
type Ingester interface {
	Ingest(ctx context.Context, fileKey, fingerprint string) error
}

// Worker consumes ingestion tasks with bounded concurrency. Failed
// attempts retry with exponential backoff; permanent errors skip the retry
// budget and archive immediately. A worker crash mid-task leads to
// redelivery, which the pipeline's idempotency makes safe.
type Worker struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	ingester Ingester
}

func NewWorker(redisCfg config.RedisConfig, queueCfg config.QueueConfig, ingester Ingester) *Worker {
	srv := asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
		Concurrency: queueCfg.Concurrency,
		Queues:      map[string]int{Name: 1},
		RetryDelayFunc: func(retried int, _ error, _ *asynq.Task) time.Duration {
			return RetryDelay(retried, queueCfg.BackoffBase)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			taskID, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error().
				Err(err).
				Str("task_id", taskID).
				Int("attempt", retried+1).
				Int("max_attempts", maxRetry+1).
				Msg("job failed")
		}),
		Logger: zerologAdapter{},
	})

	w := &Worker{srv: srv, mux: asynq.NewServeMux(), ingester: ingester}
	w.mux.HandleFunc(TaskIngestFile, w.handleIngest)
	return w
}

// Run blocks until Shutdown or a signal stops the server.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func (w *Worker) handleIngest(ctx context.Context, task *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// A malformed payload never deserializes better on retry.
		return fmt.Errorf("queue: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	started := time.Now()
	logger := log.With().Str("task_id", taskID).Str("file", payload.FileKey).Logger()
	logger.Info().Int("attempt", retried+1).Msg("job started")

	if err := w.ingester.Ingest(ctx, payload.FileKey, payload.Fingerprint); err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("job attempt failed")
		if pipeline.IsPermanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info().Dur("elapsed", time.Since(started)).Msg("job completed")
	return nil
}

// zerologAdapter routes asynq's internal logging through zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Debug(args ...interface{}) { log.Debug().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Info(args ...interface{})  { log.Info().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Warn(args ...interface{})  { log.Warn().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Error(args ...interface{}) { log.Error().Msg(fmt.Sprint(args...)) }
func (zerologAdapter) Fatal(args ...interface{}) { log.Fatal().Msg(fmt.Sprint(args...)) }
