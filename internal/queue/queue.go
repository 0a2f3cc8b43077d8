package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"bucket-rag/internal/config"
)

// TaskIngestFile is the task type for one file ingestion job.
const TaskIngestFile = "ingest:file"

// Name is the asynq queue the ingestion tasks run on.
const Name = "ingest"

// IngestPayload identifies the object a job must process.
type IngestPayload struct {
	FileKey     string `json:"file_key"`
	Fingerprint string `json:"fingerprint"`
}

// FailedJob is one permanently failed (retries exhausted or permanent
// error) job, surfaced for operator inspection.
type FailedJob struct {
	ID          string
	FileKey     string
	Fingerprint string
	Attempts    int
	LastError   string
	FailedAt    time.Time
}

// Queue enqueues ingestion jobs on Redis and inspects queue state.
// Delivery is at-least-once; consumers tolerate duplicate execution.
type Queue struct {
	client      *asynq.Client
	inspector   *asynq.Inspector
	maxAttempts int
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func New(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *Queue {
	opt := RedisOpt(redisCfg)
	return &Queue{
		client:      asynq.NewClient(opt),
		inspector:   asynq.NewInspector(opt),
		maxAttempts: queueCfg.MaxAttempts,
	}
}

func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.inspector.Close()
}

// Enqueue schedules one ingestion job for (fileKey, fingerprint). The job
// gets maxAttempts executions in total before it is archived.
func (q *Queue) Enqueue(ctx context.Context, fileKey, fingerprint string) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(IngestPayload{FileKey: fileKey, Fingerprint: fingerprint})
	if err != nil {
		return nil, fmt.Errorf("queue: encode payload for %s: %w", fileKey, err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskIngestFile, payload),
		asynq.Queue(Name),
		asynq.MaxRetry(q.maxAttempts-1),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: enqueue %s: %w", fileKey, err)
	}
	return info, nil
}

// EnqueueIngestion is Enqueue without the task handle, for callers that
// only care about success.
func (q *Queue) EnqueueIngestion(ctx context.Context, fileKey, fingerprint string) error {
	_, err := q.Enqueue(ctx, fileKey, fingerprint)
	return err
}

// HasPendingWork reports whether any job is waiting, active, or delayed
// (scheduled or awaiting retry).
func (q *Queue) HasPendingWork(ctx context.Context) (bool, error) {
	info, err := q.inspector.GetQueueInfo(Name)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("queue: inspect: %w", err)
	}
	return info.Pending+info.Active+info.Scheduled+info.Retry > 0, nil
}

// ListFailed returns the archived jobs: attempts exhausted or permanently
// failed. They do not block other jobs.
func (q *Queue) ListFailed(ctx context.Context, pageSize int) ([]FailedJob, error) {
	tasks, err := q.inspector.ListArchivedTasks(Name, asynq.PageSize(pageSize))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: list archived: %w", err)
	}

	failed := make([]FailedJob, 0, len(tasks))
	for _, task := range tasks {
		var payload IngestPayload
		_ = json.Unmarshal(task.Payload, &payload)
		failed = append(failed, FailedJob{
			ID:          task.ID,
			FileKey:     payload.FileKey,
			Fingerprint: payload.Fingerprint,
			Attempts:    task.Retried + 1,
			LastError:   task.LastErr,
			FailedAt:    task.LastFailedAt,
		})
	}
	return failed, nil
}

// RetryDelay is the exponential backoff schedule: base for the first retry,
// doubling on each one after that. retried counts completed retries, so the
// first retry arrives as 0.
func RetryDelay(retried int, base time.Duration) time.Duration {
	if retried < 0 {
		retried = 0
	}
	return base * time.Duration(1<<retried)
}
