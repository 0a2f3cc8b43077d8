package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"bucket-rag/internal/objectstore"
	"bucket-rag/internal/store"
)

// ErrQueueBusy is returned when reconciliation is requested while
// ingestion jobs are waiting, active, or delayed. The deletion pass assumes
// the registry reflects settled state, so the two must not interleave.
var ErrQueueBusy = errors.New("reconciler: ingestion queue has pending jobs")

// ObjectLister lists the bucket's current contents.
type ObjectLister interface {
	List(ctx context.Context) ([]objectstore.Object, error)
}

// JobQueue is the slice of the ingestion queue reconciliation needs.
type JobQueue interface {
	HasPendingWork(ctx context.Context) (bool, error)
	EnqueueIngestion(ctx context.Context, fileKey, fingerprint string) error
}

// Report counts the actions one reconciliation run performed.
type Report struct {
	Enqueued int
	Skipped  int
	Deleted  int
}

// Reconciler converges the file registry toward the bucket's contents:
// unknown or unfinished objects are enqueued for ingestion, registry
// records whose content is gone from the bucket are deleted along with
// their chunks. Runs are best-effort and idempotent; a failed run is safe
// to repeat.
type Reconciler struct {
	bucket   ObjectLister
	registry store.FileRegistry
	queue    JobQueue
}

func New(bucket ObjectLister, registry store.FileRegistry, queue JobQueue) *Reconciler {
	return &Reconciler{bucket: bucket, registry: registry, queue: queue}
}

// Reconcile runs one pass. It refuses to start while the queue has pending
// work, failing with ErrQueueBusy before any side effect.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	started := time.Now()

	busy, err := r.queue.HasPendingWork(ctx)
	if err != nil {
		return report, fmt.Errorf("reconciler: check queue: %w", err)
	}
	if busy {
		return report, ErrQueueBusy
	}

	log.Info().Msg("starting bucket synchronization")

	listStarted := time.Now()
	objects, err := r.bucket.List(ctx)
	if err != nil {
		return report, fmt.Errorf("reconciler: list bucket: %w", err)
	}
	log.Info().Int("objects", len(objects)).Dur("elapsed", time.Since(listStarted)).Msg("listed bucket")

	files, err := r.registry.ListFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("reconciler: list registry: %w", err)
	}
	log.Info().Int("files", len(files)).Msg("listed registry")

	inBucket := make(map[string]objectstore.Object, len(objects))
	for _, obj := range objects {
		if obj.Fingerprint != "" {
			inBucket[obj.Fingerprint] = obj
		}
	}

	for _, obj := range objects {
		if obj.Fingerprint == "" {
			// Without a fingerprint the object cannot be deduplicated safely.
			log.Warn().Str("object", obj.Name).Msg("skipping object with no fingerprint")
			report.Skipped++
			continue
		}

		existing, err := r.registry.FindByFingerprint(ctx, obj.Fingerprint)
		if err != nil {
			return report, fmt.Errorf("reconciler: look up %s: %w", obj.Name, err)
		}
		if existing != nil && existing.ProcessedAt != nil {
			log.Debug().Str("object", obj.Name).Msg("already processed")
			report.Skipped++
			continue
		}

		// Covers brand-new files and records that never finished processing.
		if err := r.queue.EnqueueIngestion(ctx, obj.Name, obj.Fingerprint); err != nil {
			return report, fmt.Errorf("reconciler: enqueue %s: %w", obj.Name, err)
		}
		log.Info().Str("object", obj.Name).Msg("enqueued for ingestion")
		report.Enqueued++
	}

	for _, file := range files {
		if _, ok := inBucket[file.Fingerprint]; ok {
			continue
		}
		if err := r.registry.DeleteFile(ctx, file.ID); err != nil {
			return report, fmt.Errorf("reconciler: delete %s: %w", file.Name, err)
		}
		log.Warn().Str("file", file.Name).Msg("removed file no longer in bucket")
		report.Deleted++
	}

	log.Info().
		Int("enqueued", report.Enqueued).
		Int("skipped", report.Skipped).
		Int("deleted", report.Deleted).
		Dur("elapsed", time.Since(started)).
		Msg("synchronization complete")
	return report, nil
}
