package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"bucket-rag/internal/embedding"
	"bucket-rag/internal/parser"
	"bucket-rag/internal/store"
)

// ObjectFetcher downloads one object's full content.
type ObjectFetcher interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// Chunker splits decoded text into retrieval units.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder turns texts into vectors, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]embedding.ChunkEmbedding, error)
}

// Pipeline runs the full ingestion sequence for one file: idempotency
// check, fetch, parse, chunk, embed, persist, mark processed. Steps are
// strictly sequential; the first failure aborts the run and the error
// propagates to the queue for retry bookkeeping.
type Pipeline struct {
	fetcher  ObjectFetcher
	chunker  Chunker
	embedder Embedder
	store    store.Store
}

func New(fetcher ObjectFetcher, chunker Chunker, embedder Embedder, st store.Store) *Pipeline {
	return &Pipeline{fetcher: fetcher, chunker: chunker, embedder: embedder, store: st}
}

// Ingest processes one (fileKey, fingerprint) pair. Re-delivery of an
// already-completed job is a no-op: only a File marked processed
// short-circuits, so a crash between persist and mark is healed by simply
// running again. Persistence upserts the File by fingerprint and replaces
// all chunks for the file, so partial writes from a previous attempt never
// leave duplicates.
func (p *Pipeline) Ingest(ctx context.Context, fileKey, fingerprint string) error {
	started := time.Now()
	logger := log.With().Str("file", fileKey).Str("fingerprint", fingerprint).Logger()

	stepStarted := time.Now()
	existing, err := p.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("pipeline: idempotency check for %s: %w", fileKey, err)
	}
	if existing != nil && existing.ProcessedAt != nil {
		logger.Warn().Msg("already processed, skipping")
		return nil
	}
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Msg("checked existing file")

	stepStarted = time.Now()
	data, err := p.fetcher.Get(ctx, fileKey)
	if err != nil {
		return &FetchError{Key: fileKey, Err: err}
	}
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Int("bytes", len(data)).Msg("downloaded file")

	stepStarted = time.Now()
	text, err := parser.Parse(data, fileKey)
	if err != nil {
		var unsupported *parser.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return Permanent(err)
		}
		return fmt.Errorf("pipeline: parse %s: %w", fileKey, err)
	}
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Msg("parsed file")

	stepStarted = time.Now()
	chunks := p.chunker.Chunk(text)
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Int("chunks", len(chunks)).Msg("chunked text")

	stepStarted = time.Now()
	embedded, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("pipeline: embed %s: %w", fileKey, err)
	}
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Int("embedded", len(embedded)).Msg("embedded chunks")

	stepStarted = time.Now()
	file := existing
	if file == nil {
		file, err = p.store.CreateFile(ctx, fileKey, fingerprint)
		if err != nil {
			return fmt.Errorf("pipeline: create file record for %s: %w", fileKey, err)
		}
	}
	rows := make([]store.Chunk, len(embedded))
	for i, item := range embedded {
		rows[i] = store.Chunk{Index: item.Index, Content: item.Text, Vector: item.Vector}
	}
	if err := p.store.ReplaceChunks(ctx, file.ID, rows); err != nil {
		return fmt.Errorf("pipeline: persist chunks for %s: %w", fileKey, err)
	}
	logger.Debug().Dur("elapsed", time.Since(stepStarted)).Msg("stored chunks")

	// Commit point: only a processed record short-circuits future runs.
	if err := p.store.MarkProcessed(ctx, file.ID); err != nil {
		return fmt.Errorf("pipeline: mark %s processed: %w", fileKey, err)
	}

	logger.Info().
		Int("chunks", len(rows)).
		Dur("elapsed", time.Since(started)).
		Msg("file ingested")
	return nil
}
