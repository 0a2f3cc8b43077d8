package store

import (
	"context"
	"time"
)

// File is one registry record per known source object. ProcessedAt is nil
// until the ingestion pipeline has fully indexed the content; fingerprint is
// the content-derived identity used to decide whether reprocessing is
// required.
type File struct {
	ID          string
	Name        string
	Fingerprint string
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// Chunk is one token window of a file's text, ready to persist. Index is
// the chunk's zero-based position within the file.
type Chunk struct {
	Index   int
	Content string
	Vector  []float32
}

// ScoredChunk is a retrieval hit: chunk content with its similarity to the
// query vector, higher is closer.
type ScoredChunk struct {
	Content    string
	Similarity float64
}

// FileRegistry tracks File records.
type FileRegistry interface {
	// CreateFile upserts a record by fingerprint and returns it.
	CreateFile(ctx context.Context, name, fingerprint string) (*File, error)
	// FindByFingerprint returns nil, nil when no record matches.
	FindByFingerprint(ctx context.Context, fingerprint string) (*File, error)
	ListFiles(ctx context.Context) ([]File, error)
	MarkProcessed(ctx context.Context, fileID string) error
	// DeleteFile removes the record and all chunks it owns.
	DeleteFile(ctx context.Context, fileID string) error
}

// VectorIndex persists chunks keyed by owning file and answers nearest-K
// queries. ReplaceChunks is delete-then-insert so a retried ingestion never
// leaves duplicate rows behind.
type VectorIndex interface {
	ReplaceChunks(ctx context.Context, fileID string, chunks []Chunk) error
	TopK(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
}

// Store is the full File/Chunk persistence surface.
type Store interface {
	FileRegistry
	VectorIndex
}
