package store

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

// Memory implements Store on an in-process chromem collection plus a map
// registry. It backs local development and tests; no external services.
// chromem scores by cosine similarity, applied at both insert and query
// time.
type Memory struct {
	mu         sync.Mutex
	collection *chromem.Collection

	files         map[string]*File  // by id
	byFingerprint map[string]string // fingerprint -> file id
	chunkCount    map[string]int    // file id -> persisted chunks
	total         int
}

var _ Store = (*Memory)(nil)

func NewMemory() (*Memory, error) {
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection("chunks", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create memory collection: %w", err)
	}
	return &Memory{
		collection:    collection,
		files:         make(map[string]*File),
		byFingerprint: make(map[string]string),
		chunkCount:    make(map[string]int),
	}, nil
}

func (m *Memory) CreateFile(_ context.Context, name, fingerprint string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byFingerprint[fingerprint]; ok {
		file := m.files[id]
		file.Name = name
		return copyFile(file), nil
	}

	file := &File{
		ID:          uuid.NewString(),
		Name:        name,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now(),
	}
	m.files[file.ID] = file
	m.byFingerprint[fingerprint] = file.ID
	return copyFile(file), nil
}

func (m *Memory) FindByFingerprint(_ context.Context, fingerprint string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byFingerprint[fingerprint]
	if !ok {
		return nil, nil
	}
	return copyFile(m.files[id]), nil
}

func (m *Memory) ListFiles(_ context.Context) ([]File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := make([]File, 0, len(m.files))
	for _, file := range m.files {
		files = append(files, *copyFile(file))
	}
	return files, nil
}

func (m *Memory) MarkProcessed(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("store: unknown file %s", fileID)
	}
	now := time.Now()
	file.ProcessedAt = &now
	return nil
}

func (m *Memory) DeleteFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[fileID]
	if !ok {
		return nil
	}
	if err := m.deleteChunksLocked(ctx, fileID); err != nil {
		return err
	}
	delete(m.byFingerprint, file.Fingerprint)
	delete(m.files, fileID)
	return nil
}

func (m *Memory) ReplaceChunks(ctx context.Context, fileID string, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.deleteChunksLocked(ctx, fileID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        fileID + ":" + strconv.Itoa(chunk.Index),
			Content:   chunk.Content,
			Embedding: chunk.Vector,
			Metadata:  map[string]string{"file_id": fileID},
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("store: add chunks for file %s: %w", fileID, err)
	}
	m.chunkCount[fileID] = len(chunks)
	m.total += len(chunks)
	return nil
}

func (m *Memory) TopK(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k > m.total {
		k = m.total
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("store: top-k query: %w", err)
	}

	scored := make([]ScoredChunk, len(results))
	for i, result := range results {
		scored[i] = ScoredChunk{Content: result.Content, Similarity: float64(result.Similarity)}
	}
	return scored, nil
}

func (m *Memory) deleteChunksLocked(ctx context.Context, fileID string) error {
	if m.chunkCount[fileID] == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, map[string]string{"file_id": fileID}, nil); err != nil {
		return fmt.Errorf("store: delete chunks for file %s: %w", fileID, err)
	}
	m.total -= m.chunkCount[fileID]
	delete(m.chunkCount, fileID)
	return nil
}

func copyFile(f *File) *File {
	clone := *f
	if f.ProcessedAt != nil {
		t := *f.ProcessedAt
		clone.ProcessedAt = &t
	}
	return &clone
}
