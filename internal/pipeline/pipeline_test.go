package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bucket-rag/internal/embedding"
	"bucket-rag/internal/store"
)

type fakeFetcher struct {
	objects map[string][]byte
	calls   int
	err     error
}

func (f *fakeFetcher) Get(_ context.Context, name string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

// lineChunker splits on newlines, one chunk per non-empty line.
type lineChunker struct{}

func (lineChunker) Chunk(text string) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([]embedding.ChunkEmbedding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	results := make([]embedding.ChunkEmbedding, len(texts))
	for i, text := range texts {
		results[i] = embedding.ChunkEmbedding{
			Vector: []float32{float32(i + 1), 0, 0},
			Text:   text,
			Index:  i,
		}
	}
	return results, nil
}

func newTestPipeline(t *testing.T, fetcher *fakeFetcher, embedder *fakeEmbedder) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	return New(fetcher, lineChunker{}, embedder, st), st
}

func TestIngestSuccess(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{objects: map[string][]byte{"a.txt": []byte("hello world")}}
	p, st := newTestPipeline(t, fetcher, &fakeEmbedder{})

	require.NoError(t, p.Ingest(ctx, "a.txt", "f1"))

	file, err := st.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.NotNil(t, file.ProcessedAt)
	assert.Equal(t, "a.txt", file.Name)

	hits, err := st.TopK(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "hello world", hits[0].Content)
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{objects: map[string][]byte{"a.txt": []byte("hello world")}}
	p, st := newTestPipeline(t, fetcher, &fakeEmbedder{})

	require.NoError(t, p.Ingest(ctx, "a.txt", "f1"))
	require.NoError(t, p.Ingest(ctx, "a.txt", "f1"))

	assert.Equal(t, 1, fetcher.calls, "second run must short-circuit before fetching")

	hits, err := st.TopK(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "no duplicate chunks after re-delivery")
}

func TestIngestRetryAfterPartialPersist(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{objects: map[string][]byte{"a.txt": []byte("one\ntwo")}}
	p, st := newTestPipeline(t, fetcher, &fakeEmbedder{})

	// Simulate a crash between persist and mark-processed: the record
	// exists with chunks but is not processed.
	file, err := st.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	require.NoError(t, st.ReplaceChunks(ctx, file.ID, []store.Chunk{
		{Index: 0, Content: "stale", Vector: []float32{9, 9, 9}},
	}))

	require.NoError(t, p.Ingest(ctx, "a.txt", "f1"))

	found, err := st.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	assert.NotNil(t, found.ProcessedAt)

	hits, err := st.TopK(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "stale partial chunks are replaced, not appended")
}

func TestIngestFetchErrorIsTransient(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection reset")}
	p, _ := newTestPipeline(t, fetcher, &fakeEmbedder{})

	err := p.Ingest(context.Background(), "a.txt", "f1")
	require.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.False(t, IsPermanent(err))
}

func TestIngestUnsupportedFormatIsPermanent(t *testing.T) {
	fetcher := &fakeFetcher{objects: map[string][]byte{"a.zip": []byte("binary")}}
	p, st := newTestPipeline(t, fetcher, &fakeEmbedder{})

	err := p.Ingest(context.Background(), "a.zip", "f1")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	file, lookupErr := st.FindByFingerprint(context.Background(), "f1")
	require.NoError(t, lookupErr)
	assert.Nil(t, file, "failed parse must not create a registry record")
}

func TestIngestEmbedFailureLeavesFileUnprocessed(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{objects: map[string][]byte{"a.txt": []byte("hello")}}
	embedder := &fakeEmbedder{err: errors.New("rate limited")}
	p, st := newTestPipeline(t, fetcher, embedder)

	err := p.Ingest(ctx, "a.txt", "f1")
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	file, lookupErr := st.FindByFingerprint(ctx, "f1")
	require.NoError(t, lookupErr)
	assert.Nil(t, file)
}
