package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory()
	require.NoError(t, err)
	return m
}

func TestMemoryRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	missing, err := m.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	file, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	assert.NotEmpty(t, file.ID)
	assert.Nil(t, file.ProcessedAt)

	found, err := m.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, file.ID, found.ID)

	require.NoError(t, m.MarkProcessed(ctx, file.ID))
	found, err = m.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	assert.NotNil(t, found.ProcessedAt)
}

func TestMemoryCreateFileUpsertsByFingerprint(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	first, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	second, err := m.CreateFile(ctx, "renamed.txt", "f1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "renamed.txt", second.Name)

	files, err := m.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMemoryDeleteFileCascadesChunks(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	file, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	require.NoError(t, m.ReplaceChunks(ctx, file.ID, []Chunk{
		{Index: 0, Content: "first", Vector: []float32{1, 0, 0}},
		{Index: 1, Content: "second", Vector: []float32{0, 1, 0}},
	}))

	require.NoError(t, m.DeleteFile(ctx, file.ID))

	gone, err := m.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	hits, err := m.TopK(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "no orphaned chunks may remain")
}

func TestMemoryReplaceChunksIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	file, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)

	chunks := []Chunk{
		{Index: 0, Content: "first", Vector: []float32{1, 0, 0}},
		{Index: 1, Content: "second", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, m.ReplaceChunks(ctx, file.ID, chunks))
	require.NoError(t, m.ReplaceChunks(ctx, file.ID, chunks))

	hits, err := m.TopK(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "re-persisting must not duplicate chunks")
}

func TestMemoryTopKRanking(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	file, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	require.NoError(t, m.ReplaceChunks(ctx, file.ID, []Chunk{
		{Index: 0, Content: "east", Vector: []float32{1, 0, 0}},
		{Index: 1, Content: "north", Vector: []float32{0, 1, 0}},
		{Index: 2, Content: "up", Vector: []float32{0, 0, 1}},
	}))

	hits, err := m.TopK(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "east", hits[0].Content)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestMemoryTopKClampsK(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	hits, err := m.TopK(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	file, err := m.CreateFile(ctx, "a.txt", "f1")
	require.NoError(t, err)
	require.NoError(t, m.ReplaceChunks(ctx, file.ID, []Chunk{
		{Index: 0, Content: "only", Vector: []float32{1, 0, 0}},
	}))

	hits, err = m.TopK(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
