package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("rejects overlap >= size", func(t *testing.T) {
		_, err := New(100, 100)
		assert.Error(t, err)
	})

	t.Run("zero size falls back to default", func(t *testing.T) {
		c, err := New(0, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultChunkSize, c.size)
	})
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(""))
}

func TestChunkShortInputSingleChunk(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	chunks := c.Chunk("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkDeterministic(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}

func TestChunkWindowsOverlap(t *testing.T) {
	c, err := New(20, 5)
	require.NoError(t, err)

	text := strings.Repeat("one two three four five six seven eight nine ten ", 20)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// Every pair of neighbouring windows shares the overlap tokens: their
	// decoded text is a suffix of one chunk and a prefix of the next.
	tokens := c.encoding.Encode(text, nil, nil)
	step := c.size - c.overlap
	for i := 0; i < len(chunks)-1; i++ {
		nextStart := (i + 1) * step
		end := i*step + c.size
		overlap := c.encoding.Decode(tokens[nextStart:end])
		assert.True(t, strings.HasSuffix(chunks[i], overlap), "chunk %d missing overlap suffix", i)
		assert.True(t, strings.HasPrefix(chunks[i+1], overlap), "chunk %d missing overlap prefix", i+1)
	}
}

func TestChunkFinalWindowShorter(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta ", 10)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	last := c.encoding.Encode(chunks[len(chunks)-1], nil, nil)
	assert.LessOrEqual(t, len(last), c.size)
}
