package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSize is the window size in tokens.
	DefaultChunkSize = 600
	// DefaultChunkOverlap is how many tokens consecutive windows share.
	DefaultChunkOverlap = 100

	encodingName = "cl100k_base"
)

// Chunker splits text into overlapping token windows. Chunking is a pure
// function of the input text and the two window parameters, so the same
// content always reproduces the same chunk boundaries.
type Chunker struct {
	encoding *tiktoken.Tiktoken
	size     int
	overlap  int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", overlap, size)
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("chunker: load encoding %s: %w", encodingName, err)
	}
	return &Chunker{encoding: encoding, size: size, overlap: overlap}, nil
}

// Chunk returns successive windows of up to size tokens, each window
// starting size-overlap tokens after the previous one. The final window may
// be shorter; empty input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.encoding.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
