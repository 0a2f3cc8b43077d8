package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"bucket-rag/internal/config"
)

// ChunkEmbedding pairs a text with its vector and the text's position in
// the original input slice.
type ChunkEmbedding struct {
	Vector []float32
	Text   string
	Index  int
}

// DefaultBatchSize is how many texts go into one provider call when the
// configuration leaves the batch size unset.
const DefaultBatchSize = 10

// documentEmbedder is the slice of the langchaingo embedder the service
// needs; tests substitute a fake.
type documentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Service embeds texts in fixed-size batches, one provider call per batch,
// reassembling results in input order. A failure on any batch fails the
// whole call; no partial results are returned.
type Service struct {
	client    documentEmbedder
	batchSize int
}

// New builds a Service from config, selecting the provider implementation.
func New(cfg config.EmbeddingConfig) (*Service, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	var (
		client *embeddings.EmbedderImpl
		err    error
	)
	switch cfg.Provider {
	case "ollama":
		client, err = newOllamaEmbedder(cfg)
	default:
		client, err = newOpenAIEmbedder(cfg)
	}
	if err != nil {
		return nil, err
	}
	return &Service{client: client, batchSize: cfg.BatchSize}, nil
}

func newOpenAIEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: init openai client: %w", err)
	}
	return embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
}

func newOllamaEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: init ollama client: %w", err)
	}
	return embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
}

// Embed returns one ChunkEmbedding per input text, in input order.
func (s *Service) Embed(ctx context.Context, texts []string) ([]ChunkEmbedding, error) {
	results := make([]ChunkEmbedding, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := s.client.EmbedDocuments(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding: batch starting at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding: provider returned %d vectors for %d inputs",
				len(vectors), len(batch))
		}
		for i, vector := range vectors {
			results = append(results, ChunkEmbedding{
				Vector: vector,
				Text:   batch[i],
				Index:  start + i,
			})
		}
	}
	return results, nil
}

// EmbedQuery embeds a single text, used for retrieval queries.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	results, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0].Vector, nil
}
