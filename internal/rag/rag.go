package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"bucket-rag/internal/config"
	"bucket-rag/internal/store"
)

const (
	systemPrompt = "You are a helpful assistant. Use the context provided to answer the user's question accurately."

	contextSeparator = "\n---\n"
)

// ErrEmptyQuery rejects empty or blank queries before any provider call.
var ErrEmptyQuery = errors.New("rag: query must be a non-empty string")

// GenerationError wraps an upstream text-generation failure, keeping it
// distinguishable from validation errors.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("rag: generation failed: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers nearest-K chunk lookups.
type Retriever interface {
	TopK(ctx context.Context, vector []float32, k int) ([]store.ScoredChunk, error)
}

// Stream delivers generated text fragments in arrival order. After
// Fragments is closed, Err reports whether generation ended cleanly.
type Stream struct {
	fragments chan string
	err       error
}

// Fragments is the channel of generated text pieces.
func (s *Stream) Fragments() <-chan string { return s.fragments }

// Err is valid once Fragments has been drained.
func (s *Stream) Err() error { return s.err }

// Answerer turns a natural-language query into a streamed, grounded
// answer: embed the query, fetch the top-K chunks, and condition a
// streaming generation on the assembled context. Queries are independent;
// the only shared state is the read-only index.
type Answerer struct {
	embedder QueryEmbedder
	index    Retriever
	llm      llms.Model
	topK     int
}

func NewAnswerer(embedder QueryEmbedder, index Retriever, llm llms.Model, topK int) *Answerer {
	if topK <= 0 {
		topK = 5
	}
	return &Answerer{embedder: embedder, index: index, llm: llm, topK: topK}
}

// NewLLM builds the chat-completion client for answer generation.
func NewLLM(cfg config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("rag: init llm client: %w", err)
	}
	return llm, nil
}

// Answer validates the query, retrieves context, and starts a streaming
// generation. Fragments arrive on the returned stream as the provider
// produces them; cancelling ctx (e.g. client disconnect) stops the
// upstream request.
func (a *Answerer) Answer(ctx context.Context, query string) (*Stream, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	queryVector, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	hits, err := a.index.TopK(ctx, queryVector, a.topK)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve context: %w", err)
	}

	contents := make([]string, len(hits))
	for i, hit := range hits {
		contents[i] = hit.Content
	}
	contextText := strings.Join(contents, contextSeparator)
	log.Debug().Int("chunks", len(hits)).Msg("assembled retrieval context")

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, query)),
	}

	stream := &Stream{fragments: make(chan string, 16)}
	go func() {
		defer close(stream.fragments)
		_, err := a.llm.GenerateContent(ctx, messages,
			llms.WithStreamingFunc(func(ctx context.Context, fragment []byte) error {
				select {
				case stream.fragments <- string(fragment):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			stream.err = &GenerationError{Err: err}
		}
	}()
	return stream, nil
}
