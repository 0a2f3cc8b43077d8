package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"bucket-rag/internal/rag"
)

// Answerer produces a streamed answer for one query.
type Answerer interface {
	Answer(ctx context.Context, query string) (*rag.Stream, error)
}

// Server is the HTTP surface: the chat endpoint plus health and an
// optional queue-monitoring UI.
type Server struct {
	router   chi.Router
	answerer Answerer
}

// New assembles the router. adminUI, when non-nil, is mounted at adminPath
// (the queue dashboard).
func New(answerer Answerer, adminPath string, adminUI http.Handler) *Server {
	s := &Server{router: chi.NewRouter(), answerer: answerer}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Post("/chat", s.handleChat)
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if adminUI != nil {
		s.router.Mount(adminPath, adminUI)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type chatRequest struct {
	Query string `json:"query"`
}

// handleChat validates the query, then streams the generated answer as
// chunked text/plain, flushing each fragment as it arrives. Validation
// failures are 400s; anything upstream is a 500. Once streaming has
// begun a generation failure can only truncate the response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing query string")
		return
	}

	stream, err := s.answerer.Answer(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "Missing query string")
			return
		}
		log.Error().Err(err).Msg("chat request failed")
		writeError(w, http.StatusInternalServerError, "Something went wrong.")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, _ := w.(http.Flusher)

	wrote := false
	for fragment := range stream.Fragments() {
		if _, err := w.Write([]byte(fragment)); err != nil {
			// Client went away; r.Context() cancellation stops generation.
			return
		}
		wrote = true
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := stream.Err(); err != nil {
		log.Error().Err(err).Msg("generation failed")
		if !wrote {
			writeError(w, http.StatusInternalServerError, "Something went wrong.")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}
