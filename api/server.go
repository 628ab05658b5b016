// Package api exposes parsing, ingestion and the stored records over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bassamadnan/rfimail/config"
	"github.com/bassamadnan/rfimail/ingest"
	"github.com/bassamadnan/rfimail/parser"
	"github.com/bassamadnan/rfimail/store"
	"github.com/bassamadnan/rfimail/subject"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Store is the read side of the record store.
type Store interface {
	GetMessage(ctx context.Context, threadID, messageID string) (*parser.Record, error)
	ListMessages(ctx context.Context, f store.MessageFilter) ([]parser.Record, error)
	ListThreads(ctx context.Context) ([]store.Thread, error)
	Runs(ctx context.Context, limit int) ([]store.Run, error)
}

// AttachmentFetcher downloads attachment bytes from the mail provider.
type AttachmentFetcher interface {
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

type VocabularySource interface {
	Vocabulary() subject.Vocabulary
}

// Deps wires the server. Runner and Source may be nil, which disables
// POST /api/ingest; Attachments may be nil, which disables downloads.
type Deps struct {
	Parser      *parser.Parser
	Store       Store
	Runner      *ingest.Runner
	Source      ingest.Source
	Attachments AttachmentFetcher
	Vocabulary  VocabularySource
	Settings    config.ParserConfig
	Logger      *log.Logger
}

type Server struct {
	deps Deps

	// one ingest run at a time
	ingestMu sync.Mutex
}

func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.parse)
		r.Post("/ingest", s.ingest)
		r.Get("/runs", s.runs)
		r.Get("/messages", s.listMessages)
		r.Get("/threads", s.listThreads)
		r.Get("/threads/{threadID}/messages", s.threadMessages)
		r.Get("/threads/{threadID}/messages/{messageID}", s.getMessage)
		r.Get("/threads/{threadID}/messages/{messageID}/attachments/{attachmentID}", s.downloadAttachment)
		r.Get("/vocabulary", s.vocabulary)
		r.Get("/settings", s.settings)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.deps.Logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // ingest runs can take a while
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("Starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.deps.Logger.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
