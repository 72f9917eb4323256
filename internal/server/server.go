package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/model"
)

// Store is the database surface the dashboard reads from.
type Store interface {
	// Stats computes aggregate statistics over all repositories.
	Stats(ctx context.Context) (*model.Stats, error)

	// ListRepositories returns one page of repositories plus the
	// filtered total.
	ListRepositories(ctx context.Context, opts database.ListOptions) ([]model.Repository, int, error)

	// GetRepository returns one repository by full name, or nil when
	// it is not stored.
	GetRepository(ctx context.Context, fullName string) (*model.Repository, error)

	// ForEachRepository streams all matching repositories, used by the
	// CSV export so large tables never sit in memory.
	ForEachRepository(ctx context.Context, opts database.ListOptions, fn func(*model.Repository) error) error

	// ListRuns returns the most recent collection runs.
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	// store is the read-only database view.
	store Store

	// toolkit is the "owner/name" shown in the dashboard header.
	toolkit string

	// addr is the listen address.
	addr string

	// perPage is the default page size for the repository list.
	perPage int

	// maxPerPage caps the client-requested page size.
	maxPerPage int

	// logger is used for request and lifecycle logging.
	logger *slog.Logger

	// httpServer is the underlying server, kept for Shutdown.
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is localhost:8080.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithPageSize sets the default and maximum page sizes.
func WithPageSize(perPage, maxPerPage int) Option {
	return func(s *Server) {
		if perPage > 0 {
			s.perPage = perPage
		}
		if maxPerPage > 0 {
			s.maxPerPage = maxPerPage
		}
	}
}

// WithServerLogger sets a custom logger.
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a dashboard server for the given store.
func New(store Store, toolkit string, opts ...Option) *Server {
	s := &Server{
		store:      store,
		toolkit:    toolkit,
		addr:       "localhost:8080",
		perPage:    25,
		maxPerPage: 200,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/repos", s.handleRepos)
		r.Get("/repos/export.csv", s.handleExportCSV)
		r.Get("/repos/{owner}/{name}", s.handleRepoDetail)
		r.Get("/runs", s.handleRuns)
	})

	return r
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr, "toolkit", s.toolkit)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down dashboard")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestLogger emits one structured log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Truncate(time.Millisecond),
			"remote", r.RemoteAddr,
		)
	})
}
