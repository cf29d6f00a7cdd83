package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

const defaultShutdownTimeout = 10 * time.Second

// Handler groups related endpoints and registers them on a router.
type Handler interface {
	Mount(r chi.Router) // Mount registers the handler's routes
}

// Deps are the collaborators the HTTP surface is built from.
//
// Catalog and Auth are required. Enricher and DB are optional: without them list enrichment
// is skipped and /healthz does not ping the database.
type Deps struct {
	Catalog       services.Catalog
	Reviews       ReviewStore
	Lists         ListStore
	Profiles      ProfileStore
	Enricher      Enricher
	EnrichTimeout time.Duration // Bound on ?enrich=true (default 5s)
	Auth          *Authenticator
	Metrics       *Metrics
	DB            *sqlx.DB
	Logger        *log.Logger
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *log.Logger
}

// New creates a Server listening on cfg's address.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	shutdown := cfg.ShutdownTimeout.Duration
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           NewRouter(deps),
			ReadTimeout:       cfg.ReadTimeout.Duration,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout.Duration,
		},
		shutdownTimeout: shutdown,
		logger:          deps.Logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run listens until ctx is cancelled, then drains in-flight requests for at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
