// Package host serves the pre-built single-page application.
//
// Paths naming a file in the build directory get that file; everything else gets the entry document with
// status 200 so the client-side router can take over. Responses carry permissive CORS headers and a
// differentiated Cache-Control policy, and a panic in any handler becomes a 500 instead of a crash.
package host

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/IlyaErmolovich/gc-frontend/internal/apperrors"
	"github.com/IlyaErmolovich/gc-frontend/internal/config"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
	"github.com/IlyaErmolovich/gc-frontend/internal/version"
)

type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	fsys    fs.FS
	metrics *Metrics
}

// NewServer creates the static host. fsys is the build directory; when nil, config.BuildDir is served from disk.
func NewServer(cfg *config.Config, fsys fs.FS, logger *slog.Logger) (*Server, error) {
	if fsys == nil {
		fsys = os.DirFS(cfg.BuildDir)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		fsys:    fsys,
		metrics: NewMetrics(version.Get()),
	}

	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler is the fully wired router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() error {
	corsMiddleware, err := config.NewCORSMiddleware()
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(s.metrics.Instrument)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(Rescue)
	s.router.Use(SecurityHeaders(s.config.Environment))
	s.router.Use(RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(CacheControl)
	s.router.Use(CORS(corsMiddleware))
	return nil
}

func (s *Server) registerRoutes() error {
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusMethodNotAllowed, apperrors.ErrCodeMethodNotAllowed,
			fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path))
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeResourceNotFound, "Not found")
	})

	s.router.Route("/health", func(r chi.Router) {
		r.Get("/live", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	})
	s.router.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		RespondWithJSON(w, http.StatusOK, version.Get())
	})
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if s.config.ProxyAPI {
		proxy, err := newAPIProxy(s.config.APIBaseURL)
		if err != nil {
			return err
		}
		s.router.Handle("/api/*", proxy)
		s.logger.Info("proxying API requests", slog.String("target", s.config.APIBaseURL))
	}

	// CORS preflights are answered by the CORS middleware; any other OPTIONS request gets an empty 200
	s.router.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	spa := newSPAHandler(s.fsys, s.config.IndexFile)
	s.router.Get("/", spa.ServeHTTP)
	s.router.Get("/*", spa.ServeHTTP)
	s.router.Head("/", spa.ServeHTTP)
	s.router.Head("/*", spa.ServeHTTP)
	return nil
}

// Start the host and block until ctx is cancelled, then shut down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("static host listening",
			slog.String("address", addr),
			slog.String("build_dir", s.config.BuildDir),
			slog.String("environment", s.config.Environment),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down static host...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server forced to shutdown", slog.String("error", err.Error()))
			return err
		}
	}

	s.logger.Info("static host stopped")
	return nil
}
