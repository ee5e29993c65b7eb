package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"vidshelf/internal/api"
	"vidshelf/internal/config"
)

const serviceName = "vidshelf"

type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
	handler    *api.Handler
}

func New(cfg *config.Config, handler *api.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		handler: handler,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           TracingMiddleware(serviceName)(s.router),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams of large files can run for a long time, so WriteTimeout
		// is usually left at zero.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware(nil))
	s.router.Use(LoggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handler.Health)

		r.Get("/videos", s.handler.ListVideos)
		r.Get("/videos/{id}/stream", s.handler.StreamVideo)
		r.Head("/videos/{id}/stream", s.handler.StreamVideo)
		r.Get("/videos/{id}/thumbnail", s.handler.GetThumbnail)

		r.Get("/trash", s.handler.ListTrash)
		r.Get("/config", s.handler.GetConfig)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.cfg.RateLimit.RequestsPerMinute))

			r.Post("/videos/rename", s.handler.RenameVideo)
			r.Post("/videos/move", s.handler.MoveVideo)
			r.Post("/videos/delete", s.handler.DeleteVideo)
			r.Delete("/videos/delete", s.handler.DeleteVideo)
			r.Post("/trash/{id}/restore", s.handler.RestoreTrash)
			r.Post("/config/reload", s.handler.ReloadConfig)
		})
	})
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
