package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/wallpanels/internal/core/config"
	"github.com/mohammed-shakir/wallpanels/internal/core/health"
	middleware "github.com/mohammed-shakir/wallpanels/internal/core/middleware"
	"github.com/mohammed-shakir/wallpanels/internal/core/router"
)

// NewHandler builds the HTTP surface. deps are probed by /readyz.
func NewHandler(cfg config.Config, logger *slog.Logger, svc router.PanelService, deps map[string]any) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(deps))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/generate", router.HandleGenerate(logger, cfg, svc))
	r.Get("/download/{panelNum}", router.HandleDownload(logger, svc))
	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Get("/", router.HandleJob(logger, svc))
		r.Delete("/", router.HandleRelease(logger, svc))
		r.Get("/panels/{panelNum}", router.HandleJobPanel(logger, svc))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, svc router.PanelService, deps map[string]any) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, svc, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		grace := cfg.ShutdownGrace
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
