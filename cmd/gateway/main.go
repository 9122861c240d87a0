// Command gateway runs the form-submission ingestion gateway: an HTTP server
// that authenticates, normalizes, deduplicates, durably stores, and forwards
// form submissions to an external dashboard.
//
// Configuration is environment-driven (optionally via a .env file); see
// internal/config for the full variable list.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-ingest-gateway/internal/config"
	httpapi "github.com/tbourn/go-ingest-gateway/internal/http"
	"github.com/tbourn/go-ingest-gateway/internal/observability"
	"github.com/tbourn/go-ingest-gateway/internal/repo"
	"github.com/tbourn/go-ingest-gateway/internal/sysutil"
)

// version is stamped by the build via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("gateway starting")

	if !cfg.Dashboard.Configured() {
		log.Warn().Msg("no dashboard configured; submissions will be stored locally only")
	}
	if cfg.IngestKey == "" {
		log.Warn().Msg("INGEST_KEY not set; all submissions will be rejected with 401")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", srv.Addr).Msg("listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	// Drain in-flight requests; forwarding uses detached contexts, so a
	// submission accepted before the signal still finishes its attempt.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("opentelemetry shutdown failed")
	}
	log.Info().Msg("gateway stopped")
}
