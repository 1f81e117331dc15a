package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netmapper/internal/config"
	"netmapper/internal/db"
	"netmapper/internal/graphstore"
	"netmapper/internal/httpapi"
	"netmapper/internal/metrics"
	"netmapper/internal/scanregistry"
)

func main() {
	cfg, err := config.Load(os.Getenv("MAPPER_CONFIG_FILE"))
	logger := httpapi.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	sharedMetrics := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	var gs *graphstore.Store
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
		if err := graphstore.EnsureSchema(ctx, pool.Raw()); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate schema")
		}
		gs = graphstore.New(pool.Raw())
	}

	scans := scanregistry.New()
	h := httpapi.NewHandler(logger, pool, gs, scans, sharedMetrics, cfg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("mapper listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
