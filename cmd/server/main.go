// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "shpkml-service/docs"
	"shpkml-service/internal/app"
	"shpkml-service/internal/config"
	"shpkml-service/internal/obs"
	httptransport "shpkml-service/internal/transport/http"
)

// @title Shapefile to KML conversion API
// @version 1.0
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdownObs, logger := obs.Init(obs.Options{
		Service:      "shpkml-api",
		Version:      cfg.Version,
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DI
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	a.LogConfig(logger, "api")

	h := httptransport.NewHandler(a.JobService(), cfg.HTTP.MaxUploadBytes())
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           obs.WrapHTTP("shpkml-api", httptransport.Routes(h, cfg.HTTP.CORSOrigins)),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// с Redis воркеры могут жить отдельно (cmd/worker), но и здесь они не мешают
	g.Go(func() error {
		a.Pool().Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.RunBackground(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}

	obsCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := shutdownObs(obsCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	logger.Info("server stopped")
}
