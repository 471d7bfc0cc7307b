// cmd/worker/main.go
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
	"time"

	"golang.org/x/sync/errgroup"

	"shpkml-service/internal/app"
	"shpkml-service/internal/config"
	"shpkml-service/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// отдельный воркер имеет смысл только с общей очередью и общим хранилищем
	if !cfg.Distributed() || cfg.Store.Driver != config.DriverPostgres {
		log.Fatalf("worker requires QUEUE_DRIVER=redis and STORE_DRIVER=postgres")
	}

	shutdownObs, logger := obs.Init(obs.Options{
		Service:      "shpkml-worker",
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
	a.LogConfig(logger, "worker")

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.MetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.Pool().Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.RunBackground(gctx)
		return nil
	})

	logger.Info("worker started", "workers", cfg.Worker.Workers, "metrics_addr", cfg.MetricsAddr)
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "error", err)
	}

	obsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownObs(obsCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	logger.Info("worker stopped")
}
