// Package app wires configuration into the store, queue, worker and HTTP pieces
// shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"shpkml-service/internal/config"
	"shpkml-service/internal/converter"
	"shpkml-service/internal/lock"
	"shpkml-service/internal/repository/memory"
	"shpkml-service/internal/repository/postgresql"
	"shpkml-service/internal/service"
	"shpkml-service/internal/worker"
	"shpkml-service/internal/workspace"
)

// Repository is what both the API and the worker need from job storage.
type Repository interface {
	service.JobRepository
	worker.JobRepo
}

type App struct {
	Config    config.AppConfig
	Layout    workspace.Layout
	Repo      Repository
	Queue     service.Queue
	Runs      *worker.Registry
	Processor *worker.Processor

	pg  *pgxpool.Pool
	rdb *redis.Client
}

// New opens the configured backends. Close releases them.
func New(ctx context.Context, cfg config.AppConfig) (*App, error) {
	a := &App{
		Config: cfg,
		Layout: workspace.NewLayout(cfg.Workspace.Root),
		Runs:   worker.NewRegistry(),
	}
	if err := a.Layout.Init(); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgresql.NewPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("pg: %w", err)
		}
		a.pg = pool
		if err := postgresql.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Repo = postgresql.NewJobRepository(pool)
	default:
		a.Repo = memory.NewJobRepository()
	}

	// Locker остаётся nil-интерфейсом без Redis, иначе процессор решит, что лок есть
	var locker worker.Locker
	switch cfg.Queue.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		locks := lock.New(rdb, cfg.Redis.LockPrefix)
		a.Queue = service.NewRedisQueue(rdb, cfg.Redis.QueueKey, cfg.Redis.ProcessingKey, locks.Key(""))
		locker = locks
	default:
		a.Queue = service.NewMemoryQueue()
	}

	invoker := converter.NewInvoker(converter.Options{
		Command:          cfg.Converter.Command,
		NameField:        cfg.Converter.NameField,
		DescriptionField: cfg.Converter.DescriptionField,
		Timeout:          cfg.Converter.Timeout,
	})
	a.Processor = worker.NewProcessor(a.Repo, invoker, a.Runs, worker.ProcessorConfig{
		Layout:          a.Layout,
		Mode:            cfg.Mode(),
		Locker:          locker,
		LockTTL:         cfg.Redis.LockTTL,
		MaxExtractBytes: cfg.Workspace.MaxExtractBytes(),
	})
	return a, nil
}

// JobService builds the API-side service over the shared repo and queue.
func (a *App) JobService() *service.JobService {
	return service.NewJobService(a.Repo, a.Queue, a.Runs, service.JobServiceConfig{
		Layout:         a.Layout,
		MaxUploadBytes: a.Config.HTTP.MaxUploadBytes(),
	})
}

// Pool builds the worker pool over the shared queue.
func (a *App) Pool() *worker.Pool {
	return worker.NewPool(a.Queue, a.Processor, a.Config.Worker.Workers)
}

// RunBackground runs the reaper (Redis only) and the janitor until ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	done := make(chan struct{})
	if a.Config.Distributed() {
		go func() {
			defer close(done)
			worker.RunReaper(ctx, a.Queue, a.Config.Queue.RequeueInterval, 100)
		}()
	} else {
		close(done)
	}
	worker.RunJanitor(ctx, a.Layout, a.Config.Workspace.OutputRetention, a.Config.Workspace.JanitorInterval)
	<-done
}

// LogConfig prints the effective configuration with secrets masked.
func (a *App) LogConfig(logger *slog.Logger, role string) {
	c := a.Config
	logger.Info("config",
		"role", role,
		"store", c.Store.Driver,
		"postgres_dsn", RedactDSN(c.Store.PostgresDSN),
		"queue", c.Queue.Driver,
		"redis_addr", c.Redis.Addr,
		"queue_key", c.Redis.QueueKey,
		"processing_key", c.Redis.ProcessingKey,
		"workers", c.Worker.Workers,
		"workspace", c.Workspace.Root,
		"diagnostics_mode", c.DiagnosticsMode,
		"converter_timeout", c.Converter.Timeout.String(),
	)
}

func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			slog.Warn("redis close", "error", err)
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password: user:pass@ -> user:****@. A DSN without one is unchanged.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
