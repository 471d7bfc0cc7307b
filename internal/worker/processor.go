package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shpkml-service/internal/archive"
	"shpkml-service/internal/converter"
	"shpkml-service/internal/entity"
	"shpkml-service/internal/kml"
	"shpkml-service/internal/lock"
	"shpkml-service/internal/obs"
	"shpkml-service/internal/service"
	"shpkml-service/internal/workspace"
)

const (
	msgExtraction = "Failed to extract ZIP archive"
	msgExecution  = "Failed to execute shapefile conversion script"
	msgTimeout    = "Conversion timed out"
	msgNoKML      = "No KML files generated"
	msgGeneric    = "Conversion failed"
)

// Порт репозитория для воркера
type JobRepo interface {
	GetByID(ctx context.Context, id string) (*entity.ConversionJob, error)
	MarkCompleted(ctx context.Context, id string, result *entity.Result, warning string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// Converter runs the external shapefile converter and returns its diagnostic output.
type Converter interface {
	Convert(ctx context.Context, inputDir, outputDir string) (string, error)
}

// Locker guards a run against a duplicate delivery of the same job (lock.Client).
// Acquire returns lock.ErrHeld when another run owns the job.
type Locker interface {
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (token string, err error)
	Extend(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, jobID, token string) error
}

type ProcessorConfig struct {
	Layout workspace.Layout
	Mode   converter.Mode
	// Locker is optional; nil disables locking (single process).
	Locker          Locker
	LockTTL         time.Duration
	// MaxExtractBytes bounds the unpacked archive; 0 means archive.DefaultMaxBytes.
	MaxExtractBytes int64
}

type Processor struct {
	repo       JobRepo
	conv       Converter
	runs       *Registry
	layout     workspace.Layout
	mode       converter.Mode
	locker     Locker
	lockTTL    time.Duration
	lockKick   time.Duration
	maxExtract int64
	tracer     trace.Tracer
}

func NewProcessor(repo JobRepo, conv Converter, runs *Registry, cfg ProcessorConfig) *Processor {
	if runs == nil {
		runs = NewRegistry()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = converter.ModeLenient
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Processor{
		repo:       repo,
		conv:       conv,
		runs:       runs,
		layout:     cfg.Layout,
		mode:       mode,
		locker:     cfg.Locker,
		lockTTL:    ttl,
		lockKick:   ttl / 3,
		maxExtract: cfg.MaxExtractBytes,
		tracer:     obs.Tracer("shpkml/worker"),
	}
}

// retryError marks a failure that must leave the job on the queue.
type retryError struct{ err error }

func (e *retryError) Error() string { return e.err.Error() }
func (e *retryError) Unwrap() error { return e.err }

func retry(err error) error { return &retryError{err: err} }

// IsRetry reports whether a Process error asks for redelivery instead of an ACK.
func IsRetry(err error) bool {
	var r *retryError
	return errors.As(err, &r)
}

// Process runs the conversion pipeline of one job and writes its terminal state.
// Jobs that are gone, already terminal or locked by another run are skipped.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()
	log := slog.With("job_id", jobID)

	if p.locker != nil {
		release, err := p.lock(ctx, jobID)
		if errors.Is(err, lock.ErrHeld) {
			// без ACK: id в processing принадлежит живому запуску
			log.Info("job locked by another run, skipped")
			obs.RecordJob("skipped", start)
			return retry(err)
		}
		if err != nil {
			return retry(fmt.Errorf("acquire lock: %w", err))
		}
		defer release()
	}

	job, err := p.repo.GetByID(ctx, jobID)
	if errors.Is(err, entity.ErrNotFound) {
		log.Warn("job not found, skipped")
		obs.RecordJob("skipped", start)
		return nil
	}
	if err != nil {
		return retry(fmt.Errorf("get job: %w", err))
	}
	if job.Status != entity.StatusProcessing {
		log.Info("job not processing, skipped", "status", job.Status)
		obs.RecordJob("skipped", start)
		return nil
	}

	runCtx, done := p.runs.register(ctx, jobID)
	defer done()

	runCtx, span := p.tracer.Start(runCtx, "conversion.run",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	log.Info("conversion started", "file", job.OriginalFileName)

	ws := p.layout.For(jobID)
	res, warning, runErr := p.run(runCtx, ws, job)

	// Terminal writes must land even when the run context was cancelled.
	writeCtx := context.WithoutCancel(runCtx)

	if runErr != nil {
		if ctx.Err() != nil && !errors.Is(context.Cause(runCtx), errCancelled) {
			log.Warn("conversion interrupted by shutdown", "duration_ms", time.Since(start).Milliseconds())
			span.SetStatus(codes.Error, "interrupted")
			return retry(runErr)
		}
		msg := failureMessage(runErr)
		if errors.Is(context.Cause(runCtx), errCancelled) {
			msg = service.CancelledMessage
		}
		return p.fail(writeCtx, span, ws, jobID, runErr, msg, start)
	}

	if err := p.repo.MarkCompleted(writeCtx, jobID, res, warning); err != nil {
		if errors.Is(err, entity.ErrTerminal) || errors.Is(err, entity.ErrNotFound) {
			// cancelled or failed elsewhere while running
			p.cleanup(ws, false)
			log.Info("job left processing during run, result discarded")
			obs.RecordJob("skipped", start)
			return nil
		}
		// upload stays on disk so the redelivered run can start over
		span.RecordError(err)
		log.Error("mark completed error", "error", err)
		return retry(fmt.Errorf("mark completed: %w", err))
	}
	p.cleanup(ws, true)

	obs.RecordJob("completed", start)
	log.Info("conversion completed",
		"status", entity.StatusCompleted,
		"files", len(res.Files),
		"warning", warning != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// run executes the pipeline stages in order.
func (p *Processor) run(ctx context.Context, ws workspace.Workspace, job *entity.ConversionJob) (*entity.Result, string, error) {
	if err := p.stage(ctx, "prepare", func(context.Context) error {
		return ws.Prepare()
	}); err != nil {
		return nil, "", err
	}

	var shpDir string
	if err := p.stage(ctx, "extract", func(context.Context) error {
		var err error
		shpDir, err = archive.Inspect(ws.UploadPath, ws.ScratchDir, p.maxExtract)
		return err
	}); err != nil {
		return nil, "", err
	}

	var blob string
	if err := p.stage(ctx, "convert", func(ctx context.Context) error {
		var err error
		blob, err = p.conv.Convert(ctx, shpDir, ws.OutputDir)
		return err
	}); err != nil {
		return nil, "", err
	}
	slog.Debug("converter output", "job_id", job.ID, "output", blob)

	warning, err := p.mode.Classify(blob)
	if err != nil {
		return nil, "", err
	}

	var res *entity.Result
	if err := p.stage(ctx, "harvest", func(context.Context) error {
		var err error
		res, err = kml.Harvest(ws.OutputDir, job.OriginalFileName)
		return err
	}); err != nil {
		return nil, "", err
	}
	return res, warning, nil
}

func (p *Processor) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "conversion."+name)
	defer span.End()

	err := fn(ctx)
	obs.RecordStage(name, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return err
}

func (p *Processor) fail(ctx context.Context, span trace.Span, ws workspace.Workspace, jobID string, cause error, msg string, start time.Time) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, msg)

	if err := p.repo.MarkFailed(ctx, jobID, msg); err != nil {
		if errors.Is(err, entity.ErrTerminal) || errors.Is(err, entity.ErrNotFound) {
			p.cleanup(ws, false)
			obs.RecordJob("skipped", start)
			return nil
		}
		slog.Error("mark failed error", "job_id", jobID, "error", err)
		return retry(fmt.Errorf("mark failed: %w", err))
	}
	p.cleanup(ws, false)

	obs.RecordJob("failed", start)
	slog.Info("conversion failed",
		"job_id", jobID,
		"status", entity.StatusFailed,
		"error", cause,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// failureMessage maps a pipeline error to the message stored on the job.
func failureMessage(err error) string {
	var diag *converter.DiagnosticError
	switch {
	case errors.As(err, &diag):
		return diag.Message
	case errors.Is(err, archive.ErrExtraction):
		return msgExtraction
	case errors.Is(err, converter.ErrTimeout):
		return msgTimeout
	case errors.Is(err, converter.ErrExecutionFailed):
		return msgExecution
	case errors.Is(err, context.Canceled):
		return service.CancelledMessage
	case errors.Is(err, kml.ErrNoKML):
		return msgNoKML
	default:
		return msgGeneric
	}
}

func (p *Processor) cleanup(ws workspace.Workspace, keepOutput bool) {
	if err := ws.Cleanup(keepOutput); err != nil {
		slog.Warn("workspace cleanup failed", "job_id", ws.JobID, "error", err)
	}
}

// lock takes the job lock and keeps it alive until release is called.
func (p *Processor) lock(ctx context.Context, jobID string) (release func(), err error) {
	token, err := p.locker.Acquire(ctx, jobID, p.lockTTL)
	if err != nil {
		return nil, err
	}

	stopKick := make(chan struct{})
	go func() {
		t := time.NewTicker(p.lockKick)
		defer t.Stop()
		for {
			select {
			case <-stopKick:
				return
			case <-t.C:
				ok, err := p.locker.Extend(context.Background(), jobID, token, p.lockTTL)
				if err != nil {
					slog.Warn("lock refresh failed", "job_id", jobID, "error", err)
				} else if !ok {
					slog.Warn("lock lost during run", "job_id", jobID)
				}
			}
		}
	}()

	return func() {
		close(stopKick)
		if err := p.locker.Release(context.Background(), jobID, token); err != nil {
			slog.Warn("lock release failed", "job_id", jobID, "error", err)
		}
	}, nil
}
