package worker

import (
	"context"
	"log/slog"
	"time"

	"shpkml-service/internal/obs"
	"shpkml-service/internal/service"
	"shpkml-service/internal/workspace"
)

// RunReaper periodically returns jobs from processing back to the queue
// (a worker crashed or restarted mid-run).
func RunReaper(ctx context.Context, queue service.Queue, interval time.Duration, batch int64) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.RequeueStale(ctx, batch)
			if err != nil {
				slog.Error("requeue failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("requeued jobs from processing", "count", n)
			}
		}
	}
}

// RunJanitor removes output directories older than retention every interval.
// A non-positive retention keeps outputs forever and returns immediately.
func RunJanitor(ctx context.Context, layout workspace.Layout, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweep(layout, retention, now)
		}
	}
}

func sweep(layout workspace.Layout, retention time.Duration, now time.Time) int {
	removed, err := layout.Sweep(retention, now)
	if err != nil {
		slog.Warn("output sweep failed", "error", err)
	}
	if len(removed) > 0 {
		obs.RecordSwept(len(removed))
		slog.Info("expired outputs removed", "count", len(removed), "job_ids", removed)
	}
	return len(removed)
}
