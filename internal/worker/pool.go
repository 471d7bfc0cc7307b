package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shpkml-service/internal/service"
)

type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

// Run claims jobs until ctx is done and waits for in-flight runs to return.
func (p *Pool) Run(ctx context.Context) {
	slog.Info("worker pool started", "workers", p.workers)

	jobCh := make(chan string)
	var wg sync.WaitGroup

	// N воркеров
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for jobID := range jobCh {
				p.handle(ctx, n, jobID)
			}
		}(i + 1)
	}

	defer func() {
		close(jobCh)
		wg.Wait()
		slog.Info("worker pool stopped")
	}()

	// Listener: atomically claim from queue -> processing
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			// timeout/ctx cancel: не фатально
			if !errors.Is(err, service.ErrNoJob) && ctx.Err() == nil {
				slog.Warn("claim job failed", "error", err)
				sleep(ctx, time.Second)
			}
			continue
		}
		select {
		case jobCh <- jobID:
		case <-ctx.Done():
			// Остаётся в processing: reaper вернёт его в очередь.
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, n int, jobID string) {
	err := p.processor.Process(ctx, jobID)

	// Retry-ошибки не ACK-аем: id остаётся в processing, reaper вернёт его в очередь.
	if IsRetry(err) {
		slog.Warn("job left for redelivery", "worker", n, "job_id", jobID, "error", err)
		return
	}
	if err != nil {
		slog.Error("process job failed", "worker", n, "job_id", jobID, "error", err)
	}
	if ackErr := p.queue.Ack(context.WithoutCancel(ctx), jobID); ackErr != nil {
		slog.Error("ack job failed", "worker", n, "job_id", jobID, "error", ackErr)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
