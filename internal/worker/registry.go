package worker

import (
	"context"
	"errors"
	"sync"
)

// errCancelled is the cancel cause of a run stopped through Registry.Cancel.
var errCancelled = errors.New("cancelled by user")

// Registry tracks the runs executing in this process so they can be cancelled.
type Registry struct {
	mu   sync.Mutex
	runs map[string]context.CancelCauseFunc
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]context.CancelCauseFunc)}
}

// register derives the run context of jobID. done must be called when the run ends.
func (r *Registry) register(ctx context.Context, jobID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.runs[jobID] = cancel
	r.mu.Unlock()

	return runCtx, func() {
		r.mu.Lock()
		delete(r.runs, jobID)
		r.mu.Unlock()
		cancel(nil)
	}
}

// Cancel stops the run of jobID. It reports false when no such run is active here.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.runs[jobID]
	r.mu.Unlock()

	if ok {
		cancel(errCancelled)
	}
	return ok
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
