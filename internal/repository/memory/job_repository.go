// Package memory is a process-local job store for single-node runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"shpkml-service/internal/entity"
)

type JobRepository struct {
	mu   sync.Mutex
	jobs map[string]*entity.ConversionJob
	now  func() time.Time
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[string]*entity.ConversionJob),
		now:  time.Now,
	}
}

func (r *JobRepository) Create(_ context.Context, id, originalFileName string) (*entity.ConversionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return nil, entity.ErrDuplicateID
	}
	job := &entity.ConversionJob{
		ID:               id,
		OriginalFileName: originalFileName,
		Status:           entity.StatusProcessing,
		CreatedAt:        r.now().UTC(),
	}
	r.jobs[id] = job
	return job.Clone(), nil
}

// GetByID returns a copy; callers never share state with the store.
func (r *JobRepository) GetByID(_ context.Context, id string) (*entity.ConversionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *JobRepository) MarkCompleted(_ context.Context, id string, result *entity.Result, warning string) error {
	return r.terminal(id, func(j *entity.ConversionJob) {
		j.Status = entity.StatusCompleted
		j.Result = result.Clone()
		if warning != "" {
			j.Error = &warning
		}
	})
}

func (r *JobRepository) MarkFailed(_ context.Context, id, message string) error {
	return r.terminal(id, func(j *entity.ConversionJob) {
		j.Status = entity.StatusFailed
		j.Error = &message
		j.Result = nil
	})
}

func (r *JobRepository) terminal(id string, apply func(j *entity.ConversionJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if job.Status != entity.StatusProcessing {
		return entity.ErrTerminal
	}
	apply(job)
	at := r.now().UTC()
	job.CompletedAt = &at
	return nil
}
