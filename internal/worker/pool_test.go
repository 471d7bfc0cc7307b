package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/converter"
	"shpkml-service/internal/entity"
	"shpkml-service/internal/service"
)

// ackQueue wraps the in-memory queue and records ACKs.
type ackQueue struct {
	service.Queue
	mu    sync.Mutex
	acked []string
}

func (q *ackQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	q.acked = append(q.acked, jobID)
	q.mu.Unlock()
	return q.Queue.Ack(ctx, jobID)
}

func (q *ackQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

func TestPool_ProcessesQueuedJobs(t *testing.T) {
	e := newEnv(t)
	queue := &ackQueue{Queue: service.NewMemoryQueue()}
	p := e.processor(writeKML("", "roads.kml"), converter.ModeLenient, nil)
	pool := NewPool(queue, p, 2)
	pool.claimDelay = 50 * time.Millisecond

	ids := []string{"job-1", "job-2", "job-3"}
	for _, id := range ids {
		e.submit(t, id, shapefile)
		require.NoError(t, queue.Enqueue(context.Background(), id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := e.repo.GetByID(context.Background(), id)
			if err != nil || job.Status != entity.StatusCompleted {
				return false
			}
		}
		return len(queue.ackedIDs()) == len(ids)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
	assert.ElementsMatch(t, ids, queue.ackedIDs())
}

func TestPool_DefaultWorkers(t *testing.T) {
	assert.Equal(t, 4, NewPool(service.NewMemoryQueue(), nil, 0).workers)
}

func TestSweep(t *testing.T) {
	e := newEnv(t)
	old := e.layout.For("old").OutputDir
	fresh := e.layout.For("fresh").OutputDir
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(old, "a.kml"), []byte("x"), 0o644))

	now := time.Now()
	past := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	assert.Equal(t, 1, sweep(e.layout, time.Hour, now))
	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
}

func TestRunJanitor_DisabledReturns(t *testing.T) {
	e := newEnv(t)
	done := make(chan struct{})
	go func() {
		RunJanitor(context.Background(), e.layout, 0, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor with zero retention must return")
	}
}

func TestPool_LockedJobIsNotAcked(t *testing.T) {
	e := newEnv(t)
	e.submit(t, "job-1", shapefile)
	queue := &ackQueue{Queue: service.NewMemoryQueue()}
	locker := &lockStub{held: true}

	pool := NewPool(queue, e.processor(writeKML("", "roads.kml"), converter.ModeLenient, locker), 1)
	pool.handle(context.Background(), 0, "job-1")

	assert.Empty(t, queue.ackedIDs(), "the id in processing belongs to the run holding the lock")
	assert.Equal(t, entity.StatusProcessing, e.job(t, "job-1").Status)

	locker.held = false
	pool.handle(context.Background(), 0, "job-1")
	assert.Equal(t, []string{"job-1"}, queue.ackedIDs())
	assert.Equal(t, entity.StatusCompleted, e.job(t, "job-1").Status)
}
