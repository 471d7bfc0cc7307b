package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/entity"
)

func fixedRepo() *JobRepository {
	r := NewJobRepository()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }
	return r
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := fixedRepo()

	job, err := r.Create(ctx, "j1", "parcels.zip")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, job.Status)
	assert.Nil(t, job.CompletedAt)

	got, err := r.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = r.Create(ctx, "j1", "other.zip")
	require.ErrorIs(t, err, entity.ErrDuplicateID)

	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestMarkCompleted_WithWarning(t *testing.T) {
	ctx := context.Background()
	r := fixedRepo()
	_, err := r.Create(ctx, "j1", "parcels.zip")
	require.NoError(t, err)

	res := &entity.Result{CombinedFile: "a.kml", Files: []entity.ProcessedFile{{FileName: "a.kml"}}, OutputDir: "/out/j1"}
	require.NoError(t, r.MarkCompleted(ctx, "j1", res, "Some shapefiles were skipped"))

	got, err := r.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Error)
	assert.Equal(t, "Some shapefiles were skipped", *got.Error)
	assert.Equal(t, "/out/j1", got.Result.OutputDir)

	// The stored result is detached from the caller's value.
	res.Files[0].FileName = "mutated.kml"
	got, _ = r.GetByID(ctx, "j1")
	assert.Equal(t, "a.kml", got.Result.Files[0].FileName)
}

func TestTerminalWriteHappensOnce(t *testing.T) {
	ctx := context.Background()
	r := fixedRepo()
	_, err := r.Create(ctx, "j1", "parcels.zip")
	require.NoError(t, err)

	require.NoError(t, r.MarkFailed(ctx, "j1", "No KML files generated"))
	require.ErrorIs(t, r.MarkCompleted(ctx, "j1", &entity.Result{}, ""), entity.ErrTerminal)
	require.ErrorIs(t, r.MarkFailed(ctx, "j1", "again"), entity.ErrTerminal)

	got, err := r.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)
	assert.Equal(t, "No KML files generated", *got.Error)
	assert.Nil(t, got.Result)

	require.ErrorIs(t, r.MarkFailed(ctx, "missing", "x"), entity.ErrNotFound)
}

func TestGetByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := fixedRepo()
	_, err := r.Create(ctx, "j1", "parcels.zip")
	require.NoError(t, err)

	got, _ := r.GetByID(ctx, "j1")
	got.Status = entity.StatusFailed

	again, _ := r.GetByID(ctx, "j1")
	assert.Equal(t, entity.StatusProcessing, again.Status)
}

func TestConcurrentTerminalWrites(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()
	_, err := r.Create(ctx, "j1", "parcels.zip")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.MarkFailed(ctx, "j1", "x") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
