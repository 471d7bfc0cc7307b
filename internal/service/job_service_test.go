package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shpkml-service/internal/entity"
	"shpkml-service/internal/repository/memory"
	"shpkml-service/internal/service"
	"shpkml-service/internal/workspace"
)

type fakeQueue struct {
	enqueuedIDs []string
	enqueueErr  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string) error {
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	return q.enqueueErr
}

type fakeCanceller struct {
	running   map[string]bool
	cancelled []string
}

func (c *fakeCanceller) Cancel(jobID string) bool {
	if !c.running[jobID] {
		return false
	}
	c.cancelled = append(c.cancelled, jobID)
	return true
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("roads.shp")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	_, _ = w.Write([]byte("shp"))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	svc     *service.JobService
	repo    *memory.JobRepository
	queue   *fakeQueue
	cancels *fakeCanceller
	layout  workspace.Layout
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	f := &fixture{
		repo:    memory.NewJobRepository(),
		queue:   &fakeQueue{},
		cancels: &fakeCanceller{running: map[string]bool{}},
		layout:  workspace.NewLayout(t.TempDir()),
	}
	f.svc = service.NewJobService(f.repo, f.queue, f.cancels, service.JobServiceConfig{
		Layout:         f.layout,
		MaxUploadBytes: maxUpload,
	})
	return f
}

func TestJobService_Submit_CreatesAndQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1<<20)
	data := zipBytes(t)

	job, err := f.svc.Submit(ctx, service.Upload{
		FileName: `C:\Users\me\parcels.zip`,
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if job.Status != entity.StatusProcessing {
		t.Fatalf("expected processing, got %s", job.Status)
	}
	if job.OriginalFileName != "parcels.zip" {
		t.Fatalf("expected client path stripped, got %q", job.OriginalFileName)
	}
	if len(f.queue.enqueuedIDs) != 1 || f.queue.enqueuedIDs[0] != job.ID {
		t.Fatalf("expected enqueue id=%s, got %#v", job.ID, f.queue.enqueuedIDs)
	}

	saved, err := os.ReadFile(f.layout.For(job.ID).UploadPath)
	if err != nil {
		t.Fatalf("upload not saved: %v", err)
	}
	if !bytes.Equal(saved, data) {
		t.Fatalf("saved upload differs from request body")
	}
}

func TestJobService_Submit_Rejections(t *testing.T) {
	data := zipBytes(t)

	tests := []struct {
		name    string
		upload  service.Upload
		wantErr error
	}{
		{
			name:    "no file name",
			upload:  service.Upload{Body: bytes.NewReader(data)},
			wantErr: service.ErrInvalidUpload,
		},
		{
			name:    "not a zip by name or type",
			upload:  service.Upload{FileName: "roads.shp", ContentType: "application/octet-stream", Body: bytes.NewReader(data)},
			wantErr: service.ErrInvalidUpload,
		},
		{
			name:    "zip name but wrong content",
			upload:  service.Upload{FileName: "roads.zip", Body: strings.NewReader("hello world")},
			wantErr: service.ErrInvalidUpload,
		},
		{
			name:    "declared size over limit",
			upload:  service.Upload{FileName: "roads.zip", Size: 1 << 30, Body: bytes.NewReader(data)},
			wantErr: service.ErrUploadTooLarge,
		},
		{
			name:    "undeclared size over limit",
			upload:  service.Upload{FileName: "roads.zip", Size: -1, Body: bytes.NewReader(append(append([]byte{}, data...), make([]byte, 4096)...))},
			wantErr: service.ErrUploadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, int64(len(data))+100)

			_, err := f.svc.Submit(context.Background(), tt.upload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(f.queue.enqueuedIDs) != 0 {
				t.Fatalf("expected no job queued, got %#v", f.queue.enqueuedIDs)
			}
			entries, _ := os.ReadDir(filepath.Join(f.layout.Root, "uploads"))
			if len(entries) != 0 {
				t.Fatalf("expected no upload left behind, got %d files", len(entries))
			}
		})
	}
}

func TestJobService_Submit_ContentTypeAllowsOtherNames(t *testing.T) {
	f := newFixture(t, 0)
	data := zipBytes(t)

	_, err := f.svc.Submit(context.Background(), service.Upload{
		FileName:    "export",
		ContentType: "application/zip; charset=binary",
		Size:        -1,
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestJobService_Submit_EnqueueFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.queue.enqueueErr = errors.New("redis down")
	data := zipBytes(t)

	_, err := f.svc.Submit(ctx, service.Upload{FileName: "a.zip", Body: bytes.NewReader(data)})
	if err == nil {
		t.Fatalf("expected error")
	}

	id := f.queue.enqueuedIDs[0]
	job, err := f.repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != entity.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if _, err := os.Stat(f.layout.For(id).UploadPath); !os.IsNotExist(err) {
		t.Fatalf("expected upload removed, stat err=%v", err)
	}
}

func TestJobService_ResultsRequireCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	if _, err := f.repo.Create(ctx, "j1", "parcels.zip"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Download(ctx, "j1"); !errors.Is(err, service.ErrNotCompleted) {
		t.Fatalf("Download: expected ErrNotCompleted, got %v", err)
	}
	if _, err := f.svc.DownloadFile(ctx, "j1", "a.kml"); !errors.Is(err, service.ErrNotCompleted) {
		t.Fatalf("DownloadFile: expected ErrNotCompleted, got %v", err)
	}
	if _, err := f.svc.DownloadAll(ctx, "j1"); !errors.Is(err, service.ErrNotCompleted) {
		t.Fatalf("DownloadAll: expected ErrNotCompleted, got %v", err)
	}
	if _, err := f.svc.Coordinates(ctx, "j1"); !errors.Is(err, service.ErrNotCompleted) {
		t.Fatalf("Coordinates: expected ErrNotCompleted, got %v", err)
	}
	if _, err := f.svc.Download(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobService_FileCoordinates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	_, _ = f.repo.Create(ctx, "j1", "parcels.zip")
	res := &entity.Result{
		CombinedFile: "a.kml",
		Files:        []entity.ProcessedFile{{FileName: "a.kml", Coordinates: []entity.Coordinate{{Longitude: 1, Latitude: 2}}}},
	}
	if err := f.repo.MarkCompleted(ctx, "j1", res, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	pf, err := f.svc.FileCoordinates(ctx, "j1", "a.kml")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pf.Coordinates) != 1 || pf.Coordinates[0].Latitude != 2 {
		t.Fatalf("unexpected coordinates %#v", pf.Coordinates)
	}

	if _, err := f.svc.FileCoordinates(ctx, "j1", "b.kml"); !errors.Is(err, service.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestJobService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	_, _ = f.repo.Create(ctx, "queued", "a.zip")
	_, _ = f.repo.Create(ctx, "running", "b.zip")
	_, _ = f.repo.Create(ctx, "done", "c.zip")
	_ = f.repo.MarkFailed(ctx, "done", "boom")
	f.cancels.running["running"] = true

	// queued: failed directly
	if err := f.svc.Cancel(ctx, "queued"); err != nil {
		t.Fatalf("cancel queued: %v", err)
	}
	job, _ := f.repo.GetByID(ctx, "queued")
	if job.Status != entity.StatusFailed || *job.Error != service.CancelledMessage {
		t.Fatalf("expected failed/%q, got %s/%v", service.CancelledMessage, job.Status, job.Error)
	}

	// running: the run records the failure itself
	if err := f.svc.Cancel(ctx, "running"); err != nil {
		t.Fatalf("cancel running: %v", err)
	}
	if len(f.cancels.cancelled) != 1 || f.cancels.cancelled[0] != "running" {
		t.Fatalf("expected running job interrupted, got %#v", f.cancels.cancelled)
	}
	job, _ = f.repo.GetByID(ctx, "running")
	if job.Status != entity.StatusProcessing {
		t.Fatalf("expected processing until the run finishes, got %s", job.Status)
	}

	if err := f.svc.Cancel(ctx, "done"); !errors.Is(err, entity.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := f.svc.Cancel(ctx, "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobService_ExtractCoordinates(t *testing.T) {
	f := newFixture(t, 0)
	got := f.svc.ExtractCoordinates(`<coordinates>-122.0856545755255,37.42243077405461,0</coordinates>`)
	if len(got) != 1 || got[0].Longitude != -122.0856545755255 {
		t.Fatalf("unexpected coordinates %#v", got)
	}
}
