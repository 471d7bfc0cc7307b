package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"shpkml-service/internal/entity"
	"shpkml-service/internal/kml"
	"shpkml-service/internal/workspace"
)

var (
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrUploadTooLarge = errors.New("upload too large")
	ErrNotCompleted   = errors.New("conversion not completed")
	ErrFileNotFound   = errors.New("file not found")
	ErrResultGone     = errors.New("conversion output no longer available")
)

// CancelledMessage is the error stored on a job cancelled by the user.
const CancelledMessage = "Conversion cancelled"

// Порт репозитория (реализации: postgresql.JobRepository, memory.JobRepository)
type JobRepository interface {
	Create(ctx context.Context, id, originalFileName string) (*entity.ConversionJob, error)
	GetByID(ctx context.Context, id string) (*entity.ConversionJob, error)
	MarkFailed(ctx context.Context, id, message string) error
}

// Маленький порт очереди только для добавления задач в очередь.
// (Не называем Queue, чтобы не конфликтовать с queue_service.go)
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Canceller stops a run executing in this process. It reports false when
// the job is not running here.
type Canceller interface {
	Cancel(jobID string) bool
}

type JobServiceConfig struct {
	Layout         workspace.Layout
	MaxUploadBytes int64
}

type JobService struct {
	repo      JobRepository
	queue     JobQueue
	cancels   Canceller
	layout    workspace.Layout
	maxUpload int64
	assembler Assembler
	newID     func() string
}

func NewJobService(repo JobRepository, queue JobQueue, cancels Canceller, cfg JobServiceConfig) *JobService {
	return &JobService{
		repo:      repo,
		queue:     queue,
		cancels:   cancels,
		layout:    cfg.Layout,
		maxUpload: cfg.MaxUploadBytes,
		newID:     uuid.NewString,
	}
}

// Upload is an archive offered for conversion.
type Upload struct {
	FileName    string
	ContentType string
	// Size is the declared size, -1 when unknown.
	Size int64
	Body io.Reader
}

var zipSignatures = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"), // empty archive
}

// Submit stores the archive, creates its job and queues the conversion.
// Rejected uploads create no job.
func (s *JobService) Submit(ctx context.Context, u Upload) (*entity.ConversionJob, error) {
	name := cleanFileName(u.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: no file uploaded", ErrInvalidUpload)
	}
	if !isZipName(name) && !isZipContentType(u.ContentType) {
		return nil, fmt.Errorf("%w: only ZIP files are allowed", ErrInvalidUpload)
	}
	if s.maxUpload > 0 && u.Size > s.maxUpload {
		return nil, ErrUploadTooLarge
	}

	br := bufio.NewReader(u.Body)
	sig, _ := br.Peek(4)
	if !hasZipSignature(sig) {
		return nil, fmt.Errorf("%w: file is not a ZIP archive", ErrInvalidUpload)
	}

	id := s.newID()
	ws := s.layout.For(id)

	body := io.Reader(br)
	var limited *io.LimitedReader
	if s.maxUpload > 0 {
		limited = &io.LimitedReader{R: br, N: s.maxUpload + 1}
		body = limited
	}
	if err := ws.SaveUpload(body); err != nil {
		_ = ws.Cleanup(false)
		return nil, err
	}
	if limited != nil && limited.N == 0 {
		_ = ws.Cleanup(false)
		return nil, ErrUploadTooLarge
	}

	job, err := s.repo.Create(ctx, id, name)
	if err != nil {
		_ = ws.Cleanup(false)
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, id); err != nil {
		if mErr := s.repo.MarkFailed(ctx, id, "Failed to start conversion"); mErr != nil {
			slog.Error("mark unqueued job failed", "job_id", id, "error", mErr)
		}
		_ = ws.Cleanup(false)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	slog.Info("upload accepted", "job_id", id, "file", name)
	return job, nil
}

func (s *JobService) GetStatus(ctx context.Context, id string) (*entity.ConversionJob, error) {
	return s.repo.GetByID(ctx, id)
}

// Coordinates returns the coordinate data of a completed job.
func (s *JobService) Coordinates(ctx context.Context, id string) (*entity.ConversionJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := completedResult(job); err != nil {
		return nil, err
	}
	return job, nil
}

// FileCoordinates returns the stored coordinates of one generated file.
func (s *JobService) FileCoordinates(ctx context.Context, id, fileName string) (entity.ProcessedFile, error) {
	job, err := s.Coordinates(ctx, id)
	if err != nil {
		return entity.ProcessedFile{}, err
	}
	f, ok := job.Result.File(fileName)
	if !ok {
		return entity.ProcessedFile{}, fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
	}
	return f, nil
}

func (s *JobService) Download(ctx context.Context, id string) (*Download, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assembler.Combined(job)
}

func (s *JobService) DownloadFile(ctx context.Context, id, fileName string) (*Download, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assembler.File(job, fileName)
}

func (s *JobService) DownloadAll(ctx context.Context, id string) (*Download, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assembler.Bundle(job)
}

// Cancel stops a job that has not reached a terminal state. A run in this
// process is interrupted and records the failure itself; otherwise the job
// is failed directly and workers skip it when claimed.
func (s *JobService) Cancel(ctx context.Context, id string) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return entity.ErrTerminal
	}
	if s.cancels != nil && s.cancels.Cancel(id) {
		slog.Info("running conversion cancelled", "job_id", id)
		return nil
	}
	if err := s.repo.MarkFailed(ctx, id, CancelledMessage); err != nil {
		return err
	}
	slog.Info("queued conversion cancelled", "job_id", id)
	return nil
}

// ExtractCoordinates runs first-two coordinate extraction on a KML document.
func (s *JobService) ExtractCoordinates(doc string) []entity.Coordinate {
	return kml.FirstTwoCoordinates(doc)
}

// cleanFileName drops any client-side directory part.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func isZipName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".zip")
}

func isZipContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/zip" || ct == "application/x-zip-compressed"
}

func hasZipSignature(sig []byte) bool {
	for _, s := range zipSignatures {
		if bytes.Equal(sig, s) {
			return true
		}
	}
	return false
}
