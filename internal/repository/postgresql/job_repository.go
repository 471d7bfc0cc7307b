package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shpkml-service/internal/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, id, originalFileName string) (*entity.ConversionJob, error) {
	const q = `
INSERT INTO conversion_jobs (id, original_file_name, status)
VALUES ($1, $2, 'processing')
RETURNING created_at;
`
	job := &entity.ConversionJob{
		ID:               id,
		OriginalFileName: originalFileName,
		Status:           entity.StatusProcessing,
	}
	if err := r.pool.QueryRow(ctx, q, id, originalFileName).Scan(&job.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, entity.ErrDuplicateID
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.ConversionJob, error) {
	const q = `
SELECT id, original_file_name, status, error, created_at, completed_at,
       combined_file, output_dir, rep_longitude, rep_latitude, rep_altitude, files
FROM conversion_jobs
WHERE id = $1;
`

	var (
		job          entity.ConversionJob
		statusText   string
		combinedFile *string
		outputDir    *string
		repLon       *float64
		repLat       *float64
		repAlt       *float64
		filesBytes   []byte
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.OriginalFileName,
		&statusText,
		&job.Error, // NULL => nil
		&job.CreatedAt,
		&job.CompletedAt, // NULL => nil
		&combinedFile,
		&outputDir,
		&repLon,
		&repLat,
		&repAlt,
		&filesBytes,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)

	// поля результата есть только у completed
	if combinedFile != nil {
		res := &entity.Result{CombinedFile: *combinedFile}
		if outputDir != nil {
			res.OutputDir = *outputDir
		}
		if repLon != nil && repLat != nil {
			res.Representative = &entity.Coordinate{Longitude: *repLon, Latitude: *repLat, Altitude: repAlt}
		}
		if len(filesBytes) > 0 {
			if err := json.Unmarshal(filesBytes, &res.Files); err != nil {
				return nil, fmt.Errorf("decode files of job %s: %w", id, err)
			}
		}
		job.Result = res
	}

	return &job, nil
}

// MarkCompleted applies only while the job is still processing.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string, result *entity.Result, warning string) error {
	if result == nil {
		result = &entity.Result{}
	}
	files, err := json.Marshal(result.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	var repLon, repLat, repAlt *float64
	if c := result.Representative; c != nil {
		repLon, repLat, repAlt = &c.Longitude, &c.Latitude, c.Altitude
	}
	var warn *string
	if warning != "" {
		warn = &warning
	}

	const q = `
UPDATE conversion_jobs
SET status='completed', error=$2, completed_at=$3,
    combined_file=$4, output_dir=$5, rep_longitude=$6, rep_latitude=$7, rep_altitude=$8, files=$9
WHERE id=$1 AND status='processing';
`
	tag, err := r.pool.Exec(ctx, q, id, warn, time.Now().UTC(),
		result.CombinedFile, result.OutputDir, repLon, repLat, repAlt, files)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTerminal(ctx, id)
	}
	return nil
}

// MarkFailed applies only while the job is still processing.
func (r *JobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const q = `
UPDATE conversion_jobs
SET status='failed', error=$2, completed_at=$3
WHERE id=$1 AND status='processing';
`
	tag, err := r.pool.Exec(ctx, q, id, message, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTerminal(ctx, id)
	}
	return nil
}

func (r *JobRepository) missOrTerminal(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM conversion_jobs WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return entity.ErrNotFound
	}
	return entity.ErrTerminal
}
