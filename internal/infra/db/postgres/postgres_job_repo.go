package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, source_name, status, progress, output_artifact, last_error, created_at, updated_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	const q = `
INSERT INTO transcode_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  output_artifact = EXCLUDED.output_artifact,
  last_error = EXCLUDED.last_error,
  updated_at = EXCLUDED.updated_at;`

	if _, err := exec.Exec(ctx, q,
		job.ID, job.SourceName, string(job.Status), job.Progress,
		job.OutputArtifact, job.LastError, job.CreatedAt, job.UpdatedAt,
	); err != nil {
		return fmt.Errorf("%w: save job %s: %v", domain.ErrStore, job.ID, err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	return r.findOne(ctx, tx, `SELECT `+jobColumns+` FROM transcode_jobs WHERE id = $1`, id)
}

func (r *jobRepo) FindBySourceName(ctx context.Context, tx repository.Tx, sourceName string) (*model.Job, error) {
	return r.findOne(ctx, tx,
		`SELECT `+jobColumns+` FROM transcode_jobs WHERE source_name = $1 ORDER BY created_at DESC LIMIT 1`, sourceName)
}

func (r *jobRepo) FindByOutput(ctx context.Context, tx repository.Tx, output string) (*model.Job, error) {
	return r.findOne(ctx, tx,
		`SELECT `+jobColumns+` FROM transcode_jobs WHERE output_artifact = $1 ORDER BY created_at DESC LIMIT 1`, output)
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	return r.findMany(ctx, tx, `SELECT `+jobColumns+` FROM transcode_jobs ORDER BY created_at, id`)
}

func (r *jobRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return r.findMany(ctx, tx,
		`SELECT `+jobColumns+` FROM transcode_jobs WHERE status = $1 ORDER BY created_at, id`, string(status))
}

func (r *jobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := exec.Exec(ctx, `DELETE FROM transcode_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete job %s: %v", domain.ErrStore, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := exec.Exec(ctx, `DELETE FROM transcode_jobs`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete all jobs: %v", domain.ErrStore, err)
	}
	return tag.RowsAffected(), nil
}

func (r *jobRepo) findOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Job, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(exec.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return job, nil
}

func (r *jobRepo) findMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Job, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
	)
	if err := row.Scan(
		&j.ID, &j.SourceName, &status, &j.Progress,
		&j.OutputArtifact, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if !j.Status.Valid() {
		return nil, fmt.Errorf("%w: job %s has unknown status %q", domain.ErrReadDatabaseRow, j.ID, status)
	}
	return &j, nil
}
