package repository

import (
	"context"

	"media-transcoder/internal/domain/model"
)

// JobRepository persists transcoding jobs. Save is an upsert and performs no
// transition validation; callers own the state machine.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	// FindByID returns domain.ErrNotFound when the job does not exist.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	List(ctx context.Context, tx Tx) ([]*model.Job, error)
	ListByStatus(ctx context.Context, tx Tx, status model.JobStatus) ([]*model.Job, error)
	FindBySourceName(ctx context.Context, tx Tx, sourceName string) (*model.Job, error)
	FindByOutput(ctx context.Context, tx Tx, output string) (*model.Job, error)
	Delete(ctx context.Context, tx Tx, id string) error
	DeleteAll(ctx context.Context, tx Tx) (int64, error)
}
