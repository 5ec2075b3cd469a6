// Package memory holds process-local repository implementations used in dev
// mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo stores copies of jobs; callers never share memory with the store.
// The tx argument is ignored.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]model.Job)}
}

func (r *JobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) error {
	if job == nil || job.ID == "" || !job.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (r *JobRepo) List(_ context.Context, _ repository.Tx) ([]*model.Job, error) {
	return r.filter(func(model.Job) bool { return true }), nil
}

func (r *JobRepo) ListByStatus(_ context.Context, _ repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return r.filter(func(j model.Job) bool { return j.Status == status }), nil
}

func (r *JobRepo) FindBySourceName(_ context.Context, _ repository.Tx, sourceName string) (*model.Job, error) {
	return r.latest(func(j model.Job) bool { return j.SourceName == sourceName })
}

func (r *JobRepo) FindByOutput(_ context.Context, _ repository.Tx, output string) (*model.Job, error) {
	if output == "" {
		return nil, domain.ErrNotFound
	}
	return r.latest(func(j model.Job) bool { return j.OutputArtifact == output })
}

func (r *JobRepo) Delete(_ context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *JobRepo) DeleteAll(_ context.Context, _ repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.jobs))
	r.jobs = make(map[string]model.Job)
	return n, nil
}

// filter returns matches ordered like the SQL store: created_at, then id.
func (r *JobRepo) filter(keep func(model.Job) bool) []*model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if keep(j) {
			j := j
			out = append(out, &j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func (r *JobRepo) latest(match func(model.Job) bool) (*model.Job, error) {
	all := r.filter(match)
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	return all[len(all)-1], nil
}
