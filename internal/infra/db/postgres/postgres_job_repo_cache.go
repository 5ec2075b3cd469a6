package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/metrics"
	red "media-transcoder/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.JobRepository = (*jobRepoCacheDecorator)(nil)

type jobRepoCacheDecorator struct {
	inner repository.JobRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewJobRepoCacheDecorator(inner repository.JobRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.JobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &jobRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

func jobKey(id string) string { return "job:id:" + id }

// Save writes through; a failed inner save evicts the key so the cache never
// holds state the database rejected.
func (d *jobRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if err := d.inner.Save(ctx, tx, job); err != nil {
		_ = d.cache.Del(ctx, jobKey(job.ID))
		return err
	}
	if tx != nil {
		// Not committed yet; let the next read repopulate.
		_ = d.cache.Del(ctx, jobKey(job.ID))
		return nil
	}
	d.put(ctx, job)
	return nil
}

func (d *jobRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	key := jobKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var job model.Job
		if json.Unmarshal([]byte(val), &job) == nil {
			metrics.IncCacheRequest("job", "hit")
			return &job, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("job cache read failed")
	}

	metrics.IncCacheRequest("job", "miss")
	job, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.put(ctx, job)
	return job, nil
}

func (d *jobRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	_ = d.cache.Del(ctx, jobKey(id))
	return d.inner.Delete(ctx, tx, id)
}

// DeleteAll evicts every cached job it can enumerate before deleting.
func (d *jobRepoCacheDecorator) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	if jobs, err := d.inner.List(ctx, tx); err == nil && len(jobs) > 0 {
		keys := make([]string, 0, len(jobs))
		for _, j := range jobs {
			keys = append(keys, jobKey(j.ID))
		}
		_ = d.cache.Del(ctx, keys...)
	}
	return d.inner.DeleteAll(ctx, tx)
}

// Pass-through methods that don't need caching
func (d *jobRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	return d.inner.List(ctx, tx)
}

func (d *jobRepoCacheDecorator) ListByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return d.inner.ListByStatus(ctx, tx, status)
}

func (d *jobRepoCacheDecorator) FindBySourceName(ctx context.Context, tx repository.Tx, sourceName string) (*model.Job, error) {
	return d.inner.FindBySourceName(ctx, tx, sourceName)
}

func (d *jobRepoCacheDecorator) FindByOutput(ctx context.Context, tx repository.Tx, output string) (*model.Job, error) {
	return d.inner.FindByOutput(ctx, tx, output)
}

func (d *jobRepoCacheDecorator) put(ctx context.Context, job *model.Job) {
	b, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, jobKey(job.ID), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("job_id", job.ID).Msg("job cache write failed")
	}
}
