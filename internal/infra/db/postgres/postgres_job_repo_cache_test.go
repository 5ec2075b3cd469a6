//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestJobRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	job := &model.Job{ID: "job-123", SourceName: "abc_clip.mov", Status: model.JobStatusProcessing, Progress: 40}
	jobJSON, _ := json.Marshal(job)

	t.Run("FindByID should fetch from DB and set cache on miss", func(t *testing.T) {
		// Arrange
		innerRepoCalled := false
		var cacheSets sync.Map

		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", redis.Nil // Simulate cache miss
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cacheSets.Store(key, value)
				return nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
				innerRepoCalled = true
				return job, nil
			},
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())

		// Act
		result, err := decorator.FindByID(ctx, nil, "job-123")

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerRepoCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if _, ok := cacheSets.Load("job:id:job-123"); !ok {
			t.Error("expected the job to be cached after a miss")
		}
		if result == nil || result.ID != "job-123" {
			t.Error("did not return the correct job from the inner repository")
		}
	})

	t.Run("FindByID should serve a hit without touching the DB", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(jobJSON), nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
				t.Error("inner repository must not be called on a cache hit")
				return nil, nil
			},
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())
		result, err := decorator.FindByID(ctx, nil, "job-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Progress != 40 || result.Status != model.JobStatusProcessing {
			t.Errorf("unexpected cached job: %+v", result)
		}
	})

	t.Run("FindByID should propagate not found without caching", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", redis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				t.Error("a missing job must not be cached")
				return nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
				return nil, domain.ErrNotFound
			},
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())
		if _, err := decorator.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Save should write through to the cache", func(t *testing.T) {
		var stored []byte
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				stored = value.([]byte)
				return nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, j *model.Job) error { return nil },
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())
		if err := decorator.Save(ctx, nil, job); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var cached model.Job
		if err := json.Unmarshal(stored, &cached); err != nil || cached.ID != job.ID {
			t.Errorf("cache not written through: %v %+v", err, cached)
		}
	})

	t.Run("Save should evict the key when the DB write fails", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				t.Error("cache must not be written after a failed save")
				return nil
			},
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, j *model.Job) error { return domain.ErrStore },
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())
		if err := decorator.Save(ctx, nil, job); !errors.Is(err, domain.ErrStore) {
			t.Fatalf("expected ErrStore, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "job:id:job-123" {
			t.Errorf("expected eviction of job:id:job-123, got %v", deleted)
		}
	})

	t.Run("DeleteAll should evict every listed job", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerJobRepo{
			ListFunc: func(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
				return []*model.Job{{ID: "a"}, {ID: "b"}}, nil
			},
			DeleteAllFunc: func(ctx context.Context, tx repository.Tx) (int64, error) { return 2, nil },
		}

		decorator := NewJobRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, newTestLogger())
		n, err := decorator.DeleteAll(ctx, nil)
		if err != nil || n != 2 {
			t.Fatalf("DeleteAll() = %d, %v", n, err)
		}
		if len(deleted) != 2 {
			t.Errorf("expected 2 evictions, got %v", deleted)
		}
	})
}
