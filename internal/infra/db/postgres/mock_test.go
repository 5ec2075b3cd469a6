//go:build !integration

package postgres

import (
	"context"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"
	red "media-transcoder/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerJobRepo mocks the database repository that the Job decorator wraps.
type mockInnerJobRepo struct {
	SaveFunc             func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc         func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
	ListFunc             func(ctx context.Context, tx repository.Tx) ([]*model.Job, error)
	ListByStatusFunc     func(ctx context.Context, tx repository.Tx, status model.JobStatus) ([]*model.Job, error)
	FindBySourceNameFunc func(ctx context.Context, tx repository.Tx, name string) (*model.Job, error)
	FindByOutputFunc     func(ctx context.Context, tx repository.Tx, output string) (*model.Job, error)
	DeleteFunc           func(ctx context.Context, tx repository.Tx, id string) error
	DeleteAllFunc        func(ctx context.Context, tx repository.Tx) (int64, error)
}

var _ repository.JobRepository = &mockInnerJobRepo{}

func (m *mockInnerJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	return m.SaveFunc(ctx, tx, job)
}
func (m *mockInnerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	return m.ListFunc(ctx, tx)
}
func (m *mockInnerJobRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return m.ListByStatusFunc(ctx, tx, status)
}
func (m *mockInnerJobRepo) FindBySourceName(ctx context.Context, tx repository.Tx, name string) (*model.Job, error) {
	return m.FindBySourceNameFunc(ctx, tx, name)
}
func (m *mockInnerJobRepo) FindByOutput(ctx context.Context, tx repository.Tx, output string) (*model.Job, error) {
	return m.FindByOutputFunc(ctx, tx, output)
}
func (m *mockInnerJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	return m.DeleteAllFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Close() error                   { return m.CloseFunc() }
