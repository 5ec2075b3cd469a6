//go:build !integration

package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"media-transcoder/internal/domain"

	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, req Request)

func (f runnerFunc) Run(ctx context.Context, req Request) { f(ctx, req) }

type mockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	mu          sync.Mutex
	unlocked    []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.TryLockFunc(ctx, key, ttl)
}

func (m *mockLocker) Unlock(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocked = append(m.unlocked, key)
	return nil
}

func TestDispatcher(t *testing.T) {
	t.Run("should run a job under its lock and release it", func(t *testing.T) {
		pool := NewPool(1, 4, newTestLogger())
		pool.Start(t.Context())
		defer pool.Stop()

		ran := make(chan Request, 1)
		locker := &mockLocker{TryLockFunc: func(_ context.Context, key string, _ time.Duration) (string, error) {
			require.Equal(t, "transcode:job:j1", key)
			return "tok", nil
		}}
		d := NewDispatcher(pool, runnerFunc(func(_ context.Context, req Request) { ran <- req }), locker, time.Minute, newTestLogger())

		require.NoError(t, d.Dispatch(Request{JobID: "j1", InputPath: "in", OutputPath: "out"}))
		require.Equal(t, "in", (<-ran).InputPath)
		require.Eventually(t, func() bool { return !d.InFlight("j1") }, time.Second, 5*time.Millisecond)

		locker.mu.Lock()
		defer locker.mu.Unlock()
		require.Equal(t, []string{"transcode:job:j1"}, locker.unlocked)
	})

	t.Run("should skip a job already in flight", func(t *testing.T) {
		pool := NewPool(1, 4, newTestLogger())
		pool.Start(t.Context())
		defer pool.Stop()

		release := make(chan struct{})
		var (
			mu   sync.Mutex
			runs int
		)
		d := NewDispatcher(pool, runnerFunc(func(context.Context, Request) {
			mu.Lock()
			runs++
			mu.Unlock()
			<-release
		}), nil, time.Minute, newTestLogger())

		require.NoError(t, d.Dispatch(Request{JobID: "j1"}))
		require.NoError(t, d.Dispatch(Request{JobID: "j1"}))
		require.True(t, d.InFlight("j1"))
		close(release)

		require.Eventually(t, func() bool { return !d.InFlight("j1") }, time.Second, 5*time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, 1, runs)
	})

	t.Run("should not run a job locked by another instance", func(t *testing.T) {
		pool := NewPool(1, 4, newTestLogger())
		pool.Start(t.Context())
		defer pool.Stop()

		locker := &mockLocker{TryLockFunc: func(context.Context, string, time.Duration) (string, error) {
			return "", domain.ErrJobLocked
		}}
		d := NewDispatcher(pool, runnerFunc(func(context.Context, Request) {
			t.Error("locked job must not run")
		}), locker, time.Minute, newTestLogger())

		require.NoError(t, d.Dispatch(Request{JobID: "j2"}))
		require.Eventually(t, func() bool { return !d.InFlight("j2") }, time.Second, 5*time.Millisecond)
		require.Empty(t, locker.unlocked)
	})

	t.Run("should release the in-flight mark when the queue is full", func(t *testing.T) {
		pool := NewPool(1, 1, newTestLogger()) // not started: nothing drains the queue
		d := NewDispatcher(pool, runnerFunc(func(context.Context, Request) {}), nil, time.Minute, newTestLogger())

		require.NoError(t, d.Dispatch(Request{JobID: "a"}))
		require.ErrorIs(t, d.Dispatch(Request{JobID: "b"}), domain.ErrQueueFull)
		require.False(t, d.InFlight("b"))
		require.ErrorIs(t, d.Dispatch(Request{}), domain.ErrInvalidArgument)
	})
}
