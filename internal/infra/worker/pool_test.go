//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"media-transcoder/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	t.Run("should run submitted tasks", func(t *testing.T) {
		p := NewPool(2, 4, newTestLogger())
		p.Start(t.Context())
		defer p.Stop()

		var n atomic.Int32
		done := make(chan struct{}, 3)
		for i := 0; i < 3; i++ {
			require.NoError(t, p.Submit(func(context.Context) error {
				n.Add(1)
				done <- struct{}{}
				return nil
			}))
		}
		for i := 0; i < 3; i++ {
			<-done
		}
		require.EqualValues(t, 3, n.Load())
	})

	t.Run("should reject work when the queue is full", func(t *testing.T) {
		p := NewPool(1, 1, newTestLogger())
		release := make(chan struct{})
		started := make(chan struct{})
		p.Start(t.Context())
		defer p.Stop()
		defer close(release)

		require.NoError(t, p.Submit(func(context.Context) error {
			close(started)
			<-release
			return nil
		}))
		<-started
		require.NoError(t, p.Submit(func(context.Context) error { return nil }))

		err := p.Submit(func(context.Context) error { return nil })
		require.ErrorIs(t, err, domain.ErrQueueFull)
	})

	t.Run("should survive a panicking task", func(t *testing.T) {
		p := NewPool(1, 2, newTestLogger())
		p.Start(t.Context())
		defer p.Stop()

		require.NoError(t, p.Submit(func(context.Context) error { panic("bad task") }))
		done := make(chan struct{})
		require.NoError(t, p.Submit(func(context.Context) error { close(done); return nil }))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not recover from panic")
		}
	})

	t.Run("should refuse work after Stop", func(t *testing.T) {
		p := NewPool(1, 1, newTestLogger())
		p.Start(t.Context())
		p.Stop()
		p.Stop()
		require.True(t, errors.Is(p.Submit(func(context.Context) error { return nil }), ErrPoolStopped))
	})
}
