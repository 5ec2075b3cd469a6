//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type requeuerFunc func(ctx context.Context) (int, error)

func (f requeuerFunc) RequeuePending(ctx context.Context) (int, error) { return f(ctx) }

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestRequeueWorker(t *testing.T) {
	t.Run("should run immediately and then on every interval", func(t *testing.T) {
		var calls atomic.Int32
		w := NewRequeueWorker(20*time.Millisecond, requeuerFunc(func(context.Context) (int, error) {
			calls.Add(1)
			return 1, nil
		}), newTestLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("should keep running after a failed pass", func(t *testing.T) {
		var calls atomic.Int32
		w := NewRequeueWorker(10*time.Millisecond, requeuerFunc(func(context.Context) (int, error) {
			calls.Add(1)
			return 0, errors.New("store down")
		}), newTestLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
		cancel()
		<-done
	})
}
