//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/worker"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Mock Dispatcher ----

type MockDispatcher struct {
	mu       sync.Mutex
	Requests []worker.Request

	DispatchFunc func(req worker.Request) error
}

func (m *MockDispatcher) Dispatch(req worker.Request) error {
	if m.DispatchFunc != nil {
		if err := m.DispatchFunc(req); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return nil
}

func (m *MockDispatcher) requests() []worker.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]worker.Request(nil), m.Requests...)
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu     sync.Mutex
	Events []model.ProgressEvent
}

func (m *MockNotifier) Broadcast(_ context.Context, ev model.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	Calls int
}

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, "tx")
}
