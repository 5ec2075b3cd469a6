//go:build !integration

package web

import (
	"context"
	"io"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// mockTranscodeUC fails loudly for any method a test did not configure.
type mockTranscodeUC struct {
	SubmitFunc        func(ctx context.Context, uploads []usecase.Upload) ([]*model.Job, error)
	ListFunc          func(ctx context.Context) ([]*model.Job, error)
	GetFunc           func(ctx context.Context, id string) (*model.Job, error)
	DownloadPathFunc  func(ctx context.Context, id string) (string, error)
	JobIDByOutputFunc func(ctx context.Context, name string) (string, error)
	ArchiveFunc       func(ctx context.Context) (string, string, error)
	ListArchivesFunc  func(ctx context.Context) ([]string, error)
	DeleteFileFunc    func(ctx context.Context, kind, filename string) error
	ClearAllFunc      func(ctx context.Context) error
}

var _ usecase.TranscodeUseCase = (*mockTranscodeUC)(nil)

func (m *mockTranscodeUC) Submit(ctx context.Context, uploads []usecase.Upload) ([]*model.Job, error) {
	return m.SubmitFunc(ctx, uploads)
}
func (m *mockTranscodeUC) List(ctx context.Context) ([]*model.Job, error) { return m.ListFunc(ctx) }
func (m *mockTranscodeUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return m.GetFunc(ctx, id)
}
func (m *mockTranscodeUC) DownloadPath(ctx context.Context, id string) (string, error) {
	return m.DownloadPathFunc(ctx, id)
}
func (m *mockTranscodeUC) JobIDByOutput(ctx context.Context, name string) (string, error) {
	return m.JobIDByOutputFunc(ctx, name)
}
func (m *mockTranscodeUC) Archive(ctx context.Context) (string, string, error) {
	return m.ArchiveFunc(ctx)
}
func (m *mockTranscodeUC) ListArchives(ctx context.Context) ([]string, error) {
	return m.ListArchivesFunc(ctx)
}
func (m *mockTranscodeUC) DeleteFile(ctx context.Context, kind, filename string) error {
	return m.DeleteFileFunc(ctx, kind, filename)
}
func (m *mockTranscodeUC) ClearAll(ctx context.Context) error { return m.ClearAllFunc(ctx) }
func (m *mockTranscodeUC) RequeuePending(context.Context) (int, error) {
	panic("RequeuePending is not served over HTTP")
}
func (m *mockTranscodeUC) FailInterrupted(context.Context, time.Duration) (int, error) {
	panic("FailInterrupted is not served over HTTP")
}
