//go:build !integration

package worker

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/db/memory"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- encoder fakes ---

type mockEncoder struct {
	ProbeFunc func(ctx context.Context, path string) (time.Duration, error)
	StartFunc func(ctx context.Context, req adapter.EncodeRequest) (adapter.EncodeProcess, error)
}

func (m *mockEncoder) Probe(ctx context.Context, path string) (time.Duration, error) {
	return m.ProbeFunc(ctx, path)
}

func (m *mockEncoder) Start(ctx context.Context, req adapter.EncodeRequest) (adapter.EncodeProcess, error) {
	return m.StartFunc(ctx, req)
}

// fakeProcess serves canned stream contents; Wait records whether both
// streams were drained first.
type fakeProcess struct {
	stdout  *strings.Reader
	stderr  *strings.Reader
	waitErr error

	drainedBeforeWait bool
}

func newFakeProcess(stdout, stderr string, waitErr error) *fakeProcess {
	return &fakeProcess{stdout: strings.NewReader(stdout), stderr: strings.NewReader(stderr), waitErr: waitErr}
}

func (p *fakeProcess) Progress() io.Reader    { return p.stdout }
func (p *fakeProcess) Diagnostics() io.Reader { return p.stderr }
func (p *fakeProcess) Wait() error {
	p.drainedBeforeWait = p.stdout.Len() == 0 && p.stderr.Len() == 0
	return p.waitErr
}

// encoderFor returns an encoder that probes total and starts proc.
func encoderFor(total time.Duration, proc adapter.EncodeProcess) *mockEncoder {
	return &mockEncoder{
		ProbeFunc: func(context.Context, string) (time.Duration, error) { return total, nil },
		StartFunc: func(context.Context, adapter.EncodeRequest) (adapter.EncodeProcess, error) { return proc, nil },
	}
}

// --- notifier fake ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (n *recordingNotifier) Broadcast(_ context.Context, ev model.ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) all() []model.ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.ProgressEvent(nil), n.events...)
}

// --- store fake ---

// recordingRepo wraps the in-memory store, records every persisted snapshot
// and lets tests inject failures.
type recordingRepo struct {
	*memory.JobRepo

	mu           sync.Mutex
	saved        []model.Job
	SaveFunc     func(job *model.Job) error
	FindByIDFunc func(id string) (*model.Job, error)
}

var _ repository.JobRepository = (*recordingRepo)(nil)

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{JobRepo: memory.NewJobRepo()}
}

func (r *recordingRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if r.SaveFunc != nil {
		if err := r.SaveFunc(job); err != nil {
			return err
		}
	}
	if err := r.JobRepo.Save(ctx, tx, job); err != nil {
		return err
	}
	r.mu.Lock()
	r.saved = append(r.saved, *job)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if r.FindByIDFunc != nil {
		if j, err := r.FindByIDFunc(id); j != nil || err != nil {
			return j, err
		}
	}
	return r.JobRepo.FindByID(ctx, tx, id)
}

// processingProgress returns the progress of every snapshot saved while the
// job was processing.
func (r *recordingRepo) processingProgress() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, j := range r.saved {
		if j.Status == model.JobStatusProcessing {
			out = append(out, j.Progress)
		}
	}
	return out
}

func (r *recordingRepo) statuses() []model.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JobStatus
	for _, j := range r.saved {
		if len(out) == 0 || out[len(out)-1] != j.Status {
			out = append(out, j.Status)
		}
	}
	return out
}
