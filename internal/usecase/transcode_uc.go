// File: internal/usecase/transcode_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/storage"
	"media-transcoder/internal/infra/worker"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ TranscodeUseCase = (*transcodeUC)(nil)

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Dispatcher hands a job to the background supervisors.
type Dispatcher interface {
	Dispatch(req worker.Request) error
}

// FileStore is the artifact storage the orchestrator works against.
type FileStore interface {
	SaveUpload(filename string, r io.Reader) (string, error)
	Path(kind storage.Kind, name string) string
	Exists(kind storage.Kind, name string) bool
	Remove(kind storage.Kind, name string) error
	Archive(paths []string) (string, error)
	ListArchives() ([]string, error)
	Clear() (int, error)
}

type TranscodeUseCase interface {
	Submit(ctx context.Context, uploads []Upload) ([]*model.Job, error)
	List(ctx context.Context) ([]*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	DownloadPath(ctx context.Context, id string) (string, error)
	JobIDByOutput(ctx context.Context, outputFilename string) (string, error)
	Archive(ctx context.Context) (name, path string, err error)
	ListArchives(ctx context.Context) ([]string, error)
	DeleteFile(ctx context.Context, kind, filename string) error
	ClearAll(ctx context.Context) error
	RequeuePending(ctx context.Context) (int, error)
	FailInterrupted(ctx context.Context, staleAfter time.Duration) (int, error)
}

type transcodeUC struct {
	jobs       repository.JobRepository
	tm         repository.TransactionManager
	files      FileStore
	dispatcher Dispatcher
	notifier   adapter.Notifier
	log        *zerolog.Logger
}

// NewTranscodeUseCase wires the orchestrator. tm may be nil when the job store
// has no transactions.
func NewTranscodeUseCase(
	jobs repository.JobRepository,
	tm repository.TransactionManager,
	files FileStore,
	dispatcher Dispatcher,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *transcodeUC {
	return &transcodeUC{
		jobs:       jobs,
		tm:         tm,
		files:      files,
		dispatcher: dispatcher,
		notifier:   notifier,
		log:        logger,
	}
}

// Submit stores every upload, creates a pending job per file and hands the
// jobs to the dispatcher. A job the dispatcher cannot accept stays pending.
func (uc *transcodeUC) Submit(ctx context.Context, uploads []Upload) ([]*model.Job, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files", domain.ErrInvalidArgument)
	}

	created := make([]*model.Job, 0, len(uploads))
	var submitErr error
	for _, up := range uploads {
		name, err := uc.files.SaveUpload(up.Filename, up.Body)
		if err != nil {
			submitErr = err
			break
		}
		job, err := model.NewJob(name)
		if err != nil {
			submitErr = err
			break
		}
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			_ = uc.files.Remove(storage.KindUpload, name)
			submitErr = err
			break
		}
		uc.log.Info().Str("job_id", job.ID).Str("file", name).Msg("job created")
		created = append(created, job)
	}

	for _, job := range created {
		uc.dispatch(job)
	}
	if submitErr != nil {
		return created, submitErr
	}
	return created, nil
}

func (uc *transcodeUC) dispatch(job *model.Job) bool {
	if err := uc.dispatcher.Dispatch(uc.requestFor(job)); err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("dispatch deferred, job stays pending")
		return false
	}
	return true
}

func (uc *transcodeUC) requestFor(job *model.Job) worker.Request {
	return worker.Request{
		JobID:      job.ID,
		InputPath:  uc.files.Path(storage.KindUpload, job.SourceName),
		OutputPath: uc.files.Path(storage.KindOutput, storage.OutputName(job.SourceName)),
	}
}

func (uc *transcodeUC) List(ctx context.Context) ([]*model.Job, error) {
	return uc.jobs.List(ctx, nil)
}

func (uc *transcodeUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return uc.jobs.FindByID(ctx, nil, id)
}

// DownloadPath returns the output file of a job, or domain.ErrNotFound when
// the job has no output on disk.
func (uc *transcodeUC) DownloadPath(ctx context.Context, id string) (string, error) {
	job, err := uc.jobs.FindByID(ctx, nil, id)
	if err != nil {
		return "", err
	}
	if job.OutputArtifact == "" || !uc.files.Exists(storage.KindOutput, filepath.Base(job.OutputArtifact)) {
		return "", fmt.Errorf("%w: file not found", domain.ErrNotFound)
	}
	return job.OutputArtifact, nil
}

func (uc *transcodeUC) JobIDByOutput(ctx context.Context, outputFilename string) (string, error) {
	job, err := uc.jobs.FindByOutput(ctx, nil, uc.files.Path(storage.KindOutput, outputFilename))
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Archive zips the outputs of all completed jobs.
func (uc *transcodeUC) Archive(ctx context.Context) (string, string, error) {
	done, err := uc.jobs.ListByStatus(ctx, nil, model.JobStatusCompleted)
	if err != nil {
		return "", "", err
	}
	paths := make([]string, 0, len(done))
	for _, j := range done {
		if j.OutputArtifact != "" {
			paths = append(paths, j.OutputArtifact)
		}
	}
	if len(paths) == 0 {
		return "", "", fmt.Errorf("%w: no files to zip", domain.ErrNotFound)
	}
	name, err := uc.files.Archive(paths)
	if err != nil {
		return "", "", err
	}
	return name, uc.files.Path(storage.KindArchive, name), nil
}

func (uc *transcodeUC) ListArchives(_ context.Context) ([]string, error) {
	return uc.files.ListArchives()
}

// DeleteFile removes one stored file and the job it belongs to, if any.
func (uc *transcodeUC) DeleteFile(ctx context.Context, kind, filename string) error {
	k, err := storage.ParseKind(kind)
	if err != nil {
		return err
	}

	var job *model.Job
	switch k {
	case storage.KindUpload:
		job, err = uc.jobs.FindBySourceName(ctx, nil, filename)
	case storage.KindOutput:
		job, err = uc.jobs.FindByOutput(ctx, nil, uc.files.Path(storage.KindOutput, filename))
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := uc.files.Remove(k, filename); err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	if err := uc.jobs.Delete(ctx, nil, job.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	uc.log.Info().Str("job_id", job.ID).Str("file", filename).Msg("job deleted with its file")
	return nil
}

// ClearAll empties the artifact directories and deletes every job.
func (uc *transcodeUC) ClearAll(ctx context.Context) error {
	files, err := uc.files.Clear()
	if err != nil {
		return err
	}

	var jobs int64
	deleteAll := func(ctx context.Context, tx repository.Tx) error {
		n, err := uc.jobs.DeleteAll(ctx, tx)
		jobs = n
		return err
	}
	if uc.tm != nil {
		err = uc.tm.WithTx(ctx, pgx.TxOptions{}, deleteAll)
	} else {
		err = deleteAll(ctx, nil)
	}
	if err != nil {
		return err
	}
	uc.log.Info().Int("files", files).Int64("jobs", jobs).Msg("all files and jobs cleared")
	return nil
}

// RequeuePending dispatches every pending job again. It stops at the first
// full-queue rejection and reports how many jobs were accepted.
func (uc *transcodeUC) RequeuePending(ctx context.Context) (int, error) {
	pending, err := uc.jobs.ListByStatus(ctx, nil, model.JobStatusPending)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		err := uc.dispatcher.Dispatch(uc.requestFor(job))
		if errors.Is(err, domain.ErrQueueFull) {
			uc.log.Warn().Int("remaining", len(pending)-accepted).Msg("queue full, requeue deferred")
			break
		}
		if err != nil {
			uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("requeue failed")
			continue
		}
		accepted++
	}
	return accepted, nil
}

// FailInterrupted fails processing jobs untouched for staleAfter. Such jobs
// lost their supervisor, e.g. to a crash, and would otherwise never finish.
func (uc *transcodeUC) FailInterrupted(ctx context.Context, staleAfter time.Duration) (int, error) {
	running, err := uc.jobs.ListByStatus(ctx, nil, model.JobStatusProcessing)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-staleAfter)
	failed := 0
	for _, job := range running {
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		if err := job.Fail("interrupted: supervisor stopped before the job finished"); err != nil {
			return failed, err
		}
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			return failed, err
		}
		uc.notifier.Broadcast(ctx, model.EventFor(job))
		uc.log.Warn().Str("job_id", job.ID).Msg("stale processing job failed")
		failed++
	}
	return failed, nil
}
