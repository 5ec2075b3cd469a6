package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/ffmpeg"
	"media-transcoder/internal/infra/logging"
	"media-transcoder/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Request identifies one job and the artifacts its encode reads and writes.
type Request struct {
	JobID      string
	InputPath  string
	OutputPath string
}

// Supervisor drives one encoder invocation per job and keeps the stored job
// and the subscribers in step with it.
//
// Run never returns an error and never panics. Every failure after the job
// enters processing ends in a persisted failed job plus one terminal event.
// A job deleted before or during the run produces no events.
type Supervisor struct {
	jobs       repository.JobRepository
	encoder    adapter.Encoder
	notifier   adapter.Notifier
	params     adapter.EncodeParams
	retryDelay time.Duration
	log        *zerolog.Logger
}

func NewSupervisor(
	jobs repository.JobRepository,
	encoder adapter.Encoder,
	notifier adapter.Notifier,
	params adapter.EncodeParams,
	finalizeRetryDelay time.Duration,
	logger *zerolog.Logger,
) *Supervisor {
	return &Supervisor{
		jobs:       jobs,
		encoder:    encoder,
		notifier:   notifier,
		params:     params,
		retryDelay: finalizeRetryDelay,
		log:        logger,
	}
}

// jobRun is the per-invocation state. The progress reader is its only writer
// until the readers are joined.
type jobRun struct {
	req          Request
	log          *zerolog.Logger
	runningMax   float64
	vanished     bool
	terminalSent bool
}

func (s *Supervisor) Run(ctx context.Context, req Request) {
	ctx = logging.WithJobID(ctx, req.JobID)
	run := &jobRun{req: req, log: logging.With(ctx, s.log)}
	started := time.Now()
	inProcessing := false

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		run.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("supervisor panic")
		if inProcessing && !run.terminalSent && !run.vanished {
			s.emit(ctx, run, model.ProgressEvent{
				JobID:       req.JobID,
				Progress:    run.runningMax,
				Status:      model.JobStatusFailed,
				ErrorDetail: fmt.Sprintf("%v: %v", domain.ErrUnexpected, r),
			})
			run.terminalSent = true
			metrics.IncJobFinished(string(model.JobStatusFailed), time.Since(started))
		}
	}()

	job, err := s.jobs.FindByID(ctx, repository.NoTX, req.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		run.log.Debug().Msg("job no longer exists, nothing to do")
		return
	}
	if err != nil {
		metrics.IncStoreError("load")
		run.log.Error().Err(err).Msg("load job; leaving it pending")
		return
	}
	if job.Status != model.JobStatusPending {
		run.log.Warn().Str("status", string(job.Status)).Msg("job is not pending, abandoning run")
		return
	}
	if err := job.Transition(model.JobStatusProcessing); err != nil {
		run.log.Error().Err(err).Msg("enter processing")
		return
	}
	if err := s.jobs.Save(ctx, repository.NoTX, job); err != nil {
		metrics.IncStoreError("start")
		run.log.Error().Err(err).Msg("persist processing state; leaving it pending")
		return
	}
	inProcessing = true
	run.runningMax = job.Progress
	run.log.Info().Str("input", req.InputPath).Str("output", req.OutputPath).Msg("transcode started")

	runErr := s.execute(ctx, run)
	s.finalize(ctx, run, runErr, started)
}

// execute probes, launches and drains the encoder. A nil result means the
// encoder exited successfully.
func (s *Supervisor) execute(ctx context.Context, run *jobRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("transcode panic")
			err = fmt.Errorf("%w: %v", domain.ErrUnexpected, r)
		}
	}()

	total, err := s.encoder.Probe(ctx, run.req.InputPath)
	if err != nil {
		return err
	}
	run.log.Debug().Dur("duration", total).Msg("probed input")

	proc, err := s.encoder.Start(ctx, adapter.EncodeRequest{
		InputPath:  run.req.InputPath,
		OutputPath: run.req.OutputPath,
		Params:     s.params,
	})
	if err != nil {
		return err
	}

	tail := newDiagTail(diagTailLines)
	var g errgroup.Group
	g.Go(guardReader(proc.Progress(), func(r io.Reader) error {
		return readLines(r, func(line string) {
			if elapsed, ok := parseElapsed(line); ok {
				s.advance(ctx, run, percentOf(elapsed, total))
			}
		})
	}))
	g.Go(guardReader(proc.Diagnostics(), func(r io.Reader) error {
		return readLines(r, func(line string) {
			tail.add(line)
			run.log.Debug().Str("stderr", line).Msg("encoder diagnostics")
		})
	}))
	readErr := g.Wait()
	waitErr := proc.Wait()

	if waitErr != nil {
		var exitErr *ffmpeg.ExitError
		if errors.As(waitErr, &exitErr) {
			run.log.Warn().Int("exit_code", exitErr.Code).Str("stderr_tail", tail.String()).Msg("encoder exited with error")
			if last := tail.last(); last != "" {
				return fmt.Errorf("%w: %w: %s", domain.ErrProcessFailure, exitErr, last)
			}
			return fmt.Errorf("%w: %w", domain.ErrProcessFailure, exitErr)
		}
		return waitErr
	}
	if errors.Is(readErr, domain.ErrUnexpected) {
		return readErr
	}
	if readErr != nil {
		run.log.Warn().Err(readErr).Msg("stream read error after successful exit")
	}
	return nil
}

// guardReader turns a reader panic into an error and keeps draining r so the
// encoder never blocks on a full pipe.
func guardReader(r io.Reader, read func(io.Reader) error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				_, _ = io.Copy(io.Discard, r)
				err = fmt.Errorf("%w: stream reader: %v", domain.ErrUnexpected, p)
			}
		}()
		return read(r)
	}
}

// advance applies one computed percentage: when it differs from the stored
// value, the running maximum of it and everything surfaced so far is
// persisted and emitted.
func (s *Supervisor) advance(ctx context.Context, run *jobRun, pct float64) {
	if run.vanished {
		return
	}
	job, err := s.jobs.FindByID(ctx, repository.NoTX, run.req.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		run.vanished = true
		run.log.Info().Msg("job deleted while processing, suppressing updates")
		return
	}
	if err != nil {
		metrics.IncStoreError("progress")
		run.log.Warn().Err(err).Msg("load job for progress update")
		return
	}
	if pct == job.Progress {
		return
	}

	job.AdvanceProgress(max(pct, run.runningMax))
	if err := s.jobs.Save(ctx, repository.NoTX, job); err != nil {
		metrics.IncStoreError("progress")
		run.log.Warn().Err(err).Float64("progress", job.Progress).Msg("persist progress")
		return
	}
	run.runningMax = job.Progress
	metrics.IncProgressUpdate()
	s.emit(ctx, run, model.EventFor(job))
}

// finalize records the terminal state, retrying the write once, and emits
// the single terminal event.
func (s *Supervisor) finalize(ctx context.Context, run *jobRun, runErr error, started time.Time) {
	if run.vanished {
		return
	}

	var (
		job *model.Job
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			metrics.IncStoreError("finalize")
			run.log.Warn().Err(err).Msg("finalize failed, retrying")
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
			}
		}
		job, err = s.finalizeOnce(ctx, run, runErr)
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			break
		}
		if errors.Is(err, domain.ErrUnexpected) && runErr == nil {
			// a completion that blew up is retried as a failure
			runErr = err
		}
	}

	if errors.Is(err, domain.ErrNotFound) {
		run.vanished = true
		run.log.Info().Msg("job deleted before finalize, suppressing terminal event")
		return
	}

	var ev model.ProgressEvent
	if err != nil {
		metrics.IncStoreError("finalize")
		detail := fmt.Sprintf("failed to finalize job: %v", err)
		if runErr != nil {
			detail += "; " + runErr.Error()
		}
		run.log.Error().Err(err).Msg("finalize failed twice")
		ev = model.ProgressEvent{
			JobID:       run.req.JobID,
			Progress:    run.runningMax,
			Status:      model.JobStatusFailed,
			ErrorDetail: detail,
		}
	} else {
		ev = model.EventFor(job)
	}

	metrics.IncJobFinished(string(ev.Status), time.Since(started))
	if ev.Status == model.JobStatusCompleted {
		run.log.Info().Str("output", job.OutputArtifact).Dur("elapsed", time.Since(started)).Msg("transcode completed")
	} else {
		run.log.Error().Str("detail", ev.ErrorDetail).Dur("elapsed", time.Since(started)).Msg("transcode failed")
	}
	s.emit(ctx, run, ev)
	run.terminalSent = true
}

// finalizeOnce writes the terminal state. A job that is already terminal,
// e.g. because an earlier attempt committed but reported an error, is
// returned as is.
func (s *Supervisor) finalizeOnce(ctx context.Context, run *jobRun, runErr error) (_ *model.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("finalize panic")
			err = fmt.Errorf("%w: %v", domain.ErrUnexpected, r)
		}
	}()

	job, err := s.jobs.FindByID(ctx, repository.NoTX, run.req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	if job.Progress < run.runningMax {
		job.Progress = run.runningMax
	}
	if runErr == nil {
		err = job.Complete(run.req.OutputPath)
	} else {
		err = job.Fail(runErr.Error())
	}
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Supervisor) emit(ctx context.Context, run *jobRun, ev model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			run.log.Error().Interface("panic", r).Msg("notifier panic")
		}
	}()
	s.notifier.Broadcast(ctx, ev)
}
