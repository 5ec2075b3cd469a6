package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Requeuer re-dispatches jobs left pending.
type Requeuer interface {
	RequeuePending(ctx context.Context) (int, error)
}

// RequeueWorker periodically hands pending jobs back to the dispatcher, so
// jobs rejected by a full queue or a failed load are eventually run.
type RequeueWorker struct {
	interval time.Duration
	uc       Requeuer
	log      *zerolog.Logger
}

func NewRequeueWorker(interval time.Duration, uc Requeuer, logger *zerolog.Logger) *RequeueWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "RequeueWorker").Logger()
	return &RequeueWorker{
		interval: interval,
		uc:       uc,
		log:      &l,
	}
}

// Run schedules requeue passes until ctx ends. The first pass starts
// immediately; passes never overlap.
func (w *RequeueWorker) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.tick(ctx) }),
		gocron.WithName("requeue-pending"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("initializing gocron job: %w", err)
	}

	w.log.Info().Dur("interval", w.interval).Msg("Starting requeue worker")
	s.Start()
	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		w.log.Error().Err(err).Msg("shutting down gocron has failed")
	}
	w.log.Info().Msg("Stopping requeue worker")
	return ctx.Err()
}

func (w *RequeueWorker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.uc.RequeuePending(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("requeue worker error")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("pending jobs requeued")
	}
}
