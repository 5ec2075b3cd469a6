package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/infra/metrics"
	red "media-transcoder/internal/infra/redis"

	"github.com/rs/zerolog"
)

// Runner is what the dispatcher executes per job; *Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, req Request)
}

// Dispatcher runs supervisors on the pool, at most one per job across the
// process (in-flight set) and across instances (per-job lock).
type Dispatcher struct {
	pool     *Pool
	runner   Runner
	locker   red.Locker
	lockTTL  time.Duration
	inflight sync.Map
	log      *zerolog.Logger
}

func NewDispatcher(pool *Pool, runner Runner, locker red.Locker, lockTTL time.Duration, logger *zerolog.Logger) *Dispatcher {
	if locker == nil {
		locker = red.NoopLocker{}
	}
	return &Dispatcher{
		pool:    pool,
		runner:  runner,
		locker:  locker,
		lockTTL: lockTTL,
		log:     logger,
	}
}

// Dispatch queues req without blocking. A job already in flight here is
// skipped; a rejected job stays pending for the requeue scheduler.
func (d *Dispatcher) Dispatch(req Request) error {
	if req.JobID == "" {
		return domain.ErrInvalidArgument
	}
	if _, loaded := d.inflight.LoadOrStore(req.JobID, struct{}{}); loaded {
		metrics.IncDispatch("duplicate")
		return nil
	}
	if err := d.pool.Submit(d.task(req)); err != nil {
		d.inflight.Delete(req.JobID)
		metrics.IncDispatch("queue_full")
		return err
	}
	metrics.IncDispatch("accepted")
	return nil
}

// InFlight reports whether a supervisor for jobID is queued or running here.
func (d *Dispatcher) InFlight(jobID string) bool {
	_, ok := d.inflight.Load(jobID)
	return ok
}

func (d *Dispatcher) task(req Request) Task {
	return func(ctx context.Context) error {
		defer d.inflight.Delete(req.JobID)
		// A started encode runs to completion even during shutdown.
		ctx = context.WithoutCancel(ctx)

		key := red.JobLockKey(req.JobID)
		lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		token, err := d.locker.TryLock(lctx, key, d.lockTTL)
		cancel()
		if errors.Is(err, domain.ErrJobLocked) {
			metrics.IncDispatch("locked")
			d.log.Debug().Str("job_id", req.JobID).Msg("job locked elsewhere, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			uctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := d.locker.Unlock(uctx, key, token); err != nil {
				d.log.Warn().Err(err).Str("job_id", req.JobID).Msg("release job lock")
			}
		}()

		metrics.IncInFlight()
		defer metrics.DecInFlight()
		d.runner.Run(ctx, req)
		return nil
	}
}
