package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/domain/ports/repository"
	"media-transcoder/internal/infra/db/memory"
	pg "media-transcoder/internal/infra/db/postgres"
	"media-transcoder/internal/infra/ffmpeg"
	"media-transcoder/internal/infra/hub"
	"media-transcoder/internal/infra/logging"
	"media-transcoder/internal/infra/metrics"
	red "media-transcoder/internal/infra/redis"
	"media-transcoder/internal/infra/sched"
	"media-transcoder/internal/infra/storage"
	"media-transcoder/internal/infra/web"
	"media-transcoder/internal/infra/worker"
	"media-transcoder/internal/usecase"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	relayRetryDelay   = 2 * time.Second
	poolStatsInterval = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API, the websocket hub and the transcoding workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// Job store
	var (
		jobs repository.JobRepository
		tm   repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.ApplySchema(ctx, pool); err != nil {
			return err
		}
		go pg.ReportPoolStats(ctx, pool, poolStatsInterval)
		jobs = pg.NewJobRepo(pool)
		tm = pg.NewTxManager(pool)
	} else {
		logger.Warn().Msg("no database configured, jobs are kept in memory")
		jobs = memory.NewJobRepo()
	}

	// Subscribers, with optional cross-instance fan-out
	h := hub.NewHub(cfg.Hub.WriteTimeout, logging.Component(logger, "hub"))
	var (
		notifier adapter.Notifier = h
		locker   red.Locker       = red.NoopLocker{}
		relay    *red.EventRelay
	)
	if cfg.Redis.Enabled() {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		jobs = pg.NewJobRepoCacheDecorator(jobs, rc, cfg.Redis.TTL, logging.Component(logger, "job_cache"))
		locker = red.NewLocker(rc)
		relay = red.NewEventRelay(rc, h, cfg.Redis.Channel, logging.Component(logger, "relay"))
		notifier = relay
	}

	files, err := storage.New(cfg.Storage, logging.Component(logger, "storage"))
	if err != nil {
		return err
	}
	defer files.Close()

	// Workers
	sup := worker.NewSupervisor(jobs, ffmpeg.NewEncoder(cfg.Encoder), notifier, ffmpeg.Params(cfg.Encoder),
		cfg.Worker.FinalizeRetryDelay, logging.Component(logger, "supervisor"))
	pool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, logging.Component(logger, "pool"))
	pool.Start(ctx)
	defer pool.Stop()
	disp := worker.NewDispatcher(pool, sup, locker, cfg.Worker.LockTTL, logging.Component(logger, "dispatcher"))

	uc := usecase.NewTranscodeUseCase(jobs, tm, files, disp, notifier, logging.Component(logger, "transcode"))
	if n, err := uc.FailInterrupted(ctx, cfg.Worker.LockTTL); err != nil {
		logger.Warn().Err(err).Msg("failing interrupted jobs")
	} else if n > 0 {
		logger.Warn().Int("count", n).Msg("interrupted jobs marked failed")
	}

	// Transport
	ws := hub.NewWSHandler(h, cfg.Hub.PingInterval, cfg.Hub.WriteTimeout, logging.Component(logger, "websocket"))
	srv := web.NewServer(uc, ws, cfg.HTTP.MaxUploadMB<<20, logging.Component(logger, "http"))
	httpSrv := web.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port), web.NewRouter(srv, cfg.HTTP, logger), cfg.HTTP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	g.Go(func() error {
		err := sched.NewRequeueWorker(cfg.Worker.RequeueInterval, uc, logger).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if relay != nil {
		g.Go(func() error {
			relay.Run(gctx, relayRetryDelay)
			return nil
		})
	}

	err = g.Wait()
	logger.Info().Msg("shutdown requested, waiting for running jobs")
	return err
}
