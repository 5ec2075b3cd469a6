package redis

import (
	"context"
	"encoding/json"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// LocalHub is the in-process fan-out the relay feeds.
type LocalHub interface {
	Broadcast(ctx context.Context, ev model.ProgressEvent)
}

var _ adapter.Notifier = (*EventRelay)(nil)

// EventRelay publishes progress events on a Redis channel so that every
// instance's hub receives them. Instances deliver only what they read back
// from the channel, except when publishing fails.
type EventRelay struct {
	ps      PubSubClient
	hub     LocalHub
	channel string
	log     *zerolog.Logger
}

func NewEventRelay(ps PubSubClient, hub LocalHub, channel string, logger *zerolog.Logger) *EventRelay {
	return &EventRelay{ps: ps, hub: hub, channel: channel, log: logger}
}

func (r *EventRelay) Broadcast(ctx context.Context, ev model.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error().Err(err).Str("job_id", ev.JobID).Msg("encode progress event")
		return
	}
	if err := r.ps.Publish(ctx, r.channel, payload); err != nil {
		metrics.IncRelay("publish", "failed")
		r.log.Warn().Err(err).Str("job_id", ev.JobID).Msg("publish failed, delivering locally")
		r.hub.Broadcast(ctx, ev)
		return
	}
	metrics.IncRelay("publish", "ok")
}

// Run forwards channel messages to the local hub until ctx is done. A lost
// subscription is re-established after retryDelay.
func (r *EventRelay) Run(ctx context.Context, retryDelay time.Duration) {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	for {
		if err := r.consume(ctx); err != nil {
			r.log.Warn().Err(err).Str("channel", r.channel).Msg("relay subscription lost")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func (r *EventRelay) consume(ctx context.Context) error {
	msgs, closeFn, err := r.ps.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	r.log.Info().Str("channel", r.channel).Msg("relay subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev model.ProgressEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				metrics.IncRelay("receive", "invalid")
				r.log.Warn().Err(err).Msg("discarding malformed relay message")
				continue
			}
			metrics.IncRelay("receive", "ok")
			r.hub.Broadcast(ctx, ev)
		}
	}
}
