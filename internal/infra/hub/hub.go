// Package hub keeps the set of live progress subscribers and fans events out
// to them.
package hub

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/domain/ports/adapter"
	"media-transcoder/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Conn is one subscriber. Send must honour ctx and be safe for concurrent use:
// events of different jobs may be written to it at the same time.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
}

var _ adapter.Notifier = (*Hub)(nil)

type Hub struct {
	mu   sync.Mutex
	subs map[Conn]struct{}

	lanesMu sync.Mutex
	lanes   map[string]*lane

	writeTimeout time.Duration
	log          *zerolog.Logger
}

func NewHub(writeTimeout time.Duration, logger *zerolog.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		subs:         make(map[Conn]struct{}),
		lanes:        make(map[string]*lane),
		writeTimeout: writeTimeout,
		log:          logger,
	}
}

// Subscribe registers c. It reports false when c was already registered.
func (h *Hub) Subscribe(c Conn) bool {
	if c == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[c]; ok {
		return false
	}
	h.subs[c] = struct{}{}
	metrics.SetHubSubscribers(len(h.subs))
	h.log.Debug().Int("subscribers", len(h.subs)).Msg("subscriber added")
	return true
}

// Unsubscribe removes c; unknown connections are ignored.
func (h *Hub) Unsubscribe(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[c]; !ok {
		return
	}
	delete(h.subs, c)
	metrics.SetHubSubscribers(len(h.subs))
	h.log.Debug().Int("subscribers", len(h.subs)).Msg("subscriber removed")
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// lane orders the broadcasts of one job.
type lane struct {
	mu   sync.Mutex
	refs int
}

func (h *Hub) acquireLane(jobID string) func() {
	h.lanesMu.Lock()
	l, ok := h.lanes[jobID]
	if !ok {
		l = &lane{}
		h.lanes[jobID] = l
	}
	l.refs++
	h.lanesMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		h.lanesMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.lanes, jobID)
		}
		h.lanesMu.Unlock()
	}
}

// Broadcast delivers ev to every current subscriber. A subscriber whose send
// fails is dropped; the failure never reaches the caller.
//
// Events of one job reach each subscriber in call order. Broadcasts of
// different jobs do not wait for each other, so a slow subscriber holds back
// at most the job whose event it is receiving, for up to the write timeout.
func (h *Hub) Broadcast(ctx context.Context, ev model.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", ev.JobID).Msg("encode progress event")
		return
	}
	release := h.acquireLane(ev.JobID)
	defer release()
	h.deliver(ctx, payload)
}

func (h *Hub) deliver(ctx context.Context, payload []byte) {
	snapshot := h.snapshot()
	if len(snapshot) == 0 {
		return
	}

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []Conn
	)
	for _, c := range snapshot {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			if err := h.send(ctx, c, payload); err != nil {
				metrics.IncDelivery(false)
				h.log.Warn().Err(err).Msg("dropping subscriber after failed delivery")
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
				return
			}
			metrics.IncDelivery(true)
		}(c)
	}
	wg.Wait()

	if len(failed) > 0 {
		h.drop(failed)
	}
}

func (h *Hub) send(ctx context.Context, c Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanicSend
		}
	}()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.writeTimeout)
	defer cancel()
	return c.Send(sctx, payload)
}

func (h *Hub) snapshot() []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Conn, 0, len(h.subs))
	for c := range h.subs {
		out = append(out, c)
	}
	return out
}

func (h *Hub) drop(conns []Conn) {
	h.mu.Lock()
	for _, c := range conns {
		delete(h.subs, c)
	}
	metrics.SetHubSubscribers(len(h.subs))
	h.mu.Unlock()

	for _, c := range conns {
		if cl, ok := c.(io.Closer); ok {
			_ = cl.Close()
		}
	}
}
