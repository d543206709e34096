package telemetry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/metrics"
)

// Sink receives poll results on the poller goroutine. Implementations must not block.
type Sink interface {
	TelemetryUpdated(Snapshot)
	ActiveBeatmapChanged(beatmapID int)
}

type Options struct {
	Interval       time.Duration
	FailureBackoff time.Duration
	// No request goes out before StartupGrace has passed, giving the client time to start.
	StartupGrace time.Duration
	// Ready gates requests; nil means always ready.
	Ready func() bool
}

func DefaultOptions() Options {
	return Options{
		Interval:       250 * time.Millisecond,
		FailureBackoff: time.Second,
		StartupGrace:   5 * time.Second,
	}
}

type request struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

type result struct {
	gen    uint64
	status *Status
	err    error
	took   time.Duration
}

// Poller issues at most one Status request at a time. All of its state is
// owned by the Run goroutine.
type Poller struct {
	client *Client
	sink   Sink
	log    *zap.Logger
	opts   Options

	results chan result

	current      Snapshot
	lastActive   int
	inhibitUntil time.Time
	gen          uint64
	inflight     *request
	failures     int
}

func NewPoller(client *Client, sink Sink, log *zap.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		client:  client,
		sink:    sink,
		log:     log.Named("telemetry"),
		opts:    opts,
		results: make(chan result),
	}
}

// Run polls until ctx is done, then cancels any in-flight request and waits for it.
func (p *Poller) Run(ctx context.Context) {
	p.inhibitUntil = time.Now().Add(p.opts.StartupGrace)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	defer p.stopInflight()

	p.log.Info("polling", zap.String("base_url", p.client.baseURL), zap.Duration("interval", p.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		case res := <-p.results:
			p.handle(res)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if !p.ready() || time.Now().Before(p.inhibitUntil) {
		metrics.TelemetryPolls.WithLabelValues(metrics.PollSkipped).Inc()
		p.publish(p.current.zeroed())
		return
	}

	p.stopInflight()
	p.gen++

	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{gen: p.gen, cancel: cancel, done: make(chan struct{})}
	p.inflight = req

	go func() {
		defer close(req.done)
		start := time.Now()
		st, err := p.client.Status(reqCtx)
		res := result{gen: req.gen, status: st, err: err, took: time.Since(start)}
		select {
		case p.results <- res:
		case <-reqCtx.Done():
		}
	}()
}

// stopInflight cancels the outstanding request and waits for its goroutine.
func (p *Poller) stopInflight() {
	if p.inflight == nil {
		return
	}
	p.inflight.cancel()
	<-p.inflight.done
	p.inflight = nil
}

func (p *Poller) handle(res result) {
	if p.inflight == nil || res.gen != p.gen {
		return
	}
	p.inflight.cancel()
	p.inflight = nil
	metrics.TelemetryRequestDuration.Observe(res.took.Seconds())

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			return
		}
		p.fail(res.err)
		return
	}

	snap, err := Normalize(res.status, p.current)
	switch {
	case errors.Is(err, ErrUpstream):
		metrics.TelemetryPolls.WithLabelValues(metrics.PollUpstreamError).Inc()
		p.log.Warn("gosumemory reported an error", zap.String("upstream_error", *res.status.Error))
		p.publish(snap)
		return
	case errors.Is(err, ErrMalformed):
		metrics.TelemetryPolls.WithLabelValues(metrics.PollMalformed).Inc()
		p.log.Warn("discarding telemetry payload", zap.Error(err))
		return
	}

	metrics.TelemetryPolls.WithLabelValues(metrics.PollOK).Inc()
	if p.failures > 0 {
		p.log.Info("telemetry recovered", zap.Int("failed_polls", p.failures))
		p.failures = 0
	}

	p.publish(snap)
	if snap.ActiveBeatmapID == p.lastActive {
		return
	}
	// Unsubmitted maps report id 0; they reset the last seen id but are never published.
	p.lastActive = snap.ActiveBeatmapID
	if snap.ActiveBeatmapID > 0 {
		p.sink.ActiveBeatmapChanged(snap.ActiveBeatmapID)
	}
}

func (p *Poller) fail(err error) {
	metrics.TelemetryPolls.WithLabelValues(metrics.PollFailed).Inc()
	p.failures++
	if p.failures == 1 {
		p.log.Warn("telemetry request failed", zap.Error(err), zap.Duration("backoff", p.opts.FailureBackoff))
	} else {
		p.log.Debug("telemetry request failed", zap.Error(err), zap.Int("streak", p.failures))
	}
	p.inhibitUntil = time.Now().Add(p.opts.FailureBackoff)
	p.publish(p.current.zeroed())
}

func (p *Poller) publish(s Snapshot) {
	if s == p.current {
		return
	}
	p.current = s
	p.sink.TelemetryUpdated(s)
}

func (p *Poller) ready() bool {
	return p.opts.Ready == nil || p.opts.Ready()
}
