package syncer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/syncwatch/server/internal/protocol"
)

type EstimatorConfig struct {
	// WindowSize is how many round-trip samples are retained.
	WindowSize int
	// WarmupProbes measurements must complete before Estimate reports ok.
	WarmupProbes int
	// WarmupDelay paces consecutive warm-up probes.
	WarmupDelay time.Duration
	// ProbeInterval is the steady-state background measurement period.
	ProbeInterval time.Duration
	// ProbeTimeout abandons a measurement whose reply never arrives.
	ProbeTimeout time.Duration
}

func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		WindowSize:    8,
		WarmupProbes:  3,
		WarmupDelay:   500 * time.Millisecond,
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

type measurement struct {
	id string
	// firstTime is the server-clock reading from the iteration-2 reply,
	// in milliseconds since join.
	firstTime float64
	gotFirst  bool
}

// Estimator measures round-trip latency to the relay server with the
// 4-step ping handshake. Both timestamps in a measurement come from the
// server clock, so no clock is shared with the client; the interval
// between them spans exactly one client round trip.
type Estimator struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	send     func(protocol.PingRequest) error
	clientId string
	cfg      EstimatorConfig

	mu       sync.Mutex
	samples  []float64
	inflight *measurement
	warm     int
	done     chan struct{}
	ready    chan struct{}
}

func NewEstimator(clientId string, send func(protocol.PingRequest) error, cfg EstimatorConfig, clock clockwork.Clock, logger *slog.Logger) *Estimator {
	return &Estimator{
		clock:    clock,
		logger:   logger,
		send:     send,
		clientId: clientId,
		cfg:      cfg,
		done:     make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the warm-up measurements have completed.
func (e *Estimator) Ready() <-chan struct{} {
	return e.ready
}

// Run performs the warm-up probes, then keeps measuring on ProbeInterval
// to track latency drift until ctx is cancelled.
func (e *Estimator) Run(ctx context.Context) {
	for i := 0; i < e.cfg.WarmupProbes; i++ {
		if i > 0 {
			select {
			case <-e.clock.After(e.cfg.WarmupDelay):
			case <-ctx.Done():
				return
			}
		}

		e.measure(ctx)
	}

	ticker := e.clock.NewTicker(e.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			e.measure(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Estimator) measure(ctx context.Context) {
	if err := e.begin(); err != nil {
		e.logger.Warn("failed to send ping", "error", err)
		return
	}

	select {
	case <-e.done:
	case <-e.clock.After(e.cfg.ProbeTimeout):
		e.mu.Lock()
		e.inflight = nil
		e.mu.Unlock()
		e.logger.Warn("latency measurement timed out")
	case <-ctx.Done():
	}
}

// begin starts a fresh measurement, replacing any in-flight one. A stale
// completion signal can be left behind when a reply lands in the same
// instant the timeout branch wins the select; drain it so it cannot
// short-circuit this measurement.
func (e *Estimator) begin() error {
	select {
	case <-e.done:
	default:
	}

	id := uuid.NewString()

	e.mu.Lock()
	e.inflight = &measurement{id: id}
	e.mu.Unlock()

	return e.send(protocol.PingRequest{
		Type:      protocol.TypePing,
		Id:        id,
		Iteration: 1,
		ClientId:  e.clientId,
	})
}

// HandleReply processes a server ping reply. Replies that do not match the
// in-flight measurement id, or carry an iteration other than 2 or 4, are
// logged and dropped.
func (e *Estimator) HandleReply(reply protocol.PingReply) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inflight == nil || reply.Id != e.inflight.id {
		e.logger.Warn("stale ping reply", "id", reply.Id)
		return
	}

	switch reply.Iteration {
	case 2:
		if e.inflight.gotFirst {
			e.logger.Warn("duplicate iteration 2 reply", "id", reply.Id)
			return
		}
		e.inflight.firstTime = reply.Time
		e.inflight.gotFirst = true

		// resend immediately: the gap between the server's two readings
		// must span exactly one round trip
		if err := e.send(protocol.PingRequest{
			Type:      protocol.TypePing,
			Id:        reply.Id,
			Iteration: 3,
			ClientId:  e.clientId,
		}); err != nil {
			e.logger.Warn("failed to resend ping", "error", err)
			e.inflight = nil
		}
	case 4:
		if !e.inflight.gotFirst {
			e.logger.Warn("iteration 4 before iteration 2", "id", reply.Id)
			return
		}

		e.addSample(reply.Time - e.inflight.firstTime)
		e.inflight = nil

		select {
		case e.done <- struct{}{}:
		default:
		}
	default:
		e.logger.Warn("unexpected ping iteration", "iteration", reply.Iteration)
	}
}

func (e *Estimator) addSample(rtt float64) {
	if len(e.samples) == e.cfg.WindowSize {
		e.samples = append(e.samples[1:], rtt)
	} else {
		e.samples = append(e.samples, rtt)
	}

	if e.warm < e.cfg.WarmupProbes {
		e.warm++
		if e.warm == e.cfg.WarmupProbes {
			close(e.ready)
		}
	}
}

// Estimate returns the current round-trip estimate in milliseconds: the
// mean of the retained samples with the highest quartile discarded to
// suppress transient spikes. ok is false until warm-up completes.
func (e *Estimator) Estimate() (rtt float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.warm < e.cfg.WarmupProbes || len(e.samples) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(e.samples))
	copy(sorted, e.samples)
	sort.Float64s(sorted)

	kept := sorted[:len(sorted)-len(sorted)/4]

	var sum float64
	for _, s := range kept {
		sum += s
	}

	return sum / float64(len(kept)), true
}

// OneWaySeconds is half the round-trip estimate, in seconds. It reports 0
// until warm-up completes; callers compensate by nothing rather than by a
// guess.
func (e *Estimator) OneWaySeconds() float64 {
	rtt, ok := e.Estimate()
	if !ok {
		return 0
	}

	return rtt / 2 / 1000
}
