package syncer

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/syncwatch/server/internal/protocol"
)

type SynchronizerConfig struct {
	// DebounceWindow coalesces bursts of player events; only the last
	// event in a burst produces a message.
	DebounceWindow time.Duration
	// PlayingTolerance is the hysteresis band for the playing state: a
	// play-origin shift strictly inside it is treated as noise.
	PlayingTolerance time.Duration
}

func DefaultSynchronizerConfig() SynchronizerConfig {
	return SynchronizerConfig{
		DebounceWindow:   time.Second,
		PlayingTolerance: 500 * time.Millisecond,
	}
}

type latencySource interface {
	OneWaySeconds() float64
}

// Synchronizer keeps a local player converging with its session peers. It
// turns trusted player events into outbound sync messages and inbound sync
// messages into player transitions, with symmetric hysteresis on both legs
// so the two directions cannot feed back into an oscillating broadcast
// storm.
//
// Local state tracks the session's logical position as (state, playFrom):
// the paused position itself, or wall-clock-now minus video-now while
// playing, so the current position is derivable from wall time alone.
type Synchronizer struct {
	clock     clockwork.Clock
	logger    *slog.Logger
	player    Player
	latency   latencySource
	send      func(protocol.Sync) error
	clientId  string
	sessionId string
	cfg       SynchronizerConfig

	mu       sync.Mutex
	state    string
	playFrom float64
	debounce clockwork.Timer
}

func NewSynchronizer(clientId, sessionId string, player Player, latency latencySource, send func(protocol.Sync) error, cfg SynchronizerConfig, clock clockwork.Clock, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		clock:     clock,
		logger:    logger,
		player:    player,
		latency:   latency,
		send:      send,
		clientId:  clientId,
		sessionId: sessionId,
		cfg:       cfg,
		state:     protocol.StatePaused,
	}
}

func (s *Synchronizer) now() float64 {
	return float64(s.clock.Now().UnixMilli()) / 1000
}

// OnPlayerEvent records a player event. Untrusted events are discarded so
// the synchronizer's own seeks and play/pause calls cannot re-trigger
// outbound traffic. Trusted events restart the debounce window; the burst
// is evaluated once it goes quiet.
func (s *Synchronizer) OnPlayerEvent(ev Event) {
	if !ev.Trusted {
		s.logger.Debug("ignoring untrusted player event", "kind", ev.Kind)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounce == nil {
		s.debounce = s.clock.AfterFunc(s.cfg.DebounceWindow, s.flush)
	} else {
		s.debounce.Reset(s.cfg.DebounceWindow)
	}
}

// flush derives a candidate state from the player, applies the outbound
// hysteresis filter, and sends a sync message if the change is real.
func (s *Synchronizer) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debounce = nil

	now := s.now()
	videoTime := s.player.CurrentTime()
	tolerance := s.cfg.PlayingTolerance.Seconds()

	if s.player.Paused() || !s.player.CanPlayThrough() {
		if s.state == protocol.StatePaused && videoTime == s.playFrom {
			s.logger.Debug("suppressing paused sync, no change")
			return
		}

		s.state = protocol.StatePaused
		s.playFrom = videoTime
		s.sendSync(protocol.StatePaused, videoTime)
		return
	}

	// pre-compensate for transit time so the implied position is right
	// when peers apply it
	timeStamp := videoTime + s.latency.OneWaySeconds()
	candidate := now - timeStamp

	if s.state == protocol.StatePlaying && math.Abs(candidate-s.playFrom) < tolerance {
		s.logger.Debug("suppressing playing sync within tolerance", "delta", candidate-s.playFrom)
		return
	}

	s.state = protocol.StatePlaying
	s.playFrom = candidate
	s.sendSync(protocol.StatePlaying, timeStamp)
}

func (s *Synchronizer) sendSync(state string, timeStamp float64) {
	if err := s.send(protocol.Sync{
		Type:      protocol.TypeSync,
		State:     state,
		TimeStamp: timeStamp,
		Origin:    s.clientId,
		Session:   s.sessionId,
	}); err != nil {
		s.logger.Warn("failed to send sync", "error", err)
	}
}

// ApplyRemote applies a peer's sync message to the local player, with the
// second compensation leg for the message's own transit and the symmetric
// hysteresis filter.
func (s *Synchronizer) ApplyRemote(msg protocol.Sync) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.State {
	case protocol.StatePlaying:
		timeStamp := msg.TimeStamp + s.latency.OneWaySeconds()
		newPlayFrom := s.now() - timeStamp

		if s.state == protocol.StatePlaying && math.Abs(newPlayFrom-s.playFrom) < s.cfg.PlayingTolerance.Seconds() {
			s.logger.Debug("already converged", "delta", newPlayFrom-s.playFrom)
			return
		}

		s.player.Seek(timeStamp)
		s.player.Play()
		s.state = protocol.StatePlaying
		s.playFrom = newPlayFrom
	case protocol.StatePaused:
		if s.state == protocol.StatePaused && msg.TimeStamp == s.playFrom {
			return
		}

		s.player.Pause()
		s.player.Seek(msg.TimeStamp)
		s.state = protocol.StatePaused
		s.playFrom = msg.TimeStamp
	default:
		s.logger.Warn("malformed sync state", "state", msg.State)
	}
}

// Position returns the current logical state and play origin.
func (s *Synchronizer) Position() (state string, playFrom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, s.playFrom
}
