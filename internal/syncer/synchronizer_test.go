package syncer

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncwatch/server/internal/protocol"
)

type fakePlayer struct {
	mu          sync.Mutex
	currentTime float64
	paused      bool
	canPlay     bool
	playCalls   int
	pauseCalls  int
	seeks       []float64
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls++
	p.paused = false
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseCalls++
	p.paused = true
}

func (p *fakePlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	p.currentTime = seconds
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTime
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) CanPlayThrough() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canPlay
}

func (p *fakePlayer) set(currentTime float64, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTime = currentTime
	p.paused = paused
}

func (p *fakePlayer) counts() (plays, pauses, seeks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playCalls, p.pauseCalls, len(p.seeks)
}

type fakeLatency struct {
	oneWay float64
}

func (f fakeLatency) OneWaySeconds() float64 {
	return f.oneWay
}

type fakeSyncSender struct {
	mu   sync.Mutex
	sent []protocol.Sync
}

func (f *fakeSyncSender) send(msg protocol.Sync) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSyncSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSyncSender) last() protocol.Sync {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func newTestSynchronizer(oneWay float64) (*Synchronizer, *fakePlayer, *fakeSyncSender, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	player := &fakePlayer{paused: true, canPlay: true}
	sender := &fakeSyncSender{}

	s := NewSynchronizer("clientA", "session1", player, fakeLatency{oneWay: oneWay}, sender.send,
		DefaultSynchronizerConfig(), clock, slog.Default())

	return s, player, sender, clock
}

// fire triggers a trusted event and lets the debounce window elapse.
func fire(t *testing.T, s *Synchronizer, clock *clockwork.FakeClock, sender *fakeSyncSender, want int) {
	t.Helper()

	s.OnPlayerEvent(Event{Kind: EventPlay, Trusted: true})
	clock.Advance(DefaultSynchronizerConfig().DebounceWindow)

	if want > sender.count() {
		require.Eventually(t, func() bool { return sender.count() == want }, time.Second, 5*time.Millisecond)
	} else {
		// no message expected; give the timer goroutine a moment to prove it
		time.Sleep(50 * time.Millisecond)
		require.Equal(t, want, sender.count())
	}
}

func TestUntrustedEventsIgnored(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)
	player.set(10, false)

	s.OnPlayerEvent(Event{Kind: EventPlay, Trusted: false})
	clock.Advance(2 * time.Second)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
}

func TestDebounceCoalescesBursts(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)
	player.set(10, false)

	s.OnPlayerEvent(Event{Kind: EventSeek, Trusted: true})
	s.OnPlayerEvent(Event{Kind: EventPause, Trusted: true})
	s.OnPlayerEvent(Event{Kind: EventPlay, Trusted: true})
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sender.count(), "a burst must produce exactly one message")
}

func TestOutboundPlayingCompensatesLatency(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0.04)
	player.set(10.0, false)

	fire(t, s, clock, sender, 1)

	msg := sender.last()
	assert.Equal(t, protocol.TypeSync, msg.Type)
	assert.Equal(t, protocol.StatePlaying, msg.State)
	assert.InDelta(t, 10.04, msg.TimeStamp, 1e-9)
	assert.Equal(t, "clientA", msg.Origin)
	assert.Equal(t, "session1", msg.Session)

	state, playFrom := s.Position()
	assert.Equal(t, protocol.StatePlaying, state)
	assert.InDelta(t, float64(clock.Now().UnixMilli())/1000-10.04, playFrom, 1e-9)
}

func TestOutboundPausedSuppressedWithoutChange(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)
	player.set(5.0, true)

	fire(t, s, clock, sender, 1)
	msg := sender.last()
	assert.Equal(t, protocol.StatePaused, msg.State)
	assert.Equal(t, 5.0, msg.TimeStamp)

	// same position again: no real change, nothing sent
	fire(t, s, clock, sender, 1)

	// a real seek while paused goes out
	player.set(9.0, true)
	fire(t, s, clock, sender, 2)
	assert.Equal(t, 9.0, sender.last().TimeStamp)
}

func TestOutboundPausedWhenUnderbuffered(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)
	player.set(5.0, false)
	player.mu.Lock()
	player.canPlay = false
	player.mu.Unlock()

	fire(t, s, clock, sender, 1)
	assert.Equal(t, protocol.StatePaused, sender.last().State)
}

func TestOutboundPlayingHysteresis(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)
	player.set(10.0, false)

	fire(t, s, clock, sender, 1)

	// the debounce advance moved the wall clock by 1s while the player
	// position stayed put, shifting the play origin by exactly that 1s;
	// a stalled player is outside the tolerance band
	fire(t, s, clock, sender, 2)

	// position advancing with the clock keeps the origin fixed: suppressed
	player.set(11.0, false)
	fire(t, s, clock, sender, 2)
}

func TestInboundPlayingApplies(t *testing.T) {
	s, player, _, clock := newTestSynchronizer(0.04)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePlaying, TimeStamp: 10.0, Origin: "clientB", Session: "session1"})

	plays, _, seeks := player.counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, seeks)
	assert.InDelta(t, 10.04, player.CurrentTime(), 1e-9)

	state, playFrom := s.Position()
	assert.Equal(t, protocol.StatePlaying, state)
	assert.InDelta(t, float64(clock.Now().UnixMilli())/1000-10.04, playFrom, 1e-9)
}

// Successive playing messages whose implied play origins differ by less
// than the tolerance must not cause further transitions; the boundary is
// exclusive on the ignore side.
func TestInboundPlayingHysteresisBoundary(t *testing.T) {
	apply := func(s *Synchronizer, timeStamp float64) {
		s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePlaying, TimeStamp: timeStamp})
	}

	s, player, _, _ := newTestSynchronizer(0)
	apply(s, 10.0)

	// same wall clock, so the origin shift equals the timestamp shift
	apply(s, 10.0-0.499)
	plays, _, _ := player.counts()
	assert.Equal(t, 1, plays, "499ms shift must be suppressed")

	apply(s, 10.0-0.5)
	plays, _, _ = player.counts()
	assert.Equal(t, 2, plays, "exactly 500ms must be applied")
}

func TestInboundConvergence(t *testing.T) {
	s, player, _, _ := newTestSynchronizer(0)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePlaying, TimeStamp: 10.0})
	for _, shift := range []float64{0.1, 0.2, 0.3, 0.45} {
		s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePlaying, TimeStamp: 10.0 + shift})
	}

	plays, _, seeks := player.counts()
	assert.Equal(t, 1, plays, "converged messages must not transition the player")
	assert.Equal(t, 1, seeks)
}

func TestInboundPausedExactMatchIgnored(t *testing.T) {
	s, player, _, _ := newTestSynchronizer(0)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePaused, TimeStamp: 7.0})
	_, pauses, seeks := player.counts()
	require.Equal(t, 1, pauses)
	require.Equal(t, 1, seeks)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePaused, TimeStamp: 7.0})
	_, pauses, seeks = player.counts()
	assert.Equal(t, 1, pauses)
	assert.Equal(t, 1, seeks)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePaused, TimeStamp: 8.0})
	_, pauses, seeks = player.counts()
	assert.Equal(t, 2, pauses)
	assert.Equal(t, 2, seeks)
}

// A paused sync applied at a peer, immediately re-observed as a local
// paused event with no real seek, must not echo back out.
func TestPausedRoundTripSuppressed(t *testing.T) {
	s, player, sender, clock := newTestSynchronizer(0)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: protocol.StatePaused, TimeStamp: 7.0})
	require.True(t, player.Paused())
	require.Equal(t, 7.0, player.CurrentTime())

	fire(t, s, clock, sender, 0)
}

func TestInboundMalformedStateIgnored(t *testing.T) {
	s, player, _, _ := newTestSynchronizer(0)

	s.ApplyRemote(protocol.Sync{Type: protocol.TypeSync, State: "rewinding", TimeStamp: 3.0})

	plays, pauses, seeks := player.counts()
	assert.Zero(t, plays)
	assert.Zero(t, pauses)
	assert.Zero(t, seeks)

	state, playFrom := s.Position()
	assert.Equal(t, protocol.StatePaused, state)
	assert.Equal(t, float64(0), playFrom)
}
