package syncer

// Player is the playback surface the embedder supplies, typically backed by
// a <video> element. Implementations must be safe for calls from the
// synchronizer's goroutines.
type Player interface {
	Play()
	Pause()
	// Seek moves the playhead to the given position in video seconds.
	Seek(seconds float64)
	CurrentTime() float64
	Paused() bool
	// CanPlayThrough reports whether enough data is buffered to play
	// without stalling.
	CanPlayThrough() bool
}

type EventKind string

const (
	EventPlay  EventKind = "play"
	EventPause EventKind = "pause"
	EventSeek  EventKind = "seek"
)

// Event is a player event observed by the embedder. Trusted marks events
// caused by genuine user interaction; programmatic transitions (including
// the synchronizer's own reactions to inbound messages) must be reported
// with Trusted=false or not at all.
type Event struct {
	Kind    EventKind
	Trusted bool
}
