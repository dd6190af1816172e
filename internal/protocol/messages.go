// Package protocol defines the flat tagged-union wire messages exchanged
// between clients and the relay server. The server forwards sync messages
// verbatim, so these types are shared by both sides.
package protocol

const (
	TypeClientIdRequest  = "clientId-request"
	TypeClientIdAssigned = "clientId-assigned"
	TypePing             = "ping"
	TypeSync             = "sync"
)

// Logical playback states carried by sync messages.
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
)

type ClientIdRequest struct {
	Type      string `json:"type"`
	SessionId string `json:"sessionId"`
}

type ClientIdAssigned struct {
	Type     string `json:"type"`
	ClientId string `json:"clientId"`
}

// PingRequest is sent by a client at iterations 1 and 3 of a latency
// measurement.
type PingRequest struct {
	Type      string `json:"type"`
	Id        string `json:"id"`
	Iteration int    `json:"iteration"`
	ClientId  string `json:"clientId"`
}

// PingReply is the server response at iterations 2 and 4. Time is
// milliseconds elapsed on the server clock since the client joined; the
// client subtracts two of these to obtain one round trip without sharing a
// clock with the server.
type PingReply struct {
	Type      string  `json:"type"`
	Id        string  `json:"id"`
	Iteration int     `json:"iteration"`
	Time      float64 `json:"time"`
}

// Sync announces a playback state transition. For "paused", TimeStamp is
// the paused position in video seconds. For "playing", TimeStamp is the
// sender's video position pre-compensated by its one-way latency estimate.
type Sync struct {
	Type      string  `json:"type"`
	State     string  `json:"state"`
	TimeStamp float64 `json:"timeStamp"`
	Origin    string  `json:"origin"`
	Session   string  `json:"session"`
}
