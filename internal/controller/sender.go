package controller

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// connSender serializes writes to each client connection. gorilla/websocket
// permits only one concurrent writer per conn, and relay broadcasts write to
// peer conns from the origin's handler goroutine while the peer's own handler
// writes replies, so every server-side write takes the connection's lock.
type connSender struct {
	mu    sync.Mutex
	locks map[*websocket.Conn]*sync.Mutex
}

func newConnSender() *connSender {
	return &connSender{locks: make(map[*websocket.Conn]*sync.Mutex)}
}

func (s *connSender) lockFor(conn *websocket.Conn) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[conn]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conn] = l
	}

	return l
}

// release drops the lock entry once the connection is closed and out of the
// connection repository, so no new broadcast can reach it.
func (s *connSender) release(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, conn)
}

func (s *connSender) writeJSON(conn *websocket.Conn, message any) error {
	l := s.lockFor(conn)
	l.Lock()
	defer l.Unlock()

	return conn.WriteJSON(message)
}

func (s *connSender) writeRaw(conn *websocket.Conn, raw json.RawMessage) error {
	l := s.lockFor(conn)
	l.Lock()
	defer l.Unlock()

	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, message any) error {
	return c.sender.writeJSON(conn, message)
}

// broadcast forwards raw to every conn. A channel that cannot be written
// is logged and skipped; the remaining peers still receive the message.
func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, raw json.RawMessage) {
	for _, conn := range conns {
		if err := c.sender.writeRaw(conn, raw); err != nil {
			c.logger.WarnContext(ctx, "failed to write to peer, skipping", "error", err)
		}
	}
}
