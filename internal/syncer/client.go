package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/syncwatch/server/internal/protocol"
)

var ErrHandshakeTimeout = errors.New("client id handshake timed out")

type ClientConfig struct {
	// URL of the relay websocket endpoint.
	URL       string
	SessionId string
	// HandshakeTimeout bounds the wait for the clientId-assigned reply; a
	// request the server silently ignored fails fast instead of hanging.
	HandshakeTimeout time.Duration
	Estimator        EstimatorConfig
	Synchronizer     SynchronizerConfig
}

func DefaultClientConfig(url, sessionId string) *ClientConfig {
	return &ClientConfig{
		URL:              url,
		SessionId:        sessionId,
		HandshakeTimeout: 10 * time.Second,
		Estimator:        DefaultEstimatorConfig(),
		Synchronizer:     DefaultSynchronizerConfig(),
	}
}

// Client owns one connection to the relay: it performs the identity
// handshake, then runs the latency estimator and the playback
// synchronizer on top of the shared channel.
type Client struct {
	conn   *websocket.Conn
	clock  clockwork.Clock
	logger *slog.Logger

	writeMu sync.Mutex

	// pending is the handshake's single pending-completion slot; the read
	// loop resolves it when the assignment arrives.
	pending chan string

	mu           sync.Mutex
	clientId     string
	estimator    *Estimator
	synchronizer *Synchronizer

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects, obtains a client identity and starts the latency warm-up.
// It blocks until the identity is assigned or ctx/HandshakeTimeout expires.
func Dial(ctx context.Context, player Player, cfg *ClientConfig, clock clockwork.Clock, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:    conn,
		clock:   clock,
		logger:  logger,
		pending: make(chan string, 1),
		done:    make(chan struct{}),
	}

	go c.readLoop()

	if err := c.writeJSON(protocol.ClientIdRequest{
		Type:      protocol.TypeClientIdRequest,
		SessionId: cfg.SessionId,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send client id request: %w", err)
	}

	var clientId string
	select {
	case clientId = <-c.pending:
	case <-clock.After(cfg.HandshakeTimeout):
		conn.Close()
		return nil, ErrHandshakeTimeout
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	estimator := NewEstimator(clientId, c.sendPing, cfg.Estimator, clock, logger)
	synchronizer := NewSynchronizer(clientId, cfg.SessionId, player, estimator, c.sendSync, cfg.Synchronizer, clock, logger)

	c.mu.Lock()
	c.clientId = clientId
	c.estimator = estimator
	c.synchronizer = synchronizer
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go estimator.Run(runCtx)

	return c, nil
}

func (c *Client) ClientId() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clientId
}

// Ready is closed once the latency warm-up has completed and outbound
// timestamps are compensated.
func (c *Client) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.estimator.Ready()
}

// OnPlayerEvent forwards a player event to the synchronizer.
func (c *Client) OnPlayerEvent(ev Event) {
	c.mu.Lock()
	s := c.synchronizer
	c.mu.Unlock()

	if s != nil {
		s.OnPlayerEvent(ev)
	}
}

func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	err := c.conn.Close()
	<-c.done

	return err
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(v)
}

func (c *Client) sendPing(req protocol.PingRequest) error {
	return c.writeJSON(req)
}

func (c *Client) sendSync(msg protocol.Sync) error {
	return c.writeJSON(msg)
}

// readLoop dispatches inbound messages: identity assignments resolve the
// pending handshake, ping replies feed the estimator, sync messages drive
// the synchronizer. Malformed or unknown messages are logged and dropped;
// only a broken connection ends the loop.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug("connection closed", "error", err)
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			c.logger.Warn("malformed message", "error", err)
			continue
		}

		switch head.Type {
		case protocol.TypeClientIdAssigned:
			var msg protocol.ClientIdAssigned
			if err := json.Unmarshal(raw, &msg); err != nil {
				c.logger.Warn("malformed client id assignment", "error", err)
				continue
			}

			select {
			case c.pending <- msg.ClientId:
			default:
				c.logger.Warn("unexpected client id assignment", "client_id", msg.ClientId)
			}
		case protocol.TypePing:
			var msg protocol.PingReply
			if err := json.Unmarshal(raw, &msg); err != nil {
				c.logger.Warn("malformed ping reply", "error", err)
				continue
			}

			c.mu.Lock()
			e := c.estimator
			c.mu.Unlock()

			if e == nil {
				c.logger.Warn("ping reply before handshake completed")
				continue
			}
			e.HandleReply(msg)
		case protocol.TypeSync:
			var msg protocol.Sync
			if err := json.Unmarshal(raw, &msg); err != nil {
				c.logger.Warn("malformed sync message", "error", err)
				continue
			}

			c.mu.Lock()
			s := c.synchronizer
			c.mu.Unlock()

			if s == nil {
				c.logger.Warn("sync message before handshake completed")
				continue
			}
			s.ApplyRemote(msg)
		default:
			c.logger.Warn("unknown message type", "type", head.Type)
		}
	}
}
