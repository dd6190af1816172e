package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/syncwatch/server/internal/protocol"
	"github.com/syncwatch/server/internal/service/session"
	"github.com/syncwatch/server/pkg/wsrouter"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer c.sender.release(conn)
	defer c.sessionService.DisconnectClient(r.Context(), conn)

	if err := c.wsmux.ServeConn(r.Context(), conn); err != nil {
		c.logger.InfoContext(r.Context(), "connection closed", "error", err)
	}
}

type clientIdRequestInput struct {
	SessionId string `json:"sessionId"`
	Username  string `json:"username"`
}

// handleClientIdRequest completes the identity handshake. A request for an
// unknown session produces no reply and no registry mutation; the client's
// own deadline bounds the wait.
func (c controller) handleClientIdRequest(ctx context.Context, conn *websocket.Conn, input clientIdRequestInput) error {
	registerResp, err := c.sessionService.RegisterClient(ctx, &session.RegisterClientParams{
		SessionId: input.SessionId,
		Username:  input.Username,
		Conn:      conn,
	})
	if err != nil {
		return fmt.Errorf("failed to register client: %w", err)
	}

	if err := c.writeToConn(ctx, conn, &protocol.ClientIdAssigned{
		Type:     protocol.TypeClientIdAssigned,
		ClientId: registerResp.ClientId,
	}); err != nil {
		return fmt.Errorf("failed to write client id assignment: %w", err)
	}

	return nil
}

type pingInput struct {
	Id        string `json:"id"`
	Iteration int    `json:"iteration"`
	ClientId  string `json:"clientId"`
}

func (c controller) handlePing(ctx context.Context, conn *websocket.Conn, input pingInput) error {
	pingResp, err := c.sessionService.Ping(ctx, &session.PingParams{
		Id:        input.Id,
		Iteration: input.Iteration,
		ClientId:  input.ClientId,
	})
	if err != nil {
		return fmt.Errorf("failed to handle ping: %w", err)
	}

	if err := c.writeToConn(ctx, conn, &protocol.PingReply{
		Type:      protocol.TypePing,
		Id:        pingResp.Id,
		Iteration: pingResp.Iteration,
		Time:      pingResp.Time,
	}); err != nil {
		return fmt.Errorf("failed to write ping reply: %w", err)
	}

	return nil
}

type syncInput struct {
	State     string  `json:"state"`
	TimeStamp float64 `json:"timeStamp"`
	Origin    string  `json:"origin"`
	Session   string  `json:"session"`
}

// handleSync validates the origin and rebroadcasts the message to the rest
// of the session. The raw bytes are forwarded untouched so the timestamp
// semantics survive end to end.
func (c controller) handleSync(ctx context.Context, conn *websocket.Conn, input syncInput) error {
	relayResp, err := c.sessionService.RelaySync(ctx, &session.RelaySyncParams{
		Origin:    input.Origin,
		Session:   input.Session,
		State:     input.State,
		TimeStamp: input.TimeStamp,
	})
	if err != nil {
		return fmt.Errorf("failed to relay sync: %w", err)
	}

	c.broadcast(ctx, relayResp.Conns, wsrouter.GetRawMessageFromCtx(ctx))

	return nil
}
