package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/syncwatch/server/internal/protocol"
	"github.com/syncwatch/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIdMw())
	mux.Use(c.wsLoggingMw())
	mux.SetErrorHandler(func(ctx context.Context, conn *websocket.Conn, err error) {
		// no protocol error is fatal; log, drop, keep the connection
		c.logger.WarnContext(ctx, "failed to handle message", "error", err)
	})

	wsrouter.Handle(mux, protocol.TypeClientIdRequest, c.handleClientIdRequest)
	wsrouter.Handle(mux, protocol.TypePing, c.handlePing)
	wsrouter.Handle(mux, protocol.TypeSync, c.handleSync)

	return mux
}
