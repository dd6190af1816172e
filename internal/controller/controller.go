package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/syncwatch/server/internal/service/session"
	"github.com/syncwatch/server/pkg/validator"
	"github.com/syncwatch/server/pkg/wsrouter"
)

type iSessionService interface {
	CreateSession(context.Context, *session.CreateSessionParams) (session.CreateSessionResponse, error)
	GetSession(context.Context, string) (session.GetSessionResponse, error)
	JoinSession(context.Context, *session.JoinSessionParams) (session.JoinSessionResponse, error)
	RegisterClient(context.Context, *session.RegisterClientParams) (session.RegisterClientResponse, error)
	DisconnectClient(ctx context.Context, conn *websocket.Conn)
	RelaySync(context.Context, *session.RelaySyncParams) (session.RelaySyncResponse, error)
	Ping(context.Context, *session.PingParams) (session.PingResponse, error)
}

type controller struct {
	sessionService iSessionService
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	sender         *connSender
	logger         *slog.Logger
	wsmux          *wsrouter.WSRouter
}

func NewController(sessionService iSessionService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessionService: sessionService,
		validate:       validator.NewValidator(),
		sender:         newConnSender(),
		logger:         logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
