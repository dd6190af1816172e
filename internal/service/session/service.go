package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	sessionrepo "github.com/syncwatch/server/internal/repository/session"
	"github.com/syncwatch/server/pkg/randhex"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionMismatch = errors.New("origin does not belong to claimed session")
	ErrWrongPassword   = errors.New("wrong password")
	ErrBadIteration    = errors.New("unexpected ping iteration")
)

// Identity tokens are fixed-length random hex, matching the wire format the
// clients expect. Collisions are treated as negligible.
const tokenLength = 16

type iSessionRepo interface {
	SetSession(context.Context, *sessionrepo.SetSessionParams) error
	GetSession(context.Context, string) (sessionrepo.Session, error)
	UpdateSessionPlayback(context.Context, *sessionrepo.UpdateSessionPlaybackParams) error
	SetUser(context.Context, *sessionrepo.SetUserParams) error
	GetUser(context.Context, string) (sessionrepo.User, error)
	RemoveUser(context.Context, string) error
	AddUserToSession(context.Context, *sessionrepo.AddUserToSessionParams) (bool, error)
	RemoveUserFromSession(context.Context, *sessionrepo.RemoveUserFromSessionParams) error
	GetSessionUserIds(context.Context, string) ([]string, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, userId string) error
	RemoveByConn(conn *websocket.Conn) (string, error)
	GetConn(userId string) (*websocket.Conn, error)
}

type iGenerator interface {
	Generate(length int) string
}

type service struct {
	sessionRepo iSessionRepo
	connRepo    iConnRepo
	generator   iGenerator
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewService(sessionRepo iSessionRepo, connRepo iConnRepo, clock clockwork.Clock, logger *slog.Logger) *service {
	return &service{
		sessionRepo: sessionRepo,
		connRepo:    connRepo,
		generator:   randhex.New(),
		clock:       clock,
		logger:      logger,
	}
}
