package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/syncwatch/server/internal/repository/connection"
	sessionrepo "github.com/syncwatch/server/internal/repository/session"
)

type RegisterClientParams struct {
	SessionId string
	Username  string
	Conn      *websocket.Conn
}

type RegisterClientResponse struct {
	ClientId string
}

// RegisterClient completes the client-id handshake: it allocates a user
// identity, records the join time, adds the user to the session's member
// set and attaches the channel. A request for an unknown session mutates
// nothing.
func (s service) RegisterClient(ctx context.Context, params *RegisterClientParams) (RegisterClientResponse, error) {
	if _, err := s.sessionRepo.GetSession(ctx, params.SessionId); err != nil {
		if errors.Is(err, sessionrepo.ErrSessionNotFound) {
			return RegisterClientResponse{}, ErrSessionNotFound
		}
		return RegisterClientResponse{}, fmt.Errorf("failed to get session: %w", err)
	}

	userId := s.generator.Generate(tokenLength)

	if err := s.sessionRepo.SetUser(ctx, &sessionrepo.SetUserParams{
		UserId:    userId,
		Username:  params.Username,
		SessionId: params.SessionId,
		JoinedAt:  s.clock.Now().UnixMilli(),
	}); err != nil {
		return RegisterClientResponse{}, fmt.Errorf("failed to set user: %w", err)
	}

	// create-then-add must not leave a half-registered user behind
	if _, err := s.sessionRepo.AddUserToSession(ctx, &sessionrepo.AddUserToSessionParams{
		UserId:    userId,
		SessionId: params.SessionId,
	}); err != nil {
		if removeErr := s.sessionRepo.RemoveUser(ctx, userId); removeErr != nil {
			s.logger.WarnContext(ctx, "failed to roll back user", "user_id", userId, "error", removeErr)
		}
		return RegisterClientResponse{}, fmt.Errorf("failed to add user to session: %w", err)
	}

	if err := s.connRepo.Add(params.Conn, userId); err != nil {
		return RegisterClientResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	s.logger.InfoContext(ctx, "client registered", "session_id", params.SessionId, "client_id", userId)

	return RegisterClientResponse{ClientId: userId}, nil
}

// DisconnectClient tears down everything registered for the channel:
// the connection mapping, the session membership and the user record.
// A connection that never completed the handshake has nothing to remove.
func (s service) DisconnectClient(ctx context.Context, conn *websocket.Conn) {
	userId, err := s.connRepo.RemoveByConn(conn)
	if err != nil {
		if !errors.Is(err, connection.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove connection", "error", err)
		}
		return
	}

	user, err := s.sessionRepo.GetUser(ctx, userId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get user on disconnect", "user_id", userId, "error", err)
		return
	}

	if err := s.sessionRepo.RemoveUserFromSession(ctx, &sessionrepo.RemoveUserFromSessionParams{
		UserId:    userId,
		SessionId: user.SessionId,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to remove user from session", "user_id", userId, "error", err)
	}

	if err := s.sessionRepo.RemoveUser(ctx, userId); err != nil {
		s.logger.WarnContext(ctx, "failed to remove user", "user_id", userId, "error", err)
	}

	s.logger.InfoContext(ctx, "client disconnected", "session_id", user.SessionId, "client_id", userId)
}
