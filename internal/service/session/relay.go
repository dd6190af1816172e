package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/syncwatch/server/internal/repository/connection"
	sessionrepo "github.com/syncwatch/server/internal/repository/session"
	"github.com/syncwatch/server/internal/protocol"
)

type RelaySyncParams struct {
	Origin    string
	Session   string
	State     string
	TimeStamp float64
}

type RelaySyncResponse struct {
	SessionId string
	// Conns are the open channels of every session member except the
	// origin; members without a live channel are skipped.
	Conns []*websocket.Conn
}

// RelaySync validates the message origin against the registry and collects
// the peer channels the raw message should be forwarded to. It also writes
// the announced state back to the session so late joiners see the live
// position.
func (s service) RelaySync(ctx context.Context, params *RelaySyncParams) (RelaySyncResponse, error) {
	user, err := s.sessionRepo.GetUser(ctx, params.Origin)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrUserNotFound) {
			return RelaySyncResponse{}, ErrUserNotFound
		}
		return RelaySyncResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	if params.Session != user.SessionId {
		return RelaySyncResponse{}, ErrSessionMismatch
	}

	switch params.State {
	case protocol.StatePlaying, protocol.StatePaused:
		// playFrom encodes the play origin: the paused position itself, or
		// wall-clock-now minus the (pre-compensated) video position.
		playFrom := params.TimeStamp
		if params.State == protocol.StatePlaying {
			playFrom = float64(s.clock.Now().UnixMilli())/1000 - params.TimeStamp
		}

		if err := s.sessionRepo.UpdateSessionPlayback(ctx, &sessionrepo.UpdateSessionPlaybackParams{
			SessionId: user.SessionId,
			State:     params.State,
			PlayFrom:  playFrom,
		}); err != nil {
			return RelaySyncResponse{}, fmt.Errorf("failed to update session playback: %w", err)
		}
	default:
		// forwarded anyway; peers apply their own validation
		s.logger.WarnContext(ctx, "sync with unknown state", "state", params.State, "origin", params.Origin)
	}

	userIds, err := s.sessionRepo.GetSessionUserIds(ctx, user.SessionId)
	if err != nil {
		return RelaySyncResponse{}, fmt.Errorf("failed to get session user ids: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(userIds))
	for _, userId := range userIds {
		if userId == params.Origin {
			continue
		}

		conn, err := s.connRepo.GetConn(userId)
		if err != nil {
			if errors.Is(err, connection.ErrNotFound) {
				s.logger.WarnContext(ctx, "member has no open channel", "user_id", userId)
				continue
			}
			return RelaySyncResponse{}, fmt.Errorf("failed to get conn: %w", err)
		}

		conns = append(conns, conn)
	}

	return RelaySyncResponse{
		SessionId: user.SessionId,
		Conns:     conns,
	}, nil
}
