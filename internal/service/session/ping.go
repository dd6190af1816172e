package session

import (
	"context"
	"errors"
	"fmt"

	sessionrepo "github.com/syncwatch/server/internal/repository/session"
)

type PingParams struct {
	Id        string
	Iteration int
	ClientId  string
}

type PingResponse struct {
	Id        string
	Iteration int
	// Time is milliseconds elapsed on the server clock since the client
	// joined. Two of these bracket one client round trip.
	Time float64
}

// Ping answers iterations 1 and 3 of a latency measurement with the next
// iteration number and a fresh server-clock reading. Anything else is
// out of sequence and rejected.
func (s service) Ping(ctx context.Context, params *PingParams) (PingResponse, error) {
	if params.Iteration != 1 && params.Iteration != 3 {
		return PingResponse{}, fmt.Errorf("%w: %d", ErrBadIteration, params.Iteration)
	}

	user, err := s.sessionRepo.GetUser(ctx, params.ClientId)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrUserNotFound) {
			return PingResponse{}, ErrUserNotFound
		}
		return PingResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	return PingResponse{
		Id:        params.Id,
		Iteration: params.Iteration + 1,
		Time:      float64(s.clock.Now().UnixMilli() - user.JoinedAt),
	}, nil
}
