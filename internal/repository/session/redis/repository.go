package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewRepo returns a session repository on top of rc. Every key is written
// with ttl so abandoned sessions age out.
func NewRepo(rc *redis.Client, logger *slog.Logger, ttl time.Duration) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
		ttl:    ttl,
	}
}

func (r repo) getSessionKey(sessionId string) string {
	return "session:" + sessionId
}

func (r repo) getSessionUsersKey(sessionId string) string {
	return "session:" + sessionId + ":users"
}

func (r repo) getUserKey(userId string) string {
	return "user:" + userId
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	_, err := pipe.Exec(ctx)
	return err
}
