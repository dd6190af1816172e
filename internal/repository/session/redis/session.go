package redis

import (
	"context"

	"github.com/syncwatch/server/internal/repository/session"
)

func (r repo) SetSession(ctx context.Context, params *session.SetSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	sess := session.Session{
		VideoURL:     params.VideoURL,
		Title:        params.Title,
		PasswordHash: params.PasswordHash,
		ControlKey:   params.ControlKey,
		State:        params.State,
		PlayFrom:     params.PlayFrom,
	}

	sessionKey := r.getSessionKey(params.SessionId)
	pipe.HSet(ctx, sessionKey, sess)
	pipe.Expire(ctx, sessionKey, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetSession(ctx context.Context, sessionId string) (session.Session, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"session_id": sessionId,
	})
	var sess session.Session
	if err := r.rc.HGetAll(ctx, r.getSessionKey(sessionId)).Scan(&sess); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return session.Session{}, err
	}

	if sess.VideoURL == "" {
		r.logger.DebugContext(ctx, "returned", "error", session.ErrSessionNotFound)
		return session.Session{}, session.ErrSessionNotFound
	}

	return sess, nil
}

func (r repo) UpdateSessionPlayback(ctx context.Context, params *session.UpdateSessionPlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getSessionKey(params.SessionId)

	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if cmd.Val() == 0 {
		r.logger.DebugContext(ctx, "returned", "error", session.ErrSessionNotFound)
		return session.ErrSessionNotFound
	}

	if err := r.rc.HSet(ctx, key, "state", params.State, "play_from", params.PlayFrom).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
