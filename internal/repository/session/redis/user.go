package redis

import (
	"context"

	"github.com/syncwatch/server/internal/repository/session"
)

func (r repo) SetUser(ctx context.Context, params *session.SetUserParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	user := session.User{
		Username:  params.Username,
		SessionId: params.SessionId,
		JoinedAt:  params.JoinedAt,
	}

	userKey := r.getUserKey(params.UserId)
	pipe.HSet(ctx, userKey, user)
	pipe.Expire(ctx, userKey, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetUser(ctx context.Context, userId string) (session.User, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userId,
	})
	var user session.User
	if err := r.rc.HGetAll(ctx, r.getUserKey(userId)).Scan(&user); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return session.User{}, err
	}

	if user.SessionId == "" {
		r.logger.DebugContext(ctx, "returned", "error", session.ErrUserNotFound)
		return session.User{}, session.ErrUserNotFound
	}

	return user, nil
}

func (r repo) RemoveUser(ctx context.Context, userId string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userId,
	})
	res, err := r.rc.Del(ctx, r.getUserKey(userId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if res == 0 {
		r.logger.DebugContext(ctx, "returned", "error", session.ErrUserNotFound)
		return session.ErrUserNotFound
	}

	return nil
}

// AddUserToSession adds the user to the session's member set. Membership is
// a real set: the returned bool reports whether the user was newly added,
// and a duplicate add leaves the set unchanged.
func (r repo) AddUserToSession(ctx context.Context, params *session.AddUserToSessionParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	exists, err := r.rc.Exists(ctx, r.getSessionKey(params.SessionId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	if exists == 0 {
		r.logger.DebugContext(ctx, "returned", "error", session.ErrSessionNotFound)
		return false, session.ErrSessionNotFound
	}

	usersKey := r.getSessionUsersKey(params.SessionId)
	added, err := r.rc.SAdd(ctx, usersKey, params.UserId).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	if err := r.rc.Expire(ctx, usersKey, r.ttl).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return added == 1, nil
}

func (r repo) RemoveUserFromSession(ctx context.Context, params *session.RemoveUserFromSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.rc.SRem(ctx, r.getSessionUsersKey(params.SessionId), params.UserId).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetSessionUserIds(ctx context.Context, sessionId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"session_id": sessionId,
	})
	userIds, err := r.rc.SMembers(ctx, r.getSessionUsersKey(sessionId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return userIds, nil
}
