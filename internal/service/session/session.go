package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	sessionrepo "github.com/syncwatch/server/internal/repository/session"
	"github.com/syncwatch/server/internal/protocol"
)

type CreateSessionParams struct {
	VideoURL   string
	Title      string
	Password   string
	ControlKey string
}

type CreateSessionResponse struct {
	SessionId string
}

// CreateSession stores a new session in the paused state at position 0.
// The password is bcrypt-hashed before it is stored; an empty password
// leaves the session open.
func (s service) CreateSession(ctx context.Context, params *CreateSessionParams) (CreateSessionResponse, error) {
	var passwordHash string
	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return CreateSessionResponse{}, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	sessionId := s.generator.Generate(tokenLength)

	if err := s.sessionRepo.SetSession(ctx, &sessionrepo.SetSessionParams{
		SessionId:    sessionId,
		VideoURL:     params.VideoURL,
		Title:        params.Title,
		PasswordHash: passwordHash,
		ControlKey:   params.ControlKey,
		State:        protocol.StatePaused,
		PlayFrom:     0,
	}); err != nil {
		return CreateSessionResponse{}, fmt.Errorf("failed to set session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created", "session_id", sessionId, "title", params.Title)

	return CreateSessionResponse{SessionId: sessionId}, nil
}

type GetSessionResponse struct {
	VideoURL string
	Title    string
}

func (s service) GetSession(ctx context.Context, sessionId string) (GetSessionResponse, error) {
	sess, err := s.sessionRepo.GetSession(ctx, sessionId)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrSessionNotFound) {
			return GetSessionResponse{}, ErrSessionNotFound
		}
		return GetSessionResponse{}, fmt.Errorf("failed to get session: %w", err)
	}

	return GetSessionResponse{
		VideoURL: sess.VideoURL,
		Title:    sess.Title,
	}, nil
}

type JoinSessionParams struct {
	SessionId  string
	Password   string
	ControlKey string
}

type JoinSessionResponse struct {
	VideoURL   string
	Title      string
	State      string
	PlayFrom   float64
	Controller bool
}

// JoinSession checks the session password and returns the public fields
// plus the live playback position, so a late joiner can seek before its
// first sync message arrives. Controller reports whether the supplied
// control key matched; it is informational only, the relay does not gate
// on it.
func (s service) JoinSession(ctx context.Context, params *JoinSessionParams) (JoinSessionResponse, error) {
	sess, err := s.sessionRepo.GetSession(ctx, params.SessionId)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrSessionNotFound) {
			return JoinSessionResponse{}, ErrSessionNotFound
		}
		return JoinSessionResponse{}, fmt.Errorf("failed to get session: %w", err)
	}

	if sess.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(sess.PasswordHash), []byte(params.Password)); err != nil {
			return JoinSessionResponse{}, ErrWrongPassword
		}
	}

	return JoinSessionResponse{
		VideoURL:   sess.VideoURL,
		Title:      sess.Title,
		State:      sess.State,
		PlayFrom:   sess.PlayFrom,
		Controller: params.ControlKey != "" && params.ControlKey == sess.ControlKey,
	}, nil
}
