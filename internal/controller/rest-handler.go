package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/syncwatch/server/internal/service/session"
	"github.com/syncwatch/server/pkg/rest"
)

type createSessionInput struct {
	VideoURL   string `json:"video_url" validate:"required,url"`
	Title      string `json:"title" validate:"required,max=128"`
	Password   string `json:"password" validate:"max=128"`
	ControlKey string `json:"control_key" validate:"max=128"`
}

type createSessionResponse struct {
	SessionId string `json:"session_id"`
}

func (c controller) createSession(w http.ResponseWriter, r *http.Request) {
	var input createSessionInput

	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createResp, err := c.sessionService.CreateSession(r.Context(), &session.CreateSessionParams{
		VideoURL:   input.VideoURL,
		Title:      input.Title,
		Password:   input.Password,
		ControlKey: input.ControlKey,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createSessionResponse{
		SessionId: createResp.SessionId,
	}})
}

type getSessionResponse struct {
	VideoURL string `json:"video_url"`
	Title    string `json:"title"`
}

func (c controller) getSession(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	getResp, err := c.sessionService.GetSession(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "session not found"})
			return
		}
		c.logger.WarnContext(r.Context(), "failed to get session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": getSessionResponse{
		VideoURL: getResp.VideoURL,
		Title:    getResp.Title,
	}})
}

type joinSessionInput struct {
	Password   string `json:"password" validate:"max=128"`
	ControlKey string `json:"control_key" validate:"max=128"`
}

type joinSessionResponse struct {
	VideoURL   string  `json:"video_url"`
	Title      string  `json:"title"`
	State      string  `json:"state"`
	PlayFrom   float64 `json:"play_from"`
	Controller bool    `json:"controller"`
}

func (c controller) joinSession(w http.ResponseWriter, r *http.Request) {
	sessionId := chi.URLParam(r, "session-id")

	var input joinSessionInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	joinResp, err := c.sessionService.JoinSession(r.Context(), &session.JoinSessionParams{
		SessionId:  sessionId,
		Password:   input.Password,
		ControlKey: input.ControlKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "session not found"})
		case errors.Is(err, session.ErrWrongPassword):
			rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": "wrong password"})
		default:
			c.logger.WarnContext(r.Context(), "failed to join session", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinSessionResponse{
		VideoURL:   joinResp.VideoURL,
		Title:      joinResp.Title,
		State:      joinResp.State,
		PlayFrom:   joinResp.PlayFrom,
		Controller: joinResp.Controller,
	}})
}
