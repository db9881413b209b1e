package handlers

import (
	"net/http"

	"annadata-backend/internal/models"
)

type readiness interface {
	Ready() bool
}

type sessionCounter interface {
	ActiveSessions() int
}

type HealthHandler struct {
	schemes  readiness
	voice    readiness
	sessions sessionCounter
}

func NewHealthHandler(schemes, voice readiness, sessions sessionCounter) *HealthHandler {
	return &HealthHandler{schemes: schemes, voice: voice, sessions: sessions}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:              "ok",
		SchemesIndexLoaded:  h.schemes.Ready(),
		TranscriberReady:    h.voice.Ready(),
		ActiveVoiceSessions: h.sessions.ActiveSessions(),
	})
}
