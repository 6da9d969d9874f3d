package controllers

import (
	"net/http"

	"essaycoach/coach/session"
	httputils "essaycoach/coach/utils/http"
)

type HealthController struct {
	sessions *session.Manager
}

func NewHealthController(sessions *session.Manager) *HealthController {
	return &HealthController{sessions: sessions}
}

func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}
