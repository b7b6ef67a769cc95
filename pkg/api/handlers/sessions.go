package handlers

import (
	"net/http"

	"github.com/marmos91/bankd/pkg/session"
)

// SessionsHandler lists the users currently logged in over the teller
// protocol.
type SessionsHandler struct {
	registry *session.Registry
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(registry *session.Registry) *SessionsHandler {
	return &SessionsHandler{registry: registry}
}

// SessionsResponse is the response body for GET /api/v1/sessions.
type SessionsResponse struct {
	Capacity int             `json:"capacity"`
	Active   int             `json:"active"`
	Sessions []session.Entry `json:"sessions"`
}

// List handles GET /api/v1/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Active()
	if entries == nil {
		entries = []session.Entry{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{
		Capacity: h.registry.Capacity(),
		Active:   len(entries),
		Sessions: entries,
	})
}
