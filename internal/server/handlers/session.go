// internal/server/handlers/session.go

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mapaeleitoral/internal/service/session"
)

// SessionHandler handles map session HTTP requests
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
	}
}

// CreateSession starts a session from the page URL carried in the
// request's query string
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.URL.RawQuery)
	if err != nil {
		if errors.Is(err, session.ErrLimit) {
			respondWithError(w, http.StatusServiceUnavailable, "Too many open sessions", err)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to create session", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession returns the visible state of a session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Session not found", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteSession closes a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(chi.URLParam(r, "id")); err != nil {
		respondWithError(w, http.StatusNotFound, "Session not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
