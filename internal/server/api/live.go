package api

import (
	"net/http"

	"github.com/ayusman/handbooth/internal/session"
)

// SessionController is the live session the kiosk is running.
type SessionController interface {
	Snapshot() session.Snapshot
	Reset()
}

// LiveHandler exposes the running session.
type LiveHandler struct {
	session SessionController
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(s SessionController) *LiveHandler {
	return &LiveHandler{session: s}
}

// ServeHTTP handles GET /api/session and POST /api/session/restart.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/session":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.session.Snapshot())
	case "/api/session/restart":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.session.Reset()
		writeJSON(w, http.StatusOK, h.session.Snapshot())
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}
