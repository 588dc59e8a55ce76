package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ayusman/handbooth/internal/store"
)

// SessionsHandler serves recorded sessions and their photos.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

// ServeHTTP routes:
//
//	GET    /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/photos/{seq}
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 3 && parts[1] == "photos":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		seq, err := strconv.Atoi(parts[2])
		if err != nil || seq < 1 {
			writeError(w, http.StatusBadRequest, "Invalid photo sequence")
			return
		}
		h.photo(w, r, parts[0], seq)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type sessionDetailResponse struct {
	*store.Session
	Photos        []store.Photo        `json:"photos"`
	Confirmations []store.Confirmation `json:"confirmations"`
}

// list handles GET /api/sessions?limit=N.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

// get handles GET /api/sessions/{id}.
func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	photos, err := h.store.Photos().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}
	confirmations, err := h.store.Confirmations().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list confirmations")
		return
	}

	resp := sessionDetailResponse{
		Session:       sess,
		Photos:        photos,
		Confirmations: confirmations,
	}
	if resp.Photos == nil {
		resp.Photos = []store.Photo{}
	}
	if resp.Confirmations == nil {
		resp.Confirmations = []store.Confirmation{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/sessions/{id}. Photo files stay on disk.
func (h *SessionsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// photo handles GET /api/sessions/{id}/photos/{seq} and serves the JPEG.
func (h *SessionsHandler) photo(w http.ResponseWriter, r *http.Request, id string, seq int) {
	p, err := h.store.Photos().Get(id, seq)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return
	}

	if _, err := os.Stat(p.Path); err != nil {
		writeError(w, http.StatusNotFound, "Photo file missing")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, p.Path)
}
