package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
)

const indexHTML = "<html><body>booth</body></html>"

// kioskServer builds a Server with every collaborator the kiosk wires in.
func kioskServer(t *testing.T, live *stubSession) *Server {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	web := t.TempDir()
	if err := os.WriteFile(filepath.Join(web, "index.html"), []byte(indexHTML), 0o644); err != nil {
		t.Fatalf("failed to write index.html: %v", err)
	}

	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	return New(Config{
		StaticDir: web,
		Store:     st,
		Frames:    emptySource{},
		Session:   live,
		Hub:       hub,
	})
}

func TestServer_KioskRoutes(t *testing.T) {
	live := &stubSession{snap: session.Snapshot{State: session.Reviewing, Locked: true, SessionID: "abc"}}
	s := kioskServer(t, live)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"health rejects POST", http.MethodPost, "/api/health", "", http.StatusMethodNotAllowed},
		{"session list", http.MethodGet, "/api/sessions", "", http.StatusOK},
		{"session list rejects POST", http.MethodPost, "/api/sessions", "", http.StatusMethodNotAllowed},
		{"unknown session", http.MethodGet, "/api/sessions/missing", "", http.StatusNotFound},
		{"bad photo seq", http.MethodGet, "/api/sessions/abc/photos/zero", "", http.StatusBadRequest},
		{"live session", http.MethodGet, "/api/session", "", http.StatusOK},
		{"restart rejects GET", http.MethodGet, "/api/session/restart", "", http.StatusMethodNotAllowed},
		{"settings", http.MethodGet, "/api/settings", "", http.StatusOK},
		{"settings rejects empty PUT", http.MethodPut, "/api/settings", "{}", http.StatusBadRequest},
		{"stream rejects POST", http.MethodPost, "/api/stream", "", http.StatusMethodNotAllowed},
		{"overlay needs a websocket upgrade", http.MethodGet, "/api/overlay", "", http.StatusBadRequest},
		{"static index", http.MethodGet, "/", "", http.StatusOK},
		{"unknown path", http.MethodGet, "/api/nonexistent", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("%s %s: status = %d, want %d (body %q)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// Restart is last: it changes the live session.
	req := httptest.NewRequest(http.MethodPost, "/api/session/restart", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/session/restart: status = %d", rec.Code)
	}
	if got := live.Snapshot().SessionID; got != "next" {
		t.Errorf("session after restart = %q, want next", got)
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/", "/api/sessions", "/api/settings", "/api/session", "/api/stream", "/api/overlay"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s without collaborators: status = %d, want %d", path, rec.Code, http.StatusNotFound)
		}
	}
}

func TestServer_HealthPayload(t *testing.T) {
	t.Run("kiosk fields", func(t *testing.T) {
		live := &stubSession{snap: session.Snapshot{State: session.Countdown, Remaining: 2}}
		s := kioskServer(t, live)

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}

		var health map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health["status"] != "ok" {
			t.Errorf("status = %v, want ok", health["status"])
		}
		if _, ok := health["uptime"]; !ok {
			t.Error("expected uptime in response")
		}
		if health["state"] != "countdown" {
			t.Errorf("state = %v, want countdown", health["state"])
		}
		if health["overlay_clients"] != float64(0) {
			t.Errorf("overlay_clients = %v, want 0", health["overlay_clients"])
		}
	})

	t.Run("bare server omits kiosk fields", func(t *testing.T) {
		s := New(Config{})

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		var health map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		for _, key := range []string{"state", "overlay_clients"} {
			if _, ok := health[key]; ok {
				t.Errorf("unexpected %s in %v", key, health)
			}
		}
	})
}

func TestServer_StaticFiles(t *testing.T) {
	s := kioskServer(t, &stubSession{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Body.String() != indexHTML {
		t.Errorf("body = %q, want %q", rec.Body.String(), indexHTML)
	}

	req = httptest.NewRequest(http.MethodGet, "/missing.js", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("missing static file: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
