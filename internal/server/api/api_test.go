package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// seedSession stores a finished session with photos written to disk.
func seedSession(t *testing.T, s *store.Store, id string, started time.Time, photos int) []store.Photo {
	t.Helper()

	if err := s.Sessions().Ensure(id, started); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	dir := t.TempDir()
	var out []store.Photo
	for i := 1; i <= photos; i++ {
		path := filepath.Join(dir, id+"-"+strconv.Itoa(i)+".jpg")
		if err := os.WriteFile(path, []byte("\xff\xd8jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
		out = append(out, store.Photo{SessionID: id, Seq: i, Path: path, TakenAt: started.Add(time.Duration(i) * time.Second)})
	}
	if photos > 0 {
		if err := s.Sessions().Finish(id, out, started.Add(time.Minute)); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
	}
	return out
}

func do(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionsHandler_List(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedSession(t, s, "older", base, 1)
	seedSession(t, s, "newer", base.Add(time.Hour), 2)

	h := NewSessionsHandler(s)
	rec := do(h, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var resp listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Sessions) != 2 || resp.Sessions[0].ID != "newer" {
		t.Fatalf("sessions = %+v, want newer first", resp.Sessions)
	}
	if resp.Sessions[0].PhotoCount != 2 || resp.Sessions[0].Status != store.SessionFinished {
		t.Errorf("newer = %+v", resp.Sessions[0])
	}

	rec = do(h, http.MethodGet, "/api/sessions?limit=1", nil)
	resp = listSessionsResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Sessions) != 1 {
		t.Errorf("limit=1 returned %d sessions", len(resp.Sessions))
	}

	if rec := do(h, http.MethodGet, "/api/sessions?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/sessions", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}

func TestSessionsHandler_ListEmpty(t *testing.T) {
	rec := do(NewSessionsHandler(newTestStore(t)), http.MethodGet, "/api/sessions", nil)
	if body := rec.Body.String(); body != "{\"sessions\":[]}\n" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestSessionsHandler_Get(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedSession(t, s, "abc", started, 2)
	if err := s.Confirmations().Record(&store.Confirmation{
		SessionID: "abc", HandID: 1, Label: "two_fingers", State: "idle", Accepted: true, ConfirmedAt: started,
	}); err != nil {
		t.Fatal(err)
	}

	h := NewSessionsHandler(s)
	rec := do(h, http.MethodGet, "/api/sessions/abc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		ID            string               `json:"id"`
		Status        string               `json:"status"`
		Photos        []store.Photo        `json:"photos"`
		Confirmations []store.Confirmation `json:"confirmations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "abc" || resp.Status != "finished" {
		t.Errorf("session = %+v", resp)
	}
	if len(resp.Photos) != 2 || resp.Photos[1].Seq != 2 {
		t.Errorf("photos = %+v", resp.Photos)
	}
	if len(resp.Confirmations) != 1 || resp.Confirmations[0].Label != "two_fingers" {
		t.Errorf("confirmations = %+v", resp.Confirmations)
	}

	if rec := do(h, http.MethodGet, "/api/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSessionsHandler_Photo(t *testing.T) {
	s := newTestStore(t)
	photos := seedSession(t, s, "abc", time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 2)
	h := NewSessionsHandler(s)

	rec := do(h, http.MethodGet, "/api/sessions/abc/photos/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s", ct)
	}
	if rec.Body.String() != "\xff\xd8jpeg" {
		t.Errorf("body = %q", rec.Body.String())
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/api/sessions/abc/photos/9", http.StatusNotFound},
		{"/api/sessions/abc/photos/zero", http.StatusBadRequest},
		{"/api/sessions/abc/photos/0", http.StatusBadRequest},
		{"/api/sessions/abc/videos/1", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(h, http.MethodGet, tt.target, nil); rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.target, rec.Code, tt.want)
		}
	}

	os.Remove(photos[0].Path)
	if rec := do(h, http.MethodGet, "/api/sessions/abc/photos/1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted file status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSessionsHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s, "abc", time.Now(), 1)
	h := NewSessionsHandler(s)

	if rec := do(h, http.MethodDelete, "/api/sessions/abc", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := do(h, http.MethodDelete, "/api/sessions/abc", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

type fakeSession struct {
	mu     sync.Mutex
	snap   session.Snapshot
	resets int
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap = session.Snapshot{State: session.Idle, SessionID: "fresh"}
}

func TestLiveHandler(t *testing.T) {
	fake := &fakeSession{snap: session.Snapshot{
		State:     session.Countdown,
		Locked:    true,
		Remaining: 2,
		SessionID: "abc",
	}}
	h := NewLiveHandler(fake)

	rec := do(h, http.MethodGet, "/api/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap struct {
		State     string `json:"state"`
		Locked    bool   `json:"locked"`
		Remaining int    `json:"remaining"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.State != "countdown" || !snap.Locked || snap.Remaining != 2 || snap.SessionID != "abc" {
		t.Errorf("snapshot = %+v", snap)
	}

	if rec := do(h, http.MethodGet, "/api/session/restart", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET restart status = %d", rec.Code)
	}
	rec = do(h, http.MethodPost, "/api/session/restart", nil)
	if rec.Code != http.StatusOK || fake.resets != 1 {
		t.Fatalf("restart status = %d, resets = %d", rec.Code, fake.resets)
	}
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.SessionID != "fresh" || snap.State != "idle" {
		t.Errorf("after restart = %+v", snap)
	}
}

func TestSettingsHandler(t *testing.T) {
	s := newTestStore(t)
	h := NewSettingsHandler(s, nil)

	rec := do(h, http.MethodPut, "/api/settings", []byte(`{"hold.threshold":"2s","session.max_photos":"4"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var saved updateSettingsResponse
	json.NewDecoder(rec.Body).Decode(&saved)
	if !saved.RestartRequired || len(saved.Saved) != 2 || saved.Saved[0] != "hold.threshold" {
		t.Errorf("PUT response = %+v", saved)
	}

	rec = do(h, http.MethodGet, "/api/settings", nil)
	var got settingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Settings["hold.threshold"] != "2s" || got.Settings["session.max_photos"] != "4" {
		t.Errorf("settings = %v", got.Settings)
	}
	if len(got.Keys) == 0 {
		t.Error("expected known keys")
	}
}

func TestSettingsHandler_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty", `{}`},
		{"unknown key", `{"hold.nope":"1"}`},
		{"unparsable", `{"hold.threshold":"soon"}`},
		{"out of range", `{"session.max_photos":"0"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			h := NewSettingsHandler(s, nil)

			rec := do(h, http.MethodPut, "/api/settings", []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			all, err := s.Settings().All()
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 0 {
				t.Errorf("rejected request stored %v", all)
			}
		})
	}
}
