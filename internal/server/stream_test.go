package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handbooth/internal/capture"
)

type countingSource struct {
	mu  sync.Mutex
	seq uint64
}

func (s *countingSource) Latest() (*gocv.Mat, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	return &m, s.seq, nil
}

type emptySource struct{}

func (emptySource) Latest() (*gocv.Mat, uint64, error) {
	return nil, 0, capture.ErrNoFrame
}

func TestStreamHandler_WritesFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	NewStreamHandler(&countingSource{}, 30).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %s", ct)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "--frame"); n < 2 {
		t.Errorf("got %d frames, want at least 2", n)
	}
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Error("frame part missing image/jpeg header")
	}
}

func TestStreamHandler_NoFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	NewStreamHandler(emptySource{}, 0).ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "--frame") {
		t.Error("expected no frames without a source frame")
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler(emptySource{}, 15).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
