package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"
)

// FrameSource is where the stream reads frames. capture.FrameBuffer implements it.
type FrameSource interface {
	Latest() (*gocv.Mat, uint64, error)
}

// StreamHandler serves the latest frames as MJPEG, mirrored like the overlay.
type StreamHandler struct {
	frames   FrameSource
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler that polls frames at fps.
func NewStreamHandler(frames FrameSource, fps int) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{frames: frames, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	mirrored := gocv.NewMat()
	defer mirrored.Close()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, seq, err := h.frames.Latest()
		if err != nil {
			continue
		}
		if seq == lastSeq {
			frame.Close()
			continue
		}
		lastSeq = seq

		gocv.Flip(*frame, &mirrored, 1)
		frame.Close()

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mirrored)
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		_, werr := w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()
		if werr != nil {
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
