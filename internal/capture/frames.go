package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent camera frame so the stream handler and the
// photographer can read it without pulling frames away from the pipeline.
type FrameBuffer struct {
	mu     sync.Mutex
	latest gocv.Mat
	seq    uint64
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{latest: gocv.NewMat()}
}

// Store copies frame into the buffer.
func (b *FrameBuffer) Store(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	frame.CopyTo(&b.latest)
	b.seq++
}

// Latest returns a clone of the newest frame and its sequence number.
// The caller must close the returned Mat.
func (b *FrameBuffer) Latest() (*gocv.Mat, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest.Empty() {
		return nil, 0, ErrNoFrame
	}
	m := b.latest.Clone()
	return &m, b.seq, nil
}

// Seq returns the number of frames stored so far.
func (b *FrameBuffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Close releases the buffered frame.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest.Close()
	b.latest = gocv.NewMat()
	b.seq = 0
}
