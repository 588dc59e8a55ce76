package capture

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestFrameBuffer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	buf := NewFrameBuffer()
	defer buf.Close()

	if _, _, err := buf.Latest(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Latest() on empty buffer error = %v, want ErrNoFrame", err)
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	buf.Store(&frame)
	buf.Store(&frame)

	latest, seq, err := buf.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	defer latest.Close()

	if seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
	if latest.Cols() != 64 || latest.Rows() != 48 {
		t.Errorf("frame size = %dx%d, want 64x48", latest.Cols(), latest.Rows())
	}
}

func TestPhotographer_Capture(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	buf := NewFrameBuffer()
	defer buf.Close()
	dir := t.TempDir()
	p := NewPhotographer(buf, dir, 90)

	if _, err := p.Capture(context.Background(), "s1", 1); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Capture() without frame error = %v, want ErrNoFrame", err)
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	// Left half white so the mirror is visible
	left := frame.Region(leftHalf())
	left.SetTo(gocv.NewScalar(255, 255, 255, 0))
	left.Close()
	buf.Store(&frame)

	path, err := p.Capture(context.Background(), "s1", 1)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "s1") {
		t.Errorf("photo written to %s, want under %s", path, filepath.Join(dir, "s1"))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("photo missing: %v", err)
	}

	saved := gocv.IMRead(path, gocv.IMReadColor)
	defer saved.Close()
	if saved.Empty() {
		t.Fatal("saved photo could not be decoded")
	}
	// After mirroring the right edge is bright and the left edge dark
	if r, l := saved.GetVecbAt(24, 62)[0], saved.GetVecbAt(24, 1)[0]; r < 200 || l > 50 {
		t.Errorf("photo not mirrored: right=%d left=%d", r, l)
	}
}

func TestPhotographer_CanceledContext(t *testing.T) {
	p := NewPhotographer(nil, t.TempDir(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Capture(ctx, "s1", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Capture() error = %v, want context.Canceled", err)
	}
}

// leftHalf covers the left half of a 64x48 frame.
func leftHalf() image.Rectangle {
	return image.Rect(0, 0, 32, 48)
}
