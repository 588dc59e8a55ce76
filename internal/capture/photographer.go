package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// Photographer saves the newest buffered frame as a mirrored JPEG.
type Photographer struct {
	frames  *FrameBuffer
	dir     string
	quality int
	now     func() time.Time
}

// NewPhotographer creates a Photographer writing under dir.
func NewPhotographer(frames *FrameBuffer, dir string, quality int) *Photographer {
	if quality <= 0 || quality > 100 {
		quality = 92
	}
	return &Photographer{frames: frames, dir: dir, quality: quality, now: time.Now}
}

// Dir returns the photo root directory.
func (p *Photographer) Dir() string { return p.dir }

// Capture writes photo seq of sessionID and returns its path. The image is
// flipped horizontally so it matches the mirrored preview.
func (p *Photographer) Capture(ctx context.Context, sessionID string, seq int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	frame, _, err := p.frames.Latest()
	if err != nil {
		return "", err
	}
	defer frame.Close()

	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(*frame, &mirrored, 1)

	sessionDir := filepath.Join(p.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	path := filepath.Join(sessionDir, fmt.Sprintf("%02d-%s.jpg", seq, p.now().Format("150405")))
	if ok := gocv.IMWriteWithParams(path, mirrored, []int{int(gocv.IMWriteJpegQuality), p.quality}); !ok {
		return "", fmt.Errorf("write %s: encode failed", path)
	}
	return path, nil
}
