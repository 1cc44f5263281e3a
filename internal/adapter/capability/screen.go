package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"deskmate/internal/domain"
)

// ExecCapturer captures the screen by shelling out to the platform's
// screenshot tool and re-encoding the frame as PNG.
type ExecCapturer struct {
	logger  *slog.Logger
	goos    string
	tempDir string
	runCmd  func(ctx context.Context, name string, args ...string) error // injectable for tests
}

func NewExecCapturer(logger *slog.Logger) *ExecCapturer {
	return &ExecCapturer{
		logger:  logger,
		goos:    runtime.GOOS,
		tempDir: os.TempDir(),
		runCmd: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Capture implements domain.ScreenCapturer.
func (c *ExecCapturer) Capture(ctx context.Context) (*domain.Screenshot, error) {
	frame, err := c.grab(ctx)
	if err != nil {
		return nil, err
	}
	return encodeFrame(frame)
}

// CaptureAnnotated implements domain.ScreenCapturer. Markers are drawn as
// rings at each coordinate so the user can see where the proposed action
// lands.
func (c *ExecCapturer) CaptureAnnotated(ctx context.Context, marks []domain.Annotation) (*domain.Screenshot, error) {
	frame, err := c.grab(ctx)
	if err != nil {
		return nil, err
	}

	annotated := image.NewRGBA(frame.Bounds())
	draw.Draw(annotated, frame.Bounds(), frame, frame.Bounds().Min, draw.Src)
	for _, m := range marks {
		drawMarker(annotated, m.X, m.Y)
	}
	return encodeFrame(annotated)
}

// grab runs the platform screenshot tool and decodes the resulting file.
func (c *ExecCapturer) grab(ctx context.Context) (image.Image, error) {
	path := filepath.Join(c.tempDir, "deskmate-capture.png")
	defer os.Remove(path)

	var err error
	switch c.goos {
	case "darwin":
		err = c.runCmd(ctx, "screencapture", "-x", "-t", "png", path)
	default:
		// Prefer gnome-screenshot, fall back to scrot.
		err = c.runCmd(ctx, "gnome-screenshot", "-f", path)
		if err != nil {
			err = c.runCmd(ctx, "scrot", "-o", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	frame, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return frame, nil
}

func encodeFrame(frame image.Image) (*domain.Screenshot, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}

	bounds := frame.Bounds()
	return &domain.Screenshot{
		Base64:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		MediaType: "image/png",
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// drawMarker paints a filled ring around (x, y).
func drawMarker(img *image.RGBA, x, y int) {
	const outer, inner = 14, 9
	red := color.RGBA{R: 230, G: 57, B: 70, A: 255}

	for dy := -outer; dy <= outer; dy++ {
		for dx := -outer; dx <= outer; dx++ {
			d2 := dx*dx + dy*dy
			if d2 <= outer*outer && d2 >= inner*inner {
				img.Set(x+dx, y+dy, red)
			}
		}
	}
}

var _ domain.ScreenCapturer = (*ExecCapturer)(nil)
