package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskmate/internal/domain"
	"deskmate/internal/infra/logger"
)

// writeFrame writes a solid white test frame where the screenshot tool would.
func writeFrame(t *testing.T, path string, w, h int) {
	t.Helper()
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, frame))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func newTestCapturer(t *testing.T, run func(ctx context.Context, name string, args ...string) error) *ExecCapturer {
	return &ExecCapturer{
		logger:  logger.Discard(),
		goos:    "linux",
		tempDir: t.TempDir(),
		runCmd:  run,
	}
}

func decodeShot(t *testing.T, shot *domain.Screenshot) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(shot.Base64)
	require.NoError(t, err)
	frame, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return frame
}

func TestCapture(t *testing.T) {
	c := newTestCapturer(t, func(_ context.Context, name string, args ...string) error {
		writeFrame(t, args[len(args)-1], 120, 80)
		return nil
	})

	shot, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/png", shot.MediaType)
	assert.Equal(t, 120, shot.Width)
	assert.Equal(t, 80, shot.Height)
	assert.NotEmpty(t, shot.Base64)
}

func TestCaptureFallsBackToScrot(t *testing.T) {
	var tools []string
	c := newTestCapturer(t, func(_ context.Context, name string, args ...string) error {
		tools = append(tools, name)
		if name == "gnome-screenshot" {
			return errors.New("not installed")
		}
		writeFrame(t, args[len(args)-1], 10, 10)
		return nil
	})

	_, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gnome-screenshot", "scrot"}, tools)
}

func TestCaptureToolFailure(t *testing.T) {
	c := newTestCapturer(t, func(_ context.Context, _ string, _ ...string) error {
		return errors.New("no display")
	})

	_, err := c.Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screen capture")
}

func TestCaptureAnnotatedDrawsMarker(t *testing.T) {
	c := newTestCapturer(t, func(_ context.Context, _ string, args ...string) error {
		writeFrame(t, args[len(args)-1], 100, 100)
		return nil
	})

	shot, err := c.CaptureAnnotated(context.Background(), []domain.Annotation{{X: 50, Y: 50}})
	require.NoError(t, err)

	frame := decodeShot(t, shot)

	// The ring covers radius 9..14 around the mark; the center stays white.
	r, g, b, _ := frame.At(50+11, 50).RGBA()
	assert.True(t, r > g && r > b, "ring pixel should be red, got rgb(%d, %d, %d)", r>>8, g>>8, b>>8)

	r, g, b, _ = frame.At(50, 50).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestCaptureAnnotatedMultipleMarks(t *testing.T) {
	c := newTestCapturer(t, func(_ context.Context, _ string, args ...string) error {
		writeFrame(t, args[len(args)-1], 200, 100)
		return nil
	})

	shot, err := c.CaptureAnnotated(context.Background(), []domain.Annotation{
		{X: 40, Y: 50},
		{X: 160, Y: 50},
	})
	require.NoError(t, err)

	frame := decodeShot(t, shot)
	for _, x := range []int{40, 160} {
		r, g, _, _ := frame.At(x+11, 50).RGBA()
		assert.True(t, r > g, "expected a marker near x=%d", x)
	}
}
