package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskmate/internal/infra/logger"
)

type cmdRecorder struct {
	calls []string
}

func (r *cmdRecorder) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return nil
}

func newRecordedInput(goos string) (*ExecInput, *cmdRecorder) {
	rec := &cmdRecorder{}
	return &ExecInput{logger: logger.Discard(), goos: goos, runCmd: rec.run}, rec
}

func TestLeftClickLinux(t *testing.T) {
	in, rec := newRecordedInput("linux")
	require.NoError(t, in.LeftClick(context.Background(), 100, 200))
	assert.Equal(t, []string{
		"xdotool mousemove 100 200",
		"xdotool click 1",
	}, rec.calls)
}

func TestClicksDarwin(t *testing.T) {
	in, rec := newRecordedInput("darwin")
	require.NoError(t, in.LeftClick(context.Background(), 10, 20))
	require.NoError(t, in.RightClick(context.Background(), 30, 40))
	require.NoError(t, in.DoubleClick(context.Background(), 50, 60))
	assert.Equal(t, []string{
		"cliclick c:10,20",
		"cliclick rc:30,40",
		"cliclick dc:50,60",
	}, rec.calls)
}

func TestDoubleClickLinux(t *testing.T) {
	in, rec := newRecordedInput("linux")
	require.NoError(t, in.DoubleClick(context.Background(), 5, 6))
	assert.Equal(t, []string{
		"xdotool mousemove 5 6",
		"xdotool click --repeat 2 1",
	}, rec.calls)
}

func TestDragLinux(t *testing.T) {
	in, rec := newRecordedInput("linux")
	require.NoError(t, in.Drag(context.Background(), 1, 2, 3, 4))
	assert.Equal(t, []string{
		"xdotool mousemove 1 2",
		"xdotool mousedown 1",
		"xdotool mousemove 3 4",
		"xdotool mouseup 1",
	}, rec.calls)
}

func TestScrollLinux(t *testing.T) {
	tests := []struct {
		name   string
		pixels int
		want   string
	}{
		{"down", 50, "xdotool click --repeat 5 5"},
		{"up", -30, "xdotool click --repeat 3 4"},
		{"tiny delta still scrolls", 4, "xdotool click --repeat 1 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, rec := newRecordedInput("linux")
			require.NoError(t, in.Scroll(context.Background(), tt.pixels, 10, 20))
			require.Len(t, rec.calls, 2)
			assert.Equal(t, "xdotool mousemove 10 20", rec.calls[0])
			assert.Equal(t, tt.want, rec.calls[1])
		})
	}
}

func TestTypeTextClicksTargetFirst(t *testing.T) {
	in, rec := newRecordedInput("linux")
	require.NoError(t, in.TypeText(context.Background(), 7, 8, "hello"))
	assert.Equal(t, []string{
		"xdotool mousemove 7 8",
		"xdotool click 1",
		"xdotool type --delay 20 hello",
	}, rec.calls)
}

func TestHotkey(t *testing.T) {
	in, rec := newRecordedInput("linux")
	require.NoError(t, in.Hotkey(context.Background(), []string{"ctrl", "shift", "s"}))
	assert.Equal(t, []string{"xdotool key ctrl+Shift+s"}, rec.calls)

	mac, macRec := newRecordedInput("darwin")
	require.NoError(t, mac.Hotkey(context.Background(), []string{"cmd", "s"}))
	assert.Equal(t, []string{"cliclick kp:cmd,s"}, macRec.calls)
}

func TestHotkeyEmpty(t *testing.T) {
	in, rec := newRecordedInput("linux")
	assert.Error(t, in.Hotkey(context.Background(), nil))
	assert.Empty(t, rec.calls)
}

func TestMapKey(t *testing.T) {
	tests := []struct {
		key, goos, want string
	}{
		{"cmd", "linux", "super"},
		{"Command", "linux", "super"},
		{"cmd", "darwin", "cmd"},
		{"ctrl", "linux", "ctrl"},
		{"page_up", "linux", "Page_Up"},
		{"page_down", "darwin", "page-down"},
		{"enter", "linux", "Return"},
		{"enter", "darwin", "return"},
		{"esc", "linux", "Escape"},
		{"tab", "linux", "Tab"},
		{"space", "linux", "space"},
		{"a", "linux", "a"},
		{"home", "linux", "Home"},
		{"f5", "linux", "F5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapKey(tt.key, tt.goos), "mapKey(%q, %q)", tt.key, tt.goos)
	}
}
