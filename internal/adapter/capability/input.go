package capability

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"deskmate/internal/domain"
)

// ExecInput drives the pointer and keyboard through xdotool on Linux and
// cliclick on macOS.
type ExecInput struct {
	logger *slog.Logger
	goos   string
	runCmd func(ctx context.Context, name string, args ...string) error // injectable for tests
}

func NewExecInput(logger *slog.Logger) *ExecInput {
	return &ExecInput{
		logger: logger,
		goos:   runtime.GOOS,
		runCmd: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// LeftClick implements domain.PointerKeyboard.
func (i *ExecInput) LeftClick(ctx context.Context, x, y int) error {
	return i.click(ctx, x, y, "1", "c")
}

// RightClick implements domain.PointerKeyboard.
func (i *ExecInput) RightClick(ctx context.Context, x, y int) error {
	return i.click(ctx, x, y, "3", "rc")
}

// DoubleClick implements domain.PointerKeyboard.
func (i *ExecInput) DoubleClick(ctx context.Context, x, y int) error {
	if i.goos == "darwin" {
		return i.runCmd(ctx, "cliclick", fmt.Sprintf("dc:%d,%d", x, y))
	}
	if err := i.runCmd(ctx, "xdotool", "mousemove", itoa(x), itoa(y)); err != nil {
		return err
	}
	return i.runCmd(ctx, "xdotool", "click", "--repeat", "2", "1")
}

// Drag implements domain.PointerKeyboard.
func (i *ExecInput) Drag(ctx context.Context, x1, y1, x2, y2 int) error {
	if i.goos == "darwin" {
		return i.runCmd(ctx, "cliclick",
			fmt.Sprintf("dd:%d,%d", x1, y1),
			fmt.Sprintf("du:%d,%d", x2, y2),
		)
	}
	steps := [][]string{
		{"mousemove", itoa(x1), itoa(y1)},
		{"mousedown", "1"},
		{"mousemove", itoa(x2), itoa(y2)},
		{"mouseup", "1"},
	}
	for _, step := range steps {
		if err := i.runCmd(ctx, "xdotool", step...); err != nil {
			return err
		}
	}
	return nil
}

// Scroll implements domain.PointerKeyboard. Positive pixels scroll down.
func (i *ExecInput) Scroll(ctx context.Context, pixels, x, y int) error {
	if i.goos == "darwin" {
		// cliclick has no scroll; fall back to AppleScript wheel events.
		ticks := pixels / 10
		script := fmt.Sprintf("tell application \"System Events\" to scroll area 1 of window 1 by %d", ticks)
		return i.runCmd(ctx, "osascript", "-e", script)
	}

	if err := i.runCmd(ctx, "xdotool", "mousemove", itoa(x), itoa(y)); err != nil {
		return err
	}
	// Button 5 scrolls down, button 4 up. One tick per ~10 pixels.
	button, ticks := "5", pixels/10
	if ticks < 0 {
		button, ticks = "4", -ticks
	}
	if ticks == 0 {
		ticks = 1
	}
	return i.runCmd(ctx, "xdotool", "click", "--repeat", itoa(ticks), button)
}

// TypeText implements domain.PointerKeyboard. It clicks the target first so
// the text lands in the intended field.
func (i *ExecInput) TypeText(ctx context.Context, x, y int, text string) error {
	if err := i.LeftClick(ctx, x, y); err != nil {
		return err
	}
	if i.goos == "darwin" {
		return i.runCmd(ctx, "cliclick", "t:"+text)
	}
	return i.runCmd(ctx, "xdotool", "type", "--delay", "20", text)
}

// Hotkey implements domain.PointerKeyboard.
func (i *ExecInput) Hotkey(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return domain.NewDomainError("input.hotkey", domain.ErrInvalidInput, "empty key list")
	}
	mapped := make([]string, len(keys))
	for n, k := range keys {
		mapped[n] = mapKey(k, i.goos)
	}

	if i.goos == "darwin" {
		return i.runCmd(ctx, "cliclick", "kp:"+strings.Join(mapped, ","))
	}
	return i.runCmd(ctx, "xdotool", "key", strings.Join(mapped, "+"))
}

func (i *ExecInput) click(ctx context.Context, x, y int, xdoButton, cliPrefix string) error {
	if i.goos == "darwin" {
		return i.runCmd(ctx, "cliclick", fmt.Sprintf("%s:%d,%d", cliPrefix, x, y))
	}
	if err := i.runCmd(ctx, "xdotool", "mousemove", itoa(x), itoa(y)); err != nil {
		return err
	}
	return i.runCmd(ctx, "xdotool", "click", xdoButton)
}

// mapKey normalizes wire key names to the automation tool's vocabulary.
func mapKey(key, goos string) string {
	k := strings.ToLower(key)
	if goos == "darwin" {
		switch k {
		case "cmd", "command", "meta":
			return "cmd"
		case "ctrl", "control":
			return "ctrl"
		case "alt", "option":
			return "alt"
		case "page_up", "pageup":
			return "page-up"
		case "page_down", "pagedown":
			return "page-down"
		case "enter", "return":
			return "return"
		case "esc", "escape":
			return "esc"
		}
		return k
	}

	switch k {
	case "cmd", "command", "meta":
		return "super"
	case "ctrl", "control":
		return "ctrl"
	case "alt", "option":
		return "alt"
	case "page_up", "pageup":
		return "Page_Up"
	case "page_down", "pagedown":
		return "Page_Down"
	case "enter", "return":
		return "Return"
	case "esc", "escape":
		return "Escape"
	case "tab":
		return "Tab"
	case "space":
		return "space"
	}
	if len(k) == 1 {
		return k
	}
	// Multi-char keys are capitalized in X keysym names (Home, End, F5).
	return strings.ToUpper(k[:1]) + k[1:]
}

func itoa(n int) string { return strconv.Itoa(n) }

var _ domain.PointerKeyboard = (*ExecInput)(nil)
