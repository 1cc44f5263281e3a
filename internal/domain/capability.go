package domain

import (
	"context"
	"time"
)

// ExecMeta is the metadata half of a shell execution, captured separately
// from the text output the command produced.
type ExecMeta struct {
	Success  bool          `json:"success"`
	Command  string        `json:"command"`
	Duration time.Duration `json:"-"`
	TimedOut bool          `json:"timed_out"`
}

// ExecResult merges execution metadata with the captured output.
type ExecResult struct {
	Success         bool   `json:"success"`
	Command         string `json:"command"`
	Output          string `json:"output"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	TimedOut        bool   `json:"timed_out"`
}

// MergeExecResult combines metadata and output into one result object.
func MergeExecResult(meta ExecMeta, output string) ExecResult {
	return ExecResult{
		Success:         meta.Success,
		Command:         meta.Command,
		Output:          output,
		ExecutionTimeMS: meta.Duration.Milliseconds(),
		TimedOut:        meta.TimedOut,
	}
}

// Terminal is the pseudo-terminal capability. PTY management is internal to
// implementations; the core only executes, interrupts and reads output.
type Terminal interface {
	// Execute runs command and returns its metadata. Text output accumulates
	// in the pending buffer and is read via PendingOutput.
	Execute(ctx context.Context, command string) (ExecMeta, error)
	// Interrupt sends Ctrl-C to the foreground process.
	Interrupt(ctx context.Context) error
	// SendInput forwards one line of interactive input (prompts, passwords).
	SendInput(ctx context.Context, input string) error
	// PendingOutput returns buffered output not yet consumed.
	PendingOutput() string
	// ClearOutput discards buffered output. Called before each Execute so
	// stale output is never attributed to a new command.
	ClearOutput()
}

// Screenshot is one captured frame, already resized/encoded by the capability.
type Screenshot struct {
	Base64    string `json:"base64"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Annotation marks one labeled coordinate on a captured frame.
type Annotation struct {
	Label string `json:"label"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// ScreenCapturer is the screen-capture capability.
type ScreenCapturer interface {
	Capture(ctx context.Context) (*Screenshot, error)
	// CaptureAnnotated captures a frame with the given markers drawn on it,
	// for showing the user where a proposed action will land.
	CaptureAnnotated(ctx context.Context, marks []Annotation) (*Screenshot, error)
}

// PointerKeyboard is the mouse/keyboard automation capability. Coordinates
// arrive in normalized screenshot space; implementations scale to physical
// screen coordinates.
type PointerKeyboard interface {
	LeftClick(ctx context.Context, x, y int) error
	RightClick(ctx context.Context, x, y int) error
	DoubleClick(ctx context.Context, x, y int) error
	Drag(ctx context.Context, x1, y1, x2, y2 int) error
	Scroll(ctx context.Context, pixels, x, y int) error
	TypeText(ctx context.Context, x, y int, text string) error
	Hotkey(ctx context.Context, keys []string) error
}
