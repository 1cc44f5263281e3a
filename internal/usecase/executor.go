package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"deskmate/internal/domain"
	"deskmate/internal/infra/tracer"
)

// settleDelay is how long to wait after a side-effecting action before any
// follow-up capture, so a transitional UI state is not recorded.
const settleDelay = 100 * time.Millisecond

// terminalNextLimit caps how much pending output is sent upstream per read.
const terminalNextLimit = 1000

// ChannelSender is the outbound half of the channel as the executor sees it.
type ChannelSender interface {
	Send(msg domain.ChannelMessage) error
}

// ToolExecutorDeps holds injected capabilities for the executor.
type ToolExecutorDeps struct {
	Terminal domain.Terminal
	Screen   domain.ScreenCapturer
	Input    domain.PointerKeyboard
	Gate     *Gate
	Limiter  *rate.Limiter // optional, nil = unpaced
	Logger   *slog.Logger
}

// ToolExecutor maps one inbound tool request to a confirmation prompt, a
// human decision, at most one capability call, and exactly one
// tool_result/tool_declined reply. Requests are processed to completion one
// at a time, so only one confirmation is ever outstanding.
type ToolExecutor struct {
	deps    ToolExecutorDeps
	mu      sync.Mutex
	settle  time.Duration
	schemas map[domain.ToolName]*jsonschema.Schema
}

// NewToolExecutor creates an executor and compiles the per-tool parameter
// schemas.
func NewToolExecutor(deps ToolExecutorDeps) (*ToolExecutor, error) {
	schemas, err := compileParamSchemas()
	if err != nil {
		return nil, err
	}
	return &ToolExecutor{deps: deps, settle: settleDelay, schemas: schemas}, nil
}

// Execute handles one tool request end to end. It blocks until the request
// is answered upstream; callers run it off the channel read loop.
func (e *ToolExecutor) Execute(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "executor.tool_request",
		trace.WithAttributes(tracer.StringAttr("tool.name", string(req.Tool))),
	)
	defer span.End()

	if !req.Tool.Known() {
		e.deps.Logger.Warn("unknown tool requested", "tool", req.Tool)
		return e.sendResult(ch, req.ToolUseID,
			fmt.Sprintf("Tool %q is not implemented in this desktop client", req.Tool))
	}

	if err := e.validateParams(req); err != nil {
		e.deps.Logger.Warn("tool params rejected", "tool", req.Tool, "error", err)
		return e.sendResult(ch, req.ToolUseID,
			fmt.Sprintf("Invalid parameters for tool %q: %v", req.Tool, err))
	}

	var err error
	switch req.Tool {
	case domain.ToolBash:
		err = e.execBash(ctx, req, push, ch)
	case domain.ToolTerminalInterrupt:
		err = e.execInterrupt(ctx, req, push, ch)
	case domain.ToolTerminalNext:
		err = e.execTerminalNext(req, push, ch)
	case domain.ToolTerminalInput:
		err = e.execInteractiveInput(ctx, req, ch)
	case domain.ToolScreenshot:
		err = e.execScreenshot(ctx, req, push, ch)
	case domain.ToolLeftClick:
		err = e.execClick(ctx, req, push, ch, "Left Click", "Left click here?", e.deps.Input.LeftClick)
	case domain.ToolRightClick:
		err = e.execClick(ctx, req, push, ch, "Right Click", "Right click here?", e.deps.Input.RightClick)
	case domain.ToolDoubleClick:
		err = e.execClick(ctx, req, push, ch, "Double Click", "Double click here?", e.deps.Input.DoubleClick)
	case domain.ToolDrag:
		err = e.execDrag(ctx, req, push, ch)
	case domain.ToolScroll:
		err = e.execScroll(ctx, req, push, ch)
	case domain.ToolType:
		err = e.execType(ctx, req, push, ch)
	case domain.ToolHotkey:
		err = e.execHotkey(ctx, req, push, ch)
	case domain.ToolPageUp:
		err = e.execPageKey(ctx, req, push, ch, "page_up", "Press Page Up?")
	case domain.ToolPageDown:
		err = e.execPageKey(ctx, req, push, ch, "page_down", "Press Page Down?")
	}

	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

// confirm shows prompt and blocks on the gate. On rejection it sends the
// tool_declined reply itself; the side effect must never run in that case.
func (e *ToolExecutor) confirm(ctx context.Context, req domain.ToolRequest, prompt string, push domain.EventPusher, ch ChannelSender) (bool, error) {
	push(domain.UIEvent{Type: domain.UIConfirmation, Content: prompt})

	ok, err := e.deps.Gate.Await(ctx, req.ToolUseID)
	if err != nil {
		return false, err
	}
	if !ok {
		push(domain.UIEvent{Type: domain.UIText, Content: "Action cancelled."})
		return false, ch.Send(domain.ToolDeclinedMessage(req.ToolUseID))
	}
	return true, nil
}

// showAnnotated pushes an annotated frame marking where the proposed action
// lands. Captures are best-effort: a failed capture degrades to a text-only
// confirmation rather than blocking the handshake.
func (e *ToolExecutor) showAnnotated(ctx context.Context, marks []domain.Annotation, push domain.EventPusher) {
	shot, err := e.deps.Screen.CaptureAnnotated(ctx, marks)
	if err != nil {
		e.deps.Logger.Warn("annotated capture failed", "error", err)
		return
	}
	push(domain.UIEvent{
		Type:    domain.UIImage,
		Content: fmt.Sprintf("data:%s;base64,%s", shot.MediaType, shot.Base64),
	})
}

// act paces and runs one side-effecting capability call, then waits the
// settling delay so a follow-up capture never sees a transitional state.
func (e *ToolExecutor) act(ctx context.Context, fn func(context.Context) error) error {
	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := fn(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(e.settle):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (e *ToolExecutor) sendResult(ch ChannelSender, toolUseID string, result any) error {
	return ch.Send(domain.ToolResultMessage(toolUseID, result))
}

// capFailure shapes a capability-layer failure as a result object so the
// cycle continues instead of crashing.
func capFailure(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func (e *ToolExecutor) execBash(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	var p domain.BashParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	push(domain.UIEvent{Type: domain.UIBash, Content: p.Command})

	ok, err := e.confirm(ctx, req, "Run this command?", push, ch)
	if err != nil || !ok {
		return err
	}

	// Drop unread output from a prior command so it is never attributed to
	// this one.
	e.deps.Terminal.ClearOutput()

	meta, execErr := e.deps.Terminal.Execute(ctx, p.Command)
	if execErr != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(execErr))
	}

	result := domain.MergeExecResult(meta, e.deps.Terminal.PendingOutput())
	push(domain.UIEvent{Type: domain.UIBash, Content: p.Command, Result: result})
	return e.sendResult(ch, req.ToolUseID, result)
}

func (e *ToolExecutor) execInterrupt(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	push(domain.UIEvent{Type: domain.UIBash, Content: "ctrl+c"})

	ok, err := e.confirm(ctx, req, "Interrupt the running command?", push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.deps.Terminal.Interrupt(ctx); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, "Sent Ctrl+C")
}

func (e *ToolExecutor) execTerminalNext(req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	output := e.deps.Terminal.PendingOutput()
	if strings.TrimSpace(output) == "" {
		push(domain.UIEvent{Type: domain.UIText, Content: "(no new output)"})
		return e.sendResult(ch, req.ToolUseID, "No new output")
	}

	push(domain.UIEvent{
		Type:    domain.UIText,
		Content: "```bash\n" + strings.TrimRight(output, "\n") + "\n```",
	})
	if len(output) > terminalNextLimit {
		output = output[:terminalNextLimit]
	}
	return e.sendResult(ch, req.ToolUseID, output)
}

func (e *ToolExecutor) execInteractiveInput(ctx context.Context, req domain.ToolRequest, ch ChannelSender) error {
	var p domain.InteractiveInputParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	if err := e.deps.Terminal.SendInput(ctx, p.Input); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, "Sent input: "+p.Input)
}

func (e *ToolExecutor) execScreenshot(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	push(domain.UIEvent{Type: domain.UIText, Content: "\n\n*Taking a look...*\n\n"})

	shot, err := e.deps.Screen.Capture(ctx)
	if err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.ImageBlock(shot.MediaType, shot.Base64),
	})
}

func (e *ToolExecutor) execClick(
	ctx context.Context,
	req domain.ToolRequest,
	push domain.EventPusher,
	ch ChannelSender,
	label, prompt string,
	click func(ctx context.Context, x, y int) error,
) error {
	var p domain.ClickParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	e.showAnnotated(ctx, []domain.Annotation{{Label: label, X: p.X, Y: p.Y}}, push)

	ok, err := e.confirm(ctx, req, prompt, push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error { return click(ctx, p.X, p.Y) }); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock(fmt.Sprintf("%s at (%d, %d)", label, p.X, p.Y)),
	})
}

func (e *ToolExecutor) execDrag(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	var p domain.DragParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	e.showAnnotated(ctx, []domain.Annotation{
		{Label: "Drag", X: p.X1, Y: p.Y1},
		{Label: "Drop", X: p.X2, Y: p.Y2},
	}, push)

	ok, err := e.confirm(ctx, req, "Drag and drop as shown?", push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error {
		return e.deps.Input.Drag(ctx, p.X1, p.Y1, p.X2, p.Y2)
	}); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock(fmt.Sprintf("Dragged from (%d, %d) to (%d, %d)", p.X1, p.Y1, p.X2, p.Y2)),
	})
}

func (e *ToolExecutor) execScroll(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	var p domain.ScrollParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	e.showAnnotated(ctx, []domain.Annotation{{Label: "Scroll", X: p.X, Y: p.Y}}, push)

	ok, err := e.confirm(ctx, req, fmt.Sprintf("Scroll %d pixels here?", p.Pixels), push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error {
		return e.deps.Input.Scroll(ctx, p.Pixels, p.X, p.Y)
	}); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock(fmt.Sprintf("Scrolled %d pixels at (%d, %d)", p.Pixels, p.X, p.Y)),
	})
}

func (e *ToolExecutor) execType(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	var p domain.TypeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	e.showAnnotated(ctx, []domain.Annotation{{Label: "Type", X: p.X, Y: p.Y}}, push)
	push(domain.UIEvent{Type: domain.UIText, Content: fmt.Sprintf("> *%q*", p.Text)})

	ok, err := e.confirm(ctx, req, "Type this here?", push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error {
		return e.deps.Input.TypeText(ctx, p.X, p.Y, p.Text)
	}); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock(fmt.Sprintf("Typed %q at (%d, %d)", p.Text, p.X, p.Y)),
	})
}

func (e *ToolExecutor) execHotkey(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender) error {
	var p domain.HotkeyParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}

	combo := strings.Join(p.Keys, " + ")
	ok, err := e.confirm(ctx, req, "Execute keyboard shortcut: "+combo+"?", push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error {
		return e.deps.Input.Hotkey(ctx, p.Keys)
	}); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock("Executed hotkey: " + combo),
	})
}

func (e *ToolExecutor) execPageKey(ctx context.Context, req domain.ToolRequest, push domain.EventPusher, ch ChannelSender, key, prompt string) error {
	ok, err := e.confirm(ctx, req, prompt, push, ch)
	if err != nil || !ok {
		return err
	}

	if err := e.act(ctx, func(ctx context.Context) error {
		return e.deps.Input.Hotkey(ctx, []string{key})
	}); err != nil {
		return e.sendResult(ch, req.ToolUseID, capFailure(err))
	}
	return e.sendResult(ch, req.ToolUseID, []domain.ResultBlock{
		domain.TextBlock("Pressed " + key),
	})
}

// validateParams checks request params against the tool's JSON Schema.
// Tools without parameters skip validation.
func (e *ToolExecutor) validateParams(req domain.ToolRequest) error {
	schema, ok := e.schemas[req.Tool]
	if !ok {
		return nil
	}

	raw := req.Params
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return schema.Validate(v)
}

// paramSchemas holds the wire-contract schema per parameterized tool.
var paramSchemas = map[domain.ToolName]string{
	domain.ToolBash: `{
		"type": "object",
		"properties": {"command": {"type": "string"}},
		"required": ["command"]
	}`,
	domain.ToolTerminalInput: `{
		"type": "object",
		"properties": {"input": {"type": "string"}},
		"required": ["input"]
	}`,
	domain.ToolLeftClick:   clickSchema,
	domain.ToolRightClick:  clickSchema,
	domain.ToolDoubleClick: clickSchema,
	domain.ToolDrag: `{
		"type": "object",
		"properties": {
			"x1": {"type": "number"}, "y1": {"type": "number"},
			"x2": {"type": "number"}, "y2": {"type": "number"}
		},
		"required": ["x1", "y1", "x2", "y2"]
	}`,
	domain.ToolScroll: `{
		"type": "object",
		"properties": {
			"pixels": {"type": "number"},
			"x": {"type": "number"}, "y": {"type": "number"}
		},
		"required": ["pixels", "x", "y"]
	}`,
	domain.ToolType: `{
		"type": "object",
		"properties": {
			"x": {"type": "number"}, "y": {"type": "number"},
			"text": {"type": "string"}
		},
		"required": ["x", "y", "text"]
	}`,
	domain.ToolHotkey: `{
		"type": "object",
		"properties": {"keys": {"type": "array", "items": {"type": "string"}, "minItems": 1}},
		"required": ["keys"]
	}`,
}

const clickSchema = `{
	"type": "object",
	"properties": {"x": {"type": "number"}, "y": {"type": "number"}},
	"required": ["x", "y"]
}`

func compileParamSchemas() (map[domain.ToolName]*jsonschema.Schema, error) {
	compiled := make(map[domain.ToolName]*jsonschema.Schema, len(paramSchemas))
	for tool, raw := range paramSchemas {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader([]byte(raw))); err != nil {
			return nil, fmt.Errorf("add schema resource for %q: %w", tool, err)
		}
		schema, err := compiler.Compile("schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", tool, err)
		}
		compiled[tool] = schema
	}
	return compiled, nil
}
