package domain

// ToolName identifies one local automation action the remote peer may request.
type ToolName string

const (
	ToolBash              ToolName = "bash"
	ToolTerminalInterrupt ToolName = "terminal_interrupt"
	ToolTerminalNext      ToolName = "terminal_next"
	ToolTerminalInput     ToolName = "terminal_send_interactive_input"
	ToolScreenshot        ToolName = "screenshot"
	ToolLeftClick         ToolName = "left_click"
	ToolRightClick        ToolName = "right_click"
	ToolDoubleClick       ToolName = "double_click"
	ToolDrag              ToolName = "drag"
	ToolScroll            ToolName = "scroll"
	ToolType              ToolName = "type"
	ToolHotkey            ToolName = "keyboard_hotkey"
	ToolPageUp            ToolName = "page_up"
	ToolPageDown          ToolName = "page_down"
)

// AllTools lists every tool the desktop client implements.
var AllTools = []ToolName{
	ToolBash, ToolTerminalInterrupt, ToolTerminalNext, ToolTerminalInput,
	ToolScreenshot, ToolLeftClick, ToolRightClick, ToolDoubleClick,
	ToolDrag, ToolScroll, ToolType, ToolHotkey, ToolPageUp, ToolPageDown,
}

// SideEffecting reports whether the tool mutates machine state and therefore
// requires human confirmation before execution. Read-only tools (screenshot,
// pending-output reads, interactive input forwarding) run immediately.
func (n ToolName) SideEffecting() bool {
	switch n {
	case ToolBash, ToolTerminalInterrupt,
		ToolLeftClick, ToolRightClick, ToolDoubleClick,
		ToolDrag, ToolScroll, ToolType, ToolHotkey,
		ToolPageUp, ToolPageDown:
		return true
	}
	return false
}

// Known reports whether n is in the closed tool set.
func (n ToolName) Known() bool {
	for _, t := range AllTools {
		if t == n {
			return true
		}
	}
	return false
}

// Parameter shapes per tool. Coordinates are in the normalized space of the
// screenshot shown to the remote peer; scaling to physical pixels happens in
// the capability layer, never here.

type BashParams struct {
	Command string `json:"command"`
}

type ClickParams struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type DragParams struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type ScrollParams struct {
	Pixels int `json:"pixels"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

type TypeParams struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Text string `json:"text"`
}

type HotkeyParams struct {
	Keys []string `json:"keys"`
}

type InteractiveInputParams struct {
	Input string `json:"input"`
}
