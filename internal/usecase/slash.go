package usecase

import (
	"context"
	"fmt"
	"strings"

	"deskmate/internal/domain"
)

// CommandResult is the outcome surface shared by slash commands and queries.
type CommandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func okResult() CommandResult { return CommandResult{Success: true} }

func failResult(err error) CommandResult {
	return CommandResult{Success: false, Error: err.Error()}
}

// SlashHandler intercepts local meta-commands. The remote peer is never
// contacted for these.
type SlashHandler struct {
	auth     *AuthFlow
	settings domain.SettingsStore
	// onClear resets conversation display state on the Event Sink.
	onClear func()
}

// NewSlashHandler creates a handler over the given collaborators.
func NewSlashHandler(auth *AuthFlow, settings domain.SettingsStore, onClear func()) *SlashHandler {
	return &SlashHandler{auth: auth, settings: settings, onClear: onClear}
}

// Commands lists the recognized meta-commands.
func (h *SlashHandler) Commands() []string {
	return []string{"/help", "/logout", "/auth-status", "/settings", "/clear"}
}

// Is reports whether query is a recognized slash command.
func (h *SlashHandler) Is(query string) bool {
	if !strings.HasPrefix(query, "/") {
		return false
	}
	head := strings.Fields(query)[0]
	for _, c := range h.Commands() {
		if c == head {
			return true
		}
	}
	return false
}

// Handle executes one slash command and pushes its output to the UI.
func (h *SlashHandler) Handle(ctx context.Context, query string, push domain.EventPusher) CommandResult {
	switch strings.TrimSpace(query) {
	case "/help":
		return h.handleHelp(push)
	case "/logout":
		return h.handleLogout(ctx, push)
	case "/auth-status":
		return h.handleAuthStatus(push)
	case "/settings":
		return h.handleSettings(push)
	case "/clear":
		return h.handleClear(push)
	default:
		err := fmt.Errorf("unknown command: %s", query)
		push(domain.UIEvent{Type: domain.UIError, Content: err.Error()})
		return failResult(err)
	}
}

func (h *SlashHandler) handleHelp(push domain.EventPusher) CommandResult {
	var lines []string

	if user := h.auth.User(); user != nil {
		lines = append(lines, "Hello, "+user.Email+"!")
	} else {
		lines = append(lines, "Hello there!")
	}

	lines = append(lines,
		"I'm a desktop assistant that can operate your computer. Tell me what you want done and I'll do it for you.",
		"Commands:",
		"`/help` – show this message",
		"`/clear` – clear chat history",
		"`/auth-status` – show sign-in state",
		"`/settings` – view app settings",
	)
	if h.auth.Authenticated() {
		lines = append(lines, "`/logout` – sign out of your account")
	}

	push(domain.UIEvent{Type: domain.UIText, Content: strings.Join(lines, "\n\n")})
	return okResult()
}

func (h *SlashHandler) handleLogout(ctx context.Context, push domain.EventPusher) CommandResult {
	if err := h.auth.Logout(ctx); err != nil {
		push(domain.UIEvent{Type: domain.UIError, Content: "Logout failed: " + err.Error()})
		return failResult(err)
	}
	push(domain.UIEvent{Type: domain.UIText, Content: "Logged out."})
	return okResult()
}

func (h *SlashHandler) handleAuthStatus(push domain.EventPusher) CommandResult {
	msg := "You are not authenticated."
	if h.auth.Authenticated() {
		msg = "You are authenticated!"
	}
	push(domain.UIEvent{Type: domain.UIText, Content: msg})
	return okResult()
}

func (h *SlashHandler) handleSettings(push domain.EventPusher) CommandResult {
	settings, err := h.settings.LoadSettings()
	if err != nil {
		push(domain.UIEvent{Type: domain.UIError, Content: "Settings not available: " + err.Error()})
		return failResult(err)
	}

	lines := []string{
		"**Current Settings:**",
		"",
		"**Window:**",
		fmt.Sprintf("- Size: %dx%d", settings.Window.Width, settings.Window.Height),
		fmt.Sprintf("- Always on top: %v", settings.Window.AlwaysOnTop),
		fmt.Sprintf("- Auto-hide on blur: %v", settings.Window.AutoHide),
		fmt.Sprintf("- Resizable: %v", settings.Window.Resizable),
		"",
		"**Shortcuts:**",
		"- Toggle chat: " + settings.Shortcuts.ToggleChat,
		"",
		"**Other:**",
		"- Theme: " + settings.Theme,
		fmt.Sprintf("- Screenshot max height: %dpx", settings.Screenshot.MaxHeight),
		"",
		fmt.Sprintf("Settings file: `%s`", h.settings.SettingsPath()),
	}

	push(domain.UIEvent{Type: domain.UIText, Content: strings.Join(lines, "\n")})
	return okResult()
}

func (h *SlashHandler) handleClear(push domain.EventPusher) CommandResult {
	if h.onClear != nil {
		h.onClear()
	}
	push(domain.UIEvent{Type: domain.UIText, Content: "Chat cleared."})
	return okResult()
}
