// Package tui renders the chat surface in the terminal and bridges user
// actions back into the query orchestrator.
package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"deskmate/internal/domain"
)

// App implements domain.EventSink on top of a Bubble Tea program. Pushes
// arrive from orchestrator goroutines; tea.Program.Send is the thread-safe
// bridge into the update loop.
type App struct {
	logger  *slog.Logger
	program *tea.Program
}

func NewApp(logger *slog.Logger) *App {
	return &App{logger: logger}
}

// Start creates the program and blocks until the user quits.
func (a *App) Start(ctx context.Context, onSubmit func(ctx context.Context, query string) error, onConfirm func(confirmed bool) bool) error {
	model := newChatModel(chatModelDeps{
		OnSubmit:  onSubmit,
		OnConfirm: onConfirm,
		Logger:    a.logger,
	})

	a.program = tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		if a.program != nil {
			a.program.Send(quitMsg{})
		}
	}()

	_, err := a.program.Run()
	return err
}

// Push implements domain.EventSink.
func (a *App) Push(event domain.UIEvent) {
	if a.program != nil {
		a.program.Send(eventMsg{Event: event})
	}
}

// ShowChat implements domain.EventSink.
func (a *App) ShowChat() {
	if a.program != nil {
		a.program.Send(showChatMsg{})
	}
}

// ClearConversation implements domain.EventSink.
func (a *App) ClearConversation() {
	if a.program != nil {
		a.program.Send(clearMsg{})
	}
}

// FocusInput implements domain.EventSink.
func (a *App) FocusInput() {
	if a.program != nil {
		a.program.Send(focusMsg{})
	}
}

var _ domain.EventSink = (*App)(nil)
