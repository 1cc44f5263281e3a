package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"deskmate/internal/domain"
)

var (
	styleUser    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleConfirm = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleBash    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// chatModelDeps are dependencies injected into the chat model.
type chatModelDeps struct {
	OnSubmit  func(ctx context.Context, query string) error
	OnConfirm func(confirmed bool) bool
	Logger    *slog.Logger
}

// chatModel is the root Bubble Tea model for the chat window.
type chatModel struct {
	deps chatModelDeps

	view    viewport.Model
	input   textinput.Model
	spinner spinner.Model
	md      *glamour.TermRenderer

	lines      []string
	width      int
	height     int
	waiting    bool // true while a query cycle is in flight
	confirming bool // true while a y/n decision is pending
	loading    bool // spinner row visible
	quitting   bool
}

func newChatModel(deps chatModelDeps) chatModel {
	in := textinput.New()
	in.Placeholder = "Ask anything, or /help"
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	md, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		deps:    deps,
		view:    viewport.New(80, 20),
		input:   in,
		spinner: sp,
		md:      md,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.Width = msg.Width
		m.view.Height = msg.Height - 3
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		return m.handleEvent(msg.Event)

	case clearMsg:
		m.lines = nil
		m.loading = false
		m.confirming = false
		m.refresh()
		return m, nil

	case focusMsg:
		m.input.Focus()
		return m, nil

	case showChatMsg:
		// The terminal surface is always visible; nothing to raise.
		return m, nil

	case submitDoneMsg:
		m.waiting = false
		m.loading = false
		if msg.Err != nil {
			m.deps.Logger.Debug("query finished with error", "error", msg.Err)
		}
		m.input.Focus()
		m.refresh()
		return m, nil

	case quitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "y", "Y":
		if m.confirming {
			return m.resolveConfirmation(true)
		}

	case "n", "N":
		if m.confirming {
			return m.resolveConfirmation(false)
		}

	case "enter":
		if m.confirming || m.waiting {
			return m, nil
		}
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Reset()
		m.lines = append(m.lines, styleUser.Render("you ")+query)
		m.waiting = true
		m.refresh()
		return m, m.submit(query)
	}

	if m.confirming {
		// Only y/n are meaningful while a decision is pending.
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit(query string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{Err: m.deps.OnSubmit(context.Background(), query)}
	}
}

func (m chatModel) resolveConfirmation(confirmed bool) (tea.Model, tea.Cmd) {
	m.confirming = false
	if !m.deps.OnConfirm(confirmed) {
		m.deps.Logger.Debug("confirmation keypress with nothing pending")
	}
	m.refresh()
	return m, nil
}

func (m chatModel) handleEvent(event domain.UIEvent) (tea.Model, tea.Cmd) {
	switch event.Type {
	case domain.UIText:
		m.loading = false
		m.lines = append(m.lines, m.renderMarkdown(event.Content))

	case domain.UIBash:
		m.loading = false
		m.lines = append(m.lines, styleBash.Render("$ "+event.Content))
		if res, ok := event.Result.(domain.ExecResult); ok {
			m.lines = append(m.lines, m.renderExecResult(res))
		}

	case domain.UIImage:
		m.lines = append(m.lines, styleDim.Render("[screenshot]"))

	case domain.UIConfirmation:
		m.loading = false
		m.confirming = true
		m.lines = append(m.lines, styleConfirm.Render(event.Content+" [y/n]"))

	case domain.UIError:
		m.loading = false
		m.lines = append(m.lines, styleError.Render(event.Content))

	case domain.UILoading:
		m.loading = true
	}

	m.refresh()
	return m, nil
}

func (m *chatModel) renderMarkdown(content string) string {
	if m.md == nil {
		return content
	}
	out, err := m.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func (m *chatModel) renderExecResult(res domain.ExecResult) string {
	status := "ok"
	if res.TimedOut {
		status = "still running"
	} else if !res.Success {
		status = "failed"
	}
	out := strings.TrimRight(res.Output, "\n")
	if out == "" {
		return styleDim.Render(fmt.Sprintf("(%s, %dms)", status, res.ExecutionTimeMS))
	}
	return out + "\n" + styleDim.Render(fmt.Sprintf("(%s, %dms)", status, res.ExecutionTimeMS))
}

func (m *chatModel) refresh() {
	m.view.SetContent(strings.Join(m.lines, "\n"))
	m.view.GotoBottom()
}

func (m chatModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	if m.width == 0 {
		return "  starting..."
	}

	status := ""
	if m.loading {
		status = m.spinner.View() + " thinking..."
	}
	if m.confirming {
		status = styleConfirm.Render("awaiting decision: y to approve, n to decline")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.view.View(),
		status,
		"> "+m.input.View(),
	)
}
