package tui

import "deskmate/internal/domain"

// eventMsg carries one core UI event into the Bubble Tea update loop.
type eventMsg struct {
	Event domain.UIEvent
}

// clearMsg resets the rendered conversation.
type clearMsg struct{}

// focusMsg returns keyboard focus to the input.
type focusMsg struct{}

// showChatMsg makes the chat surface visible.
type showChatMsg struct{}

// submitDoneMsg signals that a submitted query finished processing.
type submitDoneMsg struct {
	Err error
}

// quitMsg asks the program to exit.
type quitMsg struct{}
