package domain

// UIEventType classifies events pushed to the chat surface.
type UIEventType string

const (
	UIText         UIEventType = "text"
	UIImage        UIEventType = "image"
	UIBash         UIEventType = "bash"
	UIConfirmation UIEventType = "confirmation"
	UIError        UIEventType = "error"
	UILoading      UIEventType = "loading"
)

// UIEvent is the outbound-only projection consumed by the Event Sink.
// The core never reads events back; they flow strictly downstream.
type UIEvent struct {
	ID      string      `json:"id"`
	Type    UIEventType `json:"type"`
	Content string      `json:"content,omitempty"`
	Result  any         `json:"result,omitempty"`
}

// EventPusher delivers one UI event downstream.
type EventPusher func(UIEvent)

// EventSink is the UI layer as seen by the core. Implementations render
// events; the core only requires that pushed events become visible.
type EventSink interface {
	// Push delivers an event for rendering.
	Push(event UIEvent)
	// ShowChat makes the chat surface visible. Called before every Push
	// during a query cycle so the user always sees agent progress.
	ShowChat()
	// ClearConversation resets the rendered conversation state.
	ClearConversation()
	// FocusInput returns keyboard focus to the query input.
	FocusInput()
}
