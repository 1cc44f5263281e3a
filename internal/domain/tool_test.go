package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideEffecting(t *testing.T) {
	// Read-only tools run without confirmation.
	assert.False(t, ToolScreenshot.SideEffecting())
	assert.False(t, ToolTerminalNext.SideEffecting())
	assert.False(t, ToolTerminalInput.SideEffecting())

	assert.True(t, ToolBash.SideEffecting())
	assert.True(t, ToolLeftClick.SideEffecting())
	assert.True(t, ToolHotkey.SideEffecting())
	assert.True(t, ToolPageDown.SideEffecting())
}

func TestKnown(t *testing.T) {
	for _, tool := range AllTools {
		assert.True(t, tool.Known(), "tool %q should be known", tool)
	}
	assert.False(t, ToolName("browse_web").Known())
	assert.False(t, ToolName("").Known())
}
