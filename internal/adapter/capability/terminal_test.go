package capability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskmate/internal/infra/config"
	"deskmate/internal/infra/logger"
)

func newTestShell(timeout time.Duration) *LocalShell {
	return NewLocalShell(config.ShellConfig{CommandTimeout: timeout}, logger.Discard())
}

func waitForOutput(t *testing.T, s *LocalShell, substr string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if out := s.PendingOutput(); strings.Contains(out, substr) {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q, have %q", substr, s.PendingOutput())
	return ""
}

func TestExecuteCapturesOutput(t *testing.T) {
	s := newTestShell(5 * time.Second)

	meta, err := s.Execute(context.Background(), "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.True(t, meta.Success)
	assert.False(t, meta.TimedOut)
	assert.Equal(t, "echo hello; echo oops >&2", meta.Command)

	out := s.PendingOutput()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "oops")
}

func TestExecuteFailedCommand(t *testing.T) {
	s := newTestShell(5 * time.Second)

	meta, err := s.Execute(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.False(t, meta.Success)
	assert.False(t, meta.TimedOut)
}

func TestExecuteTimeoutLeavesCommandRunning(t *testing.T) {
	s := newTestShell(100 * time.Millisecond)

	meta, err := s.Execute(context.Background(), "sleep 0.5; echo late")
	require.NoError(t, err)
	assert.True(t, meta.TimedOut)
	assert.False(t, meta.Success)

	// The command keeps running and its output lands in the buffer.
	waitForOutput(t, s, "late")
}

func TestExecuteRejectsConcurrentCommand(t *testing.T) {
	s := newTestShell(100 * time.Millisecond)

	meta, err := s.Execute(context.Background(), "sleep 0.5")
	require.NoError(t, err)
	require.True(t, meta.TimedOut)

	_, err = s.Execute(context.Background(), "echo nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	// After the first command finishes the shell is free again.
	time.Sleep(600 * time.Millisecond)
	meta, err = s.Execute(context.Background(), "echo ok")
	require.NoError(t, err)
	assert.True(t, meta.Success)
}

func TestInterruptStopsCommand(t *testing.T) {
	s := newTestShell(100 * time.Millisecond)

	meta, err := s.Execute(context.Background(), "sleep 10")
	require.NoError(t, err)
	require.True(t, meta.TimedOut)

	require.NoError(t, s.Interrupt(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		idle := s.cmd == nil
		s.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("command survived the interrupt")
}

func TestInterruptWithNothingRunning(t *testing.T) {
	s := newTestShell(time.Second)
	assert.NoError(t, s.Interrupt(context.Background()))
}

func TestSendInput(t *testing.T) {
	s := newTestShell(100 * time.Millisecond)

	meta, err := s.Execute(context.Background(), "read line; echo got:$line")
	require.NoError(t, err)
	require.True(t, meta.TimedOut)

	require.NoError(t, s.SendInput(context.Background(), "ping"))
	waitForOutput(t, s, "got:ping")
}

func TestSendInputWithNothingRunning(t *testing.T) {
	s := newTestShell(time.Second)
	err := s.SendInput(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command waiting for input")
}

func TestClearOutput(t *testing.T) {
	s := newTestShell(5 * time.Second)

	_, err := s.Execute(context.Background(), "echo stale")
	require.NoError(t, err)
	require.NotEmpty(t, s.PendingOutput())

	s.ClearOutput()
	assert.Empty(t, s.PendingOutput())
}

func TestOutputBufferBounded(t *testing.T) {
	s := newTestShell(time.Second)

	s.append(bytes.Repeat([]byte("a"), pendingLimit))
	s.append([]byte("zzz"))

	out := s.PendingOutput()
	assert.Len(t, out, pendingLimit)
	assert.True(t, strings.HasSuffix(out, "zzz"))
}
