// Package capability implements the local machine capabilities: shell
// execution, screen capture, and pointer/keyboard automation.
package capability

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"deskmate/internal/domain"
	"deskmate/internal/infra/config"
)

// pendingLimit bounds the output buffer so runaway commands cannot grow it
// without bound. The oldest output is dropped first.
const pendingLimit = 10000

// LocalShell runs commands through the configured shell. Output accumulates
// in a bounded buffer read via PendingOutput, so a command that outlives its
// wait window can still be drained incrementally.
type LocalShell struct {
	shell   string
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	buf   []byte
	cmd   *exec.Cmd // still-running command, nil when idle
	stdin io.WriteCloser
}

func NewLocalShell(cfg config.ShellConfig, logger *slog.Logger) *LocalShell {
	shell := cfg.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LocalShell{shell: shell, timeout: timeout, logger: logger}
}

// Execute implements domain.Terminal. It waits up to the configured timeout;
// a command still running after that is left alive so Interrupt and
// SendInput can reach it, and its later output lands in the pending buffer.
func (s *LocalShell) Execute(ctx context.Context, command string) (domain.ExecMeta, error) {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return domain.ExecMeta{}, domain.NewDomainError("shell.execute", domain.ErrInvalidInput, "a command is already running")
	}

	cmd := exec.Command(s.shell, "-c", command)
	// Own process group so Interrupt reaches the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.mu.Unlock()
		return domain.ExecMeta{}, err
	}
	cmd.Stdout = &boundedWriter{shell: s}
	cmd.Stderr = &boundedWriter{shell: s}

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return domain.ExecMeta{}, err
	}
	s.cmd = cmd
	s.stdin = stdin
	s.mu.Unlock()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
		done <- err
	}()

	meta := domain.ExecMeta{Command: command}
	select {
	case waitErr := <-done:
		meta.Duration = time.Since(start)
		meta.Success = waitErr == nil
	case <-time.After(s.timeout):
		meta.Duration = time.Since(start)
		meta.TimedOut = true
		s.logger.Info("command still running after wait window", "command", command)
	case <-ctx.Done():
		s.killCurrent()
		return domain.ExecMeta{}, ctx.Err()
	}
	return meta, nil
}

// Interrupt implements domain.Terminal.
func (s *LocalShell) Interrupt(_ context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	// Negative pid signals the process group.
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}

// SendInput implements domain.Terminal.
func (s *LocalShell) SendInput(_ context.Context, input string) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		return domain.NewDomainError("shell.input", domain.ErrInvalidInput, "no command waiting for input")
	}
	_, err := io.WriteString(stdin, input+"\n")
	return err
}

// PendingOutput implements domain.Terminal.
func (s *LocalShell) PendingOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// ClearOutput implements domain.Terminal.
func (s *LocalShell) ClearOutput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}

func (s *LocalShell) killCurrent() {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.stdin = nil
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

func (s *LocalShell) append(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, p...)
	if over := len(s.buf) - pendingLimit; over > 0 {
		s.buf = s.buf[over:]
	}
}

type boundedWriter struct {
	shell *LocalShell
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	w.shell.append(p)
	return len(p), nil
}

var _ domain.Terminal = (*LocalShell)(nil)
