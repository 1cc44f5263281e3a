package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"deskmate/internal/domain"
	"deskmate/internal/infra/logger"
)

// fakeSink records pushed events.
type fakeSink struct {
	mu      sync.Mutex
	events  []domain.UIEvent
	shows   int
	clears  int
	focuses int
}

func (s *fakeSink) Push(event domain.UIEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) ShowChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows++
}

func (s *fakeSink) ClearConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSink) FocusInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focuses++
}

func (s *fakeSink) byType(t domain.UIEventType) []domain.UIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UIEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSink) all() []domain.UIEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UIEvent(nil), s.events...)
}

// fakeSender records outbound channel messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []domain.ChannelMessage
	err  error
}

func (s *fakeSender) Send(msg domain.ChannelMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []domain.ChannelMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChannelMessage(nil), s.sent...)
}

// fakeChannel implements Channel for orchestrator tests. Registered
// handlers can be fired manually to simulate inbound traffic.
type fakeChannel struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	sent         []domain.ChannelMessage
	sendErr      error
	handlers     map[domain.MessageType]map[int]func(domain.ChannelMessage)
	dropHandlers map[int]func()
	nextID       int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers:     make(map[domain.MessageType]map[int]func(domain.ChannelMessage)),
		dropHandlers: make(map[int]func()),
	}
}

func (c *fakeChannel) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Send(msg domain.ChannelMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) OnMessage(msgType domain.MessageType, handler func(domain.ChannelMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[msgType] == nil {
		c.handlers[msgType] = make(map[int]func(domain.ChannelMessage))
	}
	id := c.nextID
	c.nextID++
	c.handlers[msgType][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[msgType], id)
	}
}

func (c *fakeChannel) OnDisconnect(handler func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.dropHandlers[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.dropHandlers, id)
	}
}

func (c *fakeChannel) fire(msg domain.ChannelMessage) {
	c.mu.Lock()
	snapshot := make([]func(domain.ChannelMessage), 0, len(c.handlers[msg.Type]))
	for _, h := range c.handlers[msg.Type] {
		snapshot = append(snapshot, h)
	}
	c.mu.Unlock()
	for _, h := range snapshot {
		h(msg)
	}
}

func (c *fakeChannel) fireDisconnect() {
	c.mu.Lock()
	c.connected = false
	snapshot := make([]func(), 0, len(c.dropHandlers))
	for _, h := range c.dropHandlers {
		snapshot = append(snapshot, h)
	}
	c.mu.Unlock()
	for _, h := range snapshot {
		h()
	}
}

func (c *fakeChannel) handlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, hs := range c.handlers {
		n += len(hs)
	}
	return n + len(c.dropHandlers)
}

func (c *fakeChannel) messages() []domain.ChannelMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChannelMessage(nil), c.sent...)
}

// memUsageStore is an in-memory UsageStore.
type memUsageStore struct {
	mu    sync.Mutex
	rec   *domain.UsageRecord
	saves int
}

func (s *memUsageStore) SaveUsage(rec domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
	s.saves++
	return nil
}

func (s *memUsageStore) LoadUsage() (domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return domain.UsageRecord{Date: "1970-01-01"}, nil
	}
	return *s.rec, nil
}

// memSessionStore is an in-memory SessionStore.
type memSessionStore struct {
	mu  sync.Mutex
	rec *domain.SessionRecord
}

func (s *memSessionStore) SaveSession(rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
	return nil
}

func (s *memSessionStore) LoadSession() (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, domain.NewDomainError("memstore", domain.ErrSessionNotFound, "")
	}
	rec := *s.rec
	return &rec, nil
}

func (s *memSessionStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

// memSettingsStore is an in-memory SettingsStore.
type memSettingsStore struct {
	rec *domain.SettingsRecord
}

func (s *memSettingsStore) SaveSettings(rec domain.SettingsRecord) error {
	s.rec = &rec
	return nil
}

func (s *memSettingsStore) LoadSettings() (domain.SettingsRecord, error) {
	if s.rec == nil {
		return domain.DefaultSettings(), nil
	}
	return *s.rec, nil
}

func (s *memSettingsStore) SettingsPath() string { return "/tmp/deskmate-test.db" }

// fakeAuthProvider scripts the OTP provider.
type fakeAuthProvider struct {
	signInErr   error
	verifyErr   error
	validateErr error
	session     *domain.AuthSession
	user        *domain.User

	signIns   []string
	verifies  []string
	validates int
}

func (p *fakeAuthProvider) SignInWithOTP(_ context.Context, email string) error {
	p.signIns = append(p.signIns, email)
	return p.signInErr
}

func (p *fakeAuthProvider) VerifyOTP(_ context.Context, email, code string) (*domain.AuthSession, error) {
	p.verifies = append(p.verifies, email+":"+code)
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.session, nil
}

func (p *fakeAuthProvider) ValidateSession(_ context.Context, _ string) (*domain.User, error) {
	p.validates++
	if p.validateErr != nil {
		return nil, p.validateErr
	}
	return p.user, nil
}

// fakeTerminal records shell interactions.
type fakeTerminal struct {
	mu         sync.Mutex
	executes   []string
	interrupts int
	inputs     []string
	clears     int
	output     string
	meta       domain.ExecMeta
	execErr    error
}

func (t *fakeTerminal) Execute(_ context.Context, command string) (domain.ExecMeta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executes = append(t.executes, command)
	if t.execErr != nil {
		return domain.ExecMeta{}, t.execErr
	}
	meta := t.meta
	meta.Command = command
	return meta, nil
}

func (t *fakeTerminal) Interrupt(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupts++
	return nil
}

func (t *fakeTerminal) SendInput(_ context.Context, input string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, input)
	return nil
}

func (t *fakeTerminal) PendingOutput() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.output
}

func (t *fakeTerminal) ClearOutput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clears++
	t.output = ""
}

// fakeScreen serves canned frames.
type fakeScreen struct {
	mu        sync.Mutex
	captures  int
	annotated [][]domain.Annotation
	err       error
}

func (s *fakeScreen) Capture(_ context.Context) (*domain.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Screenshot{Base64: "ZnJhbWU=", MediaType: "image/png", Width: 800, Height: 600}, nil
}

func (s *fakeScreen) CaptureAnnotated(_ context.Context, marks []domain.Annotation) (*domain.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotated = append(s.annotated, marks)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Screenshot{Base64: "bWFya2Vk", MediaType: "image/png", Width: 800, Height: 600}, nil
}

// fakeInput records pointer/keyboard calls as "op:args" strings.
type fakeInput struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (i *fakeInput) record(call string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.calls = append(i.calls, call)
	return nil
}

func (i *fakeInput) LeftClick(_ context.Context, x, y int) error {
	return i.record(fmt.Sprintf("left_click:%d,%d", x, y))
}

func (i *fakeInput) RightClick(_ context.Context, x, y int) error {
	return i.record(fmt.Sprintf("right_click:%d,%d", x, y))
}

func (i *fakeInput) DoubleClick(_ context.Context, x, y int) error {
	return i.record(fmt.Sprintf("double_click:%d,%d", x, y))
}

func (i *fakeInput) Drag(_ context.Context, x1, y1, x2, y2 int) error {
	return i.record(fmt.Sprintf("drag:%d,%d,%d,%d", x1, y1, x2, y2))
}

func (i *fakeInput) Scroll(_ context.Context, pixels, x, y int) error {
	return i.record(fmt.Sprintf("scroll:%d,%d,%d", pixels, x, y))
}

func (i *fakeInput) TypeText(_ context.Context, x, y int, text string) error {
	return i.record(fmt.Sprintf("type:%d,%d,%s", x, y, text))
}

func (i *fakeInput) Hotkey(_ context.Context, keys []string) error {
	return i.record("hotkey:" + strings.Join(keys, "+"))
}

func (i *fakeInput) recorded() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}

func newTestExecutor(t *fakeTerminal, s *fakeScreen, in *fakeInput, gate *Gate) *ToolExecutor {
	exec, err := NewToolExecutor(ToolExecutorDeps{
		Terminal: t,
		Screen:   s,
		Input:    in,
		Gate:     gate,
		Logger:   logger.Discard(),
	})
	if err != nil {
		panic(err)
	}
	exec.settle = 0
	return exec
}
