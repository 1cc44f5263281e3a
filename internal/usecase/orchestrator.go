package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"deskmate/internal/domain"
	"deskmate/internal/infra/tracer"
)

// Channel is the remote agent connection as the orchestrator sees it.
// OnMessage and OnDisconnect return an unsubscribe func; every handler
// registered for a query cycle is removed when the cycle ends.
type Channel interface {
	Connect(ctx context.Context) error
	Connected() bool
	Send(msg domain.ChannelMessage) error
	OnMessage(msgType domain.MessageType, handler func(domain.ChannelMessage)) func()
	OnDisconnect(handler func()) func()
}

// Orchestrator drives one query cycle at a time: slash commands and auth
// short-circuit locally, everything else is metered, sent upstream, and
// streamed back through transient per-cycle handlers.
type Orchestrator struct {
	channel  Channel
	executor *ToolExecutor
	gate     *Gate
	quota    *DailyQuota
	auth     *AuthFlow
	slash    *SlashHandler
	sink     domain.EventSink
	logger   *slog.Logger
}

func NewOrchestrator(
	channel Channel,
	executor *ToolExecutor,
	gate *Gate,
	quota *DailyQuota,
	auth *AuthFlow,
	slash *SlashHandler,
	sink domain.EventSink,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		channel:  channel,
		executor: executor,
		gate:     gate,
		quota:    quota,
		auth:     auth,
		slash:    slash,
		sink:     sink,
		logger:   logger,
	}
}

// push stamps the event with a sortable ID and makes the chat visible
// before delivering it, so progress is never rendered into a hidden window.
func (o *Orchestrator) push(event domain.UIEvent) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	o.sink.ShowChat()
	o.sink.Push(event)
}

// ProcessQuery handles one user query end to end. Any panic or failure
// mid-cycle resets the conversation so the next query starts clean.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	ctx, span := tracer.StartSpan(ctx, "orchestrator.process_query",
		trace.WithAttributes(tracer.StringAttr("query.kind", classifyQuery(o.slash, o.auth, query))),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query cycle panicked: %v", r)
		}
		if err != nil {
			tracer.RecordError(span, err)
			o.failCycle(err)
			return
		}
		tracer.SetOK(span)
	}()

	if o.slash.Is(query) {
		if res := o.slash.Handle(ctx, query, o.push); !res.Success {
			o.logger.Warn("slash command failed", "error", res.Error)
		}
		return nil
	}

	if !o.auth.Authenticated() {
		if err := o.auth.Handle(ctx, query, o.push); err != nil {
			return err
		}
		o.sink.FocusInput()
		return nil
	}

	// Metering happens before any network traffic so an over-limit query
	// never reaches the backend.
	if err := o.quota.Accept(); err != nil {
		return err
	}

	if err := o.channel.Connect(ctx); err != nil {
		return domain.NewDomainError("orchestrator.connect", domain.ErrNotConnected, err.Error())
	}

	return o.runCycle(ctx, query)
}

// runCycle registers the transient handlers for one query, sends it, and
// blocks until the backend completes, errs, or the connection drops.
func (o *Orchestrator) runCycle(ctx context.Context, query string) error {
	done := make(chan error, 1)
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { done <- err })
	}

	offText := o.channel.OnMessage(domain.MessageText, func(msg domain.ChannelMessage) {
		o.push(domain.UIEvent{Type: domain.UIText, Content: msg.Content})
	})
	offTool := o.channel.OnMessage(domain.MessageToolRequest, func(msg domain.ChannelMessage) {
		req := domain.ToolRequestFromMessage(msg)
		// The executor blocks on the human decision; running it here
		// would stall the read loop and deadlock the confirmation.
		go func() {
			if err := o.executor.Execute(ctx, req, o.push, o.channel); err != nil {
				finish(err)
			}
		}()
	})
	offComplete := o.channel.OnMessage(domain.MessageComplete, func(domain.ChannelMessage) {
		finish(nil)
	})
	offErr := o.channel.OnMessage(domain.MessageError, func(msg domain.ChannelMessage) {
		finish(domain.NewDomainError("orchestrator.query", domain.ErrProviderError, msg.Content))
	})
	// A mid-cycle drop must force-resolve the cycle or a pending tool
	// request would block it forever.
	offDrop := o.channel.OnDisconnect(func() {
		finish(domain.NewDomainError("orchestrator.query", domain.ErrDisconnected, "connection lost mid-query"))
	})

	defer func() {
		offText()
		offTool()
		offComplete()
		offErr()
		offDrop()
	}()

	o.push(domain.UIEvent{Type: domain.UILoading})

	if err := o.channel.Send(domain.QueryMessage(query)); err != nil {
		return domain.NewDomainError("orchestrator.send", domain.ErrNotConnected, err.Error())
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failCycle surfaces the failure and resets conversation state so the user
// is never left with a hung confirmation or a half-rendered exchange.
func (o *Orchestrator) failCycle(err error) {
	o.logger.Error("query cycle failed", "error", err)

	content := "Something went wrong. Conversation has been reset."
	quotaHit := errors.Is(err, domain.ErrQuotaExceeded)
	if quotaHit {
		content = fmt.Sprintf("Daily limit reached (%d queries). Your quota resets at midnight.", o.quota.Limit())
	}
	o.push(domain.UIEvent{Type: domain.UIError, Content: content})

	o.gate.Abandon()
	if !quotaHit {
		o.sink.ClearConversation()
	}
	o.sink.FocusInput()
}

// HandleConfirmation feeds a yes/no decision from the UI into the gate.
// It reports whether any confirmation was actually waiting.
func (o *Orchestrator) HandleConfirmation(confirmed bool) bool {
	return o.gate.Resolve(confirmed)
}

// ClearConversation resets the rendered conversation and rejects anything
// still waiting on the gate.
func (o *Orchestrator) ClearConversation() {
	o.gate.Abandon()
	o.sink.ClearConversation()
}

// PendingConfirmations reports how many tool requests are awaiting a
// decision.
func (o *Orchestrator) PendingConfirmations() int {
	return o.gate.Pending()
}

func classifyQuery(slash *SlashHandler, auth *AuthFlow, query string) string {
	switch {
	case slash.Is(query):
		return "command"
	case !auth.Authenticated():
		return "auth"
	default:
		return "query"
	}
}
