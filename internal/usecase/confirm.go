package usecase

import (
	"context"
	"log/slog"
	"sync"
)

// pendingDecision is one tool request awaiting a human verdict.
type pendingDecision struct {
	toolUseID string
	decision  chan bool
}

// Gate synchronizes tool execution with asynchronous human decisions.
// Entries form a FIFO queue keyed by tool_use_id, so a second tool request
// arriving before the first resolves can never overwrite (and leak) the
// first awaiter. In practice the backend awaits each tool_result before
// issuing the next request, so the queue depth stays at one.
type Gate struct {
	mu      sync.Mutex
	pending []*pendingDecision
	logger  *slog.Logger
}

// NewGate creates an empty confirmation gate.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Await registers toolUseID as awaiting a decision and blocks until the UI
// resolves it or ctx is cancelled. There is no timeout on the human decision.
func (g *Gate) Await(ctx context.Context, toolUseID string) (bool, error) {
	p := &pendingDecision{toolUseID: toolUseID, decision: make(chan bool, 1)}

	g.mu.Lock()
	g.pending = append(g.pending, p)
	g.mu.Unlock()

	select {
	case ok := <-p.decision:
		return ok, nil
	case <-ctx.Done():
		g.remove(p)
		return false, ctx.Err()
	}
}

// Resolve delivers a decision to the oldest pending awaiter. Resolving with
// nothing pending is a no-op, not an error; the return value reports whether
// anything was resolved.
func (g *Gate) Resolve(confirmed bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pending) == 0 {
		g.logger.Debug("confirmation resolved with nothing pending", "confirmed", confirmed)
		return false
	}
	head := g.pending[0]
	g.pending = g.pending[1:]
	head.decision <- confirmed
	return true
}

// ResolveID delivers a decision to the pending entry with the given
// tool_use_id. Unknown IDs are a no-op.
func (g *Gate) ResolveID(toolUseID string, confirmed bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, p := range g.pending {
		if p.toolUseID == toolUseID {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			p.decision <- confirmed
			return true
		}
	}
	return false
}

// Abandon rejects every pending decision. Called when a query cycle is torn
// down (error or disconnect) so no awaiter is left blocked forever.
func (g *Gate) Abandon() {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, p := range pending {
		p.decision <- false
	}
	if len(pending) > 0 {
		g.logger.Debug("abandoned pending confirmations", "count", len(pending))
	}
}

// Pending reports the number of unresolved decisions.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gate) remove(target *pendingDecision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, p := range g.pending {
		if p == target {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return
		}
	}
}
