package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

// DefaultMaxHandoffs bounds a handoff chain when callers pass a non-positive limit
// through HandoffAgent.
const DefaultMaxHandoffs = 5

// HandoffEntry is one audit record of a handoff chain.
type HandoffEntry struct {
	Agent     string `json:"agent"`
	Success   bool   `json:"success"`
	HandoffTo string `json:"handoff_to,omitempty"`
}

// HandoffOptions configures a Handoff.
type HandoffOptions struct {
	Logger logging.Logger
}

// Handoff executes an agent and follows the NextAgent signals of its results,
// looking successors up in a registry. The original agent exits completely and
// the successor takes over with the accumulated context.
type Handoff struct {
	registry *core.Registry
	logger   logging.Logger

	mu      sync.Mutex
	history []HandoffEntry
}

// NewHandoff creates a Handoff resolving successors in reg.
func NewHandoff(reg *core.Registry, optFns ...func(o *HandoffOptions)) *Handoff {
	opts := HandoffOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handoff{registry: reg, logger: logging.OrNoOp(opts.Logger)}
}

// Execute runs initial and then every agent named by a result's NextAgent,
// executing at most maxHandoffs agents.
//
// A result without NextAgent ends the chain and is returned as is. A NextAgent
// that is not registered ends the chain with an error appended to that
// result. Exhausting the bound yields a synthetic failure. Agent errors and
// panics end the chain with a failed result.
func (h *Handoff) Execute(ctx context.Context, initial core.Agent, actx *core.AgentContext, maxHandoffs int) *core.AgentResult {
	start := time.Now()
	current := initial
	count := 0

	for count < maxHandoffs {
		if err := ctx.Err(); err != nil {
			return core.Failure("Handoff chain cancelled", err.Error())
		}

		callStart := time.Now()
		result, err := core.Invoke(ctx, current, actx)
		if err != nil {
			result = exceptionResult(fmt.Sprintf("Agent %s raised exception", current.Name()), err)
			result.SetMeta("agent_name", current.Name())
		}
		logging.LogAgentCall(h.logger, "handoff", current.Name(), time.Since(callStart), result.Success, err)

		h.record(HandoffEntry{Agent: current.Name(), Success: result.Success, HandoffTo: result.NextAgent})

		if result.NextAgent == "" {
			logging.LogPatternExecution(h.logger, "handoff", count+1, time.Since(start), result.Success)
			return result
		}

		next, ok := h.registry.Get(result.NextAgent)
		if !ok {
			h.logger.Warn("handoff.target.missing", "from", current.Name(), "to", result.NextAgent)
			result.Errors = append(result.Errors, fmt.Sprintf("Handoff failed: agent '%s' not found", result.NextAgent))
			return result
		}

		h.logger.Debug("handoff.transfer", "from", current.Name(), "to", next.Name())

		actx.AppendResult(result)
		actx.CurrentIteration++

		current = next
		count++
	}

	logging.LogPatternExecution(h.logger, "handoff", count, time.Since(start), false)

	return core.Failure("Maximum handoffs reached", fmt.Sprintf("Exceeded max handoffs (%d)", maxHandoffs))
}

func (h *Handoff) record(e HandoffEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, e)
}

// Chain returns the names of the agents that handled tasks, in order.
func (h *Handoff) Chain() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.history))
	for i, e := range h.history {
		out[i] = e.Agent
	}
	return out
}

// History returns a copy of the audit log.
func (h *Handoff) History() []HandoffEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HandoffEntry(nil), h.history...)
}

// ClearHistory resets the audit log.
func (h *Handoff) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}

// HandoffAgent adapts a Handoff with a fixed entry agent into a core.Agent so
// a handoff chain can be nested inside other patterns.
type HandoffAgent struct {
	core.BaseAgent
	handoff     *Handoff
	entry       core.Agent
	maxHandoffs int
}

// NewHandoffAgent wraps h starting at entry. A non-positive maxHandoffs uses
// DefaultMaxHandoffs.
func NewHandoffAgent(name string, h *Handoff, entry core.Agent, maxHandoffs int) *HandoffAgent {
	if maxHandoffs <= 0 {
		maxHandoffs = DefaultMaxHandoffs
	}
	a := &HandoffAgent{
		BaseAgent:   core.NewBaseAgent(name, core.RoleOrchestrator),
		handoff:     h,
		entry:       entry,
		maxHandoffs: maxHandoffs,
	}
	a.SetDescription(fmt.Sprintf("Handoff chain starting at %s", entry.Name()))
	return a
}

// Execute implements core.Agent.
func (a *HandoffAgent) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	return a.handoff.Execute(ctx, a.entry, actx, a.maxHandoffs), nil
}
