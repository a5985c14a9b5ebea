package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentfactory/core"
)

// ExecuteFunc scripts the behavior of a StubAgent.
type ExecuteFunc func(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error)

// StubAgent is a scriptable core.Agent that records every context it receives.
type StubAgent struct {
	core.BaseAgent
	fn ExecuteFunc

	mu       sync.Mutex
	calls    int
	received []*core.AgentContext
}

// NewStubAgent creates a StubAgent. A nil fn succeeds with output "<name> done".
func NewStubAgent(name string, role core.Role, fn ExecuteFunc) *StubAgent {
	if fn == nil {
		fn = Succeed(name + " done")
	}
	return &StubAgent{BaseAgent: core.NewBaseAgent(name, role), fn: fn}
}

// Execute implements core.Agent.
func (s *StubAgent) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	s.mu.Lock()
	s.calls++
	s.received = append(s.received, actx)
	s.mu.Unlock()

	return s.fn(ctx, actx)
}

// Calls returns how many times Execute ran.
func (s *StubAgent) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Received returns the contexts passed to Execute in call order.
func (s *StubAgent) Received() []*core.AgentContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.AgentContext(nil), s.received...)
}

// Succeed returns a successful result with output.
func Succeed(output string) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		return core.Success(output, map[string]any{}), nil
	}
}

// SucceedWith returns a successful result with output and data.
func SucceedWith(output string, data map[string]any) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		return core.Success(output, core.CopyMap(data)), nil
	}
}

// Fail returns a failed result with the given errors.
func Fail(output string, errs ...string) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		return core.Failure(output, errs...), nil
	}
}

// Error returns err from Execute.
func Error(err error) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		return nil, err
	}
}

// Panic panics with v inside Execute.
func Panic(v any) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		panic(v)
	}
}

// Handoff returns a successful result signalling next.
func Handoff(next, output string) ExecuteFunc {
	return func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		return core.HandoffTo(next, output, map[string]any{}), nil
	}
}

// Block waits until ctx is done or release is closed, then succeeds with
// output. A cancelled context yields ctx.Err().
func Block(release <-chan struct{}, output string) ExecuteFunc {
	return func(ctx context.Context, _ *core.AgentContext) (*core.AgentResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return core.Success(output, map[string]any{}), nil
		}
	}
}

// Sequence returns each fn in turn on successive calls; the last one repeats.
func Sequence(fns ...ExecuteFunc) ExecuteFunc {
	var (
		mu sync.Mutex
		i  int
	)
	return func(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
		mu.Lock()
		fn := fns[i]
		if i < len(fns)-1 {
			i++
		}
		mu.Unlock()
		return fn(ctx, actx)
	}
}
