package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/internal/util"
	"github.com/hupe1980/agentfactory/logging"
)

// DefaultAgentToolTimeout bounds a single delegated agent call.
const DefaultAgentToolTimeout = 60 * time.Second

// AgentToolOptions configures an AgentTool.
type AgentToolOptions struct {
	// Timeout bounds each call; zero or negative disables it.
	Timeout time.Duration
	Logger  logging.Logger
}

// AgentToolStats reports usage of an AgentTool.
type AgentToolStats struct {
	Agent     string    `json:"agent"`
	Role      core.Role `json:"role"`
	CallCount int64     `json:"call_count"`
}

// AgentTool wraps an agent so another agent can call it like a function. The
// caller keeps control and receives the delegate's output as a string.
//
// Failures never escape: a failed result becomes "Agent failed: <errors>" and
// an error, panic or timeout becomes "Agent error: <message>".
type AgentTool struct {
	agent   core.Agent
	timeout time.Duration
	logger  logging.Logger
	calls   atomic.Int64
}

// NewAgentTool wraps agent.
func NewAgentTool(agent core.Agent, optFns ...func(o *AgentToolOptions)) *AgentTool {
	opts := AgentToolOptions{
		Timeout: DefaultAgentToolTimeout,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &AgentTool{agent: agent, timeout: opts.Timeout, logger: logging.OrNoOp(opts.Logger)}
}

// Agent returns the wrapped agent.
func (t *AgentTool) Agent() core.Agent { return t.agent }

// Name returns "agent_<agent name>".
func (t *AgentTool) Name() string { return "agent_" + t.agent.Name() }

// Description tells the model whom it delegates to.
func (t *AgentTool) Description() string {
	return fmt.Sprintf("Delegate to %s (%s): %s", t.agent.Name(), t.agent.Role(), t.agent.Description())
}

// Parameters requires a single "task" string.
func (t *AgentTool) Parameters() map[string]any {
	return util.ObjectSchema(map[string]any{
		"task": util.StringProperty("The task to delegate to the agent"),
	}, "task")
}

// Call implements Tool. The delegate receives a copy of the caller's context
// so its history and shared state are visible without being modified.
func (t *AgentTool) Call(tc *Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeValidation, Details: err}
	}
	task, _ := args["task"].(string)

	var actx *core.AgentContext
	if parent := tc.AgentContext(); parent != nil {
		actx = parent.Clone()
	}
	return t.Invoke(tc.Context(), task, actx), nil
}

// Invoke runs the wrapped agent on task. When actx is nil a fresh context is
// created; otherwise its Task is overwritten and it is passed on. With a
// timeout enforced the agent receives a copy of actx.
func (t *AgentTool) Invoke(ctx context.Context, task string, actx *core.AgentContext) string {
	t.calls.Add(1)

	if actx == nil {
		actx = core.NewAgentContext(task)
	} else {
		actx.Task = task
	}

	start := time.Now()
	res, err := t.run(ctx, actx)
	logging.LogAgentCall(t.logger, "agent_tool", t.agent.Name(), time.Since(start), err == nil && res.Success, err)

	switch {
	case err != nil:
		return "Agent error: " + err.Error()
	case res.Success:
		return res.Output
	default:
		return "Agent failed: " + strings.Join(res.Errors, "; ")
	}
}

func (t *AgentTool) run(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	if t.timeout <= 0 {
		return core.Invoke(ctx, t.agent, actx)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, t.timeout, fmt.Errorf("timed out after %s", t.timeout))
	defer cancel()

	type outcome struct {
		res *core.AgentResult
		err error
	}
	// A timed-out agent keeps running in the background, so it works on its
	// own copy and never touches the caller's context after Invoke returned.
	branch := actx.Clone()
	done := make(chan outcome, 1)
	go func() {
		res, err := core.Invoke(ctx, t.agent, branch)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return o.res, o.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Stats returns usage statistics.
func (t *AgentTool) Stats() AgentToolStats {
	return AgentToolStats{Agent: t.agent.Name(), Role: t.agent.Role(), CallCount: t.calls.Load()}
}

// Toolkit is a named collection of agents wrapped as tools.
type Toolkit struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*AgentTool
}

// NewToolkit creates an empty toolkit.
func NewToolkit() *Toolkit {
	return &Toolkit{tools: make(map[string]*AgentTool)}
}

// Add wraps agent as a tool. Adding an agent with the same name replaces the
// previous tool.
func (k *Toolkit) Add(agent core.Agent, optFns ...func(o *AgentToolOptions)) *AgentTool {
	t := NewAgentTool(agent, optFns...)

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.tools[t.Name()]; !ok {
		k.order = append(k.order, t.Name())
	}
	k.tools[t.Name()] = t
	return t
}

// Get returns the tool with the given name ("agent_<agent name>").
func (k *Toolkit) Get(name string) (*AgentTool, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	t, ok := k.tools[name]
	return t, ok
}

// Tools returns every tool in insertion order.
func (k *Toolkit) Tools() []Tool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Tool, 0, len(k.order))
	for _, name := range k.order {
		out = append(out, k.tools[name])
	}
	return out
}

// Descriptions renders one "- <name>: <description>" line per tool for
// inclusion in a prompt.
func (k *Toolkit) Descriptions() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	lines := make([]string, 0, len(k.order))
	for _, name := range k.order {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, k.tools[name].Description()))
	}
	return strings.Join(lines, "\n")
}

// Stats returns usage statistics keyed by tool name.
func (k *Toolkit) Stats() map[string]AgentToolStats {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make(map[string]AgentToolStats, len(k.tools))
	for name, t := range k.tools {
		out[name] = t.Stats()
	}
	return out
}
