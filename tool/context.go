package tool

import (
	"context"
	"sync"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

// ContextOptions configures a tool Context.
type ContextOptions struct {
	// AgentName is the agent issuing the tool call.
	AgentName string
	// AgentContext is the calling agent's context. Tools read shared state and
	// history from it.
	AgentContext *core.AgentContext
	Logger       logging.Logger
}

// Context is the surface a tool sees during a single call: the request
// context, the calling agent and a place to record a handoff request.
type Context struct {
	ctx       context.Context
	callID    string
	agentName string
	actx      *core.AgentContext
	logger    logging.Logger

	mu       sync.Mutex
	transfer string
}

// NewContext constructs a tool context for the call identified by callID.
func NewContext(ctx context.Context, callID string, optFns ...func(o *ContextOptions)) *Context {
	opts := ContextOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ctx:       ctx,
		callID:    callID,
		agentName: opts.AgentName,
		actx:      opts.AgentContext,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Context returns the request context of the call.
func (tc *Context) Context() context.Context { return tc.ctx }

// CallID returns the model-assigned identifier of the call.
func (tc *Context) CallID() string { return tc.callID }

// AgentName returns the name of the calling agent.
func (tc *Context) AgentName() string { return tc.agentName }

// AgentContext returns the calling agent's context, or nil.
func (tc *Context) AgentContext() *core.AgentContext { return tc.actx }

// Logger returns the logger of the call.
func (tc *Context) Logger() logging.Logger { return tc.logger }

// GetState reads a key from the calling agent's shared state.
func (tc *Context) GetState(key string) (any, bool) {
	if tc.actx == nil {
		return nil, false
	}
	v, ok := tc.actx.SharedState[key]
	return v, ok
}

// TransferToAgent records a request to hand control to the named agent once
// the calling agent finishes.
func (tc *Context) TransferToAgent(name string) {
	tc.mu.Lock()
	tc.transfer = name
	tc.mu.Unlock()
	tc.logger.Info("tool.transfer.request", "from_agent", tc.agentName, "to_agent", name, "call_id", tc.callID)
}

// TransferTarget returns the agent requested by TransferToAgent, or "".
func (tc *Context) TransferTarget() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.transfer
}
