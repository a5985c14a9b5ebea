package worker

import (
	"context"

	"github.com/hupe1980/agentfactory/core"
)

// ExecuteFunc is the body of a Func worker.
type ExecuteFunc func(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error)

// FuncOptions configures a Func worker.
type FuncOptions struct {
	Description string
	// Keywords are capability tags matched against tasks by CanHandle.
	Keywords []string
}

// Func is an agent whose behaviour is a Go function.
type Func struct {
	core.BaseAgent
	fn ExecuteFunc
}

// NewFunc wraps fn as an agent with the given name and role.
func NewFunc(name string, role core.Role, fn ExecuteFunc, optFns ...func(o *FuncOptions)) *Func {
	var opts FuncOptions
	for _, f := range optFns {
		f(&opts)
	}

	w := &Func{BaseAgent: core.NewBaseAgent(name, role), fn: fn}
	if opts.Description != "" {
		w.SetDescription(opts.Description)
	}
	if len(opts.Keywords) > 0 {
		w.SetCapabilities(opts.Keywords...)
	}
	return w
}

// Execute implements core.Agent. A nil function succeeds with an empty output.
func (w *Func) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	if w.fn == nil {
		return core.Success("", nil), nil
	}
	return w.fn(ctx, actx)
}
