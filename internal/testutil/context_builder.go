package testutil

import "github.com/hupe1980/agentfactory/core"

// ContextBuilder helps construct agent contexts with fluent chaining for tests.
// Example:
//
//	actx := NewContextBuilder("task").Project("p1").State("k", "v").Build()
type ContextBuilder struct {
	actx *core.AgentContext
}

// NewContextBuilder starts a builder for task.
func NewContextBuilder(task string) *ContextBuilder {
	return &ContextBuilder{actx: core.NewAgentContext(task)}
}

// Project sets the project identifier (chainable).
func (b *ContextBuilder) Project(id string) *ContextBuilder {
	b.actx.ProjectID = id
	return b
}

// State sets a shared state key (chainable).
func (b *ContextBuilder) State(key string, val any) *ContextBuilder {
	b.actx.SharedState[key] = val
	return b
}

// Result appends a history entry (chainable).
func (b *ContextBuilder) Result(r *core.AgentResult) *ContextBuilder {
	b.actx.AppendResult(r)
	return b
}

// Build returns the context.
func (b *ContextBuilder) Build() *core.AgentContext {
	return b.actx
}
