package core

import (
	"context"
	"fmt"
	"strings"
)

// Agent defines the capability contract every worker must satisfy.
//
// Agents are opaque to the coordination patterns: a pattern only ever looks
// at Name, Role, Description and CanHandle, and calls Execute. Execute may
// block (for example on network I/O) and should honour ctx cancellation.
// Runtime failures are reported either as a result with Success=false or as a
// returned error; patterns convert the latter into failed results at their
// boundary.
type Agent interface {
	Name() string
	Role() Role
	Description() string
	CanHandle(task string) bool
	Execute(ctx context.Context, actx *AgentContext) (*AgentResult, error)
}

// CapabilityProvider is implemented by agents that describe the work they
// accept with explicit task tags. Registry.Candidates ranks agents by how many
// of their tags occur in a task.
type CapabilityProvider interface {
	Capabilities() []string
}

// BaseAgent bundles identity and capability matching. Embed it in concrete
// agents and supply an Execute method to satisfy Agent.
type BaseAgent struct {
	name         string
	role         Role
	description  string
	capabilities []string
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string, role Role) BaseAgent {
	return BaseAgent{
		name:        name,
		role:        role,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the agent's unique name.
func (b *BaseAgent) Name() string { return b.name }

// Role returns the agent's role.
func (b *BaseAgent) Role() Role { return b.role }

// Description returns a human-readable description of the agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Capabilities returns the agent's task tags.
func (b *BaseAgent) Capabilities() []string { return append([]string(nil), b.capabilities...) }

// SetCapabilities replaces the agent's task tags. Tags are matched
// case-insensitively as substrings of the task.
func (b *BaseAgent) SetCapabilities(tags ...string) {
	b.capabilities = make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			b.capabilities = append(b.capabilities, t)
		}
	}
}

// CanHandle reports whether the agent accepts task. Without capability tags
// every task is accepted.
func (b *BaseAgent) CanHandle(task string) bool {
	if len(b.capabilities) == 0 {
		return true
	}
	return MatchCount(b.capabilities, task) > 0
}

// MatchCount returns how many tags occur in the lower-cased task.
func MatchCount(tags []string, task string) int {
	lower := strings.ToLower(task)
	n := 0
	for _, t := range tags {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			n++
		}
	}
	return n
}

// String implements fmt.Stringer.
func (b *BaseAgent) String() string {
	return fmt.Sprintf("Agent(%s, role=%s)", b.name, b.role)
}
