package core

import (
	"sort"
	"sync"
)

// Registry indexes agents by name and role while preserving registration
// order. Registration normally happens before patterns execute; lookups are
// safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	agents map[string]Agent
	byRole map[Role][]Agent
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
		byRole: make(map[Role][]Agent),
	}
}

// Register adds a. Registering a name again replaces the previous agent while
// keeping its original position.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[a.Name()]; !ok {
		r.order = append(r.order, a.Name())
	}
	r.agents[a.Name()] = a
	r.rebuildRolesLocked()
}

// Unregister removes the named agent. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[name]; !ok {
		return
	}
	delete(r.agents, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildRolesLocked()
}

// Get returns the named agent.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// ByRole returns agents with the given role in registration order.
func (r *Registry) ByRole(role Role) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Agent(nil), r.byRole[role]...)
}

// List returns all agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.agents[n])
	}
	return out
}

// Names returns all agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FindForTask scans agents in registration order and returns the first whose
// CanHandle accepts task. With the default CanHandle (always true) this is
// simply the first registered agent.
func (r *Registry) FindForTask(task string) (Agent, bool) {
	for _, a := range r.List() {
		if a.CanHandle(task) {
			return a, true
		}
	}
	return nil, false
}

// Candidates returns every agent accepting task, best match first. Agents are
// ranked by the number of capability tags found in the task; ties keep
// registration order.
func (r *Registry) Candidates(task string) []Agent {
	type scored struct {
		agent Agent
		score int
	}

	var matches []scored
	for _, a := range r.List() {
		if !a.CanHandle(task) {
			continue
		}
		score := 0
		if cp, ok := a.(CapabilityProvider); ok {
			score = MatchCount(cp.Capabilities(), task)
		}
		matches = append(matches, scored{agent: a, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]Agent, len(matches))
	for i, m := range matches {
		out[i] = m.agent
	}
	return out
}

// rebuildRolesLocked recomputes the role index from registration order.
func (r *Registry) rebuildRolesLocked() {
	r.byRole = make(map[Role][]Agent)
	for _, n := range r.order {
		a := r.agents[n]
		r.byRole[a.Role()] = append(r.byRole[a.Role()], a)
	}
}
