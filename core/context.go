package core

// DefaultMaxIterations is the iteration budget of a freshly built context.
const DefaultMaxIterations = 10

// AgentContext is the input and accumulated state threaded through patterns.
//
// A context is created once per top-level invocation. PreviousResults is an
// append-only history; it is never reordered or truncated. Parallel branches
// each receive their own Clone so no branch observes another's mutations.
type AgentContext struct {
	RunID            string         `json:"run_id,omitempty"`
	Task             string         `json:"task"`
	ProjectID        string         `json:"project_id,omitempty"`
	PreviousResults  []*AgentResult `json:"previous_results"`
	SharedState      map[string]any `json:"shared_state"`
	MaxIterations    int            `json:"max_iterations"`
	CurrentIteration int            `json:"current_iteration"`
}

// NewAgentContext creates a context for task. Optional functions may adjust
// the remaining fields.
func NewAgentContext(task string, optFns ...func(c *AgentContext)) *AgentContext {
	c := &AgentContext{
		Task:          task,
		SharedState:   make(map[string]any),
		MaxIterations: DefaultMaxIterations,
	}
	for _, fn := range optFns {
		fn(c)
	}
	if c.SharedState == nil {
		c.SharedState = make(map[string]any)
	}
	return c
}

// AppendResult records r at the end of the execution history.
func (c *AgentContext) AppendResult(r *AgentResult) {
	c.PreviousResults = append(c.PreviousResults, r)
}

// LastResult returns the most recent history entry or nil.
func (c *AgentContext) LastResult() *AgentResult {
	if len(c.PreviousResults) == 0 {
		return nil
	}
	return c.PreviousResults[len(c.PreviousResults)-1]
}

// Clone returns a value-isolated copy: history results and nested shared
// state collections are deep-copied.
func (c *AgentContext) Clone() *AgentContext {
	if c == nil {
		return nil
	}
	clone := *c
	clone.PreviousResults = cloneResults(c.PreviousResults)
	clone.SharedState = CopyMap(c.SharedState)
	return &clone
}
