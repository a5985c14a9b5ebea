package core

// AgentResult is returned by every agent invocation and every pattern.
//
// Once produced a result is treated as immutable by consumers. The only
// mutation a pattern performs is metadata enrichment (SetMeta) on results it
// produced or received directly from the worker it ran.
type AgentResult struct {
	Success   bool           `json:"success" yaml:"success"`
	// Output is the human-readable result text.
	Output    string         `json:"output" yaml:"output"`
	// Data is the structured payload for downstream stages.
	Data      map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	// Errors holds ordered error messages.
	Errors    []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	// NextAgent is an explicit handoff signal; empty means absent. When set it
	// overrides default routing policy in Supervisor and Handoff.
	NextAgent string         `json:"next_agent,omitempty" yaml:"next_agent,omitempty"`
	// Metadata carries diagnostic annotations.
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Success builds a successful result.
func Success(output string, data map[string]any) *AgentResult {
	return &AgentResult{Success: true, Output: output, Data: data}
}

// Failure builds a failed result carrying the given error messages.
func Failure(output string, errs ...string) *AgentResult {
	return &AgentResult{Success: false, Output: output, Errors: errs}
}

// HandoffTo builds a successful result that asks the composing pattern to
// continue with the named agent.
func HandoffTo(agentName, output string, data map[string]any) *AgentResult {
	return &AgentResult{Success: true, Output: output, Data: data, NextAgent: agentName}
}

// SetMeta stores a metadata annotation, allocating the map when needed.
func (r *AgentResult) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Meta returns a metadata annotation as a string, or "" when absent.
func (r *AgentResult) Meta(key string) string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// Clone returns a deep copy of the result. Nil clones to nil.
func (r *AgentResult) Clone() *AgentResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Data != nil {
		c.Data = CopyMap(r.Data)
	}
	if r.Errors != nil {
		c.Errors = append([]string(nil), r.Errors...)
	}
	if r.Metadata != nil {
		c.Metadata = CopyMap(r.Metadata)
	}
	return &c
}
