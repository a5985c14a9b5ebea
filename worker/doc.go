// Package worker provides concrete agents for the coordination patterns.
//
// Func adapts a plain Go function into a core.Agent. ModelWorker drives a
// language model through a bounded tool-calling loop: it renders an
// instruction, advertises its tools (including other agents wrapped with
// tool.NewAgentTool and the handoff tool), executes the calls the model
// requests and reports a handoff request as AgentResult.NextAgent.
//
// A ModelWorker honours the model tier a router stores in the context with
// core.WithModelTier by picking the model registered for that tier.
package worker
