// Package agent contains the coordination patterns that compose independently
// implemented workers (core.Agent) into larger units of work:
//
//  1. Handoff – sequential delegation chain driven by AgentResult.NextAgent
//  2. ParallelAgents – concurrent fan-out over isolated context copies with
//     ordered fan-in, fail-fast cancellation and an overall timeout
//  3. SequentialAgents – ordered pipeline with context transformation between stages
//  4. Supervisor – bounded control loop choosing the next worker per iteration
//  5. Router / CostOptimizedRouter – keyword and role based routing with a
//     model tier attached to each decision
//
// Design principles:
//   - No hidden global state – registries and loggers are passed explicitly
//   - Composability – every pattern except Handoff is itself a core.Agent and
//     can be nested inside another pattern
//   - Two error channels – worker failures, errors and panics become results
//     with Success=false; only router misconfiguration surfaces as an error
//
// Only ParallelAgents runs workers concurrently. All other patterns execute
// one worker at a time in strict order.
package agent
