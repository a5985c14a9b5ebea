// Package core provides the foundational domain types and interfaces shared by
// every coordination pattern in agentfactory. It defines:
//
//   - Agent (the capability contract every worker satisfies)
//   - AgentContext / AgentResult (the request/response envelope threaded
//     through all patterns)
//   - Registry (name and role indexed lookup of agents)
//   - Invoke (the guarded call path that turns worker errors and panics into
//     values a pattern can reason about)
//   - ModelTier and ModelLimiter (per-call cost tier and per-run model call
//     budget, both carried in context.Context)
//
// Orchestration policy lives in package agent and concrete workers in package
// worker. Nothing in core is a package-level singleton;
// callers construct one Registry per orchestration session and pass it
// explicitly.
package core
