// Package logging provides a minimal logging interface and adapters for agentfactory.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that patterns and workers use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - FactoryLogger, a configurable slog-backed logger with contextual helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - LogAgentCall / LogPatternExecution / LogModelCall domain helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	pipeline := agent.NewSequentialAgents(func(o *agent.SequentialOptions) { o.Logger = logger })
//
// Any logger with these four methods can be plugged in.
package logging
