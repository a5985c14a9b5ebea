package logging

import "time"

// LogAgentCall records the outcome of a single agent invocation made by a pattern.
func LogAgentCall(l Logger, pattern, agent string, dur time.Duration, success bool, err error) {
	args := []any{"pattern", pattern, "agent", agent, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		l.Error("agent.call.error", append(args, "error", err.Error())...)
		return
	}
	if !success {
		l.Warn("agent.call.failed", args...)
		return
	}
	l.Debug("agent.call.success", args...)
}

// LogPatternExecution records aggregate pattern run metrics.
func LogPatternExecution(l Logger, pattern string, steps int, dur time.Duration, success bool) {
	args := []any{"pattern", pattern, "step_count", steps, "duration_ms", dur.Milliseconds(), "success", success}
	if !success {
		l.Warn("pattern.execution.failed", args...)
		return
	}
	l.Info("pattern.execution.completed", args...)
}

// LogModelCall records model call latency, token usage and success.
func LogModelCall(l Logger, model string, tokens int, dur time.Duration, err error) {
	args := []any{"model", model, "token_count", tokens, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("model.call.error", append(args, "error", err.Error())...)
		return
	}
	l.Debug("model.call.success", args...)
}
