package agent

import "github.com/hupe1980/agentfactory/core"

const previewLimit = 200

// preview truncates s to the first 200 runes used in execution logs.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit])
}

// exceptionResult converts an error raised by a worker into a failed result.
func exceptionResult(output string, err error) *core.AgentResult {
	return core.Failure(output, err.Error())
}

// joinErrors merges the error lists of rs in order.
func joinErrors(rs []*core.AgentResult) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Errors...)
	}
	return out
}

func allSucceeded(rs []*core.AgentResult) bool {
	for _, r := range rs {
		if !r.Success {
			return false
		}
	}
	return true
}
