package worker

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentfactory/logging"
	"github.com/hupe1980/agentfactory/model"
	"github.com/hupe1980/agentfactory/tool"
)

// toolPanic carries a panic recovered from a tool call.
type toolPanic struct {
	tool  string
	value any
	stack []byte
}

func (p *toolPanic) Error() string { return fmt.Sprintf("tool %s panicked: %v", p.tool, p.value) }

// executeCalls runs the calls of one model turn in order and returns one
// function response per call plus the last handoff target requested by a
// tool. A call never aborts the batch: unknown tools, bad arguments, errors
// and panics become error responses.
func executeCalls(
	newContext func(callID string) *tool.Context,
	agent string,
	tools map[string]tool.Tool,
	calls []model.FunctionCall,
	logger logging.Logger,
) (model.Content, string) {
	parts := make([]model.Part, 0, len(calls))
	transfer := ""

	for _, fc := range calls {
		tc := newContext(fc.ID)
		start := time.Now()
		result, err := callTool(tc, tools, fc)
		if target := tc.TransferTarget(); target != "" {
			transfer = target
		}

		logger.Info(
			"worker.function.executed",
			"agent", agent,
			"function", fc.Name,
			"function_call_id", fc.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)

		resp := model.FunctionResponse{ID: fc.ID, Name: fc.Name}
		if err != nil {
			resp.Response = err.Error()
			resp.IsError = true
		} else {
			resp.Response = renderToolResult(result)
		}
		parts = append(parts, model.FunctionResponsePart{FunctionResponse: resp})
	}

	return model.Content{Role: model.RoleTool, Parts: parts}, transfer
}

func callTool(tc *tool.Context, tools map[string]tool.Tool, fc model.FunctionCall) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &toolPanic{tool: fc.Name, value: r, stack: debug.Stack()}
		}
	}()

	impl, ok := tools[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(tc, args)
}

func renderToolResult(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
