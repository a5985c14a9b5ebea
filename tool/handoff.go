package tool

import (
	"fmt"

	"github.com/hupe1980/agentfactory/internal/util"
)

// HandoffToolName is the name under which the handoff tool is advertised.
const HandoffToolName = "handoff_to_agent"

// handoffTool requests that control pass to another agent after the caller
// finishes.
type handoffTool struct {
	agents []string
}

// NewHandoffTool constructs the handoff tool. When agents is non-empty the
// target is restricted to those names.
func NewHandoffTool(agents ...string) Tool {
	return &handoffTool{agents: append([]string(nil), agents...)}
}

func (t *handoffTool) Name() string { return HandoffToolName }

func (t *handoffTool) Description() string {
	return "Hand the task over to another agent by name. Use when another agent is better suited to continue."
}

func (t *handoffTool) Parameters() map[string]any {
	target := util.StringProperty("Target agent name")
	if len(t.agents) > 0 {
		target["enum"] = t.agents
	}
	return util.ObjectSchema(map[string]any{
		"agent":  target,
		"reason": util.StringProperty("Why the other agent should take over"),
	}, "agent")
}

func (t *handoffTool) Call(tc *Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeValidation, Details: err}
	}
	agentName, _ := args["agent"].(string)
	if agentName == "" {
		return nil, NewToolError(t.Name(), "field 'agent' must be non-empty string", CodeValidation)
	}
	tc.TransferToAgent(agentName)
	return map[string]any{"transferred": true, "agent": agentName, "message": fmt.Sprintf("Handing off to %s", agentName)}, nil
}
