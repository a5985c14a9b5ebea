package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfactory/model"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "You are a planner.",
		Contents: []model.Content{
			model.NewTextContent(model.RoleUser, "plan it"),
			{Role: model.RoleAssistant, Parts: []model.Part{
				model.FunctionCallPart{FunctionCall: model.FunctionCall{ID: "c1", Name: "agent_coder", Arguments: `{"task":"x"}`}},
			}},
			{Role: model.RoleTool, Parts: []model.Part{
				model.FunctionResponsePart{FunctionResponse: model.FunctionResponse{ID: "c1", Name: "agent_coder", Response: "ok"}},
			}},
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "agent_coder", msgs[2].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestFinalParts_OrderedByIndex(t *testing.T) {
	parts := finalParts("thinking", map[int64]*pendingCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, model.TextPart{Text: "thinking"}, parts[0])
	assert.Equal(t, "first", parts[1].(model.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(model.FunctionCallPart).FunctionCall.Name)
}

func TestBuildParams_Tools(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{
		Tools: []model.ToolDefinition{model.NewFunctionTool("handoff_to_agent", "Transfer", map[string]any{"type": "object"})},
	}, nil)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "handoff_to_agent", params.Tools[0].Function.Name)
	assert.Equal(t, "openai", m.Info().Provider)
}
