package core_test

import (
	"testing"

	"github.com/hupe1980/agentfactory/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentContext_Defaults(t *testing.T) {
	actx := core.NewAgentContext("task", func(c *core.AgentContext) {
		c.ProjectID = "p1"
		c.SharedState = nil
	})

	assert.Equal(t, "task", actx.Task)
	assert.Equal(t, "p1", actx.ProjectID)
	assert.NotNil(t, actx.SharedState)
	assert.Equal(t, core.DefaultMaxIterations, actx.MaxIterations)
	assert.Nil(t, actx.LastResult())
}

func TestAgentContext_CloneIsValueIsolated(t *testing.T) {
	actx := core.NewAgentContext("task")
	actx.SharedState["nested"] = map[string]any{"list": []any{"a"}}
	actx.SharedState["tags"] = []string{"x"}
	actx.AppendResult(&core.AgentResult{Success: true, Output: "one", Data: map[string]any{"k": "v"}})

	clone := actx.Clone()

	clone.SharedState["nested"].(map[string]any)["list"] = append(clone.SharedState["nested"].(map[string]any)["list"].([]any), "b")
	clone.SharedState["tags"].([]string)[0] = "changed"
	clone.SharedState["new"] = true
	clone.PreviousResults[0].Data["k"] = "mutated"
	clone.AppendResult(core.Success("two", nil))

	assert.Equal(t, []any{"a"}, actx.SharedState["nested"].(map[string]any)["list"])
	assert.Equal(t, []string{"x"}, actx.SharedState["tags"])
	assert.NotContains(t, actx.SharedState, "new")
	assert.Equal(t, "v", actx.PreviousResults[0].Data["k"])
	require.Len(t, actx.PreviousResults, 1)
	assert.Len(t, clone.PreviousResults, 2)
}

func TestAgentResult_CloneAndMeta(t *testing.T) {
	var nilResult *core.AgentResult
	assert.Nil(t, nilResult.Clone())
	assert.Equal(t, "", nilResult.Meta("agent_name"))

	r := core.Failure("bad", "e1")
	r.SetMeta("agent_name", "x")

	c := r.Clone()
	c.Errors[0] = "changed"
	c.SetMeta("agent_name", "y")

	assert.Equal(t, []string{"e1"}, r.Errors)
	assert.Equal(t, "x", r.Meta("agent_name"))
	assert.Equal(t, "y", c.Meta("agent_name"))
}

func TestHandoffTo(t *testing.T) {
	r := core.HandoffTo("coder", "plan ready", map[string]any{"plan": "p"})
	assert.True(t, r.Success)
	assert.Equal(t, "coder", r.NextAgent)
	assert.Equal(t, "p", r.Data["plan"])
}

func TestModelTier_Downgrade(t *testing.T) {
	assert.Equal(t, core.TierStandard, core.TierPremium.Downgrade())
	assert.Equal(t, core.TierFast, core.TierStandard.Downgrade())
	assert.Equal(t, core.TierFast, core.TierFast.Downgrade())

	tier, err := core.ParseModelTier("")
	require.NoError(t, err)
	assert.Equal(t, core.TierStandard, tier)

	_, err = core.ParseModelTier("gold")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := core.ParseRole("planner")
	require.NoError(t, err)
	assert.Equal(t, core.RolePlanner, r)

	_, err = core.ParseRole("manager")
	assert.Error(t, err)
	assert.Len(t, core.Roles(), 7)
}
