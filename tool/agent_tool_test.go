package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/internal/testutil"
)

func newResearcher(fn testutil.ExecuteFunc) *testutil.StubAgent {
	a := testutil.NewStubAgent("researcher", core.RoleResearcher, fn)
	a.SetDescription("Finds things")
	return a
}

func TestAgentTool_Identity(t *testing.T) {
	at := NewAgentTool(newResearcher(nil))

	assert.Equal(t, "agent_researcher", at.Name())
	assert.Equal(t, "Delegate to researcher (researcher): Finds things", at.Description())
	assert.Equal(t, []string{"task"}, at.Parameters()["required"])
}

func TestAgentTool_Invoke(t *testing.T) {
	a := newResearcher(func(_ context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
		return core.Success("found: "+actx.Task, nil), nil
	})
	at := NewAgentTool(a)

	assert.Equal(t, "found: auth libs", at.Invoke(context.Background(), "auth libs", nil))

	actx := core.NewAgentContext("old")
	assert.Equal(t, "found: new", at.Invoke(context.Background(), "new", actx))
	assert.Equal(t, "new", actx.Task)
	assert.NotSame(t, actx, a.Received()[1])
	assert.Equal(t, "new", a.Received()[1].Task)

	assert.Equal(t, AgentToolStats{Agent: "researcher", Role: core.RoleResearcher, CallCount: 2}, at.Stats())
}

func TestAgentTool_FailureStrings(t *testing.T) {
	tests := []struct {
		name string
		fn   testutil.ExecuteFunc
		want string
	}{
		{"failed result", testutil.Fail("no", "e1", "e2"), "Agent failed: e1; e2"},
		{"error", testutil.Error(errors.New("network down")), "Agent error: network down"},
		{"panic", testutil.Panic("bad state"), "Agent error: agent researcher panicked: bad state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := NewAgentTool(newResearcher(tt.fn))
			assert.Equal(t, tt.want, at.Invoke(context.Background(), "task", nil))
			assert.EqualValues(t, 1, at.Stats().CallCount)
		})
	}
}

func TestAgentTool_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	at := NewAgentTool(newResearcher(testutil.Block(release, "late")), func(o *AgentToolOptions) {
		o.Timeout = 20 * time.Millisecond
	})

	assert.Equal(t, "Agent error: timed out after 20ms", at.Invoke(context.Background(), "task", nil))
}

func TestAgentTool_TimeoutDisabled(t *testing.T) {
	a := newResearcher(nil)
	at := NewAgentTool(a, func(o *AgentToolOptions) {
		o.Timeout = 0
	})
	assert.Equal(t, "researcher done", at.Invoke(context.Background(), "task", nil))

	actx := core.NewAgentContext("old")
	assert.Equal(t, "researcher done", at.Invoke(context.Background(), "task", actx))
	assert.Same(t, actx, a.Received()[1])
}

func TestAgentTool_TimedOutAgentWorksOnCopy(t *testing.T) {
	written := make(chan struct{})
	a := newResearcher(func(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
		<-ctx.Done()
		actx.SharedState["late"] = true
		actx.AppendResult(core.Success("late", nil))
		close(written)
		return nil, ctx.Err()
	})
	at := NewAgentTool(a, func(o *AgentToolOptions) {
		o.Timeout = 10 * time.Millisecond
	})

	actx := core.NewAgentContext("old")
	assert.Equal(t, "Agent error: timed out after 10ms", at.Invoke(context.Background(), "task", actx))

	<-written
	assert.Equal(t, "task", actx.Task)
	assert.NotContains(t, actx.SharedState, "late")
	assert.Empty(t, actx.PreviousResults)
}

func TestAgentTool_Call(t *testing.T) {
	a := newResearcher(func(_ context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
		actx.SharedState["touched"] = true
		return core.Success(actx.Task+" in "+actx.SharedState["repo"].(string), nil), nil
	})
	at := NewAgentTool(a)
	tc := newTestContext()

	out, err := at.Call(tc, map[string]any{"task": "find callers"})
	require.NoError(t, err)
	assert.Equal(t, "find callers in agentfactory", out)

	// the caller's context is isolated from the delegate
	assert.Equal(t, "parent task", tc.AgentContext().Task)
	assert.NotContains(t, tc.AgentContext().SharedState, "touched")

	_, err = at.Call(tc, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestToolkit(t *testing.T) {
	k := NewToolkit()
	k.Add(newResearcher(nil))
	coder := testutil.NewStubAgent("coder", core.RoleCoder, nil)
	k.Add(coder, func(o *AgentToolOptions) { o.Timeout = time.Second })

	assert.Len(t, k.Tools(), 2)
	assert.Equal(t, "agent_researcher", k.Tools()[0].Name())
	assert.Equal(t,
		"- agent_researcher: Delegate to researcher (researcher): Finds things\n"+
			"- agent_coder: Delegate to coder (coder): Agent coder",
		k.Descriptions())

	at, ok := k.Get("agent_coder")
	require.True(t, ok)
	at.Invoke(context.Background(), "x", nil)

	_, ok = k.Get("coder")
	assert.False(t, ok)

	stats := k.Stats()
	assert.EqualValues(t, 1, stats["agent_coder"].CallCount)
	assert.EqualValues(t, 0, stats["agent_researcher"].CallCount)
}
