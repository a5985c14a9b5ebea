package agent_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfactory/agent"
	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/internal/testutil"
)

func TestParallelAgents_Empty(t *testing.T) {
	p := agent.NewParallelAgents("review")

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No agents to execute", res.Output)
	assert.Equal(t, []string{"ParallelAgents has no agents configured"}, res.Errors)
}

func TestParallelAgents_AggregatesInRegistrationOrder(t *testing.T) {
	release := make(chan struct{})
	slow := testutil.NewStubAgent("security", core.RoleReviewer, func(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
		<-release
		return core.Success("no issues", map[string]any{"score": 9}), nil
	})
	fast := testutil.NewStubAgent("style", core.RoleReviewer, testutil.SucceedWith("clean", map[string]any{"score": 7}))

	p := agent.NewParallelAgents("review").
		Add("security", slow).
		Add("style", fast)

	go func() {
		// let the fast branch finish first
		for fast.Calls() == 0 {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	res, err := p.Execute(context.Background(), core.NewAgentContext("review the code"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "## security\nno issues\n\n## style\nclean", res.Output)
	assert.Equal(t, map[string]any{"score": 9}, res.Data["security"])
	assert.Equal(t, map[string]any{"score": 7}, res.Data["style"])
	assert.Equal(t, 2, res.Metadata["agent_count"])
	assert.Equal(t, 2, res.Metadata["success_count"])
	assert.Equal(t, 0, res.Metadata["failure_count"])
	assert.Empty(t, res.Errors)
}

func TestParallelAgents_BranchIsolation(t *testing.T) {
	mutate := func(value string) testutil.ExecuteFunc {
		return func(_ context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
			actx.SharedState["owner"] = value
			nested := actx.SharedState["nested"].(map[string]any)
			nested["touched"] = value
			actx.AppendResult(core.Success(value, nil))
			return core.Success(value, nil), nil
		}
	}
	a := testutil.NewStubAgent("a", core.RoleCoder, mutate("a"))
	b := testutil.NewStubAgent("b", core.RoleCoder, mutate("b"))

	actx := testutil.NewContextBuilder("task").
		State("nested", map[string]any{"touched": "none"}).
		Result(core.Success("earlier", nil)).
		Build()

	res, err := agent.NewParallelAgents("p").Add("a", a).Add("b", b).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.NotContains(t, actx.SharedState, "owner")
	assert.Equal(t, "none", actx.SharedState["nested"].(map[string]any)["touched"])
	assert.Len(t, actx.PreviousResults, 1)

	ra, rb := a.Received()[0], b.Received()[0]
	assert.NotSame(t, ra, rb)
	assert.Equal(t, "a", ra.SharedState["owner"])
	assert.Equal(t, "b", rb.SharedState["owner"])
}

func TestParallelAgents_BranchErrorDoesNotAbortSiblings(t *testing.T) {
	p := agent.NewParallelAgents("p").
		Add("a", testutil.NewStubAgent("a", core.RoleCoder, testutil.Succeed("A"))).
		Add("b", testutil.NewStubAgent("b", core.RoleCoder, testutil.Error(errors.New("boom")))).
		Add("c", testutil.NewStubAgent("c", core.RoleCoder, testutil.Panic("kaboom")))

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "## a\nA")
	assert.Contains(t, res.Output, "## b\nAgent b raised exception")
	assert.Contains(t, res.Output, "## c\nAgent c raised exception")
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "boom", res.Errors[0])
	assert.Contains(t, res.Errors[1], "kaboom")
	assert.Equal(t, 1, res.Metadata["success_count"])
	assert.Equal(t, 2, res.Metadata["failure_count"])
}

func TestParallelAgents_FailFastFillsCancelledSlots(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	blocked := testutil.NewStubAgent("slow", core.RoleTester, testutil.Block(release, "late"))
	failing := testutil.NewStubAgent("broken", core.RoleTester, testutil.Fail("bad", "tests failed"))

	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.FailFast = true
	}).Add("slow", blocked).Add("broken", failing)

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "## slow\nCancelled due to fail-fast\n\n## broken\nbad", res.Output)
	assert.Equal(t, []string{"Cancelled", "tests failed"}, res.Errors)
	assert.Equal(t, 2, res.Metadata["failure_count"])
}

func TestParallelAgents_FailFastUnscheduledSlots(t *testing.T) {
	failing := testutil.NewStubAgent("lint", core.RoleReviewer, testutil.Fail("bad", "lint failed"))
	pending := []*testutil.StubAgent{
		testutil.NewStubAgent("style", core.RoleReviewer, nil),
		testutil.NewStubAgent("security", core.RoleReviewer, nil),
		testutil.NewStubAgent("perf", core.RoleReviewer, nil),
	}

	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.FailFast = true
		o.MaxConcurrency = 1
	}).Add("lint", failing)
	for _, a := range pending {
		p.Add(a.Name(), a)
	}

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "## lint\nbad\n\n"+
		"## style\nCancelled due to fail-fast\n\n"+
		"## security\nCancelled due to fail-fast\n\n"+
		"## perf\nCancelled due to fail-fast", res.Output)
	assert.Equal(t, []string{"lint failed", "Cancelled", "Cancelled", "Cancelled"}, res.Errors)
	assert.Equal(t, 4, res.Metadata["failure_count"])
	assert.Equal(t, 1, failing.Calls())
	for _, a := range pending {
		assert.Zero(t, a.Calls(), a.Name())
	}
}

func TestParallelAgents_CallerOwnsContextAfterReturn(t *testing.T) {
	state := make(map[string]any, 2000)
	for i := range 2000 {
		state[fmt.Sprintf("key-%d", i)] = i
	}
	actx := core.NewAgentContext("task", func(c *core.AgentContext) { c.SharedState = state })

	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.FailFast = true
	}).Add("broken", testutil.NewStubAgent("broken", core.RoleTester, testutil.Fail("bad", "failed")))

	var others []*testutil.StubAgent
	for i := range 30 {
		name := fmt.Sprintf("worker-%d", i)
		a := testutil.NewStubAgent(name, core.RoleTester, testutil.Block(nil, "late"))
		others = append(others, a)
		p.Add(name, a)
	}

	res, err := p.Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.False(t, res.Success)

	// the caller continues with its own context right away
	for i := range 100 {
		actx.SharedState[fmt.Sprintf("after-%d", i)] = i
	}
	actx.AppendResult(core.Success("next", nil))

	for _, a := range others {
		for _, received := range a.Received() {
			assert.NotSame(t, actx, received)
			assert.NotContains(t, received.SharedState, "after-0")
			assert.Empty(t, received.PreviousResults)
		}
	}
}

func TestParallelAgents_TimeoutCollapse(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.Timeout = 50 * time.Millisecond
	}).
		Add("fast", testutil.NewStubAgent("fast", core.RoleCoder, testutil.Succeed("done"))).
		Add("slow", testutil.NewStubAgent("slow", core.RoleCoder, testutil.Block(release, "late")))

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "Parallel execution timed out", res.Output)
	assert.Equal(t, []string{"Timeout after 50ms"}, res.Errors)
}

func TestParallelAgents_TimeoutPartial(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fast := testutil.NewStubAgent("fast", core.RoleCoder, testutil.Succeed("done"))
	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.Timeout = 100 * time.Millisecond
		o.TimeoutPolicy = agent.TimeoutPartial
	}).
		Add("fast", fast).
		Add("slow", testutil.NewStubAgent("slow", core.RoleCoder, testutil.Block(release, "late")))

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "## fast\ndone\n\n## slow\nTimed out after 100ms", res.Output)
	assert.Equal(t, []string{"Timeout"}, res.Errors)
	assert.Equal(t, 1, res.Metadata["success_count"])
}

func TestParallelAgents_MaxConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	work := func(ctx context.Context, _ *core.AgentContext) (*core.AgentResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return core.Success("ok", nil), nil
	}

	p := agent.NewParallelAgents("p", func(o *agent.ParallelOptions) {
		o.MaxConcurrency = 2
	})
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		p.Add(name, testutil.NewStubAgent(name, core.RoleCoder, work))
	}

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Metadata["agent_count"])
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelAgents_ParentCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	// ignores ctx so the slot can only be filled by the cancellation path
	slow := testutil.NewStubAgent("slow", core.RoleCoder, func(context.Context, *core.AgentContext) (*core.AgentResult, error) {
		<-release
		return core.Success("late", nil), nil
	})

	go func() {
		for slow.Calls() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := agent.NewParallelAgents("p").Add("slow", slow).Execute(ctx, core.NewAgentContext("task"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "## slow\nCancelled", res.Output)
}

func TestParallelAgents_AddReplacesAndRemove(t *testing.T) {
	first := testutil.NewStubAgent("x", core.RoleCoder, testutil.Succeed("first"))
	second := testutil.NewStubAgent("x", core.RoleCoder, testutil.Succeed("second"))

	p := agent.NewParallelAgents("p").
		Add("x", first).
		Add("y", testutil.NewStubAgent("y", core.RoleCoder, nil)).
		Add("x", second)
	assert.Equal(t, []string{"x", "y"}, p.Agents())

	p.Remove("y")
	p.Remove("unknown")
	assert.Equal(t, []string{"x"}, p.Agents())

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)
	assert.Equal(t, "## x\nsecond", res.Output)
	assert.Equal(t, 0, first.Calls())
}

func TestParallelAgents_CustomAggregator(t *testing.T) {
	count := func(results []*core.AgentResult) *core.AgentResult {
		return core.Success("merged", map[string]any{"n": len(results)})
	}
	p := agent.FanOutFanIn("fan", []core.Agent{
		testutil.NewStubAgent("one", core.RoleResearcher, nil),
		testutil.NewStubAgent("", core.RoleResearcher, nil),
	}, count)

	assert.Equal(t, []string{"one", "agent_1"}, p.Agents())
	assert.Equal(t, core.RoleOrchestrator, p.Role())

	res, err := p.Execute(context.Background(), core.NewAgentContext("task"))
	require.NoError(t, err)
	assert.Equal(t, "merged", res.Output)
	assert.Equal(t, 2, res.Data["n"])
}

func TestDefaultAggregator_UnknownAgentName(t *testing.T) {
	res := agent.DefaultAggregator([]*core.AgentResult{core.Success("x", nil)})
	assert.Equal(t, "## unknown\nx", res.Output)
	assert.True(t, res.Success)
}
