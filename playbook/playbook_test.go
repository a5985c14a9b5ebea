package playbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/internal/testutil"
)

func teamRegistry(extra ...core.Agent) *core.Registry {
	reg := core.NewRegistry()
	reg.Register(testutil.NewStubAgent("researcher", core.RoleResearcher, nil))
	reg.Register(testutil.NewStubAgent("planner", core.RolePlanner, nil))
	reg.Register(testutil.NewStubAgent("coder", core.RoleCoder, nil))
	reg.Register(testutil.NewStubAgent("reviewer", core.RoleReviewer, nil))
	reg.Register(testutil.NewStubAgent("tester", core.RoleTester, nil))
	for _, a := range extra {
		reg.Register(a)
	}
	return reg
}

const sampleYAML = `
router:
  name: dispatch
  default_agent: researcher
  cost_threshold: 0.7
  routes:
    - name: researcher
      role: researcher
      keywords: [find, search]
      model_tier: fast
    - name: coder
      role: coder
      keywords: [implement, fix]
      model_tier: standard
pipeline:
  stop_on_failure: false
  stages:
    - name: plan
      agent: planner
    - name: code
      role: coder
review:
  fail_fast: true
  timeout: 30s
  branches:
    - name: quality
      agent: reviewer
supervisor:
  max_iterations: 4
  workers: [coder, tester]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "dispatch", cfg.Router.Name)
	assert.InDelta(t, 0.7, cfg.Router.CostThreshold, 1e-9)
	require.Len(t, cfg.Router.Routes, 2)
	assert.Equal(t, []string{"implement", "fix"}, cfg.Router.Routes[1].Keywords)

	require.NotNil(t, cfg.Pipeline.StopOnFailure)
	assert.False(t, *cfg.Pipeline.StopOnFailure)
	assert.Equal(t, "coder", cfg.Pipeline.Stages[1].Role)

	assert.True(t, cfg.Review.FailFast)
	assert.Equal(t, 30*time.Second, cfg.Review.Timeout)
	assert.Equal(t, 4, cfg.Supervisor.MaxIterations)
	assert.Equal(t, []string{"coder", "tester"}, cfg.Supervisor.Workers)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pipeline.Stages, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("router: [unclosed"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"empty", Config{}, ErrEmptyConfig},
		{"route without name", Config{Router: RouterConfig{Routes: []RouteConfig{{}}}}, ErrRouteMissingName},
		{"duplicate route", Config{Router: RouterConfig{Routes: []RouteConfig{{Name: "a"}, {Name: "a"}}}}, ErrDuplicateName},
		{"bad role", Config{Router: RouterConfig{Routes: []RouteConfig{{Name: "a", Role: "chef"}}}}, ErrInvalidRole},
		{"bad tier", Config{Router: RouterConfig{Routes: []RouteConfig{{Name: "a", ModelTier: "ultra"}}}}, ErrInvalidTier},
		{"unknown default", Config{Router: RouterConfig{DefaultAgent: "b", Routes: []RouteConfig{{Name: "a"}}}}, ErrUnknownDefaultAgent},
		{"threshold", Config{Router: RouterConfig{CostThreshold: 1.5, Routes: []RouteConfig{{Name: "a"}}}}, ErrInvalidCostThreshold},
		{"stage without name", Config{Pipeline: PipelineConfig{Stages: []StepConfig{{Agent: "x"}}}}, ErrStepMissingName},
		{"stage without agent", Config{Pipeline: PipelineConfig{Stages: []StepConfig{{Name: "x"}}}}, ErrStepMissingAgent},
		{"negative timeout", Config{Review: ReviewConfig{Timeout: -time.Second, Branches: []StepConfig{{Name: "q", Agent: "r"}}}}, ErrInvalidTimeout},
		{"negative iterations", Config{Supervisor: SupervisorConfig{MaxIterations: -1, Workers: []string{"coder"}}}, ErrInvalidMaxIterations},
		{"duplicate worker", Config{Supervisor: SupervisorConfig{Workers: []string{"coder", "coder"}}}, ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.want)
		})
	}

	require.NoError(t, Default().Validate())
}

func TestBuild_Default(t *testing.T) {
	pb, err := Build(Default(), teamRegistry())
	require.NoError(t, err)

	require.NotNil(t, pb.Router)
	assert.Equal(t, []string{"researcher", "planner", "coder", "reviewer", "tester"}, pb.Router.Agents())
	assert.Equal(t, "researcher", pb.Router.DefaultAgent())

	require.NotNil(t, pb.Pipeline)
	assert.Equal(t, []string{"research", "plan", "code", "review", "test"}, pb.Pipeline.Stages())

	require.NotNil(t, pb.Review)
	assert.Equal(t, []string{"quality", "security"}, pb.Review.Agents())

	require.NotNil(t, pb.Supervisor)
	assert.Equal(t, []string{"researcher", "planner", "coder", "reviewer", "tester"}, pb.Supervisor.Workers())
}

func TestBuild_NilConfigUsesDefault(t *testing.T) {
	pb, err := Build(nil, teamRegistry())
	require.NoError(t, err)
	assert.NotNil(t, pb.Pipeline)
}

func TestBuild_MissingAgent(t *testing.T) {
	reg := core.NewRegistry()
	reg.Register(testutil.NewStubAgent("researcher", core.RoleResearcher, nil))

	_, err := Build(Default(), reg)
	assert.ErrorIs(t, err, ErrAgentNotRegistered)
}

func TestBuild_PartialConfig(t *testing.T) {
	cfg := &Config{Pipeline: PipelineConfig{Stages: []StepConfig{{Name: "code", Role: "coder"}}}}
	pb, err := Build(cfg, teamRegistry())
	require.NoError(t, err)

	assert.Nil(t, pb.Router)
	assert.Nil(t, pb.Review)
	assert.Nil(t, pb.Supervisor)

	_, err = pb.RunDevelopmentTask(context.Background(), "implement it")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRunDevelopmentTask(t *testing.T) {
	pb, err := Build(Default(), teamRegistry())
	require.NoError(t, err)

	summary, err := pb.RunDevelopmentTask(context.Background(), "implement user login")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, "coder", summary.AgentUsed)
	assert.Equal(t, "coder done", summary.Output)
}

func TestRunDevelopmentTask_CostRouterDowngradesTier(t *testing.T) {
	var seen core.ModelTier
	coder := testutil.NewStubAgent("fast_coder", core.RoleCoder, func(ctx context.Context, _ *core.AgentContext) (*core.AgentResult, error) {
		seen, _ = core.ModelTierFrom(ctx)
		return core.Success("patched", nil), nil
	})

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	cfg.Router.Routes[1].Agent = "fast_coder"

	pb, err := Build(cfg, teamRegistry(coder))
	require.NoError(t, err)

	summary, err := pb.RunDevelopmentTask(context.Background(), "implement login")
	require.NoError(t, err)

	assert.Equal(t, "coder", summary.AgentUsed)
	assert.Equal(t, "patched", summary.Output)
	// One of two keywords matched: confidence 1.0 is not below 0.7, tier kept.
	assert.Equal(t, core.TierStandard, seen)

	// A role table match has confidence 0.6 and drops standard to fast.
	summary, err = pb.RunDevelopmentTask(context.Background(), "write a parser")
	require.NoError(t, err)
	assert.Equal(t, "coder", summary.AgentUsed)
	assert.Equal(t, core.TierFast, seen)
}

func TestRunFeaturePipeline(t *testing.T) {
	pb, err := Build(Default(), teamRegistry())
	require.NoError(t, err)

	summary, err := pb.RunFeaturePipeline(context.Background(), "add dark mode")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 5, summary.StagesCompleted)
	require.Len(t, summary.ExecutionLog, 5)
	assert.Equal(t, "test", summary.ExecutionLog[4].Stage)
	assert.Equal(t, "tester done", summary.Output)
}

func TestRunFeaturePipeline_StopsOnFailure(t *testing.T) {
	reg := teamRegistry(testutil.NewStubAgent("planner", core.RolePlanner, testutil.Fail("no plan", "ambiguous")))

	pb, err := Build(Default(), reg)
	require.NoError(t, err)

	summary, err := pb.RunFeaturePipeline(context.Background(), "add dark mode")
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, "Pipeline failed at stage: plan", summary.Output)
	assert.Equal(t, 2, summary.StagesCompleted)
	assert.Len(t, summary.ExecutionLog, 2)
	assert.Equal(t, []string{"ambiguous", "Pipeline stopped at stage 2/5"}, summary.Errors)
}
