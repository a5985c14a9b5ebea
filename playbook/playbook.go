package playbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentfactory/agent"
	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

var (
	// ErrAgentNotRegistered is returned by Build when a configured agent can
	// be resolved neither by name nor by role.
	ErrAgentNotRegistered = errors.New("agent not registered")
	// ErrNotConfigured is returned when running a part the playbook lacks.
	ErrNotConfigured = errors.New("playbook part not configured")
)

// BuildOptions configures Build.
type BuildOptions struct {
	Logger logging.Logger
}

// Playbook holds the wired patterns. Parts absent from the configuration
// are nil.
type Playbook struct {
	Router     *agent.Router
	Pipeline   *agent.SequentialAgents
	Review     *agent.ParallelAgents
	Supervisor *agent.Supervisor
}

// TaskSummary reports a routed development task.
type TaskSummary struct {
	Success   bool     `json:"success"`
	Output    string   `json:"output"`
	AgentUsed string   `json:"agent_used,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// PipelineSummary reports a feature pipeline run.
type PipelineSummary struct {
	Success         bool                  `json:"success"`
	Output          string                `json:"output"`
	StagesCompleted int                   `json:"stages_completed"`
	ExecutionLog    []agent.StageLogEntry `json:"execution_log,omitempty"`
	Errors          []string              `json:"errors,omitempty"`
}

// Build validates cfg and wires its patterns with agents from reg.
func Build(cfg *Config, reg *core.Registry, optFns ...func(o *BuildOptions)) (*Playbook, error) {
	opts := BuildOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate playbook: %w", err)
	}
	if reg == nil {
		reg = core.NewRegistry()
	}

	b := builder{reg: reg, logger: opts.Logger}
	pb := &Playbook{}

	var err error
	if len(cfg.Router.Routes) > 0 {
		if pb.Router, err = b.router(cfg.Router); err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
	}
	if len(cfg.Pipeline.Stages) > 0 {
		if pb.Pipeline, err = b.pipeline(cfg.Pipeline); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if len(cfg.Review.Branches) > 0 {
		if pb.Review, err = b.review(cfg.Review); err != nil {
			return nil, fmt.Errorf("review: %w", err)
		}
	}
	if len(cfg.Supervisor.Workers) > 0 {
		if pb.Supervisor, err = b.supervisor(cfg.Supervisor); err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
	}

	return pb, nil
}

type builder struct {
	reg    *core.Registry
	logger logging.Logger
}

func (b builder) resolve(name, role string) (core.Agent, error) {
	if name != "" {
		if a, ok := b.reg.Get(name); ok {
			return a, nil
		}
	}
	if role != "" {
		if agents := b.reg.ByRole(core.Role(role)); len(agents) > 0 {
			return agents[0], nil
		}
	}
	return nil, fmt.Errorf("%w: name=%q role=%q", ErrAgentNotRegistered, name, role)
}

func (b builder) router(cfg RouterConfig) (*agent.Router, error) {
	name := orDefault(cfg.Name, "task_router")
	routerOpts := agent.RouterOptions{DefaultAgent: cfg.DefaultAgent, Logger: b.logger}

	var r *agent.Router
	if cfg.CostThreshold > 0 {
		r = agent.NewCostOptimizedRouter(name, func(o *agent.CostRouterOptions) {
			o.RouterOptions = routerOpts
			o.CostThreshold = cfg.CostThreshold
		}).Router
	} else {
		r = agent.NewRouter(name, func(o *agent.RouterOptions) { *o = routerOpts })
	}

	for _, rt := range cfg.Routes {
		a, err := b.resolve(orDefault(rt.Agent, rt.Name), rt.Role)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rt.Name, err)
		}
		tier, err := core.ParseModelTier(rt.ModelTier)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rt.Name, err)
		}
		r.Register(rt.Name, a, agent.WithKeywords(rt.Keywords...), agent.WithModelTier(tier))
	}
	return r, nil
}

func (b builder) pipeline(cfg PipelineConfig) (*agent.SequentialAgents, error) {
	stop := true
	if cfg.StopOnFailure != nil {
		stop = *cfg.StopOnFailure
	}

	p := agent.NewSequentialAgents(orDefault(cfg.Name, "development_pipeline"), func(o *agent.SequentialOptions) {
		o.StopOnFailure = stop
		o.Logger = b.logger
	})
	for _, st := range cfg.Stages {
		a, err := b.resolve(st.Agent, st.Role)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		p.Add(st.Name, a)
	}
	return p, nil
}

func (b builder) review(cfg ReviewConfig) (*agent.ParallelAgents, error) {
	p := agent.NewParallelAgents(orDefault(cfg.Name, "code_review"), func(o *agent.ParallelOptions) {
		o.FailFast = cfg.FailFast
		if cfg.Timeout > 0 {
			o.Timeout = cfg.Timeout
		}
		o.Logger = b.logger
	})
	for _, br := range cfg.Branches {
		a, err := b.resolve(br.Agent, br.Role)
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", br.Name, err)
		}
		p.Add(br.Name, a)
	}
	return p, nil
}

func (b builder) supervisor(cfg SupervisorConfig) (*agent.Supervisor, error) {
	s := agent.NewSupervisor(orDefault(cfg.Name, "feature_supervisor"), b.reg, func(o *agent.SupervisorOptions) {
		if cfg.MaxIterations > 0 {
			o.MaxIterations = cfg.MaxIterations
		}
		o.Logger = b.logger
	})
	for _, w := range cfg.Workers {
		a, err := b.resolve(w, w)
		if err != nil {
			return nil, fmt.Errorf("worker %q: %w", w, err)
		}
		s.AddWorker(w, a)
	}
	return s, nil
}

// RunDevelopmentTask routes task to the best agent and summarizes the result.
func (p *Playbook) RunDevelopmentTask(ctx context.Context, task string) (TaskSummary, error) {
	if p.Router == nil {
		return TaskSummary{}, fmt.Errorf("router: %w", ErrNotConfigured)
	}

	res, err := p.Router.Execute(ctx, core.NewAgentContext(task))
	if err != nil {
		return TaskSummary{}, err
	}

	summary := TaskSummary{Success: res.Success, Output: res.Output, Errors: res.Errors}
	if routing, ok := res.Metadata["routing"].(map[string]any); ok {
		summary.AgentUsed, _ = routing["chosen_agent"].(string)
	}
	return summary, nil
}

// RunFeaturePipeline runs feature through the development pipeline.
func (p *Playbook) RunFeaturePipeline(ctx context.Context, feature string) (PipelineSummary, error) {
	if p.Pipeline == nil {
		return PipelineSummary{}, fmt.Errorf("pipeline: %w", ErrNotConfigured)
	}

	res, err := p.Pipeline.Execute(ctx, core.NewAgentContext(feature))
	if err != nil {
		return PipelineSummary{}, err
	}

	summary := PipelineSummary{Success: res.Success, Output: res.Output, Errors: res.Errors}
	summary.StagesCompleted, _ = res.Metadata["stages_completed"].(int)
	summary.ExecutionLog, _ = res.Metadata["execution_log"].([]agent.StageLogEntry)
	return summary, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
