package playbook

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfactory/core"
)

var (
	ErrEmptyConfig          = errors.New("playbook configures no patterns")
	ErrRouteMissingName     = errors.New("route name is required")
	ErrDuplicateName        = errors.New("duplicate name")
	ErrInvalidRole          = errors.New("invalid agent role")
	ErrInvalidTier          = errors.New("invalid model tier")
	ErrUnknownDefaultAgent  = errors.New("default agent is not a configured route")
	ErrInvalidCostThreshold = errors.New("cost threshold must be between 0 and 1")
	ErrStepMissingName      = errors.New("step name is required")
	ErrStepMissingAgent     = errors.New("step needs an agent or a role")
	ErrInvalidTimeout       = errors.New("timeout must not be negative")
	ErrInvalidMaxIterations = errors.New("max iterations must not be negative")
)

// Config is the declarative description of a playbook.
type Config struct {
	Router     RouterConfig     `json:"router" yaml:"router"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Review     ReviewConfig     `json:"review" yaml:"review"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
}

// RouterConfig describes the task router. A positive CostThreshold selects
// the cost-optimized router.
type RouterConfig struct {
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	DefaultAgent  string        `json:"default_agent,omitempty" yaml:"default_agent,omitempty"`
	CostThreshold float64       `json:"cost_threshold,omitempty" yaml:"cost_threshold,omitempty"`
	Routes        []RouteConfig `json:"routes" yaml:"routes"`
}

// RouteConfig registers one agent with the router. Agent defaults to Name.
type RouteConfig struct {
	Name      string   `json:"name" yaml:"name"`
	Agent     string   `json:"agent,omitempty" yaml:"agent,omitempty"`
	Role      string   `json:"role,omitempty" yaml:"role,omitempty"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	ModelTier string   `json:"model_tier,omitempty" yaml:"model_tier,omitempty"`
}

// StepConfig names a pipeline stage or review branch and the agent that runs
// it. When no agent with that name is registered, the first agent with Role
// is used.
type StepConfig struct {
	Name  string `json:"name" yaml:"name"`
	Agent string `json:"agent,omitempty" yaml:"agent,omitempty"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

// PipelineConfig describes the sequential development pipeline.
type PipelineConfig struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// StopOnFailure defaults to true when omitted.
	StopOnFailure *bool        `json:"stop_on_failure,omitempty" yaml:"stop_on_failure,omitempty"`
	Stages        []StepConfig `json:"stages" yaml:"stages"`
}

// ReviewConfig describes the parallel review.
type ReviewConfig struct {
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	FailFast bool          `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Branches []StepConfig  `json:"branches" yaml:"branches"`
}

// SupervisorConfig describes the supervised workflow. Zero MaxIterations
// uses the supervisor default.
type SupervisorConfig struct {
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Workers       []string `json:"workers" yaml:"workers"`
}

// Default returns the built-in playbook: a keyword router defaulting to the
// researcher, a five stage development pipeline, a quality and security
// review and a supervisor over the whole team.
func Default() *Config {
	stop := true
	return &Config{
		Router: RouterConfig{
			Name:         "task_router",
			DefaultAgent: "researcher",
			Routes: []RouteConfig{
				{Name: "researcher", Role: "researcher", ModelTier: "fast",
					Keywords: []string{"find", "search", "lookup", "research", "what is", "how to"}},
				{Name: "planner", Role: "planner", ModelTier: "standard",
					Keywords: []string{"plan", "design", "architect", "break down", "outline"}},
				{Name: "coder", Role: "coder", ModelTier: "standard",
					Keywords: []string{"implement", "write", "code", "create", "build", "fix"}},
				{Name: "reviewer", Role: "reviewer", ModelTier: "standard",
					Keywords: []string{"review", "check", "analyze", "audit", "inspect"}},
				{Name: "tester", Role: "tester", ModelTier: "fast",
					Keywords: []string{"test", "verify", "validate", "coverage"}},
			},
		},
		Pipeline: PipelineConfig{
			Name:          "development_pipeline",
			StopOnFailure: &stop,
			Stages: []StepConfig{
				{Name: "research", Agent: "researcher", Role: "researcher"},
				{Name: "plan", Agent: "planner", Role: "planner"},
				{Name: "code", Agent: "coder", Role: "coder"},
				{Name: "review", Agent: "reviewer", Role: "reviewer"},
				{Name: "test", Agent: "tester", Role: "tester"},
			},
		},
		Review: ReviewConfig{
			Name: "code_review",
			Branches: []StepConfig{
				{Name: "quality", Agent: "quality_reviewer", Role: "reviewer"},
				{Name: "security", Agent: "security_reviewer", Role: "reviewer"},
			},
		},
		Supervisor: SupervisorConfig{
			Name:          "feature_supervisor",
			MaxIterations: core.DefaultMaxIterations,
			Workers:       []string{"researcher", "planner", "coder", "reviewer", "tester"},
		},
	}
}

// Parse decodes and validates a YAML playbook.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate playbook: %w", err)
	}
	return &cfg, nil
}

// Load reads a YAML playbook from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read playbook file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for structural correctness. Sections
// without entries are skipped.
func (c *Config) Validate() error {
	if len(c.Router.Routes) == 0 && len(c.Pipeline.Stages) == 0 &&
		len(c.Review.Branches) == 0 && len(c.Supervisor.Workers) == 0 {
		return ErrEmptyConfig
	}
	if err := c.Router.validate(); err != nil {
		return fmt.Errorf("router: %w", err)
	}
	if err := validateSteps(c.Pipeline.Stages); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Review.Timeout < 0 {
		return fmt.Errorf("review: %w", ErrInvalidTimeout)
	}
	if err := validateSteps(c.Review.Branches); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if c.Supervisor.MaxIterations < 0 {
		return fmt.Errorf("supervisor: %w", ErrInvalidMaxIterations)
	}
	seen := make(map[string]bool, len(c.Supervisor.Workers))
	for i, w := range c.Supervisor.Workers {
		if w == "" {
			return fmt.Errorf("supervisor: worker %d: %w", i, ErrStepMissingName)
		}
		if seen[w] {
			return fmt.Errorf("supervisor: worker %q: %w", w, ErrDuplicateName)
		}
		seen[w] = true
	}
	return nil
}

func (r *RouterConfig) validate() error {
	if len(r.Routes) == 0 {
		return nil
	}
	if r.CostThreshold < 0 || r.CostThreshold > 1 {
		return ErrInvalidCostThreshold
	}

	names := make(map[string]bool, len(r.Routes))
	for i, rt := range r.Routes {
		if rt.Name == "" {
			return fmt.Errorf("route %d: %w", i, ErrRouteMissingName)
		}
		if names[rt.Name] {
			return fmt.Errorf("route %q: %w", rt.Name, ErrDuplicateName)
		}
		names[rt.Name] = true

		if rt.Role != "" {
			if _, err := core.ParseRole(rt.Role); err != nil {
				return fmt.Errorf("route %q: %w: %s", rt.Name, ErrInvalidRole, rt.Role)
			}
		}
		if _, err := core.ParseModelTier(rt.ModelTier); err != nil {
			return fmt.Errorf("route %q: %w: %s", rt.Name, ErrInvalidTier, rt.ModelTier)
		}
	}

	if r.DefaultAgent != "" && !names[r.DefaultAgent] {
		return fmt.Errorf("%w: %s", ErrUnknownDefaultAgent, r.DefaultAgent)
	}
	return nil
}

func validateSteps(steps []StepConfig) error {
	names := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingName)
		}
		if names[s.Name] {
			return fmt.Errorf("step %q: %w", s.Name, ErrDuplicateName)
		}
		names[s.Name] = true

		if s.Agent == "" && s.Role == "" {
			return fmt.Errorf("step %q: %w", s.Name, ErrStepMissingAgent)
		}
		if s.Role != "" {
			if _, err := core.ParseRole(s.Role); err != nil {
				return fmt.Errorf("step %q: %w: %s", s.Name, ErrInvalidRole, s.Role)
			}
		}
	}
	return nil
}
