// Package agentfactory provides a high-level façade for building teams of
// agents and running them through coordination patterns. Most applications
// interact with this package by:
//  1. Creating a Factory via New() (optionally overriding the in-memory stores)
//  2. Registering worker agents (model backed or plain functions)
//  3. Building patterns (parallel, sequential, supervisor, router, handoff)
//     that share the factory's registry and logger
//  4. Running a pattern or agent on a task with Run
//
// Every Run gets a fresh AgentContext with a unique run id and is recorded in
// the session store. Runs of a project see the project's memory as shared
// state and leave their successful output behind for later recall.
package agentfactory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentfactory/agent"
	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
	"github.com/hupe1980/agentfactory/memory"
	"github.com/hupe1980/agentfactory/session"
)

// Options configures a Factory.
type Options struct {
	// Registry holds the team; a fresh registry is created when nil.
	Registry *core.Registry
	// SessionStore records every run (defaults to in-memory).
	SessionStore session.Store
	// MemoryStore holds project memory (defaults to in-memory).
	MemoryStore memory.Store
	// MaxModelCalls caps model calls per run across all workers; 0 means
	// unlimited.
	MaxModelCalls int
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Factory aggregates a team registry, stores and pattern constructors.
type Factory struct {
	opts Options
}

// New creates a Factory. Any unset store is initialized with an in-memory
// implementation.
func New(optFns ...func(o *Options)) *Factory {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		MemoryStore:  memory.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = core.NewRegistry()
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Factory{opts: opts}
}

// Register adds agents to the team.
func (f *Factory) Register(agents ...core.Agent) {
	for _, a := range agents {
		f.opts.Registry.Register(a)
	}
}

// Registry returns the team registry.
func (f *Factory) Registry() *core.Registry { return f.opts.Registry }

// Memory returns the project memory store.
func (f *Factory) Memory() memory.Store { return f.opts.MemoryStore }

// Logger returns the factory logger.
func (f *Factory) Logger() logging.Logger { return f.opts.Logger }

// NewParallel builds a ParallelAgents using the factory logger.
func (f *Factory) NewParallel(name string, optFns ...func(o *agent.ParallelOptions)) *agent.ParallelAgents {
	return agent.NewParallelAgents(name, prepend(func(o *agent.ParallelOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// NewSequential builds a SequentialAgents using the factory logger.
func (f *Factory) NewSequential(name string, optFns ...func(o *agent.SequentialOptions)) *agent.SequentialAgents {
	return agent.NewSequentialAgents(name, prepend(func(o *agent.SequentialOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// NewSupervisor builds a Supervisor whose workers are registered in the
// factory registry.
func (f *Factory) NewSupervisor(name string, optFns ...func(o *agent.SupervisorOptions)) *agent.Supervisor {
	return agent.NewSupervisor(name, f.opts.Registry,
		prepend(func(o *agent.SupervisorOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// NewRouter builds a Router using the factory logger.
func (f *Factory) NewRouter(name string, optFns ...func(o *agent.RouterOptions)) *agent.Router {
	return agent.NewRouter(name, prepend(func(o *agent.RouterOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// NewCostRouter builds a CostOptimizedRouter using the factory logger.
func (f *Factory) NewCostRouter(name string, optFns ...func(o *agent.CostRouterOptions)) *agent.CostOptimizedRouter {
	return agent.NewCostOptimizedRouter(name, prepend(func(o *agent.CostRouterOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// NewHandoff builds a Handoff resolving successors in the factory registry.
func (f *Factory) NewHandoff(optFns ...func(o *agent.HandoffOptions)) *agent.Handoff {
	return agent.NewHandoff(f.opts.Registry, prepend(func(o *agent.HandoffOptions) { o.Logger = f.opts.Logger }, optFns)...)
}

// Run executes runnable on task and records the run.
//
// Runtime failures of runnable (errors, panics) are reported as a failed
// result. Configuration errors, such as a router with no agent to choose,
// are returned as errors.
func (f *Factory) Run(
	ctx context.Context,
	runnable core.Agent,
	task string,
	ctxOpts ...func(c *core.AgentContext),
) (*core.AgentResult, error) {
	actx := core.NewAgentContext(task, ctxOpts...)
	if actx.RunID == "" {
		actx.RunID = uuid.NewString()
	}

	logger := f.opts.Logger
	if fl, ok := logger.(*logging.FactoryLogger); ok {
		logger = fl.WithRun(actx.RunID)
	}

	if actx.ProjectID != "" {
		f.seedState(actx, logger)
	}

	if f.opts.MaxModelCalls > 0 {
		ctx = core.WithModelLimiter(ctx, core.NewModelLimiter(f.opts.MaxModelCalls))
	}

	logger.Info("factory.run.start", "run_id", actx.RunID, "agent", runnable.Name(), "project_id", actx.ProjectID)

	start := time.Now()
	res, err := core.Invoke(ctx, runnable, actx)
	rec := &session.Record{
		RunID:     actx.RunID,
		ProjectID: actx.ProjectID,
		Task:      task,
		Agent:     runnable.Name(),
		StartedAt: start,
		Duration:  time.Since(start),
	}

	if err != nil {
		if isConfigError(err) {
			logger.Error("factory.run.error", "run_id", actx.RunID, "agent", runnable.Name(), "error", err.Error())
			rec.Err = err.Error()
			f.save(rec, logger)
			return nil, fmt.Errorf("run %s: %w", runnable.Name(), err)
		}
		res = core.Failure(fmt.Sprintf("Agent %s raised exception", runnable.Name()), err.Error())
	}

	rec.Result = res
	rec.Iterations = len(actx.PreviousResults)
	f.save(rec, logger)

	if actx.ProjectID != "" && res.Success && res.Output != "" {
		if _, err := f.opts.MemoryStore.Remember(actx.ProjectID, res.Output, map[string]any{
			"run_id": actx.RunID,
			"agent":  runnable.Name(),
			"task":   task,
		}); err != nil {
			logger.Warn("factory.memory.remember.failed", "run_id", actx.RunID, "error", err.Error())
		}
	}

	logging.LogPatternExecution(logger, runnable.Name(), rec.Iterations, rec.Duration, res.Success)

	return res, nil
}

// seedState copies project memory into shared state without overriding keys
// the caller set.
func (f *Factory) seedState(actx *core.AgentContext, logger logging.Logger) {
	state, err := f.opts.MemoryStore.Get(actx.ProjectID)
	if err != nil {
		logger.Warn("factory.memory.get.failed", "project_id", actx.ProjectID, "error", err.Error())
		return
	}
	for k, v := range state {
		if _, set := actx.SharedState[k]; !set {
			actx.SharedState[k] = v
		}
	}
}

func (f *Factory) save(rec *session.Record, logger logging.Logger) {
	if err := f.opts.SessionStore.Save(rec); err != nil {
		logger.Warn("factory.session.save.failed", "run_id", rec.RunID, "error", err.Error())
	}
}

// History returns every recorded run in order.
func (f *Factory) History() ([]*session.Record, error) {
	return f.opts.SessionStore.List()
}

// Record returns the record of a single run.
func (f *Factory) Record(runID string) (*session.Record, error) {
	return f.opts.SessionStore.Get(runID)
}

// Recall searches the outputs remembered for a project.
func (f *Factory) Recall(projectID, query string, limit int) ([]memory.SearchResult, error) {
	return f.opts.MemoryStore.Search(projectID, query, limit)
}

func isConfigError(err error) bool {
	return errors.Is(err, agent.ErrNoAgentAvailable)
}

func prepend[T any](first func(o *T), rest []func(o *T)) []func(o *T) {
	return append([]func(o *T){first}, rest...)
}
