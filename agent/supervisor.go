package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

// DecisionFunc picks the next worker from the accumulated history. An empty
// name ends the run.
type DecisionFunc func(actx *core.AgentContext, previous []*core.AgentResult) string

// RetryFunc reports whether a failed result at iteration should be retried.
type RetryFunc func(result *core.AgentResult, iteration int) bool

// DefaultRetry allows a single retry on the very first iteration of a run.
// Failures on later iterations end the run.
func DefaultRetry(_ *core.AgentResult, iteration int) bool {
	return iteration < 1
}

// workflow is the canonical order walked by DefaultDecision.
var workflow = []string{"researcher", "planner", "coder", "reviewer", "tester"}

// SupervisorLogEntry is one execution log record of a supervised run.
type SupervisorLogEntry struct {
	Iteration     int    `json:"iteration"`
	Agent         string `json:"agent"`
	Success       bool   `json:"success"`
	OutputPreview string `json:"output_preview"`
}

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	// MaxIterations bounds the number of worker invocations (default 10).
	MaxIterations int
	// Decide chooses the next worker (default: Supervisor.DefaultDecision).
	Decide DecisionFunc
	// Retry decides whether a failure is retried (default: DefaultRetry).
	Retry  RetryFunc
	Logger logging.Logger
}

// Supervisor dynamically delegates a task to named workers, one at a time,
// until its decision function reports completion.
type Supervisor struct {
	core.BaseAgent
	registry *core.Registry
	opts     SupervisorOptions

	mu      sync.RWMutex
	order   []string
	workers map[string]core.Agent
	log     []SupervisorLogEntry
}

// NewSupervisor creates a Supervisor. Workers added to it are also registered
// in reg; a nil reg gets a private registry.
func NewSupervisor(name string, reg *core.Registry, optFns ...func(o *SupervisorOptions)) *Supervisor {
	opts := SupervisorOptions{
		MaxIterations: core.DefaultMaxIterations,
		Retry:         DefaultRetry,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetry
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if reg == nil {
		reg = core.NewRegistry()
	}

	s := &Supervisor{
		BaseAgent: core.NewBaseAgent(name, core.RoleOrchestrator),
		registry:  reg,
		opts:      opts,
		workers:   make(map[string]core.Agent),
	}
	s.SetDescription("Orchestrates worker agents and decides who acts next")
	return s
}

// Registry returns the registry workers are registered in.
func (s *Supervisor) Registry() *core.Registry { return s.registry }

// AddWorker adds agent under name and registers it in the shared registry.
func (s *Supervisor) AddWorker(name string, agent core.Agent) {
	s.mu.Lock()
	if _, ok := s.workers[name]; !ok {
		s.order = append(s.order, name)
	}
	s.workers[name] = agent
	s.mu.Unlock()

	s.registry.Register(agent)
}

// RemoveWorker removes the named worker. The agent stays in the registry.
func (s *Supervisor) RemoveWorker(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[name]; !ok {
		return
	}
	delete(s.workers, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
}

// Workers returns the worker names in insertion order.
func (s *Supervisor) Workers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// ExecutionLog returns the log of the most recent run.
func (s *Supervisor) ExecutionLog() []SupervisorLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SupervisorLogEntry(nil), s.log...)
}

func (s *Supervisor) worker(name string) (core.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.workers[name]
	return a, ok
}

// Execute implements core.Agent. Worker results are appended to
// actx.PreviousResults as the run progresses. It never returns an error.
func (s *Supervisor) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	decide := s.opts.Decide
	if decide == nil {
		decide = s.DefaultDecision
	}

	start := time.Now()
	var log []SupervisorLogEntry
	defer func() {
		s.mu.Lock()
		s.log = log
		s.mu.Unlock()
	}()

	retryWorker := ""
	for iteration := 0; iteration < s.opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return core.Failure("Supervisor cancelled", err.Error()), nil
		}

		next := retryWorker
		retryWorker = ""
		if next == "" {
			next = decide(actx, actx.PreviousResults)
		}

		if next == "" {
			logging.LogPatternExecution(s.opts.Logger, "supervisor", len(log), time.Since(start), true)
			return s.compile(actx, log), nil
		}

		worker, ok := s.worker(next)
		if !ok {
			s.opts.Logger.Error("supervisor.worker.not_found", "supervisor", s.Name(), "worker", next)
			return core.Failure("Supervisor error", fmt.Sprintf("Worker '%s' not found", next)), nil
		}

		callStart := time.Now()
		result, err := core.Invoke(ctx, worker, actx)
		if err != nil {
			result = exceptionResult(fmt.Sprintf("Agent %s raised exception", next), err)
		}
		result.SetMeta("agent_name", next)
		logging.LogAgentCall(s.opts.Logger, "supervisor", next, time.Since(callStart), result.Success, err)

		log = append(log, SupervisorLogEntry{
			Iteration:     iteration,
			Agent:         next,
			Success:       result.Success,
			OutputPreview: preview(result.Output),
		})

		actx.AppendResult(result)
		actx.CurrentIteration = iteration + 1

		if !result.Success {
			if s.opts.Retry(result, iteration) {
				s.opts.Logger.Info("supervisor.retry", "supervisor", s.Name(), "worker", next, "iteration", iteration)
				retryWorker = next
				continue
			}
			logging.LogPatternExecution(s.opts.Logger, "supervisor", len(log), time.Since(start), false)
			return result, nil
		}
	}

	logging.LogPatternExecution(s.opts.Logger, "supervisor", len(log), time.Since(start), false)
	return core.Failure("Supervisor max iterations reached",
		fmt.Sprintf("Exceeded %d iterations", s.opts.MaxIterations)), nil
}

// DefaultDecision starts with "researcher", then "planner", then the first
// worker. Afterwards an explicit NextAgent on the last result wins; otherwise
// the first unused worker of researcher, planner, coder, reviewer and tester
// is chosen. Once all of them ran the run ends.
func (s *Supervisor) DefaultDecision(_ *core.AgentContext, previous []*core.AgentResult) string {
	workers := s.Workers()

	if len(previous) == 0 {
		switch {
		case slices.Contains(workers, "researcher"):
			return "researcher"
		case slices.Contains(workers, "planner"):
			return "planner"
		case len(workers) > 0:
			return workers[0]
		default:
			return ""
		}
	}

	if last := previous[len(previous)-1]; last.NextAgent != "" {
		return last.NextAgent
	}

	used := make(map[string]bool, len(previous))
	for _, r := range previous {
		if name := r.Meta("agent_name"); name != "" {
			used[name] = true
		}
	}

	for _, name := range workflow {
		if slices.Contains(workers, name) && !used[name] {
			return name
		}
	}

	return ""
}

func (s *Supervisor) compile(actx *core.AgentContext, log []SupervisorLogEntry) *core.AgentResult {
	results := actx.PreviousResults
	if len(results) == 0 {
		return core.Failure("No agents executed", "Supervisor completed without any agent execution")
	}

	outputs := make([]string, 0, len(results))
	data := make(map[string]any)
	for _, r := range results {
		if r.Output != "" {
			outputs = append(outputs, r.Output)
		}
		for k, v := range r.Data {
			data[k] = v
		}
	}

	return &core.AgentResult{
		Success: allSucceeded(results),
		Output:  strings.Join(outputs, "\n\n---\n\n"),
		Data:    data,
		Errors:  joinErrors(results),
		Metadata: map[string]any{
			"agents_used":   len(results),
			"execution_log": append([]SupervisorLogEntry(nil), log...),
		},
	}
}
