package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

const (
	// DefaultParallelTimeout is the overall wall-clock budget of a fan-out.
	DefaultParallelTimeout = 120 * time.Second

	// CancelledOutput is the output of every branch slot filled after a
	// fail-fast cancellation.
	CancelledOutput = "Cancelled due to fail-fast"
)

// TimeoutPolicy selects what ParallelAgents reports when the overall timeout
// elapses before every branch finished.
type TimeoutPolicy int

const (
	// TimeoutCollapse discards completed branch output and returns a single
	// timeout failure.
	TimeoutCollapse TimeoutPolicy = iota
	// TimeoutPartial keeps completed branch results, fills unfinished slots
	// with timeout placeholders and aggregates them.
	TimeoutPartial
)

// Aggregator merges ordered branch results into one result.
type Aggregator func(results []*core.AgentResult) *core.AgentResult

// errFailFast cancels the errgroup context once a branch failed.
var errFailFast = errors.New("fail-fast: branch failed")

// ParallelOptions configures ParallelAgents.
type ParallelOptions struct {
	// Aggregator merges branch results (default: DefaultAggregator).
	Aggregator Aggregator
	// Timeout bounds the whole fan-out; zero or negative disables it.
	Timeout time.Duration
	// FailFast cancels pending branches on the first observed failure.
	FailFast bool
	// TimeoutPolicy selects the timeout reporting behavior.
	TimeoutPolicy TimeoutPolicy
	// MaxConcurrency limits how many branches run at once; 0 means unbounded.
	MaxConcurrency int
	Logger         logging.Logger
}

type branch struct {
	name  string
	agent core.Agent
}

// ParallelAgents executes several agents concurrently against isolated copies
// of the caller's context and aggregates their results in registration order.
//
// Key features:
//   - Each branch receives a deep copy of PreviousResults and SharedState
//   - A failing or panicking branch never aborts its siblings unless FailFast is set
//   - FailFast cancels pending branches and fills their slots with
//     deterministic "Cancelled due to fail-fast" results
//   - Overall timeout with a configurable reporting policy
type ParallelAgents struct {
	core.BaseAgent
	opts ParallelOptions

	mu       sync.RWMutex
	branches []branch
}

// NewParallelAgents creates an empty fan-out coordinator.
func NewParallelAgents(name string, optFns ...func(o *ParallelOptions)) *ParallelAgents {
	opts := ParallelOptions{
		Aggregator: DefaultAggregator,
		Timeout:    DefaultParallelTimeout,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Aggregator == nil {
		opts.Aggregator = DefaultAggregator
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	p := &ParallelAgents{BaseAgent: core.NewBaseAgent(name, core.RoleOrchestrator), opts: opts}
	p.SetDescription("Runs agents concurrently and aggregates their results")
	return p
}

// Add registers agent under name; re-adding a name replaces the agent in place.
func (p *ParallelAgents) Add(name string, agent core.Agent) *ParallelAgents {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.branches {
		if p.branches[i].name == name {
			p.branches[i].agent = agent
			return p
		}
	}
	p.branches = append(p.branches, branch{name: name, agent: agent})
	return p
}

// Remove drops the named branch.
func (p *ParallelAgents) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.branches {
		if p.branches[i].name == name {
			p.branches = append(p.branches[:i], p.branches[i+1:]...)
			return
		}
	}
}

// Agents returns the branch names in registration order.
func (p *ParallelAgents) Agents() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.branches))
	for i, b := range p.branches {
		out[i] = b.name
	}
	return out
}

// Execute implements core.Agent. It never returns an error.
func (p *ParallelAgents) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	p.mu.RLock()
	branches := append([]branch(nil), p.branches...)
	p.mu.RUnlock()

	if len(branches) == 0 {
		return core.Failure("No agents to execute", "ParallelAgents has no agents configured"), nil
	}

	start := time.Now()

	results, timedOut := p.fanOut(ctx, branches, actx)
	if timedOut && p.opts.TimeoutPolicy == TimeoutCollapse {
		p.opts.Logger.Warn("parallel.timeout", "parallel", p.Name(), "timeout", p.opts.Timeout.String())
		logging.LogPatternExecution(p.opts.Logger, "parallel", len(branches), time.Since(start), false)
		return core.Failure("Parallel execution timed out", fmt.Sprintf("Timeout after %s", p.opts.Timeout)), nil
	}

	aggregated := p.opts.Aggregator(results)
	logging.LogPatternExecution(p.opts.Logger, "parallel", len(branches), time.Since(start), aggregated.Success)

	return aggregated, nil
}

// fanOut launches every branch and returns one result per branch in
// registration order. timedOut reports whether the overall budget elapsed.
func (p *ParallelAgents) fanOut(ctx context.Context, branches []branch, actx *core.AgentContext) ([]*core.AgentResult, bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timeout <-chan time.Time
	if p.opts.Timeout > 0 {
		timer := time.NewTimer(p.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	fan := newFanIn(len(branches), p.opts.FailFast)

	g, gctx := errgroup.WithContext(runCtx)
	if p.opts.MaxConcurrency > 0 {
		g.SetLimit(p.opts.MaxConcurrency)
	}

	// Every branch copy is taken before dispatch; once fanOut returns the
	// caller owns actx again while late branches may still be running.
	clones := make([]*core.AgentContext, len(branches))
	for i := range branches {
		clones[i] = actx.Clone()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, b := range branches {
			if gctx.Err() != nil {
				break
			}
			branchCtx := clones[i]
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil // never started
				}
				r := p.runBranch(gctx, b, branchCtx)
				if fan.offer(i, r) && p.opts.FailFast && !r.Success {
					p.opts.Logger.Debug("parallel.fail_fast", "parallel", p.Name(), "agent", b.name)
					return errFailFast
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	timedOut := false
	select {
	case <-done:
	case <-fan.failed:
		cancel()
	case <-timeout:
		cancel()
		timedOut = true
	case <-ctx.Done():
		cancel()
	}

	results := fan.finish(func(i int) *core.AgentResult {
		var r *core.AgentResult
		switch {
		case fan.failedFast():
			r = core.Failure(CancelledOutput, "Cancelled")
		case timedOut:
			r = core.Failure(fmt.Sprintf("Timed out after %s", p.opts.Timeout), "Timeout")
		default:
			r = core.Failure("Cancelled", cancelReason(ctx))
		}
		r.SetMeta("agent_name", branches[i].name)
		return r
	})

	return results, timedOut && !fan.failedFast()
}

func cancelReason(ctx context.Context) string {
	if err := context.Cause(ctx); err != nil {
		return err.Error()
	}
	return "Cancelled"
}

// runBranch executes one branch, converting errors and panics into a failed
// result tagged with the branch name.
func (p *ParallelAgents) runBranch(ctx context.Context, b branch, actx *core.AgentContext) *core.AgentResult {
	start := time.Now()

	r, err := core.Invoke(ctx, b.agent, actx)
	if err != nil {
		r = exceptionResult(fmt.Sprintf("Agent %s raised exception", b.name), err)
	} else {
		r = r.Clone()
	}
	r.SetMeta("agent_name", b.name)

	logging.LogAgentCall(p.opts.Logger, "parallel", b.name, time.Since(start), r.Success, err)

	return r
}

// fanIn buffers branch results by index. Once closed, late results are
// discarded so cancelled slots stay deterministic.
type fanIn struct {
	mu       sync.Mutex
	results  []*core.AgentResult
	closed   bool
	failFast bool
	tripped  bool
	failed   chan struct{}
}

func newFanIn(n int, failFast bool) *fanIn {
	return &fanIn{results: make([]*core.AgentResult, n), failFast: failFast, failed: make(chan struct{})}
}

// offer stores r at slot i. It reports false when the fan-in is closed.
func (f *fanIn) offer(i int, r *core.AgentResult) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.results[i] = r
	if f.failFast && !r.Success {
		f.closed = true
		f.tripped = true
		close(f.failed)
	}
	return true
}

func (f *fanIn) failedFast() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tripped
}

// finish closes the fan-in and returns the results with empty slots filled by fill.
func (f *fanIn) finish(fill func(i int) *core.AgentResult) []*core.AgentResult {
	f.mu.Lock()
	f.closed = true
	out := append([]*core.AgentResult(nil), f.results...)
	f.mu.Unlock()

	for i := range out {
		if out[i] == nil {
			out[i] = fill(i)
		}
	}
	return out
}

// DefaultAggregator concatenates "## <agent_name>" output blocks, keys data by
// agent name, concatenates errors and succeeds only if every branch succeeded.
func DefaultAggregator(results []*core.AgentResult) *core.AgentResult {
	outputs := make([]string, 0, len(results))
	data := make(map[string]any, len(results))
	successCount := 0

	for _, r := range results {
		name := r.Meta("agent_name")
		if name == "" {
			name = "unknown"
		}
		outputs = append(outputs, fmt.Sprintf("## %s\n%s", name, r.Output))
		data[name] = r.Data
		if r.Success {
			successCount++
		}
	}

	return &core.AgentResult{
		Success: successCount == len(results),
		Output:  strings.Join(outputs, "\n\n"),
		Data:    data,
		Errors:  joinErrors(results),
		Metadata: map[string]any{
			"agent_count":   len(results),
			"success_count": successCount,
			"failure_count": len(results) - successCount,
		},
	}
}

// FanOutFanIn builds a ParallelAgents over agents, naming each branch after
// its agent (or agent_<i> when the name is empty).
func FanOutFanIn(name string, agents []core.Agent, aggregator Aggregator) *ParallelAgents {
	p := NewParallelAgents(name, func(o *ParallelOptions) { o.Aggregator = aggregator })
	for i, a := range agents {
		branchName := a.Name()
		if branchName == "" {
			branchName = fmt.Sprintf("agent_%d", i)
		}
		p.Add(branchName, a)
	}
	return p
}
