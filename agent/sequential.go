package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

// TransformFunc derives the context of the next stage from the current
// context and the result of the stage that just ran.
type TransformFunc func(actx *core.AgentContext, result *core.AgentResult) *core.AgentContext

// StageLogEntry is one execution log record of a pipeline run.
type StageLogEntry struct {
	Stage         string `json:"stage"`
	Index         int    `json:"index"`
	Success       bool   `json:"success"`
	OutputPreview string `json:"output_preview"`
}

// SequentialOptions configures SequentialAgents.
type SequentialOptions struct {
	// StopOnFailure ends the pipeline at the first failed stage (default true).
	StopOnFailure bool
	// Transform builds the next stage's context (default: DefaultTransform).
	Transform TransformFunc
	Logger    logging.Logger
}

type stage struct {
	name  string
	agent core.Agent
}

// SequentialAgents executes agents as an ordered pipeline. Each stage sees a
// context derived from its predecessor's result.
type SequentialAgents struct {
	core.BaseAgent
	opts SequentialOptions

	mu     sync.RWMutex
	stages []stage
	log    []StageLogEntry
}

// NewSequentialAgents creates an empty pipeline.
func NewSequentialAgents(name string, optFns ...func(o *SequentialOptions)) *SequentialAgents {
	opts := SequentialOptions{
		StopOnFailure: true,
		Transform:     DefaultTransform,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Transform == nil {
		opts.Transform = DefaultTransform
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &SequentialAgents{BaseAgent: core.NewBaseAgent(name, core.RoleOrchestrator), opts: opts}
	s.SetDescription("Runs agents in sequence, passing results from one stage to the next")
	return s
}

// Add appends a stage.
func (s *SequentialAgents) Add(name string, agent core.Agent) *SequentialAgents {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage{name: name, agent: agent})
	return s
}

// Insert places a stage at index, clamped to the valid range.
func (s *SequentialAgents) Insert(index int, name string, agent core.Agent) *SequentialAgents {
	s.mu.Lock()
	defer s.mu.Unlock()
	index = max(0, min(index, len(s.stages)))
	s.stages = append(s.stages, stage{})
	copy(s.stages[index+1:], s.stages[index:])
	s.stages[index] = stage{name: name, agent: agent}
	return s
}

// Remove drops every stage with the given name.
func (s *SequentialAgents) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.stages[:0]
	for _, st := range s.stages {
		if st.name != name {
			kept = append(kept, st)
		}
	}
	s.stages = kept
}

// Stages returns the stage names in execution order.
func (s *SequentialAgents) Stages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.stages))
	for i, st := range s.stages {
		out[i] = st.name
	}
	return out
}

// ExecutionLog returns the log of the most recent run.
func (s *SequentialAgents) ExecutionLog() []StageLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StageLogEntry(nil), s.log...)
}

// Execute implements core.Agent. It never returns an error.
func (s *SequentialAgents) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	s.mu.RLock()
	stages := append([]stage(nil), s.stages...)
	s.mu.RUnlock()

	if len(stages) == 0 {
		return core.Failure("Empty pipeline", "SequentialAgents has no stages configured"), nil
	}

	start := time.Now()
	current := actx
	results := make([]*core.AgentResult, 0, len(stages))
	var log []StageLogEntry

	defer func() {
		s.mu.Lock()
		s.log = log
		s.mu.Unlock()
	}()

	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			s.opts.Logger.Warn("sequential.cancelled", "pipeline", s.Name(), "stage", st.name)
			r := core.Failure(fmt.Sprintf("Pipeline cancelled at stage: %s", st.name), err.Error())
			r.SetMeta("execution_log", append([]StageLogEntry(nil), log...))
			r.SetMeta("stages_completed", len(results))
			r.SetMeta("total_stages", len(stages))
			return r, nil
		}

		callStart := time.Now()
		result, err := core.Invoke(ctx, st.agent, current)
		if err != nil {
			result = exceptionResult(fmt.Sprintf("Stage %s raised exception", st.name), err)
		}
		result.SetMeta("stage_name", st.name)
		result.SetMeta("stage_index", i)
		logging.LogAgentCall(s.opts.Logger, "sequential", st.name, time.Since(callStart), result.Success, err)

		log = append(log, StageLogEntry{
			Stage:         st.name,
			Index:         i,
			Success:       result.Success,
			OutputPreview: preview(result.Output),
		})
		results = append(results, result)

		if !result.Success && s.opts.StopOnFailure {
			logging.LogPatternExecution(s.opts.Logger, "sequential", len(results), time.Since(start), false)

			errs := append(append([]string(nil), result.Errors...),
				fmt.Sprintf("Pipeline stopped at stage %d/%d", i+1, len(stages)))
			return &core.AgentResult{
				Success: false,
				Output:  fmt.Sprintf("Pipeline failed at stage: %s", st.name),
				Data: map[string]any{
					"failed_stage":  st.name,
					"stage_results": results,
				},
				Errors:   errs,
				Metadata: map[string]any{
					"execution_log":    append([]StageLogEntry(nil), log...),
					"stages_completed": len(results),
					"total_stages":     len(stages),
				},
			}, nil
		}

		if i < len(stages)-1 {
			current = s.opts.Transform(current, result)
			current.AppendResult(result)
		}
	}

	logging.LogPatternExecution(s.opts.Logger, "sequential", len(results), time.Since(start), allSucceeded(results))

	return s.compile(results, len(stages), log), nil
}

func (s *SequentialAgents) compile(results []*core.AgentResult, total int, log []StageLogEntry) *core.AgentResult {
	last := results[len(results)-1]

	allStages := make(map[string]any, len(results))
	stageOutputs := make([]string, 0, len(results))
	for _, r := range results {
		name := r.Meta("stage_name")
		if name == "" {
			name = "unknown"
		}
		allStages[name] = r.Data
		stageOutputs = append(stageOutputs, fmt.Sprintf("### Stage: %s\n%s", name, r.Output))
	}

	return &core.AgentResult{
		Success: allSucceeded(results),
		Output:  last.Output,
		Data: map[string]any{
			"final_output": last.Data,
			"all_stages":   allStages,
		},
		Errors: joinErrors(results),
		Metadata: map[string]any{
			"stages_completed": len(results),
			"total_stages":     total,
			"execution_log":    append([]StageLogEntry(nil), log...),
			"stage_outputs":    stageOutputs,
		},
	}
}

// DefaultTransform clones actx, merges result.Data into SharedState, replaces
// the task with a non-empty string result.Data["next_task"] and advances the
// iteration counter.
func DefaultTransform(actx *core.AgentContext, result *core.AgentResult) *core.AgentContext {
	next := actx.Clone()
	for k, v := range result.Data {
		next.SharedState[k] = core.DeepCopy(v)
	}
	if task, ok := result.Data["next_task"].(string); ok && task != "" {
		next.Task = task
	}
	next.CurrentIteration++
	return next
}

// PipelineBuilder assembles a SequentialAgents with the conventional
// development stage names.
//
//	pipeline := agent.NewPipelineBuilder("feature").
//		Research(researcher).
//		Plan(planner).
//		Code(coder).
//		Review(reviewer).
//		Build()
type PipelineBuilder struct {
	pipeline *SequentialAgents
}

// NewPipelineBuilder starts a builder for a pipeline called name.
func NewPipelineBuilder(name string, optFns ...func(o *SequentialOptions)) *PipelineBuilder {
	return &PipelineBuilder{pipeline: NewSequentialAgents(name, optFns...)}
}

// Add appends a stage.
func (b *PipelineBuilder) Add(name string, agent core.Agent) *PipelineBuilder {
	b.pipeline.Add(name, agent)
	return b
}

// Research appends a "research" stage running agent.
func (b *PipelineBuilder) Research(agent core.Agent) *PipelineBuilder {
	return b.Add("research", agent)
}

// Plan appends a "plan" stage running agent.
func (b *PipelineBuilder) Plan(agent core.Agent) *PipelineBuilder {
	return b.Add("plan", agent)
}

// Code appends a "code" stage running agent.
func (b *PipelineBuilder) Code(agent core.Agent) *PipelineBuilder {
	return b.Add("code", agent)
}

// Review appends a "review" stage running agent.
func (b *PipelineBuilder) Review(agent core.Agent) *PipelineBuilder {
	return b.Add("review", agent)
}

// Test appends a "test" stage running agent.
func (b *PipelineBuilder) Test(agent core.Agent) *PipelineBuilder {
	return b.Add("test", agent)
}

// Deploy appends a "deploy" stage running agent.
func (b *PipelineBuilder) Deploy(agent core.Agent) *PipelineBuilder {
	return b.Add("deploy", agent)
}

// StopOnFailure configures whether the pipeline halts at the first failure.
func (b *PipelineBuilder) StopOnFailure(stop bool) *PipelineBuilder {
	b.pipeline.opts.StopOnFailure = stop
	return b
}

// Build returns the assembled pipeline.
func (b *PipelineBuilder) Build() *SequentialAgents {
	return b.pipeline
}
