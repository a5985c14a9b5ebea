package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/internal/util"
	"github.com/hupe1980/agentfactory/logging"
	"github.com/hupe1980/agentfactory/model"
	"github.com/hupe1980/agentfactory/tool"
)

const (
	// DefaultMaxToolRounds bounds how many tool-calling turns a ModelWorker
	// runs before giving up.
	DefaultMaxToolRounds = 5
	// DefaultHistoryWindow is how many previous results are shown to the model.
	DefaultHistoryWindow = 3

	defaultInstruction = "You are {{.agent_name}}, a {{.role}} agent. Complete the task you are given."
)

// ModelWorkerOptions configures a ModelWorker.
type ModelWorkerOptions struct {
	// Instruction is the system prompt, rendered with text/template. The data
	// holds agent_name, role, task, project_id and shared_state.
	Instruction string
	// TierModels maps a model tier to the model used when a router selected
	// that tier. Unmapped tiers use the default model.
	TierModels map[core.ModelTier]model.Model
	Tools      []tool.Tool
	// MaxToolRounds limits model turns that request tool calls.
	MaxToolRounds int
	// HistoryWindow is the number of most recent previous results included in
	// the prompt. Zero disables history.
	HistoryWindow int
	Description   string
	Keywords      []string
	Stream        bool
	Logger        logging.Logger
}

// ModelWorker is an agent backed by a language model.
type ModelWorker struct {
	core.BaseAgent
	llm  model.Model
	opts ModelWorkerOptions

	tools map[string]tool.Tool
	defs  []model.ToolDefinition
}

// NewModelWorker creates a model-backed agent.
func NewModelWorker(name string, role core.Role, llm model.Model, optFns ...func(o *ModelWorkerOptions)) *ModelWorker {
	opts := ModelWorkerOptions{
		Instruction:   defaultInstruction,
		MaxToolRounds: DefaultMaxToolRounds,
		HistoryWindow: DefaultHistoryWindow,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}

	w := &ModelWorker{
		BaseAgent: core.NewBaseAgent(name, role),
		llm:       llm,
		opts:      opts,
		tools:     make(map[string]tool.Tool, len(opts.Tools)),
	}
	if opts.Description != "" {
		w.SetDescription(opts.Description)
	}
	if len(opts.Keywords) > 0 {
		w.SetCapabilities(opts.Keywords...)
	}

	for _, t := range opts.Tools {
		if _, dup := w.tools[t.Name()]; !dup {
			w.defs = append(w.defs, model.NewFunctionTool(t.Name(), t.Description(), t.Parameters()))
		}
		w.tools[t.Name()] = t
	}

	return w
}

// Tools returns the names of the advertised tools in registration order.
func (w *ModelWorker) Tools() []string {
	names := make([]string, len(w.defs))
	for i, d := range w.defs {
		names[i] = d.Function.Name
	}
	return names
}

// Model returns the model used for tier, falling back to the default model.
func (w *ModelWorker) Model(tier core.ModelTier) model.Model {
	if m, ok := w.opts.TierModels[tier]; ok && m != nil {
		return m
	}
	return w.llm
}

// Execute implements core.Agent. Model errors and an exhausted model call
// budget (core.WithModelLimiter) are returned as errors; the coordinating
// pattern turns them into failed results.
func (w *ModelWorker) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	tier, hasTier := core.ModelTierFrom(ctx)
	llm := w.Model(tier)
	if llm == nil {
		return nil, fmt.Errorf("worker %s: no model configured", w.Name())
	}
	if !hasTier {
		tier = core.TierStandard
	}

	instruction, err := w.instruction(actx)
	if err != nil {
		return nil, fmt.Errorf("worker %s: %w", w.Name(), err)
	}

	req := model.Request{
		Instructions: instruction,
		Contents:     []model.Content{model.NewTextContent(model.RoleUser, w.prompt(actx))},
		Tools:        w.defs,
		Stream:       w.opts.Stream,
	}

	newContext := func(callID string) *tool.Context {
		return tool.NewContext(ctx, callID, func(o *tool.ContextOptions) {
			o.AgentName = w.Name()
			o.AgentContext = actx
			o.Logger = w.opts.Logger
		})
	}

	info := llm.Info()
	limiter, limited := core.ModelLimiterFrom(ctx)
	toolCalls := 0

	for round := 0; ; round++ {
		if limited {
			if err := limiter.Increment(); err != nil {
				return nil, fmt.Errorf("worker %s: %w", w.Name(), err)
			}
		}

		start := time.Now()
		resp, err := model.Collect(ctx, llm, req)
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		logging.LogModelCall(w.opts.Logger, info.Name, tokens, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("worker %s: generate: %w", w.Name(), err)
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			return w.result(resp.Content.Text(), "", info, tier, toolCalls), nil
		}

		if round >= w.opts.MaxToolRounds {
			res := core.Failure(
				fmt.Sprintf("Tool call limit reached after %d rounds", w.opts.MaxToolRounds),
				fmt.Sprintf("Exceeded %d tool rounds", w.opts.MaxToolRounds),
			)
			res.SetMeta("agent_name", w.Name())
			return res, nil
		}

		toolCalls += len(calls)
		resp.Content.Role = model.RoleAssistant
		req.Contents = append(req.Contents, resp.Content)

		responses, transfer := executeCalls(newContext, w.Name(), w.tools, calls, w.opts.Logger)
		req.Contents = append(req.Contents, responses)

		if transfer != "" {
			output := resp.Content.Text()
			if output == "" {
				output = fmt.Sprintf("Transferring to %s", transfer)
			}
			return w.result(output, transfer, info, tier, toolCalls), nil
		}
	}
}

func (w *ModelWorker) result(output, next string, info model.Info, tier core.ModelTier, toolCalls int) *core.AgentResult {
	res := core.Success(output, map[string]any{
		"model":      info.Name,
		"provider":   info.Provider,
		"model_tier": string(tier),
		"tool_calls": toolCalls,
	})
	res.NextAgent = next
	res.SetMeta("agent_name", w.Name())
	return res
}

func (w *ModelWorker) instruction(actx *core.AgentContext) (string, error) {
	return util.RenderTemplate(w.opts.Instruction, map[string]any{
		"agent_name":   w.Name(),
		"role":         string(w.Role()),
		"task":         actx.Task,
		"project_id":   actx.ProjectID,
		"shared_state": actx.SharedState,
	})
}

// prompt renders the task preceded by the most recent previous results.
func (w *ModelWorker) prompt(actx *core.AgentContext) string {
	history := actx.PreviousResults
	if w.opts.HistoryWindow <= 0 || len(history) == 0 {
		return actx.Task
	}
	if len(history) > w.opts.HistoryWindow {
		history = history[len(history)-w.opts.HistoryWindow:]
	}

	var sb strings.Builder
	sb.WriteString("Previous results:\n")
	for _, r := range history {
		if r == nil {
			continue
		}
		name := r.Meta("agent_name")
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", name, r.Output)
	}
	sb.WriteString("\nTask: ")
	sb.WriteString(actx.Task)
	return sb.String()
}
