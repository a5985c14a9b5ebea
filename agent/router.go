package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentfactory/core"
	"github.com/hupe1980/agentfactory/logging"
)

// ErrNoAgentAvailable is returned by Route when nothing matched and no
// default agent is configured.
var ErrNoAgentAvailable = errors.New("no agent available to handle task")

const (
	roleConfidence    = 0.6
	defaultConfidence = 0.3
	taskHistoryLimit  = 100
)

// roleKeywords is the static fallback table, consulted in this order.
var roleKeywords = []struct {
	role     core.Role
	keywords []string
}{
	{core.RoleResearcher, []string{"find", "search", "lookup", "research", "gather", "discover"}},
	{core.RoleCoder, []string{"implement", "write", "code", "fix", "create", "build", "develop"}},
	{core.RoleReviewer, []string{"review", "check", "analyze", "audit", "inspect", "evaluate"}},
	{core.RolePlanner, []string{"plan", "design", "architect", "structure", "organize"}},
	{core.RoleTester, []string{"test", "verify", "validate", "qa", "quality"}},
	{core.RoleDeployer, []string{"deploy", "release", "publish", "ship", "launch"}},
}

// RouteDecision is the outcome of routing a task.
type RouteDecision struct {
	AgentName  string         `json:"agent_name"`
	Confidence float64        `json:"confidence"` // 0.0 to 1.0
	Reason     string         `json:"reason"`
	ModelTier  core.ModelTier `json:"model_tier"`
}

// String implements fmt.Stringer.
func (d RouteDecision) String() string {
	return fmt.Sprintf("RouteDecision(%s, confidence=%.2f)", d.AgentName, d.Confidence)
}

// RouteTable is a snapshot of the router's registrations handed to custom
// routing functions.
type RouteTable struct {
	Agents   []string
	Keywords map[string][]string
	Roles    map[string]core.Role
	Tiers    map[string]core.ModelTier
}

// RouteFunc replaces the built-in routing policy entirely.
type RouteFunc func(task string, table RouteTable) (RouteDecision, error)

// RoutingEntry is one routing history record.
type RoutingEntry struct {
	Task       string         `json:"task"`
	Decision   string         `json:"decision"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	ModelTier  core.ModelTier `json:"model_tier"`
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// DefaultAgent is used when nothing matches. When empty the first
	// registered agent becomes the default.
	DefaultAgent string
	// Custom replaces the built-in keyword and role policy.
	Custom RouteFunc
	Logger logging.Logger
}

type route struct {
	agent    core.Agent
	keywords []string
	tier     core.ModelTier
}

// RouteOption configures a single registration.
type RouteOption func(r *route)

// WithKeywords sets the keywords that indicate the agent should handle a task.
func WithKeywords(keywords ...string) RouteOption {
	return func(r *route) {
		r.keywords = append([]string(nil), keywords...)
	}
}

// WithModelTier sets the cost tier of the agent (default standard).
func WithModelTier(tier core.ModelTier) RouteOption {
	return func(r *route) {
		r.tier = tier
	}
}

// Router sends each task to the single best matching agent. Matching is by
// registered keywords first, then by a static role keyword table, then the
// default agent.
//
//	router := agent.NewRouter("dispatch")
//	router.Register("researcher", researcher, agent.WithKeywords("find", "search"))
//	router.Register("coder", coder, agent.WithKeywords("implement", "fix"))
//	decision, err := router.Route("implement user authentication")
type Router struct {
	core.BaseAgent
	opts RouterOptions

	// adjust post-processes every decision; CostOptimizedRouter uses it to
	// downgrade tiers.
	adjust func(RouteDecision) RouteDecision

	mu           sync.RWMutex
	order        []string
	routes       map[string]*route
	defaultAgent string
	history      []RoutingEntry
}

// NewRouter creates an empty router.
func NewRouter(name string, optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	r := &Router{
		BaseAgent:    core.NewBaseAgent(name, core.RoleOrchestrator),
		opts:         opts,
		routes:       make(map[string]*route),
		defaultAgent: opts.DefaultAgent,
	}
	r.SetDescription("Routes each task to the most appropriate agent")
	return r
}

// Register adds agent under name. The first registration becomes the default
// agent unless one was configured.
func (r *Router) Register(name string, agent core.Agent, optFns ...RouteOption) *Router {
	rt := &route{agent: agent, tier: core.TierStandard}
	for _, fn := range optFns {
		fn(rt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.routes[name] = rt
	if r.defaultAgent == "" {
		r.defaultAgent = name
	}
	return r
}

// Unregister removes the named agent. The default agent setting is kept.
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[name]; !ok {
		return
	}
	delete(r.routes, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Agents returns the registered names in registration order.
func (r *Router) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultAgent returns the current default agent name.
func (r *Router) DefaultAgent() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAgent
}

// Route decides which agent should handle task. It does not modify the
// router and returns ErrNoAgentAvailable when no agent can be chosen.
func (r *Router) Route(task string) (RouteDecision, error) {
	d, err := r.route(task)
	if err != nil {
		return RouteDecision{}, err
	}
	if r.adjust != nil {
		d = r.adjust(d)
	}
	return d, nil
}

func (r *Router) route(task string) (RouteDecision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.opts.Custom != nil {
		return r.opts.Custom(task, r.tableLocked())
	}

	lower := strings.ToLower(task)

	best, bestScore := "", 0.0
	for _, name := range r.order {
		kws := r.routes[name].keywords
		if len(kws) == 0 {
			continue
		}
		score := float64(core.MatchCount(kws, lower)) / float64(len(kws))
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if best != "" {
		return RouteDecision{
			AgentName:  best,
			Confidence: min(bestScore*2, 1.0),
			Reason:     fmt.Sprintf("Matched keywords for %s", best),
			ModelTier:  r.routes[best].tier,
		}, nil
	}

	if d, ok := r.routeByRoleLocked(lower); ok {
		return d, nil
	}

	if r.defaultAgent != "" {
		return RouteDecision{
			AgentName:  r.defaultAgent,
			Confidence: defaultConfidence,
			Reason:     "Using default agent",
			ModelTier:  r.tierLocked(r.defaultAgent),
		}, nil
	}

	return RouteDecision{}, ErrNoAgentAvailable
}

func (r *Router) routeByRoleLocked(lower string) (RouteDecision, bool) {
	for _, entry := range roleKeywords {
		for _, kw := range entry.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			for _, name := range r.order {
				if r.routes[name].agent.Role() == entry.role {
					return RouteDecision{
						AgentName:  name,
						Confidence: roleConfidence,
						Reason:     fmt.Sprintf("Matched role %s via keyword '%s'", entry.role, kw),
						ModelTier:  r.routes[name].tier,
					}, true
				}
			}
		}
	}
	return RouteDecision{}, false
}

func (r *Router) tierLocked(name string) core.ModelTier {
	if rt, ok := r.routes[name]; ok {
		return rt.tier
	}
	return core.TierStandard
}

func (r *Router) tableLocked() RouteTable {
	t := RouteTable{
		Agents:   append([]string(nil), r.order...),
		Keywords: make(map[string][]string, len(r.order)),
		Roles:    make(map[string]core.Role, len(r.order)),
		Tiers:    make(map[string]core.ModelTier, len(r.order)),
	}
	for _, name := range r.order {
		rt := r.routes[name]
		t.Keywords[name] = append([]string(nil), rt.keywords...)
		t.Roles[name] = rt.agent.Role()
		t.Tiers[name] = rt.tier
	}
	return t
}

// Execute routes actx.Task, runs the chosen agent with the decision's model
// tier in ctx and attaches the decision under Metadata["routing"]. Routing
// configuration errors are returned as errors; agent failures are not.
func (r *Router) Execute(ctx context.Context, actx *core.AgentContext) (*core.AgentResult, error) {
	d, err := r.Route(actx.Task)
	if err != nil {
		r.opts.Logger.Error("router.route.failed", "router", r.Name(), "error", err.Error())
		return nil, fmt.Errorf("route task: %w", err)
	}

	r.mu.Lock()
	r.history = append(r.history, RoutingEntry{
		Task:       truncateRunes(actx.Task, taskHistoryLimit),
		Decision:   d.AgentName,
		Confidence: d.Confidence,
		Reason:     d.Reason,
		ModelTier:  d.ModelTier,
	})
	rt, ok := r.routes[d.AgentName]
	r.mu.Unlock()

	r.opts.Logger.Debug("router.route", "router", r.Name(), "agent", d.AgentName,
		"confidence", d.Confidence, "model_tier", d.ModelTier.String())

	if !ok {
		return core.Failure("Routing error", fmt.Sprintf("Agent '%s' not found", d.AgentName)), nil
	}

	start := time.Now()
	result, err := core.Invoke(core.WithModelTier(ctx, d.ModelTier), rt.agent, actx)
	if err != nil {
		result = exceptionResult(fmt.Sprintf("Agent %s raised exception", d.AgentName), err)
		result.SetMeta("agent_name", d.AgentName)
	}
	logging.LogAgentCall(r.opts.Logger, "router", d.AgentName, time.Since(start), result.Success, err)

	result.SetMeta("routing", map[string]any{
		"chosen_agent": d.AgentName,
		"confidence":   d.Confidence,
		"reason":       d.Reason,
		"model_tier":   d.ModelTier.String(),
	})

	return result, nil
}

// RoutingHistory returns every routing decision made by Execute.
func (r *Router) RoutingHistory() []RoutingEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RoutingEntry(nil), r.history...)
}

// AgentStats counts routing decisions per registered agent.
func (r *Router) AgentStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(map[string]int, len(r.order))
	for _, name := range r.order {
		stats[name] = 0
	}
	for _, e := range r.history {
		if _, ok := stats[e.Decision]; ok {
			stats[e.Decision]++
		}
	}
	return stats
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
