package agent

// DefaultCostThreshold is the confidence below which CostOptimizedRouter
// downgrades the model tier.
const DefaultCostThreshold = 0.7

// CostRouterOptions configures a CostOptimizedRouter.
type CostRouterOptions struct {
	RouterOptions
	// CostThreshold is the minimum confidence that keeps the registered tier.
	CostThreshold float64
}

// CostOptimizedRouter is a Router that uses cheaper models when it is unsure:
// a decision with confidence below the threshold has its model tier lowered
// one step (premium to standard, standard to fast).
type CostOptimizedRouter struct {
	*Router
	threshold float64
}

// NewCostOptimizedRouter creates a cost-aware router.
func NewCostOptimizedRouter(name string, optFns ...func(o *CostRouterOptions)) *CostOptimizedRouter {
	opts := CostRouterOptions{CostThreshold: DefaultCostThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &CostOptimizedRouter{
		Router: NewRouter(name, func(o *RouterOptions) {
			*o = opts.RouterOptions
		}),
		threshold: opts.CostThreshold,
	}
	c.SetDescription("Routes each task to the most appropriate agent, preferring cheaper models")
	c.adjust = c.downgrade
	return c
}

// CostThreshold returns the configured confidence threshold.
func (c *CostOptimizedRouter) CostThreshold() float64 { return c.threshold }

func (c *CostOptimizedRouter) downgrade(d RouteDecision) RouteDecision {
	if d.Confidence < c.threshold {
		d.ModelTier = d.ModelTier.Downgrade()
	}
	return d
}
