package core

import (
	"context"
	"fmt"
)

// ModelTier is a cost/quality class attached to a routing decision.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// ParseModelTier converts text into a ModelTier. Empty text yields TierStandard.
func ParseModelTier(s string) (ModelTier, error) {
	switch ModelTier(s) {
	case "":
		return TierStandard, nil
	case TierFast, TierStandard, TierPremium:
		return ModelTier(s), nil
	default:
		return "", fmt.Errorf("unknown model tier %q", s)
	}
}

// Downgrade returns the next cheaper tier. TierFast stays TierFast.
func (t ModelTier) Downgrade() ModelTier {
	switch t {
	case TierPremium:
		return TierStandard
	case TierStandard:
		return TierFast
	default:
		return t
	}
}

// String implements fmt.Stringer.
func (t ModelTier) String() string { return string(t) }

type tierKey struct{}

// WithModelTier returns a context carrying the tier chosen for the next agent
// call. Tier-aware workers read it back with ModelTierFrom.
func WithModelTier(ctx context.Context, tier ModelTier) context.Context {
	return context.WithValue(ctx, tierKey{}, tier)
}

// ModelTierFrom returns the tier stored in ctx, if any.
func ModelTierFrom(ctx context.Context) (ModelTier, bool) {
	t, ok := ctx.Value(tierKey{}).(ModelTier)
	return t, ok
}
