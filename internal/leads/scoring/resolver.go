package scoring

import (
	"context"

	"github.com/google/uuid"
)

// RuleSource looks up the stored weight override for a team scope.
// found is false when no rule exists for the team or organization-wide;
// the resolver then uses the defaults unmodified.
type RuleSource interface {
	FindEffectiveOverride(ctx context.Context, teamID *uuid.UUID) (raw []byte, found bool, err error)
}

// Resolver produces the effective weight table for a lead's team by
// layering the stored override, if any, onto the defaults.
type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// RuleCache memoizes resolved weight tables per team for the duration of
// one operation, typically an import batch. It is not safe for concurrent
// use and must not outlive the operation; rule edits apply to the next one.
type RuleCache struct {
	entries map[string]WeightConfig
}

func NewRuleCache() *RuleCache {
	return &RuleCache{entries: make(map[string]WeightConfig)}
}

func cacheKey(teamID *uuid.UUID) string {
	if teamID == nil {
		return DefaultKey
	}
	return teamID.String()
}

// Resolve returns the effective weights for a team. A nil cache disables
// memoization.
func (r *Resolver) Resolve(ctx context.Context, teamID *uuid.UUID, cache *RuleCache) (WeightConfig, error) {
	key := cacheKey(teamID)
	if cache != nil {
		if weights, ok := cache.entries[key]; ok {
			return weights, nil
		}
	}

	weights := DefaultWeights()
	raw, found, err := r.rules.FindEffectiveOverride(ctx, teamID)
	if err != nil {
		return WeightConfig{}, err
	}
	if found {
		override, err := ParseOverride(raw)
		if err != nil {
			return WeightConfig{}, err
		}
		weights, err = Merge(weights, override)
		if err != nil {
			return WeightConfig{}, err
		}
	}

	if cache != nil {
		cache.entries[key] = weights
	}
	return weights, nil
}
