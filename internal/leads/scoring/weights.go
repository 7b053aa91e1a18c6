// Package scoring computes lead scores from weighted signals: acquisition
// source, engagement recency, deal value, and pipeline stage.
package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Breakdown component keys.
const (
	ComponentSource     = "source"
	ComponentEngagement = "engagement"
	ComponentValue      = "value"
	ComponentStage      = "stage"
)

// DefaultKey is the fallback bucket in source and stage weight maps for
// channels or statuses without an explicit entry.
const DefaultKey = "default"

// MaxScore caps the total. Component breakdowns are never capped.
const MaxScore = 100

// ValueTier awards Score to leads whose potential value is at least Min.
// Tiers are evaluated highest threshold first.
type ValueTier struct {
	Min   float64 `json:"min"`
	Score int     `json:"score"`
}

// EngagementWeights are the points for recency signals.
type EngagementWeights struct {
	LastContacted int `json:"last_contacted"`
	NextAction    int `json:"next_action"`
}

// WeightConfig is a complete, resolved weight table. Every lookup the
// engine performs is answerable from it.
type WeightConfig struct {
	Source     map[string]int    `json:"source"`
	Engagement EngagementWeights `json:"engagement"`
	Value      []ValueTier       `json:"value"`
	Stage      map[string]int    `json:"stage"`
}

// DefaultWeights returns the built-in weight table used when no stored rule
// applies. Callers receive a fresh copy and may mutate it.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		Source: map[string]int{
			"web":      30,
			"referral": 25,
			"event":    20,
			"partner":  15,
			DefaultKey: 10,
		},
		Engagement: EngagementWeights{
			LastContacted: 15,
			NextAction:    10,
		},
		Value: []ValueTier{
			{Min: 50000, Score: 30},
			{Min: 20000, Score: 20},
			{Min: 5000, Score: 15},
			{Min: 0, Score: 5},
		},
		Stage: map[string]int{
			"converted": 20,
			"qualified": 15,
			"contacted": 10,
			"new":       5,
			DefaultKey:  0,
		},
	}
}

// Override is a partial weight table stored as a scoring rule. Absent
// fields keep their default; present map keys replace individual entries
// while a present tier list replaces the tiers wholesale.
type Override struct {
	Source     map[string]int      `json:"source,omitempty"`
	Engagement *EngagementOverride `json:"engagement,omitempty"`
	Value      []ValueTier         `json:"value,omitempty"`
	Stage      map[string]int      `json:"stage,omitempty"`
}

// EngagementOverride distinguishes "set to zero" from "not overridden".
type EngagementOverride struct {
	LastContacted *int `json:"last_contacted,omitempty"`
	NextAction    *int `json:"next_action,omitempty"`
}

// ParseOverride decodes a stored rule's weight JSON. Unknown fields are
// rejected so typos in stored rules surface instead of silently scoring
// with defaults.
func ParseOverride(raw []byte) (Override, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var override Override
	if err := decoder.Decode(&override); err != nil {
		return Override{}, fmt.Errorf("parse weight override: %w", err)
	}
	return override, nil
}

// Merge layers an override onto the defaults and returns the resolved
// table. The result is validated before use.
func Merge(defaults WeightConfig, override Override) (WeightConfig, error) {
	merged := WeightConfig{
		Source:     copyWeights(defaults.Source),
		Engagement: defaults.Engagement,
		Value:      append([]ValueTier(nil), defaults.Value...),
		Stage:      copyWeights(defaults.Stage),
	}

	for key, score := range override.Source {
		merged.Source[key] = score
	}
	for key, score := range override.Stage {
		merged.Stage[key] = score
	}
	if override.Engagement != nil {
		if override.Engagement.LastContacted != nil {
			merged.Engagement.LastContacted = *override.Engagement.LastContacted
		}
		if override.Engagement.NextAction != nil {
			merged.Engagement.NextAction = *override.Engagement.NextAction
		}
	}
	if len(override.Value) > 0 {
		merged.Value = append([]ValueTier(nil), override.Value...)
	}

	sort.SliceStable(merged.Value, func(i, j int) bool {
		return merged.Value[i].Min > merged.Value[j].Min
	})

	if err := merged.Validate(); err != nil {
		return WeightConfig{}, err
	}
	return merged, nil
}

// Validate checks the structural invariants a resolved table must satisfy:
// fallback buckets exist and the tier list covers value zero.
func (w WeightConfig) Validate() error {
	if _, ok := w.Source[DefaultKey]; !ok {
		return fmt.Errorf("weight config: source map missing %q entry", DefaultKey)
	}
	if _, ok := w.Stage[DefaultKey]; !ok {
		return fmt.Errorf("weight config: stage map missing %q entry", DefaultKey)
	}
	if len(w.Value) == 0 {
		return fmt.Errorf("weight config: value tiers must not be empty")
	}
	if w.Value[len(w.Value)-1].Min != 0 {
		return fmt.Errorf("weight config: lowest value tier must have min 0, got %v", w.Value[len(w.Value)-1].Min)
	}
	for _, tier := range w.Value {
		if tier.Min < 0 {
			return fmt.Errorf("weight config: negative tier threshold %v", tier.Min)
		}
	}
	return nil
}

func copyWeights(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for key, score := range src {
		dst[key] = score
	}
	return dst
}
