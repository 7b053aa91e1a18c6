package scoring

import (
	"time"

	"github.com/google/uuid"
)

// Input is the lead state the engine scores. It is a plain value so the
// engine stays pure and callers can score without touching storage.
type Input struct {
	LeadID          uuid.UUID
	TeamID          *uuid.UUID
	SourceChannel   *string
	Status          string
	PotentialValue  float64
	LastContactedAt *time.Time
	NextActionAt    *time.Time
}

// Result is a computed score. Score is capped at MaxScore; Breakdown holds
// the raw per-component points and may sum past the cap.
type Result struct {
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
}

// Calculate scores a lead against a resolved weight table.
//
// Source and stage points come from their weight maps with a fallback to
// the "default" bucket. Engagement points accrue independently for each
// recency signal that is set. Value points come from the highest tier whose
// threshold the potential value meets.
func Calculate(input Input, weights WeightConfig) Result {
	breakdown := map[string]int{
		ComponentSource:     sourcePoints(input.SourceChannel, weights.Source),
		ComponentEngagement: engagementPoints(input, weights.Engagement),
		ComponentValue:      valuePoints(input.PotentialValue, weights.Value),
		ComponentStage:      stagePoints(input.Status, weights.Stage),
	}

	total := 0
	for _, points := range breakdown {
		total += points
	}
	if total > MaxScore {
		total = MaxScore
	}

	return Result{Score: total, Breakdown: breakdown}
}

func sourcePoints(channel *string, weights map[string]int) int {
	if channel != nil {
		if points, ok := weights[*channel]; ok {
			return points
		}
	}
	return weights[DefaultKey]
}

func engagementPoints(input Input, weights EngagementWeights) int {
	points := 0
	if input.LastContactedAt != nil {
		points += weights.LastContacted
	}
	if input.NextActionAt != nil {
		points += weights.NextAction
	}
	return points
}

func valuePoints(value float64, tiers []ValueTier) int {
	// Tiers are sorted by descending threshold; the first match wins.
	for _, tier := range tiers {
		if value >= tier.Min {
			return tier.Score
		}
	}
	return 0
}

func stagePoints(status string, weights map[string]int) int {
	if points, ok := weights[status]; ok {
		return points
	}
	return weights[DefaultKey]
}
