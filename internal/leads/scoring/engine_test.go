package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestCalculateDefaults(t *testing.T) {
	weights := DefaultWeights()

	// Web lead, never contacted, small deal, fresh in the pipeline.
	result := Calculate(Input{
		LeadID:         uuid.New(),
		SourceChannel:  strPtr("web"),
		Status:         "new",
		PotentialValue: 1000,
	}, weights)

	if result.Score != 40 {
		t.Fatalf("expected score 40, got %d", result.Score)
	}

	expected := map[string]int{
		ComponentSource:     30,
		ComponentEngagement: 0,
		ComponentValue:      5,
		ComponentStage:      5,
	}
	for key, want := range expected {
		if got := result.Breakdown[key]; got != want {
			t.Errorf("breakdown[%s] = %d, want %d", key, got, want)
		}
	}
}

func TestCalculateClampsTotalNotBreakdown(t *testing.T) {
	weights := DefaultWeights()
	weights.Source["web"] = 80

	// 80 + 25 + 30 + 10 = 145 raw.
	result := Calculate(Input{
		LeadID:          uuid.New(),
		SourceChannel:   strPtr("web"),
		Status:          "contacted",
		PotentialValue:  60000,
		LastContactedAt: timePtr(time.Now()),
		NextActionAt:    timePtr(time.Now()),
	}, weights)

	if result.Score != MaxScore {
		t.Fatalf("expected capped score %d, got %d", MaxScore, result.Score)
	}

	sum := 0
	for _, points := range result.Breakdown {
		sum += points
	}
	if sum != 145 {
		t.Fatalf("expected uncapped breakdown sum 145, got %d", sum)
	}
}

func TestCalculateValueTierBoundaries(t *testing.T) {
	weights := DefaultWeights()

	cases := []struct {
		value float64
		want  int
	}{
		{50000, 30},
		{49999.99, 20},
		{20000, 20},
		{19999.99, 15},
		{5000, 15},
		{4999.99, 5},
		{0, 5},
	}

	for _, tc := range cases {
		result := Calculate(Input{
			LeadID:         uuid.New(),
			Status:         "lost",
			PotentialValue: tc.value,
		}, weights)
		if got := result.Breakdown[ComponentValue]; got != tc.want {
			t.Errorf("value %v: expected %d points, got %d", tc.value, tc.want, got)
		}
	}
}

func TestCalculateUnknownSourceAndStageFallBack(t *testing.T) {
	weights := DefaultWeights()

	result := Calculate(Input{
		LeadID:         uuid.New(),
		SourceChannel:  strPtr("billboard"),
		Status:         "lost",
		PotentialValue: 0,
	}, weights)

	if got := result.Breakdown[ComponentSource]; got != 10 {
		t.Errorf("unknown channel should use default weight 10, got %d", got)
	}
	if got := result.Breakdown[ComponentStage]; got != 0 {
		t.Errorf("unmapped status should use default weight 0, got %d", got)
	}
}

func TestCalculateNilSourceUsesDefault(t *testing.T) {
	result := Calculate(Input{
		LeadID:         uuid.New(),
		Status:         "new",
		PotentialValue: 0,
	}, DefaultWeights())

	if got := result.Breakdown[ComponentSource]; got != 10 {
		t.Errorf("nil channel should use default weight 10, got %d", got)
	}
}

func TestCalculateEngagementSignalsAccrueIndependently(t *testing.T) {
	weights := DefaultWeights()
	now := time.Now()

	onlyContacted := Calculate(Input{LeadID: uuid.New(), Status: "new", LastContactedAt: timePtr(now)}, weights)
	if got := onlyContacted.Breakdown[ComponentEngagement]; got != 15 {
		t.Errorf("last contacted only: expected 15, got %d", got)
	}

	onlyNextAction := Calculate(Input{LeadID: uuid.New(), Status: "new", NextActionAt: timePtr(now)}, weights)
	if got := onlyNextAction.Breakdown[ComponentEngagement]; got != 10 {
		t.Errorf("next action only: expected 10, got %d", got)
	}

	both := Calculate(Input{LeadID: uuid.New(), Status: "new", LastContactedAt: timePtr(now), NextActionAt: timePtr(now)}, weights)
	if got := both.Breakdown[ComponentEngagement]; got != 25 {
		t.Errorf("both signals: expected 25, got %d", got)
	}
}
