package scoring

import "testing"

func intPtr(i int) *int { return &i }

func TestMergeOverridesSingleKeysKeepsRest(t *testing.T) {
	merged, err := Merge(DefaultWeights(), Override{
		Source: map[string]int{"web": 40},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if merged.Source["web"] != 40 {
		t.Errorf("expected overridden web weight 40, got %d", merged.Source["web"])
	}
	if merged.Source["referral"] != 25 {
		t.Errorf("expected untouched referral weight 25, got %d", merged.Source["referral"])
	}
	if merged.Engagement.LastContacted != 15 {
		t.Errorf("expected untouched last_contacted weight 15, got %d", merged.Engagement.LastContacted)
	}
}

func TestMergeReplacesValueTiersWholesale(t *testing.T) {
	merged, err := Merge(DefaultWeights(), Override{
		Value: []ValueTier{
			{Min: 100000, Score: 50},
			{Min: 0, Score: 1},
		},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if len(merged.Value) != 2 {
		t.Fatalf("expected 2 tiers after wholesale replace, got %d", len(merged.Value))
	}
	if merged.Value[0].Min != 100000 || merged.Value[0].Score != 50 {
		t.Errorf("unexpected top tier: %+v", merged.Value[0])
	}
}

func TestMergeSortsTiersByThreshold(t *testing.T) {
	merged, err := Merge(DefaultWeights(), Override{
		Value: []ValueTier{
			{Min: 0, Score: 1},
			{Min: 10000, Score: 20},
			{Min: 500, Score: 5},
		},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	for i := 1; i < len(merged.Value); i++ {
		if merged.Value[i-1].Min < merged.Value[i].Min {
			t.Fatalf("tiers not sorted descending: %+v", merged.Value)
		}
	}
}

func TestMergeEngagementZeroIsDistinctFromAbsent(t *testing.T) {
	merged, err := Merge(DefaultWeights(), Override{
		Engagement: &EngagementOverride{LastContacted: intPtr(0)},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if merged.Engagement.LastContacted != 0 {
		t.Errorf("explicit zero override should apply, got %d", merged.Engagement.LastContacted)
	}
	if merged.Engagement.NextAction != 10 {
		t.Errorf("absent override should keep default 10, got %d", merged.Engagement.NextAction)
	}
}

func TestMergeRejectsTiersWithoutZeroFloor(t *testing.T) {
	_, err := Merge(DefaultWeights(), Override{
		Value: []ValueTier{{Min: 1000, Score: 10}},
	})
	if err == nil {
		t.Fatal("expected validation error for tier list without a zero-threshold floor")
	}
}

func TestParseOverrideRejectsUnknownFields(t *testing.T) {
	_, err := ParseOverride([]byte(`{"sauce": {"web": 40}}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseOverrideAcceptsPartialConfig(t *testing.T) {
	override, err := ParseOverride([]byte(`{"source": {"web": 40}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if override.Source["web"] != 40 {
		t.Errorf("expected parsed web weight 40, got %d", override.Source["web"])
	}
	if override.Engagement != nil {
		t.Error("expected absent engagement override to stay nil")
	}
}
