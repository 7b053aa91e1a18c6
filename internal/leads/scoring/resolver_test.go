package scoring

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type fakeRuleSource struct {
	rules map[string][]byte
	calls int
}

func (f *fakeRuleSource) FindEffectiveOverride(_ context.Context, teamID *uuid.UUID) ([]byte, bool, error) {
	f.calls++
	key := "default"
	if teamID != nil {
		key = teamID.String()
	}
	raw, ok := f.rules[key]
	return raw, ok, nil
}

func TestResolveWithoutRuleReturnsDefaults(t *testing.T) {
	resolver := NewResolver(&fakeRuleSource{rules: map[string][]byte{}})

	weights, err := resolver.Resolve(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if weights.Source["web"] != 30 {
		t.Errorf("expected default web weight 30, got %d", weights.Source["web"])
	}
}

func TestResolveAppliesTeamRuleOverDefaults(t *testing.T) {
	teamID := uuid.New()
	resolver := NewResolver(&fakeRuleSource{rules: map[string][]byte{
		teamID.String(): []byte(`{"source": {"web": 40}}`),
	}})

	weights, err := resolver.Resolve(context.Background(), &teamID, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if weights.Source["web"] != 40 {
		t.Errorf("expected team rule web weight 40, got %d", weights.Source["web"])
	}
	if weights.Engagement.LastContacted != 15 {
		t.Errorf("expected default last_contacted weight 15, got %d", weights.Engagement.LastContacted)
	}
}

func TestResolveCachesPerTeamWithinOneRun(t *testing.T) {
	teamID := uuid.New()
	source := &fakeRuleSource{rules: map[string][]byte{
		teamID.String(): []byte(`{"source": {"web": 40}}`),
	}}
	resolver := NewResolver(source)
	cache := NewRuleCache()

	for i := 0; i < 5; i++ {
		if _, err := resolver.Resolve(context.Background(), &teamID, cache); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}
	if _, err := resolver.Resolve(context.Background(), nil, cache); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// One lookup for the team, one for the default scope.
	if source.calls != 2 {
		t.Fatalf("expected 2 rule lookups with cache, got %d", source.calls)
	}
}

func TestResolveFreshCacheSeesRuleEdits(t *testing.T) {
	teamID := uuid.New()
	source := &fakeRuleSource{rules: map[string][]byte{
		teamID.String(): []byte(`{"source": {"web": 40}}`),
	}}
	resolver := NewResolver(source)

	first, err := resolver.Resolve(context.Background(), &teamID, NewRuleCache())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if first.Source["web"] != 40 {
		t.Fatalf("expected web weight 40, got %d", first.Source["web"])
	}

	source.rules[teamID.String()] = []byte(`{"source": {"web": 60}}`)

	second, err := resolver.Resolve(context.Background(), &teamID, NewRuleCache())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if second.Source["web"] != 60 {
		t.Errorf("new cache should pick up edited rule, got %d", second.Source["web"])
	}
}

func TestResolveInvalidStoredRuleFails(t *testing.T) {
	teamID := uuid.New()
	resolver := NewResolver(&fakeRuleSource{rules: map[string][]byte{
		teamID.String(): []byte(`{"value": [{"min": 1000, "score": 10}]}`),
	}})

	if _, err := resolver.Resolve(context.Background(), &teamID, nil); err == nil {
		t.Fatal("expected error for stored rule without a zero-threshold tier")
	}
}
