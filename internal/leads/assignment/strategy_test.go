package assignment

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestTerritoryStrategyPassesWithoutTerritoryCode(t *testing.T) {
	strategy := NewTerritoryStrategy(&fakeDirectory{})

	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New()})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no candidate for a lead without territory, got %v", candidate)
	}
}

func TestTerritoryStrategyPassesForUncoveredTerritory(t *testing.T) {
	strategy := NewTerritoryStrategy(&fakeDirectory{territories: map[string]uuid.UUID{}})

	code := "XX-1"
	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New(), TerritoryCode: &code})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no candidate for uncovered territory, got %v", candidate)
	}
}

func TestTerritoryStrategyPassesWhenTeamHasNoReps(t *testing.T) {
	teamID := uuid.New()
	manager := uuid.New()
	directory := &fakeDirectory{
		// Managers are not territory candidates; only sales reps are.
		users:       []dirUser{{id: manager, teamID: uuidPtr(teamID), role: "manager", active: true}},
		territories: map[string]uuid.UUID{"NL-N": teamID},
	}
	strategy := NewTerritoryStrategy(directory)

	code := "NL-N"
	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New(), TerritoryCode: &code})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no candidate when the team has no sales reps, got %v", candidate)
	}
}

func TestRoundRobinIncludesManagers(t *testing.T) {
	manager := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{{id: manager, role: "manager", active: true}},
	}
	strategy := NewRoundRobinStrategy(directory)

	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New()})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate == nil || candidate.ID != manager {
		t.Fatalf("expected manager %s as candidate, got %v", manager, candidate)
	}
}

func TestRoundRobinScopesToLeadTeam(t *testing.T) {
	teamID := uuid.New()
	inTeam := uuid.New()
	outside := uuid.New()

	directory := &fakeDirectory{
		users: []dirUser{
			{id: outside, role: "sales_rep", active: true, load: 0},
			{id: inTeam, teamID: uuidPtr(teamID), role: "sales_rep", active: true, load: 5},
		},
	}
	strategy := NewRoundRobinStrategy(directory)

	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New(), TeamID: &teamID})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate == nil || candidate.ID != inTeam {
		t.Fatalf("expected team-scoped candidate %s, got %v", inTeam, candidate)
	}
}

func TestRoundRobinSkipsInactiveUsers(t *testing.T) {
	inactive := uuid.New()
	directory := &fakeDirectory{
		users: []dirUser{{id: inactive, role: "sales_rep", active: false}},
	}
	strategy := NewRoundRobinStrategy(directory)

	candidate, err := strategy.Pick(context.Background(), Lead{ID: uuid.New()})
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no candidate from inactive users, got %v", candidate)
	}
}
