// Package assignment selects owners for unassigned leads. An ordered chain
// of strategies is consulted; the first to produce a candidate wins.
package assignment

import (
	"context"

	"github.com/google/uuid"
)

// Candidate is a user eligible to own a lead.
type Candidate struct {
	ID     uuid.UUID
	TeamID *uuid.UUID
}

// Lead is the slice of lead state the strategies inspect.
type Lead struct {
	ID            uuid.UUID
	TeamID        *uuid.UUID
	TerritoryCode *string
}

// Directory answers candidate queries against the user and team records.
type Directory interface {
	// LeastLoadedCandidates lists active users with any of the given roles,
	// optionally scoped to a team, ordered by current assigned lead count
	// with user id as tie-break.
	LeastLoadedCandidates(ctx context.Context, roles []string, teamID *uuid.UUID) ([]Candidate, error)

	// TeamByTerritory resolves a territory code to a team. found is false
	// when no team covers the territory.
	TeamByTerritory(ctx context.Context, territoryCode string) (teamID uuid.UUID, found bool, err error)

	// ActiveUser reports whether the user exists and is active.
	ActiveUser(ctx context.Context, id uuid.UUID) (Candidate, bool, error)
}

// Strategy proposes an owner for a lead. A nil candidate with a nil error
// means the strategy does not apply; the chain moves on.
type Strategy interface {
	Name() string
	Pick(ctx context.Context, lead Lead) (*Candidate, error)
}

// TerritoryStrategy routes a lead to the least loaded sales rep of the team
// covering the lead's territory. Leads without a territory code, or with a
// territory no team covers, are passed over.
type TerritoryStrategy struct {
	directory Directory
}

func NewTerritoryStrategy(directory Directory) *TerritoryStrategy {
	return &TerritoryStrategy{directory: directory}
}

func (s *TerritoryStrategy) Name() string { return "territory" }

func (s *TerritoryStrategy) Pick(ctx context.Context, lead Lead) (*Candidate, error) {
	if lead.TerritoryCode == nil || *lead.TerritoryCode == "" {
		return nil, nil
	}

	teamID, found, err := s.directory.TeamByTerritory(ctx, *lead.TerritoryCode)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	candidates, err := s.directory.LeastLoadedCandidates(ctx, []string{"sales_rep"}, &teamID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// RoundRobinStrategy distributes leads across sales reps and managers by
// current load. When the lead already belongs to a team the pool is scoped
// to that team, otherwise every eligible user competes.
type RoundRobinStrategy struct {
	directory Directory
}

func NewRoundRobinStrategy(directory Directory) *RoundRobinStrategy {
	return &RoundRobinStrategy{directory: directory}
}

func (s *RoundRobinStrategy) Name() string { return "round_robin" }

func (s *RoundRobinStrategy) Pick(ctx context.Context, lead Lead) (*Candidate, error) {
	candidates, err := s.directory.LeastLoadedCandidates(ctx, []string{"sales_rep", "manager"}, lead.TeamID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}
