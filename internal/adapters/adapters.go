// Package adapters bridges repository implementations to the narrow ports
// the domain engines consume.
package adapters

import (
	"context"
	"errors"

	identityrepo "leadpilot_backend/internal/identity/repository"
	"leadpilot_backend/internal/leads/assignment"
	leadsrepo "leadpilot_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// AssignmentDirectory adapts the identity repository to the assignment
// engine's Directory port.
type AssignmentDirectory struct {
	identity *identityrepo.Repository
}

func NewAssignmentDirectory(identity *identityrepo.Repository) *AssignmentDirectory {
	return &AssignmentDirectory{identity: identity}
}

func (d *AssignmentDirectory) LeastLoadedCandidates(ctx context.Context, roles []string, teamID *uuid.UUID) ([]assignment.Candidate, error) {
	users, err := d.identity.LeastLoadedCandidates(ctx, roles, teamID)
	if err != nil {
		return nil, err
	}
	candidates := make([]assignment.Candidate, 0, len(users))
	for _, user := range users {
		candidates = append(candidates, assignment.Candidate{ID: user.ID, TeamID: user.TeamID})
	}
	return candidates, nil
}

func (d *AssignmentDirectory) TeamByTerritory(ctx context.Context, territoryCode string) (uuid.UUID, bool, error) {
	team, err := d.identity.FindTeamByTerritory(ctx, territoryCode)
	if errors.Is(err, identityrepo.ErrTeamNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return team.ID, true, nil
}

func (d *AssignmentDirectory) ActiveUser(ctx context.Context, id uuid.UUID) (assignment.Candidate, bool, error) {
	user, err := d.identity.FindActiveUser(ctx, id)
	if errors.Is(err, identityrepo.ErrUserNotFound) {
		return assignment.Candidate{}, false, nil
	}
	if err != nil {
		return assignment.Candidate{}, false, err
	}
	return assignment.Candidate{ID: user.ID, TeamID: user.TeamID}, true, nil
}

// ScoringRuleSource adapts stored scoring rules to the resolver's
// RuleSource port.
type ScoringRuleSource struct {
	leads *leadsrepo.Repository
}

func NewScoringRuleSource(leads *leadsrepo.Repository) *ScoringRuleSource {
	return &ScoringRuleSource{leads: leads}
}

func (s *ScoringRuleSource) FindEffectiveOverride(ctx context.Context, teamID *uuid.UUID) ([]byte, bool, error) {
	rule, err := s.leads.FindEffectiveRule(ctx, teamID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rule.Weights, true, nil
}
