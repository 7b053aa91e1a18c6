// Package management serves lead read paths: listing, detail, score and
// status history. Visibility is role-scoped.
package management

import (
	"context"
	"errors"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store is the read surface the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error)
	Snapshot(ctx context.Context, id uuid.UUID) (events.LeadSnapshot, error)
	ListScores(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Score, error)
	ListStatusHistory(ctx context.Context, leadID uuid.UUID) ([]repository.StatusHistory, error)
	ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListQuery narrows the lead listing.
type ListQuery struct {
	Status  *string
	TeamID  *uuid.UUID
	OwnerID *uuid.UUID
	Search  string
	Page    int
	PerPage int
}

func (s *Service) List(ctx context.Context, actor pipeline.Actor, query ListQuery) ([]repository.Lead, int, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	perPage := query.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	return s.store.List(ctx, repository.ListParams{
		ViewerID:     actor.ID,
		ViewerRole:   primaryRole(actor),
		ViewerTeamID: actor.TeamID,
		Status:       query.Status,
		TeamID:       query.TeamID,
		OwnerID:      query.OwnerID,
		Search:       query.Search,
		Offset:       (page - 1) * perPage,
		Limit:        perPage,
	})
}

// Get returns the denormalized lead detail, enforcing visibility.
func (s *Service) Get(ctx context.Context, actor pipeline.Actor, id uuid.UUID) (events.LeadSnapshot, error) {
	lead, err := s.visibleLead(ctx, actor, id)
	if err != nil {
		return events.LeadSnapshot{}, err
	}
	return s.store.Snapshot(ctx, lead.ID)
}

func (s *Service) ScoreHistory(ctx context.Context, actor pipeline.Actor, id uuid.UUID, limit int) ([]repository.Score, error) {
	if _, err := s.visibleLead(ctx, actor, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListScores(ctx, id, limit)
}

func (s *Service) StatusHistory(ctx context.Context, actor pipeline.Actor, id uuid.UUID) ([]repository.StatusHistory, error) {
	if _, err := s.visibleLead(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListStatusHistory(ctx, id)
}

func (s *Service) Activities(ctx context.Context, actor pipeline.Actor, id uuid.UUID, limit int) ([]repository.Activity, error) {
	if _, err := s.visibleLead(ctx, actor, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListActivities(ctx, id, limit)
}

func (s *Service) visibleLead(ctx context.Context, actor pipeline.Actor, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, err
	}
	if !CanView(actor, lead) {
		// Hide existence from viewers outside the lead's scope.
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

// CanView reports whether the actor may read the lead: admins always,
// managers within their team, sales reps on leads they own or created.
func CanView(actor pipeline.Actor, lead repository.Lead) bool {
	for _, role := range actor.Roles {
		switch role {
		case "admin":
			return true
		case "manager":
			if actor.TeamID != nil && lead.TeamID != nil && *actor.TeamID == *lead.TeamID {
				return true
			}
		case "sales_rep":
			if lead.CreatedByUserID == actor.ID {
				return true
			}
			if lead.AssignedToUserID != nil && *lead.AssignedToUserID == actor.ID {
				return true
			}
		}
	}
	return false
}

func primaryRole(actor pipeline.Actor) string {
	// The widest role wins for listing scope.
	role := "sales_rep"
	for _, r := range actor.Roles {
		switch r {
		case "admin":
			return "admin"
		case "manager":
			role = "manager"
		}
	}
	return role
}
