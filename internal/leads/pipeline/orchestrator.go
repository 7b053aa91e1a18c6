// Package pipeline coordinates the lead lifecycle: persistence, owner
// assignment, score calculation, and the domain events tying them together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/leads/assignment"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/platform/apperr"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Snapshot(ctx context.Context, id uuid.UUID) (events.LeadSnapshot, error)
	ScoringViewByID(ctx context.Context, id uuid.UUID) (repository.ScoringView, error)
	InsertScore(ctx context.Context, params repository.InsertScoreParams) (repository.Score, error)
	AddStatusHistory(ctx context.Context, leadID uuid.UUID, from *string, to string, changedBy *uuid.UUID, comment *string) error
	AddActivity(ctx context.Context, leadID uuid.UUID, actorID *uuid.UUID, action string, properties map[string]interface{}) error
}

// Assigner resolves and persists a lead owner.
type Assigner interface {
	Assign(ctx context.Context, lead assignment.Lead, preferredUserID *uuid.UUID) (*uuid.UUID, error)
}

// Scheduler enqueues background work. The inline implementation runs the
// work in-process when no task queue is configured.
type Scheduler interface {
	EnqueueScore(ctx context.Context, leadID uuid.UUID) error
}

// Actor is the authenticated user driving an operation.
type Actor struct {
	ID     uuid.UUID
	Roles  []string
	TeamID *uuid.UUID
}

// Orchestrator drives lead lifecycle operations.
type Orchestrator struct {
	store     Store
	assigner  Assigner
	resolver  *scoring.Resolver
	scheduler Scheduler
	bus       events.Bus
	log       *logger.Logger
}

func NewOrchestrator(store Store, assigner Assigner, resolver *scoring.Resolver, scheduler Scheduler, bus events.Bus, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		assigner:  assigner,
		resolver:  resolver,
		scheduler: scheduler,
		bus:       bus,
		log:       log,
	}
}

// CreateLeadInput is the validated payload for creating a lead.
type CreateLeadInput struct {
	FirstName        string
	LastName         string
	CompanyName      *string
	Email            *string
	Phone            *string
	Status           string
	TeamID           *uuid.UUID
	SourceID         *uuid.UUID
	TerritoryCode    *string
	PotentialValue   float64
	Currency         string
	LastContactedAt  *time.Time
	NextActionAt     *time.Time
	PreferredOwnerID *uuid.UUID

	// DeferScore skips enqueueing the initial score calculation. Batch
	// callers that score synchronously with a shared rule cache set this.
	DeferScore bool
}

// CreateLead persists a new lead, runs owner assignment, schedules an
// initial score, and publishes leads.created.
func (o *Orchestrator) CreateLead(ctx context.Context, actor Actor, input CreateLeadInput) (repository.Lead, error) {
	status := input.Status
	if status == "" {
		status = repository.StatusNew
	}
	currency := input.Currency
	if currency == "" {
		currency = "EUR"
	}

	lead, err := o.store.Create(ctx, repository.CreateLeadParams{
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		CompanyName:     input.CompanyName,
		Email:           input.Email,
		Phone:           input.Phone,
		Status:          status,
		CreatedByUserID: actor.ID,
		TeamID:          input.TeamID,
		SourceID:        input.SourceID,
		TerritoryCode:   input.TerritoryCode,
		PotentialValue:  input.PotentialValue,
		Currency:        currency,
		LastContactedAt: input.LastContactedAt,
		NextActionAt:    input.NextActionAt,
	})
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	o.recordActivity(ctx, lead.ID, &actor.ID, "lead.created", nil)
	if err := o.store.AddStatusHistory(ctx, lead.ID, nil, lead.Status, &actor.ID, nil); err != nil {
		o.log.Error("record initial status", "lead_id", lead.ID, "error", err)
	}

	ownerID, err := o.assigner.Assign(ctx, assignment.Lead{
		ID:            lead.ID,
		TeamID:        lead.TeamID,
		TerritoryCode: lead.TerritoryCode,
	}, input.PreferredOwnerID)
	if err != nil {
		// Assignment failure leaves the lead unassigned rather than
		// rolling back creation.
		o.log.Error("assign lead owner", "lead_id", lead.ID, "error", err)
	} else if ownerID != nil {
		lead.AssignedToUserID = ownerID
	}

	if !input.DeferScore {
		o.scheduleScore(ctx, lead.ID)
	}
	o.publishWithSnapshot(ctx, lead.ID, func(snap events.LeadSnapshot) events.Event {
		return events.LeadCreated{BaseEvent: events.NewBaseEvent(), Lead: snap, CreatedBy: actor.ID}
	})

	return lead, nil
}

// UpdateLeadInput mirrors repository.UpdateLeadParams plus an optional
// comment recorded with status transitions.
type UpdateLeadInput struct {
	Params        repository.UpdateLeadParams
	StatusComment *string
}

// UpdateLead applies a partial update, records status transitions, reruns
// scoring, and publishes leads.updated. Clearing the owner reruns automatic
// assignment; setting an owner id writes it directly.
func (o *Orchestrator) UpdateLead(ctx context.Context, actor Actor, leadID uuid.UUID, input UpdateLeadInput) (repository.Lead, error) {
	current, err := o.store.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, mapStoreError(err, "lead not found")
	}
	if err := authorizeMutation(actor, current); err != nil {
		return repository.Lead{}, err
	}

	lead, err := o.store.Update(ctx, leadID, input.Params)
	if err != nil {
		return repository.Lead{}, mapStoreError(err, "lead not found")
	}

	if input.Params.OwnerIDSet && input.Params.OwnerID == nil {
		ownerID, err := o.assigner.Assign(ctx, assignment.Lead{
			ID:            lead.ID,
			TeamID:        lead.TeamID,
			TerritoryCode: lead.TerritoryCode,
		}, nil)
		if err != nil {
			// The lead stays unassigned; the update itself succeeded.
			o.log.Error("reassign lead owner", "lead_id", lead.ID, "error", err)
		} else if ownerID != nil {
			lead.AssignedToUserID = ownerID
		}
	}

	if input.Params.Status != nil && *input.Params.Status != current.Status {
		from := current.Status
		if err := o.store.AddStatusHistory(ctx, lead.ID, &from, lead.Status, &actor.ID, input.StatusComment); err != nil {
			o.log.Error("record status transition", "lead_id", lead.ID, "error", err)
		}
		o.recordActivity(ctx, lead.ID, &actor.ID, "lead.status_changed", map[string]interface{}{
			"from": from, "to": lead.Status,
		})
	} else {
		o.recordActivity(ctx, lead.ID, &actor.ID, "lead.updated", nil)
	}

	o.scheduleScore(ctx, lead.ID)
	o.publishWithSnapshot(ctx, lead.ID, func(snap events.LeadSnapshot) events.Event {
		return events.LeadUpdated{BaseEvent: events.NewBaseEvent(), Lead: snap, UpdatedBy: actor.ID}
	})

	return lead, nil
}

// AssignLead runs owner assignment for an existing lead. Without a
// preference an already-assigned lead keeps its owner; naming a different
// user reassigns the lead to them. The committed owner is returned.
func (o *Orchestrator) AssignLead(ctx context.Context, actor Actor, leadID uuid.UUID, preferredOwnerID *uuid.UUID) (*uuid.UUID, error) {
	lead, err := o.store.GetByID(ctx, leadID)
	if err != nil {
		return nil, mapStoreError(err, "lead not found")
	}
	if err := authorizeMutation(actor, lead); err != nil {
		return nil, err
	}

	ownerID, err := o.assigner.Assign(ctx, assignment.Lead{
		ID:            lead.ID,
		TeamID:        lead.TeamID,
		TerritoryCode: lead.TerritoryCode,
	}, preferredOwnerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "assignment failed", err)
	}
	return ownerID, nil
}

// DeleteLead archives a lead and publishes leads.deleted. Score history
// is retained.
func (o *Orchestrator) DeleteLead(ctx context.Context, actor Actor, leadID uuid.UUID) error {
	current, err := o.store.GetByID(ctx, leadID)
	if err != nil {
		return mapStoreError(err, "lead not found")
	}
	if err := authorizeMutation(actor, current); err != nil {
		return err
	}

	if err := o.store.SoftDelete(ctx, leadID); err != nil {
		return mapStoreError(err, "lead not found")
	}

	o.bus.Publish(ctx, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TeamID:    current.TeamID,
	})
	return nil
}

// ScoreLead computes and persists a score snapshot for the lead and
// publishes leads.scored. The cache, when non-nil, memoizes resolved
// weight tables across calls within one batch.
func (o *Orchestrator) ScoreLead(ctx context.Context, leadID uuid.UUID, calculatedBy *uuid.UUID, cache *scoring.RuleCache) (scoring.Result, error) {
	view, err := o.store.ScoringViewByID(ctx, leadID)
	if err != nil {
		return scoring.Result{}, mapStoreError(err, "lead not found")
	}

	weights, err := o.resolver.Resolve(ctx, view.TeamID, cache)
	if err != nil {
		return scoring.Result{}, apperr.Wrap(apperr.KindInternal, "failed to resolve scoring weights", err)
	}

	result := scoring.Calculate(scoring.Input{
		LeadID:          view.LeadID,
		TeamID:          view.TeamID,
		SourceChannel:   view.SourceChannel,
		Status:          view.Status,
		PotentialValue:  view.PotentialValue,
		LastContactedAt: view.LastContactedAt,
		NextActionAt:    view.NextActionAt,
	}, weights)

	if _, err := o.store.InsertScore(ctx, repository.InsertScoreParams{
		LeadID:             leadID,
		Score:              result.Score,
		Breakdown:          result.Breakdown,
		CalculatedByUserID: calculatedBy,
	}); err != nil {
		return scoring.Result{}, apperr.Wrap(apperr.KindInternal, "failed to persist score", err)
	}

	o.publishWithSnapshot(ctx, leadID, func(snap events.LeadSnapshot) events.Event {
		return events.LeadScored{
			BaseEvent: events.NewBaseEvent(),
			Lead:      snap,
			Score:     result.Score,
			Breakdown: result.Breakdown,
		}
	})

	return result, nil
}

func (o *Orchestrator) scheduleScore(ctx context.Context, leadID uuid.UUID) {
	if err := o.scheduler.EnqueueScore(ctx, leadID); err != nil {
		o.log.Error("enqueue score calculation", "lead_id", leadID, "error", err)
	}
}

func (o *Orchestrator) recordActivity(ctx context.Context, leadID uuid.UUID, actorID *uuid.UUID, action string, properties map[string]interface{}) {
	if err := o.store.AddActivity(ctx, leadID, actorID, action, properties); err != nil {
		o.log.Error("record activity", "lead_id", leadID, "action", action, "error", err)
	}
}

func (o *Orchestrator) publishWithSnapshot(ctx context.Context, leadID uuid.UUID, build func(events.LeadSnapshot) events.Event) {
	snapshot, err := o.store.Snapshot(ctx, leadID)
	if err != nil {
		o.log.Error("load lead snapshot for event", "lead_id", leadID, "error", err)
		return
	}
	o.bus.Publish(ctx, build(snapshot))
}

// authorizeMutation enforces write access: admins always, managers within
// their team, sales reps on leads they own or created.
func authorizeMutation(actor Actor, lead repository.Lead) error {
	for _, role := range actor.Roles {
		switch role {
		case "admin":
			return nil
		case "manager":
			if actor.TeamID != nil && lead.TeamID != nil && *actor.TeamID == *lead.TeamID {
				return nil
			}
		case "sales_rep":
			if lead.CreatedByUserID == actor.ID {
				return nil
			}
			if lead.AssignedToUserID != nil && *lead.AssignedToUserID == actor.ID {
				return nil
			}
		}
	}
	return apperr.Forbidden("not allowed to modify this lead")
}

func mapStoreError(err error, notFoundMessage string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(notFoundMessage)
	}
	return apperr.Wrap(apperr.KindInternal, fmt.Sprintf("storage failure: %s", notFoundMessage), err)
}
