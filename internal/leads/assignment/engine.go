package assignment

import (
	"context"
	"fmt"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

// Store persists assignment decisions.
type Store interface {
	// OwnerOf reads the committed owner of a lead, nil when unassigned.
	OwnerOf(ctx context.Context, leadID uuid.UUID) (*uuid.UUID, error)

	// AssignOwner writes the owner only if the lead is still unassigned.
	// Returns false when a concurrent assignment landed first.
	AssignOwner(ctx context.Context, leadID, userID uuid.UUID) (bool, error)

	// ReassignOwner replaces the owner only while from is still the
	// committed owner. Returns false when a concurrent change landed first.
	ReassignOwner(ctx context.Context, leadID, from, to uuid.UUID) (bool, error)

	// Snapshot loads the denormalized lead state for event payloads.
	Snapshot(ctx context.Context, leadID uuid.UUID) (events.LeadSnapshot, error)
}

// Engine assigns owners to leads. Unassigned leads go through the strategy
// chain; a requested owner bypasses it, and is the only way an
// already-assigned lead changes hands.
type Engine struct {
	store      Store
	directory  Directory
	strategies []Strategy
	bus        events.Bus
	log        *logger.Logger
}

func NewEngine(store Store, directory Directory, strategies []Strategy, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		store:      store,
		directory:  directory,
		strategies: strategies,
		bus:        bus,
		log:        log,
	}
}

// Assign resolves and persists an owner for the lead. It returns the
// committed owner, which may be a pre-existing one, or nil when no
// candidate could be found. Only a write this call performed emits a
// leads.assigned event.
func (e *Engine) Assign(ctx context.Context, lead Lead, preferredUserID *uuid.UUID) (*uuid.UUID, error) {
	owner, err := e.store.OwnerOf(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("read lead owner: %w", err)
	}
	if owner != nil {
		if preferredUserID == nil || *preferredUserID == *owner {
			return owner, nil
		}
		return e.reassign(ctx, lead, *owner, *preferredUserID)
	}

	candidate, err := e.selectCandidate(ctx, lead, preferredUserID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		e.log.Info("no assignment candidate", "lead_id", lead.ID)
		return nil, nil
	}

	assigned, err := e.store.AssignOwner(ctx, lead.ID, candidate.ID)
	if err != nil {
		return nil, fmt.Errorf("persist assignment: %w", err)
	}
	if !assigned {
		// Lost the race; report whoever won.
		return e.store.OwnerOf(ctx, lead.ID)
	}

	e.publishAssigned(ctx, lead.ID, candidate.ID)
	return &candidate.ID, nil
}

// reassign moves an owned lead to an explicitly requested owner. Unlike
// initial assignment, a rejected request is an error: the caller named a
// user and must learn when that user cannot take the lead.
func (e *Engine) reassign(ctx context.Context, lead Lead, current, requested uuid.UUID) (*uuid.UUID, error) {
	candidate, active, err := e.directory.ActiveUser(ctx, requested)
	if err != nil {
		return nil, fmt.Errorf("check requested user: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("user %s is not an active user", requested)
	}

	moved, err := e.store.ReassignOwner(ctx, lead.ID, current, candidate.ID)
	if err != nil {
		return nil, fmt.Errorf("persist reassignment: %w", err)
	}
	if !moved {
		// Lost the race; report whoever won.
		return e.store.OwnerOf(ctx, lead.ID)
	}

	e.publishAssigned(ctx, lead.ID, candidate.ID)
	return &candidate.ID, nil
}

func (e *Engine) selectCandidate(ctx context.Context, lead Lead, preferredUserID *uuid.UUID) (*Candidate, error) {
	if preferredUserID != nil {
		candidate, active, err := e.directory.ActiveUser(ctx, *preferredUserID)
		if err != nil {
			return nil, fmt.Errorf("check preferred user: %w", err)
		}
		if active {
			return &candidate, nil
		}
		// An inactive preference falls through to the strategy chain.
		e.log.Warn("preferred user inactive, using strategies",
			"lead_id", lead.ID, "user_id", preferredUserID)
	}

	for _, strategy := range e.strategies {
		candidate, err := strategy.Pick(ctx, lead)
		if err != nil {
			// A failing strategy never blocks the chain.
			e.log.Warn("assignment strategy failed",
				"strategy", strategy.Name(), "lead_id", lead.ID, "error", err)
			continue
		}
		if candidate != nil {
			return candidate, nil
		}
	}
	return nil, nil
}

func (e *Engine) publishAssigned(ctx context.Context, leadID, ownerID uuid.UUID) {
	snapshot, err := e.store.Snapshot(ctx, leadID)
	if err != nil {
		e.log.Error("load lead snapshot for assignment event", "lead_id", leadID, "error", err)
		return
	}

	e.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(),
		Lead:      snapshot,
		OwnerID:   ownerID,
	})
}
