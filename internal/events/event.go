// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadpilot_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// OwnerRef identifies the user owning a lead in event payloads.
type OwnerRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// TeamRef identifies the team a lead belongs to in event payloads.
type TeamRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ScoreRef carries the latest score snapshot in event payloads.
type ScoreRef struct {
	Score        int       `json:"score"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// LeadSnapshot is the denormalized lead state carried on lead events so
// downstream consumers can render without re-querying.
type LeadSnapshot struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	CompanyName    *string    `json:"companyName,omitempty"`
	Email          *string    `json:"email,omitempty"`
	Status         string     `json:"status"`
	TerritoryCode  *string    `json:"territoryCode,omitempty"`
	PotentialValue float64    `json:"potentialValue"`
	Currency       string     `json:"currency"`
	SourceChannel  *string    `json:"sourceChannel,omitempty"`
	Owner          *OwnerRef  `json:"owner,omitempty"`
	Team           *TeamRef   `json:"team,omitempty"`
	LatestScore    *ScoreRef  `json:"latestScore,omitempty"`
	LastContacted  *time.Time `json:"lastContactedAt,omitempty"`
	NextAction     *time.Time `json:"nextActionAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published after a new lead is persisted and assignment has run.
type LeadCreated struct {
	BaseEvent
	Lead      LeadSnapshot `json:"lead"`
	CreatedBy uuid.UUID    `json:"createdBy"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadUpdated is published after a lead mutation is persisted.
type LeadUpdated struct {
	BaseEvent
	Lead      LeadSnapshot `json:"lead"`
	UpdatedBy uuid.UUID    `json:"updatedBy"`
}

func (e LeadUpdated) EventName() string { return "leads.updated" }

// LeadAssigned is published when an owner is written to a previously
// unassigned lead. The snapshot has owner and team reloaded.
type LeadAssigned struct {
	BaseEvent
	Lead    LeadSnapshot `json:"lead"`
	OwnerID uuid.UUID    `json:"ownerId"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// LeadScored is published after a score snapshot is persisted for a lead.
type LeadScored struct {
	BaseEvent
	Lead      LeadSnapshot   `json:"lead"`
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
}

func (e LeadScored) EventName() string { return "leads.scored" }

// LeadDeleted is published when a lead is archived. It carries identifiers
// only; the lead body is gone.
type LeadDeleted struct {
	BaseEvent
	LeadID uuid.UUID  `json:"leadId"`
	TeamID *uuid.UUID `json:"teamId,omitempty"`
}

func (e LeadDeleted) EventName() string { return "leads.deleted" }

// =============================================================================
// Import Domain Events
// =============================================================================

// ImportCompleted is published when an import batch reaches a terminal state.
type ImportCompleted struct {
	BaseEvent
	ImportID      uuid.UUID `json:"importId"`
	Status        string    `json:"status"`
	TotalRows     int       `json:"totalRows"`
	ProcessedRows int       `json:"processedRows"`
	ErrorRows     int       `json:"errorRows"`
}

func (e ImportCompleted) EventName() string { return "imports.completed" }
