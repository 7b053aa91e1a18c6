// Package transport defines the request and response shapes of the leads API.
package transport

import (
	"encoding/json"
	"time"

	"leadpilot_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// =============================================================================
// Requests
// =============================================================================

type CreateLeadRequest struct {
	FirstName        string     `json:"firstName" binding:"required,max=100"`
	LastName         string     `json:"lastName" binding:"required,max=100"`
	CompanyName      *string    `json:"companyName" binding:"omitempty,max=200"`
	Email            *string    `json:"email" binding:"omitempty,email"`
	Phone            *string    `json:"phone" binding:"omitempty,max=30"`
	Status           string     `json:"status" binding:"omitempty,oneof=new contacted qualified converted lost"`
	TeamID           *uuid.UUID `json:"teamId"`
	SourceID         *uuid.UUID `json:"sourceId"`
	TerritoryCode    *string    `json:"territoryCode" binding:"omitempty,max=20"`
	PotentialValue   float64    `json:"potentialValue" binding:"omitempty,gte=0"`
	Currency         string     `json:"currency" binding:"omitempty,len=3"`
	LastContactedAt  *time.Time `json:"lastContactedAt"`
	NextActionAt     *time.Time `json:"nextActionAt"`
	PreferredOwnerID *uuid.UUID `json:"preferredOwnerId"`
}

// OptionalUUID distinguishes a field that was omitted from one explicitly
// sent as null. Set is true whenever the key appeared in the request body.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

type UpdateLeadRequest struct {
	FirstName       *string    `json:"firstName" binding:"omitempty,max=100"`
	LastName        *string    `json:"lastName" binding:"omitempty,max=100"`
	CompanyName     *string    `json:"companyName" binding:"omitempty,max=200"`
	Email           *string    `json:"email" binding:"omitempty,email"`
	Phone           *string    `json:"phone" binding:"omitempty,max=30"`
	Status          *string    `json:"status" binding:"omitempty,oneof=new contacted qualified converted lost"`
	StatusComment   *string    `json:"statusComment" binding:"omitempty,max=500"`
	TeamID          *uuid.UUID `json:"teamId"`
	SourceID        *uuid.UUID `json:"sourceId"`
	TerritoryCode   *string    `json:"territoryCode" binding:"omitempty,max=20"`
	PotentialValue  *float64   `json:"potentialValue" binding:"omitempty,gte=0"`
	Currency        *string    `json:"currency" binding:"omitempty,len=3"`
	LastContactedAt *time.Time `json:"lastContactedAt"`
	NextActionAt    *time.Time `json:"nextActionAt"`

	// A uuid sets the owner directly; an explicit null clears the owner and
	// reruns automatic assignment.
	AssignedToUserID OptionalUUID `json:"assignedToUserId"`
}

type AssignLeadRequest struct {
	PreferredOwnerID *uuid.UUID `json:"preferredOwnerId"`
}

type AddNoteRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

type UpsertRuleRequest struct {
	Name     string          `json:"name" binding:"required,max=100"`
	TeamID   *uuid.UUID      `json:"teamId"`
	Weights  json.RawMessage `json:"weights" binding:"required"`
	IsActive bool            `json:"isActive"`
}

// =============================================================================
// Responses
// =============================================================================

type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	CompanyName     *string    `json:"companyName,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	Status          string     `json:"status"`
	OwnerID         *uuid.UUID `json:"ownerId,omitempty"`
	CreatedByUserID uuid.UUID  `json:"createdByUserId"`
	TeamID          *uuid.UUID `json:"teamId,omitempty"`
	SourceID        *uuid.UUID `json:"sourceId,omitempty"`
	TerritoryCode   *string    `json:"territoryCode,omitempty"`
	PotentialValue  float64    `json:"potentialValue"`
	Currency        string     `json:"currency"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	NextActionAt    *time.Time `json:"nextActionAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:              lead.ID,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		CompanyName:     lead.CompanyName,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Status:          lead.Status,
		OwnerID:         lead.AssignedToUserID,
		CreatedByUserID: lead.CreatedByUserID,
		TeamID:          lead.TeamID,
		SourceID:        lead.SourceID,
		TerritoryCode:   lead.TerritoryCode,
		PotentialValue:  lead.PotentialValue,
		Currency:        lead.Currency,
		LastContactedAt: lead.LastContactedAt,
		NextActionAt:    lead.NextActionAt,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}

type LeadListResponse struct {
	Items   []LeadResponse `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"perPage"`
}

type ScoreResponse struct {
	ID           uuid.UUID      `json:"id"`
	LeadID       uuid.UUID      `json:"leadId"`
	Score        int            `json:"score"`
	Breakdown    map[string]int `json:"breakdown"`
	CalculatedBy *uuid.UUID     `json:"calculatedBy,omitempty"`
	CalculatedAt time.Time      `json:"calculatedAt"`
}

func ToScoreResponse(score repository.Score) ScoreResponse {
	return ScoreResponse{
		ID:           score.ID,
		LeadID:       score.LeadID,
		Score:        score.Score,
		Breakdown:    score.Breakdown,
		CalculatedBy: score.CalculatedByUserID,
		CalculatedAt: score.CalculatedAt,
	}
}

type StatusHistoryResponse struct {
	ID         uuid.UUID  `json:"id"`
	FromStatus *string    `json:"fromStatus,omitempty"`
	ToStatus   string     `json:"toStatus"`
	ChangedBy  *uuid.UUID `json:"changedBy,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	ChangedAt  time.Time  `json:"changedAt"`
}

func ToStatusHistoryResponse(entry repository.StatusHistory) StatusHistoryResponse {
	return StatusHistoryResponse{
		ID:         entry.ID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ChangedBy:  entry.ChangedByUserID,
		Comment:    entry.Comment,
		ChangedAt:  entry.ChangedAt,
	}
}

type ActivityResponse struct {
	ID         uuid.UUID              `json:"id"`
	ActorID    *uuid.UUID             `json:"actorId,omitempty"`
	Action     string                 `json:"action"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

func ToActivityResponse(activity repository.Activity) ActivityResponse {
	return ActivityResponse{
		ID:         activity.ID,
		ActorID:    activity.ActorID,
		Action:     activity.Action,
		Properties: activity.Properties,
		OccurredAt: activity.OccurredAt,
	}
}

type NoteResponse struct {
	ID         uuid.UUID `json:"id"`
	LeadID     uuid.UUID `json:"leadId"`
	AuthorID   uuid.UUID `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func ToNoteResponse(note repository.Note) NoteResponse {
	return NoteResponse{
		ID:         note.ID,
		LeadID:     note.LeadID,
		AuthorID:   note.AuthorID,
		AuthorName: note.AuthorName,
		Body:       note.Body,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}
}

type ImportResponse struct {
	ID            uuid.UUID             `json:"id"`
	FileName      string                `json:"fileName"`
	Status        string                `json:"status"`
	TotalRows     int                   `json:"totalRows"`
	ProcessedRows int                   `json:"processedRows"`
	ErrorRows     int                   `json:"errorRows"`
	RowErrors     []repository.RowError `json:"rowErrors,omitempty"`
	CreatedBy     uuid.UUID             `json:"createdBy"`
	StartedAt     *time.Time            `json:"startedAt,omitempty"`
	FinishedAt    *time.Time            `json:"finishedAt,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func ToImportResponse(batch repository.Import) ImportResponse {
	return ImportResponse{
		ID:            batch.ID,
		FileName:      batch.FileName,
		Status:        batch.Status,
		TotalRows:     batch.TotalRows,
		ProcessedRows: batch.ProcessedRows,
		ErrorRows:     batch.ErrorRows,
		RowErrors:     batch.RowErrors,
		CreatedBy:     batch.CreatedByUserID,
		StartedAt:     batch.StartedAt,
		FinishedAt:    batch.FinishedAt,
		CreatedAt:     batch.CreatedAt,
	}
}

type RuleResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	TeamID    *uuid.UUID      `json:"teamId,omitempty"`
	Weights   json.RawMessage `json:"weights"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func ToRuleResponse(rule repository.ScoringRule) RuleResponse {
	return RuleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		TeamID:    rule.TeamID,
		Weights:   json.RawMessage(rule.Weights),
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}
}

type SourceResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Channel string    `json:"channel"`
}

func ToSourceResponse(source repository.Source) SourceResponse {
	return SourceResponse{ID: source.ID, Name: source.Name, Channel: source.Channel}
}
