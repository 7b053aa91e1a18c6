// Package scheduler provides background task scheduling backed by asynq,
// with an in-process fallback for deployments without Redis.
package scheduler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TypeScoreLead    = "leads.score"
	TypeProcessBatch = "leads.import"
)

// ScoreLeadPayload is the payload for lead score calculation tasks.
type ScoreLeadPayload struct {
	LeadID uuid.UUID `json:"leadId"`
}

// ProcessBatchPayload is the payload for import batch processing tasks.
type ProcessBatchPayload struct {
	ImportID uuid.UUID `json:"importId"`
}

// NewScoreLeadTask creates a score calculation task for a lead.
func NewScoreLeadTask(leadID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ScoreLeadPayload{LeadID: leadID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScoreLead, payload, asynq.MaxRetry(3)), nil
}

// NewProcessBatchTask creates an import processing task for a batch.
func NewProcessBatchTask(importID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessBatchPayload{ImportID: importID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessBatch, payload, asynq.MaxRetry(2)), nil
}
