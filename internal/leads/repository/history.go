package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusHistory records a single status transition on a lead.
type StatusHistory struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	FromStatus      *string
	ToStatus        string
	ChangedByUserID *uuid.UUID
	Comment         *string
	ChangedAt       time.Time
}

func (r *Repository) AddStatusHistory(ctx context.Context, leadID uuid.UUID, from *string, to string, changedBy *uuid.UUID, comment *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_status_histories (lead_id, from_status, to_status, changed_by_user_id, comment)
		VALUES ($1, $2, $3, $4, $5)
	`, leadID, from, to, changedBy, comment)
	return err
}

func (r *Repository) ListStatusHistory(ctx context.Context, leadID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, from_status, to_status, changed_by_user_id, comment, changed_at
		FROM lead_status_histories
		WHERE lead_id = $1
		ORDER BY changed_at DESC, id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]StatusHistory, 0)
	for rows.Next() {
		var entry StatusHistory
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.FromStatus, &entry.ToStatus,
			&entry.ChangedByUserID, &entry.Comment, &entry.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// Activity is an audit trail entry on a lead.
type Activity struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	Properties map[string]interface{}
	OccurredAt time.Time
}

func (r *Repository) AddActivity(ctx context.Context, leadID uuid.UUID, actorID *uuid.UUID, action string, properties map[string]interface{}) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_activities (lead_id, actor_id, action, properties)
		VALUES ($1, $2, $3, $4)
	`, leadID, actorID, action, properties)
	return err
}

func (r *Repository) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, actor_id, action, properties, occurred_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]Activity, 0)
	for rows.Next() {
		var activity Activity
		if err := rows.Scan(&activity.ID, &activity.LeadID, &activity.ActorID,
			&activity.Action, &activity.Properties, &activity.OccurredAt); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}
