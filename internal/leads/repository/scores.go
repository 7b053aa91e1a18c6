package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Score is a persisted scoring snapshot for a lead. Snapshots are append
// only; the newest row is the lead's current score.
type Score struct {
	ID                 uuid.UUID
	LeadID             uuid.UUID
	Score              int
	Breakdown          map[string]int
	CalculatedByUserID *uuid.UUID
	CalculatedAt       time.Time
}

type InsertScoreParams struct {
	LeadID             uuid.UUID
	Score              int
	Breakdown          map[string]int
	CalculatedByUserID *uuid.UUID
}

func (r *Repository) InsertScore(ctx context.Context, params InsertScoreParams) (Score, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_scores (lead_id, score, breakdown, calculated_by_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, score, breakdown, calculated_by_user_id, calculated_at
	`, params.LeadID, params.Score, params.Breakdown, params.CalculatedByUserID)
	return scanScore(row)
}

func (r *Repository) LatestScore(ctx context.Context, leadID uuid.UUID) (Score, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, score, breakdown, calculated_by_user_id, calculated_at
		FROM lead_scores
		WHERE lead_id = $1
		ORDER BY calculated_at DESC, id DESC
		LIMIT 1
	`, leadID)
	return scanScore(row)
}

func (r *Repository) ListScores(ctx context.Context, leadID uuid.UUID, limit int) ([]Score, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, score, breakdown, calculated_by_user_id, calculated_at
		FROM lead_scores
		WHERE lead_id = $1
		ORDER BY calculated_at DESC, id DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]Score, 0)
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// LeadIDsWithoutScore returns leads that never had a score snapshot.
// Used by the backfill command.
func (r *Repository) LeadIDsWithoutScore(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id FROM leads l
		WHERE l.deleted_at IS NULL
			AND NOT EXISTS (SELECT 1 FROM lead_scores sc WHERE sc.lead_id = l.id)
		ORDER BY l.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanScore(row pgx.Row) (Score, error) {
	var score Score
	err := row.Scan(&score.ID, &score.LeadID, &score.Score, &score.Breakdown,
		&score.CalculatedByUserID, &score.CalculatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Score{}, ErrNotFound
	}
	return score, err
}
