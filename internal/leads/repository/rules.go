package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScoringRule is a stored weight override set. A nil TeamID means the rule
// applies organization-wide; a team-specific rule takes precedence for that
// team's leads.
type ScoringRule struct {
	ID        uuid.UUID
	Name      string
	TeamID    *uuid.UUID
	Weights   []byte
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const ruleColumns = `id, name, team_id, weights, is_active, created_at, updated_at`

// FindEffectiveRule returns the active rule for a team, falling back to the
// organization-wide rule (team_id IS NULL) when no team-specific rule exists.
// Returns ErrNotFound when neither exists.
func (r *Repository) FindEffectiveRule(ctx context.Context, teamID *uuid.UUID) (ScoringRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM lead_scoring_rules
		WHERE is_active AND (team_id = $1 OR team_id IS NULL)
		ORDER BY team_id NULLS LAST, updated_at DESC
		LIMIT 1
	`, teamID)
	return scanRule(row)
}

func (r *Repository) ListRules(ctx context.Context) ([]ScoringRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM lead_scoring_rules
		ORDER BY team_id NULLS FIRST, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]ScoringRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

type UpsertRuleParams struct {
	Name     string
	TeamID   *uuid.UUID
	Weights  []byte
	IsActive bool
}

// UpsertRule replaces the rule for a scope (team or organization-wide).
// One rule per scope keeps resolution unambiguous.
func (r *Repository) UpsertRule(ctx context.Context, params UpsertRuleParams) (ScoringRule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_scoring_rules (name, team_id, weights, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ((COALESCE(team_id, '00000000-0000-0000-0000-000000000000'::uuid)))
		DO UPDATE SET name = EXCLUDED.name, weights = EXCLUDED.weights,
			is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING `+ruleColumns,
		params.Name, params.TeamID, params.Weights, params.IsActive)
	return scanRule(row)
}

func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lead_scoring_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (ScoringRule, error) {
	var rule ScoringRule
	err := row.Scan(&rule.ID, &rule.Name, &rule.TeamID, &rule.Weights,
		&rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScoringRule{}, ErrNotFound
	}
	return rule, err
}
