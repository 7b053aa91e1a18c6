package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadpilot_backend/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead statuses. The status column is constrained to these values.
const (
	StatusNew       = "new"
	StatusQualified = "qualified"
	StatusContacted = "contacted"
	StatusConverted = "converted"
	StatusLost      = "lost"
)

type Lead struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	CompanyName      *string
	Email            *string
	Phone            *string
	Status           string
	AssignedToUserID *uuid.UUID
	CreatedByUserID  uuid.UUID
	TeamID           *uuid.UUID
	SourceID         *uuid.UUID
	TerritoryCode    *string
	PotentialValue   float64
	Currency         string
	LastContactedAt  *time.Time
	NextActionAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const leadColumns = `id, first_name, last_name, company_name, email, phone, status,
	assigned_to_user_id, created_by_user_id, team_id, source_id, territory_code,
	potential_value, currency, last_contacted_at, next_action_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.CompanyName, &lead.Email, &lead.Phone,
		&lead.Status, &lead.AssignedToUserID, &lead.CreatedByUserID, &lead.TeamID, &lead.SourceID,
		&lead.TerritoryCode, &lead.PotentialValue, &lead.Currency,
		&lead.LastContactedAt, &lead.NextActionAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type CreateLeadParams struct {
	FirstName       string
	LastName        string
	CompanyName     *string
	Email           *string
	Phone           *string
	Status          string
	CreatedByUserID uuid.UUID
	TeamID          *uuid.UUID
	SourceID        *uuid.UUID
	TerritoryCode   *string
	PotentialValue  float64
	Currency        string
	LastContactedAt *time.Time
	NextActionAt    *time.Time
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			first_name, last_name, company_name, email, phone, status,
			created_by_user_id, team_id, source_id, territory_code,
			potential_value, currency, last_contacted_at, next_action_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.CompanyName, params.Email, params.Phone,
		params.Status, params.CreatedByUserID, params.TeamID, params.SourceID, params.TerritoryCode,
		params.PotentialValue, params.Currency, params.LastContactedAt, params.NextActionAt,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanLead(row)
}

// UpdateLeadParams carries optional field updates. Nil pointers leave the
// column unchanged; the *Set flags distinguish "set to NULL" from "unchanged"
// for nullable columns.
type UpdateLeadParams struct {
	FirstName        *string
	LastName         *string
	CompanyName      *string
	Email            *string
	Phone            *string
	Status           *string
	TeamID           *uuid.UUID
	TeamIDSet        bool
	SourceID         *uuid.UUID
	SourceIDSet      bool
	TerritoryCode    *string
	PotentialValue   *float64
	Currency         *string
	LastContactedAt  *time.Time
	LastContactedSet bool
	NextActionAt     *time.Time
	NextActionSet    bool
	OwnerID          *uuid.UUID
	OwnerIDSet       bool
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		addSet("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		addSet("last_name", *params.LastName)
	}
	if params.CompanyName != nil {
		addSet("company_name", *params.CompanyName)
	}
	if params.Email != nil {
		addSet("email", *params.Email)
	}
	if params.Phone != nil {
		addSet("phone", *params.Phone)
	}
	if params.Status != nil {
		addSet("status", *params.Status)
	}
	if params.TeamIDSet {
		addSet("team_id", params.TeamID)
	}
	if params.SourceIDSet {
		addSet("source_id", params.SourceID)
	}
	if params.TerritoryCode != nil {
		addSet("territory_code", *params.TerritoryCode)
	}
	if params.PotentialValue != nil {
		addSet("potential_value", *params.PotentialValue)
	}
	if params.Currency != nil {
		addSet("currency", *params.Currency)
	}
	if params.LastContactedSet {
		addSet("last_contacted_at", params.LastContactedAt)
	}
	if params.NextActionSet {
		addSet("next_action_at", params.NextActionAt)
	}
	if params.OwnerIDSet {
		addSet("assigned_to_user_id", params.OwnerID)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+leadColumns, args...)
	return scanLead(row)
}

// SoftDelete archives a lead. Score snapshots are retained.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignOwner writes the owner with a compare-and-set: the write only lands
// if the lead is still unassigned. Returns false when a concurrent writer won.
func (r *Repository) AssignOwner(ctx context.Context, leadID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET assigned_to_user_id = $2, updated_at = now()
		WHERE id = $1 AND assigned_to_user_id IS NULL AND deleted_at IS NULL
	`, leadID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReassignOwner moves an assigned lead to a new owner. The write only lands
// while from is still the committed owner, so a concurrent change wins.
func (r *Repository) ReassignOwner(ctx context.Context, leadID, from, to uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET assigned_to_user_id = $3, updated_at = now()
		WHERE id = $1 AND assigned_to_user_id = $2 AND deleted_at IS NULL
	`, leadID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// OwnerOf reads the committed owner of a lead.
func (r *Repository) OwnerOf(ctx context.Context, leadID uuid.UUID) (*uuid.UUID, error) {
	var owner *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT assigned_to_user_id FROM leads WHERE id = $1 AND deleted_at IS NULL
	`, leadID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return owner, err
}

// ListParams filters the lead listing. Viewer fields drive role-based
// visibility: sales reps see leads they own or created, managers see their
// team, admins see everything.
type ListParams struct {
	ViewerID     uuid.UUID
	ViewerRole   string
	ViewerTeamID *uuid.UUID
	Status       *string
	TeamID       *uuid.UUID
	OwnerID      *uuid.UUID
	Search       string
	Offset       int
	Limit        int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	addArg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	switch params.ViewerRole {
	case "sales_rep":
		p := addArg(params.ViewerID)
		where = append(where, fmt.Sprintf("(assigned_to_user_id = %s OR created_by_user_id = %s)", p, p))
	case "manager":
		if params.ViewerTeamID != nil {
			where = append(where, "team_id = "+addArg(*params.ViewerTeamID))
		} else {
			where = append(where, "team_id IS NULL")
		}
	}

	if params.Status != nil {
		where = append(where, "status = "+addArg(*params.Status))
	}
	if params.TeamID != nil {
		where = append(where, "team_id = "+addArg(*params.TeamID))
	}
	if params.OwnerID != nil {
		where = append(where, "assigned_to_user_id = "+addArg(*params.OwnerID))
	}
	if params.Search != "" {
		p := addArg("%" + params.Search + "%")
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE %s OR last_name ILIKE %s OR company_name ILIKE %s OR email ILIKE %s)", p, p, p, p))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE ` + whereClause +
		` ORDER BY created_at DESC LIMIT ` + addArg(params.Limit) + ` OFFSET ` + addArg(params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

// Snapshot loads the denormalized lead state carried on domain events:
// owner, team, source channel, and the latest score are joined in.
func (r *Repository) Snapshot(ctx context.Context, id uuid.UUID) (events.LeadSnapshot, error) {
	var (
		snap      events.LeadSnapshot
		ownerID   *uuid.UUID
		ownerName *string
		teamID    *uuid.UUID
		teamName  *string
		score     *int
		scoredAt  *time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT l.id, l.first_name, l.last_name, l.company_name, l.email, l.status,
			l.territory_code, l.potential_value, l.currency,
			l.last_contacted_at, l.next_action_at, l.created_at, l.updated_at,
			u.id, u.name, t.id, t.name, s.channel, sc.score, sc.calculated_at
		FROM leads l
		LEFT JOIN users u ON u.id = l.assigned_to_user_id
		LEFT JOIN teams t ON t.id = l.team_id
		LEFT JOIN lead_sources s ON s.id = l.source_id
		LEFT JOIN LATERAL (
			SELECT score, calculated_at FROM lead_scores
			WHERE lead_id = l.id
			ORDER BY calculated_at DESC, id DESC
			LIMIT 1
		) sc ON true
		WHERE l.id = $1 AND l.deleted_at IS NULL
	`, id).Scan(
		&snap.ID, &snap.FirstName, &snap.LastName, &snap.CompanyName, &snap.Email, &snap.Status,
		&snap.TerritoryCode, &snap.PotentialValue, &snap.Currency,
		&snap.LastContacted, &snap.NextAction, &snap.CreatedAt, &snap.UpdatedAt,
		&ownerID, &ownerName, &teamID, &teamName, &snap.SourceChannel, &score, &scoredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return events.LeadSnapshot{}, ErrNotFound
	}
	if err != nil {
		return events.LeadSnapshot{}, err
	}

	if ownerID != nil && ownerName != nil {
		snap.Owner = &events.OwnerRef{ID: *ownerID, Name: *ownerName}
	}
	if teamID != nil && teamName != nil {
		snap.Team = &events.TeamRef{ID: *teamID, Name: *teamName}
	}
	if score != nil && scoredAt != nil {
		snap.LatestScore = &events.ScoreRef{Score: *score, CalculatedAt: *scoredAt}
	}

	return snap, nil
}

// ScoringView is the minimal lead state the scoring engine needs.
type ScoringView struct {
	LeadID          uuid.UUID
	TeamID          *uuid.UUID
	SourceChannel   *string
	Status          string
	PotentialValue  float64
	LastContactedAt *time.Time
	NextActionAt    *time.Time
}

func (r *Repository) ScoringViewByID(ctx context.Context, id uuid.UUID) (ScoringView, error) {
	var view ScoringView
	err := r.pool.QueryRow(ctx, `
		SELECT l.id, l.team_id, s.channel, l.status, l.potential_value,
			l.last_contacted_at, l.next_action_at
		FROM leads l
		LEFT JOIN lead_sources s ON s.id = l.source_id
		WHERE l.id = $1 AND l.deleted_at IS NULL
	`, id).Scan(
		&view.LeadID, &view.TeamID, &view.SourceChannel, &view.Status,
		&view.PotentialValue, &view.LastContactedAt, &view.NextActionAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScoringView{}, ErrNotFound
	}
	return view, err
}
