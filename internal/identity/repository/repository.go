// Package repository provides read access to users and teams. The identity
// provider owning these tables lives elsewhere; this service consumes them
// for assignment candidate selection and reference data.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTeamNotFound = errors.New("team not found")
)

// User roles recognized by assignment and visibility rules.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleSalesRep = "sales_rep"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      string
	TeamID    *uuid.UUID
	IsActive  bool
	CreatedAt time.Time
}

type Team struct {
	ID            uuid.UUID
	Name          string
	TerritoryCode *string
	CreatedAt     time.Time
}

const userColumns = `id, name, email, role, team_id, is_active, created_at`

func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// FindActiveUser returns the user only when it exists and is active.
func (r *Repository) FindActiveUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active
	`, id)
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context, teamID *uuid.UUID, activeOnly bool) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1::uuid IS NULL OR team_id = $1)
			AND (NOT $2 OR is_active)
		ORDER BY name ASC
	`, teamID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// LeastLoadedCandidates lists active users matching any of the given roles,
// optionally scoped to a team, ordered by number of leads they currently own
// with the user id as deterministic tie-break.
func (r *Repository) LeastLoadedCandidates(ctx context.Context, roles []string, teamID *uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.role, u.team_id, u.is_active, u.created_at
		FROM users u
		LEFT JOIN LATERAL (
			SELECT count(*) AS assigned_count
			FROM leads l
			WHERE l.assigned_to_user_id = u.id AND l.deleted_at IS NULL
		) c ON true
		WHERE u.is_active
			AND u.role = ANY($1)
			AND ($2::uuid IS NULL OR u.team_id = $2)
		ORDER BY c.assigned_count ASC, u.id ASC
	`, roles, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *Repository) FindTeamByID(ctx context.Context, id uuid.UUID) (Team, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, territory_code, created_at FROM teams WHERE id = $1
	`, id)
	return scanTeam(row)
}

// FindTeamByTerritory resolves a territory code to the team covering it.
func (r *Repository) FindTeamByTerritory(ctx context.Context, territoryCode string) (Team, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, territory_code, created_at
		FROM teams
		WHERE territory_code = $1
		LIMIT 1
	`, territoryCode)
	return scanTeam(row)
}

func (r *Repository) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, territory_code, created_at FROM teams ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role,
		&user.TeamID, &user.IsActive, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

func scanTeam(row pgx.Row) (Team, error) {
	var team Team
	err := row.Scan(&team.ID, &team.Name, &team.TerritoryCode, &team.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrTeamNotFound
	}
	return team, err
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
