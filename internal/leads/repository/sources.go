package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrSourceNotFound = errors.New("lead source not found")

// Source is a lead acquisition channel, e.g. web form, referral, event booth.
// The channel column feeds the scoring engine's source weight lookup.
type Source struct {
	ID      uuid.UUID
	Name    string
	Channel string
}

func (r *Repository) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, channel FROM lead_sources ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]Source, 0)
	for rows.Next() {
		var source Source
		if err := rows.Scan(&source.ID, &source.Name, &source.Channel); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (r *Repository) FindSourceByID(ctx context.Context, id uuid.UUID) (Source, error) {
	var source Source
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, channel FROM lead_sources WHERE id = $1
	`, id).Scan(&source.ID, &source.Name, &source.Channel)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, ErrSourceNotFound
	}
	return source, err
}

// FindSourceByChannel resolves a channel string to a source, used by the
// CSV importer which references sources by channel rather than id.
func (r *Repository) FindSourceByChannel(ctx context.Context, channel string) (Source, error) {
	var source Source
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, channel FROM lead_sources WHERE channel = $1 LIMIT 1
	`, channel).Scan(&source.ID, &source.Name, &source.Channel)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, ErrSourceNotFound
	}
	return source, err
}
