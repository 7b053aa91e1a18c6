package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNoteNotFound = errors.New("note not found")

// Note is free-form commentary attached to a lead.
type Note struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	AuthorID   uuid.UUID
	AuthorName string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *Repository) AddNote(ctx context.Context, leadID, authorID uuid.UUID, body string) (Note, error) {
	row := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO lead_notes (lead_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, lead_id, author_id, body, created_at, updated_at
		)
		SELECT i.id, i.lead_id, i.author_id, COALESCE(u.name, ''), i.body, i.created_at, i.updated_at
		FROM inserted i
		LEFT JOIN users u ON u.id = i.author_id
	`, leadID, authorID, body)
	return scanNote(row)
}

func (r *Repository) ListNotes(ctx context.Context, leadID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT n.id, n.lead_id, n.author_id, COALESCE(u.name, ''), n.body, n.created_at, n.updated_at
		FROM lead_notes n
		LEFT JOIN users u ON u.id = n.author_id
		WHERE n.lead_id = $1
		ORDER BY n.created_at DESC, n.id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (r *Repository) UpdateNote(ctx context.Context, noteID, authorID uuid.UUID, body string) (Note, error) {
	row := r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE lead_notes SET body = $3, updated_at = now()
			WHERE id = $1 AND author_id = $2
			RETURNING id, lead_id, author_id, body, created_at, updated_at
		)
		SELECT u2.id, u2.lead_id, u2.author_id, COALESCE(u.name, ''), u2.body, u2.created_at, u2.updated_at
		FROM updated u2
		LEFT JOIN users u ON u.id = u2.author_id
	`, noteID, authorID, body)
	return scanNote(row)
}

// DeleteNote removes a note. Only the author may delete their own note.
func (r *Repository) DeleteNote(ctx context.Context, noteID, authorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lead_notes WHERE id = $1 AND author_id = $2`, noteID, authorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func scanNote(row pgx.Row) (Note, error) {
	var note Note
	err := row.Scan(&note.ID, &note.LeadID, &note.AuthorID, &note.AuthorName,
		&note.Body, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Note{}, ErrNoteNotFound
	}
	return note, err
}
