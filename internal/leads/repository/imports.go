package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrImportNotFound = errors.New("import not found")

// Import batch statuses. A batch moves pending -> processing -> one of the
// terminal states. completed_with_errors means some rows failed but the
// batch itself finished; failed is reserved for batch-fatal errors.
const (
	ImportStatusPending             = "pending"
	ImportStatusProcessing          = "processing"
	ImportStatusCompleted           = "completed"
	ImportStatusCompletedWithErrors = "completed_with_errors"
	ImportStatusFailed              = "failed"
)

// Import is a CSV import batch.
type Import struct {
	ID              uuid.UUID
	FileName        string
	FilePath        string
	Status          string
	TotalRows       int
	ProcessedRows   int
	ErrorRows       int
	RowErrors       []RowError
	CreatedByUserID uuid.UUID
	TeamID          *uuid.UUID
	StartedAt       *time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
}

// RowError records why a single row was rejected. RowNumber matches the
// line in the uploaded file including the header, so the first data row is 2.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

const importColumns = `id, file_name, file_path, status, total_rows, processed_rows,
	error_rows, row_errors, created_by_user_id, team_id, started_at, finished_at, created_at`

type CreateImportParams struct {
	FileName        string
	FilePath        string
	CreatedByUserID uuid.UUID
	TeamID          *uuid.UUID
}

func (r *Repository) CreateImport(ctx context.Context, params CreateImportParams) (Import, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_imports (file_name, file_path, status, created_by_user_id, team_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+importColumns,
		params.FileName, params.FilePath, ImportStatusPending, params.CreatedByUserID, params.TeamID)
	return scanImport(row)
}

func (r *Repository) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+importColumns+` FROM lead_imports WHERE id = $1
	`, id)
	return scanImport(row)
}

func (r *Repository) ListImports(ctx context.Context, createdBy *uuid.UUID, limit int) ([]Import, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+importColumns+`
		FROM lead_imports
		WHERE $1::uuid IS NULL OR created_by_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, createdBy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	imports := make([]Import, 0)
	for rows.Next() {
		batch, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, batch)
	}
	return imports, rows.Err()
}

// MarkImportProcessing transitions pending -> processing. The status guard
// makes re-delivered jobs a no-op.
func (r *Repository) MarkImportProcessing(ctx context.Context, id uuid.UUID, totalRows int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_imports
		SET status = $2, total_rows = $3, started_at = now()
		WHERE id = $1 AND status = $4
	`, id, ImportStatusProcessing, totalRows, ImportStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type FinishImportParams struct {
	ID            uuid.UUID
	Status        string
	ProcessedRows int
	ErrorRows     int
	RowErrors     []RowError
}

func (r *Repository) FinishImport(ctx context.Context, params FinishImportParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_imports
		SET status = $2, processed_rows = $3, error_rows = $4, row_errors = $5, finished_at = now()
		WHERE id = $1
	`, params.ID, params.Status, params.ProcessedRows, params.ErrorRows, params.RowErrors)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImportNotFound
	}
	return nil
}

// MarkImportFailed records a batch-fatal error, e.g. an unreadable file.
// Only a pending batch can fail this way; a re-delivered task for a batch
// that already ran leaves its terminal status alone. Returns false when
// the guard rejected the write.
func (r *Repository) MarkImportFailed(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_imports
		SET status = $2, row_errors = $3, finished_at = now()
		WHERE id = $1 AND status = $4
	`, id, ImportStatusFailed, []RowError{{RowNumber: 0, Message: message}}, ImportStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanImport(row pgx.Row) (Import, error) {
	var batch Import
	err := row.Scan(&batch.ID, &batch.FileName, &batch.FilePath, &batch.Status,
		&batch.TotalRows, &batch.ProcessedRows, &batch.ErrorRows, &batch.RowErrors,
		&batch.CreatedByUserID, &batch.TeamID, &batch.StartedAt, &batch.FinishedAt, &batch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Import{}, ErrImportNotFound
	}
	return batch, err
}
