// Package imports processes CSV lead import batches. Rows are isolated:
// one bad row is recorded and skipped, the rest of the batch proceeds.
package imports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/platform/apperr"
	"leadpilot_backend/platform/logger"
	"leadpilot_backend/platform/validator"

	"github.com/google/uuid"
)

// BatchStore persists import batch state.
type BatchStore interface {
	CreateImport(ctx context.Context, params repository.CreateImportParams) (repository.Import, error)
	GetImport(ctx context.Context, id uuid.UUID) (repository.Import, error)
	ListImports(ctx context.Context, createdBy *uuid.UUID, limit int) ([]repository.Import, error)
	MarkImportProcessing(ctx context.Context, id uuid.UUID, totalRows int) (bool, error)
	FinishImport(ctx context.Context, params repository.FinishImportParams) error
	MarkImportFailed(ctx context.Context, id uuid.UUID, message string) (bool, error)
	FindSourceByChannel(ctx context.Context, channel string) (repository.Source, error)
}

// Pipeline creates and scores leads on behalf of the importer.
type Pipeline interface {
	CreateLead(ctx context.Context, actor pipeline.Actor, input pipeline.CreateLeadInput) (repository.Lead, error)
	ScoreLead(ctx context.Context, leadID uuid.UUID, calculatedBy *uuid.UUID, cache *scoring.RuleCache) (scoring.Result, error)
}

// ImportScheduler enqueues batch processing.
type ImportScheduler interface {
	EnqueueImport(ctx context.Context, importID uuid.UUID) error
}

// Service manages the import batch lifecycle.
type Service struct {
	store     BatchStore
	pipeline  Pipeline
	scheduler ImportScheduler
	bus       events.Bus
	log       *logger.Logger
	validate  *validator.Validator
	importDir string
	maxRows   int
}

func NewService(store BatchStore, pipe Pipeline, scheduler ImportScheduler, bus events.Bus, log *logger.Logger, importDir string, maxRows int) *Service {
	return &Service{
		store:     store,
		pipeline:  pipe,
		scheduler: scheduler,
		bus:       bus,
		log:       log,
		validate:  validator.New(),
		importDir: importDir,
		maxRows:   maxRows,
	}
}

// CreateBatch stores the uploaded file, records a pending batch, and
// enqueues processing.
func (s *Service) CreateBatch(ctx context.Context, actor pipeline.Actor, fileName string, file io.Reader) (repository.Import, error) {
	if err := os.MkdirAll(s.importDir, 0o755); err != nil {
		return repository.Import{}, apperr.Wrap(apperr.KindInternal, "failed to prepare import storage", err)
	}

	storedName := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(fileName))
	storedPath := filepath.Join(s.importDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		return repository.Import{}, apperr.Wrap(apperr.KindInternal, "failed to store import file", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		return repository.Import{}, apperr.Wrap(apperr.KindInternal, "failed to store import file", err)
	}
	if err := dst.Close(); err != nil {
		return repository.Import{}, apperr.Wrap(apperr.KindInternal, "failed to store import file", err)
	}

	batch, err := s.store.CreateImport(ctx, repository.CreateImportParams{
		FileName:        filepath.Base(fileName),
		FilePath:        storedPath,
		CreatedByUserID: actor.ID,
		TeamID:          actor.TeamID,
	})
	if err != nil {
		return repository.Import{}, apperr.Wrap(apperr.KindInternal, "failed to create import batch", err)
	}

	if err := s.scheduler.EnqueueImport(ctx, batch.ID); err != nil {
		s.log.Error("enqueue import batch", "import_id", batch.ID, "error", err)
	}
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (repository.Import, error) {
	batch, err := s.store.GetImport(ctx, id)
	if errors.Is(err, repository.ErrImportNotFound) {
		return repository.Import{}, apperr.NotFound("import not found")
	}
	return batch, err
}

func (s *Service) ListBatches(ctx context.Context, createdBy *uuid.UUID, limit int) ([]repository.Import, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListImports(ctx, createdBy, limit)
}

// Process runs a batch to completion. Batch-fatal problems, an unreadable
// file or a malformed header, mark the batch failed. Row-level problems are
// recorded per row and the batch finishes as completed_with_errors.
func (s *Service) Process(ctx context.Context, importID uuid.UUID) error {
	batch, err := s.store.GetImport(ctx, importID)
	if err != nil {
		return err
	}

	records, fatalErr := s.readRecords(batch.FilePath)
	if fatalErr != nil {
		s.log.Error("import batch unreadable", "import_id", importID, "error", fatalErr)
		failed, err := s.store.MarkImportFailed(ctx, importID, fatalErr.Error())
		if err != nil {
			return err
		}
		if !failed {
			// The batch already ran; its stored file may be gone by now.
			s.log.Info("import batch already finished", "import_id", importID)
			return nil
		}
		s.publishCompleted(ctx, importID, repository.ImportStatusFailed, 0, 0, 0)
		return nil
	}

	started, err := s.store.MarkImportProcessing(ctx, importID, len(records))
	if err != nil {
		return err
	}
	if !started {
		// Re-delivered job; the batch already ran or is running.
		s.log.Info("import batch already claimed", "import_id", importID)
		return nil
	}

	actor := pipeline.Actor{ID: batch.CreatedByUserID, TeamID: batch.TeamID}
	cache := scoring.NewRuleCache()

	processed := 0
	rowErrors := make([]repository.RowError, 0)
	for index, record := range records {
		// Header is line 1, so the first data row is 2.
		rowNumber := index + 2
		if err := s.processRow(ctx, actor, batch, record, cache); err != nil {
			rowErrors = append(rowErrors, repository.RowError{RowNumber: rowNumber, Message: err.Error()})
			continue
		}
		processed++
	}

	status := repository.ImportStatusCompleted
	if len(rowErrors) > 0 {
		status = repository.ImportStatusCompletedWithErrors
	}

	if err := s.store.FinishImport(ctx, repository.FinishImportParams{
		ID:            importID,
		Status:        status,
		ProcessedRows: processed,
		ErrorRows:     len(rowErrors),
		RowErrors:     rowErrors,
	}); err != nil {
		return err
	}

	s.publishCompleted(ctx, importID, status, len(records), processed, len(rowErrors))
	return nil
}

// record is one parsed CSV data row keyed by header column.
type record map[string]string

func (s *Service) readRecords(path string) ([]record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	records := make([]record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		if len(records) >= s.maxRows {
			return nil, fmt.Errorf("import exceeds maximum of %d rows", s.maxRows)
		}

		fields := make(record, len(header))
		for i, value := range row {
			if i < len(header) {
				fields[header[i]] = strings.TrimSpace(value)
			}
		}
		records = append(records, fields)
	}
	return records, nil
}

func (s *Service) processRow(ctx context.Context, actor pipeline.Actor, batch repository.Import, row record, cache *scoring.RuleCache) error {
	input, err := s.buildInput(ctx, batch, row)
	if err != nil {
		return err
	}

	lead, err := s.pipeline.CreateLead(ctx, actor, input)
	if err != nil {
		return err
	}

	if _, err := s.pipeline.ScoreLead(ctx, lead.ID, nil, cache); err != nil {
		// The lead exists; a scoring failure still counts against the row.
		return fmt.Errorf("score imported lead: %w", err)
	}
	return nil
}

// rowPayload carries the validated core fields of one CSV row.
type rowPayload struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"omitempty,email"`
	Status    string `validate:"omitempty,oneof=new contacted qualified converted lost"`
}

func (s *Service) buildInput(ctx context.Context, batch repository.Import, row record) (pipeline.CreateLeadInput, error) {
	payload := rowPayload{
		FirstName: row["first_name"],
		LastName:  row["last_name"],
		Email:     row["email"],
		Status:    row["status"],
	}
	if err := s.validate.Struct(payload); err != nil {
		return pipeline.CreateLeadInput{}, fmt.Errorf("invalid row: %w", err)
	}

	input := pipeline.CreateLeadInput{
		FirstName:     payload.FirstName,
		LastName:      payload.LastName,
		CompanyName:   optional(row["company_name"]),
		Email:         optional(row["email"]),
		Phone:         optional(row["phone"]),
		Status:        row["status"],
		TeamID:        batch.TeamID,
		TerritoryCode: optional(row["territory_code"]),
		Currency:      row["currency"],
		DeferScore:    true,
	}

	if raw := row["potential_value"]; raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return pipeline.CreateLeadInput{}, fmt.Errorf("invalid potential_value %q", raw)
		}
		if value < 0 {
			return pipeline.CreateLeadInput{}, fmt.Errorf("potential_value must not be negative")
		}
		input.PotentialValue = value
	}

	if channel := row["source_channel"]; channel != "" {
		source, err := s.store.FindSourceByChannel(ctx, channel)
		if err != nil {
			if errors.Is(err, repository.ErrSourceNotFound) {
				return pipeline.CreateLeadInput{}, fmt.Errorf("unknown source channel %q", channel)
			}
			return pipeline.CreateLeadInput{}, err
		}
		input.SourceID = &source.ID
	}

	if raw := row["last_contacted_at"]; raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return pipeline.CreateLeadInput{}, fmt.Errorf("invalid last_contacted_at %q", raw)
		}
		input.LastContactedAt = &parsed
	}
	if raw := row["next_action_at"]; raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return pipeline.CreateLeadInput{}, fmt.Errorf("invalid next_action_at %q", raw)
		}
		input.NextActionAt = &parsed
	}

	return input, nil
}

func (s *Service) publishCompleted(ctx context.Context, importID uuid.UUID, status string, total, processed, errored int) {
	s.bus.Publish(ctx, events.ImportCompleted{
		BaseEvent:     events.NewBaseEvent(),
		ImportID:      importID,
		Status:        status,
		TotalRows:     total,
		ProcessedRows: processed,
		ErrorRows:     errored,
	})
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format")
}
