package imports

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeBatchStore struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]repository.Import
	channels map[string]repository.Source
}

func newBatchStore() *fakeBatchStore {
	return &fakeBatchStore{
		batches: map[uuid.UUID]repository.Import{},
		channels: map[string]repository.Source{
			"web": {ID: uuid.New(), Name: "Website form", Channel: "web"},
		},
	}
}

func (s *fakeBatchStore) CreateImport(_ context.Context, params repository.CreateImportParams) (repository.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := repository.Import{
		ID:              uuid.New(),
		FileName:        params.FileName,
		FilePath:        params.FilePath,
		Status:          repository.ImportStatusPending,
		CreatedByUserID: params.CreatedByUserID,
		TeamID:          params.TeamID,
	}
	s.batches[batch.ID] = batch
	return batch, nil
}

func (s *fakeBatchStore) GetImport(_ context.Context, id uuid.UUID) (repository.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return repository.Import{}, repository.ErrImportNotFound
	}
	return batch, nil
}

func (s *fakeBatchStore) ListImports(_ context.Context, _ *uuid.UUID, _ int) ([]repository.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batches := make([]repository.Import, 0, len(s.batches))
	for _, batch := range s.batches {
		batches = append(batches, batch)
	}
	return batches, nil
}

func (s *fakeBatchStore) MarkImportProcessing(_ context.Context, id uuid.UUID, totalRows int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok || batch.Status != repository.ImportStatusPending {
		return false, nil
	}
	batch.Status = repository.ImportStatusProcessing
	batch.TotalRows = totalRows
	s.batches[id] = batch
	return true, nil
}

func (s *fakeBatchStore) FinishImport(_ context.Context, params repository.FinishImportParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batches[params.ID]
	batch.Status = params.Status
	batch.ProcessedRows = params.ProcessedRows
	batch.ErrorRows = params.ErrorRows
	batch.RowErrors = params.RowErrors
	s.batches[params.ID] = batch
	return nil
}

func (s *fakeBatchStore) MarkImportFailed(_ context.Context, id uuid.UUID, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batches[id]
	if batch.Status != repository.ImportStatusPending {
		return false, nil
	}
	batch.Status = repository.ImportStatusFailed
	batch.RowErrors = []repository.RowError{{RowNumber: 0, Message: message}}
	s.batches[id] = batch
	return true, nil
}

func (s *fakeBatchStore) FindSourceByChannel(_ context.Context, channel string) (repository.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.channels[channel]
	if !ok {
		return repository.Source{}, repository.ErrSourceNotFound
	}
	return source, nil
}

type fakePipeline struct {
	mu      sync.Mutex
	created []pipeline.CreateLeadInput
	scored  []uuid.UUID
}

func (p *fakePipeline) CreateLead(_ context.Context, _ pipeline.Actor, input pipeline.CreateLeadInput) (repository.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, input)
	return repository.Lead{ID: uuid.New(), FirstName: input.FirstName, LastName: input.LastName}, nil
}

func (p *fakePipeline) ScoreLead(_ context.Context, leadID uuid.UUID, _ *uuid.UUID, cache *scoring.RuleCache) (scoring.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scored = append(p.scored, leadID)
	return scoring.Result{Score: 40}, nil
}

type fakeImportScheduler struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (s *fakeImportScheduler) EnqueueImport(_ context.Context, importID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, importID)
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newTestService(t *testing.T, store *fakeBatchStore, pipe *fakePipeline, sched *fakeImportScheduler, bus *recordingBus) *Service {
	t.Helper()
	return NewService(store, pipe, sched, bus, logger.New("test"), t.TempDir(), 1000)
}

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leads.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func seedBatch(store *fakeBatchStore, filePath string) repository.Import {
	batch, _ := store.CreateImport(context.Background(), repository.CreateImportParams{
		FileName:        filepath.Base(filePath),
		FilePath:        filePath,
		CreatedByUserID: uuid.New(),
	})
	return batch
}

func TestCreateBatchStoresFileAndEnqueues(t *testing.T) {
	store := newBatchStore()
	sched := &fakeImportScheduler{}
	service := newTestService(t, store, &fakePipeline{}, sched, &recordingBus{})

	actor := pipeline.Actor{ID: uuid.New()}
	batch, err := service.CreateBatch(context.Background(), actor, "leads.csv",
		strings.NewReader("first_name,last_name\nAnna,Visser\n"))
	if err != nil {
		t.Fatalf("create batch failed: %v", err)
	}

	if batch.Status != repository.ImportStatusPending {
		t.Errorf("expected pending status, got %q", batch.Status)
	}
	if _, err := os.Stat(batch.FilePath); err != nil {
		t.Errorf("expected stored file at %s: %v", batch.FilePath, err)
	}
	if len(sched.enqueued) != 1 || sched.enqueued[0] != batch.ID {
		t.Errorf("expected one enqueued batch %s, got %v", batch.ID, sched.enqueued)
	}
}

func TestProcessIsolatesBadRows(t *testing.T) {
	content := "first_name,last_name,potential_value,source_channel\n"
	for i := 0; i < 10; i++ {
		if i == 3 {
			// Missing last name: the row must fail without sinking the batch.
			content += "Broken,,1000,web\n"
			continue
		}
		content += "Anna,Visser,1000,web\n"
	}

	store := newBatchStore()
	pipe := &fakePipeline{}
	service := newTestService(t, store, pipe, &fakeImportScheduler{}, &recordingBus{})

	dir := t.TempDir()
	batch := seedBatch(store, writeCSV(t, dir, content))

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	result, _ := store.GetImport(context.Background(), batch.ID)
	if result.Status != repository.ImportStatusCompletedWithErrors {
		t.Errorf("expected completed_with_errors, got %q", result.Status)
	}
	if result.ProcessedRows != 9 {
		t.Errorf("expected 9 processed rows, got %d", result.ProcessedRows)
	}
	if result.ErrorRows != 1 || len(result.RowErrors) != 1 {
		t.Fatalf("expected exactly 1 row error, got %d (%v)", result.ErrorRows, result.RowErrors)
	}
	// Header is line 1, bad row is the 4th data row.
	if result.RowErrors[0].RowNumber != 5 {
		t.Errorf("expected row number 5, got %d", result.RowErrors[0].RowNumber)
	}
	if len(pipe.created) != 9 || len(pipe.scored) != 9 {
		t.Errorf("expected 9 created and scored leads, got %d/%d", len(pipe.created), len(pipe.scored))
	}
}

func TestProcessCleanBatchCompletes(t *testing.T) {
	content := "first_name,last_name\nAnna,Visser\nBram,Smit\n"

	store := newBatchStore()
	bus := &recordingBus{}
	service := newTestService(t, store, &fakePipeline{}, &fakeImportScheduler{}, bus)

	batch := seedBatch(store, writeCSV(t, t.TempDir(), content))

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	result, _ := store.GetImport(context.Background(), batch.ID)
	if result.Status != repository.ImportStatusCompleted {
		t.Errorf("expected completed, got %q", result.Status)
	}
	if result.TotalRows != 2 || result.ProcessedRows != 2 || result.ErrorRows != 0 {
		t.Errorf("unexpected counters: %+v", result)
	}

	completed := false
	for _, event := range bus.events {
		if typed, ok := event.(events.ImportCompleted); ok {
			completed = true
			if typed.Status != repository.ImportStatusCompleted || typed.ProcessedRows != 2 {
				t.Errorf("unexpected completion event: %+v", typed)
			}
		}
	}
	if !completed {
		t.Error("expected imports.completed event")
	}
}

func TestProcessUnknownSourceChannelIsRowError(t *testing.T) {
	content := "first_name,last_name,source_channel\nAnna,Visser,carrier_pigeon\n"

	store := newBatchStore()
	service := newTestService(t, store, &fakePipeline{}, &fakeImportScheduler{}, &recordingBus{})

	batch := seedBatch(store, writeCSV(t, t.TempDir(), content))

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	result, _ := store.GetImport(context.Background(), batch.ID)
	if result.Status != repository.ImportStatusCompletedWithErrors {
		t.Errorf("expected completed_with_errors, got %q", result.Status)
	}
	if len(result.RowErrors) != 1 || !strings.Contains(result.RowErrors[0].Message, "carrier_pigeon") {
		t.Errorf("expected row error naming the unknown channel, got %v", result.RowErrors)
	}
}

func TestProcessUnreadableFileFailsBatch(t *testing.T) {
	store := newBatchStore()
	bus := &recordingBus{}
	service := newTestService(t, store, &fakePipeline{}, &fakeImportScheduler{}, bus)

	batch := seedBatch(store, filepath.Join(t.TempDir(), "missing.csv"))

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("process returned error for batch-fatal case: %v", err)
	}

	result, _ := store.GetImport(context.Background(), batch.ID)
	if result.Status != repository.ImportStatusFailed {
		t.Errorf("expected failed status, got %q", result.Status)
	}

	failed := false
	for _, event := range bus.events {
		if typed, ok := event.(events.ImportCompleted); ok && typed.Status == repository.ImportStatusFailed {
			failed = true
		}
	}
	if !failed {
		t.Error("expected imports.completed event with failed status")
	}
}

func TestProcessKeepsFinishedBatchWhenFileVanishes(t *testing.T) {
	content := "first_name,last_name\nAnna,Visser\n"

	store := newBatchStore()
	bus := &recordingBus{}
	service := newTestService(t, store, &fakePipeline{}, &fakeImportScheduler{}, bus)

	path := writeCSV(t, t.TempDir(), content)
	batch := seedBatch(store, path)

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("first process failed: %v", err)
	}

	// The stored file is cleaned up, then the task is delivered again.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove csv: %v", err)
	}
	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("second process failed: %v", err)
	}

	result, _ := store.GetImport(context.Background(), batch.ID)
	if result.Status != repository.ImportStatusCompleted {
		t.Errorf("re-delivery must not overwrite a finished batch, got %q", result.Status)
	}
	for _, event := range bus.events {
		if typed, ok := event.(events.ImportCompleted); ok && typed.Status == repository.ImportStatusFailed {
			t.Error("no failure event may be published for a finished batch")
		}
	}
}

func TestProcessSkipsAlreadyClaimedBatch(t *testing.T) {
	content := "first_name,last_name\nAnna,Visser\n"

	store := newBatchStore()
	pipe := &fakePipeline{}
	service := newTestService(t, store, pipe, &fakeImportScheduler{}, &recordingBus{})

	batch := seedBatch(store, writeCSV(t, t.TempDir(), content))

	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	if err := service.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("second process failed: %v", err)
	}

	if len(pipe.created) != 1 {
		t.Errorf("re-delivered batch must not create leads twice, got %d", len(pipe.created))
	}
}
