package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ScoreRunner computes and persists a lead score.
type ScoreRunner interface {
	ScoreLead(ctx context.Context, leadID uuid.UUID, calculatedBy *uuid.UUID, cache *scoring.RuleCache) (scoring.Result, error)
}

// BatchRunner processes an import batch to completion.
type BatchRunner interface {
	Process(ctx context.Context, importID uuid.UUID) error
}

// Worker consumes queued tasks and dispatches them to the domain services.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker creates a task worker bound to the given queue.
func NewWorker(redisURL string, tlsInsecure bool, queue string, concurrency int, scores ScoreRunner, batches BatchRunner, log *logger.Logger) (*Worker, error) {
	opt, err := redisConnOpt(redisURL, tlsInsecure)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeScoreLead, scoreHandler(scores))
	mux.HandleFunc(TypeProcessBatch, batchHandler(batches))

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run starts the worker and blocks until shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Start begins task processing without blocking. Callers embedding the
// worker next to another server own the shutdown signal themselves.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func scoreHandler(scores ScoreRunner) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload ScoreLeadPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w: %w", TypeScoreLead, err, asynq.SkipRetry)
		}
		if _, err := scores.ScoreLead(ctx, payload.LeadID, nil, nil); err != nil {
			return fmt.Errorf("score lead %s: %w", payload.LeadID, err)
		}
		return nil
	}
}

func batchHandler(batches BatchRunner) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload ProcessBatchPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w: %w", TypeProcessBatch, err, asynq.SkipRetry)
		}
		return batches.Process(ctx, payload.ImportID)
	}
}
