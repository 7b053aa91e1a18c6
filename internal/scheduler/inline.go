package scheduler

import (
	"context"
	"time"

	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

// Inline runs tasks in-process. It stands in for the Redis-backed queue
// when REDIS_URL is unset, typically in development and tests.
type Inline struct {
	scores  ScoreRunner
	batches BatchRunner
	log     *logger.Logger
	timeout time.Duration
}

func NewInline(log *logger.Logger) *Inline {
	return &Inline{log: log, timeout: 5 * time.Minute}
}

// Bind wires the runners after construction. The import service itself
// needs a scheduler, so the two are created before being connected.
func (s *Inline) Bind(scores ScoreRunner, batches BatchRunner) {
	s.scores = scores
	s.batches = batches
}

func (s *Inline) EnqueueScore(ctx context.Context, leadID uuid.UUID) error {
	go func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if _, err := s.scores.ScoreLead(runCtx, leadID, nil, nil); err != nil {
			s.log.Error("inline score task failed", "lead_id", leadID, "error", err)
		}
	}()
	return nil
}

func (s *Inline) EnqueueImport(ctx context.Context, importID uuid.UUID) error {
	go func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.batches.Process(runCtx, importID); err != nil {
			s.log.Error("inline import task failed", "import_id", importID, "error", err)
		}
	}()
	return nil
}
