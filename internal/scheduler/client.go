package scheduler

import (
	"context"

	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client enqueues background tasks onto the Redis-backed queue.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// NewClient creates a task queue client from a Redis URL.
func NewClient(redisURL string, tlsInsecure bool, queue string, log *logger.Logger) (*Client, error) {
	opt, err := redisConnOpt(redisURL, tlsInsecure)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
		log:    log,
	}, nil
}

func (c *Client) EnqueueScore(ctx context.Context, leadID uuid.UUID) error {
	task, err := NewScoreLeadTask(leadID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	if err != nil {
		return err
	}
	c.log.Debug("task enqueued", "type", TypeScoreLead, "task_id", info.ID, "lead_id", leadID)
	return nil
}

func (c *Client) EnqueueImport(ctx context.Context, importID uuid.UUID) error {
	task, err := NewProcessBatchTask(importID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	if err != nil {
		return err
	}
	c.log.Debug("task enqueued", "type", TypeProcessBatch, "task_id", info.ID, "import_id", importID)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
