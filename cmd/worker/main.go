// Command worker consumes background tasks: score calculations and CSV
// import batches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadpilot_backend/internal/leads"
	"leadpilot_backend/internal/scheduler"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/db"
	"leadpilot_backend/platform/events"
	"leadpilot_backend/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the worker")
	}

	log := logger.New(cfg.Env)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)

	// The worker enqueues follow-up tasks onto the same queue it consumes.
	client, err := scheduler.NewClient(cfg.RedisURL, cfg.RedisTLSInsecure, cfg.AsynqQueueName, log)
	if err != nil {
		return fmt.Errorf("create task client: %w", err)
	}
	defer client.Close()

	leadsModule := leads.NewModule(pool, bus, client, cfg, log)

	worker, err := scheduler.NewWorker(cfg.RedisURL, cfg.RedisTLSInsecure, cfg.AsynqQueueName, cfg.AsynqConcurrency,
		leadsModule.Orchestrator(), leadsModule.Imports(), log)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down worker")
		worker.Shutdown()
	}()

	log.Info("worker started", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
	return worker.Run()
}
