// Command api runs the lead pipeline HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadpilot_backend/internal/identity"
	"leadpilot_backend/internal/leads"
	"leadpilot_backend/internal/notification"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/db"
	"leadpilot_backend/platform/events"
	"leadpilot_backend/platform/logger"

	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/internal/http/router"
	"leadpilot_backend/internal/scheduler"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
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

	log := logger.New(cfg.Env)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectWithRetry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	bus := events.NewInMemoryBus(log)

	// Prefer the Redis-backed queue; fall back to in-process execution
	// when REDIS_URL is unset.
	var (
		taskScheduler leads.Scheduler
		inline        *scheduler.Inline
	)
	if cfg.RedisURL != "" {
		client, err := scheduler.NewClient(cfg.RedisURL, cfg.RedisTLSInsecure, cfg.AsynqQueueName, log)
		if err != nil {
			return fmt.Errorf("create task client: %w", err)
		}
		defer client.Close()
		taskScheduler = client
		log.Info("task scheduling via redis queue", "queue", cfg.AsynqQueueName)
	} else {
		inline = scheduler.NewInline(log)
		taskScheduler = inline
		log.Warn("REDIS_URL not set, running background tasks in-process")
	}

	leadsModule := leads.NewModule(pool, bus, taskScheduler, cfg, log)
	if inline != nil {
		inline.Bind(leadsModule.Orchestrator(), leadsModule.Imports())
	}

	// In Redis mode the api consumes its own queue, so a single binary
	// deployment still processes score and import tasks. cmd/worker exists
	// for scaling consumers out separately.
	var worker *scheduler.Worker
	if cfg.RedisURL != "" {
		worker, err = scheduler.NewWorker(cfg.RedisURL, cfg.RedisTLSInsecure, cfg.AsynqQueueName, cfg.AsynqConcurrency,
			leadsModule.Orchestrator(), leadsModule.Imports(), log)
		if err != nil {
			return fmt.Errorf("create embedded worker: %w", err)
		}
	}

	modules := []apphttp.Module{
		leadsModule,
		identity.NewModule(pool),
		notification.NewModule(bus, log),
	}

	engine := router.New(cfg, log, db.NewPoolAdapter(pool), modules...)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if worker != nil {
		group.Go(func() error {
			if err := worker.Start(); err != nil {
				return err
			}
			log.Info("embedded worker started", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
			<-groupCtx.Done()
			worker.Shutdown()
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// connectWithRetry retries the initial database connection; the database
// container may still be starting.
func connectWithRetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err := db.NewPool(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		log.Warn("database connection failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}
