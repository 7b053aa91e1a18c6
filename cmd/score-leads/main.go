// Command score-leads backfills score snapshots for leads that have never
// been scored. Intended for one-off runs after enabling scoring or after
// bulk data loads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"leadpilot_backend/internal/leads"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/internal/scheduler"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/db"
	"leadpilot_backend/platform/events"
	"leadpilot_backend/platform/logger"
)

func main() {
	limit := flag.Int("limit", 1000, "maximum number of leads to score in this run")
	flag.Parse()

	if err := run(*limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Env)
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	inline := scheduler.NewInline(log)

	leadsModule := leads.NewModule(pool, bus, inline, cfg, log)
	inline.Bind(leadsModule.Orchestrator(), leadsModule.Imports())

	repo := repository.New(pool)
	ids, err := repo.LeadIDsWithoutScore(ctx, limit)
	if err != nil {
		return fmt.Errorf("find unscored leads: %w", err)
	}
	if len(ids) == 0 {
		log.Info("no unscored leads found")
		return nil
	}

	// One cache for the whole run so each team's rule is resolved once.
	cache := scoring.NewRuleCache()
	scored, failed := 0, 0
	for _, id := range ids {
		if _, err := leadsModule.Orchestrator().ScoreLead(ctx, id, nil, cache); err != nil {
			log.Error("score lead", "lead_id", id, "error", err)
			failed++
			continue
		}
		scored++
	}

	log.Info("backfill finished", "scored", scored, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d leads failed to score", failed)
	}
	return nil
}
