// Package leads is the lead pipeline bounded context: CRUD, assignment,
// scoring, notes, and CSV imports.
package leads

import (
	"leadpilot_backend/internal/adapters"
	"leadpilot_backend/internal/events"
	apphttp "leadpilot_backend/internal/http"
	identityrepo "leadpilot_backend/internal/identity/repository"
	"leadpilot_backend/internal/leads/assignment"
	"leadpilot_backend/internal/leads/handler"
	"leadpilot_backend/internal/leads/imports"
	"leadpilot_backend/internal/leads/management"
	"leadpilot_backend/internal/leads/notes"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/httpkit"
	"leadpilot_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scheduler is the background task surface the module needs.
type Scheduler interface {
	pipeline.Scheduler
	imports.ImportScheduler
}

// Module owns the lead pipeline routes and services.
type Module struct {
	handler  *handler.Handler
	settings *handler.SettingsHandler

	orchestrator *pipeline.Orchestrator
	importSvc    *imports.Service
}

// NewModule wires the lead pipeline from its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, scheduler Scheduler, cfg config.ImportConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	identity := identityrepo.New(pool)

	directory := adapters.NewAssignmentDirectory(identity)
	engine := assignment.NewEngine(repo, directory, []assignment.Strategy{
		assignment.NewTerritoryStrategy(directory),
		assignment.NewRoundRobinStrategy(directory),
	}, bus, log)

	resolver := scoring.NewResolver(adapters.NewScoringRuleSource(repo))
	orchestrator := pipeline.NewOrchestrator(repo, engine, resolver, scheduler, bus, log)

	importSvc := imports.NewService(repo, orchestrator, scheduler, bus, log,
		cfg.GetImportDir(), cfg.GetImportMaxRows())

	mgmt := management.NewService(repo)
	notesSvc := notes.NewService(repo)

	return &Module{
		handler:      handler.New(orchestrator, mgmt, notesSvc, importSvc),
		settings:     handler.NewSettingsHandler(repo),
		orchestrator: orchestrator,
		importSvc:    importSvc,
	}
}

func (m *Module) Name() string { return "leads" }

// Orchestrator exposes the pipeline for background workers and commands.
func (m *Module) Orchestrator() *pipeline.Orchestrator { return m.orchestrator }

// Imports exposes the import service for background workers.
func (m *Module) Imports() *imports.Service { return m.importSvc }

func (m *Module) RegisterRoutes(ctx apphttp.RouterContext) {
	api := ctx.API

	api.POST("/leads", m.handler.Create)
	api.GET("/leads", m.handler.List)
	api.GET("/leads/:id", m.handler.Get)
	api.PATCH("/leads/:id", m.handler.Update)
	api.DELETE("/leads/:id", m.handler.Delete)
	api.POST("/leads/:id/assign", m.handler.Assign)
	api.POST("/leads/:id/score", m.handler.Score)
	api.GET("/leads/:id/scores", m.handler.ScoreHistory)
	api.GET("/leads/:id/history", m.handler.StatusHistory)
	api.GET("/leads/:id/activities", m.handler.Activities)

	api.GET("/leads/:id/notes", m.handler.ListNotes)
	api.POST("/leads/:id/notes", m.handler.AddNote)
	api.PUT("/notes/:noteId", m.handler.UpdateNote)
	api.DELETE("/notes/:noteId", m.handler.DeleteNote)

	api.POST("/imports", m.handler.CreateImport)
	api.GET("/imports", m.handler.ListImports)
	api.GET("/imports/:id", m.handler.GetImport)

	api.GET("/lead-sources", m.settings.ListSources)

	admin := api.Group("")
	admin.Use(httpkit.RequireRole("admin"))
	admin.GET("/scoring-rules", m.settings.ListRules)
	admin.PUT("/scoring-rules", m.settings.UpsertRule)
	admin.DELETE("/scoring-rules/:id", m.settings.DeleteRule)
}
