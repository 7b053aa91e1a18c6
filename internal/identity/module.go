// Package identity exposes user and team reference data consumed by the
// frontend for assignment and filtering UI.
package identity

import (
	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/internal/identity/handler"
	"leadpilot_backend/internal/identity/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{
		handler: handler.New(repository.New(pool)),
	}
}

func (m *Module) Name() string { return "identity" }

func (m *Module) RegisterRoutes(ctx apphttp.RouterContext) {
	ctx.API.GET("/users", m.handler.ListUsers)
	ctx.API.GET("/teams", m.handler.ListTeams)
}
