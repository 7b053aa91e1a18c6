// Package handler serves user and team reference data.
package handler

import (
	"net/http"
	"time"

	"leadpilot_backend/internal/identity/repository"
	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

type userResponse struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	TeamID   *uuid.UUID `json:"teamId,omitempty"`
	IsActive bool       `json:"isActive"`
}

type teamResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TerritoryCode *string   `json:"territoryCode,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(c *gin.Context) {
	var teamID *uuid.UUID
	if raw := c.Query("teamId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid team id", nil)
			return
		}
		teamID = &id
	}
	activeOnly := c.Query("active") != "false"

	users, err := h.repo.ListUsers(c.Request.Context(), teamID, activeOnly)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
			TeamID:   user.TeamID,
			IsActive: user.IsActive,
		})
	}
	httpkit.OK(c, items)
}

// ListTeams handles GET /teams.
func (h *Handler) ListTeams(c *gin.Context) {
	teams, err := h.repo.ListTeams(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]teamResponse, 0, len(teams))
	for _, team := range teams {
		items = append(items, teamResponse{
			ID:            team.ID,
			Name:          team.Name,
			TerritoryCode: team.TerritoryCode,
			CreatedAt:     team.CreatedAt,
		})
	}
	httpkit.OK(c, items)
}
