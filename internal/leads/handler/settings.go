package handler

import (
	"net/http"

	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/scoring"
	"leadpilot_backend/internal/leads/transport"
	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettingsHandler manages scoring rule configuration and reference data.
type SettingsHandler struct {
	repo *repository.Repository
}

func NewSettingsHandler(repo *repository.Repository) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// ListRules handles GET /scoring-rules.
func (h *SettingsHandler) ListRules(c *gin.Context) {
	rules, err := h.repo.ListRules(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, transport.ToRuleResponse(rule))
	}
	httpkit.OK(c, items)
}

// UpsertRule handles PUT /scoring-rules. The weight override is merged
// against the defaults up front so invalid configurations are rejected
// before they can break scoring.
func (h *SettingsHandler) UpsertRule(c *gin.Context) {
	var req transport.UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	override, err := scoring.ParseOverride(req.Weights)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid weight configuration", err.Error())
		return
	}
	if _, err := scoring.Merge(scoring.DefaultWeights(), override); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid weight configuration", err.Error())
		return
	}

	rule, err := h.repo.UpsertRule(c.Request.Context(), repository.UpsertRuleParams{
		Name:     req.Name,
		TeamID:   req.TeamID,
		Weights:  req.Weights,
		IsActive: req.IsActive,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRuleResponse(rule))
}

// DeleteRule handles DELETE /scoring-rules/:id.
func (h *SettingsHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid rule id", nil)
		return
	}
	if httpkit.HandleError(c, h.repo.DeleteRule(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSources handles GET /lead-sources.
func (h *SettingsHandler) ListSources(c *gin.Context) {
	sources, err := h.repo.ListSources(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.SourceResponse, 0, len(sources))
	for _, source := range sources {
		items = append(items, transport.ToSourceResponse(source))
	}
	httpkit.OK(c, items)
}
