// Package handler exposes the leads API over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"leadpilot_backend/internal/leads/imports"
	"leadpilot_backend/internal/leads/management"
	"leadpilot_backend/internal/leads/notes"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/internal/leads/transport"
	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	pipeline   *pipeline.Orchestrator
	management *management.Service
	notes      *notes.Service
	imports    *imports.Service
}

func New(pipe *pipeline.Orchestrator, mgmt *management.Service, notesSvc *notes.Service, importsSvc *imports.Service) *Handler {
	return &Handler{
		pipeline:   pipe,
		management: mgmt,
		notes:      notesSvc,
		imports:    importsSvc,
	}
}

// actorFrom reads the authenticated actor out of the gin context.
func actorFrom(c *gin.Context) pipeline.Actor {
	actor := pipeline.Actor{}
	if userID, ok := c.Get(httpkit.ContextUserIDKey); ok {
		if id, ok := userID.(uuid.UUID); ok {
			actor.ID = id
		}
	}
	if roles, ok := c.Get(httpkit.ContextRolesKey); ok {
		if list, ok := roles.([]string); ok {
			actor.Roles = list
		}
	}
	if teamID, ok := c.Get(httpkit.ContextTeamIDKey); ok {
		if id, ok := teamID.(uuid.UUID); ok {
			actor.TeamID = &id
		}
	}
	return actor
}

func leadIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /leads.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.pipeline.CreateLead(c.Request.Context(), actorFrom(c), pipeline.CreateLeadInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		CompanyName:      req.CompanyName,
		Email:            req.Email,
		Phone:            req.Phone,
		Status:           req.Status,
		TeamID:           req.TeamID,
		SourceID:         req.SourceID,
		TerritoryCode:    req.TerritoryCode,
		PotentialValue:   req.PotentialValue,
		Currency:         req.Currency,
		LastContactedAt:  req.LastContactedAt,
		NextActionAt:     req.NextActionAt,
		PreferredOwnerID: req.PreferredOwnerID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

// List handles GET /leads.
func (h *Handler) List(c *gin.Context) {
	query := management.ListQuery{
		Search:  c.Query("search"),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "perPage", 25),
	}
	if status := c.Query("status"); status != "" {
		query.Status = &status
	}
	if raw := c.Query("teamId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			query.TeamID = &id
		}
	}
	if raw := c.Query("ownerId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			query.OwnerID = &id
		}
	}

	leads, total, err := h.management.List(c.Request.Context(), actorFrom(c), query)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, transport.LeadListResponse{
		Items:   items,
		Total:   total,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
}

// Get handles GET /leads/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}
	snapshot, err := h.management.Get(c.Request.Context(), actorFrom(c), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, snapshot)
}

// Update handles PATCH /leads/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	params := repository.UpdateLeadParams{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CompanyName:    req.CompanyName,
		Email:          req.Email,
		Phone:          req.Phone,
		Status:         req.Status,
		TerritoryCode:  req.TerritoryCode,
		PotentialValue: req.PotentialValue,
		Currency:       req.Currency,
	}
	if req.TeamID != nil {
		params.TeamID = req.TeamID
		params.TeamIDSet = true
	}
	if req.SourceID != nil {
		params.SourceID = req.SourceID
		params.SourceIDSet = true
	}
	if req.LastContactedAt != nil {
		params.LastContactedAt = req.LastContactedAt
		params.LastContactedSet = true
	}
	if req.NextActionAt != nil {
		params.NextActionAt = req.NextActionAt
		params.NextActionSet = true
	}
	if req.AssignedToUserID.Set {
		params.OwnerID = req.AssignedToUserID.Value
		params.OwnerIDSet = true
	}

	lead, err := h.pipeline.UpdateLead(c.Request.Context(), actorFrom(c), id, pipeline.UpdateLeadInput{
		Params:        params,
		StatusComment: req.StatusComment,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// Delete handles DELETE /leads/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.pipeline.DeleteLead(c.Request.Context(), actorFrom(c), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Assign handles POST /leads/:id/assign.
func (h *Handler) Assign(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.AssignLeadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	ownerID, err := h.pipeline.AssignLead(c.Request.Context(), actorFrom(c), id, req.PreferredOwnerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"leadId": id, "ownerId": ownerID})
}

// Score handles POST /leads/:id/score, a synchronous recalculation.
func (h *Handler) Score(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	result, err := h.pipeline.ScoreLead(c.Request.Context(), id, &actor.ID, nil)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"leadId": id, "score": result.Score, "breakdown": result.Breakdown})
}

// ScoreHistory handles GET /leads/:id/scores.
func (h *Handler) ScoreHistory(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}
	scores, err := h.management.ScoreHistory(c.Request.Context(), actorFrom(c), id, intQuery(c, "limit", 20))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.ScoreResponse, 0, len(scores))
	for _, score := range scores {
		items = append(items, transport.ToScoreResponse(score))
	}
	httpkit.OK(c, items)
}

// StatusHistory handles GET /leads/:id/history.
func (h *Handler) StatusHistory(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}
	history, err := h.management.StatusHistory(c.Request.Context(), actorFrom(c), id)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.StatusHistoryResponse, 0, len(history))
	for _, entry := range history {
		items = append(items, transport.ToStatusHistoryResponse(entry))
	}
	httpkit.OK(c, items)
}

// Activities handles GET /leads/:id/activities.
func (h *Handler) Activities(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}
	activities, err := h.management.Activities(c.Request.Context(), actorFrom(c), id, intQuery(c, "limit", 50))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, transport.ToActivityResponse(activity))
	}
	httpkit.OK(c, items)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
