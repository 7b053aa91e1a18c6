package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"leadpilot_backend/internal/leads/transport"
	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateImport handles POST /imports, a multipart CSV upload.
func (h *Handler) CreateImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".csv" {
		httpkit.Error(c, http.StatusBadRequest, "only .csv files are accepted", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "could not read upload", nil)
		return
	}
	defer file.Close()

	batch, err := h.imports.CreateBatch(c.Request.Context(), actorFrom(c), fileHeader.Filename, file)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ToImportResponse(batch))
}

// GetImport handles GET /imports/:id.
func (h *Handler) GetImport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid import id", nil)
		return
	}

	batch, err := h.imports.GetBatch(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToImportResponse(batch))
}

// ListImports handles GET /imports.
func (h *Handler) ListImports(c *gin.Context) {
	actor := actorFrom(c)

	// Non-admins only see their own uploads.
	var createdBy *uuid.UUID
	if !hasRole(actor.Roles, "admin") {
		createdBy = &actor.ID
	}

	batches, err := h.imports.ListBatches(c.Request.Context(), createdBy, intQuery(c, "limit", 50))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.ImportResponse, 0, len(batches))
	for _, batch := range batches {
		items = append(items, transport.ToImportResponse(batch))
	}
	httpkit.OK(c, items)
}

func hasRole(roles []string, role string) bool {
	for _, item := range roles {
		if item == role {
			return true
		}
	}
	return false
}
