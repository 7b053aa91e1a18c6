package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the event stream endpoint.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Stream upgrades the connection to an SSE stream and forwards hub
// messages until the client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := c.MustGet(httpkit.ContextUserIDKey).(uuid.UUID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var teamID *uuid.UUID
	if value, exists := c.Get(httpkit.ContextTeamIDKey); exists {
		if id, ok := value.(uuid.UUID); ok {
			teamID = &id
		}
	}
	roles, _ := c.MustGet(httpkit.ContextRolesKey).([]string)

	client := h.hub.Register(userID, teamID, roles)
	defer h.hub.Unregister(client.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case envelope, open := <-client.Ch:
			if !open {
				return false
			}
			payload, err := json.Marshal(envelope.Payload)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", envelope.Event, payload)
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
