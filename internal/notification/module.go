// Package notification fans lead lifecycle events out to connected
// clients over Server-Sent Events.
package notification

import (
	"context"

	"leadpilot_backend/internal/events"
	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/internal/notification/sse"
	"leadpilot_backend/platform/logger"

	"github.com/google/uuid"
)

type Module struct {
	hub     *sse.Hub
	handler *sse.Handler
}

func NewModule(bus events.Bus, log *logger.Logger) *Module {
	hub := sse.NewHub(log)
	module := &Module{
		hub:     hub,
		handler: sse.NewHandler(hub),
	}
	module.subscribe(bus)
	return module
}

func (m *Module) Name() string { return "notification" }

func (m *Module) RegisterRoutes(ctx apphttp.RouterContext) {
	ctx.API.GET("/events", m.handler.Stream)
}

func (m *Module) subscribe(bus events.Bus) {
	forward := func(name string, extract func(events.Event) (events.LeadSnapshot, bool)) {
		bus.Subscribe(name, events.HandlerFunc(func(_ context.Context, event events.Event) error {
			snapshot, ok := extract(event)
			if !ok {
				return nil
			}
			m.hub.Broadcast(sse.Envelope{Event: name, Payload: event}, leadFilter(snapshot))
			return nil
		}))
	}

	forward("leads.created", func(e events.Event) (events.LeadSnapshot, bool) {
		typed, ok := e.(events.LeadCreated)
		return typed.Lead, ok
	})
	forward("leads.updated", func(e events.Event) (events.LeadSnapshot, bool) {
		typed, ok := e.(events.LeadUpdated)
		return typed.Lead, ok
	})
	forward("leads.assigned", func(e events.Event) (events.LeadSnapshot, bool) {
		typed, ok := e.(events.LeadAssigned)
		return typed.Lead, ok
	})
	forward("leads.scored", func(e events.Event) (events.LeadSnapshot, bool) {
		typed, ok := e.(events.LeadScored)
		return typed.Lead, ok
	})

	bus.Subscribe("leads.deleted", events.HandlerFunc(func(_ context.Context, event events.Event) error {
		typed, ok := event.(events.LeadDeleted)
		if !ok {
			return nil
		}
		m.hub.Broadcast(sse.Envelope{Event: "leads.deleted", Payload: typed}, teamFilter(typed.TeamID))
		return nil
	}))

	bus.Subscribe("imports.completed", events.HandlerFunc(func(_ context.Context, event events.Event) error {
		m.hub.Broadcast(sse.Envelope{Event: "imports.completed", Payload: event}, nil)
		return nil
	}))
}

// leadFilter delivers a lead event to admins, the lead's team, and its owner.
func leadFilter(snapshot events.LeadSnapshot) func(*sse.Client) bool {
	return func(client *sse.Client) bool {
		if hasRole(client, "admin") {
			return true
		}
		if snapshot.Team != nil && client.TeamID != nil && *client.TeamID == snapshot.Team.ID {
			return true
		}
		if snapshot.Owner != nil && snapshot.Owner.ID == client.UserID {
			return true
		}
		return false
	}
}

func teamFilter(teamID *uuid.UUID) func(*sse.Client) bool {
	return func(client *sse.Client) bool {
		if hasRole(client, "admin") {
			return true
		}
		return teamID != nil && client.TeamID != nil && *client.TeamID == *teamID
	}
}

func hasRole(client *sse.Client, role string) bool {
	for _, item := range client.Roles {
		if item == role {
			return true
		}
	}
	return false
}
