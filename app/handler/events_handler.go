package handler

import (
	"atelier/pkg/notification"

	"github.com/gin-gonic/gin"
)

// EventsHandler streams side effects over websocket
type EventsHandler struct {
	projects *ProjectHandler
	hub      *notification.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(projects *ProjectHandler, hub *notification.Hub) *EventsHandler {
	return &EventsHandler{projects: projects, hub: hub}
}

// ProjectStream upgrades to a websocket receiving the effects of one project
func (h *EventsHandler) ProjectStream(c *gin.Context) {
	p, ok := h.projects.visibleProject(c)
	if !ok {
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, p.ID)
}

// AllStream upgrades to a websocket receiving every project's effects (admin only)
func (h *EventsHandler) AllStream(c *gin.Context) {
	if !requireAdminActor(c) {
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, notification.AllProjects)
}
