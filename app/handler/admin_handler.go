package handler

import (
	"net/http"

	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/config"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operator overrides
type AdminHandler struct {
	orchestrator *service.Orchestrator
	batchSize    int
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(orchestrator *service.Orchestrator, jobs config.JobsConfig) *AdminHandler {
	return &AdminHandler{orchestrator: orchestrator, batchSize: jobs.ExpiryBatchSize}
}

// ForceAssign attaches a worker regardless of score
// @Summary Force assign
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body model.ForceAssignRequest true "Worker"
// @Success 200 {object} model.Project
// @Router /api/v1/admin/projects/{id}/assign [post]
func (h *AdminHandler) ForceAssign(c *gin.Context) {
	var req model.ForceAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.orchestrator.ForceAssign(c.Request.Context(), actorOf(c), c.Param("id"), req.WorkerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) CancelProject(c *gin.Context) {
	var req model.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}
	p, err := h.orchestrator.CancelProject(c.Request.Context(), actorOf(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) RequeueProject(c *gin.Context) {
	p, err := h.orchestrator.RequeueProject(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SweepExpired runs one expiry pass on demand
func (h *AdminHandler) SweepExpired(c *gin.Context) {
	if !requireAdminActor(c) {
		return
	}
	n, err := h.orchestrator.ExpireStaleAssignments(c.Request.Context(), h.batchSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}
