package handler

import (
	"fmt"
	"net/http"

	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"

	"github.com/gin-gonic/gin"
)

// WorkerHandler handles worker pool management
type WorkerHandler struct {
	workerService *service.WorkerService
}

// NewWorkerHandler creates a new worker handler
func NewWorkerHandler(workerService *service.WorkerService) *WorkerHandler {
	return &WorkerHandler{workerService: workerService}
}

// RegisterWorker adds a worker to the pool (admin only)
// @Summary Register worker
// @Tags workers
// @Accept json
// @Produce json
// @Param request body model.RegisterWorkerRequest true "Worker"
// @Success 201 {object} model.Worker
// @Router /api/v1/workers [post]
func (h *WorkerHandler) RegisterWorker(c *gin.Context) {
	if !requireAdminActor(c) {
		return
	}
	var req model.RegisterWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.workerService.RegisterWorker(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// UpdateWorker patches a worker profile; a worker may update their own name, skills and availability
// @Summary Update worker
// @Tags workers
// @Accept json
// @Produce json
// @Param id path string true "Worker ID"
// @Param request body model.UpdateWorkerRequest true "Changes"
// @Success 200 {object} model.Worker
// @Router /api/v1/workers/{id} [patch]
func (h *WorkerHandler) UpdateWorker(c *gin.Context) {
	var req model.UpdateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := h.workerService.UpdateWorker(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// GetWorker returns one worker
func (h *WorkerHandler) GetWorker(c *gin.Context) {
	w, err := h.workerService.GetWorker(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListWorkers lists the pool
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	filter := model.WorkerFilter{
		Skill:         constants.Skill(c.Query("skill")),
		AvailableOnly: c.Query("available") == "true",
		Limit:         limit,
		Offset:        offset,
	}

	workers, total, err := h.workerService.ListWorkers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": workers, "total": total})
}

func requireAdminActor(c *gin.Context) bool {
	actor := actorOf(c)
	if actor.IsAdmin() {
		return true
	}
	respondError(c, fmt.Errorf("%s is not an admin: %w", actor.ID, apperrors.ErrNotProjectParty))
	return false
}
