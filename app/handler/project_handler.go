package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"atelier/app/middleware"
	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/lifecycle"

	"github.com/gin-gonic/gin"
)

// ProjectHandler handles project lifecycle operations
type ProjectHandler struct {
	orchestrator *service.Orchestrator
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(orchestrator *service.Orchestrator) *ProjectHandler {
	return &ProjectHandler{orchestrator: orchestrator}
}

// CreateProject creates a project and runs the first match attempt
// @Summary Create project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body model.CreateProjectRequest true "Project"
// @Success 201 {object} model.Project
// @Router /api/v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.orchestrator.CreateProject(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetProject returns a project visible to the caller
// @Summary Get project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} model.Project
// @Router /api/v1/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	p, ok := h.visibleProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListProjects lists projects; clients and workers only see their own
// @Summary List projects
// @Tags projects
// @Produce json
// @Param status query string false "Status"
// @Param skill query string false "Skill"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Router /api/v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	filter := model.ProjectFilter{
		Status:   lifecycle.Status(c.Query("status")),
		ClientID: c.Query("client_id"),
		WorkerID: c.Query("worker_id"),
		Skill:    constants.Skill(c.Query("skill")),
		Limit:    limit,
		Offset:   offset,
	}
	actor := actorOf(c)
	switch actor.Role {
	case constants.RoleClient:
		filter.ClientID = actor.ID
	case constants.RoleWorker:
		filter.WorkerID = actor.ID
	}

	projects, total, err := h.orchestrator.ListProjects(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects, "total": total})
}

// GetEvents returns the audit trail of a project
func (h *ProjectHandler) GetEvents(c *gin.Context) {
	if _, ok := h.visibleProject(c); !ok {
		return
	}
	events, err := h.orchestrator.GetProjectEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// ListAgreements returns the proposal history of a project
func (h *ProjectHandler) ListAgreements(c *gin.Context) {
	if _, ok := h.visibleProject(c); !ok {
		return
	}
	agreements, err := h.orchestrator.ListAgreements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": agreements})
}

// ListPayments returns the payment ledger of a project
func (h *ProjectHandler) ListPayments(c *gin.Context) {
	if _, ok := h.visibleProject(c); !ok {
		return
	}
	payments, err := h.orchestrator.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// MatchWorker re-runs matching for a project
// @Summary Match worker
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body model.MatchRequest false "Overrides"
// @Success 200 {object} model.ProjectResponse
// @Failure 409 {object} map[string]string "already assigned"
// @Failure 422 {object} map[string]string "no candidate"
// @Router /api/v1/projects/{id}/match [post]
func (h *ProjectHandler) MatchWorker(c *gin.Context) {
	var req model.MatchRequest
	if !bindOptional(c, &req) {
		return
	}

	p, err := h.orchestrator.MatchWorker(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		respondWithProject(c, err, p)
		return
	}
	c.JSON(http.StatusOK, model.ProjectResponse{ProjectID: p.ID, Status: p.Status, WorkerID: p.WorkerID})
}

// AcceptAssignment is called by the assigned worker
func (h *ProjectHandler) AcceptAssignment(c *gin.Context) {
	p, err := h.orchestrator.AcceptAssignment(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondWithProject(c, err, p)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeclineAssignment is called by the assigned worker
func (h *ProjectHandler) DeclineAssignment(c *gin.Context) {
	var req model.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.respond(c)(h.orchestrator.DeclineAssignment(c.Request.Context(), actorOf(c), c.Param("id"), req.Reason))
}

// RequestReassignment is called by the client before any payment
func (h *ProjectHandler) RequestReassignment(c *gin.Context) {
	var req model.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.respond(c)(h.orchestrator.RequestReassignment(c.Request.Context(), actorOf(c), c.Param("id"), req.Reason))
}

// SubmitProposal is the assigned worker's price proposal
// @Summary Submit price proposal
// @Tags agreements
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body model.ProposalRequest true "Proposal"
// @Success 201 {object} model.Agreement
// @Router /api/v1/projects/{id}/proposals [post]
func (h *ProjectHandler) SubmitProposal(c *gin.Context) {
	var req model.ProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.orchestrator.SubmitPriceProposal(c.Request.Context(), actorOf(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// SubmitSamples is the worker uploading the deliverable reference
func (h *ProjectHandler) SubmitSamples(c *gin.Context) {
	var req model.SamplesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.respond(c)(h.orchestrator.SubmitSamples(c.Request.Context(), actorOf(c), c.Param("id"), req.DeliverableRef))
}

func (h *ProjectHandler) ApproveSamples(c *gin.Context) {
	h.respond(c)(h.orchestrator.ApproveSamples(c.Request.Context(), actorOf(c), c.Param("id")))
}

func (h *ProjectHandler) RequestSampleRevision(c *gin.Context) {
	var req model.FeedbackRequest
	if !bindOptional(c, &req) {
		return
	}
	h.respond(c)(h.orchestrator.RequestSampleRevision(c.Request.Context(), actorOf(c), c.Param("id"), req.Feedback))
}

// ApproveFinalDelivery is the client's terminal confirmation
func (h *ProjectHandler) ApproveFinalDelivery(c *gin.Context) {
	h.respond(c)(h.orchestrator.ApproveFinalDelivery(c.Request.Context(), actorOf(c), c.Param("id")))
}

func (h *ProjectHandler) respond(c *gin.Context) func(*model.Project, error) {
	return func(p *model.Project, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// visibleProject loads the :id project and checks that the caller is a party to it
func (h *ProjectHandler) visibleProject(c *gin.Context) (*model.Project, bool) {
	p, err := h.orchestrator.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	actor := actorOf(c)
	if !actor.IsAdmin() && actor.ID != p.ClientID && actor.ID != p.WorkerID {
		respondError(c, fmt.Errorf("project %s: %w", p.ID, apperrors.ErrNotProjectParty))
		return nil, false
	}
	return p, true
}

func actorOf(c *gin.Context) model.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// bindOptional binds a JSON body when one was sent
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	return limit, offset, nil
}
