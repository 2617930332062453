package handler

import (
	"fmt"
	"net/http"

	"atelier/internal/model"
	"atelier/internal/service"
	"atelier/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// AgreementHandler handles client decisions on price proposals
type AgreementHandler struct {
	orchestrator *service.Orchestrator
}

// NewAgreementHandler creates a new agreement handler
func NewAgreementHandler(orchestrator *service.Orchestrator) *AgreementHandler {
	return &AgreementHandler{orchestrator: orchestrator}
}

// GetAgreement returns one agreement to a party of its project
func (h *AgreementHandler) GetAgreement(c *gin.Context) {
	ctx := c.Request.Context()
	a, err := h.orchestrator.GetAgreement(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.orchestrator.GetProject(ctx, a.ProjectID)
	if err != nil {
		respondError(c, err)
		return
	}
	actor := actorOf(c)
	if !actor.IsAdmin() && actor.ID != p.ClientID && actor.ID != a.WorkerID {
		respondError(c, fmt.Errorf("agreement %s: %w", a.ID, apperrors.ErrNotProjectParty))
		return
	}
	c.JSON(http.StatusOK, a)
}

// AcceptProposal accepts the active agreement
// @Summary Accept proposal
// @Tags agreements
// @Produce json
// @Param id path string true "Agreement ID"
// @Success 200 {object} model.Agreement
// @Router /api/v1/agreements/{id}/accept [post]
func (h *AgreementHandler) AcceptProposal(c *gin.Context) {
	a, err := h.orchestrator.AcceptProposal(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// RequestRevision sends the active proposal back to the worker
func (h *AgreementHandler) RequestRevision(c *gin.Context) {
	var req model.RevisionRequest
	if !bindOptional(c, &req) {
		return
	}
	a, err := h.orchestrator.RequestRevision(c.Request.Context(), actorOf(c), c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
