package handler

import (
	"net/http"

	"atelier/internal/model"
	"atelier/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentHandler receives payment confirmations from the gateway
type PaymentHandler struct {
	orchestrator *service.Orchestrator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orchestrator *service.Orchestrator) *PaymentHandler {
	return &PaymentHandler{orchestrator: orchestrator}
}

// ConfirmPayment records a confirmed escrow payment. Replays of the same
// external_ref answer 200 with replayed=true.
// @Summary Confirm payment
// @Tags payments
// @Accept json
// @Produce json
// @Param request body model.ConfirmPaymentRequest true "Payment"
// @Success 201 {object} model.PaymentResult
// @Success 200 {object} model.PaymentResult "replayed"
// @Router /api/v1/payments/confirm [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req model.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ProjectID == "" {
		req.ProjectID = c.Param("id")
	}

	res, err := h.orchestrator.ConfirmPayment(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Replayed {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}
