package model

import (
	"time"

	"atelier/pkg/constants"

	"github.com/shopspring/decimal"
)

// Payment immutable escrow ledger entry
type Payment struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"project_id"`
	ClientID    string                 `json:"client_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Phase       constants.PaymentPhase `json:"phase"`
	Status      string                 `json:"status"`
	ExternalRef string                 `json:"external_ref"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ConfirmPaymentRequest opaque "payment confirmed" event from the gateway
type ConfirmPaymentRequest struct {
	ProjectID   string                 `json:"project_id"`
	ClientID    string                 `json:"client_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Phase       constants.PaymentPhase `json:"phase" binding:"required"`
	ExternalRef string                 `json:"external_ref" binding:"required"`
}

// PaymentResult outcome of a confirmation
type PaymentResult struct {
	PaymentID string          `json:"payment_id"`
	Replayed  bool            `json:"replayed"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Status    string          `json:"status"`
}
