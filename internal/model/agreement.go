package model

import (
	"time"

	"atelier/pkg/constants"

	"github.com/shopspring/decimal"
)

// Agreement price/scope proposal by the assigned worker
type Agreement struct {
	ID            string                    `json:"id"`
	ProjectID     string                    `json:"project_id"`
	WorkerID      string                    `json:"worker_id"`
	Amount        decimal.Decimal           `json:"amount"`
	DepositAmount decimal.Decimal           `json:"deposit_amount"`
	BalanceAmount decimal.Decimal           `json:"balance_amount"`
	Deliverables  string                    `json:"deliverables"`
	Timeline      string                    `json:"timeline"`
	Notes         string                    `json:"notes,omitempty"`
	Status        constants.AgreementStatus `json:"status"`
	RevisionNote  string                    `json:"revision_note,omitempty"`
	ClientAgreed  bool                      `json:"client_agreed"`
	WorkerAgreed  bool                      `json:"worker_agreed"`
	Superseded    bool                      `json:"superseded"`
	AcceptedAt    *time.Time                `json:"accepted_at,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Clone returns a copy of the agreement
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	c := *a
	c.AcceptedAt = cloneTime(a.AcceptedAt)
	return &c
}

// Printing reports whether the agreement is paid in full up front
func (a *Agreement) Printing() bool {
	return a.BalanceAmount.IsZero()
}

// ProposalRequest worker price proposal
type ProposalRequest struct {
	WorkerID     string          `json:"worker_id"`
	Amount       decimal.Decimal `json:"amount"`
	Deliverables string          `json:"deliverables"`
	Timeline     string          `json:"timeline"`
	Notes        string          `json:"notes"`
}

// RevisionRequest client revision note
type RevisionRequest struct {
	Note string `json:"note"`
}
