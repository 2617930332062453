package service

import (
	"context"
	"fmt"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"

	"github.com/google/uuid"
)

// PaymentService coordinates escrow phases against the lifecycle
type PaymentService struct {
	repos     *interfaces.Repositories
	lifecycle *LifecycleService
}

// NewPaymentService creates a new payment service
func NewPaymentService(repos *interfaces.Repositories, lc *LifecycleService) *PaymentService {
	return &PaymentService{repos: repos, lifecycle: lc}
}

func (s *PaymentService) confirm(ctx context.Context, p *model.Project, actor model.Actor, req *model.ConfirmPaymentRequest, b *effectBatch) (*model.PaymentResult, error) {
	if err := requireClient(actor, p); err != nil {
		return nil, err
	}
	if req.ClientID != p.ClientID {
		return nil, fmt.Errorf("payer %s is not the client of project %s: %w", req.ClientID, p.ID, apperrors.ErrNotProjectParty)
	}
	if !req.Phase.Valid() {
		return nil, apperrors.Invalid("unknown payment phase %q", req.Phase)
	}
	if req.ExternalRef == "" {
		return nil, apperrors.Invalid("external_ref is required")
	}

	prior, err := s.repos.Payments.GetByExternalRef(ctx, p.ID, req.ExternalRef)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if prior.Phase == req.Phase && prior.Amount.Equal(req.Amount) {
			logger.InfoCtx(ctx, "payment %s replayed for project %s, ignoring", req.ExternalRef, p.ID)
			return &model.PaymentResult{
				PaymentID: prior.ID,
				Replayed:  true,
				TotalPaid: p.TotalPaid,
				Status:    string(p.Status),
			}, nil
		}
		return nil, fmt.Errorf("ref %s already used for %s %s: %w",
			req.ExternalRef, prior.Phase, prior.Amount.StringFixed(2), apperrors.ErrDuplicatePayment)
	}

	agreement, err := s.repos.Agreements.GetActive(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var (
		due   = req.Amount
		event lifecycle.Event
	)
	switch req.Phase {
	case constants.PhaseDeposit40, constants.PhaseFull100:
		if p.DepositPaymentID != "" {
			return nil, fmt.Errorf("project %s already has its upfront payment: %w", p.ID, apperrors.ErrPhaseMismatch)
		}
		if _, err := lifecycle.Next(p.Status, lifecycle.EventDepositConfirmed); err != nil {
			return nil, err
		}
		if agreement == nil || agreement.Status != constants.AgreementAccepted {
			return nil, fmt.Errorf("project %s has no accepted agreement: %w", p.ID, apperrors.ErrInvalidTransition)
		}
		if agreement.Printing() != (req.Phase == constants.PhaseFull100) {
			return nil, fmt.Errorf("phase %s does not fit agreement %s: %w", req.Phase, agreement.ID, apperrors.ErrPhaseMismatch)
		}
		due = agreement.DepositAmount
		event = lifecycle.EventDepositConfirmed

	case constants.PhaseBalance60:
		if p.DepositPaymentID == "" {
			return nil, fmt.Errorf("project %s has no deposit yet: %w", p.ID, apperrors.ErrPhaseMismatch)
		}
		if agreement == nil || agreement.Printing() {
			return nil, fmt.Errorf("project %s has no balance phase: %w", p.ID, apperrors.ErrPhaseMismatch)
		}
		if _, err := lifecycle.Next(p.Status, lifecycle.EventBalanceConfirmed); err != nil {
			if p.Status == lifecycle.StatusWorkStarted || p.Status == lifecycle.StatusReviewSamples {
				// the balance falls due once samples are approved
				return nil, fmt.Errorf("project %s is %s, balance is not due yet: %w", p.ID, p.Status, apperrors.ErrPhaseMismatch)
			}
			return nil, err
		}
		due = agreement.BalanceAmount
		event = lifecycle.EventBalanceConfirmed
	}

	if !req.Amount.Equal(due) {
		return nil, fmt.Errorf("%s due is %s, got %s: %w", req.Phase, due.StringFixed(2), req.Amount.StringFixed(2), apperrors.ErrAmountMismatch)
	}
	if p.TotalPaid.Add(req.Amount).GreaterThan(agreement.Amount) {
		return nil, fmt.Errorf("payment would exceed agreement amount %s: %w", agreement.Amount.StringFixed(2), apperrors.ErrAmountMismatch)
	}

	payment := &model.Payment{
		ID:          uuid.New().String(),
		ProjectID:   p.ID,
		ClientID:    req.ClientID,
		Amount:      req.Amount,
		Phase:       req.Phase,
		Status:      constants.PaymentStatusCompleted,
		ExternalRef: req.ExternalRef,
		CreatedAt:   b.now,
	}
	if err := s.repos.Payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	p.TotalPaid = p.TotalPaid.Add(payment.Amount)

	t := transition{
		event:    event,
		actor:    actor,
		metadata: map[string]interface{}{"payment_id": payment.ID, "phase": string(payment.Phase), "amount": payment.Amount.StringFixed(2)},
	}
	if event == lifecycle.EventDepositConfirmed {
		p.DepositPaymentID = payment.ID
		if err := s.lifecycle.apply(ctx, p, b, t); err != nil {
			return nil, err
		}
		b.add(constants.EffectSystemMessage, p.ID, p.WorkerID, "Payment received, work can start",
			map[string]interface{}{"phase": string(payment.Phase), "amount": payment.Amount.StringFixed(2)})
	} else {
		p.BalancePaymentID = payment.ID
		if err := s.lifecycle.apply(ctx, p, b, t); err != nil {
			return nil, err
		}
		if err := s.complete(ctx, p, b); err != nil {
			return nil, err
		}
	}

	logger.InfoCtx(ctx, "payment %s confirmed for project %s, phase: %s, amount: %s, total_paid: %s",
		payment.ID, p.ID, payment.Phase, payment.Amount.StringFixed(2), p.TotalPaid.StringFixed(2))
	return &model.PaymentResult{
		PaymentID: payment.ID,
		TotalPaid: p.TotalPaid,
		Status:    string(p.Status),
	}, nil
}

// approveDelivery completes a project whose agreement has no balance phase.
// Approving an already completed project only stamps delivery_approved_at once.
func (s *PaymentService) approveDelivery(ctx context.Context, p *model.Project, actor model.Actor, b *effectBatch) error {
	if err := requireClient(actor, p); err != nil {
		return err
	}
	if p.Status == lifecycle.StatusCompleted {
		if p.DeliveryApprovedAt == nil {
			p.DeliveryApprovedAt = timePtr(b.now)
		}
		return nil
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.EventDeliveryApproved); err != nil {
		return err
	}

	agreement, err := s.repos.Agreements.GetActive(ctx, p.ID)
	if err != nil {
		return err
	}
	if agreement == nil || !agreement.Printing() {
		return fmt.Errorf("project %s still has a balance due: %w", p.ID, apperrors.ErrInvalidTransition)
	}

	err = s.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventDeliveryApproved, actor: actor})
	if err != nil {
		return err
	}
	p.DeliveryApprovedAt = timePtr(b.now)
	return s.complete(ctx, p, b)
}

// complete frees the worker's slot and flags payout eligibility
func (s *PaymentService) complete(ctx context.Context, p *model.Project, b *effectBatch) error {
	p.PayoutSplitDone = true
	p.CompletedAt = timePtr(b.now)
	p.AssignmentDeadline = nil

	if err := s.repos.Workers.ReleaseSlot(ctx, p.WorkerID); err != nil {
		return err
	}
	if err := s.repos.Workers.IncrementCompleted(ctx, p.WorkerID); err != nil {
		return err
	}

	b.add(constants.EffectSystemMessage, p.ID, p.ClientID, fmt.Sprintf("Project %q is complete", p.Title), nil)
	b.add(constants.EffectSystemMessage, p.ID, p.WorkerID, fmt.Sprintf("Project %q is complete, payout is on its way", p.Title),
		map[string]interface{}{"total_paid": p.TotalPaid.StringFixed(2)})
	b.workerStat(p.ID, p.WorkerID, "completed")
	return nil
}
