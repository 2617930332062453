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
	"github.com/shopspring/decimal"
)

var depositShare = decimal.NewFromFloat(0.4)

// SplitAmount computes the escrow phases of an agreement amount.
// deposit + balance == amount exactly; printing is paid in full up front.
func SplitAmount(amount decimal.Decimal, printing bool) (deposit, balance decimal.Decimal) {
	if printing {
		return amount, decimal.Zero
	}
	deposit = amount.Mul(depositShare).Round(2)
	return deposit, amount.Sub(deposit)
}

// AgreementService handles price proposals
type AgreementService struct {
	agreements interfaces.AgreementRepository
	lifecycle  *LifecycleService
}

// NewAgreementService creates a new agreement service
func NewAgreementService(agreements interfaces.AgreementRepository, lc *LifecycleService) *AgreementService {
	return &AgreementService{agreements: agreements, lifecycle: lc}
}

func (s *AgreementService) propose(ctx context.Context, p *model.Project, actor model.Actor, req *model.ProposalRequest, b *effectBatch) (*model.Agreement, error) {
	if err := requireWorker(actor, p); err != nil {
		return nil, err
	}
	if req.WorkerID != "" && req.WorkerID != p.WorkerID {
		return nil, fmt.Errorf("worker %s is not assigned to project %s: %w", req.WorkerID, p.ID, apperrors.ErrNotProjectParty)
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Invalid("amount must be positive, got %s", req.Amount)
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, apperrors.Invalid("amount %s has more than two decimal places", req.Amount)
	}
	printing := p.Skill == constants.SkillPrinting
	deposit, balance := SplitAmount(req.Amount, printing)
	if !deposit.IsPositive() || (!printing && !balance.IsPositive()) {
		return nil, apperrors.Invalid("amount %s is too small to split into escrow phases", req.Amount)
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.EventProposalSubmitted); err != nil {
		return nil, err
	}

	// an accepted agreement is final; only reassignment or requeue can supersede it
	active, err := s.agreements.GetActive(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.Status == constants.AgreementAccepted {
		return nil, fmt.Errorf("agreement %s of project %s is already accepted: %w", active.ID, p.ID, apperrors.ErrInvalidTransition)
	}

	if err := s.agreements.SupersedeActive(ctx, p.ID); err != nil {
		return nil, err
	}

	a := &model.Agreement{
		ID:            uuid.New().String(),
		ProjectID:     p.ID,
		WorkerID:      p.WorkerID,
		Amount:        req.Amount,
		DepositAmount: deposit,
		BalanceAmount: balance,
		Deliverables:  req.Deliverables,
		Timeline:      req.Timeline,
		Notes:         req.Notes,
		Status:        constants.AgreementPending,
		WorkerAgreed:  true,
	}
	if err := s.agreements.Create(ctx, a); err != nil {
		return nil, err
	}

	p.TotalPrice = a.Amount
	p.ActiveAgreementID = a.ID
	p.AssignmentDeadline = nil

	err = s.lifecycle.apply(ctx, p, b, transition{
		event:    lifecycle.EventProposalSubmitted,
		actor:    actor,
		metadata: map[string]interface{}{"agreement_id": a.ID, "amount": a.Amount.StringFixed(2)},
	})
	if err != nil {
		return nil, err
	}

	b.add(constants.EffectPriceProposal, p.ID, p.ClientID, fmt.Sprintf("New price proposal for %q", p.Title),
		map[string]interface{}{
			"agreement_id":   a.ID,
			"amount":         a.Amount.StringFixed(2),
			"deposit_amount": a.DepositAmount.StringFixed(2),
			"balance_amount": a.BalanceAmount.StringFixed(2),
			"deliverables":   a.Deliverables,
			"timeline":       a.Timeline,
		})
	logger.InfoCtx(ctx, "agreement %s proposed for project %s, amount: %s", a.ID, p.ID, a.Amount.StringFixed(2))
	return a, nil
}

func (s *AgreementService) accept(ctx context.Context, p *model.Project, a *model.Agreement, actor model.Actor, b *effectBatch) error {
	if err := requireClient(actor, p); err != nil {
		return err
	}
	if err := s.requireLivePending(p, a); err != nil {
		return err
	}

	err := s.lifecycle.apply(ctx, p, b, transition{
		event:    lifecycle.EventProposalAccepted,
		actor:    actor,
		metadata: map[string]interface{}{"agreement_id": a.ID},
	})
	if err != nil {
		return err
	}

	a.Status = constants.AgreementAccepted
	a.ClientAgreed = true
	a.AcceptedAt = timePtr(b.now)
	if err := s.agreements.Update(ctx, a); err != nil {
		return err
	}

	phase := constants.PhaseDeposit40
	if a.Printing() {
		phase = constants.PhaseFull100
	}
	b.add(constants.EffectPaymentRequest, p.ID, p.ClientID, fmt.Sprintf("Please pay %s to start work", a.DepositAmount.StringFixed(2)),
		map[string]interface{}{
			"agreement_id": a.ID,
			"phase":        string(phase),
			"amount":       a.DepositAmount.StringFixed(2),
		})
	return nil
}

func (s *AgreementService) requestRevision(ctx context.Context, p *model.Project, a *model.Agreement, actor model.Actor, note string, b *effectBatch) error {
	if err := requireClient(actor, p); err != nil {
		return err
	}
	if err := s.requireLivePending(p, a); err != nil {
		return err
	}

	err := s.lifecycle.apply(ctx, p, b, transition{
		event:    lifecycle.EventRevisionRequested,
		actor:    actor,
		reason:   note,
		metadata: map[string]interface{}{"agreement_id": a.ID},
	})
	if err != nil {
		return err
	}

	a.Status = constants.AgreementRevisionRequested
	a.RevisionNote = note
	if err := s.agreements.Update(ctx, a); err != nil {
		return err
	}

	b.add(constants.EffectSystemMessage, p.ID, p.WorkerID, "The client asked for a revised proposal",
		map[string]interface{}{"agreement_id": a.ID, "note": note})
	return nil
}

func (s *AgreementService) requireLivePending(p *model.Project, a *model.Agreement) error {
	if a.Superseded || a.ID != p.ActiveAgreementID {
		return fmt.Errorf("agreement %s was superseded: %w", a.ID, apperrors.ErrInvalidTransition)
	}
	if a.Status != constants.AgreementPending {
		return fmt.Errorf("agreement %s is %s: %w", a.ID, a.Status, apperrors.ErrInvalidTransition)
	}
	return nil
}
