package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"
	"atelier/pkg/metrics"

	"github.com/google/uuid"
)

// committedError carries an error that must not roll back the transaction
type committedError struct{ err error }

func (c *committedError) Error() string { return c.err.Error() }
func (c *committedError) Unwrap() error { return c.err }

func keep(err error) error {
	if err == nil {
		return nil
	}
	return &committedError{err: err}
}

// Orchestrator is the single entry point for project operations. Every
// mutating call runs as one transaction holding the project row lock, and its
// side effects are published only after commit.
type Orchestrator struct {
	repos     *interfaces.Repositories
	publisher interfaces.EffectPublisher
	metrics   *metrics.Metrics
	now       func() time.Time

	lifecycle    *LifecycleService
	matcher      *MatchingService
	agreements   *AgreementService
	payments     *PaymentService
	reassignment *ReassignmentService
}

// NewOrchestrator wires the lifecycle components over one repository set
func NewOrchestrator(repos *interfaces.Repositories, publisher interfaces.EffectPublisher, m *metrics.Metrics, opts MatchingOptions) *Orchestrator {
	lc := NewLifecycleService(repos.Events)
	matcher := NewMatchingService(repos, lc, m, opts)
	return &Orchestrator{
		repos:        repos,
		publisher:    publisher,
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
		lifecycle:    lc,
		matcher:      matcher,
		agreements:   NewAgreementService(repos.Agreements, lc),
		payments:     NewPaymentService(repos, lc),
		reassignment: NewReassignmentService(repos, lc, matcher),
	}
}

// SetClock replaces the time source
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// run executes fn in a transaction and publishes the collected effects after commit
func (o *Orchestrator) run(ctx context.Context, op string, fn func(ctx context.Context, b *effectBatch) error) error {
	b := newEffectBatch(o.now())
	var deferred error

	err := o.repos.Tx.ExecTx(ctx, func(txCtx context.Context) error {
		b.reset()
		deferred = nil
		ferr := fn(txCtx, b)
		var c *committedError
		if errors.As(ferr, &c) {
			deferred = c.err
			return nil
		}
		return ferr
	})
	if err != nil {
		o.metrics.ObserveError(op, errorKind(err))
		logger.WarnCtx(ctx, "%s failed: %v", op, err)
		return err
	}

	for _, t := range b.transitions {
		o.metrics.ObserveTransition(string(t.event), string(t.to))
	}
	if len(b.effects) > 0 {
		if perr := o.publisher.Publish(ctx, b.effects); perr != nil {
			logger.ErrorCtx(ctx, "%s committed but side effects were not published: %v", op, perr)
		}
	}
	if deferred != nil {
		o.metrics.ObserveError(op, errorKind(deferred))
	}
	return deferred
}

// withProject locks projectID and saves it after fn succeeds
func (o *Orchestrator) withProject(ctx context.Context, op, projectID string, fn func(ctx context.Context, p *model.Project, b *effectBatch) error) (*model.Project, error) {
	var out *model.Project
	err := o.run(ctx, op, func(txCtx context.Context, b *effectBatch) error {
		p, err := o.lockProject(txCtx, projectID)
		if err != nil {
			return err
		}
		ferr := fn(txCtx, p, b)
		var c *committedError
		if ferr != nil && !errors.As(ferr, &c) {
			return ferr
		}
		if err := o.repos.Projects.Save(txCtx, p); err != nil {
			return err
		}
		out = p
		return ferr
	})
	if out == nil {
		return nil, err
	}
	return out, err
}

func (o *Orchestrator) lockProject(ctx context.Context, projectID string) (*model.Project, error) {
	p, err := o.repos.Projects.GetForUpdate(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFound("project", projectID)
	}
	return p, nil
}

// CreateProject stores a queued project and immediately tries to match it.
// Finding no worker is not an error: the project comes back NO_WORKER_AVAILABLE.
func (o *Orchestrator) CreateProject(ctx context.Context, actor model.Actor, req *model.CreateProjectRequest) (*model.Project, error) {
	clientID := req.ClientID
	if !actor.IsAdmin() {
		if clientID != "" && clientID != actor.ID {
			return nil, fmt.Errorf("%s cannot create projects for %s: %w", actor.ID, clientID, apperrors.ErrNotProjectParty)
		}
		clientID = actor.ID
	}
	if clientID == "" {
		return nil, apperrors.Invalid("client_id is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.Invalid("title is required")
	}
	if !req.Skill.Valid() {
		return nil, apperrors.Invalid("unknown skill %q", req.Skill)
	}
	if req.BudgetHint.IsNegative() {
		return nil, apperrors.Invalid("budget_hint must not be negative")
	}

	var out *model.Project
	err := o.run(ctx, "create_project", func(txCtx context.Context, b *effectBatch) error {
		p := &model.Project{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Skill:       req.Skill,
			Status:      lifecycle.StatusQueued,
			ClientID:    clientID,
			BudgetHint:  req.BudgetHint,
			CreatedAt:   b.now,
		}
		if err := o.repos.Projects.Create(txCtx, p); err != nil {
			return err
		}
		logger.InfoCtx(txCtx, "project created, project_id: %s, client: %s, skill: %s", p.ID, p.ClientID, p.Skill)

		if err := o.matcher.match(txCtx, p, b, actor); err != nil && !errors.Is(err, apperrors.ErrNoCandidate) {
			return err
		}
		if err := o.repos.Projects.Save(txCtx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MatchWorker explicitly (re)runs matching. A NO_WORKER_AVAILABLE project is
// requeued first. An already assigned project yields ErrAlreadyAssigned; an
// empty pool commits NO_WORKER_AVAILABLE and yields ErrNoCandidate.
func (o *Orchestrator) MatchWorker(ctx context.Context, actor model.Actor, projectID string, req *model.MatchRequest) (*model.Project, error) {
	if req == nil {
		req = &model.MatchRequest{}
	}
	if req.Skill != "" && !req.Skill.Valid() {
		return nil, apperrors.Invalid("unknown skill %q", req.Skill)
	}
	if req.Budget.IsNegative() {
		return nil, apperrors.Invalid("budget must not be negative")
	}
	return o.withProject(ctx, "match_worker", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if err := requireClient(actor, p); err != nil {
			return err
		}
		if lifecycle.HasWorker(p.Status) {
			return fmt.Errorf("project %s is assigned to %s: %w", p.ID, p.WorkerID, apperrors.ErrAlreadyAssigned)
		}
		if req.Skill != "" {
			p.Skill = req.Skill
		}
		if !req.Budget.IsZero() {
			p.BudgetHint = req.Budget
		}
		if p.Status == lifecycle.StatusNoWorkerAvailable {
			if err := o.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventRequeued, actor: actor}); err != nil {
				return err
			}
		}
		err := o.matcher.match(ctx, p, b, actor)
		if errors.Is(err, apperrors.ErrNoCandidate) {
			return keep(err)
		}
		return err
	})
}

// AcceptAssignment is the assigned worker taking the project. A passed
// deadline expires the assignment in the same call and yields ErrAssignmentExpired.
func (o *Orchestrator) AcceptAssignment(ctx context.Context, actor model.Actor, projectID string) (*model.Project, error) {
	return o.withProject(ctx, "accept_assignment", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if err := requireWorker(actor, p); err != nil {
			return err
		}
		if expired(p, b) {
			if err := o.reassignment.expire(ctx, p, b); err != nil {
				return err
			}
			return keep(fmt.Errorf("project %s: %w", projectID, apperrors.ErrAssignmentExpired))
		}

		if err := o.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventWorkerAccepted, actor: actor}); err != nil {
			return err
		}
		p.AssignmentDeadline = nil
		b.add(constants.EffectSystemMessage, p.ID, p.ClientID, fmt.Sprintf("A worker accepted %q and will send a proposal", p.Title),
			map[string]interface{}{"worker_id": p.WorkerID})
		return nil
	})
}

// SubmitPriceProposal creates the active agreement for the assigned worker
func (o *Orchestrator) SubmitPriceProposal(ctx context.Context, actor model.Actor, projectID string, req *model.ProposalRequest) (*model.Agreement, error) {
	var out *model.Agreement
	_, err := o.withProject(ctx, "submit_price_proposal", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		a, err := o.agreements.propose(ctx, p, actor, req, b)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AcceptProposal is the client accepting the active agreement
func (o *Orchestrator) AcceptProposal(ctx context.Context, actor model.Actor, agreementID string) (*model.Agreement, error) {
	return o.withAgreement(ctx, "accept_proposal", agreementID, func(ctx context.Context, p *model.Project, a *model.Agreement, b *effectBatch) error {
		return o.agreements.accept(ctx, p, a, actor, b)
	})
}

// RequestRevision is the client sending the active proposal back
func (o *Orchestrator) RequestRevision(ctx context.Context, actor model.Actor, agreementID, note string) (*model.Agreement, error) {
	return o.withAgreement(ctx, "request_revision", agreementID, func(ctx context.Context, p *model.Project, a *model.Agreement, b *effectBatch) error {
		return o.agreements.requestRevision(ctx, p, a, actor, note, b)
	})
}

func (o *Orchestrator) withAgreement(ctx context.Context, op, agreementID string, fn func(ctx context.Context, p *model.Project, a *model.Agreement, b *effectBatch) error) (*model.Agreement, error) {
	a, err := o.repos.Agreements.Get(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NotFound("agreement", agreementID)
	}

	var out *model.Agreement
	_, err = o.withProject(ctx, op, a.ProjectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		// reread under the project lock
		locked, err := o.repos.Agreements.Get(ctx, agreementID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperrors.NotFound("agreement", agreementID)
		}
		if err := fn(ctx, p, locked, b); err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmPayment records an escrow payment and advances the lifecycle
func (o *Orchestrator) ConfirmPayment(ctx context.Context, actor model.Actor, req *model.ConfirmPaymentRequest) (*model.PaymentResult, error) {
	var out *model.PaymentResult
	_, err := o.withProject(ctx, "confirm_payment", req.ProjectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		res, err := o.payments.confirm(ctx, p, actor, req, b)
		out = res
		return err
	})
	outcome := "confirmed"
	switch {
	case err != nil:
		outcome = errorKind(err)
	case out.Replayed:
		outcome = "replayed"
	}
	o.metrics.ObservePayment(string(req.Phase), outcome)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitSamples is the worker uploading the deliverable for review
func (o *Orchestrator) SubmitSamples(ctx context.Context, actor model.Actor, projectID, deliverableRef string) (*model.Project, error) {
	if strings.TrimSpace(deliverableRef) == "" {
		return nil, apperrors.Invalid("deliverable_ref is required")
	}
	return o.withProject(ctx, "submit_samples", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if err := requireWorker(actor, p); err != nil {
			return err
		}
		err := o.lifecycle.apply(ctx, p, b, transition{
			event:    lifecycle.EventSamplesSubmitted,
			actor:    actor,
			metadata: map[string]interface{}{"deliverable_ref": deliverableRef},
		})
		if err != nil {
			return err
		}
		p.FinalDeliverableRef = deliverableRef
		b.add(constants.EffectSampleReview, p.ID, p.ClientID, fmt.Sprintf("Samples for %q are ready for review", p.Title),
			map[string]interface{}{"deliverable_ref": deliverableRef})
		return nil
	})
}

// ApproveSamples moves the project to its final payment step
func (o *Orchestrator) ApproveSamples(ctx context.Context, actor model.Actor, projectID string) (*model.Project, error) {
	return o.withProject(ctx, "approve_samples", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if err := requireClient(actor, p); err != nil {
			return err
		}
		if err := o.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventSamplesApproved, actor: actor}); err != nil {
			return err
		}
		p.SampleFeedback = ""

		a, err := o.repos.Agreements.GetActive(ctx, p.ID)
		if err != nil {
			return err
		}
		if a == nil || a.Printing() {
			b.add(constants.EffectSystemMessage, p.ID, p.ClientID, "Samples approved, please confirm final delivery", nil)
			return nil
		}
		b.add(constants.EffectPaymentRequest, p.ID, p.ClientID, fmt.Sprintf("Please pay the balance of %s", a.BalanceAmount.StringFixed(2)),
			map[string]interface{}{
				"agreement_id": a.ID,
				"phase":        string(constants.PhaseBalance60),
				"amount":       a.BalanceAmount.StringFixed(2),
			})
		return nil
	})
}

// RequestSampleRevision sends the work back to the worker with feedback
func (o *Orchestrator) RequestSampleRevision(ctx context.Context, actor model.Actor, projectID, feedback string) (*model.Project, error) {
	return o.withProject(ctx, "request_sample_revision", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if err := requireClient(actor, p); err != nil {
			return err
		}
		err := o.lifecycle.apply(ctx, p, b, transition{
			event:  lifecycle.EventSampleRevisionRequested,
			actor:  actor,
			reason: feedback,
		})
		if err != nil {
			return err
		}
		p.SampleFeedback = feedback
		b.add(constants.EffectSystemMessage, p.ID, p.WorkerID, "The client requested changes to the samples",
			map[string]interface{}{"feedback": feedback})
		return nil
	})
}

// DeclineAssignment is the assigned worker giving the project back
func (o *Orchestrator) DeclineAssignment(ctx context.Context, actor model.Actor, projectID, reason string) (*model.Project, error) {
	return o.withProject(ctx, "decline_assignment", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		return o.reassignment.decline(ctx, p, actor, reason, b)
	})
}

// RequestReassignment is the client asking for another worker before paying anything
func (o *Orchestrator) RequestReassignment(ctx context.Context, actor model.Actor, projectID, reason string) (*model.Project, error) {
	return o.withProject(ctx, "request_reassignment", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		return o.reassignment.requestReassignment(ctx, p, actor, reason, b)
	})
}

// ApproveFinalDelivery is the client's terminal confirmation
func (o *Orchestrator) ApproveFinalDelivery(ctx context.Context, actor model.Actor, projectID string) (*model.Project, error) {
	return o.withProject(ctx, "approve_final_delivery", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		return o.payments.approveDelivery(ctx, p, actor, b)
	})
}

// ExpireAssignment returns an assigned project whose deadline passed to matching.
// Projects that are no longer expired are left alone.
func (o *Orchestrator) ExpireAssignment(ctx context.Context, projectID string) (bool, error) {
	var done bool
	_, err := o.withProject(ctx, "expire_assignment", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if !expired(p, b) {
			return nil
		}
		done = true
		return o.reassignment.expire(ctx, p, b)
	})
	return done, err
}

// ExpireStaleAssignments sweeps up to limit expired assignments, one transaction each
func (o *Orchestrator) ExpireStaleAssignments(ctx context.Context, limit int) (int, error) {
	ids, err := o.repos.Projects.ListExpiredAssignments(ctx, o.now(), limit)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		ok, err := o.ExpireAssignment(ctx, id)
		if err != nil {
			logger.WarnCtx(ctx, "failed to expire assignment of project %s: %v", id, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// ForceAssign attaches a worker by admin override
func (o *Orchestrator) ForceAssign(ctx context.Context, actor model.Actor, projectID, workerID string) (*model.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return o.withProject(ctx, "force_assign", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		return o.matcher.assign(ctx, p, workerID, b, actor)
	})
}

// CancelProject stops a non-terminal project and frees its worker
func (o *Orchestrator) CancelProject(ctx context.Context, actor model.Actor, projectID, reason string) (*model.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return o.withProject(ctx, "cancel_project", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		hadWorker := lifecycle.HasWorker(p.Status) && p.WorkerID != ""
		err := o.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventCancelled, actor: actor, reason: reason})
		if err != nil {
			return err
		}
		p.Reason = reason
		p.AssignmentDeadline = nil

		if hadWorker {
			if err := o.repos.Workers.ReleaseSlot(ctx, p.WorkerID); err != nil {
				return err
			}
			b.add(constants.EffectSystemMessage, p.ID, p.WorkerID, fmt.Sprintf("Project %q was cancelled", p.Title),
				map[string]interface{}{"reason": reason})
			b.workerStat(p.ID, p.WorkerID, "cancelled")
		}
		b.add(constants.EffectSystemMessage, p.ID, p.ClientID, fmt.Sprintf("Project %q was cancelled", p.Title),
			map[string]interface{}{"reason": reason})
		return nil
	})
}

// RequeueProject puts a NO_WORKER_AVAILABLE or cancelled project back into
// matching and runs a match attempt right away.
func (o *Orchestrator) RequeueProject(ctx context.Context, actor model.Actor, projectID string) (*model.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return o.withProject(ctx, "requeue_project", projectID, func(ctx context.Context, p *model.Project, b *effectBatch) error {
		if _, err := lifecycle.Next(p.Status, lifecycle.EventRequeued); err != nil {
			return err
		}
		paid, err := o.repos.Payments.CountByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return fmt.Errorf("project %s has %d payment(s): %w", p.ID, paid, apperrors.ErrPaymentsAlreadyMade)
		}
		if err := o.repos.Agreements.SupersedeActive(ctx, p.ID); err != nil {
			return err
		}

		if err := o.lifecycle.apply(ctx, p, b, transition{event: lifecycle.EventRequeued, actor: actor}); err != nil {
			return err
		}
		p.ClearAssignment()
		p.Reason = ""

		if err := o.matcher.match(ctx, p, b, actor); err != nil && !errors.Is(err, apperrors.ErrNoCandidate) {
			return err
		}
		return nil
	})
}

// GetProject retrieves a project
func (o *Orchestrator) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	p, err := o.repos.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFound("project", projectID)
	}
	return p, nil
}

// ListProjects lists projects matching filter
func (o *Orchestrator) ListProjects(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int64, error) {
	if filter.Status != "" && !lifecycle.Known(filter.Status) {
		return nil, 0, apperrors.Invalid("unknown status %q", filter.Status)
	}
	return o.repos.Projects.List(ctx, filter)
}

// GetProjectEvents returns the audit trail
func (o *Orchestrator) GetProjectEvents(ctx context.Context, projectID string) ([]*model.ProjectEvent, error) {
	if _, err := o.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return o.lifecycle.History(ctx, projectID)
}

// GetAgreement retrieves one agreement
func (o *Orchestrator) GetAgreement(ctx context.Context, agreementID string) (*model.Agreement, error) {
	a, err := o.repos.Agreements.Get(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NotFound("agreement", agreementID)
	}
	return a, nil
}

// ListAgreements returns the agreement history of a project, oldest first
func (o *Orchestrator) ListAgreements(ctx context.Context, projectID string) ([]*model.Agreement, error) {
	if _, err := o.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return o.repos.Agreements.ListByProject(ctx, projectID)
}

// ListPayments returns the payment ledger of a project
func (o *Orchestrator) ListPayments(ctx context.Context, projectID string) ([]*model.Payment, error) {
	if _, err := o.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return o.repos.Payments.ListByProject(ctx, projectID)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperrors.ErrNoCandidate):
		return "no_candidate"
	case errors.Is(err, apperrors.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, apperrors.ErrPaymentsAlreadyMade):
		return "payments_already_made"
	case errors.Is(err, apperrors.ErrPhaseMismatch):
		return "phase_mismatch"
	case errors.Is(err, apperrors.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, apperrors.ErrDuplicatePayment):
		return "duplicate_payment"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, apperrors.ErrNotProjectParty):
		return "forbidden"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, apperrors.ErrAssignmentExpired):
		return "assignment_expired"
	case errors.Is(err, apperrors.ErrConcurrentUpdate):
		return "concurrent_update"
	}
	return "internal"
}
