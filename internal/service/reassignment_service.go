package service

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"
)

// ReassignmentService unwinds an assignment and rematches the project
type ReassignmentService struct {
	repos     *interfaces.Repositories
	lifecycle *LifecycleService
	matcher   *MatchingService
}

// NewReassignmentService creates a new reassignment service
func NewReassignmentService(repos *interfaces.Repositories, lc *LifecycleService, matcher *MatchingService) *ReassignmentService {
	return &ReassignmentService{repos: repos, lifecycle: lc, matcher: matcher}
}

func (s *ReassignmentService) decline(ctx context.Context, p *model.Project, actor model.Actor, reason string, b *effectBatch) error {
	if err := requireWorker(actor, p); err != nil {
		return err
	}
	return s.unwind(ctx, p, lifecycle.EventWorkerDeclined, actor, reason, b)
}

func (s *ReassignmentService) requestReassignment(ctx context.Context, p *model.Project, actor model.Actor, reason string, b *effectBatch) error {
	if err := requireClient(actor, p); err != nil {
		return err
	}
	paid, err := s.repos.Payments.CountByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	if paid > 0 || p.TotalPaid.IsPositive() {
		return fmt.Errorf("project %s has %d payment(s): %w", p.ID, paid, apperrors.ErrPaymentsAlreadyMade)
	}
	return s.unwind(ctx, p, lifecycle.EventReassignmentRequested, actor, reason, b)
}

func (s *ReassignmentService) expire(ctx context.Context, p *model.Project, b *effectBatch) error {
	return s.unwind(ctx, p, lifecycle.EventAssignmentExpired, SystemActor, "acceptance deadline passed", b)
}

// expired reports whether p is waiting on an acceptance whose deadline has passed
func expired(p *model.Project, b *effectBatch) bool {
	return p.Status == lifecycle.StatusAssigned &&
		p.AssignmentDeadline != nil &&
		p.AssignmentDeadline.Before(b.now)
}

// unwind releases the worker, excludes them from the next attempt, returns
// the project to matching and immediately tries another candidate. Running out
// of candidates is not an error here; the project is left NO_WORKER_AVAILABLE.
func (s *ReassignmentService) unwind(ctx context.Context, p *model.Project, event lifecycle.Event, actor model.Actor, reason string, b *effectBatch) error {
	if _, err := lifecycle.Next(p.Status, event); err != nil {
		return err
	}

	workerID := p.WorkerID
	if err := s.repos.Workers.ReleaseSlot(ctx, workerID); err != nil {
		return err
	}
	err := s.repos.Exclusions.Add(ctx, &model.WorkerExclusion{
		ProjectID: p.ID,
		WorkerID:  workerID,
		Attempt:   p.MatchAttempt + 1,
		Reason:    string(event),
		CreatedAt: b.now,
	})
	if err != nil {
		return err
	}
	if err := s.repos.Agreements.SupersedeActive(ctx, p.ID); err != nil {
		return err
	}

	err = s.lifecycle.apply(ctx, p, b, transition{
		event:    event,
		actor:    actor,
		reason:   reason,
		metadata: map[string]interface{}{"released_worker": workerID},
	})
	if err != nil {
		return err
	}
	p.ClearAssignment()
	p.Reason = reason

	b.add(constants.EffectSystemMessage, p.ID, workerID, fmt.Sprintf("You are no longer assigned to %q", p.Title),
		map[string]interface{}{"event": string(event), "reason": reason})
	b.add(constants.EffectSystemMessage, p.ID, p.ClientID, "We are finding a new worker for your project",
		map[string]interface{}{"event": string(event)})
	b.workerStat(p.ID, workerID, string(event))

	logger.InfoCtx(ctx, "project %s released worker %s (%s), rematching", p.ID, workerID, event)

	if err := s.matcher.match(ctx, p, b, actor); err != nil && !errors.Is(err, apperrors.ErrNoCandidate) {
		return err
	}
	return nil
}
