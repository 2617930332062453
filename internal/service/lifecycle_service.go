package service

import (
	"context"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"
)

// SystemActor performs background transitions (assignment expiry)
var SystemActor = model.Actor{ID: "system", Role: constants.RoleAdmin}

// LifecycleService applies transitions and writes the audit trail.
// It never persists the project itself; the caller saves it once per operation.
type LifecycleService struct {
	events interfaces.ProjectEventRepository
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(events interfaces.ProjectEventRepository) *LifecycleService {
	return &LifecycleService{events: events}
}

type transition struct {
	event    lifecycle.Event
	actor    model.Actor
	reason   string
	metadata map[string]interface{}
}

// apply moves p along event, or returns a *apperrors.TransitionError leaving p untouched
func (s *LifecycleService) apply(ctx context.Context, p *model.Project, b *effectBatch, t transition) error {
	to, err := lifecycle.Next(p.Status, t.event)
	if err != nil {
		return err
	}
	from := p.Status
	p.Status = to

	ev := &model.ProjectEvent{
		ProjectID:  p.ID,
		Event:      t.event,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    t.actor.ID,
		WorkerID:   p.WorkerID,
		Reason:     t.reason,
		Metadata:   t.metadata,
		EventTime:  b.now,
	}
	if err := s.events.Record(ctx, ev); err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	b.transitions = append(b.transitions, transitionRecord{event: t.event, to: to})
	logger.InfoCtx(ctx, "project %s: %s -> %s, event: %s, actor: %s", p.ID, from, to, t.event, t.actor.ID)
	return nil
}

// History returns the audit trail of a project
func (s *LifecycleService) History(ctx context.Context, projectID string) ([]*model.ProjectEvent, error) {
	return s.events.ListByProject(ctx, projectID)
}

func requireClient(actor model.Actor, p *model.Project) error {
	if actor.IsAdmin() || (actor.Role == constants.RoleClient && actor.ID == p.ClientID) {
		return nil
	}
	return fmt.Errorf("%s is not the client of project %s: %w", actor.ID, p.ID, apperrors.ErrNotProjectParty)
}

func requireWorker(actor model.Actor, p *model.Project) error {
	if p.WorkerID == "" {
		return fmt.Errorf("project %s has no worker: %w", p.ID, apperrors.ErrNotProjectParty)
	}
	if actor.IsAdmin() || (actor.Role == constants.RoleWorker && actor.ID == p.WorkerID) {
		return nil
	}
	return fmt.Errorf("%s is not the worker of project %s: %w", actor.ID, p.ID, apperrors.ErrNotProjectParty)
}

func requireAdmin(actor model.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%s is not an admin: %w", actor.ID, apperrors.ErrNotProjectParty)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
