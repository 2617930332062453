package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/config"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"
	"atelier/pkg/matching"
	"atelier/pkg/metrics"

	"github.com/shopspring/decimal"
)

// MatchingOptions tunes candidate selection
type MatchingOptions struct {
	Weights          matching.Weights
	AcceptanceWindow time.Duration
	TierBudgets      map[constants.PriceTier]decimal.Decimal
}

// MatchingOptionsFromConfig converts the matching config section
func MatchingOptionsFromConfig(cfg config.MatchingConfig) MatchingOptions {
	opts := MatchingOptions{
		Weights:          cfg.Weights,
		AcceptanceWindow: cfg.AcceptanceWindow,
		TierBudgets:      make(map[constants.PriceTier]decimal.Decimal, len(cfg.TierBudgets)),
	}
	for tier, floor := range cfg.TierBudgets {
		opts.TierBudgets[constants.PriceTier(tier)] = decimal.NewFromFloat(floor)
	}
	return opts.withDefaults()
}

func (o MatchingOptions) withDefaults() MatchingOptions {
	if o.Weights.IsZero() {
		o.Weights = matching.DefaultWeights()
	}
	if o.AcceptanceWindow <= 0 {
		o.AcceptanceWindow = config.DefaultAcceptanceWindow
	}
	return o
}

// MatchingService selects a worker for a project and claims its capacity slot
type MatchingService struct {
	repos     *interfaces.Repositories
	lifecycle *LifecycleService
	metrics   *metrics.Metrics
	opts      MatchingOptions
}

// NewMatchingService creates a new matching service
func NewMatchingService(repos *interfaces.Repositories, lc *LifecycleService, m *metrics.Metrics, opts MatchingOptions) *MatchingService {
	return &MatchingService{
		repos:     repos,
		lifecycle: lc,
		metrics:   m,
		opts:      opts.withDefaults(),
	}
}

// match runs one attempt for p inside the caller's transaction.
// On success p is assigned; with no candidate p moves to NO_WORKER_AVAILABLE
// and the returned error wraps apperrors.ErrNoCandidate. Both outcomes are
// meant to be committed.
func (s *MatchingService) match(ctx context.Context, p *model.Project, b *effectBatch, actor model.Actor) error {
	if lifecycle.HasWorker(p.Status) {
		return fmt.Errorf("project %s is assigned to %s: %w", p.ID, p.WorkerID, apperrors.ErrAlreadyAssigned)
	}
	if !lifecycle.Can(p.Status, lifecycle.EventMatchSucceeded) {
		_, err := lifecycle.Next(p.Status, lifecycle.EventMatchSucceeded)
		return err
	}

	start := time.Now()
	p.MatchAttempt++

	ranked, err := s.rank(ctx, p)
	if err != nil {
		return err
	}

	var chosen *matching.Scored
	for i := range ranked {
		err := s.repos.Workers.ClaimSlot(ctx, ranked[i].WorkerID)
		if err == nil {
			chosen = &ranked[i]
			break
		}
		if errors.Is(err, apperrors.ErrCapacityExceeded) || errors.Is(err, apperrors.ErrNotFound) {
			logger.InfoCtx(ctx, "candidate %s lost its slot while matching project %s, trying next", ranked[i].WorkerID, p.ID)
			continue
		}
		return err
	}

	if chosen == nil {
		s.metrics.ObserveMatch(string(p.Skill), "no_candidate", time.Since(start))
		return s.noCandidate(ctx, p, b, actor, len(ranked))
	}

	if err := s.repos.Rotation.Touch(ctx, chosen.WorkerID, string(p.Skill), b.now); err != nil {
		return err
	}

	p.WorkerID = chosen.WorkerID
	p.AssignmentMethod = constants.AssignmentAuto
	p.AssignedAt = timePtr(b.now)
	p.AssignmentDeadline = timePtr(b.now.Add(s.opts.AcceptanceWindow))
	p.Reason = ""

	err = s.lifecycle.apply(ctx, p, b, transition{
		event: lifecycle.EventMatchSucceeded,
		actor: actor,
		metadata: map[string]interface{}{
			"attempt": p.MatchAttempt,
			"score":   chosen.Score,
		},
	})
	if err != nil {
		return err
	}

	s.notifyAssigned(p, b)
	s.metrics.ObserveMatch(string(p.Skill), "assigned", time.Since(start))
	logger.InfoCtx(ctx, "project %s matched to worker %s, score: %.4f, attempt: %d, candidates: %d",
		p.ID, chosen.WorkerID, chosen.Score, p.MatchAttempt, len(ranked))
	return nil
}

// assign attaches workerID by admin override, bypassing scoring but not capacity
func (s *MatchingService) assign(ctx context.Context, p *model.Project, workerID string, b *effectBatch, actor model.Actor) error {
	if p.WorkerID != "" && lifecycle.HasWorker(p.Status) {
		return fmt.Errorf("project %s is assigned to %s: %w", p.ID, p.WorkerID, apperrors.ErrAlreadyAssigned)
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.EventAdminAssigned); err != nil {
		return err
	}

	w, err := s.repos.Workers.Get(ctx, workerID)
	if err != nil {
		return err
	}
	if w == nil {
		return apperrors.NotFound("worker", workerID)
	}
	if err := s.repos.Workers.ClaimSlot(ctx, workerID); err != nil {
		return err
	}
	if err := s.repos.Rotation.Touch(ctx, workerID, string(p.Skill), b.now); err != nil {
		return err
	}

	p.WorkerID = workerID
	p.AssignmentMethod = constants.AssignmentAdminOverride
	p.AssignedAt = timePtr(b.now)
	p.AssignmentDeadline = timePtr(b.now.Add(s.opts.AcceptanceWindow))
	p.Reason = ""

	err = s.lifecycle.apply(ctx, p, b, transition{
		event: lifecycle.EventAdminAssigned,
		actor: actor,
	})
	if err != nil {
		return err
	}
	s.notifyAssigned(p, b)
	return nil
}

// rank loads the candidate snapshot and orders it
func (s *MatchingService) rank(ctx context.Context, p *model.Project) ([]matching.Scored, error) {
	excludedIDs, err := s.repos.Exclusions.ListForAttempt(ctx, p.ID, p.MatchAttempt)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}

	workers, err := s.repos.Workers.ListCandidates(ctx, string(p.Skill))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}
	ledger, err := s.repos.Rotation.ListBySkill(ctx, string(p.Skill), ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(workers))
	for _, w := range workers {
		c := matching.Candidate{
			WorkerID:       w.ID,
			Skills:         w.Skills,
			Rating:         w.Rating,
			ActiveProjects: w.ActiveProjectCount,
			MaxProjects:    w.MaxProjectLimit,
			PriceTier:      w.PriceTier,
		}
		if rec, ok := ledger[w.ID]; ok {
			last := rec.LastAssignedAt
			c.LastAssignedAt = &last
			c.AssignmentCount = rec.AssignmentCount
		}
		candidates = append(candidates, c)
	}

	return matching.Rank(candidates, matching.Request{
		Skill:       p.Skill,
		BudgetHint:  p.BudgetHint,
		TierBudgets: s.opts.TierBudgets,
		Excluded:    excluded,
	}, s.opts.Weights), nil
}

func (s *MatchingService) noCandidate(ctx context.Context, p *model.Project, b *effectBatch, actor model.Actor, ranked int) error {
	reason := fmt.Sprintf("no eligible worker for skill %s", p.Skill)
	if ranked > 0 {
		reason = fmt.Sprintf("all %d eligible workers for skill %s reached capacity", ranked, p.Skill)
	}
	p.Reason = reason

	err := s.lifecycle.apply(ctx, p, b, transition{
		event:    lifecycle.EventMatchFailed,
		actor:    actor,
		reason:   reason,
		metadata: map[string]interface{}{"attempt": p.MatchAttempt},
	})
	if err != nil {
		return err
	}

	b.add(constants.EffectAdminAlert, p.ID, "", fmt.Sprintf("Project %q needs manual assignment: %s", p.Title, reason),
		map[string]interface{}{
			"skill":   string(p.Skill),
			"client":  p.ClientID,
			"attempt": p.MatchAttempt,
		})
	logger.WarnCtx(ctx, "project %s: %s (attempt %d)", p.ID, reason, p.MatchAttempt)
	return fmt.Errorf("project %s: %w", p.ID, apperrors.ErrNoCandidate)
}

func (s *MatchingService) notifyAssigned(p *model.Project, b *effectBatch) {
	e := b.add(constants.EffectAssignmentNotification, p.ID, p.WorkerID,
		fmt.Sprintf("You have been assigned project %q", p.Title),
		map[string]interface{}{
			"method":   string(p.AssignmentMethod),
			"deadline": p.AssignmentDeadline.UTC().Format(time.RFC3339),
			"skill":    string(p.Skill),
		})
	e.WorkerID = p.WorkerID
	b.workerStat(p.ID, p.WorkerID, "assigned")
}
