package service

import (
	"context"
	"fmt"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultMaxProjectLimit = 3
	maxWorkerRating        = 5.0
)

// WorkerService manages the worker pool profile data.
// Capacity counters are owned by matching and are not writable here.
type WorkerService struct {
	workers interfaces.WorkerRepository
}

// NewWorkerService creates a new Worker service
func NewWorkerService(workers interfaces.WorkerRepository) *WorkerService {
	return &WorkerService{workers: workers}
}

// RegisterWorker adds a worker to the pool
func (s *WorkerService) RegisterWorker(ctx context.Context, req *model.RegisterWorkerRequest) (*model.Worker, error) {
	w := &model.Worker{
		ID:              req.ID,
		Name:            req.Name,
		Skills:          req.Skills,
		Available:       true,
		Rating:          req.Rating,
		MaxProjectLimit: req.MaxProjectLimit,
		PriceTier:       req.PriceTier,
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if req.Available != nil {
		w.Available = *req.Available
	}
	if w.MaxProjectLimit == 0 {
		w.MaxProjectLimit = DefaultMaxProjectLimit
	}
	if w.PriceTier == "" {
		w.PriceTier = constants.PriceTierStandard
	}
	if err := validateWorker(w); err != nil {
		return nil, err
	}

	if err := s.workers.Create(ctx, w); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "worker registered, worker_id: %s, skills: %v, limit: %d", w.ID, w.Skills, w.MaxProjectLimit)
	return w, nil
}

// UpdateWorker applies a partial profile update. Workers may edit their own
// name, skills and availability; rating, limit and tier are admin fields.
func (s *WorkerService) UpdateWorker(ctx context.Context, actor model.Actor, workerID string, req *model.UpdateWorkerRequest) (*model.Worker, error) {
	if !actor.IsAdmin() {
		if actor.Role != constants.RoleWorker || actor.ID != workerID {
			return nil, fmt.Errorf("%s cannot update worker %s: %w", actor.ID, workerID, apperrors.ErrNotProjectParty)
		}
		if req.TouchesAdminFields() {
			return nil, fmt.Errorf("worker %s cannot change rating, project limit or price tier: %w", workerID, apperrors.ErrNotProjectParty)
		}
	}

	w, err := s.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		w.Name = *req.Name
	}
	if req.Skills != nil {
		w.Skills = req.Skills
	}
	if req.Available != nil {
		w.Available = *req.Available
	}
	if req.Rating != nil {
		w.Rating = *req.Rating
	}
	if req.MaxProjectLimit != nil {
		w.MaxProjectLimit = *req.MaxProjectLimit
	}
	if req.PriceTier != nil {
		w.PriceTier = *req.PriceTier
	}
	if err := validateWorker(w); err != nil {
		return nil, err
	}

	if err := s.workers.UpdateProfile(ctx, w); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "worker updated, worker_id: %s, available: %v, limit: %d", w.ID, w.Available, w.MaxProjectLimit)
	return s.GetWorker(ctx, workerID)
}

// GetWorker retrieves a worker
func (s *WorkerService) GetWorker(ctx context.Context, workerID string) (*model.Worker, error) {
	w, err := s.workers.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperrors.NotFound("worker", workerID)
	}
	return w, nil
}

// ListWorkers lists the pool
func (s *WorkerService) ListWorkers(ctx context.Context, filter model.WorkerFilter) ([]*model.Worker, int64, error) {
	if filter.Skill != "" && !filter.Skill.Valid() {
		return nil, 0, apperrors.Invalid("unknown skill %q", filter.Skill)
	}
	return s.workers.List(ctx, filter)
}

func validateWorker(w *model.Worker) error {
	if w.Name == "" {
		return apperrors.Invalid("worker name is required")
	}
	if len(w.Skills) == 0 {
		return apperrors.Invalid("worker needs at least one skill")
	}
	seen := make(map[string]bool, len(w.Skills))
	for _, sk := range w.Skills {
		if !constants.Skill(sk).Valid() {
			return apperrors.Invalid("unknown skill %q", sk)
		}
		if seen[sk] {
			return apperrors.Invalid("skill %q listed twice", sk)
		}
		seen[sk] = true
	}
	if w.Rating < 0 || w.Rating > maxWorkerRating {
		return apperrors.Invalid("rating must be within [0, %.0f], got %v", maxWorkerRating, w.Rating)
	}
	if w.MaxProjectLimit < 1 {
		return apperrors.Invalid("max_project_limit must be at least 1, got %d", w.MaxProjectLimit)
	}
	if !w.PriceTier.Valid() {
		return apperrors.Invalid("unknown price tier %q", w.PriceTier)
	}
	return nil
}
