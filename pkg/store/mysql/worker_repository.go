package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	mysqlmodel "atelier/pkg/store/mysql/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkerRepository handles worker pool database operations
type WorkerRepository struct {
	ds *Datastore
}

// NewWorkerRepository creates a new worker repository
func NewWorkerRepository(ds *Datastore) *WorkerRepository {
	return &WorkerRepository{ds: ds}
}

// Create inserts a worker
func (r *WorkerRepository) Create(ctx context.Context, w *model.Worker) error {
	row := FromWorkerDomain(w)
	if err := r.ds.DB(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Invalid("worker %s already exists", w.ID)
		}
		return fmt.Errorf("failed to create worker: %w", err)
	}
	return nil
}

// Get retrieves a worker by ID
func (r *WorkerRepository) Get(ctx context.Context, workerID string) (*model.Worker, error) {
	var row mysqlmodel.Worker
	err := r.ds.DB(ctx).Where("worker_id = ?", workerID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return ToWorkerDomain(&row), nil
}

// UpdateProfile updates profile columns, never the capacity counters
func (r *WorkerRepository) UpdateProfile(ctx context.Context, w *model.Worker) error {
	result := r.ds.DB(ctx).Model(&mysqlmodel.Worker{}).
		Where("worker_id = ?", w.ID).
		Updates(map[string]interface{}{
			"name":              w.Name,
			"skills":            mysqlmodel.JSONStringArray(w.Skills),
			"available":         w.Available,
			"rating":            w.Rating,
			"max_project_limit": w.MaxProjectLimit,
			"price_tier":        string(w.PriceTier),
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update worker: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("worker", w.ID)
	}
	return nil
}

// List retrieves workers with optional filters
func (r *WorkerRepository) List(ctx context.Context, filter model.WorkerFilter) ([]*model.Worker, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := r.ds.DB(ctx).Model(&mysqlmodel.Worker{})
	if filter.Skill != "" {
		query = query.Where("JSON_CONTAINS(skills, JSON_QUOTE(?))", string(filter.Skill))
	}
	if filter.AvailableOnly {
		query = query.Where("available = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count workers: %w", err)
	}

	var rows []*mysqlmodel.Worker
	if err := query.Order("worker_id ASC").Limit(limit).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list workers: %w", err)
	}
	return toWorkers(rows), total, nil
}

// ListCandidates retrieves available workers with the skill and at least one free slot
func (r *WorkerRepository) ListCandidates(ctx context.Context, skill string) ([]*model.Worker, error) {
	var rows []*mysqlmodel.Worker
	err := r.ds.DB(ctx).
		Where("available = ? AND active_project_count < max_project_limit", true).
		Where("JSON_CONTAINS(skills, JSON_QUOTE(?))", skill).
		Order("worker_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate workers: %w", err)
	}
	return toWorkers(rows), nil
}

// ClaimSlot conditionally increments active_project_count (CAS on the capacity limit)
func (r *WorkerRepository) ClaimSlot(ctx context.Context, workerID string) error {
	result := r.ds.DB(ctx).Model(&mysqlmodel.Worker{}).
		Where("worker_id = ? AND active_project_count < max_project_limit", workerID).
		Updates(map[string]interface{}{
			"active_project_count": gorm.Expr("active_project_count + 1"),
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim worker slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missingOrFull(ctx, workerID)
	}
	return nil
}

// ReleaseSlot decrements active_project_count, floored at zero
func (r *WorkerRepository) ReleaseSlot(ctx context.Context, workerID string) error {
	err := r.ds.DB(ctx).Model(&mysqlmodel.Worker{}).
		Where("worker_id = ? AND active_project_count > 0", workerID).
		Updates(map[string]interface{}{
			"active_project_count": gorm.Expr("active_project_count - 1"),
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release worker slot: %w", err)
	}
	return nil
}

// IncrementCompleted bumps the completed project counter
func (r *WorkerRepository) IncrementCompleted(ctx context.Context, workerID string) error {
	err := r.ds.DB(ctx).Model(&mysqlmodel.Worker{}).
		Where("worker_id = ?", workerID).
		Update("completed_count", gorm.Expr("completed_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment completed count: %w", err)
	}
	return nil
}

func (r *WorkerRepository) missingOrFull(ctx context.Context, workerID string) error {
	var count int64
	if err := r.ds.DB(ctx).Model(&mysqlmodel.Worker{}).Where("worker_id = ?", workerID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check worker: %w", err)
	}
	if count == 0 {
		return apperrors.NotFound("worker", workerID)
	}
	return fmt.Errorf("worker %s: %w", workerID, apperrors.ErrCapacityExceeded)
}

func toWorkers(rows []*mysqlmodel.Worker) []*model.Worker {
	out := make([]*model.Worker, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToWorkerDomain(row))
	}
	return out
}

// RotationRepository handles the fairness ledger
type RotationRepository struct {
	ds *Datastore
}

// NewRotationRepository creates a new rotation repository
func NewRotationRepository(ds *Datastore) *RotationRepository {
	return &RotationRepository{ds: ds}
}

// ListBySkill retrieves ledger rows for the given workers and skill keyed by worker id
func (r *RotationRepository) ListBySkill(ctx context.Context, skill string, workerIDs []string) (map[string]*model.RotationRecord, error) {
	out := make(map[string]*model.RotationRecord, len(workerIDs))
	if len(workerIDs) == 0 {
		return out, nil
	}

	var rows []*mysqlmodel.RotationRecord
	err := r.ds.DB(ctx).
		Where("skill = ? AND worker_id IN ?", skill, workerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rotation records: %w", err)
	}
	for _, row := range rows {
		out[row.WorkerID] = &model.RotationRecord{
			WorkerID:        row.WorkerID,
			Skill:           row.Skill,
			LastAssignedAt:  row.LastAssignedAt,
			AssignmentCount: row.AssignmentCount,
		}
	}
	return out, nil
}

// Touch upserts the ledger row: INSERT ... ON DUPLICATE KEY UPDATE
func (r *RotationRepository) Touch(ctx context.Context, workerID, skill string, at time.Time) error {
	row := &mysqlmodel.RotationRecord{
		WorkerID:        workerID,
		Skill:           skill,
		LastAssignedAt:  at,
		AssignmentCount: 1,
		UpdatedAt:       at,
	}
	err := r.ds.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}, {Name: "skill"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_assigned_at": gorm.Expr("GREATEST(last_assigned_at, ?)", at),
			"assignment_count": gorm.Expr("assignment_count + 1"),
			"updated_at":       at,
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to update rotation record: %w", err)
	}
	return nil
}

// ExclusionRepository handles per-attempt worker exclusions
type ExclusionRepository struct {
	ds *Datastore
}

// NewExclusionRepository creates a new exclusion repository
func NewExclusionRepository(ds *Datastore) *ExclusionRepository {
	return &ExclusionRepository{ds: ds}
}

// Add records an exclusion; repeats are ignored
func (r *ExclusionRepository) Add(ctx context.Context, e *model.WorkerExclusion) error {
	row := &mysqlmodel.WorkerExclusion{
		ProjectID: e.ProjectID,
		Attempt:   e.Attempt,
		WorkerID:  e.WorkerID,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := r.ds.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record exclusion: %w", err)
	}
	return nil
}

// ListForAttempt returns worker ids excluded from the given attempt
func (r *ExclusionRepository) ListForAttempt(ctx context.Context, projectID string, attempt int) ([]string, error) {
	var ids []string
	err := r.ds.DB(ctx).Model(&mysqlmodel.WorkerExclusion{}).
		Where("project_id = ? AND attempt = ?", projectID, attempt).
		Pluck("worker_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	return ids, nil
}
