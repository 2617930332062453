package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/lifecycle"
	mysqlmodel "atelier/pkg/store/mysql/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectRepository handles project persistence in MySQL
type ProjectRepository struct {
	ds *Datastore
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(ds *Datastore) *ProjectRepository {
	return &ProjectRepository{ds: ds}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	row := FromProjectDomain(p)
	if err := r.ds.DB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, projectID string) (*model.Project, error) {
	return r.get(ctx, r.ds.DB(ctx), projectID)
}

// GetForUpdate retrieves a project with SELECT ... FOR UPDATE
func (r *ProjectRepository) GetForUpdate(ctx context.Context, projectID string) (*model.Project, error) {
	return r.get(ctx, r.ds.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), projectID)
}

func (r *ProjectRepository) get(_ context.Context, db *gorm.DB, projectID string) (*model.Project, error) {
	var row mysqlmodel.Project
	err := db.Where("project_id = ?", projectID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return ToProjectDomain(&row), nil
}

// Save writes all mutable columns guarded by the optimistic version (CAS on version)
func (r *ProjectRepository) Save(ctx context.Context, p *model.Project) error {
	prev := p.Version
	row := FromProjectDomain(p)
	row.Version = prev + 1
	row.UpdatedAt = r.ds.GetDB().NowFunc()

	result := r.ds.DB(ctx).Model(&mysqlmodel.Project{}).
		Where("project_id = ? AND version = ?", p.ID, prev).
		Select("*").
		Omit("id", "project_id", "created_at").
		Updates(row)
	if result.Error != nil {
		return fmt.Errorf("failed to save project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s version %d: %w", p.ID, prev, apperrors.ErrConcurrentUpdate)
	}

	p.Version = row.Version
	p.UpdatedAt = row.UpdatedAt
	return nil
}

// List retrieves projects with optional filters
func (r *ProjectRepository) List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := r.ds.DB(ctx).Model(&mysqlmodel.Project{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.WorkerID != "" {
		query = query.Where("worker_id = ?", filter.WorkerID)
	}
	if filter.Skill != "" {
		query = query.Where("skill = ?", string(filter.Skill))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	var rows []*mysqlmodel.Project
	err := query.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	out := make([]*model.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToProjectDomain(row))
	}
	return out, total, nil
}

// ListExpiredAssignments retrieves assigned projects past their acceptance deadline
func (r *ProjectRepository) ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.ds.DB(ctx).Model(&mysqlmodel.Project{}).
		Where("status = ? AND assignment_deadline IS NOT NULL AND assignment_deadline < ?", string(lifecycle.StatusAssigned), now).
		Order("assignment_deadline ASC").
		Limit(limit).
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired assignments: %w", err)
	}
	return ids, nil
}
