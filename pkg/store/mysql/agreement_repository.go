package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	mysqlmodel "atelier/pkg/store/mysql/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgreementRepository handles agreement persistence in MySQL
type AgreementRepository struct {
	ds *Datastore
}

// NewAgreementRepository creates a new agreement repository
func NewAgreementRepository(ds *Datastore) *AgreementRepository {
	return &AgreementRepository{ds: ds}
}

// Create creates a new agreement
func (r *AgreementRepository) Create(ctx context.Context, a *model.Agreement) error {
	row := FromAgreementDomain(a)
	if err := r.ds.DB(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create agreement: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

// Get retrieves an agreement by ID
func (r *AgreementRepository) Get(ctx context.Context, agreementID string) (*model.Agreement, error) {
	var row mysqlmodel.Agreement
	err := r.ds.DB(ctx).Where("agreement_id = ?", agreementID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return ToAgreementDomain(&row), nil
}

// Update writes every mutable column of the agreement
func (r *AgreementRepository) Update(ctx context.Context, a *model.Agreement) error {
	row := FromAgreementDomain(a)
	row.UpdatedAt = time.Now().UTC()
	result := r.ds.DB(ctx).Model(&mysqlmodel.Agreement{}).
		Where("agreement_id = ?", a.ID).
		Select("*").
		Omit("id", "agreement_id", "project_id", "created_at").
		Updates(row)
	if result.Error != nil {
		return fmt.Errorf("failed to update agreement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("agreement", a.ID)
	}
	a.UpdatedAt = row.UpdatedAt
	return nil
}

// GetActive retrieves the non-superseded agreement of a project
func (r *AgreementRepository) GetActive(ctx context.Context, projectID string) (*model.Agreement, error) {
	var row mysqlmodel.Agreement
	err := r.ds.DB(ctx).
		Where("project_id = ? AND superseded = ?", projectID, false).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active agreement: %w", err)
	}
	return ToAgreementDomain(&row), nil
}

// SupersedeActive marks the active agreement (if any) as superseded
func (r *AgreementRepository) SupersedeActive(ctx context.Context, projectID string) error {
	err := r.ds.DB(ctx).Model(&mysqlmodel.Agreement{}).
		Where("project_id = ? AND superseded = ?", projectID, false).
		Updates(map[string]interface{}{
			"superseded": true,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to supersede agreement: %w", err)
	}
	return nil
}

// ListByProject retrieves the agreement history of a project (oldest first)
func (r *AgreementRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Agreement, error) {
	var rows []*mysqlmodel.Agreement
	if err := r.ds.DB(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	out := make([]*model.Agreement, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAgreementDomain(row))
	}
	return out, nil
}

// PaymentRepository handles the append-only payment ledger
type PaymentRepository struct {
	ds *Datastore
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(ds *Datastore) *PaymentRepository {
	return &PaymentRepository{ds: ds}
}

// Create appends a payment; a replayed (project, external_ref) is rejected by the unique index
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	row := FromPaymentDomain(p)
	if err := r.ds.DB(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("payment ref %s: %w", p.ExternalRef, apperrors.ErrDuplicatePayment)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	p.CreatedAt = row.CreatedAt
	return nil
}

// GetByExternalRef retrieves a payment by its gateway reference
func (r *PaymentRepository) GetByExternalRef(ctx context.Context, projectID, externalRef string) (*model.Payment, error) {
	var row mysqlmodel.Payment
	err := r.ds.DB(ctx).
		Where("project_id = ? AND external_ref = ?", projectID, externalRef).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return ToPaymentDomain(&row), nil
}

// ListByProject retrieves payments of a project (oldest first)
func (r *PaymentRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Payment, error) {
	var rows []*mysqlmodel.Payment
	if err := r.ds.DB(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	out := make([]*model.Payment, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToPaymentDomain(row))
	}
	return out, nil
}

// CountByProject counts payments of a project
func (r *PaymentRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&mysqlmodel.Payment{}).Where("project_id = ?", projectID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// ProjectEventRepository handles the project audit trail
type ProjectEventRepository struct {
	ds *Datastore
}

// NewProjectEventRepository creates a new project event repository
func NewProjectEventRepository(ds *Datastore) *ProjectEventRepository {
	return &ProjectEventRepository{ds: ds}
}

// Record creates a new project event
func (r *ProjectEventRepository) Record(ctx context.Context, e *model.ProjectEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.EventTime.IsZero() {
		e.EventTime = time.Now().UTC()
	}
	if err := r.ds.DB(ctx).Create(FromProjectEventDomain(e)).Error; err != nil {
		return fmt.Errorf("failed to record project event: %w", err)
	}
	return nil
}

// ListByProject retrieves all events for a project (ordered by time)
func (r *ProjectEventRepository) ListByProject(ctx context.Context, projectID string) ([]*model.ProjectEvent, error) {
	var rows []*mysqlmodel.ProjectEvent
	err := r.ds.DB(ctx).
		Where("project_id = ?", projectID).
		Order("event_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get project events: %w", err)
	}
	out := make([]*model.ProjectEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToProjectEventDomain(row))
	}
	return out, nil
}
