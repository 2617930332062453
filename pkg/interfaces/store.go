package interfaces

import (
	"context"
	"time"

	"atelier/internal/model"
)

// Transactor runs fn inside one atomic unit of work.
// Repositories called with the ctx passed to fn join that unit.
type Transactor interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectRepository project persistence.
// Getters return (nil, nil) when the record does not exist.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, projectID string) (*model.Project, error)

	// GetForUpdate loads the project and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, projectID string) (*model.Project, error)

	// Save writes every mutable field when p.Version still matches the stored version,
	// then bumps p.Version. A lost race returns apperrors.ErrConcurrentUpdate.
	Save(ctx context.Context, p *model.Project) error

	List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int64, error)

	// ListExpiredAssignments returns ids of assigned projects whose deadline is before now
	ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// WorkerRepository worker pool persistence
type WorkerRepository interface {
	Create(ctx context.Context, w *model.Worker) error
	Get(ctx context.Context, workerID string) (*model.Worker, error)

	// UpdateProfile writes profile fields only; capacity counters are untouched
	UpdateProfile(ctx context.Context, w *model.Worker) error

	List(ctx context.Context, filter model.WorkerFilter) ([]*model.Worker, int64, error)

	// ListCandidates returns available workers holding skill with a free slot
	ListCandidates(ctx context.Context, skill string) ([]*model.Worker, error)

	// ClaimSlot atomically increments active_project_count while below the limit.
	// Returns apperrors.ErrCapacityExceeded when no slot is free.
	ClaimSlot(ctx context.Context, workerID string) error

	// ReleaseSlot decrements active_project_count, never below zero
	ReleaseSlot(ctx context.Context, workerID string) error

	IncrementCompleted(ctx context.Context, workerID string) error
}

// RotationRepository fairness ledger
type RotationRepository interface {
	ListBySkill(ctx context.Context, skill string, workerIDs []string) (map[string]*model.RotationRecord, error)

	// Touch sets last_assigned_at and increments assignment_count, creating the record if needed
	Touch(ctx context.Context, workerID, skill string, at time.Time) error
}

// AgreementRepository agreement persistence
type AgreementRepository interface {
	Create(ctx context.Context, a *model.Agreement) error
	Get(ctx context.Context, agreementID string) (*model.Agreement, error)
	Update(ctx context.Context, a *model.Agreement) error

	// GetActive returns the non-superseded agreement of a project
	GetActive(ctx context.Context, projectID string) (*model.Agreement, error)

	// SupersedeActive marks the project's active agreement as superseded
	SupersedeActive(ctx context.Context, projectID string) error

	ListByProject(ctx context.Context, projectID string) ([]*model.Agreement, error)
}

// PaymentRepository append-only payment ledger
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByExternalRef(ctx context.Context, projectID, externalRef string) (*model.Payment, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Payment, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
}

// ProjectEventRepository audit trail
type ProjectEventRepository interface {
	Record(ctx context.Context, e *model.ProjectEvent) error
	ListByProject(ctx context.Context, projectID string) ([]*model.ProjectEvent, error)
}

// ExclusionRepository per-attempt worker exclusions
type ExclusionRepository interface {
	Add(ctx context.Context, e *model.WorkerExclusion) error
	ListForAttempt(ctx context.Context, projectID string, attempt int) ([]string, error)
}

// Repositories bundles one backend's repositories
type Repositories struct {
	Tx         Transactor
	Projects   ProjectRepository
	Workers    WorkerRepository
	Rotation   RotationRepository
	Agreements AgreementRepository
	Payments   PaymentRepository
	Events     ProjectEventRepository
	Exclusions ExclusionRepository
}
