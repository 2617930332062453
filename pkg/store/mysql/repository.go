package mysql

import "atelier/pkg/interfaces"

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	Project   *ProjectRepository
	Worker    *WorkerRepository
	Rotation  *RotationRepository
	Agreement *AgreementRepository
	Payment   *PaymentRepository
	Event     *ProjectEventRepository
	Exclusion *ExclusionRepository
}

// NewRepository creates a new MySQL repository with all sub-repositories
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFromDatastore(ds), nil
}

// NewRepositoryFromDatastore wires sub-repositories onto ds
func NewRepositoryFromDatastore(ds *Datastore) *Repository {
	return &Repository{
		ds:        ds,
		Project:   NewProjectRepository(ds),
		Worker:    NewWorkerRepository(ds),
		Rotation:  NewRotationRepository(ds),
		Agreement: NewAgreementRepository(ds),
		Payment:   NewPaymentRepository(ds),
		Event:     NewProjectEventRepository(ds),
		Exclusion: NewExclusionRepository(ds),
	}
}

// Repositories exposes the repository set behind the service-layer interfaces
func (r *Repository) Repositories() *interfaces.Repositories {
	return &interfaces.Repositories{
		Tx:         r.ds,
		Projects:   r.Project,
		Workers:    r.Worker,
		Rotation:   r.Rotation,
		Agreements: r.Agreement,
		Payments:   r.Payment,
		Events:     r.Event,
		Exclusions: r.Exclusion,
	}
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
