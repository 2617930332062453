// Package memory is an in-process implementation of the repository interfaces.
//
// All state sits behind one mutex. ExecTx holds the mutex for the whole unit
// of work, so transactions are serialized, and restores a snapshot when fn
// fails. Repository calls made outside a transaction take the mutex per call.
package memory

import (
	"context"
	"sync"

	"atelier/internal/model"
	"atelier/pkg/interfaces"
)

type txKey struct{}

type state struct {
	projects   map[string]*model.Project
	workers    map[string]*model.Worker
	rotation   map[string]*model.RotationRecord // worker|skill
	agreements map[string]*model.Agreement
	agreeOrder []string
	payments   []*model.Payment
	events     []*model.ProjectEvent
	exclusions []*model.WorkerExclusion
}

func newState() *state {
	return &state{
		projects:   make(map[string]*model.Project),
		workers:    make(map[string]*model.Worker),
		rotation:   make(map[string]*model.RotationRecord),
		agreements: make(map[string]*model.Agreement),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.projects {
		c.projects[k] = v.Clone()
	}
	for k, v := range s.workers {
		c.workers[k] = v.Clone()
	}
	for k, v := range s.rotation {
		r := *v
		c.rotation[k] = &r
	}
	for k, v := range s.agreements {
		c.agreements[k] = v.Clone()
	}
	c.agreeOrder = append([]string(nil), s.agreeOrder...)
	// payments, events and exclusions are append-only; copying the slice headers is enough
	c.payments = append([]*model.Payment(nil), s.payments...)
	c.events = append([]*model.ProjectEvent(nil), s.events...)
	c.exclusions = append([]*model.WorkerExclusion(nil), s.exclusions...)
	return c
}

// Store in-memory backend
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

// ExecTx runs fn with the store locked and rolls back on error.
// A nested call joins the outer transaction.
func (s *Store) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Repositories exposes the store behind the service-layer interfaces
func (s *Store) Repositories() *interfaces.Repositories {
	return &interfaces.Repositories{
		Tx:         s,
		Projects:   &projectRepo{s},
		Workers:    &workerRepo{s},
		Rotation:   &rotationRepo{s},
		Agreements: &agreementRepo{s},
		Payments:   &paymentRepo{s},
		Events:     &eventRepo{s},
		Exclusions: &exclusionRepo{s},
	}
}

// Close is a no-op kept for symmetry with the MySQL store
func (s *Store) Close() error {
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// with runs fn against the live state, locking unless ctx is inside ExecTx
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}
