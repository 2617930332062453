package model

import (
	"time"

	"atelier/pkg/constants"
)

// Worker freelancer in the matching pool
type Worker struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Skills             []string            `json:"skills"` // first entry is the primary skill
	Available          bool                `json:"available"`
	Rating             float64             `json:"rating"`
	ActiveProjectCount int                 `json:"active_project_count"`
	MaxProjectLimit    int                 `json:"max_project_limit"`
	PriceTier          constants.PriceTier `json:"price_tier"`
	CompletedCount     int64               `json:"completed_count"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// HasSkill reports whether the worker lists skill
func (w *Worker) HasSkill(skill constants.Skill) bool {
	for _, s := range w.Skills {
		if s == string(skill) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the worker
func (w *Worker) Clone() *Worker {
	if w == nil {
		return nil
	}
	c := *w
	c.Skills = append([]string(nil), w.Skills...)
	return &c
}

// RotationRecord fairness ledger entry per (worker, skill)
type RotationRecord struct {
	WorkerID        string    `json:"worker_id"`
	Skill           string    `json:"skill"`
	LastAssignedAt  time.Time `json:"last_assigned_at"`
	AssignmentCount int64     `json:"assignment_count"`
}

// WorkerFilter list filter
type WorkerFilter struct {
	Skill         constants.Skill
	AvailableOnly bool
	Limit         int
	Offset        int
}

// RegisterWorkerRequest register worker request
type RegisterWorkerRequest struct {
	ID              string              `json:"id"`
	Name            string              `json:"name" binding:"required"`
	Skills          []string            `json:"skills" binding:"required"`
	Available       *bool               `json:"available"`
	Rating          float64             `json:"rating"`
	MaxProjectLimit int                 `json:"max_project_limit"`
	PriceTier       constants.PriceTier `json:"price_tier"`
}

// UpdateWorkerRequest partial profile update; capacity counters are not writable
type UpdateWorkerRequest struct {
	Name            *string              `json:"name,omitempty"`
	Skills          []string             `json:"skills,omitempty"`
	Available       *bool                `json:"available,omitempty"`
	Rating          *float64             `json:"rating,omitempty"`
	MaxProjectLimit *int                 `json:"max_project_limit,omitempty"`
	PriceTier       *constants.PriceTier `json:"price_tier,omitempty"`
}

// TouchesAdminFields reports whether the update sets rating, limit or tier
func (r *UpdateWorkerRequest) TouchesAdminFields() bool {
	return r.Rating != nil || r.MaxProjectLimit != nil || r.PriceTier != nil
}
