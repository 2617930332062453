package model

import (
	"time"

	"atelier/pkg/constants"
	"atelier/pkg/lifecycle"

	"github.com/shopspring/decimal"
)

// Project project model
type Project struct {
	ID                  string                     `json:"id"`
	Title               string                     `json:"title"`
	Description         string                     `json:"description,omitempty"`
	Skill               constants.Skill            `json:"skill"`
	Status              lifecycle.Status           `json:"status"`
	ClientID            string                     `json:"client_id"`
	WorkerID            string                     `json:"worker_id,omitempty"` // empty while unassigned
	BudgetHint          decimal.Decimal            `json:"budget_hint"`
	TotalPrice          decimal.Decimal            `json:"total_price"`
	TotalPaid           decimal.Decimal            `json:"total_paid"`
	DepositPaymentID    string                     `json:"deposit_payment_id,omitempty"`
	BalancePaymentID    string                     `json:"balance_payment_id,omitempty"`
	FinalDeliverableRef string                     `json:"final_deliverable_ref,omitempty"`
	AssignmentMethod    constants.AssignmentMethod `json:"assignment_method,omitempty"`
	AssignmentDeadline  *time.Time                 `json:"assignment_deadline,omitempty"`
	Reason              string                     `json:"reason,omitempty"` // last decline/cancel/no-candidate reason
	SampleFeedback      string                     `json:"sample_feedback,omitempty"`
	ActiveAgreementID   string                     `json:"active_agreement_id,omitempty"`
	MatchAttempt        int                        `json:"match_attempt"`
	PayoutSplitDone     bool                       `json:"payout_split_done"`
	Version             int64                      `json:"version"`
	AssignedAt          *time.Time                 `json:"assigned_at,omitempty"`
	CompletedAt         *time.Time                 `json:"completed_at,omitempty"`
	DeliveryApprovedAt  *time.Time                 `json:"delivery_approved_at,omitempty"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}

// Clone returns a deep copy of the project
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.AssignmentDeadline = cloneTime(p.AssignmentDeadline)
	c.AssignedAt = cloneTime(p.AssignedAt)
	c.CompletedAt = cloneTime(p.CompletedAt)
	c.DeliveryApprovedAt = cloneTime(p.DeliveryApprovedAt)
	return &c
}

// ClearAssignment detaches the current worker
func (p *Project) ClearAssignment() {
	p.WorkerID = ""
	p.AssignmentMethod = ""
	p.AssignmentDeadline = nil
	p.AssignedAt = nil
	p.ActiveAgreementID = ""
	p.TotalPrice = decimal.Zero
}

// ProjectFilter list filter
type ProjectFilter struct {
	Status   lifecycle.Status
	ClientID string
	WorkerID string
	Skill    constants.Skill
	Limit    int
	Offset   int
}

// ProjectEvent audit trail record for one transition
type ProjectEvent struct {
	ID         string                 `json:"id"`
	ProjectID  string                 `json:"project_id"`
	Event      lifecycle.Event        `json:"event"`
	FromStatus lifecycle.Status       `json:"from_status"`
	ToStatus   lifecycle.Status       `json:"to_status"`
	ActorID    string                 `json:"actor_id,omitempty"`
	WorkerID   string                 `json:"worker_id,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	EventTime  time.Time              `json:"event_time"`
}

// WorkerExclusion marks a worker ineligible for one match attempt of a project
type WorkerExclusion struct {
	ProjectID string    `json:"project_id"`
	WorkerID  string    `json:"worker_id"`
	Attempt   int       `json:"attempt"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProjectRequest create project request
type CreateProjectRequest struct {
	ClientID    string          `json:"client_id"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Skill       constants.Skill `json:"skill" binding:"required"`
	BudgetHint  decimal.Decimal `json:"budget_hint"`
}

// MatchRequest explicit (re)match request
type MatchRequest struct {
	Skill  constants.Skill `json:"skill"`
	Budget decimal.Decimal `json:"budget"`
}

// ProjectResponse create/match response
type ProjectResponse struct {
	ProjectID string           `json:"project_id"`
	Status    lifecycle.Status `json:"status"`
	WorkerID  string           `json:"worker_id,omitempty"`
}

// ReasonRequest carries a free-text reason
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// SamplesRequest worker sample upload
type SamplesRequest struct {
	DeliverableRef string `json:"deliverable_ref" binding:"required"`
}

// FeedbackRequest client sample feedback
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// ForceAssignRequest admin override
type ForceAssignRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
