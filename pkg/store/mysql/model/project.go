package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project MySQL model for projects table
type Project struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID           string          `gorm:"column:project_id;type:varchar(64);not null;uniqueIndex:idx_project_id_unique" json:"project_id"`
	Title               string          `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description         string          `gorm:"column:description;type:text" json:"description"`
	Skill               string          `gorm:"column:skill;type:varchar(32);not null;index:idx_skill_status,priority:1" json:"skill"`
	Status              string          `gorm:"column:status;type:varchar(50);not null;index:idx_status_deadline,priority:1;index:idx_skill_status,priority:2" json:"status"`
	ClientID            string          `gorm:"column:client_id;type:varchar(64);not null;index:idx_client_id" json:"client_id"`
	WorkerID            string          `gorm:"column:worker_id;type:varchar(64);index:idx_worker_id" json:"worker_id"`
	BudgetHint          decimal.Decimal `gorm:"column:budget_hint;type:decimal(14,2);not null;default:0" json:"budget_hint"`
	TotalPrice          decimal.Decimal `gorm:"column:total_price;type:decimal(14,2);not null;default:0" json:"total_price"`
	TotalPaid           decimal.Decimal `gorm:"column:total_paid;type:decimal(14,2);not null;default:0" json:"total_paid"`
	DepositPaymentID    string          `gorm:"column:deposit_payment_id;type:varchar(64)" json:"deposit_payment_id"`
	BalancePaymentID    string          `gorm:"column:balance_payment_id;type:varchar(64)" json:"balance_payment_id"`
	FinalDeliverableRef string          `gorm:"column:final_deliverable_ref;type:varchar(1000)" json:"final_deliverable_ref"`
	AssignmentMethod    string          `gorm:"column:assignment_method;type:varchar(32)" json:"assignment_method"`
	AssignmentDeadline  *time.Time      `gorm:"column:assignment_deadline;type:datetime(3);index:idx_status_deadline,priority:2" json:"assignment_deadline"`
	Reason              string          `gorm:"column:reason;type:text" json:"reason"`
	SampleFeedback      string          `gorm:"column:sample_feedback;type:text" json:"sample_feedback"`
	ActiveAgreementID   string          `gorm:"column:active_agreement_id;type:varchar(64)" json:"active_agreement_id"`
	MatchAttempt        int             `gorm:"column:match_attempt;type:int;not null;default:0" json:"match_attempt"`
	PayoutSplitDone     bool            `gorm:"column:payout_split_done;not null;default:false" json:"payout_split_done"`
	Version             int64           `gorm:"column:version;not null;default:0" json:"version"`
	AssignedAt          *time.Time      `gorm:"column:assigned_at;type:datetime(3)" json:"assigned_at"`
	CompletedAt         *time.Time      `gorm:"column:completed_at;type:datetime(3)" json:"completed_at"`
	DeliveryApprovedAt  *time.Time      `gorm:"column:delivery_approved_at;type:datetime(3)" json:"delivery_approved_at"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_created_at" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}
