package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agreement MySQL model for agreements table
type Agreement struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AgreementID   string          `gorm:"column:agreement_id;type:varchar(64);not null;uniqueIndex:idx_agreement_id_unique" json:"agreement_id"`
	ProjectID     string          `gorm:"column:project_id;type:varchar(64);not null;index:idx_project_superseded,priority:1" json:"project_id"`
	WorkerID      string          `gorm:"column:worker_id;type:varchar(64);not null" json:"worker_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	DepositAmount decimal.Decimal `gorm:"column:deposit_amount;type:decimal(14,2);not null" json:"deposit_amount"`
	BalanceAmount decimal.Decimal `gorm:"column:balance_amount;type:decimal(14,2);not null" json:"balance_amount"`
	Deliverables  string          `gorm:"column:deliverables;type:text" json:"deliverables"`
	Timeline      string          `gorm:"column:timeline;type:varchar(255)" json:"timeline"`
	Notes         string          `gorm:"column:notes;type:text" json:"notes"`
	Status        string          `gorm:"column:status;type:varchar(32);not null" json:"status"`
	RevisionNote  string          `gorm:"column:revision_note;type:text" json:"revision_note"`
	ClientAgreed  bool            `gorm:"column:client_agreed;not null;default:false" json:"client_agreed"`
	WorkerAgreed  bool            `gorm:"column:worker_agreed;not null;default:true" json:"worker_agreed"`
	Superseded    bool            `gorm:"column:superseded;not null;default:false;index:idx_project_superseded,priority:2" json:"superseded"`
	AcceptedAt    *time.Time      `gorm:"column:accepted_at;type:datetime(3)" json:"accepted_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Agreement
func (Agreement) TableName() string {
	return "agreements"
}
