package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment MySQL model for the append-only payments table.
// (project_id, external_ref) is unique so a replayed confirmation cannot insert twice.
type Payment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID   string          `gorm:"column:payment_id;type:varchar(64);not null;uniqueIndex:idx_payment_id_unique" json:"payment_id"`
	ProjectID   string          `gorm:"column:project_id;type:varchar(64);not null;uniqueIndex:idx_project_external_ref,priority:1" json:"project_id"`
	ExternalRef string          `gorm:"column:external_ref;type:varchar(255);not null;uniqueIndex:idx_project_external_ref,priority:2" json:"external_ref"`
	ClientID    string          `gorm:"column:client_id;type:varchar(64);not null" json:"client_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	Phase       string          `gorm:"column:phase;type:varchar(32);not null" json:"phase"`
	Status      string          `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}
