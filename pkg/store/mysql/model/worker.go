package model

import "time"

// Worker represents a worker record in database
type Worker struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	WorkerID           string          `gorm:"column:worker_id;type:varchar(64);not null;uniqueIndex"`
	Name               string          `gorm:"column:name;type:varchar(255);not null"`
	Skills             JSONStringArray `gorm:"column:skills;type:json;not null"`
	Available          bool            `gorm:"column:available;not null;index:idx_available"`
	Rating             float64         `gorm:"column:rating;not null;default:0"`
	ActiveProjectCount int             `gorm:"column:active_project_count;not null;default:0"`
	MaxProjectLimit    int             `gorm:"column:max_project_limit;not null;default:1"`
	PriceTier          string          `gorm:"column:price_tier;type:varchar(32);not null;default:standard"`
	CompletedCount     int64           `gorm:"column:completed_count;not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;not null"`
}

func (Worker) TableName() string {
	return "workers"
}

// RotationRecord fairness ledger row, one per (worker, skill)
type RotationRecord struct {
	WorkerID        string    `gorm:"column:worker_id;type:varchar(64);primaryKey"`
	Skill           string    `gorm:"column:skill;type:varchar(32);primaryKey;index:idx_skill"`
	LastAssignedAt  time.Time `gorm:"column:last_assigned_at;type:datetime(3);not null"`
	AssignmentCount int64     `gorm:"column:assignment_count;not null;default:0"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:datetime(3);not null"`
}

func (RotationRecord) TableName() string {
	return "worker_rotation"
}

// WorkerExclusion worker barred from one match attempt of a project
type WorkerExclusion struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ProjectID string    `gorm:"column:project_id;type:varchar(64);not null;uniqueIndex:idx_project_attempt_worker,priority:1"`
	Attempt   int       `gorm:"column:attempt;type:int;not null;uniqueIndex:idx_project_attempt_worker,priority:2"`
	WorkerID  string    `gorm:"column:worker_id;type:varchar(64);not null;uniqueIndex:idx_project_attempt_worker,priority:3"`
	Reason    string    `gorm:"column:reason;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime(3);not null"`
}

func (WorkerExclusion) TableName() string {
	return "worker_exclusions"
}
