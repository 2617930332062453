package model

import "time"

// ProjectEvent MySQL model for project_events table
type ProjectEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:idx_event_id_unique" json:"event_id"`
	ProjectID  string    `gorm:"column:project_id;type:varchar(64);not null;index:idx_project_id_event_time,priority:1" json:"project_id"`
	Event      string    `gorm:"column:event;type:varchar(50);not null;index:idx_event" json:"event"`
	FromStatus string    `gorm:"column:from_status;type:varchar(50)" json:"from_status"`
	ToStatus   string    `gorm:"column:to_status;type:varchar(50)" json:"to_status"`
	ActorID    string    `gorm:"column:actor_id;type:varchar(64)" json:"actor_id"`
	WorkerID   string    `gorm:"column:worker_id;type:varchar(64);index:idx_worker_id" json:"worker_id"`
	Reason     string    `gorm:"column:reason;type:text" json:"reason"`
	Metadata   JSONMap   `gorm:"column:metadata;type:json" json:"metadata"`
	EventTime  time.Time `gorm:"column:event_time;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_project_id_event_time,priority:2" json:"event_time"`
}

// TableName specifies the table name for ProjectEvent
func (ProjectEvent) TableName() string {
	return "project_events"
}
