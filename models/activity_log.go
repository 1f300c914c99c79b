package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is an append-only audit entry written for every state change
type ActivityLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ActorID     uint           `gorm:"not null;index" json:"actor_id"`
	ActorRole   Role           `gorm:"type:varchar(20);not null" json:"actor_role"`
	Action      string         `gorm:"not null;index" json:"action"`
	TargetType  string         `gorm:"not null" json:"target_type"`
	TargetID    uint           `gorm:"not null" json:"target_id"`
	Description string         `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_logs"
}
