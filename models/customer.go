package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer represents a customer account
type Customer struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	FullName         string         `gorm:"not null" json:"full_name"`
	Email            string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone            string         `json:"phone"`
	Address          string         `gorm:"type:text" json:"address"`
	IsBlocked        bool           `gorm:"not null;default:false" json:"is_blocked"`
	BlockedAt        *time.Time     `json:"blocked_at"`
	BlockedByAdminID *uint          `json:"blocked_by_admin_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}
