package models

import (
	"time"

	"gorm.io/gorm"
)

// Tailor represents a service provider account
type Tailor struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ShopName          string         `gorm:"not null" json:"shop_name"`
	OwnerName         string         `gorm:"not null" json:"owner_name"`
	Phone             string         `json:"phone"`
	Email             string         `gorm:"uniqueIndex;not null" json:"email"`
	Area              string         `gorm:"index" json:"area"`
	IsVerified        bool           `gorm:"not null;default:false" json:"is_verified"`
	IsBlocked         bool           `gorm:"not null;default:false" json:"is_blocked"`
	VerifiedByAdminID *uint          `json:"verified_by_admin_id"`
	VerifiedAt        *time.Time     `json:"verified_at"`
	BlockedAt         *time.Time     `json:"blocked_at"`
	BlockedByAdminID  *uint          `json:"blocked_by_admin_id"`
	Rating            float64        `gorm:"not null;default:0" json:"rating"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Tailor model
func (Tailor) TableName() string {
	return "tailors"
}

// CanReceiveOrders reports whether the tailor may be assigned new work.
func (t *Tailor) CanReceiveOrders() bool {
	return t.IsVerified && !t.IsBlocked
}
