package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EscrowStatus tracks customer funds held against one order.
type EscrowStatus string

const (
	EscrowStatusPending    EscrowStatus = "pending"    // reserved by checkout, gateway charge in flight
	EscrowStatusAuthorized EscrowStatus = "authorized" // captured, gateway confirmation pending
	EscrowStatusHeld       EscrowStatus = "held"       // confirmed by the gateway webhook
	EscrowStatusOnHold     EscrowStatus = "on_hold"    // webhook disagreed with the locked total
	EscrowStatusReleased   EscrowStatus = "released"
	EscrowStatusRefunded   EscrowStatus = "refunded"
)

// HoldsFunds reports whether money is still in custody.
func (s EscrowStatus) HoldsFunds() bool {
	return s == EscrowStatusAuthorized || s == EscrowStatusHeld || s == EscrowStatusOnHold
}

// EscrowHold is the locked checkout total for an order
type EscrowHold struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	OrderID          uint                `gorm:"uniqueIndex;not null" json:"order_id"`
	GatewayReference string              `gorm:"uniqueIndex;not null" json:"gateway_reference"`
	LockedTotal      int64               `gorm:"not null" json:"locked_total"`
	RefundedAmount   int64               `gorm:"not null;default:0" json:"refunded_amount"`
	Status           EscrowStatus        `gorm:"type:varchar(20);not null;default:'authorized';index" json:"status"`
	HoldReason       *string             `json:"hold_reason,omitempty"`
	ConfirmedAt      *time.Time          `json:"confirmed_at"`
	ReleasedAt       *time.Time          `json:"released_at"`
	PlatformFee      int64               `json:"platform_fee"`
	GatewayFee       int64               `json:"gateway_fee"`
	TailorNet        int64               `json:"tailor_net"`
	Instructions     []PayoutInstruction `gorm:"foreignKey:EscrowHoldID" json:"instructions,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the EscrowHold model
func (EscrowHold) TableName() string {
	return "escrow_holds"
}

// HeldAmount is what remains in custody after refunds.
func (h *EscrowHold) HeldAmount() int64 {
	return h.LockedTotal - h.RefundedAmount
}

// PayoutKind names who a payout instruction pays.
type PayoutKind string

const (
	PayoutKindTailor   PayoutKind = "tailor_payout"
	PayoutKindPlatform PayoutKind = "platform_fee"
	PayoutKindGateway  PayoutKind = "gateway_fee"
	PayoutKindRefund   PayoutKind = "customer_refund"
)

// PayoutInstruction is an order to move settled money to its recipient.
// Settlement kinds are unique per hold, refunds are not.
type PayoutInstruction struct {
	ID            uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	EscrowHoldID  uint       `gorm:"not null;index" json:"escrow_hold_id"`
	OrderID       uint       `gorm:"not null;index" json:"order_id"`
	Kind          PayoutKind `gorm:"type:varchar(20);not null" json:"kind"`
	SettlementKey *string    `gorm:"uniqueIndex" json:"-"`
	RecipientType string     `gorm:"not null" json:"recipient_type"`
	RecipientID   *uint      `json:"recipient_id"`
	Amount        int64      `gorm:"not null" json:"amount"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName specifies the table name for the PayoutInstruction model
func (PayoutInstruction) TableName() string {
	return "payout_instructions"
}

// BeforeCreate assigns the id and, for settlement kinds, the uniqueness key.
func (p *PayoutInstruction) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Kind != PayoutKindRefund && p.SettlementKey == nil {
		key := fmt.Sprintf("%d:%s", p.EscrowHoldID, p.Kind)
		p.SettlementKey = &key
	}
	return nil
}
