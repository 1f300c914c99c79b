package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of a tailoring order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusAccepted,
	OrderStatusInProgress,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// successors holds the legal forward moves out of each status. Cancellation
// is handled separately.
var successors = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusAccepted},
	OrderStatusConfirmed:  {OrderStatusInProgress},
	OrderStatusAccepted:   {OrderStatusInProgress},
	OrderStatusInProgress: {OrderStatusReady},
	OrderStatusReady:      {OrderStatusCompleted, OrderStatusDelivered},
}

// stage is the position of a status along the lifecycle; synonyms share one.
var stage = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusAccepted:   1,
	OrderStatusInProgress: 2,
	OrderStatusReady:      3,
	OrderStatusCompleted:  4,
	OrderStatusDelivered:  4,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsSettled reports whether the order finished successfully.
func (s OrderStatus) IsSettled() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered
}

// IsCancellable reports whether work has not started yet.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed || s == OrderStatusAccepted
}

// CanAdvanceTo reports whether next is an immediate successor of s, or a
// cancellation from an early state.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return s.IsCancellable()
	}
	for _, candidate := range successors[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanJumpTo reports whether next lies strictly later in the lifecycle than s.
// Admin overrides use it to skip steps without ever moving backwards.
func (s OrderStatus) CanJumpTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return s.IsCancellable()
	}
	from, ok := stage[s]
	if !ok {
		return false
	}
	to, ok := stage[next]
	return ok && to > from
}

// Order represents one tailoring job
type Order struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	CustomerID            uint           `gorm:"not null;index" json:"customer_id"`
	Customer              *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TailorID              *uint          `gorm:"index" json:"tailor_id"` // nullable until assigned
	Tailor                *Tailor        `gorm:"foreignKey:TailorID" json:"tailor,omitempty"`
	ServiceType           string         `gorm:"not null" json:"service_type"`
	GarmentType           string         `gorm:"not null" json:"garment_type"`
	Quantity              int            `gorm:"not null;check:quantity > 0" json:"quantity"`
	EstimatedPrice        int64          `gorm:"not null" json:"estimated_price"` // minor currency units
	FinalPrice            *int64         `json:"final_price"`                     // set on completion only
	Status                OrderStatus    `gorm:"column:order_status;not null;default:'pending';index" json:"order_status"`
	EstimatedDeliveryDate *time.Time     `json:"estimated_delivery_date"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// ChargeableAmount is the total a checkout must lock: the final price once
// known, otherwise the estimate.
func (o *Order) ChargeableAmount() int64 {
	if o.FinalPrice != nil {
		return *o.FinalPrice
	}
	return o.EstimatedPrice
}

// IsAssignedTo reports whether the order is assigned to tailorID.
func (o *Order) IsAssignedTo(tailorID uint) bool {
	return o.TailorID != nil && *o.TailorID == tailorID
}
