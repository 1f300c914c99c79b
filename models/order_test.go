package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTableName(t *testing.T) {
	assert.Equal(t, "orders", Order{}.TableName(), "Table name should be 'orders'")
}

func TestOrderStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending to accepted", OrderStatusPending, OrderStatusAccepted, true},
		{"accepted to in_progress", OrderStatusAccepted, OrderStatusInProgress, true},
		{"in_progress to ready", OrderStatusInProgress, OrderStatusReady, true},
		{"ready to delivered", OrderStatusReady, OrderStatusDelivered, true},
		{"ready to completed", OrderStatusReady, OrderStatusCompleted, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"confirmed to cancelled", OrderStatusConfirmed, OrderStatusCancelled, true},
		{"pending skips to ready", OrderStatusPending, OrderStatusReady, false},
		{"in_progress to cancelled", OrderStatusInProgress, OrderStatusCancelled, false},
		{"ready back to in_progress", OrderStatusReady, OrderStatusInProgress, false},
		{"completed to delivered", OrderStatusCompleted, OrderStatusDelivered, false},
		{"cancelled to pending", OrderStatusCancelled, OrderStatusPending, false},
		{"confirmed to accepted", OrderStatusConfirmed, OrderStatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

// Walk every pair and check that a legal advance never moves more than one
// stage forward.
func TestOrderStatusAdvanceIsAdjacent(t *testing.T) {
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			if !from.CanAdvanceTo(to) || to == OrderStatusCancelled {
				continue
			}
			assert.Equal(t, stage[from]+1, stage[to], "%s -> %s skips a stage", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled} {
		assert.True(t, s.IsTerminal(), string(s))
		for _, next := range OrderStatuses {
			assert.False(t, s.CanAdvanceTo(next), "%s -> %s", s, next)
			assert.False(t, s.CanJumpTo(next), "%s => %s", s, next)
		}
	}
	assert.False(t, OrderStatusReady.IsTerminal())
}

func TestOrderStatusCanJumpTo(t *testing.T) {
	assert.True(t, OrderStatusPending.CanJumpTo(OrderStatusReady))
	assert.True(t, OrderStatusConfirmed.CanJumpTo(OrderStatusDelivered))
	assert.False(t, OrderStatusReady.CanJumpTo(OrderStatusPending))
	assert.False(t, OrderStatusConfirmed.CanJumpTo(OrderStatusAccepted))
	assert.False(t, OrderStatusInProgress.CanJumpTo(OrderStatusCancelled))
}

func TestOrderChargeableAmount(t *testing.T) {
	order := Order{EstimatedPrice: 50000}
	assert.Equal(t, int64(50000), order.ChargeableAmount())

	final := int64(52000)
	order.FinalPrice = &final
	assert.Equal(t, int64(52000), order.ChargeableAmount())
}

func TestOrderIsAssignedTo(t *testing.T) {
	order := Order{}
	assert.False(t, order.IsAssignedTo(1))

	id := uint(4)
	order.TailorID = &id
	assert.True(t, order.IsAssignedTo(4))
	assert.False(t, order.IsAssignedTo(5))
}

func TestOrderStatusBadge(t *testing.T) {
	assert.Equal(t, Badge{Label: "In Progress", Tone: "primary"}, OrderStatusInProgress.Badge())
	assert.Equal(t, "mystery", OrderStatus("mystery").Badge().Label)
}
