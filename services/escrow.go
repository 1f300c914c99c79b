package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/models"
)

// Recipient types on payout instructions
const (
	RecipientTailor   = "tailor"
	RecipientPlatform = "platform"
	RecipientGateway  = "gateway"
	RecipientCustomer = "customer"
)

// EscrowCoordinator locks checkout totals and settles them once work is done
type EscrowCoordinator struct {
	base
	gateway        PaymentGateway
	fees           *FeeCalculator
	sink           PayoutSink
	gatewayTimeout time.Duration
}

// NewEscrowCoordinator creates an escrow coordinator
func NewEscrowCoordinator(deps Dependencies, gateway PaymentGateway, fees *FeeCalculator, sink PayoutSink, gatewayTimeout time.Duration) *EscrowCoordinator {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &EscrowCoordinator{
		base:           newBase(deps, "escrow"),
		gateway:        gateway,
		fees:           fees,
		sink:           sink,
		gatewayTimeout: gatewayTimeout,
	}
}

// PreviewFees shows how the order's chargeable amount would be split
func (e *EscrowCoordinator) PreviewFees(ctx context.Context, actor models.Actor, orderID uint) (FeeBreakdown, error) {
	order, err := loadVisibleOrder(e.db.WithContext(ctx), actor, orderID)
	if err != nil {
		return FeeBreakdown{}, err
	}
	return e.fees.Compute(order.ChargeableAmount())
}

// Checkout charges the owning customer and captures the result into escrow
func (e *EscrowCoordinator) Checkout(ctx context.Context, actor models.Actor, orderID uint) (*models.EscrowHold, error) {
	if actor.Role != models.RoleCustomer {
		return nil, apperr.New(apperr.KindUnauthorized, "only customers can check out")
	}

	db := e.db.WithContext(ctx)
	var order models.Order
	if err := db.First(&order, orderID).Error; err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if order.CustomerID != actor.ID {
		return nil, apperr.New(apperr.KindUnauthorized, "order %d belongs to another customer", orderID)
	}
	var customer models.Customer
	if err := db.First(&customer, actor.ID).Error; err != nil {
		return nil, notFound(err, "customer", actor.ID)
	}
	if customer.IsBlocked {
		return nil, apperr.New(apperr.KindUnauthorized, "customer %d is blocked", actor.ID)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperr.New(apperr.KindTerminalState, "order %d is cancelled", orderID)
	}

	amount := order.ChargeableAmount()
	reservation, existing, err := e.reserve(ctx, orderID, amount)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	chargeCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	// The charge has to be reconciled even if the caller goes away.
	settleCtx := context.WithoutCancel(ctx)

	result, err := e.gateway.Charge(chargeCtx, orderID, amount)
	if err != nil {
		e.logger.Warn("gateway charge failed", zap.Uint("order_id", orderID), zap.Error(err))
		e.dropReservation(settleCtx, reservation)
		switch apperr.KindOf(err) {
		case apperr.KindGatewayTimeout:
			return nil, apperr.Wrap(apperr.KindGatewayTimeout, err, "payment gateway timed out, retry checkout")
		case apperr.KindInternal:
			return nil, apperr.Wrap(apperr.KindGateway, err, "payment gateway error")
		default:
			return nil, err
		}
	}

	res := e.db.WithContext(settleCtx).Model(&models.EscrowHold{}).
		Where("id = ? AND status = ?", reservation.ID, models.EscrowStatusPending).
		Updates(map[string]interface{}{
			"gateway_reference": result.Reference,
			"status":            models.EscrowStatusAuthorized,
		})
	if res.Error != nil || res.RowsAffected == 0 {
		e.logger.Error("charged without an escrow hold",
			zap.Uint("order_id", orderID),
			zap.String("reference", result.Reference),
			zap.Error(res.Error),
		)
		e.alert(settleCtx, "gateway charge has no escrow hold", map[string]interface{}{
			"order_id":  orderID,
			"reference": result.Reference,
			"amount":    amount,
		})
		if res.Error != nil {
			return nil, apperr.Wrap(apperr.KindInternal, res.Error, "failed to record captured payment")
		}
		return nil, apperr.New(apperr.KindConflict, "checkout reservation for order %d was lost", orderID)
	}

	reservation.GatewayReference = result.Reference
	reservation.Status = models.EscrowStatusAuthorized
	e.record(settleCtx, AuditEntry{
		Actor:       actor,
		Action:      ActionEscrowCaptured,
		TargetType:  "order",
		TargetID:    orderID,
		Description: fmt.Sprintf("Captured %d for order #%d", amount, orderID),
		Metadata:    map[string]interface{}{"gateway_reference": result.Reference, "amount": amount},
	})
	return reservation, nil
}

// reserve claims the order's single escrow row before the gateway is called.
// It returns the existing hold instead when checkout already completed.
func (e *EscrowCoordinator) reserve(ctx context.Context, orderID uint, amount int64) (*models.EscrowHold, *models.EscrowHold, error) {
	var reservation *models.EscrowHold
	var existing *models.EscrowHold
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hold models.EscrowHold
		err := tx.Where("order_id = ?", orderID).First(&hold).Error
		switch {
		case err == nil && hold.Status != models.EscrowStatusPending:
			existing = &hold
			return nil
		case err == nil && time.Since(hold.CreatedAt) < 2*e.gatewayTimeout:
			return apperr.New(apperr.KindConflict, "checkout for order %d is already in progress", orderID)
		case err == nil:
			e.logger.Warn("reclaiming stale checkout reservation",
				zap.Uint("order_id", orderID),
				zap.Time("reserved_at", hold.CreatedAt),
			)
			res := tx.Where("id = ? AND status = ?", hold.ID, models.EscrowStatusPending).Delete(&models.EscrowHold{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.New(apperr.KindConflict, "checkout for order %d changed concurrently", orderID)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		reservation = &models.EscrowHold{
			OrderID:          orderID,
			GatewayReference: "pending-" + uuid.NewString(),
			LockedTotal:      amount,
			Status:           models.EscrowStatusPending,
		}
		if err := tx.Create(reservation).Error; err != nil {
			if isDuplicate(err) {
				return apperr.Wrap(apperr.KindConflict, err, "checkout already in progress")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return reservation, existing, nil
}

func (e *EscrowCoordinator) dropReservation(ctx context.Context, reservation *models.EscrowHold) {
	err := e.db.WithContext(ctx).
		Where("id = ? AND status = ?", reservation.ID, models.EscrowStatusPending).
		Delete(&models.EscrowHold{}).Error
	if err != nil {
		e.logger.Error("failed to drop checkout reservation", zap.Uint("order_id", reservation.OrderID), zap.Error(err))
	}
}

// Capture records the locked checkout total for an order
func (e *EscrowCoordinator) Capture(ctx context.Context, actor models.Actor, orderID uint, amount int64, reference string) (*models.EscrowHold, error) {
	if reference == "" {
		return nil, apperr.New(apperr.KindValidation, "gateway reference is required")
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, "amount must be positive")
	}

	var hold models.EscrowHold
	created := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if !actor.IsAdmin() && !actor.Is(models.RoleCustomer, order.CustomerID) {
			return apperr.New(apperr.KindUnauthorized, "actor cannot capture payment for order %d", orderID)
		}
		if order.Status == models.OrderStatusCancelled {
			return apperr.New(apperr.KindTerminalState, "order %d is cancelled", orderID)
		}
		if amount != order.ChargeableAmount() {
			return apperr.New(apperr.KindAmountMismatch, "captured %d but order %d totals %d", amount, orderID, order.ChargeableAmount())
		}

		err := tx.Where("order_id = ?", orderID).First(&hold).Error
		if err == nil {
			if hold.GatewayReference == reference && hold.LockedTotal == amount {
				return nil
			}
			return apperr.New(apperr.KindConflict, "order %d already has a capture", orderID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hold = models.EscrowHold{
			OrderID:          orderID,
			GatewayReference: reference,
			LockedTotal:      amount,
			Status:           models.EscrowStatusAuthorized,
		}
		if err := tx.Create(&hold).Error; err != nil {
			if isDuplicate(err) {
				return apperr.Wrap(apperr.KindConflict, err, "capture already recorded")
			}
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		e.record(ctx, AuditEntry{
			Actor:       actor,
			Action:      ActionEscrowCaptured,
			TargetType:  "order",
			TargetID:    orderID,
			Description: fmt.Sprintf("Captured %d for order #%d", amount, orderID),
			Metadata:    map[string]interface{}{"gateway_reference": reference, "amount": amount},
		})
	}
	return &hold, nil
}

// ConfirmWebhook applies a signed gateway callback. A nil hold with a nil
// error means the event was ignored.
func (e *EscrowCoordinator) ConfirmWebhook(ctx context.Context, signature string, payload []byte) (*models.EscrowHold, error) {
	if !e.gateway.VerifyWebhook(signature, payload) {
		e.logger.Warn("rejected webhook with invalid signature")
		return nil, apperr.New(apperr.KindUnauthorized, "invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed webhook payload")
	}
	if event.Reference == "" {
		return nil, apperr.New(apperr.KindValidation, "webhook payload has no reference")
	}
	if event.Status != PaymentStatusPaid {
		e.logger.Info("ignoring webhook event",
			zap.String("reference", event.Reference),
			zap.String("status", event.Status),
		)
		return nil, nil
	}

	var hold models.EscrowHold
	var order models.Order
	changed := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("gateway_reference = ?", event.Reference).First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "no capture for reference %s", event.Reference)
			}
			return err
		}
		if err := tx.First(&order, hold.OrderID).Error; err != nil {
			return notFound(err, "order", hold.OrderID)
		}
		if hold.Status != models.EscrowStatusAuthorized {
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{"status": models.EscrowStatusHeld, "confirmed_at": now}
		hold.Status = models.EscrowStatusHeld
		hold.ConfirmedAt = &now
		if event.TotalAmount != hold.LockedTotal {
			reason := fmt.Sprintf("gateway reported %d, locked total is %d", event.TotalAmount, hold.LockedTotal)
			updates = map[string]interface{}{"status": models.EscrowStatusOnHold, "hold_reason": reason}
			hold.Status = models.EscrowStatusOnHold
			hold.HoldReason = &reason
			hold.ConfirmedAt = nil
		}

		res := tx.Model(&models.EscrowHold{}).
			Where("id = ? AND status = ?", hold.ID, models.EscrowStatusAuthorized).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "escrow for order %d changed concurrently", hold.OrderID)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if hold.Status == models.EscrowStatusOnHold {
		if changed {
			e.record(ctx, AuditEntry{
				Actor:       systemActor,
				Action:      ActionEscrowOnHold,
				TargetType:  "order",
				TargetID:    hold.OrderID,
				Description: fmt.Sprintf("Escrow for order #%d put on hold: %s", hold.OrderID, *hold.HoldReason),
				Metadata:    map[string]interface{}{"reported": event.TotalAmount, "locked": hold.LockedTotal},
			})
			e.alert(ctx, "webhook amount mismatch", map[string]interface{}{
				"order_id":  hold.OrderID,
				"reference": event.Reference,
				"reported":  event.TotalAmount,
				"locked":    hold.LockedTotal,
			})
		}
		return &hold, apperr.New(apperr.KindAmountMismatch, "escrow for order %d is on hold: %s", hold.OrderID, holdReason(&hold))
	}

	if changed {
		e.record(ctx, AuditEntry{
			Actor:       systemActor,
			Action:      ActionEscrowHeld,
			TargetType:  "order",
			TargetID:    hold.OrderID,
			Description: fmt.Sprintf("Gateway confirmed %d for order #%d", hold.LockedTotal, hold.OrderID),
		})
		e.notify(ctx, EventPaymentHeld, order.CustomerID, map[string]interface{}{
			"order_id": hold.OrderID,
			"amount":   hold.LockedTotal,
		})
	}
	return &hold, nil
}

func holdReason(hold *models.EscrowHold) string {
	if hold.HoldReason == nil {
		return "amount mismatch"
	}
	return *hold.HoldReason
}

// Release settles a held escrow for a finished order
func (e *EscrowCoordinator) Release(ctx context.Context, actor models.Actor, orderID uint) (*models.EscrowHold, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can release escrow")
	}

	var hold models.EscrowHold
	var order models.Order
	var breakdown FeeBreakdown
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if err := tx.Where("order_id = ?", orderID).First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotReleasable, "order %d has no captured payment", orderID)
			}
			return err
		}
		if hold.Status == models.EscrowStatusReleased {
			return apperr.New(apperr.KindAlreadyReleased, "escrow for order %d was already released", orderID)
		}
		if !order.Status.IsSettled() || hold.Status != models.EscrowStatusHeld || order.TailorID == nil {
			return apperr.New(apperr.KindNotReleasable,
				"order %d is %s with escrow %s", orderID, order.Status, hold.Status)
		}

		var err error
		breakdown, err = e.fees.Compute(hold.HeldAmount())
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.EscrowHold{}).
			Where("id = ? AND status = ?", hold.ID, models.EscrowStatusHeld).
			Updates(map[string]interface{}{
				"status":       models.EscrowStatusReleased,
				"released_at":  now,
				"platform_fee": breakdown.PlatformFee,
				"gateway_fee":  breakdown.GatewayFee,
				"tailor_net":   breakdown.TailorNet,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "escrow for order %d changed concurrently", orderID)
		}

		instructions := []models.PayoutInstruction{
			{EscrowHoldID: hold.ID, OrderID: orderID, Kind: models.PayoutKindTailor, RecipientType: RecipientTailor, RecipientID: order.TailorID, Amount: breakdown.TailorNet},
			{EscrowHoldID: hold.ID, OrderID: orderID, Kind: models.PayoutKindPlatform, RecipientType: RecipientPlatform, Amount: breakdown.PlatformFee},
			{EscrowHoldID: hold.ID, OrderID: orderID, Kind: models.PayoutKindGateway, RecipientType: RecipientGateway, Amount: breakdown.GatewayFee},
		}
		if err := tx.Create(&instructions).Error; err != nil {
			if isDuplicate(err) {
				return apperr.Wrap(apperr.KindAlreadyReleased, err, "payout instructions already exist")
			}
			return err
		}

		hold.Status = models.EscrowStatusReleased
		hold.ReleasedAt = &now
		hold.PlatformFee = breakdown.PlatformFee
		hold.GatewayFee = breakdown.GatewayFee
		hold.TailorNet = breakdown.TailorNet
		hold.Instructions = instructions
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, hold.Instructions)
	e.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      ActionEscrowReleased,
		TargetType:  "order",
		TargetID:    orderID,
		Description: fmt.Sprintf("Released escrow for order #%d: tailor %d, platform %d, gateway %d", orderID, breakdown.TailorNet, breakdown.PlatformFee, breakdown.GatewayFee),
		Metadata: map[string]interface{}{
			"order_total":  breakdown.OrderTotal,
			"platform_fee": breakdown.PlatformFee,
			"gateway_fee":  breakdown.GatewayFee,
			"tailor_net":   breakdown.TailorNet,
		},
	})
	e.notify(ctx, EventPayoutReleased, *order.TailorID, map[string]interface{}{
		"order_id": orderID,
		"amount":   breakdown.TailorNet,
	})
	return &hold, nil
}

// Refund returns part or all of the held funds to the customer
func (e *EscrowCoordinator) Refund(ctx context.Context, actor models.Actor, orderID uint, amount int64) (*models.EscrowHold, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can refund escrow")
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, "refund amount must be positive")
	}

	var hold models.EscrowHold
	var order models.Order
	var instruction models.PayoutInstruction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if err := tx.Where("order_id = ?", orderID).First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindInsufficientHeldFunds, "order %d has no captured payment", orderID)
			}
			return err
		}
		if !hold.Status.HoldsFunds() {
			return apperr.New(apperr.KindInsufficientHeldFunds, "escrow for order %d is %s", orderID, hold.Status)
		}
		if amount > hold.HeldAmount() {
			return apperr.New(apperr.KindInsufficientHeldFunds, "refund %d exceeds held %d", amount, hold.HeldAmount())
		}

		refunded := hold.RefundedAmount + amount
		status := hold.Status
		if refunded == hold.LockedTotal {
			status = models.EscrowStatusRefunded
		}
		res := tx.Model(&models.EscrowHold{}).
			Where("id = ? AND status = ? AND refunded_amount = ?", hold.ID, hold.Status, hold.RefundedAmount).
			Updates(map[string]interface{}{"refunded_amount": refunded, "status": status})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "escrow for order %d changed concurrently", orderID)
		}

		customerID := order.CustomerID
		instruction = models.PayoutInstruction{
			EscrowHoldID:  hold.ID,
			OrderID:       orderID,
			Kind:          models.PayoutKindRefund,
			RecipientType: RecipientCustomer,
			RecipientID:   &customerID,
			Amount:        amount,
		}
		if err := tx.Create(&instruction).Error; err != nil {
			return err
		}

		hold.RefundedAmount = refunded
		hold.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, []models.PayoutInstruction{instruction})
	e.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      ActionEscrowRefunded,
		TargetType:  "order",
		TargetID:    orderID,
		Description: fmt.Sprintf("Refunded %d to customer for order #%d", amount, orderID),
		Metadata:    map[string]interface{}{"amount": amount, "refunded_total": hold.RefundedAmount},
	})
	e.notify(ctx, EventRefundIssued, order.CustomerID, map[string]interface{}{
		"order_id": orderID,
		"amount":   amount,
	})
	return &hold, nil
}

// Get returns the escrow hold of an order with its payout instructions
func (e *EscrowCoordinator) Get(ctx context.Context, actor models.Actor, orderID uint) (*models.EscrowHold, error) {
	db := e.db.WithContext(ctx)
	if _, err := loadVisibleOrder(db, actor, orderID); err != nil {
		return nil, err
	}

	var hold models.EscrowHold
	err := db.Preload("Instructions", func(q *gorm.DB) *gorm.DB {
		return q.Order("created_at ASC")
	}).Where("order_id = ?", orderID).First(&hold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "order %d has no escrow", orderID)
		}
		return nil, err
	}
	return &hold, nil
}

// publish archives instructions. The database rows stay authoritative, so a
// failure only raises an alert.
func (e *EscrowCoordinator) publish(ctx context.Context, instructions []models.PayoutInstruction) {
	if e.sink == nil || len(instructions) == 0 {
		return
	}
	if err := e.sink.Publish(context.WithoutCancel(ctx), instructions); err != nil {
		e.logger.Error("failed to publish payout instructions",
			zap.Uint("order_id", instructions[0].OrderID),
			zap.Error(err),
		)
		e.alert(ctx, "payout publish failed", map[string]interface{}{
			"order_id": instructions[0].OrderID,
			"error":    err.Error(),
		})
	}
}
