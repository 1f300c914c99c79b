package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/models"
)

// AdvanceOptions tune a status advance
type AdvanceOptions struct {
	// ExpectedStatus, when set, must equal the stored status or the call fails
	// with CONFLICT.
	ExpectedStatus *models.OrderStatus
	// FinalPrice is only accepted when moving to completed or delivered.
	// It defaults to the estimated price.
	FinalPrice *int64
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status string // an order status or "all"
	Search string
}

// OrderLedger owns order records and their status lifecycle
type OrderLedger struct {
	base
}

// NewOrderLedger creates an order ledger
func NewOrderLedger(deps Dependencies) *OrderLedger {
	return &OrderLedger{base: newBase(deps, "orders")}
}

// Advance moves an order to the next lifecycle status
func (l *OrderLedger) Advance(ctx context.Context, actor models.Actor, orderID uint, next models.OrderStatus, opts AdvanceOptions) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown order status %q", next)
	}
	if opts.FinalPrice != nil {
		if !next.IsSettled() {
			return nil, apperr.New(apperr.KindValidation, "final price can only be set when completing an order")
		}
		if *opts.FinalPrice < 0 {
			return nil, apperr.New(apperr.KindValidation, "final price cannot be negative")
		}
	}

	var order models.Order
	var from models.OrderStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if err := authorizeOrderActor(tx, actor, &order, false); err != nil {
			return err
		}
		if err := checkExpected(order.Status, opts.ExpectedStatus); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperr.New(apperr.KindTerminalState, "order %d is already %s", orderID, order.Status)
		}
		if !order.Status.CanAdvanceTo(next) {
			return apperr.New(apperr.KindInvalidTransition, "order %d cannot move from %s to %s", orderID, order.Status, next)
		}

		from = order.Status
		updates := map[string]interface{}{"order_status": next}
		if next.IsSettled() {
			price := order.EstimatedPrice
			if opts.FinalPrice != nil {
				price = *opts.FinalPrice
			}
			updates["final_price"] = price
			order.FinalPrice = &price
		}
		if err := compareAndSetStatus(tx, orderID, from, updates); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := ActionOrderAdvanced
	if next == models.OrderStatusCancelled {
		action = ActionOrderCancelled
	}
	l.afterTransition(ctx, actor, &order, from, action, "")
	return &order, nil
}

// Cancel cancels an order that has not started production
func (l *OrderLedger) Cancel(ctx context.Context, actor models.Actor, orderID uint, reason string) (*models.Order, error) {
	var order models.Order
	var from models.OrderStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if err := authorizeOrderActor(tx, actor, &order, true); err != nil {
			return err
		}
		if !order.Status.IsCancellable() {
			return apperr.New(apperr.KindTerminalState, "order %d can no longer be cancelled (%s)", orderID, order.Status)
		}

		from = order.Status
		if err := compareAndSetStatus(tx, orderID, from, map[string]interface{}{"order_status": models.OrderStatusCancelled}); err != nil {
			return err
		}
		order.Status = models.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.afterTransition(ctx, actor, &order, from, ActionOrderCancelled, reason)
	return &order, nil
}

// Override lets a super admin jump an order forward past intermediate steps
func (l *OrderLedger) Override(ctx context.Context, actor models.Actor, orderID uint, next models.OrderStatus, expected *models.OrderStatus) (*models.Order, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, apperr.New(apperr.KindUnauthorized, "only a super admin can override order status")
	}
	if !next.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown order status %q", next)
	}

	var order models.Order
	var from models.OrderStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if err := checkExpected(order.Status, expected); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperr.New(apperr.KindTerminalState, "order %d is already %s", orderID, order.Status)
		}
		if !order.Status.CanJumpTo(next) {
			return apperr.New(apperr.KindInvalidTransition, "order %d cannot jump from %s to %s", orderID, order.Status, next)
		}

		from = order.Status
		updates := map[string]interface{}{"order_status": next}
		if next.IsSettled() && order.FinalPrice == nil {
			price := order.EstimatedPrice
			updates["final_price"] = price
			order.FinalPrice = &price
		}
		if err := compareAndSetStatus(tx, orderID, from, updates); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.afterTransition(ctx, actor, &order, from, ActionOrderOverridden, "")
	return &order, nil
}

// AssignTailor gives an early-stage order to a verified, unblocked tailor
func (l *OrderLedger) AssignTailor(ctx context.Context, actor models.Actor, orderID, tailorID uint) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can assign tailors")
	}

	var order models.Order
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if order.Status.IsTerminal() {
			return apperr.New(apperr.KindTerminalState, "order %d is already %s", orderID, order.Status)
		}
		if !order.Status.IsCancellable() {
			return apperr.New(apperr.KindInvalidTransition, "order %d is already in production", orderID)
		}

		var tailor models.Tailor
		if err := tx.First(&tailor, tailorID).Error; err != nil {
			return notFound(err, "tailor", tailorID)
		}
		if !tailor.CanReceiveOrders() {
			return apperr.New(apperr.KindTailorIneligible, "tailor %d must be verified and not blocked", tailorID)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND order_status = ?", orderID, order.Status).
			Update("tailor_id", tailorID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "order %d changed concurrently", orderID)
		}
		order.TailorID = &tailorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      ActionOrderAssigned,
		TargetType:  "order",
		TargetID:    orderID,
		Description: fmt.Sprintf("Assigned order #%d to tailor #%d", orderID, tailorID),
		Metadata:    map[string]interface{}{"tailor_id": tailorID},
	})
	l.notify(ctx, EventOrderAssigned, tailorID, map[string]interface{}{"order_id": orderID})
	return &order, nil
}

// Get returns an order visible to actor
func (l *OrderLedger) Get(ctx context.Context, actor models.Actor, orderID uint) (*models.Order, error) {
	return loadVisibleOrder(l.db.WithContext(ctx).Preload("Customer").Preload("Tailor"), actor, orderID)
}

// List returns every order visible to actor, newest first
func (l *OrderLedger) List(ctx context.Context, actor models.Actor, filter OrderFilter) ([]models.Order, error) {
	query, err := scopeOrders(l.db.WithContext(ctx), actor)
	if err != nil {
		return nil, err
	}

	status := strings.TrimSpace(filter.Status)
	if status != "" && status != "all" {
		if !models.OrderStatus(status).Valid() {
			return nil, apperr.New(apperr.KindValidation, "unknown order filter %q", status)
		}
		query = query.Where("order_status = ?", status)
	}
	if strings.TrimSpace(filter.Search) != "" {
		like := likePattern(filter.Search)
		query = query.Where(
			"LOWER(service_type) LIKE ? OR LOWER(garment_type) LIKE ? OR "+
				"customer_id IN (SELECT id FROM customers WHERE LOWER(full_name) LIKE ?) OR "+
				"tailor_id IN (SELECT id FROM tailors WHERE LOWER(shop_name) LIKE ?)",
			like, like, like, like,
		)
	}

	var orders []models.Order
	err = query.Preload("Customer").Preload("Tailor").
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// CountByStatus returns order counts per status visible to actor, plus "all"
func (l *OrderLedger) CountByStatus(ctx context.Context, actor models.Actor) (map[string]int64, error) {
	query, err := scopeOrders(l.db.WithContext(ctx).Model(&models.Order{}), actor)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		OrderStatus string
		Count       int64
	}
	if err := query.Select("order_status, COUNT(*) AS count").Group("order_status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{"all": 0}
	for _, s := range models.OrderStatuses {
		counts[string(s)] = 0
	}
	for _, r := range rows {
		counts[r.OrderStatus] = r.Count
		counts["all"] += r.Count
	}
	return counts, nil
}

func (l *OrderLedger) afterTransition(ctx context.Context, actor models.Actor, order *models.Order, from models.OrderStatus, action, reason string) {
	meta := map[string]interface{}{"from": from, "to": order.Status}
	if reason != "" {
		meta["reason"] = reason
	}
	l.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      action,
		TargetType:  "order",
		TargetID:    order.ID,
		Description: fmt.Sprintf("Order #%d moved from %s to %s", order.ID, from, order.Status),
		Metadata:    meta,
	})
	l.logger.Info("order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.Uint("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)),
	)

	payload := map[string]interface{}{"order_id": order.ID, "from": from, "to": order.Status}
	l.notify(ctx, EventOrderStatusChanged, order.CustomerID, payload)
	if order.TailorID != nil {
		l.notify(ctx, EventOrderStatusChanged, *order.TailorID, payload)
	}
}

// compareAndSetStatus applies updates only if the order is still in status
// from. Zero affected rows means another writer got there first.
func compareAndSetStatus(tx *gorm.DB, orderID uint, from models.OrderStatus, updates map[string]interface{}) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindConflict, "order %d changed concurrently, reload and retry", orderID)
	}
	return nil
}

func checkExpected(current models.OrderStatus, expected *models.OrderStatus) error {
	if expected != nil && *expected != current {
		return apperr.New(apperr.KindConflict, "order is %s, expected %s", current, *expected)
	}
	return nil
}

// authorizeOrderActor allows admins and the assigned, unblocked tailor. The
// owning customer is allowed too when allowCustomer is set.
func authorizeOrderActor(tx *gorm.DB, actor models.Actor, order *models.Order, allowCustomer bool) error {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleModerator:
		return nil
	case models.RoleTailor:
		if !order.IsAssignedTo(actor.ID) {
			break
		}
		var tailor models.Tailor
		if err := tx.Select("id", "is_blocked").First(&tailor, actor.ID).Error; err != nil {
			return notFound(err, "tailor", actor.ID)
		}
		if tailor.IsBlocked {
			return apperr.New(apperr.KindUnauthorized, "tailor %d is blocked", actor.ID)
		}
		return nil
	case models.RoleCustomer:
		if allowCustomer && order.CustomerID == actor.ID {
			return nil
		}
	}
	return apperr.New(apperr.KindUnauthorized, "actor cannot modify order %d", order.ID)
}

// scopeOrders restricts query to the orders actor may see.
func scopeOrders(query *gorm.DB, actor models.Actor) (*gorm.DB, error) {
	switch {
	case actor.IsAdmin():
		return query, nil
	case actor.Role == models.RoleTailor:
		return query.Where("tailor_id = ?", actor.ID), nil
	case actor.Role == models.RoleCustomer:
		return query.Where("customer_id = ?", actor.ID), nil
	default:
		return nil, apperr.New(apperr.KindUnauthorized, "unknown role %q", actor.Role)
	}
}

// loadVisibleOrder fetches an order, hiding orders the actor does not own.
func loadVisibleOrder(query *gorm.DB, actor models.Actor, orderID uint) (*models.Order, error) {
	scoped, err := scopeOrders(query, actor)
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := scoped.First(&order, orderID).Error; err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return &order, nil
}
