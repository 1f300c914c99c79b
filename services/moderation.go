package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/models"
)

// TargetType names the kind of account a moderation action applies to
type TargetType string

const (
	TargetTailor   TargetType = "tailor"
	TargetCustomer TargetType = "customer"
	TargetAdmin    TargetType = "admin"
)

// Listing filters
const (
	FilterAll        = "all"
	FilterVerified   = "verified"
	FilterUnverified = "unverified"
	FilterBlocked    = "blocked"
	FilterActive     = "active"
)

// FilterLabels maps listing filters to their display names
var FilterLabels = map[string]string{
	FilterAll:        "All",
	FilterVerified:   "Verified",
	FilterUnverified: "Pending Verification",
	FilterBlocked:    "Blocked",
	FilterActive:     "Active",
}

// ModerationGate verifies, blocks and manages accounts
type ModerationGate struct {
	base
}

// NewModerationGate creates a moderation gate
func NewModerationGate(deps Dependencies) *ModerationGate {
	return &ModerationGate{base: newBase(deps, "moderation")}
}

// VerifyTailor marks a tailor as verified. Verifying a verified tailor is a no-op.
func (m *ModerationGate) VerifyTailor(ctx context.Context, actor models.Actor, tailorID uint) (*models.Tailor, error) {
	return m.setVerified(ctx, actor, tailorID, true)
}

// UnverifyTailor withdraws verification
func (m *ModerationGate) UnverifyTailor(ctx context.Context, actor models.Actor, tailorID uint) (*models.Tailor, error) {
	return m.setVerified(ctx, actor, tailorID, false)
}

func (m *ModerationGate) setVerified(ctx context.Context, actor models.Actor, tailorID uint, verified bool) (*models.Tailor, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can change tailor verification")
	}

	var tailor models.Tailor
	changed := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tailor, tailorID).Error; err != nil {
			return notFound(err, "tailor", tailorID)
		}
		if tailor.IsVerified == verified {
			return nil
		}

		updates := map[string]interface{}{"is_verified": verified, "verified_at": nil, "verified_by_admin_id": nil}
		tailor.VerifiedAt, tailor.VerifiedByAdminID = nil, nil
		if verified {
			now := time.Now()
			adminID := actor.ID
			updates["verified_at"] = now
			updates["verified_by_admin_id"] = adminID
			tailor.VerifiedAt, tailor.VerifiedByAdminID = &now, &adminID
		}
		res := tx.Model(&models.Tailor{}).
			Where("id = ? AND is_verified = ?", tailorID, !verified).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		tailor.IsVerified = verified
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return &tailor, nil
	}

	action, event, verb := ActionTailorVerified, EventTailorVerified, "Verified"
	if !verified {
		action, event, verb = ActionTailorUnverified, EventTailorUnverified, "Unverified"
	}
	m.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      action,
		TargetType:  string(TargetTailor),
		TargetID:    tailorID,
		Description: fmt.Sprintf("%s tailor: %s", verb, tailor.ShopName),
	})
	m.notify(ctx, event, tailorID, map[string]interface{}{"shop_name": tailor.ShopName})
	return &tailor, nil
}

// Block blocks a tailor or customer, or deactivates an admin
func (m *ModerationGate) Block(ctx context.Context, actor models.Actor, target TargetType, id uint) error {
	return m.setBlocked(ctx, actor, target, id, true)
}

// Unblock reverses Block
func (m *ModerationGate) Unblock(ctx context.Context, actor models.Actor, target TargetType, id uint) error {
	return m.setBlocked(ctx, actor, target, id, false)
}

func (m *ModerationGate) setBlocked(ctx context.Context, actor models.Actor, target TargetType, id uint, blocked bool) error {
	switch target {
	case TargetAdmin:
		if actor.IsAdminAccount(id) {
			return apperr.ErrSelfActionForbidden
		}
		if actor.Role != models.RoleSuperAdmin {
			return apperr.New(apperr.KindUnauthorized, "only a super admin can block admins")
		}
		_, err := m.setAdminActive(ctx, actor, id, !blocked, false)
		return err
	case TargetTailor, TargetCustomer:
		if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleAdmin {
			return apperr.New(apperr.KindUnauthorized, "moderators cannot block accounts")
		}
	default:
		return apperr.New(apperr.KindValidation, "unknown target type %q", target)
	}

	var model interface{} = &models.Tailor{}
	if target == TargetCustomer {
		model = &models.Customer{}
	}

	changed := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current struct {
			ID        uint
			IsBlocked bool
		}
		if err := tx.Model(model).Select("id", "is_blocked").Where("id = ?", id).Take(&current).Error; err != nil {
			return notFound(err, string(target), id)
		}
		if current.IsBlocked == blocked {
			return nil
		}

		updates := map[string]interface{}{"is_blocked": blocked, "blocked_at": nil, "blocked_by_admin_id": nil}
		if blocked {
			updates["blocked_at"] = time.Now()
			updates["blocked_by_admin_id"] = actor.ID
		}
		res := tx.Model(model).Where("id = ? AND is_blocked = ?", id, !blocked).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return nil
	})
	if err != nil || !changed {
		return err
	}

	m.afterBlock(ctx, actor, target, id, blocked)
	return nil
}

func (m *ModerationGate) afterBlock(ctx context.Context, actor models.Actor, target TargetType, id uint, blocked bool) {
	action, event, verb := ActionAccountBlocked, EventAccountBlocked, "Blocked"
	if !blocked {
		action, event, verb = ActionAccountUnblocked, EventAccountUnblocked, "Unblocked"
	}
	m.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      action,
		TargetType:  string(target),
		TargetID:    id,
		Description: fmt.Sprintf("%s %s #%d", verb, target, id),
	})
	if target != TargetAdmin {
		m.notify(ctx, event, id, map[string]interface{}{"target_type": target})
	}
}

// ToggleAdminStatus flips an admin between active and inactive
func (m *ModerationGate) ToggleAdminStatus(ctx context.Context, actor models.Actor, adminID uint) (*models.Admin, error) {
	if actor.IsAdminAccount(adminID) {
		return nil, apperr.ErrSelfActionForbidden
	}
	if actor.Role != models.RoleSuperAdmin {
		return nil, apperr.New(apperr.KindUnauthorized, "only a super admin can change admin status")
	}
	return m.setAdminActive(ctx, actor, adminID, false, true)
}

// setAdminActive sets is_active, or flips it when toggle is set.
func (m *ModerationGate) setAdminActive(ctx context.Context, actor models.Actor, adminID uint, active, toggle bool) (*models.Admin, error) {
	var admin models.Admin
	changed := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&admin, adminID).Error; err != nil {
			return notFound(err, "admin", adminID)
		}
		if toggle {
			active = !admin.IsActive
		}
		if admin.IsActive == active {
			return nil
		}

		res := tx.Model(&models.Admin{}).
			Where("id = ? AND is_active = ?", adminID, admin.IsActive).
			Update("is_active", active)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "admin %d changed concurrently", adminID)
		}
		admin.IsActive = active
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return &admin, nil
	}

	if toggle {
		m.record(ctx, AuditEntry{
			Actor:       actor,
			Action:      ActionAdminToggled,
			TargetType:  string(TargetAdmin),
			TargetID:    adminID,
			Description: fmt.Sprintf("Set admin %s active=%t", admin.Username, active),
		})
	} else {
		m.afterBlock(ctx, actor, TargetAdmin, adminID, !active)
	}
	return &admin, nil
}

// DeleteAdmin permanently removes an admin account
func (m *ModerationGate) DeleteAdmin(ctx context.Context, actor models.Actor, adminID uint) error {
	if actor.IsAdminAccount(adminID) {
		return apperr.ErrSelfActionForbidden
	}
	if actor.Role != models.RoleSuperAdmin {
		return apperr.New(apperr.KindUnauthorized, "only a super admin can delete admins")
	}

	var admin models.Admin
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&admin, adminID).Error; err != nil {
			return notFound(err, "admin", adminID)
		}
		return tx.Delete(&models.Admin{}, adminID).Error
	})
	if err != nil {
		return err
	}

	m.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      ActionAdminDeleted,
		TargetType:  string(TargetAdmin),
		TargetID:    adminID,
		Description: fmt.Sprintf("Deleted admin: %s", admin.Username),
	})
	return nil
}

// ListTailors returns tailors matching filter and search, newest first
func (m *ModerationGate) ListTailors(ctx context.Context, filter, search string) ([]models.Tailor, error) {
	query := m.db.WithContext(ctx).Model(&models.Tailor{})
	switch normalizeFilter(filter) {
	case FilterAll:
	case FilterVerified:
		query = query.Where("is_verified = ?", true)
	case FilterUnverified:
		query = query.Where("is_verified = ?", false)
	case FilterBlocked:
		query = query.Where("is_blocked = ?", true)
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown tailor filter %q", filter)
	}
	if strings.TrimSpace(search) != "" {
		like := likePattern(search)
		query = query.Where("LOWER(shop_name) LIKE ? OR LOWER(owner_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(area) LIKE ?",
			like, like, like, like)
	}

	var tailors []models.Tailor
	err := query.Order("created_at DESC").Order("id DESC").Find(&tailors).Error
	return tailors, err
}

// ListPublicTailors returns verified, unblocked tailors
func (m *ModerationGate) ListPublicTailors(ctx context.Context, search string) ([]models.Tailor, error) {
	query := m.db.WithContext(ctx).Where("is_verified = ? AND is_blocked = ?", true, false)
	if strings.TrimSpace(search) != "" {
		like := likePattern(search)
		query = query.Where("LOWER(shop_name) LIKE ? OR LOWER(area) LIKE ?", like, like)
	}

	var tailors []models.Tailor
	err := query.Order("rating DESC").Order("id DESC").Find(&tailors).Error
	return tailors, err
}

// ListCustomers returns customers matching filter and search, newest first
func (m *ModerationGate) ListCustomers(ctx context.Context, filter, search string) ([]models.Customer, error) {
	query := m.db.WithContext(ctx).Model(&models.Customer{})
	switch normalizeFilter(filter) {
	case FilterAll:
	case FilterActive:
		query = query.Where("is_blocked = ?", false)
	case FilterBlocked:
		query = query.Where("is_blocked = ?", true)
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown customer filter %q", filter)
	}
	if strings.TrimSpace(search) != "" {
		like := likePattern(search)
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?", like, like, like)
	}

	var customers []models.Customer
	err := query.Order("created_at DESC").Order("id DESC").Find(&customers).Error
	return customers, err
}

// ListAdmins returns every admin account
func (m *ModerationGate) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	err := m.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&admins).Error
	return admins, err
}

func normalizeFilter(filter string) string {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return FilterAll
	}
	return f
}
