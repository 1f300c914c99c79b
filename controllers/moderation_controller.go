package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
)

// ModerationController serves the account moderation routes
type ModerationController struct {
	gate *services.ModerationGate
}

// NewModerationController creates a ModerationController
func NewModerationController(gate *services.ModerationGate) *ModerationController {
	return &ModerationController{gate: gate}
}

// PublicTailors handles GET /api/v1/tailors - verified, unblocked tailors only
func (m *ModerationController) PublicTailors(c *gin.Context) {
	tailors, err := m.gate.ListPublicTailors(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tailors)
}

// ListTailors handles GET /api/v1/admin/tailors?filter=&search=
func (m *ModerationController) ListTailors(c *gin.Context) {
	filter := c.DefaultQuery("filter", services.FilterAll)
	tailors, err := m.gate.ListTailors(c.Request.Context(), filter, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tailors,
		"meta": gin.H{
			"filter": filter,
			"label":  services.FilterLabels[filter],
		},
	})
}

// ListCustomers handles GET /api/v1/admin/customers?filter=&search=
func (m *ModerationController) ListCustomers(c *gin.Context) {
	filter := c.DefaultQuery("filter", services.FilterAll)
	customers, err := m.gate.ListCustomers(c.Request.Context(), filter, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    customers,
		"meta": gin.H{
			"filter": filter,
			"label":  services.FilterLabels[filter],
		},
	})
}

// ListAdmins handles GET /api/v1/admin/admins
func (m *ModerationController) ListAdmins(c *gin.Context) {
	admins, err := m.gate.ListAdmins(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	roles := make(map[models.Role]string, len(models.AdminRoles))
	for _, role := range models.AdminRoles {
		roles[role] = role.Label()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    admins,
		"meta":    gin.H{"roles": roles},
	})
}

// VerifyTailor handles POST /api/v1/admin/tailors/:id/verify
func (m *ModerationController) VerifyTailor(c *gin.Context) {
	m.verify(c, true)
}

// UnverifyTailor handles POST /api/v1/admin/tailors/:id/unverify
func (m *ModerationController) UnverifyTailor(c *gin.Context) {
	m.verify(c, false)
}

func (m *ModerationController) verify(c *gin.Context, verified bool) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	verify := m.gate.UnverifyTailor
	if verified {
		verify = m.gate.VerifyTailor
	}
	tailor, err := verify(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tailor)
}

// Block returns the handler for POST .../:id/block on target accounts
func (m *ModerationController) Block(target services.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.setBlocked(c, target, true)
	}
}

// Unblock returns the handler for POST .../:id/unblock on target accounts
func (m *ModerationController) Unblock(target services.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.setBlocked(c, target, false)
	}
}

func (m *ModerationController) setBlocked(c *gin.Context, target services.TargetType, blocked bool) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	apply, message := m.gate.Unblock, "Account unblocked"
	if blocked {
		apply, message = m.gate.Block, "Account blocked"
	}
	if err := apply(c.Request.Context(), actor, target, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"target_type": target,
			"target_id":   id,
			"blocked":     blocked,
		},
	})
}

// ToggleAdminStatus handles POST /api/v1/admin/admins/:id/toggle_status
func (m *ModerationController) ToggleAdminStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	admin, err := m.gate.ToggleAdminStatus(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, admin)
}

// DeleteAdmin handles DELETE /api/v1/admin/admins/:id
func (m *ModerationController) DeleteAdmin(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := m.gate.DeleteAdmin(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Admin deleted",
	})
}
