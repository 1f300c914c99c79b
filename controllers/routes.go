package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/middleware"
	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
)

// Handlers groups the controllers mounted under /api/v1
type Handlers struct {
	Orders     *OrderController
	Escrow     *EscrowController
	Moderation *ModerationController
	Contact    *ContactController
	Activity   *ActivityController
}

// RegisterRoutes mounts every API route on v1. auth authenticates the caller
// and must store a models.Actor in the context.
func RegisterRoutes(v1 *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	// Public routes
	v1.GET("/tailors", h.Moderation.PublicTailors)
	v1.POST("/contact", h.Contact.Submit)
	v1.POST("/payments/webhook", h.Escrow.Webhook)

	// Authenticated routes
	orders := v1.Group("/orders", auth)
	{
		orders.GET("", h.Orders.List)
		orders.GET("/:id", h.Orders.Get)
		orders.POST("/:id/advance", h.Orders.Advance)
		orders.POST("/:id/cancel", h.Orders.Cancel)
		orders.GET("/:id/fees", h.Escrow.Fees)
		orders.POST("/:id/checkout", h.Escrow.Checkout)
		orders.GET("/:id/escrow", h.Escrow.Get)
	}

	admin := v1.Group("/admin", auth, middleware.RequireRoles(models.AdminRoles...))
	{
		admin.PUT("/orders/:id/tailor", h.Orders.AssignTailor)
		admin.POST("/orders/:id/override", h.Orders.Override)
		admin.POST("/orders/:id/capture", h.Escrow.Capture)
		admin.POST("/orders/:id/release", h.Escrow.Release)
		admin.POST("/orders/:id/refund", h.Escrow.Refund)

		admin.GET("/tailors", h.Moderation.ListTailors)
		admin.POST("/tailors/:id/verify", h.Moderation.VerifyTailor)
		admin.POST("/tailors/:id/unverify", h.Moderation.UnverifyTailor)
		admin.POST("/tailors/:id/block", h.Moderation.Block(services.TargetTailor))
		admin.POST("/tailors/:id/unblock", h.Moderation.Unblock(services.TargetTailor))

		admin.GET("/customers", h.Moderation.ListCustomers)
		admin.POST("/customers/:id/block", h.Moderation.Block(services.TargetCustomer))
		admin.POST("/customers/:id/unblock", h.Moderation.Unblock(services.TargetCustomer))

		admin.GET("/admins", h.Moderation.ListAdmins)
		admin.POST("/admins/:id/toggle_status", h.Moderation.ToggleAdminStatus)
		admin.POST("/admins/:id/block", h.Moderation.Block(services.TargetAdmin))
		admin.POST("/admins/:id/unblock", h.Moderation.Unblock(services.TargetAdmin))
		admin.DELETE("/admins/:id", h.Moderation.DeleteAdmin)

		admin.GET("/messages", h.Contact.List)
		admin.POST("/messages/:id/read", h.Contact.MarkRead)
		admin.POST("/messages/:id/reply", h.Contact.Reply)
		admin.POST("/messages/:id/close", h.Contact.Close)
		admin.POST("/messages/:id/reopen", h.Contact.Reopen)

		admin.GET("/activity", h.Activity.Recent)
	}
}
