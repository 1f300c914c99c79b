package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
)

// OrderController serves the order lifecycle routes
type OrderController struct {
	ledger *services.OrderLedger
}

// NewOrderController creates an OrderController
func NewOrderController(ledger *services.OrderLedger) *OrderController {
	return &OrderController{ledger: ledger}
}

// AdvanceOrderRequest represents the request body for advancing an order
type AdvanceOrderRequest struct {
	Status         models.OrderStatus  `json:"status" binding:"required"`
	ExpectedStatus *models.OrderStatus `json:"expected_status"`
	FinalPrice     *int64              `json:"final_price" binding:"omitempty,gt=0"`
}

// CancelOrderRequest represents the request body for cancelling an order
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OverrideOrderRequest represents the request body for an admin status override
type OverrideOrderRequest struct {
	Status         models.OrderStatus  `json:"status" binding:"required"`
	ExpectedStatus *models.OrderStatus `json:"expected_status"`
}

// AssignTailorRequest represents the request body for assigning a tailor
type AssignTailorRequest struct {
	TailorID uint `json:"tailor_id" binding:"required"`
}

// List handles GET /api/v1/orders - lists the orders visible to the caller
func (o *OrderController) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	orders, err := o.ledger.List(ctx, actor, services.OrderFilter{
		Status: c.Query("filter"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	counts, err := o.ledger.CountByStatus(ctx, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"meta": gin.H{
			"counts": counts,
			"badges": statusBadges(counts),
		},
	})
}

func statusBadges(counts map[string]int64) map[string]models.Badge {
	badges := make(map[string]models.Badge, len(counts))
	for status := range counts {
		if status == "all" {
			continue
		}
		badges[status] = models.OrderStatus(status).Badge()
	}
	return badges
}

// Get handles GET /api/v1/orders/:id
func (o *OrderController) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := o.ledger.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// Advance handles POST /api/v1/orders/:id/advance
func (o *OrderController) Advance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req AdvanceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	order, err := o.ledger.Advance(c.Request.Context(), actor, id, req.Status, services.AdvanceOptions{
		ExpectedStatus: req.ExpectedStatus,
		FinalPrice:     req.FinalPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// Cancel handles POST /api/v1/orders/:id/cancel
func (o *OrderController) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	// the body is optional
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidBody(c, err)
			return
		}
	}

	order, err := o.ledger.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// Override handles POST /api/v1/admin/orders/:id/override
func (o *OrderController) Override(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req OverrideOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	order, err := o.ledger.Override(c.Request.Context(), actor, id, req.Status, req.ExpectedStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// AssignTailor handles PUT /api/v1/admin/orders/:id/tailor
func (o *OrderController) AssignTailor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req AssignTailorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	order, err := o.ledger.AssignTailor(c.Request.Context(), actor, id, req.TailorID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}
