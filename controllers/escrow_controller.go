package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/services"
)

// SignatureHeader carries the gateway's HMAC of the callback body
const SignatureHeader = "X-Callback-Signature"

// maxWebhookBody bounds the callback body read into memory
const maxWebhookBody = 1 << 20

// EscrowController serves checkout, settlement and the gateway callback
type EscrowController struct {
	escrow *services.EscrowCoordinator
}

// NewEscrowController creates an EscrowController
func NewEscrowController(escrow *services.EscrowCoordinator) *EscrowController {
	return &EscrowController{escrow: escrow}
}

// CaptureRequest represents the request body for recording a capture by hand
type CaptureRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"required"`
}

// RefundRequest represents the request body for a refund
type RefundRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Fees handles GET /api/v1/orders/:id/fees
func (e *EscrowController) Fees(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	fees, err := e.escrow.PreviewFees(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, fees)
}

// Checkout handles POST /api/v1/orders/:id/checkout
func (e *EscrowController) Checkout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	hold, err := e.escrow.Checkout(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, hold)
}

// Get handles GET /api/v1/orders/:id/escrow
func (e *EscrowController) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	hold, err := e.escrow.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, hold)
}

// Capture handles POST /api/v1/admin/orders/:id/capture
func (e *EscrowController) Capture(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	hold, err := e.escrow.Capture(c.Request.Context(), actor, id, req.Amount, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, hold)
}

// Release handles POST /api/v1/admin/orders/:id/release
func (e *EscrowController) Release(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	hold, err := e.escrow.Release(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, hold)
}

// Refund handles POST /api/v1/admin/orders/:id/refund
func (e *EscrowController) Refund(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	hold, err := e.escrow.Refund(c.Request.Context(), actor, id, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, hold)
}

// Webhook handles POST /api/v1/payments/webhook. The body is verified as raw
// bytes, so it must not be bound before the signature check.
func (e *EscrowController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	hold, err := e.escrow.ConfirmWebhook(c.Request.Context(), c.GetHeader(SignatureHeader), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	if hold == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Event ignored",
		})
		return
	}
	respondOK(c, http.StatusOK, hold)
}
