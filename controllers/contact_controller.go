package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
)

// ContactController serves the public contact form and the admin inbox
type ContactController struct {
	inbox *services.ContactInbox
}

// NewContactController creates a ContactController
func NewContactController(inbox *services.ContactInbox) *ContactController {
	return &ContactController{inbox: inbox}
}

// SubmitContactRequest represents the public contact form
type SubmitContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// ReplyRequest represents the request body for replying to a message
type ReplyRequest struct {
	Reply string `json:"reply" binding:"required"`
}

// Submit handles POST /api/v1/contact
func (cc *ContactController) Submit(c *gin.Context) {
	var req SubmitContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	msg, err := cc.inbox.Submit(c.Request.Context(), services.ContactSubmission{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, msg)
}

// List handles GET /api/v1/admin/messages?filter=&search=
func (cc *ContactController) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	messages, err := cc.inbox.List(c.Request.Context(), actor, c.Query("filter"), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, messages)
}

type inboxAction func(ctx context.Context, actor models.Actor, id uint) (*models.ContactMessage, error)

func (cc *ContactController) apply(c *gin.Context, action inboxAction) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	msg, err := action(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, msg)
}

// MarkRead handles POST /api/v1/admin/messages/:id/read
func (cc *ContactController) MarkRead(c *gin.Context) {
	cc.apply(c, cc.inbox.MarkRead)
}

// Close handles POST /api/v1/admin/messages/:id/close
func (cc *ContactController) Close(c *gin.Context) {
	cc.apply(c, cc.inbox.Close)
}

// Reopen handles POST /api/v1/admin/messages/:id/reopen
func (cc *ContactController) Reopen(c *gin.Context) {
	cc.apply(c, cc.inbox.Reopen)
}

// Reply handles POST /api/v1/admin/messages/:id/reply
func (cc *ContactController) Reply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	cc.apply(c, func(ctx context.Context, actor models.Actor, id uint) (*models.ContactMessage, error) {
		return cc.inbox.Reply(ctx, actor, id, req.Reply)
	})
}
