package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/models"
)

// ContactSubmission is a message sent through the public contact form
type ContactSubmission struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactInbox handles messages from the public contact form
type ContactInbox struct {
	base
}

// NewContactInbox creates a contact inbox
func NewContactInbox(deps Dependencies) *ContactInbox {
	return &ContactInbox{base: newBase(deps, "contact")}
}

// Submit stores a new message
func (c *ContactInbox) Submit(ctx context.Context, in ContactSubmission) (*models.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" || in.Subject == "" || in.Message == "" {
		return nil, apperr.New(apperr.KindValidation, "name, subject and message are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid email address")
	}

	msg := models.ContactMessage{
		Name:    in.Name,
		Email:   strings.TrimSpace(in.Email),
		Subject: in.Subject,
		Message: in.Message,
		Status:  models.ContactStatusNew,
	}
	if err := c.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// List returns messages by status filter and search, newest first
func (c *ContactInbox) List(ctx context.Context, actor models.Actor, filter, search string) ([]models.ContactMessage, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can read the inbox")
	}

	query := c.db.WithContext(ctx).Model(&models.ContactMessage{})
	if f := normalizeFilter(filter); f != FilterAll {
		if !models.ContactStatus(f).Valid() {
			return nil, apperr.New(apperr.KindValidation, "unknown message filter %q", filter)
		}
		query = query.Where("status = ?", f)
	}
	if strings.TrimSpace(search) != "" {
		like := likePattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(subject) LIKE ?", like, like, like)
	}

	var messages []models.ContactMessage
	err := query.Order("created_at DESC").Order("id DESC").Find(&messages).Error
	return messages, err
}

// MarkRead moves a new message to read
func (c *ContactInbox) MarkRead(ctx context.Context, actor models.Actor, id uint) (*models.ContactMessage, error) {
	return c.transition(ctx, actor, id, models.ContactStatusRead, nil)
}

// Close closes a message
func (c *ContactInbox) Close(ctx context.Context, actor models.Actor, id uint) (*models.ContactMessage, error) {
	return c.transition(ctx, actor, id, models.ContactStatusClosed, nil)
}

// Reopen moves a closed message back to read
func (c *ContactInbox) Reopen(ctx context.Context, actor models.Actor, id uint) (*models.ContactMessage, error) {
	return c.transition(ctx, actor, id, models.ContactStatusRead, func(msg *models.ContactMessage) error {
		if msg.Status != models.ContactStatusClosed {
			return apperr.New(apperr.KindInvalidTransition, "message %d is not closed", id)
		}
		return nil
	})
}

// Reply records the admin's answer and notifies the sender
func (c *ContactInbox) Reply(ctx context.Context, actor models.Actor, id uint, text string) (*models.ContactMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, "reply text is required")
	}

	msg, err := c.transition(ctx, actor, id, models.ContactStatusReplied, nil, func(msg *models.ContactMessage, updates map[string]interface{}) {
		now := time.Now()
		adminID := actor.ID
		updates["admin_reply"] = text
		updates["replied_by_admin_id"] = adminID
		updates["replied_at"] = now
		msg.AdminReply, msg.RepliedByAdminID, msg.RepliedAt = &text, &adminID, &now
	})
	if err != nil {
		return nil, err
	}

	c.record(ctx, AuditEntry{
		Actor:       actor,
		Action:      ActionMessageReplied,
		TargetType:  "contact_message",
		TargetID:    id,
		Description: fmt.Sprintf("Replied to message from %s", msg.Email),
	})
	c.notify(ctx, EventContactReplied, OperatorRecipient, map[string]interface{}{
		"message_id": id,
		"email":      msg.Email,
		"subject":    msg.Subject,
		"reply":      text,
	})
	return msg, nil
}

// transition moves a message to next with a conditional update. check
// replaces the default forward-only rule; extra adds columns to the update.
func (c *ContactInbox) transition(
	ctx context.Context,
	actor models.Actor,
	id uint,
	next models.ContactStatus,
	check func(*models.ContactMessage) error,
	extra ...func(*models.ContactMessage, map[string]interface{}),
) (*models.ContactMessage, error) {
	if !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindUnauthorized, "only admins can manage the inbox")
	}

	var msg models.ContactMessage
	var from models.ContactStatus
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, id).Error; err != nil {
			return notFound(err, "message", id)
		}
		from = msg.Status

		if check != nil {
			if err := check(&msg); err != nil {
				return err
			}
		} else if msg.Status == next && len(extra) == 0 {
			return nil
		} else if !msg.Status.CanMoveTo(next) {
			return apperr.New(apperr.KindInvalidTransition, "message %d cannot move from %s to %s", id, msg.Status, next)
		}

		updates := map[string]interface{}{"status": next}
		for _, fn := range extra {
			fn(&msg, updates)
		}
		res := tx.Model(&models.ContactMessage{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "message %d changed concurrently", id)
		}
		msg.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != next {
		c.record(ctx, AuditEntry{
			Actor:       actor,
			Action:      ActionMessageUpdated,
			TargetType:  "contact_message",
			TargetID:    id,
			Description: fmt.Sprintf("Message #%d moved from %s to %s", id, from, next),
		})
	}
	return &msg, nil
}
