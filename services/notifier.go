package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notification event types
const (
	EventOrderStatusChanged = "order.status_changed"
	EventOrderAssigned      = "order.assigned"
	EventPaymentHeld        = "payment.held"
	EventPayoutReleased     = "payout.released"
	EventRefundIssued       = "refund.issued"
	EventTailorVerified     = "tailor.verified"
	EventTailorUnverified   = "tailor.unverified"
	EventAccountBlocked     = "account.blocked"
	EventAccountUnblocked   = "account.unblocked"
	EventContactReplied     = "contact.replied"
	EventOperatorAlert      = "operator.alert"
)

// OperatorRecipient addresses the on-call operators rather than an account.
const OperatorRecipient uint = 0

// Notifier delivers events to customers, tailors and operators
type Notifier interface {
	Notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) error
}

// Notification is the message published for every event
type Notification struct {
	Event       string                 `json:"event"`
	RecipientID uint                   `json:"recipient_id"`
	Payload     map[string]interface{} `json:"payload"`
	SentAt      time.Time              `json:"sent_at"`
}

// RedisNotifier publishes notifications as JSON on a pub/sub channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier publishing on channel
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Notify publishes the event
func (n *RedisNotifier) Notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) error {
	body, err := json.Marshal(Notification{
		Event:       eventType,
		RecipientID: recipientID,
		Payload:     payload,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

// LogNotifier writes notifications to the application log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event
func (n *LogNotifier) Notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) error {
	n.logger.Info("notification",
		zap.String("event", eventType),
		zap.Uint("recipient_id", recipientID),
		zap.Any("payload", payload),
	)
	return nil
}

// MultiNotifier fans one event out to several notifiers concurrently.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier combines notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify delivers to every notifier and returns the first failure.
func (m *MultiNotifier) Notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) error {
	var g errgroup.Group
	for _, n := range m.notifiers {
		n := n
		g.Go(func() error {
			return n.Notify(ctx, eventType, recipientID, payload)
		})
	}
	return g.Wait()
}

// dispatcher sends notifications after a commit. Delivery is bounded by
// timeout and failures are only logged.
type dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
}

func (d dispatcher) notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) {
	if d.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, eventType, recipientID, payload); err != nil {
		d.logger.Warn("notification failed",
			zap.String("event", eventType),
			zap.Uint("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}

// alert raises an operator notification.
func (d dispatcher) alert(ctx context.Context, reason string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["reason"] = reason
	d.logger.Error("operator alert", zap.String("reason", reason), zap.Any("details", payload))
	d.notify(ctx, EventOperatorAlert, OperatorRecipient, payload)
}
