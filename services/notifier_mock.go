package services

import (
	"context"
	"sync"
)

// MockNotifier records notifications for testing
type MockNotifier struct {
	sent []Notification
	err  error
	mu   sync.RWMutex
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// FailWith makes every subsequent Notify call return err
func (m *MockNotifier) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Notify records the notification
func (m *MockNotifier) Notify(ctx context.Context, eventType string, recipientID uint, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Notification{Event: eventType, RecipientID: recipientID, Payload: payload})
	return m.err
}

// Sent returns a copy of all recorded notifications
func (m *MockNotifier) Sent() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// Events returns the notifications with the given event type
func (m *MockNotifier) Events(eventType string) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Event == eventType {
			out = append(out, n)
		}
	}
	return out
}

// Clear removes all recorded notifications
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}
