package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCharge is a charge recorded by MockPaymentGateway
type MockCharge struct {
	OrderID   uint
	Amount    int64
	Reference string
}

// MockPaymentGateway is a mock implementation of PaymentGateway for testing
type MockPaymentGateway struct {
	Secret string

	delay   time.Duration
	err     error
	charges []MockCharge
	mu      sync.RWMutex
}

// NewMockPaymentGateway creates a mock gateway that signs webhooks with secret
func NewMockPaymentGateway(secret string) *MockPaymentGateway {
	return &MockPaymentGateway{Secret: secret}
}

// SetDelay makes Charge wait before answering, honouring context cancellation
func (m *MockPaymentGateway) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// FailWith makes Charge return err
func (m *MockPaymentGateway) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Charge simulates opening a transaction
func (m *MockPaymentGateway) Charge(ctx context.Context, orderID uint, amount int64) (ChargeResult, error) {
	m.mu.RLock()
	delay, failure := m.delay, m.err
	m.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ChargeResult{}, ctx.Err()
		}
	}
	if failure != nil {
		return ChargeResult{}, failure
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ref := fmt.Sprintf("MOCK-%d-%d", orderID, len(m.charges)+1)
	m.charges = append(m.charges, MockCharge{OrderID: orderID, Amount: amount, Reference: ref})
	return ChargeResult{Reference: ref, Status: PaymentStatusUnpaid}, nil
}

// VerifyWebhook checks signature against Secret
func (m *MockPaymentGateway) VerifyWebhook(signature string, payload []byte) bool {
	return verifySignature(m.Secret, signature, payload)
}

// Sign returns the signature the gateway would send with payload
func (m *MockPaymentGateway) Sign(payload []byte) string {
	return SignPayload(m.Secret, payload)
}

// Charges returns all recorded charges
func (m *MockPaymentGateway) Charges() []MockCharge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockCharge, len(m.charges))
	copy(out, m.charges)
	return out
}
