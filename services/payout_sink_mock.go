package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tailorhub/tailorhub-api/models"
)

// MockPayoutSink is a mock implementation of PayoutSink for testing
type MockPayoutSink struct {
	objects map[string][]byte // map of object key to JSON body
	err     error
	mu      sync.RWMutex
}

// NewMockPayoutSink creates a new mock payout sink
func NewMockPayoutSink() *MockPayoutSink {
	return &MockPayoutSink{objects: make(map[string][]byte)}
}

// FailWith makes every subsequent Publish call return err
func (m *MockPayoutSink) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Publish simulates archiving a batch
func (m *MockPayoutSink) Publish(ctx context.Context, instructions []models.PayoutInstruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	key, body, err := encodeBatch(instructions)
	if err != nil || key == "" {
		return err
	}
	m.objects[key] = body
	return nil
}

// Objects returns all archived objects (for testing assertions)
func (m *MockPayoutSink) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		objects[k] = v
	}
	return objects
}

// Instructions decodes every archived instruction
func (m *MockPayoutSink) Instructions() []models.PayoutInstruction {
	var out []models.PayoutInstruction
	for _, body := range m.Objects() {
		var batch payoutBatch
		if err := json.Unmarshal(body, &batch); err == nil {
			out = append(out, batch.Instructions...)
		}
	}
	return out
}
