package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps idempotency keys in process and never caches snapshots. It
// stands in for Redis in local runs without REDIS_URL.
type Memory struct {
	mu   sync.Mutex
	keys map[string]bool
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]bool)}
}

func (m *Memory) GetSnapshot(context.Context, uuid.UUID, any) (bool, error) { return false, nil }
func (m *Memory) SetSnapshot(context.Context, uuid.UUID, any) error         { return nil }
func (m *Memory) InvalidateSnapshot(context.Context, uuid.UUID) error       { return nil }

func (m *Memory) ReservePayment(_ context.Context, groupOrderID uuid.UUID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := paymentKey(groupOrderID, key)
	if m.keys[k] {
		return false, nil
	}
	m.keys[k] = true
	return true, nil
}

func (m *Memory) ReleasePayment(_ context.Context, groupOrderID uuid.UUID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, paymentKey(groupOrderID, key))
	return nil
}
