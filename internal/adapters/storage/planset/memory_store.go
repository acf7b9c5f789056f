package planset

import (
	"context"
	"sync"

	domain "vitality/internal/domain/planset"
)

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]domain.PlanSet
}

// NewMemoryStore creates an empty in-memory plan set store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]domain.PlanSet)}
}

func (m *MemoryStore) Get(_ context.Context, profileID string) (domain.PlanSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.sets[profileID]
	if !ok {
		return domain.PlanSet{}, ErrNotFound
	}
	return ps, nil
}

func (m *MemoryStore) Save(_ context.Context, value domain.PlanSet) error {
	if err := value.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[value.ProfileID] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, profileID)
	return nil
}
