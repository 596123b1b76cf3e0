package core

import (
	"sync"
	"time"

	"nutricoach.in/nutribot/internal/store"
)

// PendingConfirmation is the single outstanding yes/no question for one
// identity. It lives for exactly one turn: the next inbound message from
// that identity is always interpreted against it and it is cleared before
// any new classification happens.
type PendingConfirmation struct {
	Identity  string
	Intent    Intent // IntentFood or IntentWeight
	Meal      *store.MealEntry
	Weight    float64 // pounds
	CreatedAt time.Time
}

// PendingStore tracks at most one pending confirmation per identity.
// Set overwrites any existing entry for that identity.
type PendingStore interface {
	Get(identity string) (PendingConfirmation, bool)
	Set(identity string, pc PendingConfirmation)
	Clear(identity string)
}

// MemoryPendingStore is a mutex-guarded keyed map. The dialogue is strictly
// turn-based with a single outstanding question, so a flat map is enough;
// the router additionally serializes whole turns per identity.
type MemoryPendingStore struct {
	mu      sync.RWMutex
	pending map[string]PendingConfirmation
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[string]PendingConfirmation)}
}

func (s *MemoryPendingStore) Get(identity string) (PendingConfirmation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.pending[identity]
	return pc, ok
}

func (s *MemoryPendingStore) Set(identity string, pc PendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[identity] = pc
}

func (s *MemoryPendingStore) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, identity)
}
