package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-instance development.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	expires  map[uuid.UUID]time.Time
	lastSeen map[uuid.UUID]time.Time
}

// NewMemoryStore creates a MemoryStore. now decides expiry; nil means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:      now,
		expires:  make(map[uuid.UUID]time.Time),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStore) MarkOnline(_ context.Context, userID uuid.UUID, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[userID] = m.now().Add(ttl)
	m.lastSeen[userID] = at
	return nil
}

func (m *MemoryStore) MarkOffline(_ context.Context, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, userID)
	m.lastSeen[userID] = at
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make(map[uuid.UUID]Status, len(userIDs))
	for _, id := range userIDs {
		st := Status{UserID: id}
		if exp, ok := m.expires[id]; ok {
			if now.Before(exp) {
				st.Online = true
			} else {
				delete(m.expires, id)
			}
		}
		if seen, ok := m.lastSeen[id]; ok {
			seen := seen
			st.LastSeen = &seen
		}
		out[id] = st
	}
	return out, nil
}
