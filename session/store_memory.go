package session

import (
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store. Sessions are lost on server
// restart, which is acceptable for the USSD channel: a dropped call issues a
// fresh gateway session ID anyway.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Session)}
}

func (m *MemoryStore) Get(id string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.Expired(time.Now().UTC()) {
		m.Delete(id)
		return Session{}, false
	}
	return s, true
}

func (m *MemoryStore) Save(id string, s Session, ttl time.Duration) {
	now := time.Now().UTC()
	s.ID = id
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivity = now
	s.ExpiresAt = now.Add(ttl)
	m.mu.Lock()
	m.data[id] = s
	m.mu.Unlock()
}

func (m *MemoryStore) Update(id string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.data[id]
	if !ok || existing.Expired(time.Now().UTC()) {
		delete(m.data, id)
		return ErrNotFound
	}
	s.ID = id
	s.LastActivity = time.Now().UTC()
	m.data[id] = s
	return nil
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
}

func (m *MemoryStore) Exists(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Sweep removes expired sessions and returns how many were purged. Called
// periodically from the server's cron scheduler; a missed sweep only delays
// reclamation, never correctness, because Get checks expiry itself.
func (m *MemoryStore) Sweep() int {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, s := range m.data {
		if s.Expired(now) {
			delete(m.data, id)
			purged++
		}
	}
	return purged
}
