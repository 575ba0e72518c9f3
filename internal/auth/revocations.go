package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations tracks signed-out sessions in process. Entries are dropped
// once the token would have expired anyway.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations constructs an empty revocation list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke implements domain.SessionRevoker.
func (m *MemoryRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = until
	m.sweep()
	return nil
}

// IsRevoked implements RevocationChecker.
func (m *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && m.now().After(until) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryRevocations) sweep() {
	now := m.now()
	for id, until := range m.revoked {
		if !until.IsZero() && now.After(until) {
			delete(m.revoked, id)
		}
	}
}
