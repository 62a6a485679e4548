package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in process memory, for single instance
// deployments. Entries expire after ttl without updates.
type MemoryStore struct {
	sessions   *expirable.LRU[string, Session]
	authorized *expirable.LRU[string, bool]
	claims     *claimSet
}

type claimSet struct {
	mutex sync.Mutex
	until map[string]time.Time
}

func NewMemoryStore(size int, ttl time.Duration) MemoryStore {
	return MemoryStore{
		sessions:   expirable.NewLRU[string, Session](size, nil, ttl),
		authorized: expirable.NewLRU[string, bool](size, nil, ttl),
		claims:     &claimSet{until: map[string]time.Time{}},
	}
}

func (m MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m MemoryStore) Put(_ context.Context, s Session) error {
	m.sessions.Add(s.ID, s)
	return nil
}

func (m MemoryStore) Delete(_ context.Context, id string) error {
	m.sessions.Remove(id)
	return nil
}

func (m MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, id := range m.sessions.Keys() {
		s, ok := m.sessions.Peek(id)
		if !ok || !s.UpdatedAt.Before(cutoff) {
			continue
		}
		m.sessions.Remove(id)
		m.authorized.Remove(id)
		removed++
	}

	m.claims.mutex.Lock()
	defer m.claims.mutex.Unlock()
	for id, until := range m.claims.until {
		if until.Before(cutoff) {
			delete(m.claims.until, id)
		}
	}
	return removed, nil
}

func (m MemoryStore) Authorize(_ context.Context, id string, _ time.Time) error {
	m.authorized.Add(id, true)
	return nil
}

func (m MemoryStore) Deauthorize(_ context.Context, id string) error {
	m.authorized.Remove(id)
	return nil
}

// Authorized re-adds a held flag, Get alone does not extend its ttl.
func (m MemoryStore) Authorized(_ context.Context, id string) (bool, error) {
	ok, _ := m.authorized.Get(id)
	if ok {
		m.authorized.Add(id, true)
	}
	return ok, nil
}

func (m MemoryStore) Claim(_ context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	m.claims.mutex.Lock()
	defer m.claims.mutex.Unlock()
	until, held := m.claims.until[id]
	if held && now.Before(until) {
		return false, nil
	}
	m.claims.until[id] = now.Add(lease)
	return true, nil
}

func (m MemoryStore) Unclaim(_ context.Context, id string) error {
	m.claims.mutex.Lock()
	defer m.claims.mutex.Unlock()
	delete(m.claims.until, id)
	return nil
}
