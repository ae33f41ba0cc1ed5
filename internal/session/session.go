// Package session holds the per-cashier working state created at login:
// the store context, the sale catalog, the stock view, the sale ledger and
// the adjustment staging list.
package session

import (
	"errors"
	"sync"
	"time"

	"simplepos/internal/adjustment"
	"simplepos/internal/catalog"
	"simplepos/internal/domain"
	"simplepos/internal/ledger"
	"simplepos/internal/submitqueue"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

type Session struct {
	ID        string
	Store     domain.Store
	Username  string
	ExpiresAt time.Time

	Catalog   *catalog.Catalog
	StockView *catalog.Catalog
	Ledger    *ledger.Ledger
	Staging   *adjustment.Staging

	SaleQueue       *submitqueue.Queue[domain.SaleLine]
	AdjustmentQueue *submitqueue.Queue[domain.AdjustmentItem]
	SalesGate       submitqueue.Gate
}

func New(id string, store domain.Store, username string, expiresAt time.Time) *Session {
	return &Session{
		ID:        id,
		Store:     store,
		Username:  username,
		ExpiresAt: expiresAt,
		Catalog:   catalog.New(),
		StockView: catalog.New(),
		Ledger:    ledger.New(),
		Staging:   adjustment.New(),
	}
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session), now: time.Now}
}

func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.Delete(id)
		return nil, ErrExpired
	}
	return s, nil
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Sweep drops every expired session and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
