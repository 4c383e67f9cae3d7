package credits

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uint]*Account
	entries  []RecordedEntry
}

// RecordedEntry is an audit entry captured by MemoryStore.
type RecordedEntry struct {
	UserID uint
	Entry  Entry
	Amount int
	Before int
	After  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[uint]*Account)}
}

// Put inserts or replaces an account.
func (m *MemoryStore) Put(id uint, credits int, tier entitlements.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &Account{ID: id, Credits: credits, Tier: tier}
}

// Credits returns the stored balance of an account.
func (m *MemoryStore) Credits(id uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return a.Credits
	}
	return 0
}

// Entries returns a copy of the recorded audit entries.
func (m *MemoryStore) Entries() []RecordedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *MemoryStore) GetAccount(ctx context.Context, userID uint) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) DebitIfAffordable(ctx context.Context, userID uint, cost int, entry Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if a.Credits < cost {
		return 0, ErrInsufficientCredits
	}
	before := a.Credits
	a.Credits -= cost
	m.entries = append(m.entries, RecordedEntry{UserID: userID, Entry: entry, Amount: -cost, Before: before, After: a.Credits})
	return a.Credits, nil
}

func (m *MemoryStore) SetBalance(ctx context.Context, userID uint, balance int, resetAt time.Time, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	before := a.Credits
	a.Credits = balance
	a.CreditsResetDate = &resetAt
	m.entries = append(m.entries, RecordedEntry{UserID: userID, Entry: entry, Amount: balance - before, Before: before, After: balance})
	return nil
}

func (m *MemoryStore) Adjust(ctx context.Context, userID uint, delta int, entry Entry) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return 0, 0, ErrAccountNotFound
	}
	before := a.Credits
	a.Credits += delta
	m.entries = append(m.entries, RecordedEntry{UserID: userID, Entry: entry, Amount: delta, Before: before, After: a.Credits})
	return before, a.Credits, nil
}
