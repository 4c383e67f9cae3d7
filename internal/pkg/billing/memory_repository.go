package billing

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
)

// MemoryRepository is an in-process Repository for tests and local tooling.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uint]*AccountState
	events   []*models.BillingWebhookEvent
	resets   int

	// ApplyErr, when set, fails every ApplyUpdate.
	ApplyErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[uint]*AccountState)}
}

// Put stores a copy of an account.
func (m *MemoryRepository) Put(acc AccountState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := acc
	m.accounts[acc.UserID] = &cp
}

// Account returns a copy of a stored account.
func (m *MemoryRepository) Account(id uint) (AccountState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return AccountState{}, false
	}
	return *acc, true
}

// Resets counts credit resets written through ApplyUpdate.
func (m *MemoryRepository) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Events returns the recorded webhook events.
func (m *MemoryRepository) Events() []models.BillingWebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BillingWebhookEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out
}

func (m *MemoryRepository) FindAccountByCustomerID(ctx context.Context, customerID string) (*AccountState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.BillingCustomerID != nil && *acc.BillingCustomerID == customerID {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MemoryRepository) FindAccountByEmail(ctx context.Context, email string) (*AccountState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := models.NormalizeEmail(email)
	for _, acc := range m.accounts {
		if models.NormalizeEmail(acc.Email) == want {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MemoryRepository) ApplyUpdate(ctx context.Context, upd Update) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyErr != nil {
		return false, m.ApplyErr
	}
	acc, ok := m.accounts[upd.UserID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if upd.PeriodGuard != nil && acc.CurrentPeriodEnd != nil && !acc.CurrentPeriodEnd.Before(*upd.PeriodGuard) {
		return false, nil
	}
	next := upd.Apply(*acc)
	m.accounts[upd.UserID] = &next
	if upd.Credits != nil {
		m.resets++
	}
	return true, nil
}

func (m *MemoryRepository) LinkCustomer(ctx context.Context, userID uint, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.BillingCustomerID != nil && *acc.BillingCustomerID == customerID && acc.UserID != userID {
			return ErrCustomerAlreadyLinked
		}
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := customerID
	acc.BillingCustomerID = &id
	return nil
}

func (m *MemoryRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			cp := *e
			return false, &cp, nil
		}
	}
	stored := *event
	stored.ID = uint(len(m.events) + 1)
	stored.CreatedAt = time.Now()
	m.events = append(m.events, &stored)
	cp := stored
	return true, &cp, nil
}

func (m *MemoryRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome string, userID *uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.Outcome = outcome
			e.UserID = userID
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *MemoryRepository) ReplaceWebhookPayload(ctx context.Context, id uint, eventType, payloadJSON string, signatureValid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.EventType = eventType
			e.PayloadJSON = payloadJSON
			e.SignatureValid = signatureValid
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *MemoryRepository) GetWebhookEvent(ctx context.Context, id uint) (*models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
