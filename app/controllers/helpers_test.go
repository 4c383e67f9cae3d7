package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
	stats  map[uint]repository.UserStats
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{nextID: 1, users: map[uint]*models.User{}, stats: map[uint]repository.UserStats{}}
}

func (m *memoryUsers) add(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID
	}
	if u.ID >= m.nextID {
		m.nextID = u.ID + 1
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := u
	m.users[u.ID] = &cp
	return &cp
}

func (m *memoryUsers) get(id uint) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memoryUsers) Create(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) GetByID(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUsers) GetStatsByUserID(userID uint) (*repository.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[userID]
	return &st, nil
}

func (m *memoryUsers) Update(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) UpdateFields(id uint, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "password":
			u.Password = v.(string)
		case "image":
			u.Image = v.(string)
		case "subscription_tier":
			u.SubscriptionTier = v.(entitlements.Tier)
		case "subscription_status":
			u.SubscriptionStatus = v.(entitlements.Status)
		}
	}
	return nil
}

func (m *memoryUsers) TouchLastLogin(id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *memoryUsers) List(filter repository.ListUsersFilter) ([]repository.UserWithCounts, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []repository.UserWithCounts
	for id := uint(1); id < m.nextID; id++ {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if filter.Tier != "" && string(u.SubscriptionTier) != filter.Tier {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Email, filter.Search) && !strings.Contains(u.Name, filter.Search) {
			continue
		}
		st := m.stats[id]
		all = append(all, repository.UserWithCounts{User: *u, AvatarCount: st.AvatarCount, VideoCount: st.VideoCount})
	}
	total := int64(len(all))
	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memoryUsers) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memoryUsers) CountActivePaid() (int64, error) { return 0, nil }

func (m *memoryUsers) TierBreakdown() (map[entitlements.Tier]int64, error) {
	return map[entitlements.Tier]int64{}, nil
}

func (m *memoryUsers) CountCreatedSince(since time.Time) (int64, error) { return 0, nil }

func (m *memoryUsers) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	return nil, nil
}

type memoryProviderAccounts struct {
	mu       sync.Mutex
	accounts []*models.ProviderAccount
}

func (m *memoryProviderAccounts) GetByProviderUID(provider, providerUserID string) (*models.ProviderAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderUserID == providerUserID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryProviderAccounts) Save(account *models.ProviderAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.accounts {
		if a.Provider == account.Provider && a.ProviderUserID == account.ProviderUserID {
			cp := *account
			m.accounts[i] = &cp
			return nil
		}
	}
	account.ID = uint(len(m.accounts) + 1)
	cp := *account
	m.accounts = append(m.accounts, &cp)
	return nil
}

// newTestApp returns an app whose requests run as user; a zero user is anonymous.
func newTestApp(user usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, user)
		return c.Next()
	})
	return app
}

func signedIn(id uint) usercontext.UserContext {
	return usercontext.UserContext{UserID: id, Username: "tester", Email: "tester@example.com", IsLoggedIn: true}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
