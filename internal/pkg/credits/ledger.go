package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Affordability is the result of a read-only balance check.
type Affordability struct {
	Affordable bool
	Balance    int
	Cost       int
}

// BalanceInfo is what the balance endpoint reports.
type BalanceInfo struct {
	Credits    int                         `json:"credits"`
	Tier       entitlements.Tier           `json:"tier"`
	MaxCredits *int                        `json:"maxCredits"`
	ResetDate  *time.Time                  `json:"resetDate"`
	Costs      map[entitlements.Action]int `json:"costs"`
}

// Adjustment is the outcome of a manual credit change.
type Adjustment struct {
	PreviousBalance int
	NewBalance      int
	Amount          int
}

// Ledger owns every change to an account balance.
type Ledger struct {
	store  Store
	tables *entitlements.Tables
	now    func() time.Time
}

// NewLedger creates a ledger over the given store and pricing tables.
func NewLedger(store Store, tables *entitlements.Tables) *Ledger {
	if tables == nil {
		tables = entitlements.DefaultTables()
	}
	return &Ledger{store: store, tables: tables, now: time.Now}
}

// NewLedgerFromDB creates a ledger backed by GORM.
func NewLedgerFromDB(db *gorm.DB, tables *entitlements.Tables) *Ledger {
	return NewLedger(NewGormStore(db), tables)
}

// Tables returns the pricing tables the ledger was built with.
func (l *Ledger) Tables() *entitlements.Tables {
	return l.tables
}

// CheckAffordability reports whether the account can pay for action. It
// never changes the balance.
func (l *Ledger) CheckAffordability(ctx context.Context, userID uint, action entitlements.Action) (Affordability, error) {
	cost, ok := l.tables.Cost(action)
	if !ok {
		return Affordability{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	acc, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return Affordability{}, err
	}
	return Affordability{
		Affordable: acc.Credits >= cost,
		Balance:    acc.Credits,
		Cost:       cost,
	}, nil
}

// Debit charges the cost of action in one conditional write. The balance
// never drops below zero through a debit; concurrent debits that would
// overdraw fail with ErrInsufficientCredits.
func (l *Ledger) Debit(ctx context.Context, userID uint, action entitlements.Action) (int, error) {
	cost, ok := l.tables.Cost(action)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	balance, err := l.store.DebitIfAffordable(ctx, userID, cost, Entry{
		Kind:   models.CREDIT_TX_DEBIT,
		Action: action,
	})
	if err != nil {
		return 0, err
	}
	metrics.Get().AddCreditsDebited(string(action), cost)
	return balance, nil
}

// Balance returns the current balance with the allowance of the account's tier.
func (l *Ledger) Balance(ctx context.Context, userID uint) (BalanceInfo, error) {
	acc, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return BalanceInfo{}, err
	}

	tier := acc.Tier
	if tier == "" {
		tier = entitlements.TierFree
	}
	info := BalanceInfo{
		Credits:   acc.Credits,
		Tier:      tier,
		ResetDate: acc.CreditsResetDate,
		Costs:     l.tables.Costs(),
	}
	if !l.tables.IsUnlimited(tier) {
		max := l.tables.Allowance(tier)
		info.MaxCredits = &max
	}
	return info, nil
}

// AllowanceForTier returns the monthly allowance of a tier, including the
// unlimited sentinel.
func (l *Ledger) AllowanceForTier(tier entitlements.Tier) int {
	return l.tables.Allowance(tier)
}

// ResetForRenewal sets the balance to the stored allowance of tier.
func (l *Ledger) ResetForRenewal(ctx context.Context, userID uint, tier entitlements.Tier) (int, error) {
	balance := l.tables.StoredAllowance(tier)
	err := l.store.SetBalance(ctx, userID, balance, l.now(), Entry{
		Kind:   models.CREDIT_TX_RESET,
		Reason: "allowance reset for tier " + string(tier),
	})
	if err != nil {
		return 0, err
	}
	log.Infof("[Ledger] Reset balance of user %d to %d (%s)", userID, balance, tier)
	return balance, nil
}

// AdminAdjust adds delta to the balance. There is no floor: a negative delta
// may leave the balance below zero.
func (l *Ledger) AdminAdjust(ctx context.Context, userID uint, delta int, reason string, actorID uint) (Adjustment, error) {
	entry := Entry{
		Kind:   models.CREDIT_TX_ADMIN_ADJUST,
		Reason: reason,
	}
	if actorID != 0 {
		entry.ActorUserID = &actorID
	}

	before, after, err := l.store.Adjust(ctx, userID, delta, entry)
	if err != nil {
		return Adjustment{}, err
	}

	log.Infof("[Ledger] Admin %d adjusted credits of user %d by %d (%d -> %d) reason=%q", actorID, userID, delta, before, after, reason)
	metrics.Get().RecordAdminAdjustment()
	return Adjustment{
		PreviousBalance: before,
		NewBalance:      after,
		Amount:          delta,
	}, nil
}
