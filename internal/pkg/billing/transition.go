package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

// Outcome classifies what reconciling one event did.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeNoop       Outcome = "noop"
	OutcomeLogged     Outcome = "logged"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeIgnored    Outcome = "ignored"
)

// Effect names one business effect of a transition.
type Effect string

const (
	EffectLinkCustomer         Effect = "link_customer"
	EffectActivateSubscription Effect = "activate_subscription"
	EffectRenewPeriod          Effect = "renew_period"
	EffectResetCredits         Effect = "reset_credits"
	EffectCancelSubscription   Effect = "cancel_subscription"
	EffectRevokeSubscription   Effect = "revoke_subscription"
)

// AccountState is the billing-relevant part of an account.
type AccountState struct {
	UserID            uint
	Email             string
	BillingCustomerID *string
	Tier              entitlements.Tier
	Status            entitlements.Status
	SubscriptionID    *string
	CurrentPeriodEnd  *time.Time
	Credits           int
	CreditsResetDate  *time.Time
}

// Update is a field-level write against one account. Nil pointers leave the
// column untouched; the Set* flags allow writing NULL.
type Update struct {
	UserID            uint
	BillingCustomerID *string
	Tier              *entitlements.Tier
	Status            *entitlements.Status
	SetSubscriptionID bool
	SubscriptionID    *string
	SetPeriodEnd      bool
	CurrentPeriodEnd  *time.Time
	Credits           *int
	CreditsResetDate  *time.Time

	// PeriodGuard, when set, makes the write conditional on the stored
	// period end being NULL or strictly before it.
	PeriodGuard *time.Time
	Reason      string
}

// IsEmpty reports whether the update writes nothing.
func (u *Update) IsEmpty() bool {
	return u == nil || (u.BillingCustomerID == nil && u.Tier == nil && u.Status == nil &&
		!u.SetSubscriptionID && !u.SetPeriodEnd && u.Credits == nil && u.CreditsResetDate == nil)
}

// Fields returns the column map for the update.
func (u *Update) Fields() map[string]interface{} {
	f := make(map[string]interface{})
	if u.BillingCustomerID != nil {
		f["billing_customer_id"] = *u.BillingCustomerID
	}
	if u.Tier != nil {
		f["subscription_tier"] = *u.Tier
	}
	if u.Status != nil {
		f["subscription_status"] = *u.Status
	}
	if u.SetSubscriptionID {
		f["subscription_id"] = u.SubscriptionID
	}
	if u.SetPeriodEnd {
		f["current_period_end"] = u.CurrentPeriodEnd
	}
	if u.Credits != nil {
		f["credits"] = *u.Credits
	}
	if u.CreditsResetDate != nil {
		f["credits_reset_date"] = *u.CreditsResetDate
	}
	return f
}

// Apply returns s with the update applied.
func (u *Update) Apply(s AccountState) AccountState {
	if u == nil {
		return s
	}
	if u.BillingCustomerID != nil {
		id := *u.BillingCustomerID
		s.BillingCustomerID = &id
	}
	if u.Tier != nil {
		s.Tier = *u.Tier
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.SetSubscriptionID {
		s.SubscriptionID = u.SubscriptionID
	}
	if u.SetPeriodEnd {
		s.CurrentPeriodEnd = u.CurrentPeriodEnd
	}
	if u.Credits != nil {
		s.Credits = *u.Credits
	}
	if u.CreditsResetDate != nil {
		t := *u.CreditsResetDate
		s.CreditsResetDate = &t
	}
	return s
}

// Result is the outcome of Transition.
type Result struct {
	Outcome Outcome
	// State is the account after the update; nil when unresolved.
	State   *AccountState
	Update  *Update
	Effects []Effect
	Reason  string
}

// Has reports whether the result contains effect.
func (r Result) Has(effect Effect) bool {
	for _, e := range r.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

// Transition computes the effect of ev on the account current. It performs
// no I/O; current is nil when no account could be resolved.
func Transition(current *AccountState, ev Event, tables *entitlements.Tables, now time.Time) Result {
	if tables == nil {
		tables = entitlements.DefaultTables()
	}

	switch e := ev.(type) {
	case Unhandled:
		return Result{Outcome: OutcomeIgnored, Reason: "unhandled event type " + e.EventType}
	case SubscriptionCreated:
		return Result{Outcome: OutcomeLogged, Reason: "subscription created " + e.Subscription.ID}
	case OrderCreated:
		return Result{Outcome: OutcomeLogged, Reason: "order created " + e.OrderID}
	case CheckoutConfirmed:
		if !needsAccount(e) {
			return Result{Outcome: OutcomeLogged, Reason: "checkout without customer id or email"}
		}
	case OrderPaid:
		if !e.isSubscriptionOrder() {
			return Result{Outcome: OutcomeLogged, Reason: "order without subscription, product or customer"}
		}
	}

	if current == nil {
		ref := ev.Customer()
		return Result{
			Outcome: OutcomeUnresolved,
			Reason:  fmt.Sprintf("no account for customer %q or email %q", ref.CustomerID, ref.Email),
		}
	}

	upd := &Update{UserID: current.UserID, Reason: ev.Type()}
	var effects []Effect
	reason := ""

	switch e := ev.(type) {
	case CheckoutConfirmed:
		// linking happens below
	case SubscriptionActivated:
		effects, reason = activate(current, upd, tables, now, e.Subscription.ProductID, e.Subscription.ID, true, e.Subscription.CurrentPeriodEnd)
	case OrderPaid:
		effects, reason = activate(current, upd, tables, now, e.ProductID, e.SubscriptionID, e.CurrentPeriodEnd != nil, e.CurrentPeriodEnd)
	case SubscriptionUpdated:
		effects, reason = renew(current, upd, tables, now, e.Subscription)
	case SubscriptionCanceled:
		if current.Status == entitlements.StatusActive {
			st := entitlements.StatusCanceled
			upd.Status = &st
			effects = append(effects, EffectCancelSubscription)
		} else {
			reason = "account status is " + string(current.Status)
		}
	case SubscriptionRevoked:
		tier := entitlements.TierFree
		st := entitlements.StatusFree
		credits := tables.StoredAllowance(entitlements.TierFree)
		resetAt := now
		upd.Tier = &tier
		upd.Status = &st
		upd.SetSubscriptionID = true
		upd.SubscriptionID = nil
		upd.SetPeriodEnd = true
		upd.CurrentPeriodEnd = nil
		upd.Credits = &credits
		upd.CreditsResetDate = &resetAt
		effects = append(effects, EffectRevokeSubscription, EffectResetCredits)
	}

	if id := ev.Customer().CustomerID; id != "" && (current.BillingCustomerID == nil || *current.BillingCustomerID != id) {
		upd.BillingCustomerID = &id
		effects = append([]Effect{EffectLinkCustomer}, effects...)
	}

	if upd.IsEmpty() {
		if reason == "" {
			reason = "nothing to change"
		}
		st := *current
		return Result{Outcome: OutcomeNoop, State: &st, Reason: reason}
	}

	next := upd.Apply(*current)
	return Result{Outcome: OutcomeApplied, State: &next, Update: upd, Effects: effects, Reason: reason}
}

// activate writes tier, status, subscription and a fresh allowance. A product
// that maps to the free tier never yields an active status. Re-activating an
// account that is already active on the same tier for a period that has not
// advanced is a no-op.
func activate(current *AccountState, upd *Update, tables *entitlements.Tables, now time.Time, productID, subscriptionID string, setPeriod bool, periodEnd *time.Time) ([]Effect, string) {
	tier := tables.TierForProduct(productID)
	status := entitlements.StatusActive
	if !tier.IsPaid() {
		status = entitlements.StatusFree
	}
	if current.Status == status && current.Tier == tier && periodEnd != nil &&
		current.CurrentPeriodEnd != nil && !periodEnd.After(*current.CurrentPeriodEnd) {
		return nil, "already active for this period"
	}
	credits := tables.StoredAllowance(tier)
	resetAt := now

	upd.Tier = &tier
	upd.Status = &status
	if id := strings.TrimSpace(subscriptionID); id != "" {
		upd.SetSubscriptionID = true
		upd.SubscriptionID = &id
	}
	if setPeriod {
		upd.SetPeriodEnd = true
		upd.CurrentPeriodEnd = copyTime(periodEnd)
	}
	upd.Credits = &credits
	upd.CreditsResetDate = &resetAt
	return []Effect{EffectActivateSubscription, EffectResetCredits}, ""
}

// renew resets the allowance when the subscription is active and its period
// end moved strictly forward. A stored NULL period end always advances. An
// event without a period end never renews, and one without a product keeps
// the current tier's allowance.
func renew(current *AccountState, upd *Update, tables *entitlements.Tables, now time.Time, sub Subscription) ([]Effect, string) {
	if !strings.EqualFold(strings.TrimSpace(sub.Status), subscriptionStatusActive) {
		return nil, "subscription status is " + sub.Status
	}
	if sub.CurrentPeriodEnd == nil {
		return nil, "event has no period end"
	}
	next := *sub.CurrentPeriodEnd
	if current.CurrentPeriodEnd != nil && !next.After(*current.CurrentPeriodEnd) {
		return nil, "period end not advanced"
	}

	// The allowance follows the product on the event, so an unknown product
	// resets to the free allowance. The tier column only moves to a paid tier.
	tier := current.Tier
	allowanceTier := current.Tier
	if strings.TrimSpace(sub.ProductID) != "" {
		mapped := tables.TierForProduct(sub.ProductID)
		allowanceTier = mapped
		if mapped.IsPaid() {
			tier = mapped
		}
	}
	if tier != current.Tier {
		upd.Tier = &tier
	}
	credits := tables.StoredAllowance(allowanceTier)
	resetAt := now

	upd.SetPeriodEnd = true
	upd.CurrentPeriodEnd = &next
	upd.Credits = &credits
	upd.CreditsResetDate = &resetAt
	upd.PeriodGuard = &next
	return []Effect{EffectRenewPeriod, EffectResetCredits}, ""
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
