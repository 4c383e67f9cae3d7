package billing

import (
	"strings"
	"time"
)

// Provider event type names as sent by Polar.
const (
	EventCheckoutUpdated       = "checkout.updated"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionActive    = "subscription.active"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventSubscriptionRevoked   = "subscription.revoked"
	EventOrderPaid             = "order.paid"
	EventOrderCreated          = "order.created"
	checkoutStatusConfirmed    = "confirmed"
	subscriptionStatusActive   = "active"
	subscriptionStatusCanceled = "canceled"
)

// CustomerRef identifies the billing customer an event is about.
type CustomerRef struct {
	CustomerID string
	Email      string
}

// Normalized returns the reference with trimmed id and lower-cased email.
func (r CustomerRef) Normalized() CustomerRef {
	return CustomerRef{
		CustomerID: strings.TrimSpace(r.CustomerID),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
	}
}

// Event is one inbound billing event. The concrete types below are the only
// implementations.
type Event interface {
	// Type is the provider event type, e.g. "subscription.updated".
	Type() string
	Customer() CustomerRef
	isEvent()
}

// Subscription is the subscription snapshot carried by subscription events.
type Subscription struct {
	ID               string
	ProductID        string
	Status           string
	CurrentPeriodEnd *time.Time
}

// CheckoutConfirmed links a billing customer to the account with the same email.
type CheckoutConfirmed struct {
	CheckoutID string
	Ref        CustomerRef
}

type SubscriptionCreated struct {
	Subscription Subscription
	Ref          CustomerRef
}

type SubscriptionActivated struct {
	Subscription Subscription
	Ref          CustomerRef
}

type SubscriptionUpdated struct {
	Subscription Subscription
	Ref          CustomerRef
}

type SubscriptionCanceled struct {
	Subscription Subscription
	Ref          CustomerRef
}

type SubscriptionRevoked struct {
	Subscription Subscription
	Ref          CustomerRef
}

// OrderPaid is a paid order. Only orders that reference a subscription and a
// product change the account.
type OrderPaid struct {
	OrderID          string
	ProductID        string
	SubscriptionID   string
	CurrentPeriodEnd *time.Time
	Ref              CustomerRef
}

type OrderCreated struct {
	OrderID string
	Ref     CustomerRef
}

// Unhandled is any event type the reconciler does not act on.
type Unhandled struct {
	EventType string
	Ref       CustomerRef
}

func (e CheckoutConfirmed) Type() string     { return EventCheckoutUpdated }
func (e SubscriptionCreated) Type() string   { return EventSubscriptionCreated }
func (e SubscriptionActivated) Type() string { return EventSubscriptionActive }
func (e SubscriptionUpdated) Type() string   { return EventSubscriptionUpdated }
func (e SubscriptionCanceled) Type() string  { return EventSubscriptionCanceled }
func (e SubscriptionRevoked) Type() string   { return EventSubscriptionRevoked }
func (e OrderPaid) Type() string             { return EventOrderPaid }
func (e OrderCreated) Type() string          { return EventOrderCreated }
func (e Unhandled) Type() string             { return e.EventType }

func (e CheckoutConfirmed) Customer() CustomerRef     { return e.Ref.Normalized() }
func (e SubscriptionCreated) Customer() CustomerRef   { return e.Ref.Normalized() }
func (e SubscriptionActivated) Customer() CustomerRef { return e.Ref.Normalized() }
func (e SubscriptionUpdated) Customer() CustomerRef   { return e.Ref.Normalized() }
func (e SubscriptionCanceled) Customer() CustomerRef  { return e.Ref.Normalized() }
func (e SubscriptionRevoked) Customer() CustomerRef   { return e.Ref.Normalized() }
func (e OrderPaid) Customer() CustomerRef             { return e.Ref.Normalized() }
func (e OrderCreated) Customer() CustomerRef          { return e.Ref.Normalized() }
func (e Unhandled) Customer() CustomerRef             { return e.Ref.Normalized() }

func (CheckoutConfirmed) isEvent()     {}
func (SubscriptionCreated) isEvent()   {}
func (SubscriptionActivated) isEvent() {}
func (SubscriptionUpdated) isEvent()   {}
func (SubscriptionCanceled) isEvent()  {}
func (SubscriptionRevoked) isEvent()   {}
func (OrderPaid) isEvent()             {}
func (OrderCreated) isEvent()          {}
func (Unhandled) isEvent()             {}

// needsAccount reports whether the event can change an account and must
// therefore be resolved against the store.
func needsAccount(ev Event) bool {
	switch e := ev.(type) {
	case CheckoutConfirmed:
		r := e.Customer()
		return r.CustomerID != "" && r.Email != ""
	case SubscriptionActivated, SubscriptionUpdated, SubscriptionCanceled, SubscriptionRevoked:
		return true
	case OrderPaid:
		return e.isSubscriptionOrder()
	default:
		return false
	}
}

func (e OrderPaid) isSubscriptionOrder() bool {
	return strings.TrimSpace(e.SubscriptionID) != "" &&
		strings.TrimSpace(e.ProductID) != "" &&
		strings.TrimSpace(e.Ref.CustomerID) != ""
}
