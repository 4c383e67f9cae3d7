package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload is returned for webhook bodies that are not a Polar event.
var ErrInvalidPayload = errors.New("invalid webhook payload")

type polarEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type polarCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type polarSubscriptionRef struct {
	ID               string     `json:"id"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

type polarData struct {
	ID               string                `json:"id"`
	Status           string                `json:"status"`
	CustomerID       string                `json:"customer_id"`
	CustomerEmail    string                `json:"customer_email"`
	Customer         *polarCustomer        `json:"customer"`
	ProductID        string                `json:"product_id"`
	CurrentPeriodEnd *time.Time            `json:"current_period_end"`
	SubscriptionID   string                `json:"subscription_id"`
	Subscription     *polarSubscriptionRef `json:"subscription"`
}

func (d polarData) ref() CustomerRef {
	ref := CustomerRef{CustomerID: d.CustomerID, Email: d.CustomerEmail}
	if d.Customer != nil {
		if ref.CustomerID == "" {
			ref.CustomerID = d.Customer.ID
		}
		if strings.TrimSpace(ref.Email) == "" {
			ref.Email = d.Customer.Email
		}
	}
	return ref.Normalized()
}

func (d polarData) subscription() Subscription {
	return Subscription{
		ID:               strings.TrimSpace(d.ID),
		ProductID:        strings.TrimSpace(d.ProductID),
		Status:           strings.ToLower(strings.TrimSpace(d.Status)),
		CurrentPeriodEnd: d.CurrentPeriodEnd,
	}
}

// ParsePolarEvent decodes a Polar webhook body into an Event. Types the
// reconciler does not act on become Unhandled.
func ParsePolarEvent(raw []byte) (Event, error) {
	var env polarEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	eventType := strings.TrimSpace(env.Type)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	var d polarData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
		}
	} else if isKnownPolarType(eventType) {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}

	switch eventType {
	case EventCheckoutUpdated:
		if strings.EqualFold(strings.TrimSpace(d.Status), checkoutStatusConfirmed) {
			return CheckoutConfirmed{CheckoutID: d.ID, Ref: d.ref()}, nil
		}
		return Unhandled{EventType: eventType, Ref: d.ref()}, nil
	case EventSubscriptionCreated:
		return SubscriptionCreated{Subscription: d.subscription(), Ref: d.ref()}, nil
	case EventSubscriptionActive:
		return SubscriptionActivated{Subscription: d.subscription(), Ref: d.ref()}, nil
	case EventSubscriptionUpdated:
		return SubscriptionUpdated{Subscription: d.subscription(), Ref: d.ref()}, nil
	case EventSubscriptionCanceled:
		return SubscriptionCanceled{Subscription: d.subscription(), Ref: d.ref()}, nil
	case EventSubscriptionRevoked:
		return SubscriptionRevoked{Subscription: d.subscription(), Ref: d.ref()}, nil
	case EventOrderPaid:
		ev := OrderPaid{
			OrderID:        d.ID,
			ProductID:      strings.TrimSpace(d.ProductID),
			SubscriptionID: strings.TrimSpace(d.SubscriptionID),
			Ref:            d.ref(),
		}
		if d.Subscription != nil {
			if ev.SubscriptionID == "" {
				ev.SubscriptionID = strings.TrimSpace(d.Subscription.ID)
			}
			ev.CurrentPeriodEnd = d.Subscription.CurrentPeriodEnd
		}
		return ev, nil
	case EventOrderCreated:
		return OrderCreated{OrderID: d.ID, Ref: d.ref()}, nil
	default:
		return Unhandled{EventType: eventType, Ref: d.ref()}, nil
	}
}

func isKnownPolarType(t string) bool {
	switch t {
	case EventCheckoutUpdated, EventSubscriptionCreated, EventSubscriptionActive,
		EventSubscriptionUpdated, EventSubscriptionCanceled, EventSubscriptionRevoked,
		EventOrderPaid, EventOrderCreated:
		return true
	default:
		return false
	}
}
