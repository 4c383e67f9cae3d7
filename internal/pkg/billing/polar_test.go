package billing

import (
	"errors"
	"testing"
	"time"
)

func TestParsePolarEvent(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, ev Event)
	}{
		{
			name: "confirmed checkout",
			body: `{"type":"checkout.updated","data":{"id":"co_1","status":"confirmed","customer_id":"cus_1","customer_email":"A@B.com"}}`,
			check: func(t *testing.T, ev Event) {
				c, ok := ev.(CheckoutConfirmed)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if c.Customer().CustomerID != "cus_1" || c.Customer().Email != "a@b.com" {
					t.Fatalf("unexpected customer %+v", c.Customer())
				}
			},
		},
		{
			name: "open checkout is unhandled",
			body: `{"type":"checkout.updated","data":{"id":"co_1","status":"open","customer_id":"cus_1"}}`,
			check: func(t *testing.T, ev Event) {
				if _, ok := ev.(Unhandled); !ok {
					t.Fatalf("got %T", ev)
				}
			},
		},
		{
			name: "subscription updated",
			body: `{"type":"subscription.updated","data":{"id":"sub_1","status":"active","customer_id":"cus_1","product_id":"p_1","current_period_end":"2026-04-01T00:00:00Z","customer":{"email":"x@y.com"}}}`,
			check: func(t *testing.T, ev Event) {
				u, ok := ev.(SubscriptionUpdated)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
				if u.Subscription.CurrentPeriodEnd == nil || !u.Subscription.CurrentPeriodEnd.Equal(want) {
					t.Fatalf("period end = %v", u.Subscription.CurrentPeriodEnd)
				}
				if u.Subscription.Status != "active" || u.Subscription.ProductID != "p_1" {
					t.Fatalf("unexpected subscription %+v", u.Subscription)
				}
				if u.Customer().Email != "x@y.com" {
					t.Fatalf("nested customer email not used: %+v", u.Customer())
				}
			},
		},
		{
			name: "null period end",
			body: `{"type":"subscription.active","data":{"id":"sub_1","customer_id":"cus_1","product_id":"p","current_period_end":null}}`,
			check: func(t *testing.T, ev Event) {
				a, ok := ev.(SubscriptionActivated)
				if !ok || a.Subscription.CurrentPeriodEnd != nil {
					t.Fatalf("got %T %+v", ev, ev)
				}
			},
		},
		{
			name: "order paid with nested subscription",
			body: `{"type":"order.paid","data":{"id":"ord_1","customer_id":"cus_1","product_id":"p","subscription":{"id":"sub_2","current_period_end":"2026-05-01T00:00:00Z"},"customer":{"email":"u@x.com"}}}`,
			check: func(t *testing.T, ev Event) {
				o, ok := ev.(OrderPaid)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if o.SubscriptionID != "sub_2" || o.CurrentPeriodEnd == nil || o.Customer().Email != "u@x.com" {
					t.Fatalf("unexpected order %+v", o)
				}
			},
		},
		{
			name: "order paid prefers subscription_id",
			body: `{"type":"order.paid","data":{"id":"ord_1","customer_id":"cus_1","product_id":"p","subscription_id":"sub_top","subscription":{"id":"sub_nested"}}}`,
			check: func(t *testing.T, ev Event) {
				if o := ev.(OrderPaid); o.SubscriptionID != "sub_top" {
					t.Fatalf("subscription id = %s", o.SubscriptionID)
				}
			},
		},
		{
			name: "unknown type",
			body: `{"type":"benefit.created","data":{"id":"b"}}`,
			check: func(t *testing.T, ev Event) {
				u, ok := ev.(Unhandled)
				if !ok || u.Type() != "benefit.created" {
					t.Fatalf("got %T %+v", ev, ev)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParsePolarEvent([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestParsePolarEventInvalid(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"data":{}}`,
		`{"type":"subscription.active"}`,
		`{"type":"subscription.active","data":"oops"}`,
	} {
		if _, err := ParsePolarEvent([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("ParsePolarEvent(%s) error = %v, want ErrInvalidPayload", body, err)
		}
	}
}
