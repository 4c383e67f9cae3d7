package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPolarClientCreateCheckout(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkouts/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"co_1","url":"https://polar.test/checkout/co_1"}`))
	}))
	defer srv.Close()

	c := &PolarClient{AccessToken: "tok", BaseURL: srv.URL, SuccessURL: "https://app.test/ok", HTTPClient: srv.Client()}
	url, err := c.CreateCheckout(context.Background(), CheckoutRequest{ProductIDs: []string{" p1 ", ""}, CustomerEmail: "u@x.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://polar.test/checkout/co_1" {
		t.Fatalf("url = %s", url)
	}
	products, _ := got["products"].([]interface{})
	if len(products) != 1 || products[0] != "p1" {
		t.Fatalf("products = %v", got["products"])
	}
	if got["success_url"] != "https://app.test/ok" || got["customer_email"] != "u@x.com" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestPolarClientPortalSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/customer-sessions/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["customer_id"] != "cus_1" {
			t.Errorf("customer_id = %q", body["customer_id"])
		}
		_, _ = w.Write([]byte(`{"token":"t","customer_portal_url":"https://polar.test/portal"}`))
	}))
	defer srv.Close()

	c := &PolarClient{AccessToken: "tok", BaseURL: srv.URL, HTTPClient: srv.Client()}
	url, err := c.CreateCustomerPortalSession(context.Background(), "cus_1")
	if err != nil || url != "https://polar.test/portal" {
		t.Fatalf("url=%q err=%v", url, err)
	}
}

func TestPolarClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"bad product"}`))
	}))
	defer srv.Close()

	c := &PolarClient{AccessToken: "tok", BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.CreateCheckout(context.Background(), CheckoutRequest{ProductIDs: []string{"p"}}); err == nil {
		t.Fatalf("expected error for 422")
	}
	if _, err := c.CreateCheckout(context.Background(), CheckoutRequest{}); err == nil {
		t.Fatalf("expected error without products")
	}
	if _, err := c.CreateCustomerPortalSession(context.Background(), " "); err == nil {
		t.Fatalf("expected error without customer id")
	}

	unconfigured := &PolarClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := unconfigured.CreateCustomerPortalSession(context.Background(), "cus_1"); err == nil {
		t.Fatalf("expected error without access token")
	}
}
