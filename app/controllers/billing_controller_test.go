package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/billing"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/usercontext"
)

const testWebhookSecret = "polar-test-secret"

const activePayload = `{"type":"subscription.active","data":{"id":"sub_1","status":"active","customer_id":"cus_1","customer_email":"buyer@example.com","product_id":"b8782531-38b4-4bee-8186-d7a777ba3d85","current_period_end":"2030-01-01T00:00:00Z"}}`

type fakeCheckout struct {
	lastRequest  billing.CheckoutRequest
	lastCustomer string
	err          error
}

func (f *fakeCheckout) CreateCheckout(ctx context.Context, in billing.CheckoutRequest) (string, error) {
	f.lastRequest = in
	return "https://checkout.example/session", f.err
}

func (f *fakeCheckout) CreateCustomerPortalSession(ctx context.Context, customerID string) (string, error) {
	f.lastCustomer = customerID
	return "https://portal.example/" + customerID, f.err
}

type billingFixture struct {
	app      *fiber.App
	repo     *billing.MemoryRepository
	checkout *fakeCheckout
	users    *memoryUsers
}

func newBillingFixture(t *testing.T, user usercontext.UserContext) *billingFixture {
	t.Helper()
	f := &billingFixture{
		repo:     billing.NewMemoryRepository(),
		checkout: &fakeCheckout{},
		users:    newMemoryUsers(),
	}
	f.repo.Put(billing.AccountState{UserID: 1, Email: "buyer@example.com", Tier: entitlements.TierFree, Status: entitlements.StatusFree, Credits: 12})

	bc := NewBillingController(billing.NewService(f.repo, entitlements.DefaultTables()), f.checkout, f.users, testWebhookSecret)
	f.app = newTestApp(user)
	f.app.Post("/webhooks/polar", bc.HandlePolarWebhook)
	f.app.Get("/api/billing/checkout", bc.HandleCheckout)
	f.app.Get("/api/billing/portal", bc.HandlePortal)
	return f
}

func webhookRequest(msgID, payload string, sign bool) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/polar", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(billing.HeaderWebhookID, msgID)
	req.Header.Set(billing.HeaderWebhookTimestamp, ts)
	sig := billing.SignStandardWebhook([]byte(testWebhookSecret), msgID, ts, []byte(payload))
	if !sign {
		sig = billing.SignStandardWebhook([]byte("some-other-secret"), msgID, ts, []byte(payload))
	}
	req.Header.Set(billing.HeaderWebhookSignature, "v1,"+sig)
	return req
}

func sendWebhook(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode, decodeBody(t, resp)
}

func TestPolarWebhookActivatesSubscription(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})

	status, body := sendWebhook(t, f.app, webhookRequest("msg_1", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, string(billing.OutcomeApplied), body["outcome"])

	acc, ok := f.repo.Account(1)
	require.True(t, ok)
	assert.Equal(t, entitlements.TierPro, acc.Tier)
	assert.Equal(t, entitlements.StatusActive, acc.Status)
	assert.Equal(t, 2000, acc.Credits)
	require.NotNil(t, acc.BillingCustomerID)
	assert.Equal(t, "cus_1", *acc.BillingCustomerID)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].SignatureValid)
	assert.Equal(t, string(billing.OutcomeApplied), events[0].Outcome)
	require.NotNil(t, events[0].UserID)
	assert.EqualValues(t, 1, *events[0].UserID)
}

func TestPolarWebhookDuplicateDelivery(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})

	status, _ := sendWebhook(t, f.app, webhookRequest("msg_1", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	resets := f.repo.Resets()

	status, body := sendWebhook(t, f.app, webhookRequest("msg_1", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, resets, f.repo.Resets())
	assert.Len(t, f.repo.Events(), 1)
}

func TestPolarWebhookRejectsBadSignature(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})

	status, body := sendWebhook(t, f.app, webhookRequest("msg_bad", activePayload, false))
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_signature", body["error"])

	acc, _ := f.repo.Account(1)
	assert.Equal(t, entitlements.TierFree, acc.Tier)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].SignatureValid)
	assert.Equal(t, models.WebhookOutcomeFailed, events[0].Outcome)
}

func TestPolarWebhookMissingHeaders(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/polar", strings.NewReader(activePayload))
	req.Header.Set("Content-Type", "application/json")
	status, body := sendWebhook(t, f.app, req)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_signature", body["error"])
	assert.Empty(t, f.repo.Events())
}

func TestPolarWebhookSignedDeliveryReplacesForgedRow(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})
	forged := `{"type":"subscription.revoked","data":{"id":"sub_1","customer_id":"cus_1","customer_email":"buyer@example.com"}}`

	status, _ := sendWebhook(t, f.app, webhookRequest("msg_42", forged, false))
	require.Equal(t, http.StatusUnauthorized, status)

	status, body := sendWebhook(t, f.app, webhookRequest("msg_42", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(billing.OutcomeApplied), body["outcome"])

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].SignatureValid)
	assert.Equal(t, activePayload, events[0].PayloadJSON)
	assert.Equal(t, string(billing.OutcomeApplied), events[0].Outcome)
	acc, _ := f.repo.Account(1)
	assert.Equal(t, entitlements.TierPro, acc.Tier)
}

func TestPolarWebhookInvalidPayload(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})

	status, body := sendWebhook(t, f.app, webhookRequest("msg_2", `{"data":{}}`, true))
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestPolarWebhookIgnoredEvents(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unhandled type", `{"type":"benefit.created","data":{"id":"b_1"}}`},
		{"unknown customer", `{"type":"subscription.revoked","data":{"id":"sub_9","customer_id":"cus_ghost","customer_email":"ghost@example.com"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBillingFixture(t, usercontext.UserContext{})
			status, body := sendWebhook(t, f.app, webhookRequest("msg_"+tt.name, tt.payload, true))
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, true, body["ignored"])
			acc, _ := f.repo.Account(1)
			assert.Equal(t, 12, acc.Credits)
		})
	}
}

func TestPolarWebhookProcessingFailureIsAbsorbed(t *testing.T) {
	f := newBillingFixture(t, usercontext.UserContext{})
	f.repo.ApplyErr = errors.New("deadlock found when trying to get lock")

	status, body := sendWebhook(t, f.app, webhookRequest("msg_fail", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.WebhookOutcomeFailed, body["outcome"])

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.WebhookOutcomeFailed, events[0].Outcome)
	assert.Contains(t, events[0].ProcessingError, "deadlock")
	acc, _ := f.repo.Account(1)
	assert.Equal(t, entitlements.TierFree, acc.Tier)

	// a redelivery of a failed event is processed again
	f.repo.ApplyErr = nil
	status, body = sendWebhook(t, f.app, webhookRequest("msg_fail", activePayload, true))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(billing.OutcomeApplied), body["outcome"])
	acc, _ = f.repo.Account(1)
	assert.Equal(t, entitlements.TierPro, acc.Tier)
	assert.Len(t, f.repo.Events(), 1)
}

func TestHandleCheckout(t *testing.T) {
	f := newBillingFixture(t, signedIn(7))

	resp := doJSON(t, f.app, http.MethodGet, "/api/billing/checkout?products=prod_a,%20prod_b", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://checkout.example/session", resp.Header.Get("Location"))
	assert.Equal(t, []string{"prod_a", "prod_b"}, f.checkout.lastRequest.ProductIDs)
	assert.Equal(t, "tester@example.com", f.checkout.lastRequest.CustomerEmail)
	assert.Equal(t, "7", f.checkout.lastRequest.ExternalCustomerID)

	resp = doJSON(t, f.app, http.MethodGet, "/api/billing/checkout", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing products", decodeBody(t, resp)["error"])
}

func TestHandlePortal(t *testing.T) {
	f := newBillingFixture(t, signedIn(1))
	f.users.add(models.User{ID: 1, Email: "buyer@example.com"})

	resp := doJSON(t, f.app, http.MethodGet, "/api/billing/portal", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No billing customer linked", decodeBody(t, resp)["error"])

	customer := "cus_1"
	f.users.add(models.User{ID: 1, Email: "buyer@example.com", BillingCustomerID: &customer})
	resp = doJSON(t, f.app, http.MethodGet, "/api/billing/portal", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://portal.example/cus_1", resp.Header.Get("Location"))

	f.checkout.err = errors.New("polar down")
	resp = doJSON(t, f.app, http.MethodGet, "/api/billing/portal", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
