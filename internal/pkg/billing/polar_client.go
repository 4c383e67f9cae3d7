package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const (
	polarProductionURL = "https://api.polar.sh"
	polarSandboxURL    = "https://sandbox-api.polar.sh"
)

// PolarClient talks to the Polar API for hosted checkout and the customer portal.
type PolarClient struct {
	AccessToken string
	BaseURL     string
	SuccessURL  string

	HTTPClient *http.Client
}

// CheckoutRequest describes a hosted checkout session.
type CheckoutRequest struct {
	ProductIDs         []string
	CustomerEmail      string
	ExternalCustomerID string
	SuccessURL         string
}

// NewPolarClientFromEnv builds a client from POLAR_* settings. POLAR_SERVER
// selects "sandbox" or "production" (default).
func NewPolarClientFromEnv() *PolarClient {
	base := polarProductionURL
	if strings.EqualFold(strings.TrimSpace(env.GetEnv("POLAR_SERVER", "production")), "sandbox") {
		base = polarSandboxURL
	}
	if override := strings.TrimSpace(env.GetEnv("POLAR_API_URL", "")); override != "" {
		base = override
	}

	return &PolarClient{
		AccessToken: strings.TrimSpace(env.GetEnv("POLAR_ACCESS_TOKEN", "")),
		BaseURL:     base,
		SuccessURL:  strings.TrimSpace(env.GetEnv("POLAR_SUCCESS_URL", "/settings/billing?success=true")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckout creates a checkout session and returns its hosted URL.
func (c *PolarClient) CreateCheckout(ctx context.Context, in CheckoutRequest) (string, error) {
	products := make([]string, 0, len(in.ProductIDs))
	for _, p := range in.ProductIDs {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	if len(products) == 0 {
		return "", errors.New("at least one product is required")
	}

	successURL := strings.TrimSpace(in.SuccessURL)
	if successURL == "" {
		successURL = c.SuccessURL
	}
	body := map[string]interface{}{
		"products":    products,
		"success_url": successURL,
	}
	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		body["customer_email"] = email
	}
	if ext := strings.TrimSpace(in.ExternalCustomerID); ext != "" {
		body["external_customer_id"] = ext
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/checkouts/", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("polar checkout returned no url")
	}
	return out.URL, nil
}

// CreateCustomerPortalSession returns a portal URL for a billing customer.
func (c *PolarClient) CreateCustomerPortalSession(ctx context.Context, customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", errors.New("customer id is required")
	}

	var out struct {
		CustomerPortalURL string `json:"customer_portal_url"`
	}
	if err := c.post(ctx, "/v1/customer-sessions/", map[string]string{"customer_id": customerID}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.CustomerPortalURL) == "" {
		return "", errors.New("polar customer session returned no portal url")
	}
	return out.CustomerPortalURL, nil
}

func (c *PolarClient) post(ctx context.Context, path string, in, out interface{}) error {
	if c.AccessToken == "" {
		return errors.New("POLAR_ACCESS_TOKEN is not configured")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("polar request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}
