package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const (
	DefaultFalQueueURL = "https://queue.fal.run"

	ModelCreate = "fal-ai/nano-banana-pro"
	ModelEdit   = "fal-ai/nano-banana-pro/edit"

	QueueStatusInQueue    = "IN_QUEUE"
	QueueStatusInProgress = "IN_PROGRESS"
	QueueStatusCompleted  = "COMPLETED"
	QueueStatusFailed     = "FAILED"
)

// Ticket identifies a request accepted by the fal.ai queue.
type Ticket struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// QueueStatus is one status poll of a queued request.
type QueueStatus struct {
	Status        string
	QueuePosition *int
	Error         string
}

// QueueProvider is the part of the fal.ai queue API the gateway needs.
type QueueProvider interface {
	Submit(ctx context.Context, model string, input interface{}) (Ticket, error)
	Status(ctx context.Context, statusURL string) (QueueStatus, error)
	Result(ctx context.Context, responseURL string) ([]byte, error)
}

// FalClient talks to the fal.ai queue over HTTP.
type FalClient struct {
	Key        string
	BaseURL    string
	HTTPClient *http.Client
}

// NewFalClientFromEnv builds a client from FAL_KEY and FAL_QUEUE_URL.
func NewFalClientFromEnv() *FalClient {
	return &FalClient{
		Key:        env.GetEnv("FAL_KEY", ""),
		BaseURL:    env.GetEnv("FAL_QUEUE_URL", DefaultFalQueueURL),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *FalClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *FalClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	if strings.TrimSpace(c.Key) == "" {
		return nil, ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Key "+c.Key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Submit queues input for model and returns the polling URLs.
func (c *FalClient) Submit(ctx context.Context, model string, input interface{}) (Ticket, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return Ticket{}, fmt.Errorf("encode fal.ai input: %w", err)
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultFalQueueURL
	}
	req, err := c.newRequest(ctx, http.MethodPost, base+"/"+strings.TrimLeft(model, "/"), bytes.NewReader(payload))
	if err != nil {
		return Ticket{}, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Ticket{}, &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ticket{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("fal.ai error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var t Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return Ticket{}, &ProviderError{StatusCode: resp.StatusCode, Message: "invalid queue response: " + err.Error()}
	}
	if t.StatusURL == "" || t.ResponseURL == "" {
		return Ticket{}, &ProviderError{StatusCode: resp.StatusCode, Message: "Missing status_url or response_url in queue response"}
	}
	return t, nil
}

type rawQueueStatus struct {
	Status        string          `json:"status"`
	QueuePosition *int            `json:"queue_position"`
	Error         json.RawMessage `json:"error"`
}

// Status fetches the current state of a queued request.
func (c *FalClient) Status(ctx context.Context, statusURL string) (QueueStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return QueueStatus{}, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return QueueStatus{}, &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueueStatus{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Status check failed: %d", resp.StatusCode),
		}
	}

	var raw rawQueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return QueueStatus{}, &ProviderError{StatusCode: resp.StatusCode, Message: "invalid status response: " + err.Error()}
	}
	return QueueStatus{
		Status:        raw.Status,
		QueuePosition: raw.QueuePosition,
		Error:         providerReason(raw.Error),
	}, nil
}

// Result downloads the output document of a completed request.
func (c *FalClient) Result(ctx context.Context, responseURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Result fetch failed: %d", resp.StatusCode),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return body, nil
}

// providerReason turns the status error field into text. fal.ai sends either
// a string or an object.
func providerReason(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
