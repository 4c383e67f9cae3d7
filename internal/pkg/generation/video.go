package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const (
	VideoStatusQueued     = "QUEUED"
	VideoStatusInQueue    = "IN_QUEUE"
	VideoStatusInProgress = "IN_PROGRESS"
	VideoStatusCompleted  = "COMPLETED"
	VideoStatusFailed     = "FAILED"

	// The workflow holds a status request open for up to 250s.
	DefaultVideoStatusTimeout = 260 * time.Second
)

var ErrWorkflowNotConfigured = errors.New("video workflow URLs are not configured")

// VideoRequest is the body sent to the video workflow.
type VideoRequest struct {
	ImageURL             string `json:"image_url"`
	VideoURL             string `json:"video_url"`
	Prompt               string `json:"prompt,omitempty"`
	CharacterOrientation string `json:"character_orientation"`
}

// VideoAsset is the finished video as reported by the workflow.
type VideoAsset struct {
	URL         string `json:"url"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

// WorkflowStatus is one status answer of the workflow.
type WorkflowStatus struct {
	Status        string      `json:"status"`
	QueuePosition *int        `json:"queue_position,omitempty"`
	Message       string      `json:"message,omitempty"`
	Video         *VideoAsset `json:"video,omitempty"`
}

// VideoWorkflow starts and tracks motion video jobs.
type VideoWorkflow interface {
	Submit(ctx context.Context, req VideoRequest) (string, error)
	Status(ctx context.Context, requestID string) (WorkflowStatus, error)
}

// WorkflowClient talks to the n8n video workflow webhooks.
type WorkflowClient struct {
	SubmitURL     string
	StatusURL     string
	StatusTimeout time.Duration
	HTTPClient    *http.Client
}

// NewWorkflowClientFromEnv reads VIDEO_SUBMIT_URL and VIDEO_STATUS_URL.
func NewWorkflowClientFromEnv() *WorkflowClient {
	return &WorkflowClient{
		SubmitURL:     env.GetEnv("VIDEO_SUBMIT_URL", ""),
		StatusURL:     env.GetEnv("VIDEO_STATUS_URL", ""),
		StatusTimeout: DefaultVideoStatusTimeout,
		HTTPClient:    &http.Client{},
	}
}

func (c *WorkflowClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type workflowSubmitResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// Submit starts a video job and returns its request id.
func (c *WorkflowClient) Submit(ctx context.Context, req VideoRequest) (string, error) {
	if c.SubmitURL == "" {
		return "", ErrWorkflowNotConfigured
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SubmitURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Submit failed: %s", http.StatusText(resp.StatusCode)),
		}
	}

	var out workflowSubmitResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "Failed to submit request"}
	}
	if !out.Success || strings.TrimSpace(out.RequestID) == "" {
		msg := out.Message
		if msg == "" {
			msg = "Failed to submit request"
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	return out.RequestID, nil
}

// Status asks the workflow for the state of requestID. The call is bounded
// by StatusTimeout because the workflow long-polls.
func (c *WorkflowClient) Status(ctx context.Context, requestID string) (WorkflowStatus, error) {
	if c.StatusURL == "" {
		return WorkflowStatus{}, ErrWorkflowNotConfigured
	}
	timeout := c.StatusTimeout
	if timeout <= 0 {
		timeout = DefaultVideoStatusTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.StatusURL
	if strings.Contains(target, "?") {
		target += "&"
	} else {
		target += "?"
	}
	target += "request_id=" + url.QueryEscape(requestID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return WorkflowStatus{}, err
	}
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return WorkflowStatus{}, &ProviderError{Message: videoStatusTimeoutMessage, Err: context.DeadlineExceeded}
		}
		return WorkflowStatus{}, &ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WorkflowStatus{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Status check failed: %s", http.StatusText(resp.StatusCode)),
		}
	}

	var st WorkflowStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return WorkflowStatus{}, &ProviderError{StatusCode: resp.StatusCode, Message: "invalid status response: " + err.Error()}
	}
	return st, nil
}
