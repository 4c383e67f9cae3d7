package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

var ErrEmptyToken = errors.New("hCaptcha token is empty")

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks hCaptcha response tokens against the siteverify endpoint.
type Verifier struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		Secret:     secret,
		VerifyURL:  DefaultVerifyURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewVerifierFromEnv returns nil when HCAPTCHA_SECRET is unset, which
// leaves registration open.
func NewVerifierFromEnv() *Verifier {
	secret := env.GetEnv("HCAPTCHA_SECRET", "")
	if secret == "" {
		return nil
	}
	return NewVerifier(secret)
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}

	form := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}
	if !response.Success {
		if len(response.ErrorCodes) > 0 {
			return fmt.Errorf("hCaptcha validation failed: %s", strings.Join(response.ErrorCodes, ", "))
		}
		return errors.New("hCaptcha validation failed")
	}
	return nil
}
