package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Standard Webhooks header names used by Polar.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"

	webhookTolerance = 5 * time.Minute
)

var (
	ErrMissingSignatureHeaders = errors.New("missing webhook signature headers")
	ErrWebhookSecretMissing    = errors.New("webhook secret is not configured")
	ErrTimestampOutOfTolerance = errors.New("webhook timestamp outside tolerance")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
)

// VerifyStandardWebhook checks a Standard Webhooks signature: base64
// HMAC-SHA256 over "id.timestamp.body", sent as a space separated list of
// "v1,<sig>" entries. Secrets prefixed with "whsec_" are base64 decoded,
// any other secret is used as raw bytes.
func VerifyStandardWebhook(payload []byte, msgID, timestamp, signatureHeader, secret string, now time.Time) error {
	msgID = strings.TrimSpace(msgID)
	timestamp = strings.TrimSpace(timestamp)
	signatureHeader = strings.TrimSpace(signatureHeader)
	if msgID == "" || timestamp == "" || signatureHeader == "" {
		return ErrMissingSignatureHeaders
	}

	key, err := webhookKey(secret)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrTimestampOutOfTolerance
	}
	sent := time.Unix(ts, 0)
	if now.Sub(sent) > webhookTolerance || sent.Sub(now) > webhookTolerance {
		return ErrTimestampOutOfTolerance
	}

	expected := SignStandardWebhook(key, msgID, timestamp, payload)
	for _, candidate := range strings.Fields(signatureHeader) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignStandardWebhook returns the base64 signature for a message.
func SignStandardWebhook(key []byte, msgID, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if rest, ok := strings.CutPrefix(secret, "whsec_"); ok {
		key, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, errors.New("webhook secret is not valid base64")
		}
		return key, nil
	}
	return []byte(secret), nil
}
