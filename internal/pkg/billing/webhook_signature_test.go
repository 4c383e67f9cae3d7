package billing

import (
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestVerifyStandardWebhook(t *testing.T) {
	payload := []byte(`{"type":"order.paid"}`)
	now := time.Unix(1767225600, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	rawKey := []byte("polar-secret-bytes")
	whsec := "whsec_" + base64.StdEncoding.EncodeToString(rawKey)
	valid := "v1," + SignStandardWebhook(rawKey, "msg_1", ts, payload)

	tests := []struct {
		name    string
		id      string
		ts      string
		sig     string
		secret  string
		now     time.Time
		wantErr error
	}{
		{"whsec secret", "msg_1", ts, valid, whsec, now, nil},
		{"raw secret", "msg_1", ts, valid, string(rawKey), now, nil},
		{"one of many signatures", "msg_1", ts, "v1,Zm9v " + valid, whsec, now, nil},
		{"tampered id", "msg_2", ts, valid, whsec, now, ErrInvalidSignature},
		{"wrong version", "msg_1", ts, "v2," + valid[3:], whsec, now, ErrInvalidSignature},
		{"stale timestamp", "msg_1", ts, valid, whsec, now.Add(6 * time.Minute), ErrTimestampOutOfTolerance},
		{"future timestamp", "msg_1", ts, valid, whsec, now.Add(-6 * time.Minute), ErrTimestampOutOfTolerance},
		{"garbage timestamp", "msg_1", "yesterday", valid, whsec, now, ErrTimestampOutOfTolerance},
		{"missing header", "", ts, valid, whsec, now, ErrMissingSignatureHeaders},
		{"missing secret", "msg_1", ts, valid, "", now, ErrWebhookSecretMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyStandardWebhook(payload, tt.id, tt.ts, tt.sig, tt.secret, tt.now)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyStandardWebhookTamperedBody(t *testing.T) {
	key := []byte("k")
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := "v1," + SignStandardWebhook(key, "m", ts, []byte(`{"a":1}`))

	if err := VerifyStandardWebhook([]byte(`{"a":2}`), "m", ts, sig, "k", now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("error = %v, want ErrInvalidSignature", err)
	}
}
