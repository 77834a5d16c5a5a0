package http_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/followup/pkg/controller/http"
)

// computeSlackSignature computes the Slack signature for testing
func computeSlackSignature(signingSecret, timestamp, body string) string {
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func TestVerifySlackSignature(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`payload=%7B%22type%22%3A%22block_actions%22%7D`)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	testCases := []struct {
		name      string
		timestamp string
		signature string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			timestamp: now,
			signature: computeSlackSignature(signingSecret, now, string(body)),
		},
		{
			name:      "invalid signature",
			timestamp: now,
			signature: "v0=invalid_signature",
			wantErr:   true,
		},
		{
			name:      "missing timestamp",
			timestamp: "",
			signature: computeSlackSignature(signingSecret, "123456", string(body)),
			wantErr:   true,
		},
		{
			name:      "missing signature",
			timestamp: now,
			wantErr:   true,
		},
		{
			name:      "invalid timestamp format",
			timestamp: "not-a-number",
			signature: computeSlackSignature(signingSecret, "not-a-number", string(body)),
			wantErr:   true,
		},
		{
			name:      "wrong secret",
			timestamp: now,
			signature: computeSlackSignature("wrong-secret", now, string(body)),
			wantErr:   true,
		},
		{
			name:      "different body",
			timestamp: now,
			signature: computeSlackSignature(signingSecret, now, "different body"),
			wantErr:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := httpctrl.VerifySlackSignature(signingSecret, tc.timestamp, tc.signature, body)
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}

	t.Run("timestamp too old", func(t *testing.T) {
		// limit is 5 minutes
		old := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		signature := computeSlackSignature(signingSecret, old, string(body))
		gt.Error(t, httpctrl.VerifySlackSignature(signingSecret, old, signature, body))
	})
}

func TestSlackSignatureMiddleware(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := `payload=test`

	var received []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		received = data
		w.WriteHeader(http.StatusOK)
	})
	handler := httpctrl.SlackSignatureMiddleware(signingSecret)(next)

	t.Run("valid request reaches handler with body intact", func(t *testing.T) {
		received = nil
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", bytes.NewBufferString(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", computeSlackSignature(signingSecret, timestamp, body))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, string(received)).Equal(body)
	})

	t.Run("invalid request is rejected", func(t *testing.T) {
		received = nil
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", bytes.NewBufferString(body))
		req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
		req.Header.Set("X-Slack-Signature", "v0=bad")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
		gt.Value(t, received).Nil()
	})
}
