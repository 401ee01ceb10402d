package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultNotifyTimeout = 15 * time.Second

// HTTPSNotifier posts JSON payloads to a downstream HTTPS endpoint.
type HTTPSNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewHTTPSNotifier builds a notifier. With a secret, every body is signed
// into the X-Signature header as hex HMAC-SHA256.
func NewHTTPSNotifier(url, secret string, client *http.Client) (*HTTPSNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("notify URL is required")
	}

	if client == nil {
		client = &http.Client{Timeout: defaultNotifyTimeout}
	}

	return &HTTPSNotifier{
		url:        url,
		secret:     secret,
		httpClient: client,
	}, nil
}

// Notify transmits payload as JSON, tagged with the event name.
func (h *HTTPSNotifier) Notify(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event", event)
	if h.secret != "" {
		req.Header.Set("X-Signature", Sign(h.secret, body))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notify endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Signature header value in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
