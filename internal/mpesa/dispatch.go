package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	backoffBase = time.Second
	backoffCap  = 10 * time.Second
)

// Backoff is the wait after a failed attempt: min(1s * 2^(attempt-1), 10s).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		return backoffCap
	}
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// outcome is the state an attempt ends in.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeTerminal
)

type attemptsKey struct{}

// WithMaxAttempts caps the attempts Send makes for calls made under ctx,
// overriding Config.MaxRetries. Values below 1 are ignored.
func WithMaxAttempts(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptsKey{}, n)
}

// MaxAttempts reports the cap set by WithMaxAttempts, if any.
func MaxAttempts(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(attemptsKey{}).(int)
	return n, ok && n >= 1
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Dispatcher performs bearer-authenticated POSTs with a per-attempt timeout
// and retries server errors with capped exponential backoff. Attempts are
// strictly sequential.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
	tokens     tokenSource
	logger     *zap.Logger
	debug      bool
	backoff    func(attempt int) time.Duration
}

// Send posts body to path and decodes a 2xx response into out (which may be
// nil). Gateway failures are *Error values; 5xx responses are retried until
// maxRetries attempts (or the WithMaxAttempts cap) have been made and the
// last error is returned.
func (d *Dispatcher) Send(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	maxAttempts := d.maxRetries
	if n, ok := MaxAttempts(ctx); ok {
		maxAttempts = n
	}

	for attempt := 1; ; attempt++ {
		status, data, state, err := d.attempt(ctx, attempt, path, payload)
		switch state {
		case outcomeSuccess:
			if out == nil || len(bytes.TrimSpace(data)) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return &Error{
					Kind:       KindAPI,
					StatusCode: status,
					Body:       string(data),
					Message:    fmt.Sprintf("malformed response: %v", err),
				}
			}
			return nil
		case outcomeTerminal:
			return err
		}

		if attempt >= maxAttempts {
			return err
		}

		wait := d.backoff(attempt)
		d.logger.Warn("mpesa request failed; retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, attempt int, path string, payload []byte) (int, []byte, outcome, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return 0, nil, outcomeTerminal, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, outcomeTerminal, &Error{Kind: KindAPI, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if d.debug {
		d.logger.Debug("mpesa request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.ByteString("body", payload),
		)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, nil, outcomeTerminal, d.localError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, outcomeTerminal, d.localError(ctx, err)
	}

	if d.debug {
		d.logger.Debug("mpesa response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data),
		)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, data, outcomeSuccess, nil
	}

	apiErr := responseError(resp.StatusCode, data)
	if apiErr.Retryable() {
		return resp.StatusCode, data, outcomeRetry, apiErr
	}
	return resp.StatusCode, data, outcomeTerminal, apiErr
}

func (d *Dispatcher) localError(ctx context.Context, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindAPI, Message: fmt.Sprintf("timed out after %dms", d.timeout.Milliseconds())}
	}
	return &Error{Kind: KindAPI, Message: err.Error()}
}

// responseError builds an api *Error, pulling the gateway's code and message
// out of the conventional field names when the body is JSON.
func responseError(status int, data []byte) *Error {
	fields := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		fields = map[string]any{}
	}

	e := &Error{
		Kind:       KindAPI,
		StatusCode: status,
		Body:       string(data),
		Code:       firstField(fields, "errorCode", "ResultCode", "ResponseCode", "resultCode"),
		Message:    firstField(fields, "errorMessage", "ResultDesc", "ResponseDescription", "resultDesc"),
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func firstField(fields map[string]any, names ...string) string {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}
