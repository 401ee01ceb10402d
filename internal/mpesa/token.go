package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// expiryBuffer forces a refresh a minute before the gateway would reject the token.
const expiryBuffer = time.Minute

// Token is a bearer token with the instant it stops being used.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenStore holds the cached token between calls.
type TokenStore interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, token Token) error
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token Token
	set   bool
}

func (s *MemoryTokenStore) Load(context.Context) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, token Token) error {
	s.mu.Lock()
	s.token = token
	s.set = true
	s.mu.Unlock()
	return nil
}

type authResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// TokenCache hands out a valid bearer token, exchanging credentials only when
// the stored one is absent or stale. Concurrent refreshes collapse into one.
type TokenCache struct {
	httpClient *http.Client
	authURL    string
	key        string
	secret     string
	timeout    time.Duration
	store      TokenStore
	now        func() time.Time
	logger     *zap.Logger

	group singleflight.Group
}

func newTokenCache(cfg Config, httpClient *http.Client, store TokenStore, now func() time.Time, logger *zap.Logger) *TokenCache {
	return &TokenCache{
		httpClient: httpClient,
		authURL:    cfg.AuthURL(),
		key:        cfg.ConsumerKey,
		secret:     cfg.ConsumerSecret,
		timeout:    cfg.Timeout,
		store:      store,
		now:        now,
		logger:     logger,
	}
}

// Token returns the cached token or performs a credential exchange. The
// store is a cache: its failures are logged and never block an exchange.
// The shared exchange outlives any single caller's cancellation.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	if cached, ok := t.load(ctx); ok {
		return cached.Value, nil
	}

	ch := t.group.DoChan("token", func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		// A flight that finished between load and DoChan already stored a token.
		if cached, ok := t.load(flightCtx); ok {
			return cached.Value, nil
		}
		token, err := t.exchange(flightCtx)
		if err != nil {
			return nil, err
		}
		if err := t.store.Save(flightCtx, token); err != nil {
			t.logger.Warn("token store save failed", zap.Error(err))
		}
		return token.Value, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (t *TokenCache) load(ctx context.Context) (Token, bool) {
	cached, ok, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("token store load failed", zap.Error(err))
		return Token{}, false
	}
	if !ok || !cached.Valid(t.now()) {
		return Token{}, false
	}
	return cached, true
}

func (t *TokenCache) exchange(ctx context.Context) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.authURL, nil)
	if err != nil {
		return Token{}, err
	}
	req.SetBasicAuth(t.key, t.secret)
	req.Header.Set("Accept", "application/json")

	issuedAt := t.now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Token{}, &Error{Kind: KindAuth, Message: fmt.Sprintf("timed out after %dms", t.timeout.Milliseconds())}
		}
		return Token{}, &Error{Kind: KindAuth, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Body: string(data), Message: "credential exchange rejected"}
	}

	var auth authResponse
	if err := json.Unmarshal(data, &auth); err != nil || auth.AccessToken == "" {
		return Token{}, &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Body: string(data), Message: "malformed token response"}
	}

	seconds, err := strconv.ParseInt(auth.ExpiresIn.String(), 10, 64)
	if err != nil {
		return Token{}, &Error{Kind: KindAuth, StatusCode: resp.StatusCode, Body: string(data), Message: "malformed expires_in"}
	}

	return Token{
		Value:     auth.AccessToken,
		ExpiresAt: issuedAt.Add(time.Duration(seconds)*time.Second - expiryBuffer),
	}, nil
}
