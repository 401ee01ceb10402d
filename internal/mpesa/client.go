package mpesa

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is the entry point for every gateway operation. It owns the
// configuration, the token cache and the dispatcher.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	logger      *zap.Logger
	store       TokenStore
	encrypt     Encrypter
	certificate []byte
	backoff     func(attempt int) time.Duration
	now         func() time.Time

	tokens     *TokenCache
	dispatcher *Dispatcher
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient swaps the transport; timeouts come from Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger lets callers supply a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTokenStore replaces the in-memory token store.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

// WithEncrypter replaces the RSA credential encrypter.
func WithEncrypter(e Encrypter) Option {
	return func(c *Client) {
		if e != nil {
			c.encrypt = e
		}
	}
}

// WithCertificate supplies the gateway certificate directly instead of
// reading Config.CertificatePath.
func WithCertificate(pem []byte) Option {
	return func(c *Client) {
		c.certificate = pem
	}
}

// WithBackoff overrides the wait between retried attempts.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// WithClock overrides time.Now for token expiry and request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Client from an already validated Config.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		store:      &MemoryTokenStore{},
		encrypt:    EncryptCredential,
		backoff:    Backoff,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tokens = newTokenCache(cfg, c.httpClient, c.store, c.now, c.logger)
	c.dispatcher = &Dispatcher{
		httpClient: c.httpClient,
		baseURL:    cfg.GatewayURL(),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		tokens:     c.tokens,
		logger:     c.logger,
		debug:      cfg.Debug,
		backoff:    c.backoff,
	}
	return c
}

// NewClient validates values, wires the Redis token store when
// MPESA_REDIS_ADDR is set, and builds a Client.
func NewClient(values map[string]string, opts ...Option) (*Client, error) {
	cfg, err := NewConfig(values)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr != "" {
		opts = append([]Option{WithTokenStore(NewRedisTokenStore(cfg.RedisAddr, cfg.ConsumerKey))}, opts...)
	}
	return New(cfg, opts...), nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Token returns a valid bearer token, refreshing it when needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

// Send posts an arbitrary body to path through the dispatcher.
func (c *Client) Send(ctx context.Context, path string, body, out any) error {
	return c.dispatcher.Send(ctx, path, body, out)
}

// signature returns the paired timestamp and password for push operations.
func (c *Client) signature() (timestamp, password string) {
	timestamp = Timestamp(c.now())
	return timestamp, Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp)
}
