package mpesa

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment selects the gateway deployment.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Configuration keys accepted by NewConfig.
const (
	KeyConsumerKey       = "MPESA_CONSUMER_KEY"
	KeyConsumerSecret    = "MPESA_CONSUMER_SECRET"
	KeyShortCode         = "MPESA_SHORT_CODE"
	KeyPassKey           = "MPESA_PASS_KEY"
	KeyCallbackURL       = "MPESA_CALLBACK_URL"
	KeyEnvironment       = "MPESA_ENVIRONMENT"
	KeyTimeout           = "MPESA_TIMEOUT"
	KeyInitiatorName     = "MPESA_INITIATOR_NAME"
	KeyInitiatorPassword = "MPESA_INITIATOR_PASSWORD"
	KeyCertificatePath   = "MPESA_CERTIFICATE_PATH"
	KeyDebug             = "MPESA_DEBUG"
	KeyMaxRetries        = "MPESA_MAX_RETRIES"
	KeyBaseURL           = "MPESA_BASE_URL"
	KeyRedisAddr         = "MPESA_REDIS_ADDR"
)

// Config is built once by NewConfig and never mutated afterwards.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	Environment    Environment
	Timeout        time.Duration
	MaxRetries     int
	Debug          bool

	InitiatorName     string
	InitiatorPassword string
	CertificatePath   string

	// BaseURL overrides the environment's gateway host.
	BaseURL string
	// RedisAddr, when set, enables the shared token store.
	RedisAddr string
}

// NewConfig validates values and returns an immutable Config. A missing
// required key yields a validation *Error naming that key.
func NewConfig(values map[string]string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(values[key]) }

	for _, key := range []string{KeyConsumerKey, KeyConsumerSecret, KeyShortCode, KeyPassKey, KeyCallbackURL} {
		if get(key) == "" {
			return Config{}, validationError(key, "%s is required", key)
		}
	}

	cfg := Config{
		ConsumerKey:       get(KeyConsumerKey),
		ConsumerSecret:    get(KeyConsumerSecret),
		ShortCode:         get(KeyShortCode),
		PassKey:           get(KeyPassKey),
		CallbackURL:       get(KeyCallbackURL),
		Environment:       Sandbox,
		Timeout:           defaultTimeout,
		MaxRetries:        defaultMaxRetries,
		InitiatorName:     get(KeyInitiatorName),
		InitiatorPassword: values[KeyInitiatorPassword],
		CertificatePath:   get(KeyCertificatePath),
		BaseURL:           strings.TrimSuffix(get(KeyBaseURL), "/"),
		RedisAddr:         get(KeyRedisAddr),
	}

	if env := get(KeyEnvironment); env != "" {
		switch Environment(strings.ToLower(env)) {
		case Sandbox:
			cfg.Environment = Sandbox
		case Production:
			cfg.Environment = Production
		default:
			return Config{}, validationError(KeyEnvironment, "unknown environment %q", env)
		}
	}

	if raw := get(KeyTimeout); raw != "" {
		timeout, err := parseTimeout(raw)
		if err != nil || timeout <= 0 {
			return Config{}, validationError(KeyTimeout, "invalid timeout %q", raw)
		}
		cfg.Timeout = timeout
	}

	if raw := get(KeyMaxRetries); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Config{}, validationError(KeyMaxRetries, "invalid retry count %q", raw)
		}
		cfg.MaxRetries = n
	}

	if raw := get(KeyDebug); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, validationError(KeyDebug, "invalid debug flag %q", raw)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}

// parseTimeout accepts a Go duration ("15s") or a bare millisecond count.
func parseTimeout(raw string) (time.Duration, error) {
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}

// GatewayURL returns the base URL requests are sent to.
func (c Config) GatewayURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == Production {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// AuthURL is the credential exchange endpoint for the configured environment.
func (c Config) AuthURL() string {
	return c.GatewayURL() + "/oauth/v1/generate?grant_type=client_credentials"
}

// LoadEnv reads the optional dotenv files and overlays the process
// environment. It is meant to be called once at startup.
func LoadEnv(files ...string) (map[string]string, error) {
	values := map[string]string{}
	for _, file := range files {
		fileValues, err := godotenv.Read(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "MPESA_") {
			values[k] = v
		}
	}
	return values, nil
}
