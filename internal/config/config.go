package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/hrk/storefront-api/internal/common"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     http.SameSite
	SessionCookieName  string
	SessionTTL         time.Duration
	SessionLockTTL     time.Duration
	CatalogCacheTTL    time.Duration
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	IdempotencyTTL     time.Duration
	BodyLimitBytes     int64
	CSRFHeader         string
	SecurityHeaders    bool
	EnableHSTS         bool
	IntentLogKey       string
	IntentLogMaxLen    int64
	ShutdownTimeout    time.Duration

	QueueRedisPrefix       string
	QueueMaxAttempts       int
	QueueConcurrency       int
	QueueVisibilityTimeout time.Duration
	QueueBackoffBase       time.Duration
	QueueBackoffJitter     float64

	IntentWebhookURL          string
	IntentWebhookSecret       string
	IntentWebhookTimeout      time.Duration
	IntentWebhookReplayTTL    time.Duration
	IntentWebhookInsecureTLS  bool
	CircuitWebhookMinReq      int
	CircuitWebhookFailureRate float64
	CircuitWebhookWindow      time.Duration
	CircuitWebhookOpenFor     time.Duration

	AdminUser     string
	AdminPassword string

	AuditEnabled   bool
	AuditLogKey    string
	AuditLogMaxLen int64

	Obs Obs
}

// Obs groups logging, metrics, tracing and diagnostics settings shared by
// the api and worker binaries.
type Obs struct {
	LogFormat          string
	LogLevel           string
	MetricsEnabled     bool
	MetricsNamespace   string
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampling    float64
	PprofEnabled       bool
	PprofUser          string
	PprofPassword      string
	HealthReadyTimeout time.Duration
}

// Load reads configuration from the process environment, after merging an
// optional .env file into it.
func Load() (*Config, error) {
	_ = godotenv.Load()
	k, err := fromEnv()
	if err != nil {
		return nil, err
	}
	return build(reader{k})
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests builds a Config from the environment with overrides layered
// on top. An empty override value unsets the key. The process environment
// is not modified.
func LoadForTests(overrides map[string]string) (*Config, error) {
	k, err := fromEnv()
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if value == "" {
			k.Delete(key)
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}
	return build(reader{k})
}

func fromEnv() (*koanf.Koanf, error) {
	// "::" never occurs in variable names, so keys stay flat.
	k := koanf.New("::")
	if err := k.Load(env.Provider("", "::", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k, nil
}

func build(r reader) (*Config, error) {
	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		RedisURL:           r.str("REDIS_URL", ""),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS"),
		CookieDomain:       r.str("COOKIE_DOMAIN", ""),
		CookieSecure:       r.bool("COOKIE_SECURE", false),
		CookieSameSite:     r.sameSite("COOKIE_SAMESITE", http.SameSiteLaxMode),
		SessionCookieName:  r.str("SESSION_COOKIE_NAME", "storefront_session"),
		SessionTTL:         r.dur("SESSION_TTL", 168*time.Hour),
		SessionLockTTL:     r.dur("SESSION_LOCK_TTL", 5*time.Second),
		CatalogCacheTTL:    r.dur("CATALOG_CACHE_TTL", 5*time.Minute),
		CheckoutRateLimit:  r.int("CHECKOUT_RATE_LIMIT", 5),
		CheckoutRateWindow: r.dur("CHECKOUT_RATE_WINDOW", time.Minute),
		IdempotencyTTL:     r.dur("IDEMPOTENCY_TTL", 10*time.Minute),
		BodyLimitBytes:     int64(r.int("BODY_LIMIT_BYTES", 64<<10)),
		CSRFHeader:         r.str("CSRF_HEADER", "X-CSRF-Token"),
		SecurityHeaders:    r.bool("SECURITY_HEADERS", true),
		EnableHSTS:         r.bool("SECURITY_HSTS", false),
		IntentLogKey:       r.str("INTENT_LOG_KEY", "storefront:intents"),
		IntentLogMaxLen:    int64(r.int("INTENT_LOG_MAX_LEN", 1000)),
		ShutdownTimeout:    r.millis("SHUTDOWN_TIMEOUT_MS", 10*time.Second),

		QueueRedisPrefix:       r.str("QUEUE_REDIS_PREFIX", "storefront"),
		QueueMaxAttempts:       r.int("QUEUE_MAX_ATTEMPTS", 6),
		QueueConcurrency:       r.int("QUEUE_CONCURRENCY", 2),
		QueueVisibilityTimeout: r.dur("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),
		QueueBackoffBase:       r.dur("QUEUE_BACKOFF_BASE", 2*time.Second),
		QueueBackoffJitter:     r.float("QUEUE_BACKOFF_JITTER", 0.2),

		IntentWebhookURL:          r.str("INTENT_WEBHOOK_URL", ""),
		IntentWebhookSecret:       r.raw("INTENT_WEBHOOK_SECRET"),
		IntentWebhookTimeout:      r.dur("INTENT_WEBHOOK_TIMEOUT", 5*time.Second),
		IntentWebhookReplayTTL:    r.dur("INTENT_WEBHOOK_REPLAY_TTL", 24*time.Hour),
		IntentWebhookInsecureTLS:  r.bool("INTENT_WEBHOOK_INSECURE_TLS", false),
		CircuitWebhookMinReq:      r.int("CIRCUIT_WEBHOOK_MIN_REQ", 5),
		CircuitWebhookFailureRate: r.float("CIRCUIT_WEBHOOK_FAILURE_RATE", 0.5),
		CircuitWebhookWindow:      r.dur("CIRCUIT_WEBHOOK_WINDOW", time.Minute),
		CircuitWebhookOpenFor:     r.dur("CIRCUIT_WEBHOOK_OPEN_FOR", 30*time.Second),

		AdminUser:     r.str("ADMIN_BASIC_AUTH_USER", ""),
		AdminPassword: r.raw("ADMIN_BASIC_AUTH_PASS"),

		AuditEnabled:   r.bool("AUDIT_ENABLED", true),
		AuditLogKey:    r.str("AUDIT_LOG_KEY", "storefront:audit"),
		AuditLogMaxLen: int64(r.int("AUDIT_LOG_MAX_LEN", 1000)),

		Obs: Obs{
			LogFormat:          r.str("OBS_LOG_FORMAT", "json"),
			LogLevel:           r.str("OBS_LOG_LEVEL", "info"),
			MetricsEnabled:     r.bool("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace:   r.str("OBS_METRICS_NAMESPACE", "storefront"),
			MetricsBucketsMS:   r.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:     r.bool("OBS_ENABLE_TRACING", true),
			TracingExporter:    r.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:       r.str("OBS_OTLP_ENDPOINT", ""),
			TracingSampling:    r.float("OBS_TRACING_SAMPLING_RATIO", 1),
			PprofEnabled:       r.bool("OBS_ENABLE_PPROF", true),
			PprofUser:          r.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofPassword:      r.raw("SECURE_PPROF_BASIC_AUTH_PASS"),
			HealthReadyTimeout: r.millis("HEALTH_READY_TIMEOUT_MS", 300*time.Millisecond),
		},
	}

	var errs []error
	if cfg.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if cfg.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("BODY_LIMIT_BYTES must be positive"))
	}
	if cfg.IntentWebhookURL != "" && cfg.IntentWebhookSecret == "" {
		errs = append(errs, errors.New("INTENT_WEBHOOK_SECRET is required when INTENT_WEBHOOK_URL is set"))
	}
	if s := cfg.Obs.TracingSampling; s < 0 || s > 1 {
		errs = append(errs, errors.New("OBS_TRACING_SAMPLING_RATIO must be within [0,1]"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.HasPrefix(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// ForwardingEnabled reports whether accepted intents are forwarded to a webhook.
func (c *Config) ForwardingEnabled() bool {
	return c.IntentWebhookURL != ""
}

// reader reads typed values out of a flat koanf tree. Malformed values fall
// back to the default rather than failing startup.
type reader struct {
	k *koanf.Koanf
}

func (r reader) raw(key string) string {
	return r.k.String(key)
}

func (r reader) str(key, def string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return def
}

func (r reader) list(key string) []string {
	var out []string
	for part := range strings.SplitSeq(r.k.String(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r reader) int(key string, def int) int {
	return common.IntOr(r.k.String(key), def)
}

func (r reader) float(key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.k.String(key)), 64)
	if err != nil {
		return def
	}
	return f
}

func (r reader) dur(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(r.k.String(key)))
	if err != nil || d < 0 {
		return def
	}
	return d
}

func (r reader) millis(key string, def time.Duration) time.Duration {
	ms := r.int(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func (r reader) bool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(r.k.String(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return def
	}
}

func (r reader) sameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(r.k.String(key))) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return def
	}
}
