package config_test

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/config"
)

func TestLoadRequiresRedis(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"REDIS_URL": ""})
	require.EqualError(t, err, "REDIS_URL is required")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":            "redis://localhost:6379/0",
		"PORT":                 "",
		"SESSION_TTL":          "",
		"CHECKOUT_RATE_LIMIT":  "",
		"COOKIE_SAMESITE":      "",
		"SECURITY_HEADERS":     "",
		"CORS_ALLOWED_ORIGINS": "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 168*time.Hour, cfg.SessionTTL)
	require.Equal(t, 5, cfg.CheckoutRateLimit)
	require.Equal(t, time.Minute, cfg.CheckoutRateWindow)
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	require.True(t, cfg.SecurityHeaders)
	require.Equal(t, "storefront_session", cfg.SessionCookieName)
	require.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":            "redis://cache:6379/1",
		"PORT":                 ":9090",
		"SESSION_TTL":          "2h",
		"CHECKOUT_RATE_LIMIT":  "10",
		"COOKIE_SAMESITE":      "strict",
		"COOKIE_SECURE":        "true",
		"SECURITY_HEADERS":     "off",
		"CORS_ALLOWED_ORIGINS": "https://a.fi, https://b.fi ,",
		"CATALOG_CACHE_TTL":    "not-a-duration",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10, cfg.CheckoutRateLimit)
	require.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	require.True(t, cfg.CookieSecure)
	require.False(t, cfg.SecurityHeaders)
	require.Equal(t, []string{"https://a.fi", "https://b.fi"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":               "redis://localhost:6379/0",
		"CHECKOUT_RATE_LIMIT":     "-1",
		"QUEUE_CONCURRENCY":       "many",
		"HEALTH_READY_TIMEOUT_MS": "750",
		"SHUTDOWN_TIMEOUT_MS":     "-5",
	})
	require.NoError(t, err)
	require.Equal(t, 5, cfg.CheckoutRateLimit)
	require.Equal(t, 2, cfg.QueueConcurrency)
	require.Equal(t, 750*time.Millisecond, cfg.Obs.HealthReadyTimeout)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadObservability(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":            "redis://localhost:6379/0",
		"OBS_ENABLE_TRACING":   "0",
		"OBS_TRACING_EXPORTER": "otlp-grpc",
		"OBS_LOG_FORMAT":       "console",
	})
	require.NoError(t, err)
	require.False(t, cfg.Obs.TracingEnabled)
	require.Equal(t, "otlp-grpc", cfg.Obs.TracingExporter)
	require.Equal(t, "console", cfg.Obs.LogFormat)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.Equal(t, 1.0, cfg.Obs.TracingSampling)

	_, err = config.LoadForTests(map[string]string{
		"REDIS_URL":                  "redis://localhost:6379/0",
		"OBS_TRACING_SAMPLING_RATIO": "1.5",
	})
	require.ErrorContains(t, err, "OBS_TRACING_SAMPLING_RATIO")
}

func TestLoadForTestsLeavesEnvironmentAlone(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL": "redis://localhost:6379/0",
		"APP_ENV":   "test",
	})
	require.NoError(t, err)
	require.Equal(t, "test", cfg.AppEnv)
	require.Equal(t, "staging", os.Getenv("APP_ENV"))
}

func TestLoadForwarding(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"REDIS_URL":          "redis://localhost:6379/0",
		"INTENT_WEBHOOK_URL": "https://crm.example.fi/hooks/intents",
	})
	require.Error(t, err)

	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":             "redis://localhost:6379/0",
		"INTENT_WEBHOOK_URL":    "https://crm.example.fi/hooks/intents",
		"INTENT_WEBHOOK_SECRET": "s3cret",
		"QUEUE_BACKOFF_JITTER":  "0.5",
	})
	require.NoError(t, err)
	require.True(t, cfg.ForwardingEnabled())
	require.Equal(t, 0.5, cfg.QueueBackoffJitter)
	require.Equal(t, 6, cfg.QueueMaxAttempts)
	require.Equal(t, "storefront", cfg.QueueRedisPrefix)
}
