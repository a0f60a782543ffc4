// Package platform wires the process-level dependencies shared by the api
// and worker binaries.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/config"
	"github.com/hrk/storefront-api/internal/obs"
)

// Logger returns the process logger tagged with component and environment.
func Logger(cfg *config.Config, component string) zerolog.Logger {
	return obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().
		Str("component", component).
		Str("env", cfg.AppEnv).
		Logger()
}

// Tracing installs the tracer provider when tracing is enabled. It reports
// whether a provider was installed and always returns a usable shutdown.
// Exporter failures are logged and leave tracing off.
func Tracing(ctx context.Context, cfg *config.Config, service string, logger zerolog.Logger) (shutdown func(), enabled bool) {
	noop := func() {}
	if !cfg.Obs.TracingEnabled {
		return noop, false
	}
	stop, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   service,
		Endpoint:      cfg.Obs.OTLPEndpoint,
		Exporter:      cfg.Obs.TracingExporter,
		SamplingRatio: cfg.Obs.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		return noop, false
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stop(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}, true
}

// Redis connects to cfg.RedisURL, instruments the client and verifies it
// answers PING within five seconds.
func Redis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CloseRedis closes client, logging any error.
func CloseRedis(client *redis.Client, logger zerolog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error().Err(err).Msg("close redis")
	}
}
