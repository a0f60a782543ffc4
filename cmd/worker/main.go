package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/config"
	"github.com/hrk/storefront-api/internal/notify"
	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/platform"
	"github.com/hrk/storefront-api/internal/queue"
	"github.com/hrk/storefront-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := platform.Logger(cfg, "worker")
	if !cfg.ForwardingEnabled() {
		logger.Warn().Msg("INTENT_WEBHOOK_URL not set; nothing to forward")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	queue.MustRegisterMetrics(nil)
	resilience.MustRegisterMetrics(nil)

	shutdownTracing, _ := platform.Tracing(ctx, cfg, "storefront-worker", logger)
	defer shutdownTracing()

	redisClient, err := platform.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer platform.CloseRedis(redisClient, logger)

	forwarder := &notify.Forwarder{
		HTTP: &resilience.HTTPClient{
			Client: notify.NewHTTPClient(cfg.IntentWebhookTimeout, cfg.IntentWebhookInsecureTLS),
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       "intent-webhook",
				MinRequests:  cfg.CircuitWebhookMinReq,
				FailureRatio: cfg.CircuitWebhookFailureRate,
				Window:       cfg.CircuitWebhookWindow,
				OpenFor:      cfg.CircuitWebhookOpenFor,
				Logger:       logger,
			}),
			MaxAttempts: 1,
			Timeout:     cfg.IntentWebhookTimeout,
			Target:      "intent-webhook",
			Logger:      &logger,
		},
		URL:       cfg.IntentWebhookURL,
		Secret:    cfg.IntentWebhookSecret,
		Replay:    notify.RedisReplayProtector{Client: redisClient, Prefix: cfg.QueueRedisPrefix},
		ReplayTTL: cfg.IntentWebhookReplayTTL,
		Logger:    logger,
	}

	worker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.QueueRedisPrefix,
		Kind:              notify.TaskKind,
		Concurrency:       cfg.QueueConcurrency,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		SoftDeadline:      cfg.IntentWebhookTimeout * 2,
		RetryBase:         cfg.QueueBackoffBase,
		RetryJitter:       cfg.QueueBackoffJitter,
		Logger:            &logger,
		Handler:           forwarder.Handle,
	}

	logger.Info().Str("kind", notify.TaskKind).Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
