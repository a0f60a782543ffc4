package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hrk/storefront-api/internal/audit"
	"github.com/hrk/storefront-api/internal/cart"
	"github.com/hrk/storefront-api/internal/catalog"
	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/config"
	"github.com/hrk/storefront-api/internal/health"
	"github.com/hrk/storefront-api/internal/lock"
	"github.com/hrk/storefront-api/internal/notify"
	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/platform"
	"github.com/hrk/storefront-api/internal/queue"
	"github.com/hrk/storefront-api/internal/ratelimit"
	"github.com/hrk/storefront-api/internal/storefront"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := platform.Logger(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	queue.MustRegisterMetrics(nil)

	shutdownTracing, tracing := platform.Tracing(ctx, cfg, "storefront-api", logger)
	defer shutdownTracing()

	redisClient, err := platform.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer platform.CloseRedis(redisClient, logger)

	a, err := newAPI(cfg, redisClient, logger)
	if err != nil {
		return err
	}
	a.tracing = tracing

	var handler http.Handler = a.routes()
	if tracing {
		handler = otelhttp.NewHandler(handler, "storefront-api")
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("forwarding", cfg.ForwardingEnabled()).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// api holds the handlers and middleware the router is assembled from.
type api struct {
	cfg     *config.Config
	logger  zerolog.Logger
	tracing bool

	catalog     *catalog.Handler
	storefront  *storefront.Handler
	health      health.Handler
	queueAdmin  *queue.AdminHandler
	intentAdmin *checkout.AdminHandler
	auditList   audit.Handler
	auditor     audit.HTTPRecorder
	idem        common.Idem
	checkoutRL  ratelimit.Handler
	httpMetrics *obs.HTTPMetrics
}

func newAPI(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) (*api, error) {
	catalogSvc := catalog.NewService(catalog.ServiceConfig{
		Cache:  catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger: logger,
	})

	intentLog := checkout.RedisIntentLogger{
		Client: redisClient,
		Key:    cfg.IntentLogKey,
		MaxLen: cfg.IntentLogMaxLen,
		Logger: logger,
	}
	intentLoggers := checkout.MultiIntentLogger{
		checkout.ZerologIntentLogger{Logger: logger},
		intentLog,
	}
	taskQueue := queue.Enqueuer{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		DedupTTL:    cfg.IdempotencyTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}
	if cfg.ForwardingEnabled() {
		intentLoggers = append(intentLoggers, notify.IntentPublisher{Queue: taskQueue, MaxAttempts: cfg.QueueMaxAttempts})
	}
	validator, err := checkout.NewValidator(checkout.Config{Logger: intentLoggers})
	if err != nil {
		return nil, err
	}

	manager, err := storefront.NewManager(storefront.ManagerConfig{
		Storage:   cart.RedisStorage{Client: redisClient, Prefix: "storefront:", TTL: cfg.SessionTTL},
		Locker:    lock.Locker{R: redisClient, RetryBackoff: 25 * time.Millisecond, MaxWait: cfg.SessionLockTTL},
		LockTTL:   cfg.SessionLockTTL,
		Validator: validator,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	probes := map[string]health.Probe{"redis": health.RedisProbe(redisClient)}
	if cfg.ForwardingEnabled() {
		probes["intent_queue"] = func(ctx context.Context) error {
			_, err := taskQueue.Stats(ctx, notify.TaskKind)
			return err
		}
	}

	auditSink := audit.RedisSink{Client: redisClient, Key: cfg.AuditLogKey, MaxLen: cfg.AuditLogMaxLen}

	a := &api{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc}),
		storefront: &storefront.Handler{
			Manager: manager,
			Catalog: catalogSvc,
			Cookie: storefront.CookieConfig{
				Name:     cfg.SessionCookieName,
				Domain:   cfg.CookieDomain,
				Secure:   cfg.CookieSecure,
				SameSite: cfg.CookieSameSite,
				MaxAge:   cfg.SessionTTL,
			},
			CSRFHeader: cfg.CSRFHeader,
			Logger:     logger,
		},
		health: health.Handler{Probes: probes, Timeout: cfg.Obs.HealthReadyTimeout},
		queueAdmin: &queue.AdminHandler{
			Queue:             taskQueue,
			DefaultKind:       notify.TaskKind,
			Logger:            logger,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
		},
		intentAdmin: &checkout.AdminHandler{Log: intentLog},
		auditList:   audit.Handler{Sink: auditSink},
		auditor: audit.HTTPRecorder{
			Service: &audit.Service{
				Sink:    audit.MultiSink{audit.LogSink{Logger: logger}, auditSink},
				Enabled: cfg.AuditEnabled,
			},
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("audit record failed")
			},
		},
		idem: common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		checkoutRL: ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
			Config: ratelimit.Config{
				Scope:  "checkout",
				Key:    ratelimit.SessionOrIP,
				Window: cfg.CheckoutRateWindow,
				Max:    cfg.CheckoutRateLimit,
			},
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("checkout rate limiter unavailable")
			},
		},
	}
	if cfg.Obs.MetricsEnabled {
		a.httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), nil)
	}
	return a, nil
}
