package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart add/remove/clear attempts by outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutSubmissionsTotal counts checkout-intent submissions by outcome.
	CheckoutSubmissionsTotal *prometheus.CounterVec
	// CheckoutValidationErrors counts individual validation messages reported to visitors.
	CheckoutValidationErrors prometheus.Counter
	// ViewSwitchesTotal counts storefront view activations.
	ViewSwitchesTotal *prometheus.CounterVec
	// SessionsCreatedTotal counts storefront sessions opened.
	SessionsCreatedTotal prometheus.Counter
	// SessionLockWait records time spent acquiring the per-session lock in milliseconds.
	SessionLockWait prometheus.Histogram
	// IntentForwardsTotal counts webhook deliveries of checkout intents by outcome.
	IntentForwardsTotal *prometheus.CounterVec
	// IntentForwardLatency records webhook delivery latency in milliseconds.
	IntentForwardLatency *prometheus.HistogramVec
	// RateLimitedTotal counts requests rejected by the storefront rate limiter.
	RateLimitedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by action and outcome.",
		}, []string{"action", "result"})
		CheckoutSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Count of checkout intent submissions by outcome.",
		}, []string{"result"})
		CheckoutValidationErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_validation_errors_total",
			Help:      "Number of validation messages returned for rejected submissions.",
		})
		ViewSwitchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storefront_view_switches_total",
			Help:      "Count of storefront view activations.",
		}, []string{"view"})
		SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storefront_sessions_created_total",
			Help:      "Total number of storefront sessions opened.",
		})
		SessionLockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storefront_session_lock_wait_ms",
			Help:      "Time spent waiting for the per-session lock in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		IntentForwardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_forwards_total",
			Help:      "Count of checkout intent webhook deliveries by outcome.",
		}, []string{"result"})
		IntentForwardLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intent_forward_latency_ms",
			Help:      "Checkout intent webhook delivery latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Count of requests rejected by the rate limiter per scope.",
		}, []string{"scope"})

		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutSubmissionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSubmissionsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutValidationErrors, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CheckoutValidationErrors = v
			}
		})
		mustRegisterCollector(reg, ViewSwitchesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ViewSwitchesTotal = v
			}
		})
		mustRegisterCollector(reg, SessionsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SessionsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, SessionLockWait, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SessionLockWait = v
			}
		})
		mustRegisterCollector(reg, IntentForwardsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				IntentForwardsTotal = v
			}
		})
		mustRegisterCollector(reg, IntentForwardLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				IntentForwardLatency = v
			}
		})
		mustRegisterCollector(reg, RateLimitedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLimitedTotal = v
			}
		})
	})
}

// ObserveCartMutation records a cart mutation outcome. It is a no-op until
// MustRegisterDomainMetrics has run.
func ObserveCartMutation(action string, applied bool) {
	if CartMutationsTotal == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "ignored"
	}
	CartMutationsTotal.WithLabelValues(action, result).Inc()
}

// ObserveCheckout records a checkout submission outcome and its error count.
func ObserveCheckout(accepted bool, errorCount int) {
	if CheckoutSubmissionsTotal == nil {
		return
	}
	if accepted {
		CheckoutSubmissionsTotal.WithLabelValues("accepted").Inc()
		return
	}
	CheckoutSubmissionsTotal.WithLabelValues("rejected").Inc()
	if CheckoutValidationErrors != nil && errorCount > 0 {
		CheckoutValidationErrors.Add(float64(errorCount))
	}
}

// ObserveViewSwitch records a view activation.
func ObserveViewSwitch(view string) {
	if ViewSwitchesTotal == nil {
		return
	}
	ViewSwitchesTotal.WithLabelValues(view).Inc()
}

// ObserveSessionCreated records a new storefront session.
func ObserveSessionCreated() {
	if SessionsCreatedTotal == nil {
		return
	}
	SessionsCreatedTotal.Inc()
}

// ObserveSessionLockWait records how long a session lock took to acquire in milliseconds.
func ObserveSessionLockWait(ms float64) {
	if SessionLockWait == nil {
		return
	}
	SessionLockWait.Observe(ms)
}

// ObserveIntentForward records a webhook delivery outcome ("delivered",
// "failed", "duplicate") and its latency.
func ObserveIntentForward(result string, ms float64) {
	if IntentForwardsTotal != nil {
		IntentForwardsTotal.WithLabelValues(result).Inc()
	}
	if IntentForwardLatency != nil && ms > 0 {
		IntentForwardLatency.WithLabelValues(result).Observe(ms)
	}
}

// ObserveRateLimited counts a rejected request for scope.
func ObserveRateLimited(scope string) {
	if RateLimitedTotal == nil {
		return
	}
	if scope == "" {
		scope = "default"
	}
	RateLimitedTotal.WithLabelValues(scope).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
