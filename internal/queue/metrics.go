package queue

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Approximate number of ready tasks per kind",
		},
		[]string{"kind"},
	)
	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_processed_total",
			Help: "Total tasks processed grouped by status",
		},
		[]string{"kind", "status"},
	)
	QueueDLQSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_dlq_size",
			Help: "Number of tasks stored in DLQ",
		},
		[]string{"kind"},
	)

	registerOnce sync.Once
)

// MustRegisterMetrics registers the queue collectors once per process.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{QueueDepth, QueueProcessedTotal, QueueDLQSize} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

func observeProcessed(kind, status string) {
	QueueProcessedTotal.WithLabelValues(kind, status).Inc()
}

func observeDepth(ctx context.Context, r *redis.Client, queueKey, kind string) {
	depth, err := r.ZCard(ctx, queueKey).Result()
	if err != nil {
		return
	}
	QueueDepth.WithLabelValues(kind).Set(float64(depth))
}

func observeDLQ(ctx context.Context, r *redis.Client, dlqKey, kind string) {
	size, err := r.LLen(ctx, dlqKey).Result()
	if err != nil {
		return
	}
	QueueDLQSize.WithLabelValues(kind).Set(float64(size))
}
