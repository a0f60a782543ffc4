package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/hrk/storefront-api/internal/common"
)

var draining atomic.Bool

// SetReady toggles readiness. The server flips it off when shutdown begins so
// load balancers drain traffic before connections close.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// RedisProbe pings client.
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx).Err()
	}
}

// Report is the readiness response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves liveness and readiness. Readiness runs every probe
// concurrently, each bounded by Timeout.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports that the process is serving.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, Report{Status: "ok"})
}

// Ready reports 200 only when every probe passes and shutdown has not begun.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining"})
		return
	}
	if len(h.Probes) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "unconfigured"})
		return
	}

	report := h.run(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, report)
}

func (h Handler) run(ctx context.Context) Report {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			results[i] = "ok"
			if err := probe(ctx); err != nil {
				results[i] = err.Error()
			}
		}(i, h.Probes[name])
	}
	wg.Wait()

	report := Report{Status: "ok", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i] != "ok" {
			report.Status = "degraded"
		}
	}
	return report
}
