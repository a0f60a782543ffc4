package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/obs"
)

// RejectedMessage is shown to visitors who hit the limit.
const RejectedMessage = "Liian monta pyyntöä. Yritä hetken kuluttua uudelleen."

// Allower decides whether one more request fits under a limit.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error)
}

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	// Scope labels the limit in keys and metrics, e.g. "checkout".
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a limit before delegating. Limiter errors fail open.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	keyFn := h.Config.Key
	if keyFn == nil {
		keyFn = SessionOrIP
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := keyFn(r)
		if h.Config.Scope != "" {
			key = h.Config.Scope + ":" + key
		}
		decision, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := decision.RetryAfter(time.Now())
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			obs.ObserveRateLimited(h.Config.Scope)
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", RejectedMessage, map[string]any{"retryAfterSeconds": retryAfter})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionOrIP keys a request by its storefront session, falling back to the
// client address for requests without one.
func SessionOrIP(r *http.Request) string {
	if id, ok := common.SessionID(r.Context()); ok {
		return "session:" + id
	}
	return "ip:" + common.ClientIP(r)
}
