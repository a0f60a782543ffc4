package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client-chosen replay key.
const IdempotencyHeader = "Idempotency-Key"

// Idem rejects repeated submissions carrying the same Idempotency-Key
// within TTL. Keys are scoped to the visitor session when one is present.
// A key is only kept when the handler answers 2xx, so a rejected request
// can be corrected and resent under the same key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func hashKey(session, key string) string {
	sum := sha256.Sum256([]byte(session + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		session, _ := SessionID(r.Context())
		key := hashKey(session, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if status := ww.Status(); status != 0 && status/100 != 2 {
			_ = i.R.Del(context.WithoutCancel(r.Context()), key).Err()
		}
	})
}
