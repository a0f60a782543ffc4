package security

import (
	"net/http"

	"github.com/hrk/storefront-api/internal/common"
)

// BodyLimit caps request payloads. Bodies are read lazily; common.DecodeJSON
// turns a cap crossed mid-stream into the same 413 as a declared oversize body.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversize bodies up front and wraps the rest in
// http.MaxBytesReader.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.WriteError(w, common.ErrPayloadTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

