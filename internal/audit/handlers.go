package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hrk/storefront-api/internal/common"
)

// Handler lists recent audit entries.
type Handler struct {
	Sink RedisSink
}

// List returns the newest entries, limited by the "limit" query parameter.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = int64(parsed)
		}
	}
	entries, err := h.Sink.Recent(r.Context(), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
