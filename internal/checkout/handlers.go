package checkout

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hrk/storefront-api/internal/common"
)

// AdminHandler lists recently accepted checkout intents.
type AdminHandler struct {
	Log RedisIntentLogger
}

// ListIntents returns the newest intents, limited by the "limit" query parameter (max 200).
func (h *AdminHandler) ListIntents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Log.Client == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "intent log unavailable", nil)
		return
	}
	limit := int64(50)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			common.WriteError(w, common.ErrBadRequest.WithDetails(map[string]any{"limit": "must be between 1 and 200"}))
			return
		}
		limit = int64(parsed)
	}
	intents, err := h.Log.Recent(r.Context(), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": intents})
}
