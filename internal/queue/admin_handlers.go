package queue

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/common"
)

var errAdminUnavailable = common.NewAppError("INTERNAL", "queue dependencies unavailable", http.StatusInternalServerError, nil)

// AdminHandler serves the operator endpoints for inspecting a queue kind
// and replaying its dead letters.
type AdminHandler struct {
	Queue             Enqueuer
	DefaultKind       string
	PageSize          int
	Logger            zerolog.Logger
	VisibilityTimeout time.Duration
}

// ListDLQ handles GET /admin/queue/dlq?kind=&limit=&offset=.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q := r.URL.Query()
	kind, ok := h.kind(w, q.Get("kind"))
	if !ok {
		return
	}
	limit := common.IntOr(q.Get("limit"), h.pageSize())
	if limit == 0 || limit > 200 {
		limit = h.pageSize()
	}
	items, total, err := h.Queue.DeadLetters(r.Context(), kind, common.IntOr(q.Get("offset"), 0), limit)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "total": total, "kind": kind})
}

type replayRequest struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// ReplayDLQ handles POST /admin/queue/dlq/replay. An empty body replays one
// page of the default kind.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req replayRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	kind, ok := h.kind(w, req.Kind)
	if !ok {
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.pageSize()
	}
	replayed, err := h.Queue.Replay(r.Context(), kind, req.Limit)
	log := h.Logger.With().Str("kind", kind).Int("replayed", replayed).Logger()
	if err != nil {
		log.Error().Err(err).Msg("dlq_replay_failed")
		h.fail(w, err, map[string]any{"replayed": replayed})
		return
	}
	log.Info().Msg("dlq_replayed")
	common.JSON(w, http.StatusOK, map[string]any{"kind": kind, "replayed": replayed})
}

type statsResponse struct {
	Stats
	VisibilityTimeout float64 `json:"visibility_timeout"`
}

// Stats handles GET /admin/queue/stats?kind=.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	kind, ok := h.kind(w, r.URL.Query().Get("kind"))
	if !ok {
		return
	}
	st, err := h.Queue.Stats(r.Context(), kind)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	vis := h.VisibilityTimeout
	if vis <= 0 {
		vis = 30 * time.Second
	}
	common.JSON(w, http.StatusOK, statsResponse{Stats: st, VisibilityTimeout: vis.Seconds()})
}

func (h *AdminHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Queue.R == nil {
		common.WriteError(w, errAdminUnavailable)
		return false
	}
	return true
}

func (h *AdminHandler) fail(w http.ResponseWriter, err error, details map[string]any) {
	appErr := common.NewAppError("INTERNAL", err.Error(), http.StatusInternalServerError, err)
	if details != nil {
		appErr = appErr.WithDetails(details)
	}
	common.WriteError(w, appErr)
}

func (h *AdminHandler) kind(w http.ResponseWriter, raw string) (string, bool) {
	kind := raw
	if kind == "" {
		kind = h.DefaultKind
	}
	if kind == "" {
		common.WriteError(w, common.ErrBadRequest.WithDetails(map[string]any{"kind": "required"}))
		return "", false
	}
	if _, ok := validKind(kind); !ok {
		common.WriteError(w, common.ErrBadRequest.WithDetails(map[string]any{"kind": "unknown"}))
		return "", false
	}
	return kind, true
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}
