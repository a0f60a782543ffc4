package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrk/storefront-api/internal/common"
)

// NewLogger builds the process logger. format "console" (or "text") gives
// human-readable output, anything else JSON lines on stdout.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger attaches Logger to each request context, so handlers can
// use zerolog.Ctx, and writes one access line per request at a level
// chosen by status.
type RequestLogger struct {
	Logger zerolog.Logger
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		ctx := r.Context()
		evt := eventForStatus(zerolog.Ctx(ctx), status).
			Str("method", r.Method).
			Str("route", routeOrPath(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", d.Milliseconds()).
			Int("bytes", size).
			Str("request_id", middleware.GetReqID(ctx))
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if id, ok := common.SessionID(ctx); ok {
			evt = evt.Str("session_id", id)
		}
		if ua := r.UserAgent(); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Str("remote_addr", common.ClientIP(r)).Msg("http_request")
	})
	return hlog.NewHandler(l.Logger)(access(next))
}

func eventForStatus(logger *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

func routeOrPath(r *http.Request) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	return r.URL.Path
}
