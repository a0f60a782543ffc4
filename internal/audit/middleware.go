package audit

import (
	"cmp"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hrk/storefront-api/internal/common"
)

// ActorFunc identifies who made a request.
type ActorFunc func(*http.Request) Actor

// HTTPRecorder writes an audit entry for every request that passes through
// its middleware, after the handler has responded.
type HTTPRecorder struct {
	Service *Service
	Actor   ActorFunc
	OnError func(error)
}

// Route customises the entry for one group of routes. Zero values fall back
// to the recorder's defaults.
type Route struct {
	Action   string
	Resource string
	IDParam  string
	Actor    ActorFunc
	Metadata func(r *http.Request, status int) map[string]any
}

// Middleware returns chi middleware auditing requests handled under rt.
func (h HTTPRecorder) Middleware(rt Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.Service == nil || !h.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ev := Event{
				Actor:    h.actorFor(rt, r),
				Action:   rt.Action,
				Resource: rt.Resource,
				Status:   cmp.Or(ww.Status(), http.StatusOK),
			}
			if rt.IDParam != "" {
				ev.ResourceID = chi.URLParam(r, rt.IDParam)
			}
			if rt.Metadata != nil {
				ev.Metadata = rt.Metadata(r, ev.Status)
			}
			if err := h.Service.Record(r.Context(), r, ev); err != nil && h.OnError != nil {
				h.OnError(err)
			}
		})
	}
}

func (h HTTPRecorder) actorFor(rt Route, r *http.Request) Actor {
	switch {
	case rt.Actor != nil:
		return rt.Actor(r)
	case h.Actor != nil:
		return h.Actor(r)
	default:
		return SessionActor(r)
	}
}

// SessionActor identifies storefront visitors by session.
func SessionActor(r *http.Request) Actor {
	if id, ok := common.SessionID(r.Context()); ok {
		return Actor{Kind: ActorKindVisitor, ID: id}
	}
	return Actor{Kind: ActorKindAnonymous}
}

// BasicAuthActor identifies operators by their basic-auth user name.
func BasicAuthActor(r *http.Request) Actor {
	if user, _, ok := r.BasicAuth(); ok && user != "" {
		return Actor{Kind: ActorKindOperator, ID: user}
	}
	return Actor{Kind: ActorKindAnonymous}
}
