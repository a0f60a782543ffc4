package audit

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindOperator is an authenticated back-office user.
	ActorKindOperator ActorKind = "operator"
	// ActorKindVisitor is a storefront visitor identified by session.
	ActorKindVisitor ActorKind = "visitor"
	// ActorKindAnonymous represents unidentified actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// Entry is one audited request.
type Entry struct {
	Actor     Actor           `json:"actor"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Status    int             `json:"status"`
	IP        string          `json:"ip,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	At        time.Time       `json:"at"`
}

// Sink stores audit entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Event is what the caller knows about an audited request. Request-derived
// fields are filled in by Service.Record.
type Event struct {
	Actor Actor
	// Action defaults to "METHOD route".
	Action string
	// Resource defaults to the route with the /api/v1 prefix dropped and
	// slashes turned into dots.
	Resource   string
	ResourceID string
	Status     int
	Metadata   map[string]any
}

// Service stamps events and hands them to Sink.
type Service struct {
	Sink    Sink
	Enabled bool
	// SamplingRate in (0,1) keeps that fraction of events. Other values
	// keep everything.
	SamplingRate float64
	Now          func() time.Time
}

func (s Service) sampled() bool {
	if s.SamplingRate <= 0 || s.SamplingRate >= 1 {
		return true
	}
	return rand.Float64() < s.SamplingRate
}

// Record writes ev for req. Disabled services and sampled-out events are
// dropped silently.
func (s Service) Record(ctx context.Context, req *http.Request, ev Event) error {
	switch {
	case !s.Enabled || !s.sampled():
		return nil
	case req == nil:
		return errors.New("audit: request is required")
	case s.Sink == nil:
		return errors.New("audit: sink not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = req.URL.Path
	}
	entry := Entry{
		Actor:     ev.Actor,
		Action:    cmp.Or(strings.TrimSpace(ev.Action), req.Method+" "+cmp.Or(route, "/")),
		Resource:  cmp.Or(strings.TrimSpace(ev.Resource), resourceFromRoute(route)),
		Method:    req.Method,
		Path:      req.URL.Path,
		Status:    cmp.Or(ev.Status, http.StatusOK),
		IP:        common.ClientIP(req),
		UserAgent: req.UserAgent(),
		RequestID: cmp.Or(middleware.GetReqID(req.Context()), req.Header.Get(middleware.RequestIDHeader)),
		At:        s.now().UTC(),
	}
	if entry.Actor.Kind == "" {
		entry.Actor.Kind = ActorKindAnonymous
	}
	if id := strings.TrimSpace(ev.ResourceID); id != "" {
		entry.Resource += ":" + id
	}
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
		entry.Metadata = raw
	}
	return s.Sink.Write(ctx, entry)
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func resourceFromRoute(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	route = strings.TrimPrefix(route, "api/v1/")
	return strings.ReplaceAll(route, "/", ".")
}

// LogSink writes entries as structured log events.
type LogSink struct {
	Logger zerolog.Logger
}

// Write implements Sink.
func (l LogSink) Write(_ context.Context, e Entry) error {
	l.Logger.Info().
		Str("actor_kind", string(e.Actor.Kind)).
		Str("actor_id", e.Actor.ID).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Int("status", e.Status).
		Str("request_id", e.RequestID).
		Msg("audit")
	return nil
}

// RedisSink keeps the newest entries in a capped Redis list.
type RedisSink struct {
	Client *redis.Client
	Key    string
	MaxLen int64
}

// Write implements Sink.
func (r RedisSink) Write(ctx context.Context, e Entry) error {
	if r.Client == nil {
		return errors.New("audit: redis client not configured")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.LPush(ctx, r.key(), payload)
	if r.MaxLen > 0 {
		pipe.LTrim(ctx, r.key(), 0, r.MaxLen-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit of the newest entries.
func (r RedisSink) Recent(ctx context.Context, limit int64) ([]Entry, error) {
	if r.Client == nil {
		return nil, errors.New("audit: redis client not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	raws, err := r.Client.LRange(ctx, r.key(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r RedisSink) key() string {
	if r.Key == "" {
		return "storefront:audit"
	}
	return r.Key
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
