// Package queue is a small Redis-backed task queue used to forward accepted
// checkout intents out of the request path. Each kind owns a ready set
// scored by due time, an in-flight set scored by lease deadline and a
// dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errNoRedis = errors.New("queue: redis client not configured")
	errNoKind  = errors.New("queue: task kind is required")
)

// Task is one unit of work as seen by producers and handlers. Attempt is
// 1-based when delivered to a handler.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Attempt        int
	Delay          time.Duration
}

// Enqueuer publishes tasks and inspects queue state.
type Enqueuer struct {
	R      *redis.Client
	Prefix string
	// DedupTTL is how long an IdempotencyKey suppresses re-enqueueing when
	// the task is never acknowledged. Acked and dead-lettered tasks free
	// their key immediately.
	DedupTTL    time.Duration
	MaxAttempts int
}

// Enqueue schedules t. A task whose IdempotencyKey is already pending is
// silently dropped.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errNoRedis
	}
	kind, ok := validKind(t.Kind)
	if !ok {
		return errNoKind
	}
	ks := keyspace{prefix: e.Prefix, kind: kind}
	env := envelope{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		Attempt:     t.Attempt,
		MaxAttempts: firstPositive(t.MaxAttempts, e.MaxAttempts, 10),
		AvailableAt: time.Now().Add(t.Delay).UnixNano(),
	}

	if env.Key != "" {
		fresh, err := e.R.SetNX(ctx, ks.dedup(env.Key), "1", durationOr(e.DedupTTL, 24*time.Hour)).Result()
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := e.R.ZAdd(ctx, ks.ready(), redis.Z{Score: float64(env.AvailableAt), Member: raw}).Err(); err != nil {
		return err
	}
	observeDepth(ctx, e.R, ks.ready(), kind)
	return nil
}

// validKind accepts lower-case kinds made of [a-z0-9-_:].
func validKind(kind string) (string, bool) {
	if kind == "" {
		return "", false
	}
	for _, c := range kind {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == ':':
		default:
			return "", false
		}
	}
	return kind, true
}

type keyspace struct {
	prefix string
	kind   string
}

func (k keyspace) base() string {
	p := k.prefix
	if p == "" {
		p = "queue"
	}
	return p + ":" + k.kind
}

func (k keyspace) ready() string { return k.base() + ":ready" }
func (k keyspace) inflight() string { return k.base() + ":inflight" }
func (k keyspace) dead() string { return k.base() + ":dead" }
func (k keyspace) dedup(key string) string { return k.base() + ":dedup:" + key }

// envelope is the stored form of a task. Attempt counts finished attempts.
type envelope struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
	LastError   string `json:"last_error,omitempty"`
	FailedAt    int64  `json:"failed_at,omitempty"`
}

func decodeEnvelope(raw string) (envelope, error) {
	var env envelope
	err := json.Unmarshal([]byte(raw), &env)
	return env, err
}

func (env envelope) exhausted() bool {
	return env.MaxAttempts > 0 && env.Attempt >= env.MaxAttempts
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
