package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeadLetter is a task that exhausted its attempts.
type DeadLetter struct {
	Kind      string          `json:"kind"`
	Key       string          `json:"idempotencyKey,omitempty"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	FailedAt  time.Time       `json:"failedAt"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Stats summarises one queue kind.
type Stats struct {
	Kind        string `json:"kind"`
	Ready       int64  `json:"ready"`
	Processing  int64  `json:"processing"`
	DLQ         int64  `json:"dlq"`
	OldestLagMS int64  `json:"oldest_lag_ms"`
}

// DeadLetters lists DLQ entries newest first together with the total size.
func (e Enqueuer) DeadLetters(ctx context.Context, kind string, offset, limit int) ([]DeadLetter, int64, error) {
	if e.R == nil {
		return nil, 0, errNoRedis
	}
	kind, ok := validKind(kind)
	if !ok {
		return nil, 0, errNoKind
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	dlqKey := keyspace{prefix: e.Prefix, kind: kind}.dead()
	total, err := e.R.LLen(ctx, dlqKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}
	raws, err := e.R.LRange(ctx, dlqKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}
	out := make([]DeadLetter, 0, len(raws))
	for _, raw := range raws {
		msg, err := decodeEnvelope(raw)
		if err != nil {
			continue
		}
		dl := DeadLetter{
			Kind:      msg.Kind,
			Key:       msg.Key,
			Attempts:  msg.Attempt,
			LastError: msg.LastError,
		}
		if msg.FailedAt > 0 {
			dl.FailedAt = time.Unix(0, msg.FailedAt).UTC()
		}
		if json.Valid(msg.Payload) {
			dl.Payload = json.RawMessage(msg.Payload)
		}
		out = append(out, dl)
	}
	return out, total, nil
}

// Replay moves up to limit of the oldest DLQ entries back onto the ready
// queue with a fresh attempt budget.
func (e Enqueuer) Replay(ctx context.Context, kind string, limit int) (int, error) {
	if e.R == nil {
		return 0, errNoRedis
	}
	kind, ok := validKind(kind)
	if !ok {
		return 0, errNoKind
	}
	if limit <= 0 {
		limit = 50
	}
	dlqKey := keyspace{prefix: e.Prefix, kind: kind}.dead()
	replayed := 0
	for replayed < limit {
		raw, err := e.R.RPop(ctx, dlqKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return replayed, err
		}
		msg, err := decodeEnvelope(raw)
		if err != nil {
			continue
		}
		task := Task{Kind: msg.Kind, Payload: msg.Payload, IdempotencyKey: msg.Key, MaxAttempts: msg.MaxAttempts}
		if err := e.Enqueue(ctx, task); err != nil {
			_ = e.R.RPush(ctx, dlqKey, raw).Err()
			return replayed, err
		}
		replayed++
	}
	observeDLQ(ctx, e.R, dlqKey, kind)
	return replayed, nil
}

// Stats reports queue depth, in-flight count, DLQ size and the age of the
// oldest ready task.
func (e Enqueuer) Stats(ctx context.Context, kind string) (Stats, error) {
	if e.R == nil {
		return Stats{}, errNoRedis
	}
	kind, ok := validKind(kind)
	if !ok {
		return Stats{}, errNoKind
	}
	ks := keyspace{prefix: e.Prefix, kind: kind}
	pipe := e.R.Pipeline()
	ready := pipe.ZCard(ctx, ks.ready())
	processing := pipe.ZCard(ctx, ks.inflight())
	dlq := pipe.LLen(ctx, ks.dead())
	oldest := pipe.ZRangeWithScores(ctx, ks.ready(), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}
	st := Stats{Kind: kind, Ready: ready.Val(), Processing: processing.Val(), DLQ: dlq.Val()}
	if z := oldest.Val(); len(z) > 0 {
		ts := time.Unix(0, int64(z[0].Score))
		if ts.Before(time.Now()) {
			st.OldestLagMS = time.Since(ts).Milliseconds()
		}
	}
	QueueDepth.WithLabelValues(kind).Set(float64(st.Ready))
	QueueDLQSize.WithLabelValues(kind).Set(float64(st.DLQ))
	return st, nil
}
