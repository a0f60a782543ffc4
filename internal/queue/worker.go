package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/resilience"
)

// claimScript moves the earliest due task from the ready set into the
// in-flight set under a lease deadline.
var claimScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #due == 0 then
  return false
end
redis.call("ZREM", KEYS[1], due[1])
redis.call("ZADD", KEYS[2], ARGV[2], due[1])
return due[1]
`)

const leaseExpired = "lease expired before the task finished"

// Worker runs Handler for every task of one kind.
type Worker struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Concurrency int
	// VisibilityTimeout is the lease on a claimed task. Tasks still
	// in flight after it are handed out again and the lost run counts as
	// a failed attempt.
	VisibilityTimeout time.Duration
	// SoftDeadline caps the handler context when shorter than the lease.
	SoftDeadline time.Duration
	Handler      func(context.Context, Task) error
	RetryBase    time.Duration
	RetryJitter  float64
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

// Run claims and handles tasks until ctx is cancelled, then waits for the
// running handlers. A slot is reserved before claiming so a task's lease
// only starts once it can run.
func (w Worker) Run(ctx context.Context) error {
	switch {
	case w.R == nil:
		return errNoRedis
	case w.Handler == nil:
		return errors.New("queue: worker handler not configured")
	}
	kind, ok := validKind(w.Kind)
	if !ok {
		return errNoKind
	}
	ks := keyspace{prefix: w.Prefix, kind: kind}
	lease := durationOr(w.VisibilityTimeout, 30*time.Second)
	poll := durationOr(w.PollInterval, 100*time.Millisecond)

	slots := make(chan struct{}, max(w.Concurrency, 1))
	var wg sync.WaitGroup
	defer wg.Wait()

	sweep := time.NewTicker(min(max(lease/2, 10*time.Millisecond), time.Second))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep.C:
			if err := w.reclaimExpired(ctx, ks); err != nil && ctx.Err() == nil {
				return err
			}
		case slots <- struct{}{}:
			raw, err := w.claim(ctx, ks, lease)
			if err != nil || raw == "" {
				<-slots
				if err != nil && ctx.Err() == nil {
					return err
				}
				sleep(ctx, poll)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				w.handle(ctx, ks, raw, lease)
			}()
		}
	}
}

func (w Worker) claim(ctx context.Context, ks keyspace, lease time.Duration) (string, error) {
	now := time.Now()
	raw, err := claimScript.Run(ctx, w.R, []string{ks.ready(), ks.inflight()},
		strconv.FormatInt(now.UnixNano(), 10),
		strconv.FormatInt(now.Add(lease).UnixNano(), 10)).Text()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return raw, err
}

func (w Worker) handle(ctx context.Context, ks keyspace, raw string, lease time.Duration) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		w.logger().Warn().Err(err).Str("kind", ks.kind).Msg("queue_message_undecodable")
		_ = w.R.ZRem(context.WithoutCancel(ctx), ks.inflight(), raw).Err()
		return
	}

	limit := lease
	if w.SoftDeadline > 0 && w.SoftDeadline < limit {
		limit = w.SoftDeadline
	}
	runCtx, cancel := context.WithTimeout(ctx, limit)
	herr := w.Handler(runCtx, Task{
		Kind:           env.Kind,
		Payload:        env.Payload,
		IdempotencyKey: env.Key,
		MaxAttempts:    env.MaxAttempts,
		Attempt:        env.Attempt + 1,
	})
	cancel()

	// Bookkeeping outlives both the handler deadline and shutdown.
	bookCtx, bookCancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer bookCancel()

	removed, err := w.R.ZRem(bookCtx, ks.inflight(), raw).Result()
	if err != nil {
		w.logger().Error().Err(err).Str("kind", env.Kind).Msg("queue_release_failed")
		return
	}
	if removed == 0 {
		// The sweeper already took the task back; its outcome belongs to the next run.
		w.logger().Warn().Str("kind", env.Kind).Str("key", env.Key).Msg("queue_lease_lost")
		return
	}

	env.Attempt++
	if herr == nil {
		if env.Key != "" {
			_ = w.R.Del(bookCtx, ks.dedup(env.Key)).Err()
		}
		observeProcessed(env.Kind, "ok")
		return
	}
	w.logger().Warn().Err(herr).
		Str("kind", env.Kind).
		Str("key", env.Key).
		Int("attempt", env.Attempt).
		Int("max_attempts", env.MaxAttempts).
		Msg("queue_task_failed")
	w.fail(bookCtx, ks, env, herr.Error())
}

// fail either schedules env for another attempt or dead-letters it.
func (w Worker) fail(ctx context.Context, ks keyspace, env envelope, cause string) {
	env.LastError = cause
	if env.exhausted() {
		env.FailedAt = time.Now().UnixNano()
		if err := w.deadLetter(ctx, ks, env); err != nil {
			w.logger().Error().Err(err).Str("kind", env.Kind).Msg("queue_dlq_push_failed")
			return
		}
		observeProcessed(env.Kind, "dlq")
		observeDLQ(ctx, w.R, ks.dead(), env.Kind)
		return
	}
	env.AvailableAt = time.Now().Add(resilience.Backoff(durationOr(w.RetryBase, 200*time.Millisecond), env.Attempt, w.RetryJitter)).UnixNano()
	if err := w.schedule(ctx, ks, env); err != nil {
		w.logger().Error().Err(err).Str("kind", env.Kind).Msg("queue_retry_schedule_failed")
		return
	}
	observeProcessed(env.Kind, "retry")
}

func (w Worker) schedule(ctx context.Context, ks keyspace, env envelope) error {
	raw, err := jsonString(env)
	if err != nil {
		return err
	}
	return w.R.ZAdd(ctx, ks.ready(), redis.Z{Score: float64(env.AvailableAt), Member: raw}).Err()
}

func (w Worker) deadLetter(ctx context.Context, ks keyspace, env envelope) error {
	raw, err := jsonString(env)
	if err != nil {
		return err
	}
	_, err = w.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, ks.dead(), raw)
		if env.Key != "" {
			p.Del(ctx, ks.dedup(env.Key))
		}
		return nil
	})
	return err
}

// reclaimExpired returns tasks whose lease ran out, typically because the
// worker holding them died, to the ready set.
func (w Worker) reclaimExpired(ctx context.Context, ks keyspace) error {
	expired, err := w.R.ZRangeByScore(ctx, ks.inflight(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixNano(), 10),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, raw := range expired {
		removed, err := w.R.ZRem(ctx, ks.inflight(), raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			continue
		}
		env.Attempt++
		w.logger().Info().Str("kind", env.Kind).Int("attempt", env.Attempt).Msg("queue_task_redelivered")
		if env.exhausted() {
			w.fail(ctx, ks, env, leaseExpired)
			continue
		}
		env.LastError = leaseExpired
		env.AvailableAt = time.Now().UnixNano()
		_ = w.schedule(ctx, ks, env)
	}
	return nil
}

func (w Worker) logger() *zerolog.Logger {
	if w.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return w.Logger
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
