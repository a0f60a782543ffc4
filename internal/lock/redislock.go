package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrWaitTimeout is returned when the lock stays held by another owner for
// longer than Locker.MaxWait.
var ErrWaitTimeout = errors.New("lock: wait timed out")

// ErrLeaseLost is returned by WithLock when the lease expired and another
// owner took the key while the callback was still running.
var ErrLeaseLost = errors.New("lock: lease lost")

var (
	releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker hands out owner-tokened Redis locks so that replicas serving the
// same storefront session take turns.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls for a busy key. Zero waits
	// until ctx is done.
	MaxWait time.Duration
}

// Lease is a held lock.
type Lease struct {
	locker Locker
	key    string
	token  string
}

// WithLock runs fn while holding key. The lease is extended every ttl/2
// until fn returns and is released afterwards, whatever fn returns. If an
// extension finds the key owned by someone else, fn's context is cancelled
// and ErrLeaseLost is returned.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer lease.Release(context.WithoutCancel(ctx))

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	done := make(chan struct{})
	go lease.keepAlive(runCtx, ttl, done, cancel)

	err = fn(runCtx)
	close(done)
	if errors.Is(context.Cause(runCtx), ErrLeaseLost) {
		return ErrLeaseLost
	}
	return err
}

func (ls *Lease) keepAlive(ctx context.Context, ttl time.Duration, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(max(ttl/2, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := ls.Extend(ctx, ttl)
			if err == nil && !ok {
				cancel(ErrLeaseLost)
				return
			}
		}
	}
}

// Acquire polls until key is free, ctx is done or MaxWait elapses.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l.R == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	var deadline <-chan time.Time
	if l.MaxWait > 0 {
		timer := time.NewTimer(l.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	token := uuid.NewString()
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lease{locker: l, key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

// Extend pushes the lease expiry out to ttl from now. It reports false when
// the lease has already expired and been taken by someone else.
func (ls *Lease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, ls.locker.R, []string{ls.key}, ls.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release drops the lock if this lease still owns it.
func (ls *Lease) Release(ctx context.Context) {
	_ = releaseScript.Run(ctx, ls.locker.R, []string{ls.key}, ls.token).Err()
}
