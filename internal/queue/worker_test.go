package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/queue"
)

func runWorker(t *testing.T, w queue.Worker) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	return func() {
		stop()
		<-done
	}
}

// orphan writes an in-flight task whose lease ran out, as left behind by a
// worker that died mid-task.
func orphan(t *testing.T, client *redis.Client, prefix, key string, attempt, maxAttempts int) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"kind":         "checkout-intent",
		"key":          key,
		"payload":      []byte(`{"company":"Acme Oy"}`),
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"available_at": time.Now().Add(-time.Minute).UnixNano(),
	})
	require.NoError(t, err)
	deadline := float64(time.Now().Add(-time.Second).UnixNano())
	require.NoError(t, client.ZAdd(context.Background(), prefix+":checkout-intent:inflight", redis.Z{Score: deadline, Member: raw}).Err())
	require.NoError(t, client.Set(context.Background(), prefix+":checkout-intent:dedup:"+key, "1", time.Hour).Err())
}

func TestWorkerDeliversAndAcks(t *testing.T) {
	mr, client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "ack", DedupTTL: time.Minute}
	require.NoError(t, enq.Enqueue(context.Background(), queue.Task{Kind: "checkout-intent", Payload: []byte("payload"), IdempotencyKey: "k1"}))

	got := make(chan queue.Task, 1)
	stop := runWorker(t, queue.Worker{
		R:      client,
		Prefix: "ack",
		Kind:   "checkout-intent",
		Handler: func(_ context.Context, task queue.Task) error {
			got <- task
			return nil
		},
	})

	select {
	case task := <-got:
		require.Equal(t, []byte("payload"), task.Payload)
		require.Equal(t, 1, task.Attempt)
		require.Equal(t, 10, task.MaxAttempts)
		require.Equal(t, "k1", task.IdempotencyKey)
	case <-time.After(2 * time.Second):
		t.Fatal("task not delivered")
	}

	require.Eventually(t, func() bool {
		st, err := enq.Stats(context.Background(), "checkout-intent")
		return err == nil && st.Ready == 0 && st.Processing == 0
	}, time.Second, 10*time.Millisecond)
	stop()
	require.False(t, mr.Exists("ack:checkout-intent:dedup:k1"))
}

func TestWorkerRetriesFailedTask(t *testing.T) {
	_, client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "retry"}
	require.NoError(t, enq.Enqueue(context.Background(), queue.Task{Kind: "checkout-intent", IdempotencyKey: "r1", MaxAttempts: 3}))

	attempts := make(chan int, 3)
	stop := runWorker(t, queue.Worker{
		R:            client,
		Prefix:       "retry",
		Kind:         "checkout-intent",
		RetryBase:    5 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Handler: func(_ context.Context, task queue.Task) error {
			attempts <- task.Attempt
			if task.Attempt == 1 {
				return errors.New("crm returned 502")
			}
			return nil
		},
	})
	defer stop()

	for want := 1; want <= 2; want++ {
		select {
		case got := <-attempts:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d never ran", want)
		}
	}
}

func TestWorkerRedeliversOrphanedTask(t *testing.T) {
	_, client := newRedis(t)
	orphan(t, client, "crash", "o1", 0, 3)

	attempts := make(chan int, 1)
	stop := runWorker(t, queue.Worker{
		R:                 client,
		Prefix:            "crash",
		Kind:              "checkout-intent",
		VisibilityTimeout: 100 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		Handler: func(_ context.Context, task queue.Task) error {
			attempts <- task.Attempt
			return nil
		},
	})
	defer stop()

	select {
	case got := <-attempts:
		require.Equal(t, 2, got)
	case <-time.After(2 * time.Second):
		t.Fatal("orphaned task was not redelivered")
	}
}

func TestWorkerDeadLettersOrphanOnLastAttempt(t *testing.T) {
	mr, client := newRedis(t)
	orphan(t, client, "spent", "o2", 2, 3)

	var calls atomic.Int32
	stop := runWorker(t, queue.Worker{
		R:                 client,
		Prefix:            "spent",
		Kind:              "checkout-intent",
		VisibilityTimeout: 60 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		Handler: func(context.Context, queue.Task) error {
			calls.Add(1)
			return nil
		},
	})

	enq := queue.Enqueuer{R: client, Prefix: "spent"}
	require.Eventually(t, func() bool {
		st, err := enq.Stats(context.Background(), "checkout-intent")
		return err == nil && st.DLQ == 1
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	require.Zero(t, calls.Load())
	require.False(t, mr.Exists("spent:checkout-intent:dedup:o2"))
	items, _, err := enq.DeadLetters(context.Background(), "checkout-intent", 0, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Attempts)
	require.Equal(t, "lease expired before the task finished", items[0].LastError)
}

func TestWorkerRespectsConcurrency(t *testing.T) {
	_, client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "conc"}
	for range 6 {
		require.NoError(t, enq.Enqueue(context.Background(), queue.Task{Kind: "checkout-intent"}))
	}

	var (
		mu       sync.Mutex
		running  int
		peak     int
		finished atomic.Int32
	)
	stop := runWorker(t, queue.Worker{
		R:            client,
		Prefix:       "conc",
		Kind:         "checkout-intent",
		Concurrency:  2,
		PollInterval: 5 * time.Millisecond,
		Handler: func(context.Context, queue.Task) error {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()
			time.Sleep(15 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			finished.Add(1)
			return nil
		},
	})

	require.Eventually(t, func() bool { return finished.Load() == 6 }, 3*time.Second, 10*time.Millisecond)
	stop()
	require.LessOrEqual(t, peak, 2)
}

func TestWorkerRequiresHandlerAndKind(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	require.Error(t, queue.Worker{Kind: "demo", Handler: func(context.Context, queue.Task) error { return nil }}.Run(ctx))
	require.Error(t, queue.Worker{R: client, Kind: "demo"}.Run(ctx))
	require.Error(t, queue.Worker{R: client, Kind: "Demo", Handler: func(context.Context, queue.Task) error { return nil }}.Run(ctx))
}
