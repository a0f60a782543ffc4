package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/queue"
)

func TestFailingTaskEndsInDLQAndReplays(t *testing.T) {
	mr, client := newRedis(t)
	queue.QueueProcessedTotal.Reset()

	enq := queue.Enqueuer{R: client, Prefix: "dlq", MaxAttempts: 2, DedupTTL: time.Hour}
	require.NoError(t, enq.Enqueue(context.Background(), queue.Task{
		Kind:           "checkout-intent",
		Payload:        []byte(`{"company":"Acme Oy"}`),
		IdempotencyKey: "dlq1",
	}))

	stop := runWorker(t, queue.Worker{
		R:            client,
		Prefix:       "dlq",
		Kind:         "checkout-intent",
		RetryBase:    10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Handler: func(context.Context, queue.Task) error {
			return errors.New("crm unavailable")
		},
	})
	require.Eventually(t, func() bool {
		st, err := enq.Stats(context.Background(), "checkout-intent")
		return err == nil && st.DLQ == 1
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	items, total, err := enq.DeadLetters(context.Background(), "checkout-intent", 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	dl := items[0]
	require.Equal(t, "dlq1", dl.Key)
	require.Equal(t, 2, dl.Attempts)
	require.Equal(t, "crm unavailable", dl.LastError)
	require.WithinDuration(t, time.Now(), dl.FailedAt, 5*time.Second)
	require.JSONEq(t, `{"company":"Acme Oy"}`, string(dl.Payload))
	require.False(t, mr.Exists("dlq:checkout-intent:dedup:dlq1"))

	require.Equal(t, 1.0, testutil.ToFloat64(queue.QueueProcessedTotal.WithLabelValues("checkout-intent", "retry")))
	require.Equal(t, 1.0, testutil.ToFloat64(queue.QueueProcessedTotal.WithLabelValues("checkout-intent", "dlq")))

	replayed, err := enq.Replay(context.Background(), "checkout-intent", 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	st, err := enq.Stats(context.Background(), "checkout-intent")
	require.NoError(t, err)
	require.Equal(t, int64(1), st.Ready)
	require.Zero(t, st.DLQ)
}

func TestDeadLettersPaginatesNewestFirst(t *testing.T) {
	_, client := newRedis(t)
	seedDLQ(t, client, "page:checkout-intent:dead", 3)
	enq := queue.Enqueuer{R: client, Prefix: "page"}

	items, total, err := enq.DeadLetters(context.Background(), "checkout-intent", 1, 5)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	// seedDLQ pushes a, b, c to the head, so offset 1 starts at b.
	require.Equal(t, "intent-b", items[0].Key)
	require.Equal(t, "intent-a", items[1].Key)
}

func TestReplayEmptyDLQ(t *testing.T) {
	_, client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "empty"}

	replayed, err := enq.Replay(context.Background(), "checkout-intent", 5)
	require.NoError(t, err)
	require.Zero(t, replayed)

	items, total, err := enq.DeadLetters(context.Background(), "checkout-intent", 0, 5)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)
}
