package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/queue"
)

const (
	// TopicCheckoutIntent labels forwarded checkout intents.
	TopicCheckoutIntent = "checkout.intent"
	// TaskKind is the queue kind carrying intents awaiting delivery.
	TaskKind = "checkout-intent"
)

// IntentEvent is the envelope delivered to the intent webhook.
type IntentEvent struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Data       checkout.Intent `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Enqueuer publishes queue tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// IntentPublisher implements checkout.IntentLogger by queueing every accepted
// intent for webhook delivery.
type IntentPublisher struct {
	Queue       Enqueuer
	MaxAttempts int
	Timeout     time.Duration
	NewID       func() string
}

// LogIntent implements checkout.IntentLogger.
func (p IntentPublisher) LogIntent(in checkout.Intent) error {
	if p.Queue == nil {
		return nil
	}
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	occurred := in.Timestamp
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	evt := IntentEvent{
		EventID:    newID(),
		Topic:      TopicCheckoutIntent,
		Data:       in,
		OccurredAt: occurred,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Queue.Enqueue(ctx, queue.Task{
		Kind:           TaskKind,
		Payload:        payload,
		IdempotencyKey: evt.EventID,
		MaxAttempts:    p.MaxAttempts,
	})
}
