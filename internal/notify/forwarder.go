package notify

import (
	"bytes"
	"cmp"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/queue"
	"github.com/hrk/storefront-api/internal/resilience"
)

// ErrDeliveryRejected is returned when the webhook answers with a non-2xx status.
var ErrDeliveryRejected = errors.New("notify: webhook rejected delivery")

var errNoHTTPClient = errors.New("notify: http client not configured")

const drainLimit = 64 << 10

// Forwarder delivers queued checkout intents to a signed webhook.
type Forwarder struct {
	HTTP      *resilience.HTTPClient
	URL       string
	Secret    string
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// outcome of a single delivery attempt, used as the metric label.
type outcome string

const (
	delivered outcome = "delivered"
	duplicate outcome = "duplicate"
	failed    outcome = "failed"
)

// Handle is a queue.Worker handler. A nil return acknowledges the task.
func (f *Forwarder) Handle(ctx context.Context, task queue.Task) error {
	var evt IntentEvent
	if err := json.Unmarshal(task.Payload, &evt); err != nil {
		// Retrying cannot fix a payload that does not decode.
		f.Logger.Error().Err(err).Str("key", task.IdempotencyKey).Msg("intent_event_undecodable")
		return nil
	}

	started := time.Now()
	res, status, err := f.deliver(ctx, evt, task)
	elapsed := obs.DurationMillis(time.Since(started))
	if res == duplicate {
		elapsed = 0
	}
	obs.ObserveIntentForward(string(res), elapsed)
	if err != nil {
		return err
	}
	if res == delivered {
		f.Logger.Info().
			Str("event_id", evt.EventID).
			Int("status", status).
			Int("attempt", task.Attempt).
			Msg("intent_forwarded")
	}
	return nil
}

func (f *Forwarder) deliver(ctx context.Context, evt IntentEvent, task queue.Task) (outcome, int, error) {
	if f.HTTP == nil {
		return failed, 0, errNoHTTPClient
	}
	ctx, span := otel.Tracer("notify").Start(ctx, "intent.forward", trace.WithAttributes(
		attribute.String("webhook.event_id", evt.EventID),
		attribute.String("webhook.topic", evt.Topic),
		attribute.Int("webhook.attempt", task.Attempt),
	))
	defer span.End()

	fail := func(status int, err error) (outcome, int, error) {
		span.RecordError(err)
		return failed, status, err
	}
	if err := checkTarget(f.URL); err != nil {
		return fail(0, err)
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fail(0, err)
	}

	guarded := f.Replay != nil && f.ReplayTTL > 0
	if guarded {
		first, err := f.Replay.Acquire(ctx, evt.EventID, f.ReplayTTL)
		if err != nil {
			return fail(0, err)
		}
		if !first {
			span.AddEvent("delivery replay prevented")
			return duplicate, 0, nil
		}
	}

	req, err := f.newRequest(ctx, evt.EventID, cmp.Or(task.IdempotencyKey, evt.EventID), body)
	if err != nil {
		return fail(0, err)
	}
	status, err := f.send(ctx, req)
	if err != nil {
		if guarded {
			_ = f.Replay.Release(context.WithoutCancel(ctx), evt.EventID)
		}
		return fail(status, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return delivered, status, nil
}

func (f *Forwarder) newRequest(ctx context.Context, eventID, key string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	ts := time.Now().Unix()
	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "storefront-intents/1.0")
	h.Set("X-Event-ID", eventID)
	h.Set("X-Idempotency-Key", key)
	h.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	h.Set("X-Signature", ComputeSignature(f.Secret, ts, eventID, body))
	return req, nil
}

func (f *Forwarder) send(ctx context.Context, req *http.Request) (int, error) {
	resp, err := f.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// checkTarget accepts https URLs, and plain http only for loopback hosts.
func checkTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if h := u.Hostname(); h == "localhost" || h == "127.0.0.1" || h == "::1" {
			return nil
		}
		return errors.New("http webhook only allowed for localhost")
	default:
		return errors.New("webhook url must be http or https")
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of "<ts>.<eventID>.<body>"
// keyed with the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	msg := make([]byte, 0, len(body)+len(eventID)+24)
	msg = strconv.AppendInt(msg, ts, 10)
	msg = append(msg, '.')
	msg = append(msg, eventID...)
	msg = append(msg, '.')
	msg = append(msg, body...)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// NewHTTPClient returns the traced client used for webhook delivery.
func NewHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(transport)}
}
