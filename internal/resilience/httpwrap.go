package resilience

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// maxRetryAfter bounds how long a server-supplied Retry-After may stall a retry.
const maxRetryAfter = 30 * time.Second

var errNoClient = errors.New("resilience: http client not configured")

// HTTPClient wraps an http.Client with per-attempt timeouts, retries on 5xx,
// 429 and transport errors, and an optional circuit breaker.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	// Target labels attempt metrics and logs.
	Target   string
	Logger   *zerolog.Logger
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do sends req until it gets a non-retryable response or runs out of
// attempts. The body is buffered once so every attempt resends it. When the
// breaker refuses, ErrOpenCircuit is returned unless Fallback is set.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errNoClient
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}
	attempts := max(cl.MaxAttempts, 1)
	base := cmp.Or(max(cl.BaseBackoff, 0), 100*time.Millisecond)

	var lastErr error
	for n := 1; ; n++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			cl.observe("rejected")
			lastErr = ErrOpenCircuit
			break
		}
		resp, wait, err := cl.attempt(ctx, req, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if n >= attempts {
			break
		}
		if wait <= 0 {
			wait = Backoff(base, n, cl.Jitter)
		}
		if cl.Logger != nil {
			cl.Logger.Debug().Err(err).Str("target", cl.Target).Int("attempt", n).Dur("wait", wait).Msg("retrying outbound request")
		}
		if err := pause(ctx, wait); err != nil {
			return nil, err
		}
	}

	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, lastErr)
	}
	return nil, lastErr
}

// attempt performs one round trip. A non-nil error means the attempt should
// be retried; wait carries the server's Retry-After hint when it sent one.
func (cl HTTPClient) attempt(ctx context.Context, req *http.Request, body []byte) (*http.Response, time.Duration, error) {
	resp, err := cl.roundTrip(ctx, req, body)
	if err != nil {
		cl.settle(ctx, "transport_error", false)
		return nil, 0, err
	}
	if !retryable(resp.StatusCode) {
		cl.settle(ctx, "ok", true)
		return resp, 0, nil
	}
	wait, _ := retryAfter(resp)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	cl.settle(ctx, "server_error", false)
	return nil, wait, fmt.Errorf("resilience: upstream responded %s", resp.Status)
}

func (cl HTTPClient) roundTrip(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout := cmp.Or(cl.Timeout, cl.Client.Timeout); timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	out := req.Clone(callCtx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}
	resp, err := cl.Client.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (cl HTTPClient) settle(ctx context.Context, outcome string, success bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
	HTTPAttemptsTotal.WithLabelValues(cmp.Or(cl.Target, "default"), outcome).Inc()
}

func (cl HTTPClient) observe(outcome string) {
	HTTPAttemptsTotal.WithLabelValues(cmp.Or(cl.Target, "default"), outcome).Inc()
}

// cancelOnClose keeps the attempt context alive until the caller is done
// reading the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter), true
}

// bufferBody reads the request body once and installs a GetBody that
// replays it.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	src := req.Body
	if req.GetBody != nil {
		fresh, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		src = fresh
	}
	defer func() { _ = src.Close() }()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, nil
}
