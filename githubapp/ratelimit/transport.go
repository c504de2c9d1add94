/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ratelimit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

const (
	// LowWatermark is the remaining quota at or below which a response is
	// treated as exhausted.
	LowWatermark = 2

	// ResetSlack is added to the reset time before a request is replayed.
	ResetSlack = 5 * time.Second

	// DefaultMaxAttempts bounds the number of times one request is sent.
	DefaultMaxAttempts = 3

	// DefaultMaxWait bounds the total time spent waiting for one request.
	DefaultMaxWait = 15 * time.Minute
)

// RateLimitExceededError is returned once a request has exhausted its
// attempts or its wait budget while the quota stayed exhausted.
type RateLimitExceededError struct {
	Attempts int
	Waited   time.Duration
	Reset    time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit still exhausted after %d attempts (waited %s, resets at %s)",
		e.Attempts, e.Waited, e.Reset.UTC().Format(time.RFC3339))
}

// Transport is an http.RoundTripper that watches the code host's quota
// headers and pauses until the quota resets before it runs out.
type Transport struct {
	base        http.RoundTripper
	maxAttempts int
	maxWait     time.Duration
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

var _ http.RoundTripper = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithMaxAttempts sets how many times one request may be sent.
func WithMaxAttempts(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithMaxWait sets the total wait budget for one request.
func WithMaxWait(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.maxWait = d
		}
	}
}

// WithClock replaces the wall clock and the sleeper, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// New wraps base. A nil base uses http.DefaultTransport.
func New(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:        base,
		maxAttempts: DefaultMaxAttempts,
		maxWait:     DefaultMaxWait,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Buffer the body so the identical request can be replayed.
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		body = b
	}

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(replay(req, body))
		if err != nil {
			return nil, err
		}

		remaining, reset, ok := quotaHeaders(resp.Header)
		if !ok {
			return resp, nil
		}
		remainingGauge.WithLabelValues(req.URL.Host).Set(float64(remaining))

		exhausted, err := quotaExhausted(resp, remaining)
		if err != nil {
			return nil, err
		}
		if !exhausted {
			return resp, nil
		}

		wait := max(reset.Sub(t.now())+ResetSlack, 0)
		if attempt >= t.maxAttempts || waited+wait > t.maxWait {
			if !isQuotaStatus(resp.StatusCode) {
				// The request itself went through; only the budget for the
				// next one is low.
				return resp, nil
			}
			drain(resp)
			exceededCounter.Inc()
			return nil, &RateLimitExceededError{Attempts: attempt, Waited: waited, Reset: reset}
		}
		drain(resp)

		clog.FromContext(ctx).With("method", req.Method).
			With("url", req.URL.Redacted()).
			With("status", resp.StatusCode).
			With("remaining", remaining).
			With("wait", wait).
			Warn("Rate limit nearly exhausted, waiting for reset")

		waitCounter.Inc()
		waitSeconds.Observe(wait.Seconds())
		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}
		waited += wait
	}
}

// replay returns a copy of req carrying a fresh reader over body.
func replay(req *http.Request, body []byte) *http.Request {
	r := req.Clone(req.Context())
	if body == nil {
		return r
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
	return r
}

// quotaHeaders parses X-RateLimit-Remaining and X-RateLimit-Reset.
// ok is false when either is absent or unparsable.
func quotaHeaders(h http.Header) (remaining int, reset time.Time, ok bool) {
	rs, ts := h.Get("X-RateLimit-Remaining"), h.Get("X-RateLimit-Reset")
	if rs == "" || ts == "" {
		return 0, time.Time{}, false
	}
	r, err := strconv.Atoi(rs)
	if err != nil {
		return 0, time.Time{}, false
	}
	epoch, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return r, time.Unix(epoch, 0), true
}

// quotaExhausted reports whether resp signals an exhausted quota. For 403
// and 429 the body is inspected and then restored for the caller.
func quotaExhausted(resp *http.Response, remaining int) (bool, error) {
	if remaining <= LowWatermark {
		return true, nil
	}
	if !isQuotaStatus(resp.StatusCode) {
		return false, nil
	}
	b, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return false, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(b))
	return strings.Contains(strings.ToLower(string(b)), "rate limit"), nil
}

func isQuotaStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
