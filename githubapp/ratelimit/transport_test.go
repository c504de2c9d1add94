/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ratelimit_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/opensorus/githubapp/ratelimit"
	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type sent struct {
	Method string
	URL    string
	Auth   string
	Body   string
}

// scripted replays responses in order and records every request it sees.
type scripted struct {
	responses []func() *http.Response
	sent      []sent
}

func (s *scripted) RoundTrip(r *http.Request) (*http.Response, error) {
	var body string
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}
	s.sent = append(s.sent, sent{Method: r.Method, URL: r.URL.String(), Auth: r.Header.Get("Authorization"), Body: body})
	i := len(s.sent) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	resp := s.responses[i]()
	resp.Request = r
	return resp, nil
}

func response(status int, remaining string, reset time.Time, body string) func() *http.Response {
	return func() *http.Response {
		h := http.Header{}
		if remaining != "" {
			h.Set("X-RateLimit-Remaining", remaining)
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		}
		return &http.Response{
			StatusCode: status,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader(body)),
		}
	}
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, "https://api.github.com/repos/acme/widgets/issues/7/comments", rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer tok")
	return req
}

func TestNoQuotaHeadersPassThrough(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusForbidden, "", time.Time{}, "API rate limit exceeded"),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep))

	resp, err := tr.RoundTrip(newRequest(t, http.MethodGet, ""))
	if err != nil {
		t.Fatalf("RoundTrip() = %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status: got = %d, wanted = 403", resp.StatusCode)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps: got = %v, wanted none", clock.sleeps)
	}
	if len(base.sent) != 1 {
		t.Errorf("requests: got = %d, wanted = 1", len(base.sent))
	}
}

func TestLowRemainingWaitsAndReplays(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	reset := clock.now.Add(30 * time.Second)
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusCreated, "2", reset, `{"id":1}`),
		response(http.StatusCreated, "4999", reset.Add(time.Hour), `{"id":2}`),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep))

	resp, err := tr.RoundTrip(newRequest(t, http.MethodPost, `{"body":"hello"}`))
	if err != nil {
		t.Fatalf("RoundTrip() = %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != `{"id":2}` {
		t.Errorf("body: got = %s, wanted the replayed response", b)
	}

	if diff := cmp.Diff([]time.Duration{35 * time.Second}, clock.sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if len(base.sent) != 2 {
		t.Fatalf("requests: got = %d, wanted = 2", len(base.sent))
	}
	if diff := cmp.Diff(base.sent[0], base.sent[1]); diff != "" {
		t.Errorf("replayed request differs (-first +second):\n%s", diff)
	}
	if base.sent[1].Body != `{"body":"hello"}` {
		t.Errorf("replayed body: got = %q", base.sent[1].Body)
	}
}

func TestForbiddenRateLimitBody(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tests := []struct {
		name      string
		status    int
		body      string
		wantSleep bool
	}{
		{"rate limit message", http.StatusForbidden, `{"message":"API Rate Limit exceeded for installation"}`, true},
		{"secondary 429", http.StatusTooManyRequests, "You have exceeded a secondary rate limit", true},
		{"plain forbidden", http.StatusForbidden, `{"message":"Resource not accessible by integration"}`, false},
		{"server error", http.StatusBadGateway, "rate limit", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{now: clock.now}
			base := &scripted{responses: []func() *http.Response{
				response(tt.status, "100", clock.now.Add(time.Minute), tt.body),
				response(http.StatusOK, "100", clock.now.Add(time.Hour), "ok"),
			}}
			tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep))
			resp, err := tr.RoundTrip(newRequest(t, http.MethodGet, ""))
			if err != nil {
				t.Fatalf("RoundTrip() = %v", err)
			}
			if got := len(clock.sleeps) > 0; got != tt.wantSleep {
				t.Errorf("slept: got = %v, wanted = %v", got, tt.wantSleep)
			}
			if !tt.wantSleep {
				// The inspected body is still readable.
				b, _ := io.ReadAll(resp.Body)
				if string(b) != tt.body {
					t.Errorf("body: got = %q, wanted = %q", b, tt.body)
				}
			}
		})
	}
}

func TestPastResetDoesNotSleepNegative(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusOK, "0", clock.now.Add(-time.Minute), "stale"),
		response(http.StatusOK, "5000", clock.now.Add(time.Hour), "fresh"),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep))
	if _, err := tr.RoundTrip(newRequest(t, http.MethodGet, "")); err != nil {
		t.Fatalf("RoundTrip() = %v", err)
	}
	if diff := cmp.Diff([]time.Duration{0}, clock.sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestBoundedAttempts(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusTooManyRequests, "1", clock.now.Add(10*time.Second), `{"message":"API rate limit exceeded"}`),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep), ratelimit.WithMaxAttempts(3))

	_, err := tr.RoundTrip(newRequest(t, http.MethodGet, ""))
	var rle *ratelimit.RateLimitExceededError
	if !errors.As(err, &rle) {
		t.Fatalf("RoundTrip() error = %v, wanted RateLimitExceededError", err)
	}
	if rle.Attempts != 3 {
		t.Errorf("Attempts: got = %d, wanted = 3", rle.Attempts)
	}
	if len(base.sent) != 3 {
		t.Errorf("requests: got = %d, wanted = 3", len(base.sent))
	}
	if len(clock.sleeps) != 2 {
		t.Errorf("sleeps: got = %d, wanted = 2", len(clock.sleeps))
	}
}

func TestBoundedWait(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusForbidden, "0", clock.now.Add(2*time.Hour), `{"message":"API rate limit exceeded"}`),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep), ratelimit.WithMaxWait(time.Hour))

	_, err := tr.RoundTrip(newRequest(t, http.MethodGet, ""))
	var rle *ratelimit.RateLimitExceededError
	if !errors.As(err, &rle) {
		t.Fatalf("RoundTrip() error = %v, wanted RateLimitExceededError", err)
	}
	if rle.Attempts != 1 || rle.Waited != 0 {
		t.Errorf("got Attempts=%d Waited=%s, wanted 1 and 0", rle.Attempts, rle.Waited)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("should not sleep past the wait budget: %v", clock.sleeps)
	}
}

func TestBudgetExhaustedKeepsSuccess(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	base := &scripted{responses: []func() *http.Response{
		response(http.StatusCreated, "1", clock.now.Add(10*time.Second), `{"id":1}`),
	}}
	tr := ratelimit.New(base, ratelimit.WithClock(clock.Now, clock.Sleep), ratelimit.WithMaxAttempts(1))

	resp, err := tr.RoundTrip(newRequest(t, http.MethodPost, `{"body":"hi"}`))
	if err != nil {
		t.Fatalf("RoundTrip() = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode: got = %d, wanted = %d", resp.StatusCode, http.StatusCreated)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() = %v", err)
	}
	if string(b) != `{"id":1}` {
		t.Errorf("body: got = %q, wanted the original body", b)
	}
	if len(base.sent) != 1 {
		t.Errorf("requests: got = %d, wanted = 1", len(base.sent))
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps: got = %v, wanted none", clock.sleeps)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	reset := time.Now().Add(time.Hour)
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		resp := response(http.StatusOK, "0", reset, "")()
		resp.Request = r
		return resp, nil
	})
	tr := ratelimit.New(base, ratelimit.WithMaxWait(2*time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/rate_limit", nil)

	start := time.Now()
	_, err := tr.RoundTrip(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RoundTrip() error = %v, wanted context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("RoundTrip() took %s after cancellation", elapsed)
	}
	if calls.Load() != 1 {
		t.Errorf("requests: got = %d, wanted = 1", calls.Load())
	}
}
