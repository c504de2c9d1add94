/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package ratelimit provides an http.RoundTripper that keeps GitHub API
// clients inside their quota.
//
// After every response the transport reads X-RateLimit-Remaining and
// X-RateLimit-Reset. When the quota is exhausted (a 403 or 429 whose body
// mentions the rate limit, or LowWatermark or fewer requests left) it waits
// until the reset time plus ResetSlack and sends the identical request
// again. Responses without both headers pass through untouched.
//
// Waits honor the request context. Each request is sent at most
// DefaultMaxAttempts times and waits at most DefaultMaxWait in total, after
// which RoundTrip returns a *RateLimitExceededError.
package ratelimit
