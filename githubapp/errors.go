/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/opensorus/githubapp/ratelimit"
	"github.com/google/go-github/v75/github"
)

// AuthError reports a failure to authenticate as the app or one of its
// installations. It is never retried.
type AuthError struct {
	Operation  string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// InvalidReferenceError is returned for issue URLs that do not name an issue.
type InvalidReferenceError struct {
	URL string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid GitHub issue URL %q", e.URL)
}

// StatusError is returned when an issue operation gets an unexpected status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// statusCode extracts the HTTP status from a go-github error, or 0.
func statusCode(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

// IsQuotaSignal reports whether err means the code host is throttling us:
// a primary or secondary rate limit, a 429, or an exhausted transport budget.
func IsQuotaSignal(err error) bool {
	if err == nil {
		return false
	}
	var rle *ratelimit.RateLimitExceededError
	if errors.As(err, &rle) {
		return true
	}
	var primary *github.RateLimitError
	if errors.As(err, &primary) {
		return true
	}
	var secondary *github.AbuseRateLimitError
	if errors.As(err, &secondary) {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusTooManyRequests
	}
	return false
}
