/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"errors"
	"time"

	"chainguard.dev/opensorus/agents/metrics"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxSteps sets how many tool calls a run may execute.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return errors.New("max steps must be positive")
		}
		o.maxSteps = n
		return nil
	}
}

// WithCallTimeout bounds each model call and each tool call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return errors.New("call timeout must be positive")
		}
		o.callTimeout = d
		return nil
	}
}

// WithMetrics replaces the default GenAI metrics.
func WithMetrics(m *metrics.GenAI) Option {
	return func(o *Orchestrator) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		o.metrics = m
		return nil
	}
}
