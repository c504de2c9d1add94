/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudellm

import (
	"errors"
	"fmt"

	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/agents/retry"
)

// Option configures a Model.
type Option func(*Model) error

// WithMaxTokens sets the maximum tokens for responses
func WithMaxTokens(tokens int64) Option {
	return func(m *Model) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		if tokens > 32000 {
			return fmt.Errorf("max tokens %d exceeds maximum of 32000", tokens)
		}
		m.maxTokens = tokens
		return nil
	}
}

// WithTemperature sets the temperature, between 0.0 and 1.0.
func WithTemperature(temp float64) Option {
	return func(m *Model) error {
		if temp < 0.0 || temp > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temp)
		}
		m.temperature = temp
		return nil
	}
}

// WithRetryConfig overrides the retry policy for overloaded or rate-limited calls.
func WithRetryConfig(cfg retry.Config) Option {
	return func(m *Model) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		m.retryConfig = cfg
		return nil
	}
}

// WithMetrics sets the metrics instance token usage is recorded on.
func WithMetrics(g *metrics.GenAI) Option {
	return func(m *Model) error {
		if g == nil {
			return errors.New("metrics cannot be nil")
		}
		m.metrics = g
		return nil
	}
}
