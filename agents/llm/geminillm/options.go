/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package geminillm

import (
	"errors"
	"fmt"

	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/agents/retry"
)

// Option configures a Model.
type Option func(*Model) error

// WithTemperature sets the temperature, between 0.0 and 2.0.
func WithTemperature(temp float32) Option {
	return func(m *Model) error {
		if temp < 0.0 || temp > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temp)
		}
		m.temperature = temp
		return nil
	}
}

// WithMaxOutputTokens sets the response token limit.
func WithMaxOutputTokens(tokens int32) Option {
	return func(m *Model) error {
		if tokens <= 0 {
			return fmt.Errorf("max output tokens must be positive, got %d", tokens)
		}
		m.maxTokens = tokens
		return nil
	}
}

// WithRetryConfig overrides the retry policy for quota errors.
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
