/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// GenAI records model usage for agent runs: tokens, tool calls and run outcomes.
// Instruments that fail to initialize degrade to no-ops.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	toolCalls        metric.Int64Counter
	runs             metric.Int64Counter
	runSteps         metric.Int64Histogram
	attrEnricher     AttributeEnricher
}

// NewGenAI creates a GenAI metrics instance on the named meter. The model
// is a dimension on every measurement so all providers share one meter.
func NewGenAI(meterName string) *GenAI {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			slog.Warn("Failed to create counter, metric will be disabled", "error", err, "meter", meterName, "name", name)
			return noop.Int64Counter{}
		}
		return c
	}

	runSteps, err := meter.Int64Histogram("agent.run.steps",
		metric.WithDescription("The number of tool calls executed per agent run"),
		metric.WithUnit("{calls}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5, 8))
	if err != nil {
		slog.Warn("Failed to create run steps histogram, metric will be disabled", "error", err, "meter", meterName)
		runSteps = noop.Int64Histogram{}
	}

	return &GenAI{
		promptTokens:     counter("genai.token.prompt", "The number of prompt tokens used", "{tokens}"),
		completionTokens: counter("genai.token.completion", "The number of completion tokens used", "{tokens}"),
		toolCalls:        counter("genai.tool.calls", "The number of tool calls made during execution", "{calls}"),
		runs:             counter("agent.runs", "The number of agent runs by final state", "{runs}"),
		runSteps:         runSteps,
	}
}

// SetAttributeEnricher sets the enricher called before every measurement.
func (m *GenAI) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

func (m *GenAI) attributes(ctx context.Context, base []attribute.KeyValue, extra []attribute.KeyValue) metric.MeasurementOption {
	if m.attrEnricher != nil {
		base = m.attrEnricher(ctx, base)
	}
	return metric.WithAttributes(append(base, extra...)...)
}

// RecordTokens records prompt and completion token usage for one model call.
func (m *GenAI) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	opt := m.attributes(ctx, []attribute.KeyValue{attribute.String("model", model)}, attrs)
	m.promptTokens.Add(ctx, promptTokens, opt)
	m.completionTokens.Add(ctx, completionTokens, opt)
}

// RecordToolCall records one tool invocation. Unknown tools are recorded too,
// under the name the model asked for.
func (m *GenAI) RecordToolCall(ctx context.Context, model, toolName string, attrs ...attribute.KeyValue) {
	m.toolCalls.Add(ctx, 1, m.attributes(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("tool", toolName),
	}, attrs))
}

// RecordRun records the final state of a run and how many tool calls it executed.
func (m *GenAI) RecordRun(ctx context.Context, model, state string, steps int) {
	opt := m.attributes(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("state", state),
	}, nil)
	m.runs.Add(ctx, 1, opt)
	m.runSteps.Record(ctx, int64(steps), opt)
}
