/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"sync"
	"sync/atomic"

	"chainguard.dev/opensorus/agents/agenttrace"
)

// Observer receives the verdicts of checks.
type Observer interface {
	// Fail marks the evaluation as failed with the given message.
	Fail(string)
	// Log records a message.
	Log(string)
	// Grade assigns a score in [0, 1] with reasoning.
	Grade(score float64, reasoning string)
	// Increment is called each time a trace is evaluated.
	Increment()
	// Total returns the number of evaluated traces.
	Total() int64
}

// ObservableTraceCallback checks a completed trace and reports to an Observer.
type ObservableTraceCallback[T any] func(Observer, *agenttrace.Trace[T])

// Inject binds callback to obs.
func Inject[T any](obs Observer, callback ObservableTraceCallback[T]) agenttrace.TraceCallback[T] {
	return func(trace *agenttrace.Trace[T]) {
		obs.Increment()
		callback(obs, trace)
	}
}

// Grade is a score with its reasoning.
type Grade struct {
	Score     float64
	Reasoning string
}

// ResultCollector is an Observer that keeps what it is told.
type ResultCollector struct {
	mu       sync.Mutex
	failures []string
	logs     []string
	grades   []Grade
	count    atomic.Int64
}

var _ Observer = (*ResultCollector)(nil)

// NewResultCollector creates an empty ResultCollector.
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

func (c *ResultCollector) Fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, msg)
}

func (c *ResultCollector) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, msg)
}

func (c *ResultCollector) Grade(score float64, reasoning string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grades = append(c.grades, Grade{Score: score, Reasoning: reasoning})
}

func (c *ResultCollector) Increment() { c.count.Add(1) }

func (c *ResultCollector) Total() int64 { return c.count.Load() }

// Failures returns the recorded failure messages.
func (c *ResultCollector) Failures() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.failures...)
}

// Logs returns the recorded log lines.
func (c *ResultCollector) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.logs...)
}

// Grades returns the recorded grades.
func (c *ResultCollector) Grades() []Grade {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Grade(nil), c.grades...)
}
