/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"fmt"
	"maps"
	"slices"

	"chainguard.dev/opensorus/agents/agenttrace"
)

func names[T any](trace *agenttrace.Trace[T]) []string {
	calls := trace.Calls()
	out := make([]string, 0, len(calls))
	for _, tc := range calls {
		out = append(out, tc.Name)
	}
	return out
}

// ExactToolCalls checks that the trace has exactly n tool calls.
func ExactToolCalls[T any](n int) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		if got := len(trace.Calls()); got != n {
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted = %d", got, n))
		}
	}
}

// MaximumNToolCalls checks that the trace has at most n tool calls.
func MaximumNToolCalls[T any](n int) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		if got := len(trace.Calls()); got > n {
			o.Fail(fmt.Sprintf("tool call count: got = %d, wanted <= %d", got, n))
		}
	}
}

// OnlyToolCalls checks that the trace uses no tools besides toolNames.
func OnlyToolCalls[T any](toolNames ...string) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		for _, name := range names(trace) {
			if !slices.Contains(toolNames, name) {
				o.Fail(fmt.Sprintf("unexpected tool call %q, only allowed: %v", name, toolNames))
				return
			}
		}
	}
}

// RequiredToolCalls checks that every tool in toolNames was called at least once.
func RequiredToolCalls[T any](toolNames ...string) ObservableTraceCallback[T] {
	base := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		base[name] = struct{}{}
	}
	return func(o Observer, trace *agenttrace.Trace[T]) {
		required := maps.Clone(base)
		for _, name := range names(trace) {
			delete(required, name)
		}
		if len(required) > 0 {
			o.Fail(fmt.Sprintf("missing required tool calls: %v", slices.Sorted(maps.Keys(required))))
		}
	}
}

// ToolCallOrder checks that the tools were called in exactly this sequence.
func ToolCallOrder[T any](toolNames ...string) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		if got := names(trace); !slices.Equal(got, toolNames) {
			o.Fail(fmt.Sprintf("tool call order: got = %v, wanted = %v", got, toolNames))
		}
	}
}

// ToolCallNamed runs validator on every call to the named tool, and fails
// when there is none.
func ToolCallNamed[T any](name string, validator func(o Observer, tc *agenttrace.ToolCall[T]) error) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		found := false
		for _, tc := range trace.Calls() {
			if tc.Name != name {
				continue
			}
			found = true
			if err := validator(o, tc); err != nil {
				o.Fail(fmt.Sprintf("tool call %s validation failed: %v", name, err))
				return
			}
		}
		if !found {
			o.Fail(fmt.Sprintf("tool call named %q: got = not found, wanted = found", name))
		}
	}
}

// NoErrors checks that neither the trace nor any tool call failed.
func NoErrors[T any]() ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		if trace.Error != nil {
			o.Fail(fmt.Sprintf("trace error: got = %v, wanted = nil", trace.Error))
			return
		}
		for _, tc := range trace.Calls() {
			if tc.Error != nil {
				o.Fail(fmt.Sprintf("tool call %s error: got = %v, wanted = nil", tc.Name, tc.Error))
				return
			}
		}
	}
}

// ResultIs checks the trace's final result.
func ResultIs[T comparable](want T) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		if trace.Result != want {
			o.Fail(fmt.Sprintf("result: got = %v, wanted = %v", trace.Result, want))
		}
	}
}

// GradeToolBudget grades a run by how much of a tool call budget it used:
// 1 for a single call, falling linearly to 0 at budget calls or more.
func GradeToolBudget[T any](budget int) ObservableTraceCallback[T] {
	return func(o Observer, trace *agenttrace.Trace[T]) {
		n := len(trace.Calls())
		score := 1.0
		if budget > 1 && n > 1 {
			score = max(0, 1-float64(n-1)/float64(budget-1))
		}
		o.Grade(score, fmt.Sprintf("%d of %d tool calls used", n, budget))
	}
}
