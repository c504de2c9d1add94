/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace records what an agent run did.

A Trace[T] spans one run from the initial request to its outcome of type T,
and holds a ToolCall for every tool the model invoked, in completion order.
Malformed or unknown tool calls are recorded with BadToolCall so they show
up next to successful ones.

	ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{
		Owner:       "acme",
		Repo:        "widgets",
		IssueNumber: 7,
		Trigger:     "webhook",
	})
	trace := agenttrace.StartTrace[string](ctx, "Please suggest a fix on this issue ...")
	tc := trace.StartToolCall("call_1", "get_issue_details", map[string]any{"owner": "acme"})
	tc.Complete(issue, nil)
	trace.Complete("comment posted", nil)

Completed traces go to the Tracer found on the context. Without one, they are
logged through clog. WriteTable renders the tool calls as a markdown table for
terminal output.
*/
package agenttrace
