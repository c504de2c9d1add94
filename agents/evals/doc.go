/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package evals checks completed agent runs against expectations about the
tools they called and the state they ended in.

Checks are ObservableTraceCallbacks. Inject binds one to an Observer and
yields an agenttrace.TraceCallback, so checks run whenever a tracer
records a trace:

	obs := testevals.New(t)
	tracer := agenttrace.ByCode(
		evals.Inject(obs, evals.ToolCallOrder[issueagent.Status]("fetch_github_issue", "post_comment")),
		evals.Inject(obs, evals.ResultIs(issueagent.StatusDone)),
	)
	ctx = agenttrace.WithTracer(ctx, tracer)

# Observers

Observer receives failures, log lines and grades. The testevals package
reports them on a *testing.T; ResultCollector keeps them for inspection.
*/
package evals
