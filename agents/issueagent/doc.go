/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package issueagent runs the tool-calling conversation that turns a GitHub
// issue into a suggested fix posted as a comment.
//
// The model is offered four tools: fetch_github_issue, get_issue_details,
// retrieve_context and post_comment. Every model call must return tool
// calls, which are executed in order and fed back to the model. A run ends
// DONE when post_comment executes or the model answers without tools, and
// ABORTED after five executed tool calls or when its context ends.
//
// Once get_issue_details has returned, retrieve_context always runs with the
// fetched "title\nbody" as its issue_description, whatever the model passed.
//
//	orch, err := issueagent.New(model, githubapp.NewClient(creds),
//		issueagent.NewContextRetriever(cache, eng))
//	out, err := orch.Run(ctx, "https://github.com/acme/widgets/issues/7", "main")
package issueagent
