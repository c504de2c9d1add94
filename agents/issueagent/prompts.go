/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"fmt"
	"strings"

	"chainguard.dev/opensorus/agents/promptbuilder"
)

var systemPrompt = promptbuilder.MustNewPrompt(`You are a senior developer assistant bot for GitHub issues.

Your job is to respond to GitHub issues professionally and helpfully, but never repeat the issue description verbatim.

First, classify the issue as one of the following:
- Bug report
- Implementation question
- Feature request
- Incomplete or unclear

Then, based on the classification, write a clear, concise, and friendly response.
The comment should be well formatted and readable, using Markdown for code blocks and lists where appropriate.

DO NOT paste or repeat the issue description. DO NOT quote it. Respond entirely in your own words.
You can only use the following tools: {{tools}}.
Do not attempt to use any other tools such as web_search. DO NOT make up tools.`).
	MustBindStringLiteral("tools", "fetch_github_issue, get_issue_details, retrieve_context, post_comment")

func userRequest(issueURL, branch string) string {
	return fmt.Sprintf("Please suggest a fix on this issue %s and use %s branch for retrieving code context.", issueURL, branch)
}

func unknownToolMessage(name string) string {
	names := make([]string, len(Tools))
	for i, t := range Tools {
		names[i] = t.String()
	}
	return fmt.Sprintf("Error: Tool %q is not available. You can only use the following tools: %s.", name, strings.Join(names, ", "))
}
