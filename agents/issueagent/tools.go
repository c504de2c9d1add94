/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"chainguard.dev/opensorus/agents/toolcall"
)

// Tool is one of the fixed set of tools the agent exposes.
type Tool int

const (
	ToolFetchGitHubIssue Tool = iota + 1
	ToolGetIssueDetails
	ToolRetrieveContext
	ToolPostComment
)

var toolNames = map[Tool]string{
	ToolFetchGitHubIssue: "fetch_github_issue",
	ToolGetIssueDetails:  "get_issue_details",
	ToolRetrieveContext:  "retrieve_context",
	ToolPostComment:      "post_comment",
}

// Tools lists every tool in declaration order.
var Tools = []Tool{ToolFetchGitHubIssue, ToolGetIssueDetails, ToolRetrieveContext, ToolPostComment}

func (t Tool) String() string {
	if n, ok := toolNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseTool maps a tool name from the model back to a Tool.
func ParseTool(name string) (Tool, bool) {
	for _, t := range Tools {
		if toolNames[t] == name {
			return t, true
		}
	}
	return 0, false
}

var (
	ownerParam = toolcall.Parameter{Name: "owner", Type: "string", Description: "The owner of the repository.", Required: true}
	repoParam  = toolcall.Parameter{Name: "repo", Type: "string", Description: "The name of the repository.", Required: true}
	issueParam = toolcall.Parameter{Name: "issue_num", Type: "string", Description: "The issue number.", Required: true}
)

// Definition returns the schema the model sees for t.
func (t Tool) Definition() toolcall.Definition {
	switch t {
	case ToolFetchGitHubIssue:
		return toolcall.Definition{
			Name:        t.String(),
			Description: "Fetch GitHub issue details",
			Parameters: []toolcall.Parameter{
				{Name: "issue_url", Type: "string", Description: "The full URL of the GitHub issue.", Required: true},
			},
		}
	case ToolGetIssueDetails:
		return toolcall.Definition{
			Name:        t.String(),
			Description: "Get details of a GitHub issue",
			Parameters:  []toolcall.Parameter{ownerParam, repoParam, issueParam},
		}
	case ToolRetrieveContext:
		return toolcall.Definition{
			Name:        t.String(),
			Description: "Fetch relevant context from the codebase of the GitHub repository for the issue.",
			Parameters: []toolcall.Parameter{
				ownerParam,
				repoParam,
				{Name: "ref", Type: "string", Description: "The branch or commit to read code from.", Required: true},
				{Name: "issue_description", Type: "string", Description: "The title and body of the issue, separated by a newline.", Required: true},
			},
		}
	case ToolPostComment:
		return toolcall.Definition{
			Name:        t.String(),
			Description: "Post a comment on a GitHub issue",
			Parameters: []toolcall.Parameter{
				ownerParam,
				repoParam,
				issueParam,
				{Name: "comment_body", Type: "string", Description: "The body of the comment, in Markdown.", Required: true},
			},
		}
	default:
		return toolcall.Definition{}
	}
}

// Definitions returns the definitions of all tools.
func Definitions() []toolcall.Definition {
	defs := make([]toolcall.Definition, len(Tools))
	for i, t := range Tools {
		defs[i] = t.Definition()
	}
	return defs
}
