/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"context"
	"fmt"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/toolcall"
	"chainguard.dev/opensorus/agents/toolcall/params"
	"chainguard.dev/opensorus/githubapp"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// IssueService reads issues and posts comments. githubapp.Client implements it.
type IssueService interface {
	GetIssue(ctx context.Context, ref githubapp.IssueReference) (*github.Issue, error)
	PostComment(ctx context.Context, ref githubapp.IssueReference, body string) (*github.IssueComment, error)
}

var _ IssueService = (*githubapp.Client)(nil)

// execution is the outcome of dispatching one known tool call.
type execution struct {
	result map[string]any
	err    error
	// badArgs is set when the call never reached the tool.
	badArgs bool
	// snapshot is the issue description a successful get_issue_details saw,
	// empty when the issue has neither title nor body.
	snapshot string
}

func rejected(errResp map[string]any) execution {
	return execution{result: errResp, badArgs: true}
}

func (o *Orchestrator) execute(ctx context.Context, tool Tool, call toolcall.ToolCall, trace *agenttrace.Trace[Status]) execution {
	switch tool {
	case ToolFetchGitHubIssue:
		return o.fetchIssue(call, trace)
	case ToolGetIssueDetails:
		return o.issueDetails(ctx, call, trace)
	case ToolRetrieveContext:
		return o.retrieveContext(ctx, call, trace)
	case ToolPostComment:
		return o.postComment(ctx, call, trace)
	default:
		panic(fmt.Sprintf("unhandled tool %d", tool))
	}
}

// issueRef reads the owner, repo and issue_num arguments.
func issueRef(call toolcall.ToolCall, trace *agenttrace.Trace[Status]) (githubapp.IssueReference, map[string]any) {
	owner, errResp := toolcall.Param[string](call, trace, "owner")
	if errResp != nil {
		return githubapp.IssueReference{}, errResp
	}
	repo, errResp := toolcall.Param[string](call, trace, "repo")
	if errResp != nil {
		return githubapp.IssueReference{}, errResp
	}
	num, errResp := toolcall.Param[int](call, trace, "issue_num")
	if errResp != nil {
		return githubapp.IssueReference{}, errResp
	}
	return githubapp.IssueReference{Owner: owner, Repo: repo, Number: num}, nil
}

func (o *Orchestrator) fetchIssue(call toolcall.ToolCall, trace *agenttrace.Trace[Status]) execution {
	issueURL, errResp := toolcall.Param[string](call, trace, "issue_url")
	if errResp != nil {
		return rejected(errResp)
	}
	tc := trace.StartToolCall(call.ID, call.Name, map[string]any{"issue_url": issueURL})
	ref, err := githubapp.ParseIssueURL(issueURL)
	if err != nil {
		result := params.ErrorWithContext(err, map[string]any{"issue_url": issueURL})
		tc.Complete(result, err)
		return execution{result: result, err: err}
	}
	result := map[string]any{"owner": ref.Owner, "repo": ref.Repo, "issue_num": ref.Number}
	tc.Complete(result, nil)
	return execution{result: result}
}

func (o *Orchestrator) issueDetails(ctx context.Context, call toolcall.ToolCall, trace *agenttrace.Trace[Status]) execution {
	ref, errResp := issueRef(call, trace)
	if errResp != nil {
		return rejected(errResp)
	}
	tc := trace.StartToolCall(call.ID, call.Name, map[string]any{"issue": ref.String()})
	issue, err := o.issues.GetIssue(ctx, ref)
	if err != nil {
		clog.FromContext(ctx).With("issue", ref.String()).With("error", err.Error()).Error("Failed to get issue")
		result := params.ErrorWithContext(err, map[string]any{"issue": ref.String()})
		tc.Complete(result, err)
		return execution{result: result, err: err}
	}
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	result := map[string]any{
		"number":   issue.GetNumber(),
		"title":    issue.GetTitle(),
		"body":     issue.GetBody(),
		"state":    issue.GetState(),
		"html_url": issue.GetHTMLURL(),
		"user":     issue.GetUser().GetLogin(),
		"labels":   labels,
	}
	tc.Complete(result, nil)
	ex := execution{result: result}
	if issue.GetTitle() != "" || issue.GetBody() != "" {
		ex.snapshot = issue.GetTitle() + "\n" + issue.GetBody()
	}
	return ex
}

func (o *Orchestrator) retrieveContext(ctx context.Context, call toolcall.ToolCall, trace *agenttrace.Trace[Status]) execution {
	owner, errResp := toolcall.Param[string](call, trace, "owner")
	if errResp != nil {
		return rejected(errResp)
	}
	repo, errResp := toolcall.Param[string](call, trace, "repo")
	if errResp != nil {
		return rejected(errResp)
	}
	ref, errResp := toolcall.Param[string](call, trace, "ref")
	if errResp != nil {
		return rejected(errResp)
	}
	description, errResp := toolcall.Param[string](call, trace, "issue_description")
	if errResp != nil {
		return rejected(errResp)
	}

	tc := trace.StartToolCall(call.ID, call.Name, map[string]any{
		"repository":        owner + "/" + repo,
		"ref":               ref,
		"issue_description": description,
	})
	answer, err := o.retriever.Retrieve(ctx, owner, repo, ref, description)
	if err != nil {
		clog.FromContext(ctx).With("repository", owner+"/"+repo).With("error", err.Error()).Error("Failed to retrieve context")
		result := params.ErrorWithContext(err, map[string]any{"repository": owner + "/" + repo, "ref": ref})
		tc.Complete(result, err)
		return execution{result: result, err: err}
	}
	sources := make([]string, 0, len(answer.Sources))
	for _, s := range answer.Sources {
		sources = append(sources, fmt.Sprintf("%s:%d-%d", s.Path, s.StartLine, s.EndLine))
	}
	result := map[string]any{"context": answer.Text, "sources": sources}
	tc.Complete(result, nil)
	return execution{result: result}
}

func (o *Orchestrator) postComment(ctx context.Context, call toolcall.ToolCall, trace *agenttrace.Trace[Status]) execution {
	ref, errResp := issueRef(call, trace)
	if errResp != nil {
		return rejected(errResp)
	}
	body, errResp := toolcall.Param[string](call, trace, "comment_body")
	if errResp != nil {
		return rejected(errResp)
	}
	tc := trace.StartToolCall(call.ID, call.Name, map[string]any{"issue": ref.String(), "comment_body": body})
	comment, err := o.issues.PostComment(ctx, ref, body)
	if err != nil {
		clog.FromContext(ctx).With("issue", ref.String()).With("error", err.Error()).Error("Failed to post comment")
		result := params.ErrorWithContext(err, map[string]any{"issue": ref.String()})
		tc.Complete(result, err)
		return execution{result: result, err: err}
	}
	result := map[string]any{"status": "posted", "comment_id": comment.GetID(), "html_url": comment.GetHTMLURL()}
	tc.Complete(result, nil)
	return execution{result: result}
}
