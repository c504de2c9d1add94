/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/issueagent"
)

type fakeRunner struct {
	outcome *issueagent.Outcome
	err     error

	issueURL, branch, trigger string
}

func (f *fakeRunner) Run(ctx context.Context, issueURL, branch string) (*issueagent.Outcome, error) {
	f.issueURL, f.branch = issueURL, branch
	f.trigger = agenttrace.GetExecutionContext(ctx).Trigger
	return f.outcome, f.err
}

func execute(t *testing.T, r *fakeRunner, args ...string) (string, error) {
	t.Helper()
	var closed bool
	cmd := newCommand(func(context.Context) (runner, func(), error) {
		return r, func() { closed = true }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if r.issueURL != "" && !closed {
		t.Error("agent was not closed")
	}
	return out.String(), err
}

func TestRunPrintsReport(t *testing.T) {
	t.Parallel()
	tr := agenttrace.StartTrace[issueagent.Status](context.Background(), "fix it")
	tr.StartToolCall("call_1", "get_issue_details", map[string]any{"owner": "acme"}).Complete(map[string]any{"title": "Crash"}, nil)
	tr.StartToolCall("call_2", "post_comment", map[string]any{"comment_body": "Try this"}).Complete(map[string]any{"url": "u"}, nil)
	tr.Complete(issueagent.StatusDone, nil)

	r := &fakeRunner{outcome: &issueagent.Outcome{
		Status:        issueagent.StatusDone,
		CommentPosted: true,
		CommentURL:    "https://github.com/acme/widgets/issues/7#issuecomment-1",
		Steps:         2,
		Trace:         tr,
	}}
	out, err := execute(t, r, "--issue", "https://github.com/acme/widgets/issues/7", "--branch", "dev")
	if err != nil {
		t.Fatalf("execute() = %v", err)
	}
	if r.branch != "dev" || r.trigger != "cli" {
		t.Errorf("run: branch = %q, trigger = %q", r.branch, r.trigger)
	}
	for _, want := range []string{"get_issue_details", "post_comment", "Status: DONE after 2 tool calls", "issuecomment-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDefaultsToMain(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted, Steps: 5}}
	out, err := execute(t, r, "-i", "https://github.com/acme/widgets/issues/7")
	if err != nil {
		t.Fatalf("execute() = %v", err)
	}
	if r.branch != "main" {
		t.Errorf("branch: got = %q, wanted = main", r.branch)
	}
	if !strings.Contains(out, "Status: ABORTED after 5 tool calls") {
		t.Errorf("output missing status:\n%s", out)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	t.Run("run failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("model unavailable")
		r := &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted}, err: boom}
		if _, err := execute(t, r, "--issue", "https://github.com/acme/widgets/issues/7"); !errors.Is(err, boom) {
			t.Errorf("execute(): got = %v, wanted wrapping %v", err, boom)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		r := &fakeRunner{}
		if _, err := execute(t, r, "--issue", "https://github.com/acme/widgets"); err == nil {
			t.Error("execute(): expected error")
		}
		if r.issueURL != "" {
			t.Error("agent ran for an invalid URL")
		}
	})

	t.Run("missing flag", func(t *testing.T) {
		t.Parallel()
		if _, err := execute(t, &fakeRunner{}); err == nil {
			t.Error("execute(): expected error")
		}
	})
}
