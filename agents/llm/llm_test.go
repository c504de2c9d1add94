/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm_test

import (
	"context"
	"testing"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/toolcall"
	"github.com/google/go-cmp/cmp"
)

type echoModel struct {
	last llm.Request
}

func (e *echoModel) Name() string { return "echo" }

func (e *echoModel) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	e.last = req
	return &llm.Response{Content: req.Messages[len(req.Messages)-1].Content}, nil
}

func TestComplete(t *testing.T) {
	t.Parallel()
	m := &echoModel{}
	got, err := llm.Complete(context.Background(), m, "be strict", "which files?")
	if err != nil {
		t.Fatalf("Complete() = %v", err)
	}
	if got != "which files?" {
		t.Errorf("Complete(): got = %q", got)
	}
	want := []llm.Message{llm.System("be strict"), llm.User("which files?")}
	if diff := cmp.Diff(want, m.last.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()
	call := toolcall.ToolCall{ID: "c1", Name: "get_issue_details"}
	req := llm.Request{Messages: []llm.Message{
		llm.System("one"),
		llm.User("hi"),
		llm.System("two"),
		llm.Assistant("", call),
		llm.ToolResult(call, "{}"),
	}}
	system, rest := req.SystemPrompt()
	if system != "one\n\ntwo" {
		t.Errorf("system: got = %q", system)
	}
	roles := make([]llm.Role, 0, len(rest))
	for _, m := range rest {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]llm.Role{llm.RoleUser, llm.RoleAssistant, llm.RoleTool}, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if rest[2].ToolCallID != "c1" || rest[2].ToolName != "get_issue_details" {
		t.Errorf("tool result not linked to its call: %+v", rest[2])
	}
}
