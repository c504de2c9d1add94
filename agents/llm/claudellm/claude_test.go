/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudellm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/llm/claudellm"
	"chainguard.dev/opensorus/agents/toolcall"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/go-cmp/cmp"
)

const toolUseResponse = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [
    {"type": "text", "text": "Posting the fix."},
    {"type": "tool_use", "id": "toolu_1", "name": "post_comment",
     "input": {"owner": "acme", "repo": "widgets", "issue_num": "7", "comment_body": "Try this."}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 100, "output_tokens": 20}
}`

func TestChat(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path: got = %s, wanted = /v1/messages", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolUseResponse)
	}))
	defer srv.Close()

	client := claudellm.NewClient("key", srv.Client(), option.WithBaseURL(srv.URL))
	model, err := claudellm.New(client, "claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	a := toolcall.ToolCall{ID: "toolu_a", Name: "get_issue_details", Args: map[string]any{"owner": "acme"}}
	b := toolcall.ToolCall{ID: "toolu_b", Name: "delete_repo", Args: map[string]any{}}
	resp, err := model.Chat(context.Background(), llm.Request{
		Messages: []llm.Message{
			llm.System("You are a helpful assistant."),
			llm.User("Please suggest a fix."),
			llm.Assistant("", a, b),
			llm.ToolResult(a, `{"title":"Crash"}`),
			llm.ToolResult(b, `{"error":"unknown tool: \"delete_repo\""}`),
		},
		Tools: []toolcall.Definition{{
			Name:        "post_comment",
			Description: "Post a comment on a GitHub issue",
			Parameters: []toolcall.Parameter{
				{Name: "owner", Type: "string", Required: true},
			},
		}},
		RequireToolCall: true,
	})
	if err != nil {
		t.Fatalf("Chat() = %v", err)
	}

	choice, _ := body["tool_choice"].(map[string]any)
	if choice["type"] != "any" {
		t.Errorf("tool_choice: got = %v, wanted type any", body["tool_choice"])
	}
	msgs, _ := body["messages"].([]any)
	// user, assistant, one user turn holding both tool results
	if len(msgs) != 3 {
		t.Fatalf("messages: got = %d, wanted = 3", len(msgs))
	}
	last, _ := msgs[2].(map[string]any)
	if blocks, _ := last["content"].([]any); len(blocks) != 2 {
		t.Errorf("tool result blocks: got = %d, wanted = 2", len(blocks))
	}
	if system, _ := body["system"].([]any); len(system) != 1 {
		t.Errorf("system blocks: got = %d, wanted = 1", len(system))
	}

	if resp.Content != "Posting the fix." {
		t.Errorf("Content: got = %q", resp.Content)
	}
	want := []toolcall.ToolCall{{
		ID:   "toolu_1",
		Name: "post_comment",
		Args: map[string]any{"owner": "acme", "repo": "widgets", "issue_num": "7", "comment_body": "Try this."},
	}}
	if diff := cmp.Diff(want, resp.ToolCalls); diff != "" {
		t.Errorf("ToolCalls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(llm.Usage{PromptTokens: 100, CompletionTokens: 20}, resp.Usage); diff != "" {
		t.Errorf("Usage mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsNonClaudeModel(t *testing.T) {
	t.Parallel()
	if _, err := claudellm.New(claudellm.NewClient("key", nil), "devstral-small-latest"); err == nil {
		t.Error("New() with a non-Claude model should fail")
	}
}
