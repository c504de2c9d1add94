/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaillm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/llm/openaillm"
	"chainguard.dev/opensorus/agents/retry"
	"chainguard.dev/opensorus/agents/toolcall"
	"github.com/google/go-cmp/cmp"
)

var getIssueDetails = toolcall.Definition{
	Name:        "get_issue_details",
	Description: "Get details of a GitHub issue",
	Parameters: []toolcall.Parameter{
		{Name: "owner", Type: "string", Description: "The owner of the repository.", Required: true},
		{Name: "repo", Type: "string", Description: "The name of the repository.", Required: true},
		{Name: "issue_num", Type: "string", Description: "The issue number.", Required: true},
	},
}

const toolCallResponse = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "devstral-small-latest",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "get_issue_details", "arguments": "{\"owner\":\"acme\",\"repo\":\"widgets\",\"issue_num\":\"7\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func TestChatForcesToolCall(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: got = %s, wanted = /v1/chat/completions", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolCallResponse)
	}))
	defer srv.Close()

	model, err := openaillm.New(openaillm.NewClient("key", srv.URL+"/v1", srv.Client()), "devstral-small-latest")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	prior := toolcall.ToolCall{ID: "call_0", Name: "fetch_github_issue", Args: map[string]any{"issue_url": "u"}}
	resp, err := model.Chat(context.Background(), llm.Request{
		Messages: []llm.Message{
			llm.System("You are a helpful assistant."),
			llm.User("Please suggest a fix."),
			llm.Assistant("", prior),
			llm.ToolResult(prior, `{"owner":"acme"}`),
		},
		Tools:           []toolcall.Definition{getIssueDetails},
		RequireToolCall: true,
	})
	if err != nil {
		t.Fatalf("Chat() = %v", err)
	}

	if body["tool_choice"] != "required" {
		t.Errorf("tool_choice: got = %v, wanted = required", body["tool_choice"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 4 {
		t.Errorf("messages: got = %d, wanted = 4", len(msgs))
	}
	if tools, _ := body["tools"].([]any); len(tools) != 1 {
		t.Errorf("tools: got = %d, wanted = 1", len(tools))
	}

	want := []toolcall.ToolCall{{
		ID:   "call_1",
		Name: "get_issue_details",
		Args: map[string]any{"owner": "acme", "repo": "widgets", "issue_num": "7"},
	}}
	if diff := cmp.Diff(want, resp.ToolCalls); diff != "" {
		t.Errorf("ToolCalls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(llm.Usage{PromptTokens: 42, CompletionTokens: 7}, resp.Usage); diff != "" {
		t.Errorf("Usage mismatch (-want +got):\n%s", diff)
	}
}

func TestChatRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limit","type":"rate_limited"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer srv.Close()

	model, err := openaillm.New(openaillm.NewClient("key", srv.URL, srv.Client()), "codestral-latest",
		openaillm.WithRetryConfig(retry.Config{MaxRetries: 2, BaseBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got, err := llm.Complete(context.Background(), model, "", "hello")
	if err != nil {
		t.Fatalf("Complete() = %v", err)
	}
	if got != "done" {
		t.Errorf("Complete(): got = %q, wanted = done", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls: got = %d, wanted = 2", n)
	}
}

func TestEmbedKeepsInputOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "codestral-embed" {
			t.Errorf("model: got = %s, wanted = codestral-embed", req.Model)
		}
		// Answer out of order; the embedder must place vectors by index.
		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Object: "embedding", Index: i, Embedding: []float64{float64(len(req.Input[i])), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	emb, err := openaillm.NewEmbedder(openaillm.NewClient("key", srv.URL, srv.Client()), "codestral-embed")
	if err != nil {
		t.Fatalf("NewEmbedder() = %v", err)
	}
	got, err := emb.Embed(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatalf("Embed() = %v", err)
	}
	want := [][]float64{{1, 1}, {3, 1}, {2, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Embed() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()
	client := openaillm.NewClient("key", "", nil)
	if _, err := openaillm.New(client, ""); err == nil {
		t.Error("New with empty model should fail")
	}
	if _, err := openaillm.New(client, "m", openaillm.WithTemperature(3)); err == nil {
		t.Error("New with temperature 3 should fail")
	}
	if _, err := openaillm.New(client, "m", openaillm.WithMaxTokens(0)); err == nil {
		t.Error("New with zero max tokens should fail")
	}
}
