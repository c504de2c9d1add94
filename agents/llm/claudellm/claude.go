/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudellm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/agents/retry"
	"chainguard.dev/opensorus/agents/toolcall"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NewClient returns an Anthropic client with SDK retries disabled.
func NewClient(apiKey string, httpClient *http.Client, opts ...option.RequestOption) anthropic.Client {
	all := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		all = append(all, option.WithHTTPClient(httpClient))
	}
	return anthropic.NewClient(append(all, opts...)...)
}

// Model is an llm.ChatModel backed by the Messages API.
type Model struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	retryConfig retry.Config
	metrics     *metrics.GenAI
}

var _ llm.ChatModel = (*Model)(nil)

// New creates a chat model for a claude-* model name.
func New(client anthropic.Client, model string, opts ...Option) (*Model, error) {
	if !strings.HasPrefix(model, "claude-") {
		return nil, fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
	}
	m := &Model{
		client:      client,
		model:       model,
		maxTokens:   8192,
		temperature: 0.1,
		retryConfig: retry.ModelCallConfig(),
		metrics:     metrics.NewGenAI("chainguard.dev/opensorus"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return m, nil
}

// Name implements llm.ChatModel.
func (m *Model) Name() string { return m.model }

// Chat implements llm.ChatModel.
func (m *Model) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	system, rest := req.SystemPrompt()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   m.maxTokens,
		Temperature: anthropic.Float(m.temperature),
		Messages:    toMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: def.Schema().Properties,
					Required:   def.RequiredNames(),
				},
			},
		})
	}
	if len(params.Tools) > 0 && req.RequireToolCall {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	}

	message, err := retry.Do(ctx, m.retryConfig, "messages", isRetryable,
		func(ctx context.Context) (*anthropic.Message, error) {
			return m.client.Messages.New(ctx, params)
		})
	if err != nil {
		return nil, fmt.Errorf("messages with %s: %w", m.model, err)
	}

	usage := llm.Usage{PromptTokens: message.Usage.InputTokens, CompletionTokens: message.Usage.OutputTokens}
	m.metrics.RecordTokens(ctx, m.model, usage.PromptTokens, usage.CompletionTokens)

	resp := &llm.Response{Usage: usage}
	var text []string
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("failed to parse tool input for %s: %w", block.Name, err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, toolcall.ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	resp.Content = strings.Join(text, "\n")
	return resp, nil
}

// toMessages converts the conversation, folding consecutive tool results
// into one user turn as the Messages API requires.
func toMessages(msgs []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	var results []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isErrorResult(msg.Content)))
		case llm.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return out
}

// isErrorResult reports whether a tool result is an {"error": ...} object.
func isErrorResult(content string) bool {
	var v map[string]any
	if json.Unmarshal([]byte(content), &v) != nil {
		return false
	}
	_, ok := v["error"]
	return ok
}

// isRetryable reports rate limit, overloaded, and transient server errors.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
