/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package geminillm

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
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// NewClient returns a Gemini API client. baseURL may be empty.
func NewClient(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// Model is an llm.ChatModel backed by GenerateContent.
type Model struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	retryConfig retry.Config
	metrics     *metrics.GenAI
}

var _ llm.ChatModel = (*Model)(nil)

// New creates a chat model for a gemini-* model name.
func New(client *genai.Client, model string, opts ...Option) (*Model, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if !strings.HasPrefix(model, "gemini-") {
		return nil, fmt.Errorf("model %q does not appear to be a Gemini model (expected gemini-* format)", model)
	}
	m := &Model{
		client:      client,
		model:       model,
		temperature: 0.1,
		maxTokens:   8192,
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

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.temperature),
		MaxOutputTokens: m.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, def := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 def.Name,
				Description:          def.Description,
				ParametersJsonSchema: def.Schema(),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		if req.RequireToolCall {
			config.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny},
			}
		}
	}

	contents, err := toContents(rest)
	if err != nil {
		return nil, err
	}

	result, err := retry.Do(ctx, m.retryConfig, "generate_content", isRetryable,
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return m.client.Models.GenerateContent(ctx, m.model, contents, config)
		})
	if err != nil {
		return nil, fmt.Errorf("generate content with %s: %w", m.model, err)
	}
	if len(result.Candidates) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	resp := &llm.Response{}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = llm.Usage{PromptTokens: int64(u.PromptTokenCount), CompletionTokens: int64(u.CandidatesTokenCount)}
		m.metrics.RecordTokens(ctx, m.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	for _, fc := range result.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		resp.ToolCalls = append(resp.ToolCalls, toolcall.ToolCall{ID: id, Name: fc.Name, Args: args})
	}
	if len(resp.ToolCalls) == 0 {
		resp.Content = result.Text()
	}
	return resp, nil
}

// toContents converts the conversation, grouping consecutive tool results
// into a single user turn of function responses.
func toContents(msgs []llm.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	var responses []*genai.Part
	flush := func() {
		if len(responses) > 0 {
			out = append(out, genai.NewContentFromParts(responses, genai.RoleUser))
			responses = nil
		}
	}
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.ToolName, responseMap(msg.Content))
			part.FunctionResponse.ID = msg.ToolCallID
			responses = append(responses, part)
		case llm.RoleAssistant:
			flush()
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				part := genai.NewPartFromFunctionCall(tc.Name, tc.Args)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
		case llm.RoleUser:
			flush()
			out = append(out, genai.NewContentFromText(msg.Content, genai.RoleUser))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	flush()
	return out, nil
}

// responseMap decodes a JSON object tool result, wrapping anything else
// under "result".
func responseMap(content string) map[string]any {
	var v map[string]any
	if err := json.Unmarshal([]byte(content), &v); err == nil && v != nil {
		return v
	}
	return map[string]any{"result": content}
}

// isRetryable reports rate limit, quota exhaustion, and transient server errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "quota exceeded")
}
