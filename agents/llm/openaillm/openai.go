/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaillm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/agents/retry"
	"chainguard.dev/opensorus/agents/toolcall"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the Mistral OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.mistral.ai/v1"

// NewClient returns a client for an OpenAI-compatible endpoint. SDK level
// retries are disabled; calls are retried by this package instead.
func NewClient(apiKey, baseURL string, httpClient *http.Client) openai.Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return openai.NewClient(opts...)
}

// Model is an llm.ChatModel backed by the chat completions API.
type Model struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	retryConfig retry.Config
	metrics     *metrics.GenAI
}

var _ llm.ChatModel = (*Model)(nil)

// New creates a chat model for the named model.
func New(client openai.Client, model string, opts ...Option) (*Model, error) {
	if model == "" {
		return nil, errors.New("model name cannot be empty")
	}
	m := &Model{
		client:      client,
		model:       model,
		temperature: 0.1,
		maxTokens:   4096,
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
	params := openai.ChatCompletionNewParams{
		Model:       m.model,
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
		Temperature: openai.Float(m.temperature),
		MaxTokens:   openai.Int(m.maxTokens),
	}
	for _, msg := range req.Messages {
		p, err := toParam(msg)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, p)
	}
	for _, def := range req.Tools {
		schema, err := def.SchemaMap()
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	if len(params.Tools) > 0 && req.RequireToolCall {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(openai.ChatCompletionToolChoiceOptionAutoRequired)),
		}
	}

	completion, err := retry.Do(ctx, m.retryConfig, "chat_completion", isRetryable,
		func(ctx context.Context) (*openai.ChatCompletion, error) {
			return m.client.Chat.Completions.New(ctx, params)
		})
	if err != nil {
		return nil, fmt.Errorf("chat completion with %s: %w", m.model, err)
	}
	if len(completion.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	usage := llm.Usage{
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}
	m.metrics.RecordTokens(ctx, m.model, usage.PromptTokens, usage.CompletionTokens)

	choice := completion.Choices[0].Message
	resp := &llm.Response{Content: choice.Content, Usage: usage}
	for _, tc := range choice.ToolCalls {
		args, err := toolcall.DecodeArgs(tc.Function.Arguments)
		if err != nil {
			// Keep the call so the agent can report the malformed arguments back.
			clog.FromContext(ctx).With("tool", tc.Function.Name).
				With("error", err.Error()).
				Warn("Model returned malformed tool arguments")
			args = map[string]any{}
		}
		resp.ToolCalls = append(resp.ToolCalls, toolcall.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return resp, nil
}

func toParam(msg llm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case llm.RoleUser:
		return openai.UserMessage(msg.Content), nil
	case llm.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID), nil
	case llm.RoleAssistant:
		a := &openai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			a.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)}
		}
		for _, tc := range msg.ToolCalls {
			args, err := encodeArgs(tc.Args)
			if err != nil {
				return openai.ChatCompletionMessageParamUnion{}, err
			}
			a.ToolCalls = append(a.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: a}, nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message role %q", msg.Role)
	}
}

func encodeArgs(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal tool arguments: %w", err)
	}
	return string(b), nil
}

// isRetryable reports rate limiting and transient server errors.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
