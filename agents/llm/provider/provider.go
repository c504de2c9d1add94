/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/llm/claudellm"
	"chainguard.dev/opensorus/agents/llm/geminillm"
	"chainguard.dev/opensorus/agents/llm/openaillm"
	"chainguard.dev/opensorus/agents/metrics"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Config holds the credentials and endpoints for every supported provider.
// Only the credentials for the providers actually selected are required.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string

	AnthropicAPIKey  string
	AnthropicBaseURL string

	GeminiAPIKey  string
	GeminiBaseURL string

	HTTPClient *http.Client
	Metrics    *metrics.GenAI
}

// Kind names a provider family.
type Kind string

const (
	OpenAI    Kind = "openai"
	Anthropic Kind = "anthropic"
	Gemini    Kind = "gemini"
)

// KindFor picks the provider for a model name: claude-* models go to
// Anthropic, gemini-* models to Gemini, and everything else to the
// OpenAI-compatible endpoint.
func KindFor(model string) Kind {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return Anthropic
	case strings.HasPrefix(model, "gemini-"):
		return Gemini
	default:
		return OpenAI
	}
}

// ErrNoEmbeddings is returned when an embedding model is requested from a
// provider without an embeddings API.
var ErrNoEmbeddings = errors.New("provider has no embeddings API")

// NewChatModel returns the chat model for name.
func NewChatModel(ctx context.Context, cfg Config, name string) (llm.ChatModel, error) {
	switch KindFor(name) {
	case Anthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s needs ANTHROPIC_API_KEY", name)
		}
		var opts []option.RequestOption
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
		}
		var mopts []claudellm.Option
		if cfg.Metrics != nil {
			mopts = append(mopts, claudellm.WithMetrics(cfg.Metrics))
		}
		return claudellm.New(claudellm.NewClient(cfg.AnthropicAPIKey, cfg.HTTPClient, opts...), name, mopts...)

	case Gemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("model %s needs GEMINI_API_KEY", name)
		}
		client, err := geminillm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		var mopts []geminillm.Option
		if cfg.Metrics != nil {
			mopts = append(mopts, geminillm.WithMetrics(cfg.Metrics))
		}
		return geminillm.New(client, name, mopts...)

	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("model %s needs MISTRAL_API_KEY", name)
		}
		var mopts []openaillm.Option
		if cfg.Metrics != nil {
			mopts = append(mopts, openaillm.WithMetrics(cfg.Metrics))
		}
		return openaillm.New(openaillm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.HTTPClient), name, mopts...)
	}
}

// NewEmbedder returns the embedder for name. Anthropic models fail with
// ErrNoEmbeddings.
func NewEmbedder(ctx context.Context, cfg Config, name string) (llm.Embedder, error) {
	switch KindFor(name) {
	case Anthropic:
		return nil, fmt.Errorf("embedding model %s: %w", name, ErrNoEmbeddings)

	case Gemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("embedding model %s needs GEMINI_API_KEY", name)
		}
		client, err := geminillm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		return geminillm.NewEmbedder(client, name)

	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("embedding model %s needs MISTRAL_API_KEY", name)
		}
		return openaillm.NewEmbedder(openaillm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.HTTPClient), name)
	}
}
