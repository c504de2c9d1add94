/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package setup builds the issue agent from environment configuration.
// Both the service and the one-shot CLI use it.
package setup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chainguard.dev/opensorus/agents/issueagent"
	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/llm/provider"
	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/githubapp"
	"chainguard.dev/opensorus/githubapp/ratelimit"
	"chainguard.dev/opensorus/retrieval/engine"
	"chainguard.dev/opensorus/retrieval/index"
	"chainguard.dev/opensorus/retrieval/selector"
	"github.com/chainguard-dev/clog"
)

// Config is the agent configuration shared by every entry point.
type Config struct {
	AppID         int64  `env:"APP_ID,required"`
	AppPrivateKey string `env:"APP_PRIVATE_KEY,required"`
	GitHubAPIURL  string `env:"GITHUB_API_URL"`

	MistralAPIKey   string `env:"MISTRAL_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL,default=https://api.mistral.ai/v1"`

	AgentModel     string `env:"AGENT_MODEL,default=devstral-small-latest"`
	SynthesisModel string `env:"SYNTHESIS_MODEL,default=codestral-latest"`
	EmbeddingModel string `env:"EMBEDDING_MODEL,default=codestral-embed"`

	SelectionStrategy string        `env:"SELECTION_STRATEGY,default=embedding"`
	MaxSteps          int           `env:"MAX_STEPS,default=5"`
	CallTimeout       time.Duration `env:"CALL_TIMEOUT,default=2m"`
	IndexCacheTTL     time.Duration `env:"INDEX_CACHE_TTL,default=1h"`
	IndexCacheSize    uint64        `env:"INDEX_CACHE_SIZE,default=64"`
}

// Agent is a wired orchestrator and the resources it holds.
type Agent struct {
	*issueagent.Orchestrator
	cache *index.Cache
}

// Close releases the index cache.
func (a *Agent) Close() {
	a.cache.Close()
}

// NewAgent wires the GitHub client, models, index cache and retrieval
// engine into an orchestrator.
func NewAgent(ctx context.Context, cfg Config) (*Agent, error) {
	credOpts := []githubapp.Option{githubapp.WithTransport(ratelimit.New(http.DefaultTransport))}
	if cfg.GitHubAPIURL != "" {
		credOpts = append(credOpts, githubapp.WithBaseURL(cfg.GitHubAPIURL))
	}
	creds, err := githubapp.NewCredentialManager(cfg.AppID, githubapp.NormalizePrivateKey(cfg.AppPrivateKey), credOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating credential manager: %w", err)
	}
	gh := githubapp.NewClient(creds)

	genai := metrics.NewGenAI("chainguard.dev/opensorus")
	genai.SetAttributeEnricher(metrics.ExecutionContextEnricher)
	pcfg := provider.Config{
		OpenAIAPIKey:    cfg.MistralAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		Metrics:         genai,
	}

	agentModel, err := provider.NewChatModel(ctx, pcfg, cfg.AgentModel)
	if err != nil {
		return nil, fmt.Errorf("creating agent model: %w", err)
	}
	synthesis, err := provider.NewChatModel(ctx, pcfg, cfg.SynthesisModel)
	if err != nil {
		return nil, fmt.Errorf("creating synthesis model: %w", err)
	}
	embedder, err := provider.NewEmbedder(ctx, pcfg, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	sel, err := NewSelector(selector.Strategy(cfg.SelectionStrategy), embedder, synthesis)
	if err != nil {
		return nil, err
	}
	builder, err := index.NewBuilder(gh, embedder, index.WithSelector(sel))
	if err != nil {
		return nil, fmt.Errorf("creating index builder: %w", err)
	}
	eng, err := engine.New(embedder, synthesis)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}

	cache := index.NewCache(builder, cfg.IndexCacheTTL, cfg.IndexCacheSize)
	orch, err := issueagent.New(agentModel, gh, issueagent.NewContextRetriever(cache, eng),
		issueagent.WithMaxSteps(cfg.MaxSteps),
		issueagent.WithCallTimeout(cfg.CallTimeout),
		issueagent.WithMetrics(genai),
	)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	clog.FromContext(ctx).With(
		"agent_model", cfg.AgentModel,
		"synthesis_model", cfg.SynthesisModel,
		"embedding_model", cfg.EmbeddingModel,
		"selection", cfg.SelectionStrategy,
	).Info("Agent configured")
	return &Agent{Orchestrator: orch, cache: cache}, nil
}

// NewSelector returns the file relevance selector for strategy.
func NewSelector(strategy selector.Strategy, embedder llm.Embedder, model llm.ChatModel) (selector.Selector, error) {
	switch strategy {
	case selector.StrategyEmbedding:
		return selector.NewEmbeddingSelector(embedder), nil
	case selector.StrategyModel:
		return selector.NewModelSelector(model), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", strategy)
	}
}
