/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package geminillm

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/retry"
	"google.golang.org/genai"
)

// maxBatch bounds the number of inputs sent in one EmbedContent request.
const maxBatch = 100

// Embedder is an llm.Embedder backed by EmbedContent.
type Embedder struct {
	client      *genai.Client
	model       string
	retryConfig retry.Config
}

var _ llm.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder for the named embedding model.
func NewEmbedder(client *genai.Client, model string) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if model == "" {
		return nil, errors.New("embedding model name cannot be empty")
	}
	return &Embedder{client: client, model: model, retryConfig: retry.ModelCallConfig()}, nil
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		vecs, err := e.embedBatch(ctx, texts[start:min(start+maxBatch, len(texts))])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	resp, err := retry.Do(ctx, e.retryConfig, "embed_content", isRetryable,
		func(ctx context.Context) (*genai.EmbedContentResponse, error) {
			return e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{})
		})
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed with %s: got %d vectors for %d inputs", e.model, len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			continue
		}
		v := make([]float64, len(emb.Values))
		for j, x := range emb.Values {
			v[j] = float64(x)
		}
		out[i] = v
	}
	return out, nil
}
