/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaillm

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/retry"
	"github.com/openai/openai-go"
)

// maxBatch bounds the number of inputs sent in one embeddings request.
const maxBatch = 64

// Embedder is an llm.Embedder backed by the embeddings API.
type Embedder struct {
	client      openai.Client
	model       string
	retryConfig retry.Config
}

var _ llm.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder for the named embedding model.
func NewEmbedder(client openai.Client, model string) (*Embedder, error) {
	if model == "" {
		return nil, errors.New("embedding model name cannot be empty")
	}
	return &Embedder{client: client, model: model, retryConfig: retry.ModelCallConfig()}, nil
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		batch := texts[start:min(start+maxBatch, len(texts))]
		resp, err := retry.Do(ctx, e.retryConfig, "embeddings", isRetryable,
			func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
				return e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
					Model: e.model,
					Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
				})
			})
		if err != nil {
			return nil, fmt.Errorf("embed with %s: %w", e.model, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embed with %s: got %d vectors for %d inputs", e.model, len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batch) {
				return nil, fmt.Errorf("embed with %s: vector index %d out of range", e.model, d.Index)
			}
			out[start+int(d.Index)] = d.Embedding
		}
	}
	return out, nil
}
