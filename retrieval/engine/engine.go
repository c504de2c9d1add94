/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/promptbuilder"
	"chainguard.dev/opensorus/retrieval/index"
	"github.com/chainguard-dev/clog"
)

const (
	DefaultTopK   = 3
	DefaultCutoff = 0.75

	// NoRelevantContent is the answer when no chunk clears the cutoff.
	NoRelevantContent = "No relevant content was found in the repository for this issue."
)

const queryTemplate = `Please give relevant information from the codebase that highly matches the keywords of this issue and is useful for solving or understanding this issue:
{{issue}}

STRICT RULES:
- ONLY use information available in the retrieved context.
- DO NOT generate or assume any information outside the given context.
- ONLY include context that is highly relevant and clearly useful for understanding or solving this issue.
- DO NOT include generic, loosely related, or unrelated content.`

var (
	queryPrompt = promptbuilder.MustNewPrompt(queryTemplate)

	synthesisPrompt = promptbuilder.MustNewPrompt(`Context information from the repository is below.
{{context}}

Using only the context information and no prior knowledge, answer the query.

` + queryTemplate)
)

const synthesisSystem = "You answer questions about a code repository strictly from the retrieved context you are given."

type issueText struct {
	XMLName xml.Name `xml:"issue"`
	Text    string   `xml:",chardata"`
}

type retrieved struct {
	XMLName xml.Name      `xml:"context"`
	Chunks  []index.Chunk `xml:"chunk"`
}

// Answer is the result of a query.
type Answer struct {
	Text    string
	Sources []index.Match
}

// Relevant reports whether any retrieved content backed the answer.
func (a *Answer) Relevant() bool { return len(a.Sources) > 0 }

// Engine answers questions about an issue from a RepoIndex.
type Engine struct {
	embedder llm.Embedder
	model    llm.ChatModel
	topK     int
	cutoff   float64
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTopK sets how many chunks are retrieved.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k <= 0 {
			return errors.New("top k must be positive")
		}
		e.topK = k
		return nil
	}
}

// WithCutoff sets the minimum similarity a chunk needs to be used.
func WithCutoff(c float64) Option {
	return func(e *Engine) error {
		if c < -1 || c > 1 {
			return fmt.Errorf("cutoff must be between -1 and 1, got %v", c)
		}
		e.cutoff = c
		return nil
	}
}

// New creates an Engine that embeds queries with embedder and synthesizes
// answers with model.
func New(embedder llm.Embedder, model llm.ChatModel, opts ...Option) (*Engine, error) {
	e := &Engine{
		embedder: embedder,
		model:    model,
		topK:     DefaultTopK,
		cutoff:   DefaultCutoff,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Query retrieves the chunks most similar to the issue and has the model
// summarize them. When nothing clears the cutoff the model is not called.
func (e *Engine) Query(ctx context.Context, ix *index.RepoIndex, description string) (*Answer, error) {
	query, err := buildQuery(description)
	if err != nil {
		return nil, err
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, wanted 1", len(vecs))
	}

	var kept []index.Match
	for _, m := range ix.Search(vecs[0], e.topK) {
		if m.Score >= e.cutoff {
			kept = append(kept, m)
		}
	}
	log := clog.FromContext(ctx).With("repository", ix.Owner+"/"+ix.Repo)
	if len(kept) == 0 {
		log.Info("No retrieved content cleared the similarity cutoff")
		return &Answer{Text: NoRelevantContent}, nil
	}

	chunks := make([]index.Chunk, len(kept))
	for i, m := range kept {
		chunks[i] = m.Chunk
	}
	prompt, err := synthesisPrompt.BindXML("context", retrieved{Chunks: chunks})
	if err != nil {
		return nil, err
	}
	if prompt, err = prompt.BindXML("issue", issueText{Text: description}); err != nil {
		return nil, err
	}
	text, err := prompt.Build()
	if err != nil {
		return nil, err
	}

	answer, err := llm.Complete(ctx, e.model, synthesisSystem, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	log.With("sources", len(kept)).Info("Answered from retrieved content")
	return &Answer{Text: answer, Sources: kept}, nil
}

func buildQuery(description string) (string, error) {
	p, err := queryPrompt.BindXML("issue", issueText{Text: description})
	if err != nil {
		return "", err
	}
	return p.Build()
}
