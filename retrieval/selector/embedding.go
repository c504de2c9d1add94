/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package selector

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"chainguard.dev/opensorus/agents/llm"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxEmbeddingCandidates is how many ranked paths are kept.
	MaxEmbeddingCandidates = 2

	// Readme is always offered as context when the repository has one.
	Readme = "README.md"

	embedBatchSize   = 64
	embedConcurrency = 4
)

// EmbeddingSelector ranks paths by cosine similarity between the embedding
// of the issue text and the embedding of each path string.
type EmbeddingSelector struct {
	embedder llm.Embedder
}

var _ Selector = (*EmbeddingSelector)(nil)

// NewEmbeddingSelector creates an EmbeddingSelector.
func NewEmbeddingSelector(embedder llm.Embedder) *EmbeddingSelector {
	return &EmbeddingSelector{embedder: embedder}
}

type scored struct {
	path  string
	score float64
}

// Select implements Selector.
func (s *EmbeddingSelector) Select(ctx context.Context, description string, paths []string) ([]string, error) {
	log := clog.FromContext(ctx)

	descVecs, err := s.embedder.Embed(ctx, []string{description})
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}
	if len(descVecs) != 1 {
		return nil, fmt.Errorf("embed description: got %d vectors, wanted 1", len(descVecs))
	}
	query, ok := Normalize(descVecs[0])
	if !ok {
		log.Warn("Issue description embedding is invalid, selecting nothing")
		return []string{}, nil
	}

	vecs, err := s.embedPaths(ctx, paths)
	if err != nil {
		return nil, err
	}

	ranked := make([]scored, 0, len(paths))
	for i, p := range paths {
		v, ok := Normalize(vecs[i])
		if !ok {
			log.With("path", p).Warn("Skipping path with invalid embedding")
			continue
		}
		score := Dot(query, v)
		if !Valid(score) {
			log.With("path", p).Warn("Skipping path with invalid similarity score")
			continue
		}
		ranked = append(ranked, scored{path: p, score: score})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	top := make([]string, 0, MaxEmbeddingCandidates+1)
	for _, r := range ranked[:min(len(ranked), MaxEmbeddingCandidates)] {
		top = append(top, r.path)
	}
	if slices.Contains(paths, Readme) && !slices.Contains(top, Readme) {
		top = slices.Insert(top, 0, Readme)
	}
	return top, nil
}

// embedPaths embeds the paths in parallel batches, preserving order.
func (s *EmbeddingSelector) embedPaths(ctx context.Context, paths []string) ([][]float64, error) {
	out := make([][]float64, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(embedConcurrency)
	for start := 0; start < len(paths); start += embedBatchSize {
		end := min(start+embedBatchSize, len(paths))
		eg.Go(func() error {
			vecs, err := s.embedder.Embed(ctx, paths[start:end])
			if err != nil {
				return fmt.Errorf("embed paths: %w", err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed paths: got %d vectors, wanted %d", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
