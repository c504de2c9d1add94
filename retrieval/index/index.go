/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package index

import (
	"cmp"
	"slices"
	"time"

	"chainguard.dev/opensorus/retrieval/selector"
)

// Node is an embedded chunk. Vector is unit length.
type Node struct {
	Chunk
	Vector []float64
}

// Match is a node returned by a search with its cosine similarity to the query.
type Match struct {
	Chunk
	Score float64
}

// RepoIndex is a searchable set of embedded chunks from one repository.
// It is immutable once built.
type RepoIndex struct {
	Owner   string
	Repo    string
	Ref     string
	Files   []string
	BuiltAt time.Time

	nodes []Node
}

// NewRepoIndex assembles an index from already embedded nodes.
func NewRepoIndex(owner, repo, ref string, files []string, nodes []Node) *RepoIndex {
	return &RepoIndex{
		Owner:   owner,
		Repo:    repo,
		Ref:     ref,
		Files:   files,
		BuiltAt: time.Now(),
		nodes:   nodes,
	}
}

// Len returns the number of nodes.
func (ix *RepoIndex) Len() int { return len(ix.nodes) }

// Search returns the k nodes most similar to query, best first. Ties keep
// index order. An invalid query matches nothing.
func (ix *RepoIndex) Search(query []float64, k int) []Match {
	q, ok := selector.Normalize(query)
	if !ok || k <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(ix.nodes))
	for _, n := range ix.nodes {
		score := selector.Dot(q, n.Vector)
		if !selector.Valid(score) {
			continue
		}
		matches = append(matches, Match{Chunk: n.Chunk, Score: score})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches[:min(k, len(matches))]
}
