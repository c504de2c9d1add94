/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"context"

	"chainguard.dev/opensorus/retrieval/engine"
	"chainguard.dev/opensorus/retrieval/index"
)

// Retriever answers retrieve_context calls.
type Retriever interface {
	Retrieve(ctx context.Context, owner, repo, ref, description string) (*engine.Answer, error)
}

// ContextRetriever looks up (or builds) the index for the issue and queries it.
type ContextRetriever struct {
	cache  *index.Cache
	engine *engine.Engine
}

var _ Retriever = (*ContextRetriever)(nil)

// NewContextRetriever creates a ContextRetriever.
func NewContextRetriever(cache *index.Cache, e *engine.Engine) *ContextRetriever {
	return &ContextRetriever{cache: cache, engine: e}
}

// Retrieve implements Retriever.
func (r *ContextRetriever) Retrieve(ctx context.Context, owner, repo, ref, description string) (*engine.Answer, error) {
	ix, err := r.cache.Get(ctx, owner, repo, ref, description)
	if err != nil {
		return nil, err
	}
	return r.engine.Query(ctx, ix, description)
}
