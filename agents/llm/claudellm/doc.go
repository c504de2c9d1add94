/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudellm adapts the Anthropic Messages API to llm.ChatModel.
//
// Anthropic has no embeddings endpoint; pair a claude-* chat model with an
// embedder from another provider.
package claudellm
