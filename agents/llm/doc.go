/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package llm defines the provider-independent contracts the agent and the
// retrieval subsystem use to talk to language models: a ChatModel for tool
// calling and synthesis, and an Embedder for vector search.
//
// Provider adapters live in the openaillm, claudellm and geminillm
// subpackages. The provider package picks one from a model name.
package llm
