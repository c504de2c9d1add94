/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaillm adapts OpenAI-compatible chat completion and embedding
// endpoints, Mistral's by default, to the llm interfaces.
package openaillm
