/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package geminillm adapts the Gemini API to llm.ChatModel and llm.Embedder.
//
// Gemini may return function calls without IDs; the adapter assigns one so
// tool results can be matched back to their call.
package geminillm
