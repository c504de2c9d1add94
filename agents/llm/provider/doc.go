/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package provider builds llm.ChatModel and llm.Embedder values from model names.
package provider
