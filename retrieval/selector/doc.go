/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package selector narrows a repository file listing to the few paths
// worth indexing for an issue.
//
// ModelSelector prompts a chat model with the listing and keeps up to five
// exact paths from its reply, falling back to the whole listing when the
// reply names none. EmbeddingSelector ranks path strings by cosine
// similarity to the issue text, keeps the top two and puts README.md first
// when the repository has one.
package selector
