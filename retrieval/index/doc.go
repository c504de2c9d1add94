/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package index builds and caches vector indexes over repository files.
//
// A Builder lists the tree at a ref, narrows it with a selector.Selector,
// fetches the allowed files at a steady pace, splits them into overlapping
// line chunks and embeds each chunk. A Cache keys built indexes by
// repository and the sha256 of the issue description, so repeated retrieval
// for the same issue never touches the network, and concurrent callers
// share a single in-flight build.
package index
