/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package engine answers questions about an issue from a repository index.
// It keeps the top three chunks scoring at least 0.75 and asks the
// synthesis model to answer strictly from them.
package engine
