/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed tool arguments from the loosely typed maps
// LLM providers hand back, and formats the error results fed back to the model.
//
// Models are inconsistent about scalar types: an issue number may arrive as
// 7, 7.0, "7" or "#7". Extract normalizes these into the requested Go type
// so tool handlers can stay strict about their inputs.
package params
