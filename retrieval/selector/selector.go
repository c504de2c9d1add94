/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package selector

import "context"

// Selector narrows a repository listing to the paths most relevant to an
// issue, most relevant first.
type Selector interface {
	Select(ctx context.Context, description string, paths []string) ([]string, error)
}

// Strategy names a Selector implementation.
type Strategy string

const (
	StrategyEmbedding Strategy = "embedding"
	StrategyModel     Strategy = "model"
)
