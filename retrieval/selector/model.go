/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package selector

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/promptbuilder"
	"github.com/chainguard-dev/clog"
)

// MaxModelCandidates bounds how many paths the model may pick.
const MaxModelCandidates = 5

const selectionSystem = `You are a code reasoning assistant. Given a GitHub issue description and a list of file paths from a codebase, return the top 5 files that are most relevant to solving or understanding the issue, based on naming, possible associations, or inferred logic.

Return only file paths, one per line, exactly as they appear in the list. Do not add explanations or formatting. Do not invent paths.`

var selectionPrompt = promptbuilder.MustNewPrompt(`Issue:
{{issue}}

Files:
{{files}}

Return the list of most relevant files (only exact paths).`)

type issueText struct {
	XMLName xml.Name `xml:"issue"`
	Text    string   `xml:",chardata"`
}

// ModelSelector asks a chat model to pick paths from the listing.
type ModelSelector struct {
	model llm.ChatModel
}

var _ Selector = (*ModelSelector)(nil)

// NewModelSelector creates a ModelSelector.
func NewModelSelector(model llm.ChatModel) *ModelSelector {
	return &ModelSelector{model: model}
}

// Select implements Selector. When none of the reply lines names a known
// path the full listing is returned.
func (s *ModelSelector) Select(ctx context.Context, description string, paths []string) ([]string, error) {
	prompt, err := selectionPrompt.BindXML("issue", issueText{Text: description})
	if err != nil {
		return nil, err
	}
	if prompt, err = prompt.BindYAML("files", paths); err != nil {
		return nil, err
	}
	text, err := prompt.Build()
	if err != nil {
		return nil, err
	}

	reply, err := llm.Complete(ctx, s.model, selectionSystem, text)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}

	selected := parseSelection(reply, paths)
	if len(selected) == 0 {
		clog.FromContext(ctx).With("files", len(paths)).
			Info("No valid file paths in model reply, using full listing")
		return slices.Clone(paths), nil
	}
	return selected, nil
}

// parseSelection keeps the reply lines that exactly name a known path,
// de-duplicated and capped at MaxModelCandidates.
func parseSelection(reply string, paths []string) []string {
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for line := range strings.Lines(reply) {
		p := cleanLine(line)
		if _, ok := known[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		if len(out) == MaxModelCandidates {
			break
		}
	}
	return out
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*+])\s*`)

// cleanLine strips list markers, quotes, backticks and whitespace.
func cleanLine(line string) string {
	line = listMarker.ReplaceAllString(line, "")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(line), " `\"'"))
}
