/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package index

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkLines is how many lines a chunk spans.
	DefaultChunkLines = 60
	// DefaultChunkOverlap is how many lines consecutive chunks share.
	DefaultChunkOverlap = 10
)

// Chunk is a contiguous run of lines from one file. Lines are 1-based and
// inclusive.
type Chunk struct {
	Path      string `json:"path" xml:"path,attr"`
	StartLine int    `json:"start_line" xml:"start,attr"`
	EndLine   int    `json:"end_line" xml:"end,attr"`
	Text      string `json:"text" xml:",chardata"`
}

// embeddingText is what gets embedded: the path gives otherwise anonymous
// fragments some context.
func (c Chunk) embeddingText() string {
	return fmt.Sprintf("File: %s (lines %d-%d)\n\n%s", c.Path, c.StartLine, c.EndLine, c.Text)
}

// SplitLines cuts content into chunks of size lines, each sharing overlap
// lines with the one before it. Whitespace-only content yields no chunks.
func SplitLines(path, content string, size, overlap int) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkLines
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var chunks []Chunk
	for start := 0; ; start += size - overlap {
		end := min(start+size, len(lines))
		text := strings.Join(lines[start:end], "")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Path:      path,
				StartLine: start + 1,
				EndLine:   end,
				Text:      text,
			})
		}
		if end == len(lines) {
			return chunks
		}
	}
}
