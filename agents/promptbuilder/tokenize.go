/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// scan visits every placeholder in template without building output.
func scan(template string, visit func(name string) (string, error)) error {
	_, err := expand(template, visit)
	return err
}

// expand replaces every {{name}} in template with resolve(name).
// Whitespace inside the braces is ignored.
func expand(template string, resolve func(name string) (string, error)) (string, error) {
	var sb strings.Builder
	for {
		before, rest, found := strings.Cut(template, "{{")
		sb.WriteString(before)
		if !found {
			return sb.String(), nil
		}
		inner, after, closed := strings.Cut(rest, "}}")
		if !closed {
			return "", errors.New("unclosed binding: missing '}}'")
		}
		name := strings.TrimSpace(inner)
		if !validName(name) {
			return "", fmt.Errorf("invalid binding identifier %q", name)
		}
		v, err := resolve(name)
		if err != nil {
			return "", err
		}
		sb.WriteString(v)
		template = after
	}
}

// validName reports whether s starts with a letter and continues with
// letters, digits or underscores.
func validName(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
