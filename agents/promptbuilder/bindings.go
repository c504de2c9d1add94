/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type binding interface {
	render() (string, error)
}

type unbound string

func (u unbound) render() (string, error) {
	return "", fmt.Errorf("unbound placeholder: %s", string(u))
}

type literal string

func (l literal) render() (string, error) {
	return string(l), nil
}

type format int

const (
	formatXML format = iota
	formatJSON
	formatYAML
)

// xmlWhitespace undoes encoding/xml's escaping of line breaks and tabs in
// character data, so code and issue text keep their shape.
var xmlWhitespace = strings.NewReplacer("&#xA;", "\n", "&#x9;", "\t")

type encoded struct {
	data   any
	format format
}

func (e encoded) render() (string, error) {
	switch e.format {
	case formatXML:
		b, err := xml.MarshalIndent(e.data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal XML: %w", err)
		}
		return xmlWhitespace.Replace(string(b)), nil
	case formatJSON:
		b, err := json.MarshalIndent(e.data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(b), nil
	case formatYAML:
		b, err := yaml.Marshal(e.data)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		// yaml.Marshal always ends with a newline.
		return strings.TrimSuffix(string(b), "\n"), nil
	default:
		return "", errors.New("unknown binding format")
	}
}
