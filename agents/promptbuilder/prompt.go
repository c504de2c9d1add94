/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"maps"
	"slices"
)

// stringLiteral only accepts untyped string constants from the caller, so
// runtime data cannot be spliced into a template unencoded.
type stringLiteral string

// Prompt is a template with {{name}} placeholders. Binding returns a new
// Prompt; the receiver is never modified.
type Prompt struct {
	template string
	bindings map[string]binding
}

// NewPrompt parses the placeholders in template.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	bindings := make(map[string]binding)
	if err := scan(string(template), func(name string) (string, error) {
		bindings[name] = unbound(name)
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), bindings: bindings}, nil
}

// Placeholders returns the placeholder names in the template, sorted.
func (p *Prompt) Placeholders() []string {
	return slices.Sorted(maps.Keys(p.bindings))
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	current, ok := p.bindings[name]
	if !ok {
		return nil, fmt.Errorf("binding %q not found in template", name)
	}
	if _, isUnbound := current.(unbound); !isUnbound {
		return nil, fmt.Errorf("binding %q already bound", name)
	}
	next := &Prompt{template: p.template, bindings: maps.Clone(p.bindings)}
	next.bindings[name] = b
	return next, nil
}

// BindStringLiteral binds a developer-supplied constant to a placeholder.
func (p *Prompt) BindStringLiteral(name string, value stringLiteral) (*Prompt, error) {
	return p.bind(name, literal(value))
}

// BindXML binds data marshaled with encoding/xml. Untrusted text such as
// issue bodies and file contents goes through here so it stays inside its
// element.
func (p *Prompt) BindXML(name string, data any) (*Prompt, error) {
	return p.bind(name, encoded{data: data, format: formatXML})
}

// BindJSON binds data marshaled as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, encoded{data: data, format: formatJSON})
}

// BindYAML binds data marshaled as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, encoded{data: data, format: formatYAML})
}

// Build renders the prompt. Every placeholder must be bound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for name, b := range p.bindings {
		v, err := b.render()
		if err != nil {
			return "", fmt.Errorf("render %q: %w", name, err)
		}
		values[name] = v
	}
	out, err := expand(p.template, func(name string) (string, error) {
		return values[name], nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
