/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"encoding/json"
	"fmt"

	"chainguard.dev/opensorus/agents/toolcall/params"
	"github.com/invopop/jsonschema"
)

// ToolCall is a provider-independent representation of a tool call.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Definition describes a tool's schema (name, description, parameters).
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Parameter describes a single tool parameter.
type Parameter struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number"
	Description string
	Required    bool
}

// Schema renders the parameters as a JSON schema object. Properties keep
// declaration order so the rendered schema is stable across calls.
func (d Definition) Schema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for _, p := range d.Parameters {
		props.Set(p.Name, &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		})
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// SchemaMap renders Schema as a generic map, the form most provider SDKs accept.
func (d Definition) SchemaMap() (map[string]any, error) {
	raw, err := json.Marshal(d.Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", d.Name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", d.Name, err)
	}
	return out, nil
}

// RequiredNames returns the names of the required parameters in declaration order.
func (d Definition) RequiredNames() []string {
	var names []string
	for _, p := range d.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Param extracts a required parameter from the tool call args.
// On error, records a bad tool call on the trace and returns an error response.
func Param[T any](call ToolCall, trace interface {
	BadToolCall(string, string, map[string]any, error)
}, name string) (T, map[string]any) {
	v, err := params.Extract[T](call.Args, name)
	if err != nil {
		trace.BadToolCall(call.ID, call.Name, call.Args, fmt.Errorf("bad %s parameter: %w", name, err))
		return v, params.Error("%s", err)
	}
	return v, nil
}

// DecodeArgs parses the raw JSON argument string providers return for a tool call.
// An empty string decodes to an empty map.
func DecodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	return args, nil
}
