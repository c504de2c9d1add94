/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// ExecutionContext describes what an agent run is working on.
// It enriches traces and metrics with the issue under consideration.
type ExecutionContext struct {
	Owner       string `json:"owner,omitempty"`
	Repo        string `json:"repo,omitempty"`
	IssueNumber int    `json:"issue_number,omitempty"`
	Trigger     string `json:"trigger,omitempty"` // "webhook", "manual" or "cli"
}

// Repository returns "owner/repo", or the empty string when unknown.
func (e ExecutionContext) Repository() string {
	if e.Owner == "" || e.Repo == "" {
		return ""
	}
	return e.Owner + "/" + e.Repo
}

// Key returns a stable identifier for the issue, e.g. "acme/widgets#7".
func (e ExecutionContext) Key() string {
	if repo := e.Repository(); repo != "" && e.IssueNumber > 0 {
		return fmt.Sprintf("%s#%d", repo, e.IssueNumber)
	}
	return ""
}

// EnrichAttributes adds execution context attributes to the provided base attributes.
//
// Only bounded labels are added to metrics: the issue number is left to traces,
// where cardinality is not a concern.
func (e ExecutionContext) EnrichAttributes(baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(baseAttrs), len(baseAttrs)+2)
	copy(attrs, baseAttrs)

	if repo := e.Repository(); repo != "" {
		attrs = append(attrs, attribute.String("repository", repo))
	}
	if e.Trigger != "" {
		attrs = append(attrs, attribute.String("trigger", e.Trigger))
	}
	return attrs
}

type contextKey string

const executionContextKey contextKey = "execution_context"

// WithExecutionContext adds execution context to the Go context
func WithExecutionContext(ctx context.Context, execCtx ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey, execCtx)
}

// GetExecutionContext retrieves execution context from the Go context
func GetExecutionContext(ctx context.Context) ExecutionContext {
	if val := ctx.Value(executionContextKey); val != nil {
		if execCtx, ok := val.(ExecutionContext); ok {
			return execCtx
		}
	}
	return ExecutionContext{}
}
