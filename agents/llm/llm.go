/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"strings"

	"chainguard.dev/opensorus/agents/toolcall"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation.
type Message struct {
	Role    Role
	Content string

	// ToolCalls are the calls requested by an assistant message.
	ToolCalls []toolcall.ToolCall

	// ToolCallID and ToolName identify the call a tool message answers.
	ToolCallID string
	ToolName   string
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message carrying the given text and tool calls.
func Assistant(content string, calls ...toolcall.ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult returns the message answering call with content.
func ToolResult(call toolcall.ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name}
}

// Request is a single chat completion request.
type Request struct {
	Messages []Message
	Tools    []toolcall.Definition

	// RequireToolCall forces the model to answer with at least one tool call.
	RequireToolCall bool
}

// SystemPrompt returns the concatenated system messages and the remaining
// conversation. Providers that take the system prompt out of band use this.
func (r Request) SystemPrompt() (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// Usage reports the tokens consumed by one call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the model's reply to a Request.
type Response struct {
	Content   string
	ToolCalls []toolcall.ToolCall
	Usage     Usage
}

// Message returns the response as an assistant message for the conversation.
func (r *Response) Message() Message {
	return Assistant(r.Content, r.ToolCalls...)
}

// ChatModel is a chat completion model with tool calling.
type ChatModel interface {
	// Name returns the model name requests are sent to.
	Name() string
	// Chat sends the conversation and returns the model's reply.
	Chat(ctx context.Context, req Request) (*Response, error)
}

// Embedder turns texts into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ErrEmptyResponse is returned when a provider answers without any choice or candidate.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Complete sends a single-turn prompt with optional system instructions and
// returns the reply text.
func Complete(ctx context.Context, model ChatModel, system, prompt string) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, System(system))
	}
	msgs = append(msgs, User(prompt))
	resp, err := model.Chat(ctx, Request{Messages: msgs})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
