/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package issueagent

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/llm"
	"chainguard.dev/opensorus/agents/metrics"
	"chainguard.dev/opensorus/agents/toolcall"
	"chainguard.dev/opensorus/githubapp"
	"github.com/chainguard-dev/clog"
)

// Status is the terminal state of a run.
type Status string

const (
	// StatusDone means the run finished: a comment was posted or the model
	// stopped calling tools.
	StatusDone Status = "DONE"
	// StatusAborted means the run was cut short by the step bound, a
	// cancelled context, a failed model call or a rejected comment.
	StatusAborted Status = "ABORTED"
)

const (
	DefaultMaxSteps    = 5
	DefaultCallTimeout = 2 * time.Minute

	// turnsPerStep bounds model turns relative to the step bound, so a model
	// that only ever asks for unknown tools still stops.
	turnsPerStep = 3
)

// Outcome describes how a run ended.
type Outcome struct {
	Status Status
	// FinalText is the model's closing text when it stopped calling tools.
	FinalText     string
	CommentPosted bool
	CommentURL    string
	// Steps is the number of tool calls executed.
	Steps int
	Trace *agenttrace.Trace[Status]
}

// Orchestrator drives the tool-calling conversation for one issue at a time.
// It is safe for concurrent use; every Run owns its own conversation.
type Orchestrator struct {
	model       llm.ChatModel
	issues      IssueService
	retriever   Retriever
	metrics     *metrics.GenAI
	maxSteps    int
	callTimeout time.Duration
	system      string
}

// New creates an Orchestrator.
func New(model llm.ChatModel, issues IssueService, retriever Retriever, opts ...Option) (*Orchestrator, error) {
	system, err := systemPrompt.Build()
	if err != nil {
		return nil, fmt.Errorf("building system prompt: %w", err)
	}
	o := &Orchestrator{
		model:       model,
		issues:      issues,
		retriever:   retriever,
		metrics:     metrics.NewGenAI("chainguard.dev/opensorus/agents/issueagent"),
		maxSteps:    DefaultMaxSteps,
		callTimeout: DefaultCallTimeout,
		system:      system,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return o, nil
}

// Run works on the issue at issueURL, reading code from branch, until it
// posts a comment, the model stops calling tools, or the step bound is hit.
// The returned Outcome is never nil. A non-nil error means the run could
// not finish normally: the model failed, the context ended, or posting
// the comment failed.
func (o *Orchestrator) Run(ctx context.Context, issueURL, branch string) (*Outcome, error) {
	execCtx := agenttrace.GetExecutionContext(ctx)
	if ref, err := githubapp.ParseIssueURL(issueURL); err == nil && execCtx.Key() == "" {
		execCtx.Owner, execCtx.Repo, execCtx.IssueNumber = ref.Owner, ref.Repo, ref.Number
		ctx = agenttrace.WithExecutionContext(ctx, execCtx)
	}

	request := userRequest(issueURL, branch)
	trace := agenttrace.StartTrace[Status](ctx, request)
	ctx = trace.Context()
	log := clog.FromContext(ctx).With("issue_url", issueURL).With("branch", branch)

	out := &Outcome{Trace: trace}
	finish := func(status Status, err error) (*Outcome, error) {
		out.Status = status
		o.metrics.RecordRun(ctx, o.model.Name(), string(status), out.Steps)
		trace.Complete(status, err)
		log.With("status", string(status)).With("steps", out.Steps).Info("Agent run finished")
		return out, err
	}

	conversation := []llm.Message{llm.System(o.system), llm.User(request)}
	var snapshot string

	for turn := 1; ; turn++ {
		if err := ctx.Err(); err != nil {
			return finish(StatusAborted, err)
		}
		if turn > o.maxSteps*turnsPerStep {
			log.With("turns", turn-1).Warn("Agent stopped after too many model turns")
			return finish(StatusAborted, nil)
		}

		resp, err := o.chat(ctx, conversation)
		if err != nil {
			if ctx.Err() != nil {
				return finish(StatusAborted, ctx.Err())
			}
			return finish(StatusAborted, fmt.Errorf("model call failed: %w", err))
		}
		trace.RecordTokenUsage(o.model.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		conversation = append(conversation, resp.Message())

		if len(resp.ToolCalls) == 0 {
			out.FinalText = resp.Content
			return finish(StatusDone, nil)
		}

		for _, call := range resp.ToolCalls {
			tool, ok := ParseTool(call.Name)
			if !ok {
				log.With("tool", call.Name).Warn("Model requested an unknown tool")
				trace.BadToolCall(call.ID, call.Name, call.Args, fmt.Errorf("unknown tool: %q", call.Name))
				o.metrics.RecordToolCall(ctx, o.model.Name(), call.Name)
				conversation = append(conversation, llm.ToolResult(call, unknownToolMessage(call.Name)))
				continue
			}

			if tool == ToolRetrieveContext && snapshot != "" {
				call = overrideDescription(ctx, call, snapshot)
			}

			log.With("tool", call.Name).With("id", call.ID).Info("Executing tool call")
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			ex := o.execute(callCtx, tool, call, trace)
			cancel()
			out.Steps++
			o.metrics.RecordToolCall(ctx, o.model.Name(), call.Name)

			if tool == ToolGetIssueDetails && ex.snapshot != "" {
				snapshot = ex.snapshot
			}
			conversation = append(conversation, llm.ToolResult(call, encodeResult(ex.result)))

			if tool == ToolPostComment && !ex.badArgs {
				if ex.err != nil {
					return finish(StatusAborted, fmt.Errorf("posting comment: %w", ex.err))
				}
				out.CommentPosted = true
				out.CommentURL, _ = ex.result["html_url"].(string)
				return finish(StatusDone, nil)
			}
			if err := ctx.Err(); err != nil {
				return finish(StatusAborted, err)
			}
		}

		if out.Steps >= o.maxSteps {
			log.With("max_steps", o.maxSteps).Warn("Agent stopped at the step bound")
			return finish(StatusAborted, nil)
		}
	}
}

func (o *Orchestrator) chat(ctx context.Context, conversation []llm.Message) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	resp, err := o.model.Chat(ctx, llm.Request{
		Messages:        conversation,
		Tools:           Definitions(),
		RequireToolCall: true,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, llm.ErrEmptyResponse
	}
	return resp, nil
}

// overrideDescription pins the retrieve_context description to the issue
// text get_issue_details returned.
func overrideDescription(ctx context.Context, call toolcall.ToolCall, snapshot string) toolcall.ToolCall {
	if got, _ := call.Args["issue_description"].(string); got == snapshot {
		return call
	}
	clog.FromContext(ctx).With("tool", call.Name).Warn("Overriding issue_description with the fetched issue")
	args := maps.Clone(call.Args)
	if args == nil {
		args = map[string]any{}
	}
	args["issue_description"] = snapshot
	call.Args = args
	return call
}

func encodeResult(result map[string]any) string {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
