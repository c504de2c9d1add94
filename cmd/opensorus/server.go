/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/issueagent"
	"chainguard.dev/opensorus/githubapp"
	"chainguard.dev/opensorus/workqueue"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	postedMessage     = "Agent has successfully processed the issue and posted an update in the comments. Check the GitHub issue for updates."
	incompleteMessage = "Agent finished without posting a comment on the issue."
	defaultBranch     = "main"
)

var runsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "opensorus_runs_total",
	Help: "The number of agent runs by trigger and final status.",
}, []string{"trigger", "status"})

type runner interface {
	Run(ctx context.Context, issueURL, branch string) (*issueagent.Outcome, error)
}

type enqueuer interface {
	Enqueue(task workqueue.Task) (bool, error)
}

type server struct {
	runner   runner
	queue    enqueuer
	secret   []byte
	triggers []string
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.webhook)
	mux.HandleFunc("POST /run", s.run)
	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx).With("delivery", github.DeliveryID(r))

	payload, err := github.ValidatePayload(r, s.secret)
	if err != nil {
		log.With("error", err.Error()).Warn("Rejecting webhook payload")
		writeError(w, http.StatusUnauthorized, "invalid payload signature")
		return
	}

	eventType := github.WebHookType(r)
	if eventType != "issue_comment" {
		log.With("event", eventType).Debug("Ignoring webhook event")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	raw, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no valid payload")
		return
	}
	event, ok := raw.(*github.IssueCommentEvent)
	if !ok {
		writeError(w, http.StatusBadRequest, "no valid payload")
		return
	}

	switch event.GetAction() {
	case "":
		writeError(w, http.StatusBadRequest, "no valid payload")
		return
	case "created":
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	body := strings.TrimSpace(event.GetComment().GetBody())
	if !slices.Contains(s.triggers, body) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	repo := event.GetRepo()
	task := workqueue.Task{
		Key:      fmt.Sprintf("%s#%d", repo.GetFullName(), event.GetIssue().GetNumber()),
		IssueURL: event.GetIssue().GetHTMLURL(),
		Branch:   repo.GetDefaultBranch(),
		Trigger:  "webhook",
	}
	if task.Branch == "" {
		task.Branch = defaultBranch
	}
	if _, err := githubapp.ParseIssueURL(task.IssueURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := s.queue.Enqueue(task)
	switch {
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case !accepted:
		log.With("issue", task.Key).Info("Issue already assigned to a running agent")
		writeJSON(w, http.StatusOK, map[string]string{"message": "This issue is already being worked on."})
	default:
		log.With("issue", task.Key).Info("This issue is assigned to OpenSorus Agent")
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "This issue is assigned to OpenSorus Agent."})
	}
}

type runRequest struct {
	IssueURL string `json:"issue_url"`
	Branch   string `json:"branch"`
}

func (s *server) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Branch == "" {
		req.Branch = defaultBranch
	}
	if _, err := githubapp.ParseIssueURL(req.IssueURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := agenttrace.WithExecutionContext(r.Context(), agenttrace.ExecutionContext{Trigger: "manual"})
	outcome, err := s.runner.Run(ctx, req.IssueURL, req.Branch)
	observeRun("manual", outcome)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": outcomeMessage(outcome, err),
		"status":  outcome.Status,
		"steps":   outcome.Steps,
	})
}

// outcomeMessage is the user-visible summary of a run.
func outcomeMessage(outcome *issueagent.Outcome, err error) string {
	switch {
	case err != nil:
		return "Something went wrong: " + err.Error()
	case outcome.CommentPosted:
		return postedMessage
	default:
		return incompleteMessage
	}
}

func observeRun(trigger string, outcome *issueagent.Outcome) {
	runsCounter.WithLabelValues(trigger, string(outcome.Status)).Inc()
}

// runTask adapts the orchestrator to the work queue.
func runTask(r runner) workqueue.Handler {
	return func(ctx context.Context, task workqueue.Task) error {
		ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{Trigger: task.Trigger})
		outcome, err := r.Run(ctx, task.IssueURL, task.Branch)
		observeRun(task.Trigger, outcome)
		if err != nil {
			return fmt.Errorf("run %s: %w", task.Key, err)
		}
		if outcome.Status != issueagent.StatusDone {
			return errors.New(incompleteMessage)
		}
		return nil
	}
}
