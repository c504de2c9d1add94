/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/issueagent"
	"chainguard.dev/opensorus/workqueue"
	"github.com/google/go-cmp/cmp"
)

type fakeQueue struct {
	mu     sync.Mutex
	tasks  []workqueue.Task
	reject bool
	err    error
}

func (f *fakeQueue) Enqueue(task workqueue.Task) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.reject {
		return false, nil
	}
	f.tasks = append(f.tasks, task)
	return true, nil
}

type fakeRunner struct {
	outcome *issueagent.Outcome
	err     error

	mu       sync.Mutex
	issueURL string
	branch   string
	trigger  string
}

func (f *fakeRunner) Run(ctx context.Context, issueURL, branch string) (*issueagent.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueURL, f.branch = issueURL, branch
	f.trigger = agenttrace.GetExecutionContext(ctx).Trigger
	return f.outcome, f.err
}

const commentPayload = `{
  "action": %s,
  "comment": {"body": %s},
  "issue": {"number": 7, "html_url": "https://github.com/acme/widgets/issues/7"},
  "repository": {"full_name": "acme/widgets", "default_branch": "develop"}
}`

func payload(action, body string) string {
	if action == "" {
		return `{"comment": {"body": "@opensorus"}, "issue": {"number": 7}}`
	}
	b, _ := json.Marshal(action)
	c, _ := json.Marshal(body)
	return fmt.Sprintf(commentPayload, b, c)
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook(t *testing.T) {
	t.Parallel()
	wantTask := workqueue.Task{
		Key:      "acme/widgets#7",
		IssueURL: "https://github.com/acme/widgets/issues/7",
		Branch:   "develop",
		Trigger:  "webhook",
	}

	tests := []struct {
		name      string
		event     string
		body      string
		secret    string
		signature string
		queue     *fakeQueue
		wantCode  int
		wantTasks []workqueue.Task
	}{{
		name:      "trigger phrase",
		event:     "issue_comment",
		body:      payload("created", "@opensorus"),
		wantCode:  http.StatusAccepted,
		wantTasks: []workqueue.Task{wantTask},
	}, {
		name:      "capitalized trigger with whitespace",
		event:     "issue_comment",
		body:      payload("created", "  @OpenSorus\n"),
		wantCode:  http.StatusAccepted,
		wantTasks: []workqueue.Task{wantTask},
	}, {
		name:     "ordinary comment",
		event:    "issue_comment",
		body:     payload("created", "thanks for the report"),
		wantCode: http.StatusNoContent,
	}, {
		name:     "mention inside a sentence",
		event:    "issue_comment",
		body:     payload("created", "hey @opensorus can you look"),
		wantCode: http.StatusNoContent,
	}, {
		name:     "edited comment",
		event:    "issue_comment",
		body:     payload("edited", "@opensorus"),
		wantCode: http.StatusBadRequest,
	}, {
		name:     "missing action",
		event:    "issue_comment",
		body:     payload("", ""),
		wantCode: http.StatusBadRequest,
	}, {
		name:     "other event",
		event:    "push",
		body:     `{"ref": "refs/heads/main"}`,
		wantCode: http.StatusNoContent,
	}, {
		name:      "valid signature",
		event:     "issue_comment",
		body:      payload("created", "@opensorus"),
		secret:    "s3cret",
		signature: sign("s3cret", payload("created", "@opensorus")),
		wantCode:  http.StatusAccepted,
		wantTasks: []workqueue.Task{wantTask},
	}, {
		name:      "bad signature",
		event:     "issue_comment",
		body:      payload("created", "@opensorus"),
		secret:    "s3cret",
		signature: sign("other", payload("created", "@opensorus")),
		wantCode:  http.StatusUnauthorized,
	}, {
		name:     "missing signature",
		event:    "issue_comment",
		body:     payload("created", "@opensorus"),
		secret:   "s3cret",
		wantCode: http.StatusUnauthorized,
	}, {
		name:     "already running",
		event:    "issue_comment",
		body:     payload("created", "@opensorus"),
		queue:    &fakeQueue{reject: true},
		wantCode: http.StatusOK,
	}, {
		name:     "queue closed",
		event:    "issue_comment",
		body:     payload("created", "@opensorus"),
		queue:    &fakeQueue{err: workqueue.ErrClosed},
		wantCode: http.StatusServiceUnavailable,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			queue := tt.queue
			if queue == nil {
				queue = &fakeQueue{}
			}
			srv := &server{
				runner:   &fakeRunner{},
				queue:    queue,
				secret:   []byte(tt.secret),
				triggers: []string{"@opensorus", "@OpenSorus"},
			}

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", tt.event)
			if tt.signature != "" {
				req.Header.Set("X-Hub-Signature-256", tt.signature)
			}
			rec := httptest.NewRecorder()
			srv.handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status: got = %d, wanted = %d (body %q)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if diff := cmp.Diff(tt.wantTasks, queue.tasks); diff != "" {
				t.Errorf("enqueued tasks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		body        string
		runner      *fakeRunner
		wantCode    int
		wantMessage string
		wantBranch  string
	}{{
		name:        "comment posted",
		body:        `{"issue_url": "https://github.com/acme/widgets/issues/7", "branch": "dev"}`,
		runner:      &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusDone, CommentPosted: true, Steps: 4}},
		wantCode:    http.StatusOK,
		wantMessage: postedMessage,
		wantBranch:  "dev",
	}, {
		name:        "default branch",
		body:        `{"issue_url": "https://github.com/acme/widgets/issues/7"}`,
		runner:      &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted, Steps: 5}},
		wantCode:    http.StatusOK,
		wantMessage: incompleteMessage,
		wantBranch:  "main",
	}, {
		name:        "run failed",
		body:        `{"issue_url": "https://github.com/acme/widgets/issues/7", "branch": "main"}`,
		runner:      &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted}, err: errors.New("model unavailable")},
		wantCode:    http.StatusOK,
		wantMessage: "Something went wrong: model unavailable",
		wantBranch:  "main",
	}, {
		name:     "bad issue url",
		body:     `{"issue_url": "https://github.com/acme/widgets/pull/7"}`,
		runner:   &fakeRunner{},
		wantCode: http.StatusBadRequest,
	}, {
		name:     "bad json",
		body:     `{"issue_url": `,
		runner:   &fakeRunner{},
		wantCode: http.StatusBadRequest,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := &server{runner: tt.runner, queue: &fakeQueue{}}
			req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status: got = %d, wanted = %d (body %q)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got struct {
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("message: got = %q, wanted = %q", got.Message, tt.wantMessage)
			}
			if tt.runner.branch != tt.wantBranch {
				t.Errorf("branch: got = %q, wanted = %q", tt.runner.branch, tt.wantBranch)
			}
			if tt.runner.trigger != "manual" {
				t.Errorf("trigger: got = %q, wanted = manual", tt.runner.trigger)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := &server{runner: &fakeRunner{}, queue: &fakeQueue{}}
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got = %d, wanted = %d", rec.Code, http.StatusOK)
	}
	if got, want := strings.TrimSpace(rec.Body.String()), `{"status":"ok"}`; got != want {
		t.Errorf("body: got = %s, wanted = %s", got, want)
	}
}

func TestRunTask(t *testing.T) {
	t.Parallel()
	task := workqueue.Task{Key: "acme/widgets#7", IssueURL: "https://github.com/acme/widgets/issues/7", Branch: "main", Trigger: "webhook"}

	posted := &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusDone, CommentPosted: true}}
	if err := runTask(posted)(context.Background(), task); err != nil {
		t.Errorf("posted run: %v", err)
	}
	if posted.trigger != "webhook" {
		t.Errorf("trigger: got = %q, wanted = webhook", posted.trigger)
	}

	aborted := &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted}}
	if err := runTask(aborted)(context.Background(), task); err == nil {
		t.Error("aborted run: expected error")
	}

	boom := errors.New("boom")
	failed := &fakeRunner{outcome: &issueagent.Outcome{Status: issueagent.StatusAborted}, err: boom}
	if err := runTask(failed)(context.Background(), task); !errors.Is(err, boom) {
		t.Errorf("failed run: got = %v, wanted wrapping %v", err, boom)
	}
}
