/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the issue agent once against a single issue and prints
// the tool calls it made.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/opensorus/agents/agenttrace"
	"chainguard.dev/opensorus/agents/issueagent"
	"chainguard.dev/opensorus/githubapp"
	"chainguard.dev/opensorus/internal/setup"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type runner interface {
	Run(ctx context.Context, issueURL, branch string) (*issueagent.Outcome, error)
}

func newCommand(newRunner func(context.Context) (runner, func(), error)) *cobra.Command {
	var issueURL, branch string
	cmd := &cobra.Command{
		Use:   "opensorus-run",
		Short: "Run the issue agent once",
		Long: `Run the issue agent against one GitHub issue, reading code context from
the given branch, and print a table of the tool calls it made.

Configuration is read from the same environment variables as the service.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := githubapp.ParseIssueURL(issueURL); err != nil {
				return err
			}
			ctx := agenttrace.WithExecutionContext(cmd.Context(), agenttrace.ExecutionContext{Trigger: "cli"})
			r, done, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer done()
			return runOnce(ctx, r, cmd.OutOrStdout(), issueURL, branch)
		},
	}
	cmd.Flags().StringVarP(&issueURL, "issue", "i", "", "URL of the GitHub issue, e.g. https://github.com/acme/widgets/issues/7")
	cmd.Flags().StringVarP(&branch, "branch", "b", "main", "branch to read code context from")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func runOnce(ctx context.Context, r runner, w io.Writer, issueURL, branch string) error {
	outcome, err := r.Run(ctx, issueURL, branch)
	if outcome.Trace != nil {
		if werr := agenttrace.WriteTable(w, outcome.Trace); werr != nil {
			clog.WarnContextf(ctx, "writing report: %v", werr)
		}
	}
	fmt.Fprintf(w, "\nStatus: %s after %d tool calls\n", outcome.Status, outcome.Steps)
	if outcome.CommentURL != "" {
		fmt.Fprintf(w, "Comment: %s\n", outcome.CommentURL)
	}
	if outcome.FinalText != "" {
		fmt.Fprintf(w, "Final reply: %s\n", outcome.FinalText)
	}
	if err != nil {
		return fmt.Errorf("something went wrong: %w", err)
	}
	return nil
}

func agentFromEnv(ctx context.Context) (runner, func(), error) {
	var cfg setup.Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, nil, fmt.Errorf("processing config: %w", err)
	}
	agent, err := setup.NewAgent(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return agent, agent.Close, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand(agentFromEnv).ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}
