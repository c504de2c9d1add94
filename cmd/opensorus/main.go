/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the OpenSorus service. It answers issue comment
// webhooks that mention the agent, and offers a synchronous run endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/opensorus/internal/setup"
	"chainguard.dev/opensorus/workqueue"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	setup.Config

	Port              int           `env:"PORT,default=8080"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	TriggerPhrases    []string      `env:"TRIGGER_PHRASES,default=@opensorus,@OpenSorus"`
	MaxConcurrentRuns int64         `env:"MAX_CONCURRENT_RUNS,default=4"`
	RunTimeout        time.Duration `env:"RUN_TIMEOUT,default=10m"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	agent, err := setup.NewAgent(ctx, cfg.Config)
	if err != nil {
		clog.FatalContextf(ctx, "creating agent: %v", err)
	}
	defer agent.Close()

	// Runs outlive their webhook request and are only cancelled after the drain.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()
	queue := workqueue.New(runCtx, cfg.MaxConcurrentRuns, cfg.RunTimeout, runTask(agent))

	if cfg.WebhookSecret == "" {
		clog.WarnContextf(ctx, "WEBHOOK_SECRET is not set, webhook signatures will not be verified")
	}
	srv := &server{
		runner:   agent,
		queue:    queue,
		secret:   []byte(cfg.WebhookSecret),
		triggers: cfg.TriggerPhrases,
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			clog.ErrorContextf(ctx, "shutting down server: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "Listening on port %d", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}

	drainCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cfg.RunTimeout)
	defer done()
	if err := queue.Close(drainCtx); err != nil {
		clog.WarnContextf(ctx, "queued runs cancelled before finishing: %v", err)
	}
}
