/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remainingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opensorus_github_ratelimit_remaining",
		Help: "The last observed X-RateLimit-Remaining value.",
	}, []string{"host"})

	waitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opensorus_github_ratelimit_waits_total",
		Help: "The number of times a request waited for the rate limit to reset.",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opensorus_github_ratelimit_wait_seconds",
		Help:    "How long requests waited for the rate limit to reset.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	exceededCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opensorus_github_ratelimit_exceeded_total",
		Help: "The number of requests abandoned after exhausting their rate limit budget.",
	})
)
