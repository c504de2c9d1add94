/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opensorus_workqueue_enqueued_total",
		Help: "The number of tasks accepted by the work queue.",
	})

	dedupedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opensorus_workqueue_deduplicated_total",
		Help: "The number of tasks dropped because the same key was already in flight.",
	})

	inflightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opensorus_workqueue_in_flight",
		Help: "The number of tasks queued or running.",
	})

	runSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opensorus_workqueue_task_seconds",
		Help:    "How long tasks took to run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
