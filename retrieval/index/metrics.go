/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opensorus_index_cache_lookups_total",
		Help: "Index cache lookups by result.",
	}, []string{"result"})

	evictionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opensorus_index_cache_evictions_total",
		Help: "Index cache evictions by reason.",
	}, []string{"reason"})

	buildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opensorus_index_build_seconds",
		Help:    "How long building a repository index took.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
