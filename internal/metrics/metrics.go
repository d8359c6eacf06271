// Package metrics exposes the engine's Prometheus instrumentation. All
// collectors are registered on the default registry and served via the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_sync_passes_total",
		Help: "Completed sync passes by result.",
	}, []string{"result"})

	SyncItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_sync_items_total",
		Help: "Records applied during sync passes, by operation.",
	}, []string{"op"})

	SyncDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_sync_duplicates_total",
		Help: "Duplicate clusters detected across all passes.",
	})

	BufferSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_buffer_submitted_total",
		Help: "Items submitted to the async work buffer.",
	})

	BufferCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_buffer_completed_total",
		Help: "Buffer items that reached completed.",
	})

	BufferFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keeper_buffer_failed_total",
		Help: "Buffer items that exhausted retries.",
	})

	BufferPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keeper_buffer_pending",
		Help: "Buffer items currently pending.",
	})
)
