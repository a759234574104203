package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts indexing runs by mode and result.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "runs_total",
			Help:      "Total number of indexing runs by mode (full, incremental) and result (success, failure, coalesced)",
		},
		[]string{"mode", "result"},
	)

	// RunDuration tracks run latency by mode.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "run_duration_seconds",
			Help:      "Duration of indexing runs in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// ChunksClassified counts chunk classifications. The unchanged count is
	// the embedding spend the hash check saved.
	ChunksClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "chunks_classified_total",
			Help:      "Total chunk classifications by outcome (new, changed, unchanged)",
		},
		[]string{"classification"},
	)

	// EmbeddingsSkipped counts chunks dropped from a run after exhausting
	// embedding retries.
	EmbeddingsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "embeddings_skipped_total",
			Help:      "Total chunks skipped after embedding retries were exhausted",
		},
	)

	// ChunksDeleted counts chunks removed by full-run deletion reconciliation.
	ChunksDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "chunks_deleted_total",
			Help:      "Total chunks deleted because their source row disappeared",
		},
	)

	// QueueDepth tracks the number of triggers waiting in the queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "indexd",
			Subsystem: "indexer",
			Name:      "queue_depth",
			Help:      "Number of indexing triggers waiting in the queue",
		},
	)
)
